// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
package app

import (
	"context"
	"sync"

	"github.com/specialistvlad/ledgerboot/internal/ledger"
	"github.com/specialistvlad/ledgerboot/internal/orchestrator"
	"github.com/specialistvlad/ledgerboot/internal/workflow"
	"github.com/zclconf/go-cty/cty"
)

// Run states reported by the status endpoint.
const (
	StateIdle      = "idle"
	StateRunning   = "running"
	StateSucceeded = "succeeded"
	StateFailed    = "failed"
)

// Status is a snapshot of run progress.
type Status struct {
	State      string   `json:"state"`
	Workflow   string   `json:"workflow,omitempty"`
	TotalSteps int      `json:"total_steps"`
	Completed  []string `json:"completed"`
	Current    string   `json:"current,omitempty"`
	// Pending is the operation awaiting confirmation, if any.
	Pending string `json:"pending,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Progress tracks a run for the status endpoint. It is an orchestrator.Observer
// and is safe to read from HTTP handlers while the run is in flight.
type Progress struct {
	orchestrator.NopObserver

	mu     sync.Mutex
	status Status
}

// NewProgress returns an idle tracker.
func NewProgress() *Progress {
	return &Progress{status: Status{State: StateIdle, Completed: []string{}}}
}

// Begin resets the tracker for a run of wf.
func (p *Progress) Begin(wf workflow.Workflow) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = Status{State: StateRunning, Workflow: wf.Name, TotalSteps: len(wf.Steps), Completed: []string{}}
}

// End records the outcome of the run.
func (p *Progress) End(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.Current = ""
	p.status.Pending = ""
	if err != nil {
		p.status.State = StateFailed
		p.status.Error = err.Error()
		return
	}
	p.status.State = StateSucceeded
}

// Abort marks a run that failed before its first step.
func (p *Progress) Abort(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.State = StateFailed
	p.status.Error = err.Error()
}

// Snapshot returns a copy of the current status.
func (p *Progress) Snapshot() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.status
	s.Completed = append([]string{}, p.status.Completed...)
	return s
}

func (p *Progress) StepStarted(_ context.Context, _ int, step workflow.Step) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.Current = step.ID
}

func (p *Progress) OperationSubmitted(_ context.Context, _ workflow.Step, op *ledger.PendingOperation) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.Pending = op.Describe()
}

func (p *Progress) OperationConfirmed(context.Context, workflow.Step, *ledger.ConfirmedOperation) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.Pending = ""
}

func (p *Progress) StepFinished(_ context.Context, _ int, step workflow.Step, _ map[string]cty.Value) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.Completed = append(p.status.Completed, step.ID)
	p.status.Current = ""
}

// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
package orchestrator

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/specialistvlad/ledgerboot/internal/registry"
	"github.com/specialistvlad/ledgerboot/internal/workflow"
	"gopkg.in/yaml.v3"
)

// Status values used in reports.
const (
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
	StatusSucceeded = "succeeded"
)

// Report is the record of one workflow run: every step that was attempted, the
// services created, and the failure if there was one.
type Report struct {
	RunID      string          `yaml:"run_id"`
	Workflow   string          `yaml:"workflow"`
	Operator   string          `yaml:"operator"`
	Status     string          `yaml:"status"`
	StartedAt  time.Time       `yaml:"started_at"`
	FinishedAt time.Time       `yaml:"finished_at"`
	Services   []ServiceRecord `yaml:"services,omitempty"`
	Steps      []StepRecord    `yaml:"steps"`
	Failure    *FailureRecord  `yaml:"failure,omitempty"`
	// Balances is filled in by callers that summarize final state.
	Balances map[string]string `yaml:"balances,omitempty"`
}

// ServiceRecord is a service created during the run.
type ServiceRecord struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
}

// StepRecord describes one attempted step.
type StepRecord struct {
	Index      int               `yaml:"index"`
	ID         string            `yaml:"id"`
	Kind       string            `yaml:"kind"`
	Status     string            `yaml:"status"`
	StartedAt  time.Time         `yaml:"started_at"`
	FinishedAt time.Time         `yaml:"finished_at"`
	Operations []OperationRecord `yaml:"operations"`
	Outputs    map[string]string `yaml:"outputs,omitempty"`
	Error      string            `yaml:"error,omitempty"`
}

// OperationRecord describes one operation of a step. Queries carry no id,
// nonce or block.
type OperationRecord struct {
	Name    string   `yaml:"name"`
	ID      string   `yaml:"id,omitempty"`
	Nonce   *uint64  `yaml:"nonce,omitempty"`
	Target  string   `yaml:"target,omitempty"`
	Args    []string `yaml:"args,omitempty"`
	Status  string   `yaml:"status"`
	Block   uint64   `yaml:"block,omitempty"`
	Created string   `yaml:"created,omitempty"`
}

// FailureRecord names the failing step and the cause.
type FailureRecord struct {
	Step      string `yaml:"step"`
	Index     int    `yaml:"index"`
	Operation string `yaml:"operation,omitempty"`
	Cause     string `yaml:"cause"`
}

func newReport(name, operator string, now time.Time) *Report {
	return &Report{
		RunID:     uuid.NewString(),
		Workflow:  name,
		Operator:  operator,
		StartedAt: now,
	}
}

func (r *Report) addStep(rec StepRecord) {
	r.Steps = append(r.Steps, rec)
}

func (r *Report) succeed(reg *registry.Registry, now time.Time) {
	r.Status = StatusSucceeded
	r.FinishedAt = now
	r.Services = servicesOf(reg)
}

func (r *Report) fail(err *StepError, now time.Time) {
	r.Status = StatusFailed
	r.FinishedAt = now
	r.Failure = &FailureRecord{
		Step:      err.StepID,
		Index:     err.Index,
		Operation: err.Operation,
		Cause:     err.Cause.Error(),
	}
	for _, s := range r.Steps {
		if s.Status != StatusConfirmed || s.Kind != workflow.KindDeploy.String() || s.Outputs[registry.AddressOutput] == "" {
			continue
		}
		r.Services = append(r.Services, ServiceRecord{Name: s.ID, Address: s.Outputs[registry.AddressOutput]})
	}
}

// Confirmed returns the ids of the steps that were confirmed.
func (r *Report) Confirmed() []string {
	var ids []string
	for _, s := range r.Steps {
		if s.Status == StatusConfirmed {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// Service returns the address of a created service.
func (r *Report) Service(name string) (string, bool) {
	for _, s := range r.Services {
		if s.Name == name {
			return s.Address, true
		}
	}
	return "", false
}

// WriteYAML encodes the report as YAML.
func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return enc.Close()
}

// failedOperation names the operation that failed, or the last one attempted
// when the failure came after its confirmation.
func (rec StepRecord) failedOperation() string {
	for _, op := range rec.Operations {
		if op.Status == StatusFailed {
			return op.Name
		}
	}
	if n := len(rec.Operations); n > 0 {
		return rec.Operations[n-1].Name
	}
	return ""
}

func servicesOf(reg *registry.Registry) []ServiceRecord {
	var out []ServiceRecord
	for _, h := range reg.Handles() {
		out = append(out, ServiceRecord{Name: h.Name, Address: h.Address})
	}
	return out
}

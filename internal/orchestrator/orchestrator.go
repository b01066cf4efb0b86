// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package orchestrator executes bootstrap workflows against a ledger.
//
// # Why a strictly sequential fold?
//
// Every step of a bootstrap depends on state that only exists once the previous
// step is final: a vault cannot be deployed before the token address is known,
// a deposit cannot be submitted before its approval is confirmed. The ledger
// also serializes an operator's submissions with a sequence counter, so a
// second submission before the first is confirmed would be rejected anyway.
// The orchestrator therefore walks the steps in order, and within a step walks
// the operations in order, never submitting anything until the previous
// confirmation has been observed.
//
// The registry of outputs is threaded through that loop as a value. A step's
// outputs are added only after all of its operations are confirmed, so no later
// binding can ever read a value the ledger has not finalized.
//
// # Why fail fast without rollback?
//
// The ledger is append-only. Confirmed steps cannot be undone, so on the first
// failure the run stops, reports which step failed and why, and leaves any
// remediation of the already applied steps to the operator. There are no
// retries at this level.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/specialistvlad/ledgerboot/internal/ledger"
	"github.com/specialistvlad/ledgerboot/internal/registry"
	"github.com/specialistvlad/ledgerboot/internal/workflow"
	"github.com/zclconf/go-cty/cty"
)

// DefaultConfirmTimeout bounds each confirmation wait unless overridden.
const DefaultConfirmTimeout = 2 * time.Minute

// Orchestrator runs workflows through a single ledger client.
type Orchestrator struct {
	client         ledger.Client
	confirmTimeout time.Duration
	observers      multiObserver
	now            func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConfirmTimeout sets the bound on each individual confirmation wait.
func WithConfirmTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.confirmTimeout = d
	}
}

// WithObserver adds an observer notified of run progress.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		o.observers = append(o.observers, obs)
	}
}

// New creates an orchestrator for client.
func New(client ledger.Client, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client:         client,
		confirmTimeout: DefaultConfirmTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes wf to completion or to its first failure. The report is
// returned in both cases; on failure the error is a *StepError. An invalid
// workflow is rejected before anything is submitted and yields no report.
func (o *Orchestrator) Run(ctx context.Context, wf workflow.Workflow) (*Report, error) {
	if err := wf.Validate(); err != nil {
		return nil, fmt.Errorf("refusing to run workflow %q: %w", wf.Name, err)
	}

	operator := o.client.Operator()
	report := newReport(wf.Name, operator.String(), o.now())
	reg := registry.New(operator.String())

	for i, step := range wf.Steps {
		o.observers.StepStarted(ctx, i, step)
		started := o.now()

		next, rec, err := o.runStep(ctx, step, reg)
		rec.Index = i
		rec.StartedAt = started
		rec.FinishedAt = o.now()

		if err != nil {
			stepErr := &StepError{Index: i, StepID: step.ID, Operation: rec.failedOperation(), Cause: err}
			rec.Status = StatusFailed
			rec.Error = err.Error()
			report.addStep(rec)
			report.fail(stepErr, o.now())
			o.observers.StepFailed(ctx, i, step, stepErr)
			return report, stepErr
		}

		reg = next
		rec.Status = StatusConfirmed
		report.addStep(rec)
		outputs, _ := reg.Outputs(step.ID)
		o.observers.StepFinished(ctx, i, step, outputs)
	}

	report.succeed(reg, o.now())
	return report, nil
}

// runStep executes the operations of one step in order and returns the
// registry extended with the step's outputs.
func (o *Orchestrator) runStep(ctx context.Context, step workflow.Step, reg *registry.Registry) (*registry.Registry, StepRecord, error) {
	rec := StepRecord{ID: step.ID, Kind: step.Kind.String()}
	outputs := make(map[string]cty.Value)

	for _, op := range step.Operations {
		opRec := OperationRecord{Name: op.Name()}
		err := o.runOperation(ctx, step, op, reg, outputs, &opRec)
		rec.Operations = append(rec.Operations, opRec)
		if err != nil {
			return reg, rec, err
		}
	}

	rec.Outputs = make(map[string]string, len(outputs))
	for name, v := range outputs {
		rec.Outputs[name] = outputString(v)
	}
	if step.Kind == workflow.KindDeploy {
		return reg.WithService(step.ID, outputs), rec, nil
	}
	return reg.With(step.ID, outputs), rec, nil
}

func (o *Orchestrator) runOperation(ctx context.Context, step workflow.Step, op workflow.Operation, reg *registry.Registry, outputs map[string]cty.Value, rec *OperationRecord) error {
	args, err := resolveArgs(op.Args, reg)
	if err != nil {
		rec.Status = StatusFailed
		return err
	}
	rec.Args = formatArgs(args)

	var target ledger.Address
	if op.Target != nil {
		target, err = resolveTarget(op.Target, reg)
		if err != nil {
			rec.Status = StatusFailed
			return err
		}
		rec.Target = target.String()
	}

	if step.Kind == workflow.KindQuery {
		values, err := o.client.Query(ctx, target, op.Method, args...)
		if err != nil {
			rec.Status = StatusFailed
			return err
		}
		rec.Status = StatusConfirmed
		return collectOutputs(op, values, outputs)
	}

	var pending *ledger.PendingOperation
	if step.Kind == workflow.KindDeploy {
		pending, err = o.client.Deploy(ctx, op.Template, args...)
	} else {
		pending, err = o.client.Submit(ctx, target, op.Method, args...)
	}
	if err != nil {
		rec.Status = StatusFailed
		return err
	}
	rec.ID = pending.ID.String()
	nonce := pending.Nonce
	rec.Nonce = &nonce
	o.observers.OperationSubmitted(ctx, step, pending)

	confirmed, err := o.await(ctx, pending)
	if err != nil {
		rec.Status = StatusFailed
		return err
	}
	rec.Status = StatusConfirmed
	rec.Block = confirmed.Block
	o.observers.OperationConfirmed(ctx, step, confirmed)

	if step.Kind == workflow.KindDeploy {
		if confirmed.Created == "" {
			return fmt.Errorf("%s confirmed without a service address: %w", pending.Describe(), ErrOutputMismatch)
		}
		rec.Created = confirmed.Created.String()
		outputs[workflow.AddressOutput] = cty.StringVal(confirmed.Created.String())
		return nil
	}
	return collectOutputs(op, confirmed.ReturnValues, outputs)
}

// await blocks until op is final or the confirmation window closes. Context
// expiry reported by the client is normalized to a *ledger.TimeoutError.
func (o *Orchestrator) await(ctx context.Context, op *ledger.PendingOperation) (*ledger.ConfirmedOperation, error) {
	waitCtx, cancel := context.WithTimeout(ctx, o.confirmTimeout)
	defer cancel()

	confirmed, err := o.client.AwaitConfirmation(waitCtx, op)
	if err == nil {
		return confirmed, nil
	}
	var timeoutErr *ledger.TimeoutError
	if !errors.As(err, &timeoutErr) && errors.Is(err, context.DeadlineExceeded) {
		return nil, &ledger.TimeoutError{Op: op, Waited: o.confirmTimeout}
	}
	return nil, err
}

func outputString(v cty.Value) string {
	if v.Type() == cty.String && v.IsKnown() && !v.IsNull() {
		return v.AsString()
	}
	return workflow.FormatValue(v)
}

// collectOutputs maps return values onto the operation's declared outputs.
func collectOutputs(op workflow.Operation, values []any, outputs map[string]cty.Value) error {
	if len(op.Outputs) > len(values) {
		return fmt.Errorf("%s returned %d values, %d outputs declared: %w", op.Name(), len(values), len(op.Outputs), ErrOutputMismatch)
	}
	for i, name := range op.Outputs {
		v, err := toCty(values[i])
		if err != nil {
			return fmt.Errorf("output %q of %s: %w", name, op.Name(), err)
		}
		outputs[name] = v
	}
	return nil
}

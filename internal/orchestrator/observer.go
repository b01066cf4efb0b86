// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
package orchestrator

import (
	"context"
	"sort"

	"github.com/specialistvlad/ledgerboot/internal/ctxlog"
	"github.com/specialistvlad/ledgerboot/internal/ledger"
	"github.com/specialistvlad/ledgerboot/internal/workflow"
	"github.com/zclconf/go-cty/cty"
)

// Observer is notified of run progress. Calls happen on the run's goroutine,
// in order; implementations must not block.
type Observer interface {
	StepStarted(ctx context.Context, index int, step workflow.Step)
	OperationSubmitted(ctx context.Context, step workflow.Step, op *ledger.PendingOperation)
	OperationConfirmed(ctx context.Context, step workflow.Step, op *ledger.ConfirmedOperation)
	StepFinished(ctx context.Context, index int, step workflow.Step, outputs map[string]cty.Value)
	StepFailed(ctx context.Context, index int, step workflow.Step, err *StepError)
}

// NopObserver implements Observer with no-ops; embed it to override a subset.
type NopObserver struct{}

func (NopObserver) StepStarted(context.Context, int, workflow.Step) {}
func (NopObserver) OperationSubmitted(context.Context, workflow.Step, *ledger.PendingOperation) {
}
func (NopObserver) OperationConfirmed(context.Context, workflow.Step, *ledger.ConfirmedOperation) {
}
func (NopObserver) StepFinished(context.Context, int, workflow.Step, map[string]cty.Value) {}
func (NopObserver) StepFailed(context.Context, int, workflow.Step, *StepError)             {}

type multiObserver []Observer

func (m multiObserver) StepStarted(ctx context.Context, index int, step workflow.Step) {
	for _, o := range m {
		o.StepStarted(ctx, index, step)
	}
}

func (m multiObserver) OperationSubmitted(ctx context.Context, step workflow.Step, op *ledger.PendingOperation) {
	for _, o := range m {
		o.OperationSubmitted(ctx, step, op)
	}
}

func (m multiObserver) OperationConfirmed(ctx context.Context, step workflow.Step, op *ledger.ConfirmedOperation) {
	for _, o := range m {
		o.OperationConfirmed(ctx, step, op)
	}
}

func (m multiObserver) StepFinished(ctx context.Context, index int, step workflow.Step, outputs map[string]cty.Value) {
	for _, o := range m {
		o.StepFinished(ctx, index, step, outputs)
	}
}

func (m multiObserver) StepFailed(ctx context.Context, index int, step workflow.Step, err *StepError) {
	for _, o := range m {
		o.StepFailed(ctx, index, step, err)
	}
}

// LogObserver writes progress to the logger carried in the context.
type LogObserver struct{}

func (LogObserver) StepStarted(ctx context.Context, index int, step workflow.Step) {
	ctxlog.FromContext(ctx).Info("▶️ Starting step", "step", step.ID, "index", index+1, "kind", step.Kind.String())
}

func (LogObserver) OperationSubmitted(ctx context.Context, step workflow.Step, op *ledger.PendingOperation) {
	ctxlog.FromContext(ctx).Debug("Operation submitted.", "step", step.ID, "operation", op.Describe(), "nonce", op.Nonce, "id", op.ID)
}

func (LogObserver) OperationConfirmed(ctx context.Context, step workflow.Step, op *ledger.ConfirmedOperation) {
	logger := ctxlog.FromContext(ctx)
	if op.Created != "" {
		logger.Info("📦 Service deployed", "step", step.ID, "template", op.Template, "address", op.Created.String(), "block", op.Block)
		return
	}
	logger.Debug("Operation confirmed.", "step", step.ID, "operation", op.Describe(), "block", op.Block)
}

func (LogObserver) StepFinished(ctx context.Context, index int, step workflow.Step, outputs map[string]cty.Value) {
	args := []any{"step", step.ID, "index", index + 1}
	names := make([]string, 0, len(outputs))
	for name := range outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		args = append(args, name, outputString(outputs[name]))
	}
	ctxlog.FromContext(ctx).Info("✅ Finished step", args...)
}

func (LogObserver) StepFailed(ctx context.Context, index int, step workflow.Step, err *StepError) {
	ctxlog.FromContext(ctx).Error("❌ Step failed", "step", step.ID, "index", index+1, "operation", err.Operation, "error", err.Cause)
}

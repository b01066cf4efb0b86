// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/specialistvlad/ledgerboot/internal/ctxlog"
	"github.com/specialistvlad/ledgerboot/internal/hclworkflow"
	"github.com/specialistvlad/ledgerboot/internal/orchestrator"
	"github.com/specialistvlad/ledgerboot/internal/workflow"
)

// Run loads the workflow, executes it against the ledger, summarizes the
// resulting balances, and writes the report if a path is configured. A failed
// run still produces its report before the error is returned.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.ctx = ctx
	a.logger.Debug("App.Run method started.")

	a.healthCheckServer()
	defer func() {
		if err := a.closeHealthCheckServer(); err != nil {
			a.logger.Warn("Health check server did not shut down cleanly.", "error", err)
		}
	}()

	wf, err := a.loadWorkflow(ctx)
	if err != nil {
		a.progress.Abort(err)
		return err
	}

	a.progress.Begin(wf)
	orch := orchestrator.New(a.ledger,
		orchestrator.WithConfirmTimeout(a.config.ConfirmTimeout),
		orchestrator.WithObserver(orchestrator.LogObserver{}),
		orchestrator.WithObserver(a.progress),
	)

	a.logger.Info("🚀 Starting bootstrap", "workflow", wf.Name, "steps", len(wf.Steps), "operator", a.ledger.Operator().String())
	report, runErr := orch.Run(ctx, wf)
	a.report = report
	a.progress.End(runErr)

	if report != nil {
		report.Balances = a.summarize(ctx, report)
		if err := a.writeReport(report); err != nil {
			a.logger.Error("Failed to write report.", "path", a.config.ReportPath, "error", err)
			if runErr == nil {
				return err
			}
		}
	}

	if runErr != nil {
		return fmt.Errorf("bootstrap failed: %w", runErr)
	}

	a.logger.Info("🏁 Bootstrap finished.", "workflow", wf.Name, "run_id", report.RunID)
	return nil
}

func (a *App) loadWorkflow(ctx context.Context) (workflow.Workflow, error) {
	if a.config.WorkflowPath == "" {
		params := workflow.DefaultParams()
		params.TokenName = a.config.TokenName
		params.TokenSymbol = a.config.TokenSymbol
		a.logger.Debug("Using built-in bootstrap workflow.", "token_name", params.TokenName, "token_symbol", params.TokenSymbol)
		return workflow.Bootstrap(params), nil
	}

	wf, err := hclworkflow.Load(ctx, a.config.WorkflowPath)
	if err != nil {
		return workflow.Workflow{}, fmt.Errorf("failed to load workflow: %w", err)
	}
	return wf, nil
}

func (a *App) writeReport(report *orchestrator.Report) error {
	if a.config.ReportPath == "" {
		return nil
	}
	f, err := os.Create(a.config.ReportPath)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	if err := report.WriteYAML(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close report file: %w", err)
	}
	a.logger.Info("📝 Report written", "path", a.config.ReportPath)
	return nil
}

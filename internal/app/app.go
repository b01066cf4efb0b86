// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/specialistvlad/ledgerboot/internal/ctxlog"
	"github.com/specialistvlad/ledgerboot/internal/orchestrator"
	"github.com/specialistvlad/ledgerboot/internal/simledger"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW       io.Writer
	ctx        context.Context
	logger     *slog.Logger
	config     *Config
	ledger     *simledger.Ledger
	progress   *Progress
	httpServer *http.Server
	report     *orchestrator.Report
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger and ledger.
func NewApp(outW io.Writer, cfg *Config) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	l := simledger.New(simledger.WithBlockTime(cfg.BlockTime))
	logger.Debug("Ledger ready.", "operator", l.Operator().String(), "block_time", cfg.BlockTime)

	return &App{
		outW:     outW,
		ctx:      ctx,
		logger:   logger,
		config:   cfg,
		ledger:   l,
		progress: NewProgress(),
	}
}

// Ledger returns the application's ledger. This is primarily for testing.
func (a *App) Ledger() *simledger.Ledger {
	return a.ledger
}

// Report returns the report of the last run, or nil before the first run.
func (a *App) Report() *orchestrator.Report {
	return a.report
}

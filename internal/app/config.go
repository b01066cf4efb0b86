// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/specialistvlad/ledgerboot/internal/orchestrator"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// WorkflowPath is an .hcl file or a directory of them. Empty selects the
	// built-in bootstrap workflow.
	WorkflowPath string
	ReportPath   string

	LogFormat       string
	LogLevel        string
	HealthcheckPort int

	ConfirmTimeout time.Duration
	// BlockTime is how long the in-process ledger takes to finalize a block.
	BlockTime time.Duration

	// Token parameters of the built-in workflow.
	TokenName   string
	TokenSymbol string
}

// DefaultConfig returns the configuration used when no flags are given.
func DefaultConfig() Config {
	return Config{
		LogFormat:      "text",
		LogLevel:       "info",
		ConfirmTimeout: orchestrator.DefaultConfirmTimeout,
		TokenName:      "1sDAI",
		TokenSymbol:    "1sDAI",
	}
}

// NewConfig validates cfg and returns it.
func NewConfig(cfg Config) (*Config, error) {
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return nil, fmt.Errorf("invalid log format %q: must be 'text' or 'json'", cfg.LogFormat)
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.LogLevel)
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		return nil, fmt.Errorf("invalid healthcheck port %d", cfg.HealthcheckPort)
	}
	if cfg.ConfirmTimeout <= 0 {
		return nil, errors.New("confirm timeout must be positive")
	}
	if cfg.BlockTime < 0 {
		return nil, errors.New("block time cannot be negative")
	}
	if cfg.WorkflowPath == "" && (cfg.TokenName == "" || cfg.TokenSymbol == "") {
		return nil, errors.New("token name and symbol are required for the built-in workflow")
	}

	return &cfg, nil
}

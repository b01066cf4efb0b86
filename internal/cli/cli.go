// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/specialistvlad/ledgerboot/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	defaults := app.DefaultConfig()
	flagSet := flag.NewFlagSet("ledgerboot", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
ledgerboot - Deploys and wires a token, staking vault and reward service, one confirmed step at a time.

Usage:
  ledgerboot [options] [WORKFLOW_PATH]

Arguments:
  WORKFLOW_PATH
    Path to a single .hcl file or a directory containing .hcl files.
    When omitted, the built-in bootstrap workflow is run.

Options:
`)
		flagSet.PrintDefaults()
	}

	workflowFlag := flagSet.String("workflow", "", "Path to the workflow file or directory.")
	wFlag := flagSet.String("w", "", "Path to the workflow file or directory (shorthand).")
	reportFlag := flagSet.String("report", "", "Write the run report as YAML to this path.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health and status server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", defaults.LogFormat, "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", defaults.LogLevel, "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	confirmTimeoutFlag := flagSet.Duration("confirm-timeout", defaults.ConfirmTimeout, "Maximum wait for each operation to be confirmed.")
	blockTimeFlag := flagSet.Duration("block-time", defaults.BlockTime, "Time the ledger takes to finalize each operation.")
	tokenNameFlag := flagSet.String("token-name", defaults.TokenName, "Token name used by the built-in workflow.")
	tokenSymbolFlag := flagSet.String("token-symbol", defaults.TokenSymbol, "Token symbol used by the built-in workflow.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	switch {
	case (*workflowFlag != "" || *wFlag != "") && flagSet.NArg() > 0:
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("workflow path given both as a flag and as an argument (%s)", strings.Join(flagSet.Args(), " "))}
	case *workflowFlag != "" && *wFlag != "" && *workflowFlag != *wFlag:
		return nil, false, &ExitError{Code: 2, Message: "--workflow and -w name different paths"}
	case *workflowFlag != "":
		path = *workflowFlag
	case *wFlag != "":
		path = *wFlag
	case flagSet.NArg() > 1:
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("expected at most one workflow path, got %d", flagSet.NArg())}
	case flagSet.NArg() == 1:
		path = flagSet.Arg(0)
	}
	slog.Debug("Workflow path determined.", "path", path)

	config, err := app.NewConfig(app.Config{
		WorkflowPath:    path,
		ReportPath:      *reportFlag,
		HealthcheckPort: *healthPortFlag,
		LogFormat:       strings.ToLower(*logFormatFlag),
		LogLevel:        strings.ToLower(*logLevelFlag),
		ConfirmTimeout:  *confirmTimeoutFlag,
		BlockTime:       *blockTimeFlag,
		TokenName:       *tokenNameFlag,
		TokenSymbol:     *tokenSymbolFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}

package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/ledgerboot/internal/cli"
	"github.com/specialistvlad/ledgerboot/internal/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_BuiltInBootstrap(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	report := filepath.Join(t.TempDir(), "report.yaml")
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(out, []string{"--log-format", "json", "--report", report})

	// --- Assert ---
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Bootstrap finished")
	raw, err := os.ReadFile(report)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "status: succeeded")
}

func TestRun_WorkflowParseError(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	invalidHCL := `
		step "deploy" "token" {
			template = "Token"
		// Missing closing brace here
	`
	filePath := filepath.Join(t.TempDir(), "main.hcl")
	require.NoError(t, os.WriteFile(filePath, []byte(invalidHCL), 0600))
	out := &bytes.Buffer{}

	// --- Act ---
	runErr := run(out, []string{filePath})

	// --- Assert ---
	require.Error(t, runErr)
	assert.Contains(t, runErr.Error(), "failed to parse")
	var exitErr *cli.ExitError
	assert.False(t, errors.As(runErr, &exitErr), "a run failure is not a usage error")
}

func TestRun_FailedStepIsReturned(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	filePath := filepath.Join(t.TempDir(), "main.hcl")
	require.NoError(t, os.WriteFile(filePath, []byte(`
step "deploy" "token" {
  template = "Token"
}
step "call" "mint" {
  operation "mint" {
    target = step.token.address
    args   = [operator, 1]
  }
}
`), 0600))

	// --- Act ---
	err := run(&bytes.Buffer{}, []string{"-w", filePath})

	// --- Assert ---
	var stepErr *orchestrator.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "mint", stepErr.StepID)
	assert.Contains(t, err.Error(), "token not initialized")
}

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// The "-h" (help) flag should cause cli.Parse to return `shouldExit=true`.
	args := []string{"-h"}
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(out, args)

	// --- Assert ---
	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	args := []string{"--this-is-not-a-valid-flag"}
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(out, args)

	// --- Assert ---
	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
	require.Contains(t, err.Error(), "flag provided but not defined: -this-is-not-a-valid-flag")
}

package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/ledgerboot/internal/orchestrator"
	"github.com/specialistvlad/ledgerboot/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestApp_RunBuiltInBootstrap(t *testing.T) {
	// --- Arrange ---
	cfg := DefaultConfig()
	cfg.ReportPath = filepath.Join(t.TempDir(), "report.yaml")
	testApp, logs := SetupAppTest(t, cfg)

	// --- Act ---
	err := testApp.Run(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	report := testApp.Report()
	require.NotNil(t, report)
	assert.Equal(t, orchestrator.StatusSucceeded, report.Status)
	assert.Len(t, report.Services, 3)
	assert.Equal(t, "999999450.0", report.Balances["token.balanceOf(operator)"])
	assert.Equal(t, "400.0", report.Balances["token.balanceOf(reward)"])
	assert.Equal(t, "150.0", report.Balances["token.balanceOf(vault)"])
	assert.Equal(t, "75000000000000000000", report.Balances["vault.balanceOf(operator)"])
	assert.Equal(t, uint64(13), testApp.Ledger().Nonce())

	raw, err := os.ReadFile(cfg.ReportPath)
	require.NoError(t, err)
	var decoded orchestrator.Report
	require.NoError(t, yaml.Unmarshal(raw, &decoded))
	assert.Equal(t, report.RunID, decoded.RunID)
	assert.Equal(t, "bootstrap", decoded.Workflow)
	assert.Len(t, decoded.Steps, 12)

	assert.Contains(t, logs.String(), "Bootstrap finished")
	status := testApp.progress.Snapshot()
	assert.Equal(t, StateSucceeded, status.State)
	assert.Len(t, status.Completed, 12)
}

func TestApp_RunBundledHCLWorkflow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WorkflowPath = filepath.Join("..", "..", "workflows")
	testApp, _ := SetupAppTest(t, cfg)

	err := testApp.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{
		workflow.StepToken, workflow.StepInitializeToken, workflow.StepVault, workflow.StepReward,
		workflow.StepEpochDuration, workflow.StepMint, workflow.StepFundRewards, workflow.StepNextEpochReward,
		workflow.StepDeposit, workflow.StepDistributeRewards, workflow.StepShareQuote, workflow.StepWithdraw,
	}, testApp.Report().Confirmed())
}

func TestApp_RunFailingWorkflowStillWritesReport(t *testing.T) {
	// --- Arrange ---
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.hcl"), []byte(`
workflow {
  name = "broken"
}

step "deploy" "token" {
  template = "Token"
}

step "call" "init" {
  operation "initialize" {
    target = step.token.address
    args   = ["Broken", "BRK"]
  }
}

step "call" "distribute" {
  operation "mint" {
    target = step.token.address
    args   = [operator, 1]
  }
  operation "transfer" {
    target = step.token.address
    args   = [operator, 5]
  }
}
`), 0o644))

	cfg := DefaultConfig()
	cfg.WorkflowPath = dir
	cfg.ReportPath = filepath.Join(dir, "report.yaml")
	testApp, _ := SetupAppTest(t, cfg)

	// --- Act ---
	err := testApp.Run(context.Background())

	// --- Assert ---
	require.Error(t, err)
	var stepErr *orchestrator.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "distribute", stepErr.StepID)
	assert.Equal(t, "transfer", stepErr.Operation)

	raw, readErr := os.ReadFile(cfg.ReportPath)
	require.NoError(t, readErr)
	assert.Contains(t, string(raw), "status: failed")
	assert.Contains(t, string(raw), "step: distribute")

	status := testApp.progress.Snapshot()
	assert.Equal(t, StateFailed, status.State)
	assert.Equal(t, []string{"token", "init"}, status.Completed)
}

func TestApp_RunInvalidWorkflowPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WorkflowPath = filepath.Join(t.TempDir(), "missing.hcl")
	testApp, _ := SetupAppTest(t, cfg)

	err := testApp.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load workflow")
	assert.Nil(t, testApp.Report())
	assert.Equal(t, StateFailed, testApp.progress.Snapshot().State)
}

func TestApp_StatusEndpoint(t *testing.T) {
	// --- Arrange ---
	testApp, _ := SetupAppTest(t, DefaultConfig())
	require.NoError(t, testApp.Run(context.Background()))
	srv := httptest.NewServer(testApp.routes())
	defer srv.Close()

	// --- Act ---
	health, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	health.Body.Close()
	resp, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	// --- Assert ---
	assert.Equal(t, http.StatusOK, health.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var status Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, StateSucceeded, status.State)
	assert.Equal(t, "bootstrap", status.Workflow)
	assert.Equal(t, 12, status.TotalSteps)
}

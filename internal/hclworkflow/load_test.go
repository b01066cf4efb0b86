package hclworkflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/ledgerboot/internal/ctxlog"
	"github.com/specialistvlad/ledgerboot/internal/registry"
	"github.com/specialistvlad/ledgerboot/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

const operator = "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// fakeScope records an address for every deploy step and a fixed amount for
// every declared output, so any validated workflow can be resolved end to end.
func fakeScope(wf workflow.Workflow) *registry.Registry {
	reg := registry.New(operator)
	for i, s := range wf.Steps {
		outs := map[string]cty.Value{}
		for _, name := range s.Produces() {
			if name == workflow.AddressOutput {
				outs[name] = cty.StringVal(fmt.Sprintf("0x%040d", i+1))
				continue
			}
			outs[name] = cty.NumberIntVal(int64(i + 1))
		}
		reg = reg.With(s.ID, outs)
	}
	return reg
}

func resolveAll(t *testing.T, bindings []workflow.Binding, scope workflow.Scope) []string {
	t.Helper()
	out := make([]string, 0, len(bindings))
	for _, b := range bindings {
		v, err := b.Resolve(scope)
		require.NoError(t, err, b.String())
		out = append(out, workflow.FormatValue(v))
	}
	return out
}

func TestLoad_BundledWorkflowMatchesBootstrap(t *testing.T) {
	// --- Arrange ---
	ctx := ctxlog.Discard(context.Background())
	want := workflow.Bootstrap(workflow.DefaultParams())

	// --- Act ---
	got, err := Load(ctx, filepath.Join("..", "..", "workflows", "bootstrap.hcl"))

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, "bootstrap", got.Name)
	require.Len(t, got.Steps, len(want.Steps))

	scope := fakeScope(want)
	for i := range want.Steps {
		w, g := want.Steps[i], got.Steps[i]
		t.Run(w.ID, func(t *testing.T) {
			assert.Equal(t, w.ID, g.ID)
			assert.Equal(t, w.Kind, g.Kind)
			assert.Equal(t, w.Produces(), g.Produces())
			require.Len(t, g.Operations, len(w.Operations))
			for j := range w.Operations {
				wo, gop := w.Operations[j], g.Operations[j]
				assert.Equal(t, wo.Template, gop.Template)
				assert.Equal(t, wo.Method, gop.Method)
				assert.ElementsMatch(t, wo.References(), gop.References())
				if wo.Target != nil {
					assert.Equal(t, resolveAll(t, []workflow.Binding{wo.Target}, scope), resolveAll(t, []workflow.Binding{gop.Target}, scope))
				}
				assert.Equal(t, resolveAll(t, wo.Args, scope), resolveAll(t, gop.Args, scope))
			}
		})
	}
}

func TestLoad_DirectoryConcatenatesFilesInPathOrder(t *testing.T) {
	// --- Arrange ---
	dir := t.TempDir()
	writeFile(t, dir, "02_mint.hcl", `
step "call" "mint" {
  operation "mint" {
    target = step.token.address
    args   = [operator, 1000]
  }
}
`)
	writeFile(t, dir, "01_token.hcl", `
step "deploy" "token" {
  template = "Token"
}
`)

	// --- Act ---
	wf, err := Load(ctxlog.Discard(context.Background()), dir)

	// --- Assert ---
	require.NoError(t, err)
	require.Len(t, wf.Steps, 2)
	assert.Equal(t, "token", wf.Steps[0].ID)
	assert.Equal(t, "mint", wf.Steps[1].ID)
	assert.Equal(t, filepath.Base(dir), wf.Name)
}

func TestLoad_WorkflowHeaderInOneFileOfDirectory(t *testing.T) {
	// --- Arrange ---
	dir := t.TempDir()
	writeFile(t, dir, "01_token.hcl", `
step "deploy" "token" {
  template = "Token"
}
`)
	writeFile(t, dir, "02_header.hcl", `
workflow {
  name = "split"
}
`)

	// --- Act ---
	wf, err := Load(ctxlog.Discard(context.Background()), dir)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, "split", wf.Name)
}

func TestLoad_WorkflowHeaderInTwoFilesIsRejected(t *testing.T) {
	// --- Arrange ---
	dir := t.TempDir()
	writeFile(t, dir, "01_token.hcl", `
workflow {
  name = "first"
}
step "deploy" "token" {
  template = "Token"
}
`)
	second := writeFile(t, dir, "02_vault.hcl", `
workflow {
  name = "second"
}
step "deploy" "vault" {
  template = "StakingVault"
  args     = [step.token.address, operator]
}
`)

	// --- Act ---
	_, err := Load(ctxlog.Discard(context.Background()), dir)

	// --- Assert ---
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Duplicate \"workflow\" block")
	assert.Contains(t, err.Error(), second)
	assert.Contains(t, err.Error(), "01_token.hcl")
}

func TestLoad_EmptyDirectory(t *testing.T) {
	_, err := Load(ctxlog.Discard(context.Background()), t.TempDir())
	assert.ErrorIs(t, err, ErrNoWorkflowFiles)
}

func TestLoad_ForwardReferenceAcrossFilesIsRejected(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.hcl", `
step "call" "mint" {
  operation "mint" {
    target = step.token.address
    args   = [operator, 1]
  }
}
`)
	writeFile(t, dir, "b.hcl", `
step "deploy" "token" {
  template = "Token"
}
`)

	_, err := Load(ctxlog.Discard(context.Background()), dir)
	require.ErrorIs(t, err, workflow.ErrInvalidWorkflow)
	assert.Contains(t, err.Error(), "forward reference")
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		message string
	}{
		{
			name:    "unknown kind",
			src:     `step "destroy" "token" {}`,
			message: "Invalid step kind",
		},
		{
			name:    "deploy without template",
			src:     `step "deploy" "token" {}`,
			message: "template",
		},
		{
			name:    "call without operation",
			src:     `step "call" "mint" {}`,
			message: "Missing operation",
		},
		{
			name: "unknown variable",
			src: `
step "deploy" "token" {
  template = "Token"
}
step "call" "mint" {
  operation "mint" {
    target = var.token
  }
}`,
			message: "Unknown variable",
		},
		{
			name: "args not a list",
			src: `
step "deploy" "token" {
  template = "Token"
  args     = "x"
}`,
			message: "list",
		},
		{
			name: "duplicate workflow header",
			src: `
workflow {}
workflow {}
step "deploy" "token" {
  template = "Token"
}`,
			message: "Duplicate",
		},
		{
			name: "unknown attribute",
			src: `
step "deploy" "token" {
  template = "Token"
  retries  = 3
}`,
			message: "Unsupported argument",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.src), "test.hcl")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.message)
		})
	}
}

func TestParse_OutputsAndQueries(t *testing.T) {
	wf, err := Parse([]byte(`
step "deploy" "vault" {
  template = "StakingVault"
  args     = [operator, operator]
}
step "query" "share_quote" {
  operation "convertToShares" {
    target  = step.vault.address
    args    = [parse_units("100", 18)]
    outputs = ["shares"]
  }
}
step "call" "withdraw" {
  operation "withdraw" {
    target = step.vault.address
    args   = [step.share_quote.shares, operator, operator]
  }
}
`), "test.hcl")

	require.NoError(t, err)
	quote, ok := wf.Step("share_quote")
	require.True(t, ok)
	assert.Equal(t, workflow.KindQuery, quote.Kind)
	assert.Equal(t, []string{"shares"}, quote.Produces())

	withdraw, _ := wf.Step("withdraw")
	assert.Contains(t, withdraw.Operations[0].References(), workflow.Ref{Step: "share_quote", Output: "shares"})
}

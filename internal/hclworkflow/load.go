// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package hclworkflow loads bootstrap workflows declared in HCL files.
//
// A workflow file is a list of `step` blocks, each labelled with its kind and
// id. Steps keep their file order; when a directory is loaded, files are read
// in path order and their steps concatenated, so a workflow can be split
// across files while the total order stays explicit. At most one file may
// carry the `workflow {}` header; without one the workflow is named after the
// path.
//
//	workflow {
//	  name = "bootstrap"
//	}
//
//	step "deploy" "token" {
//	  template = "Token"
//	}
//
//	step "call" "mint" {
//	  operation "mint" {
//	    target = step.token.address
//	    args   = [operator, parse_units("1000000000", 18)]
//	  }
//	}
//
// Argument expressions are kept unevaluated as workflow.Expr bindings and
// resolved by the orchestrator against the outputs of confirmed steps.
package hclworkflow

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/ledgerboot/internal/ctxlog"
	"github.com/specialistvlad/ledgerboot/internal/fsutil"
	"github.com/specialistvlad/ledgerboot/internal/hclutil"
	"github.com/specialistvlad/ledgerboot/internal/workflow"
)

// ErrNoWorkflowFiles is returned when a directory holds no .hcl files.
var ErrNoWorkflowFiles = errors.New("no .hcl workflow files found")

var fileSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "workflow"},
		{Type: "step", LabelNames: []string{"kind", "id"}},
	},
}

type hclHeader struct {
	Name string `hcl:"name,optional"`
}

var deployBodySchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "template", Required: true},
		{Name: "args"},
	},
}

var callBodySchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "operation", LabelNames: []string{"method"}},
	},
}

var operationBodySchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "target", Required: true},
		{Name: "args"},
		{Name: "outputs"},
	},
}

// Load reads a workflow from a single .hcl file or from every .hcl file under
// a directory, then validates it.
func Load(ctx context.Context, path string) (workflow.Workflow, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading workflow from path", "path", path)

	files, err := fsutil.FindFilesByExtension(path, ".hcl")
	if err != nil {
		return workflow.Workflow{}, fmt.Errorf("failed to find workflow files in %s: %w", path, err)
	}
	if len(files) == 0 {
		return workflow.Workflow{}, fmt.Errorf("%s: %w", path, ErrNoWorkflowFiles)
	}
	logger.Debug("Found HCL files to load", "files", files)

	parser := hclparse.NewParser()
	wf := workflow.Workflow{}
	var header *hcl.Block
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return workflow.Workflow{}, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}
		h, name, steps, diags := decodeFile(hclFile.Body)
		if h != nil && header != nil {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Duplicate \"workflow\" block",
				Detail:   fmt.Sprintf("The workflow header is already declared at %s.", header.DefRange),
				Subject:  h.DefRange.Ptr(),
			})
		}
		if diags.HasErrors() {
			return workflow.Workflow{}, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}
		if h != nil {
			header = h
			wf.Name = name
		}
		wf.Steps = append(wf.Steps, steps...)
		logger.Debug("Loaded steps from HCL file", "file", file, "steps", len(steps))
	}

	if wf.Name == "" {
		wf.Name = strings.TrimSuffix(filepath.Base(path), ".hcl")
	}
	if err := wf.Validate(); err != nil {
		return workflow.Workflow{}, err
	}

	logger.Info("Workflow loaded.", "name", wf.Name, "steps", len(wf.Steps), "files", len(files))
	return wf, nil
}

// Parse decodes and validates a workflow from in-memory source.
func Parse(src []byte, filename string) (workflow.Workflow, error) {
	hclFile, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return workflow.Workflow{}, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}
	_, name, steps, diags := decodeFile(hclFile.Body)
	if diags.HasErrors() {
		return workflow.Workflow{}, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}
	wf := workflow.Workflow{Name: name, Steps: steps}
	if err := wf.Validate(); err != nil {
		return workflow.Workflow{}, err
	}
	return wf, nil
}

// decodeFile returns the file's workflow header block, if any, with the name it
// declares and the file's steps.
func decodeFile(body hcl.Body) (*hcl.Block, string, []workflow.Step, hcl.Diagnostics) {
	content, diags := body.Content(fileSchema)
	if diags.HasErrors() {
		return nil, "", nil, diags
	}

	var name string
	header, headerDiags := hclutil.FindUniqueBlock(content.Blocks, "workflow")
	diags = append(diags, headerDiags...)
	if header != nil {
		var h hclHeader
		diags = append(diags, gohcl.DecodeBody(header.Body, nil, &h)...)
		name = h.Name
	}

	var steps []workflow.Step
	for _, block := range content.Blocks {
		if block.Type != "step" {
			continue
		}
		step, stepDiags := decodeStep(block)
		diags = append(diags, stepDiags...)
		if !stepDiags.HasErrors() {
			steps = append(steps, step)
		}
	}
	return header, name, steps, diags
}

func decodeStep(block *hcl.Block) (workflow.Step, hcl.Diagnostics) {
	kind, err := workflow.ParseKind(block.Labels[0])
	if err != nil {
		return workflow.Step{}, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid step kind",
			Detail:   err.Error(),
			Subject:  block.LabelRanges[0].Ptr(),
		}}
	}
	step := workflow.Step{ID: block.Labels[1], Kind: kind}

	if kind == workflow.KindDeploy {
		op, diags := decodeDeploy(block.Body)
		if diags.HasErrors() {
			return workflow.Step{}, diags
		}
		step.Operations = []workflow.Operation{op}
		return step, diags
	}

	content, diags := block.Body.Content(callBodySchema)
	if diags.HasErrors() {
		return workflow.Step{}, diags
	}
	if len(content.Blocks) == 0 {
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Missing operation",
			Detail:   fmt.Sprintf("A %s step needs at least one operation block.", kind),
			Subject:  block.DefRange.Ptr(),
		})
		return workflow.Step{}, diags
	}
	for _, opBlock := range content.Blocks {
		op, opDiags := decodeOperation(opBlock)
		diags = append(diags, opDiags...)
		step.Operations = append(step.Operations, op)
	}
	if diags.HasErrors() {
		return workflow.Step{}, diags
	}
	return step, diags
}

func decodeDeploy(body hcl.Body) (workflow.Operation, hcl.Diagnostics) {
	content, diags := body.Content(deployBodySchema)
	if diags.HasErrors() {
		return workflow.Operation{}, diags
	}

	var op workflow.Operation
	diags = append(diags, gohcl.DecodeExpression(content.Attributes["template"].Expr, nil, &op.Template)...)
	if attr, ok := content.Attributes["args"]; ok {
		args, argDiags := decodeArgs(attr.Expr)
		diags = append(diags, argDiags...)
		op.Args = args
	}
	return op, diags
}

func decodeOperation(block *hcl.Block) (workflow.Operation, hcl.Diagnostics) {
	content, diags := block.Body.Content(operationBodySchema)
	if diags.HasErrors() {
		return workflow.Operation{}, diags
	}

	op := workflow.Operation{Method: block.Labels[0]}

	target, targetDiags := workflow.Expr(content.Attributes["target"].Expr)
	diags = append(diags, targetDiags...)
	op.Target = target

	if attr, ok := content.Attributes["args"]; ok {
		args, argDiags := decodeArgs(attr.Expr)
		diags = append(diags, argDiags...)
		op.Args = args
	}
	if attr, ok := content.Attributes["outputs"]; ok {
		diags = append(diags, gohcl.DecodeExpression(attr.Expr, nil, &op.Outputs)...)
	}
	return op, diags
}

// decodeArgs splits a tuple expression into one binding per element so each
// argument keeps its position and its own references.
func decodeArgs(expr hcl.Expression) ([]workflow.Binding, hcl.Diagnostics) {
	elems, diags := hcl.ExprList(expr)
	if diags.HasErrors() {
		return nil, diags
	}
	args := make([]workflow.Binding, 0, len(elems))
	for _, el := range elems {
		b, bDiags := workflow.Expr(el)
		diags = append(diags, bDiags...)
		args = append(args, b)
	}
	return args, diags
}

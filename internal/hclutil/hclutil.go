// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package hclutil holds small helpers shared by the HCL-facing packages.
package hclutil

import (
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclwrite"
)

// TraversalKey generates a stable, canonical string representation for an
// hcl.Traversal, e.g. step.token.address.
func TraversalKey(t hcl.Traversal) string {
	return strings.TrimSpace(string(hclwrite.TokensForTraversal(t).Bytes()))
}

// ExprString describes an expression for humans: the traversal itself when the
// expression is a plain reference, otherwise its source range.
func ExprString(expr hcl.Expression) string {
	if tr, diags := hcl.AbsTraversalForExpr(expr); !diags.HasErrors() {
		return TraversalKey(tr)
	}
	return "expression at " + expr.Range().String()
}

// FindUniqueBlock searches a slice of blocks for all blocks of a given name.
// It returns a diagnostic error if more than one block of that name is found.
// If no block is found, it returns nil.
func FindUniqueBlock(blocks hcl.Blocks, name string) (*hcl.Block, hcl.Diagnostics) {
	var found *hcl.Block
	var diags hcl.Diagnostics

	for _, block := range blocks {
		if block.Type != name {
			continue
		}
		if found != nil {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Duplicate \"" + name + "\" block",
				Detail:   "Only one \"" + name + "\" block is allowed per file.",
				Subject:  &block.DefRange,
			})
			continue
		}
		found = block
	}

	return found, diags
}

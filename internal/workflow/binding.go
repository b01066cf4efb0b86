// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
package workflow

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/ledgerboot/internal/hclutil"
	"github.com/zclconf/go-cty/cty"
)

// Scope is the view of confirmed outputs a binding resolves against.
// *registry.Registry satisfies it.
type Scope interface {
	Output(stepID, name string) (cty.Value, bool)
	Operator() string
	EvalContext() *hcl.EvalContext
}

// Ref names one output of one step.
type Ref struct {
	Step   string
	Output string
}

func (r Ref) String() string {
	return "step." + r.Step + "." + r.Output
}

// Binding produces the value of one operation input at execution time.
type Binding interface {
	// Resolve returns the bound value, or an *UnresolvedBindingError.
	Resolve(scope Scope) (cty.Value, error)
	// References lists the step outputs the binding reads.
	References() []Ref
	String() string
}

// UnresolvedBindingError means a binding could not be resolved against the
// outputs recorded so far. For a validated workflow this indicates a
// sequencing bug, not bad user input.
type UnresolvedBindingError struct {
	Binding string
	Reason  string
}

func (e *UnresolvedBindingError) Error() string {
	return fmt.Sprintf("unresolved binding %s: %s", e.Binding, e.Reason)
}

// Literal binds a fixed value.
func Literal(v cty.Value) Binding { return literal{val: v} }

// String binds a fixed string.
func String(s string) Binding { return literal{val: cty.StringVal(s)} }

// Amount binds a fixed integer amount.
func Amount(x *big.Int) Binding { return literal{val: AmountVal(x)} }

// Seconds binds a whole number of seconds.
func Seconds(n int64) Binding { return literal{val: cty.NumberIntVal(n)} }

// Output binds the named output of an earlier step.
func Output(step, name string) Binding { return ref{Ref{Step: step, Output: name}} }

// AddressOf binds the address of the service created by an earlier deploy step.
func AddressOf(step string) Binding { return Output(step, AddressOutput) }

// Operator binds the operator identity of the run.
func Operator() Binding { return operatorBinding{} }

type literal struct{ val cty.Value }

func (l literal) Resolve(Scope) (cty.Value, error) { return l.val, nil }
func (l literal) References() []Ref                { return nil }
func (l literal) String() string                   { return FormatValue(l.val) }

type ref struct{ Ref }

func (r ref) Resolve(scope Scope) (cty.Value, error) {
	v, ok := scope.Output(r.Step, r.Output)
	if !ok {
		return cty.NilVal, &UnresolvedBindingError{
			Binding: r.Ref.String(),
			Reason:  fmt.Sprintf("step %q has not recorded output %q", r.Step, r.Output),
		}
	}
	return v, nil
}

func (r ref) References() []Ref { return []Ref{r.Ref} }

type operatorBinding struct{}

func (operatorBinding) Resolve(scope Scope) (cty.Value, error) {
	return cty.StringVal(scope.Operator()), nil
}
func (operatorBinding) References() []Ref { return nil }
func (operatorBinding) String() string    { return "operator" }

// Expr binds an HCL expression evaluated against the run's outputs. Only the
// `step` and `operator` variables are allowed; `step` traversals must name
// both a step and an output.
func Expr(expr hcl.Expression) (Binding, hcl.Diagnostics) {
	var diags hcl.Diagnostics
	var refs []Ref

	for _, tr := range expr.Variables() {
		switch tr.RootName() {
		case "operator":
			if len(tr) > 1 {
				diags = append(diags, invalidReference(tr, "The operator variable has no attributes."))
			}
		case "step":
			r, ok := refFromTraversal(tr)
			if !ok {
				diags = append(diags, invalidReference(tr, "References to step outputs must have the form step.<step_id>.<output>."))
				continue
			}
			refs = append(refs, r)
		default:
			diags = append(diags, invalidReference(tr, fmt.Sprintf("Unknown variable %q; only step and operator are available.", tr.RootName())))
		}
	}
	if diags.HasErrors() {
		return nil, diags
	}
	return exprBinding{expr: expr, refs: refs}, nil
}

type exprBinding struct {
	expr hcl.Expression
	refs []Ref
}

func (b exprBinding) Resolve(scope Scope) (cty.Value, error) {
	for _, r := range b.refs {
		if _, ok := scope.Output(r.Step, r.Output); !ok {
			return cty.NilVal, &UnresolvedBindingError{
				Binding: b.String(),
				Reason:  fmt.Sprintf("%s has not been recorded", r),
			}
		}
	}

	ctx := scope.EvalContext()
	ctx.Functions = Functions()
	v, diags := b.expr.Value(ctx)
	if diags.HasErrors() {
		return cty.NilVal, &UnresolvedBindingError{Binding: b.String(), Reason: diags.Error()}
	}
	if !v.IsWhollyKnown() || v.IsNull() {
		return cty.NilVal, &UnresolvedBindingError{Binding: b.String(), Reason: "expression produced no value"}
	}
	return v, nil
}

func (b exprBinding) References() []Ref { return b.refs }

func (b exprBinding) String() string {
	return hclutil.ExprString(b.expr)
}

func refFromTraversal(tr hcl.Traversal) (Ref, bool) {
	if len(tr) < 3 {
		return Ref{}, false
	}
	stepAttr, ok1 := tr[1].(hcl.TraverseAttr)
	outAttr, ok2 := tr[2].(hcl.TraverseAttr)
	if !ok1 || !ok2 {
		return Ref{}, false
	}
	return Ref{Step: stepAttr.Name, Output: outAttr.Name}, true
}

func invalidReference(tr hcl.Traversal, detail string) *hcl.Diagnostic {
	return &hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  "Invalid reference",
		Detail:   detail,
		Subject:  tr.SourceRange().Ptr(),
	}
}

// AmountVal converts an integer amount into a cty number without loss.
func AmountVal(x *big.Int) cty.Value {
	return cty.NumberVal(new(big.Float).SetInt(x))
}

// FormatValue renders a resolved value for logs and reports.
func FormatValue(v cty.Value) string {
	switch {
	case v.Type() == cty.NilType || v.IsNull():
		return "null"
	case !v.IsKnown():
		return "(unknown)"
	case v.Type() == cty.String:
		return strconv.Quote(v.AsString())
	case v.Type() == cty.Number:
		return v.AsBigFloat().Text('f', -1)
	case v.Type() == cty.Bool:
		return strconv.FormatBool(v.True())
	case v.Type().IsTupleType() || v.Type().IsListType():
		parts := make([]string, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, el := it.Element()
			parts = append(parts, FormatValue(el))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return v.GoString()
	}
}

// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
package orchestrator

import (
	"fmt"
	"math/big"

	"github.com/specialistvlad/ledgerboot/internal/ledger"
	"github.com/specialistvlad/ledgerboot/internal/workflow"
	"github.com/zclconf/go-cty/cty"
)

// resolveArgs resolves every binding and converts it to a ledger value.
func resolveArgs(bindings []workflow.Binding, scope workflow.Scope) ([]any, error) {
	args := make([]any, 0, len(bindings))
	for i, b := range bindings {
		v, err := b.Resolve(scope)
		if err != nil {
			return nil, err
		}
		arg, err := toLedger(v)
		if err != nil {
			return nil, &workflow.UnresolvedBindingError{
				Binding: b.String(),
				Reason:  fmt.Sprintf("argument %d: %v", i+1, err),
			}
		}
		args = append(args, arg)
	}
	return args, nil
}

func resolveTarget(b workflow.Binding, scope workflow.Scope) (ledger.Address, error) {
	v, err := b.Resolve(scope)
	if err != nil {
		return "", err
	}
	if v.Type() != cty.String {
		return "", &workflow.UnresolvedBindingError{Binding: b.String(), Reason: "target must be an address"}
	}
	addr, err := ledger.ParseAddress(v.AsString())
	if err != nil {
		return "", &workflow.UnresolvedBindingError{Binding: b.String(), Reason: err.Error()}
	}
	return addr, nil
}

// toLedger converts a resolved binding into the value set the ledger accepts:
// strings (names and addresses) and whole-number amounts.
func toLedger(v cty.Value) (any, error) {
	switch {
	case v.Type() == cty.String:
		return v.AsString(), nil
	case v.Type() == cty.Number:
		return workflow.AmountFromValue(v)
	case v.Type() == cty.Bool:
		return v.True(), nil
	default:
		return nil, fmt.Errorf("unsupported value type %s", v.Type().FriendlyName())
	}
}

// toCty converts a value returned by the ledger into the registry currency.
func toCty(v any) (cty.Value, error) {
	switch val := v.(type) {
	case ledger.Address:
		return cty.StringVal(val.String()), nil
	case string:
		return cty.StringVal(val), nil
	case *big.Int:
		if val == nil {
			return cty.NilVal, fmt.Errorf("nil amount")
		}
		return workflow.AmountVal(val), nil
	case bool:
		return cty.BoolVal(val), nil
	case int:
		return cty.NumberIntVal(int64(val)), nil
	case int64:
		return cty.NumberIntVal(val), nil
	case uint64:
		return cty.NumberUIntVal(val), nil
	default:
		return cty.NilVal, fmt.Errorf("unsupported ledger value %T", v)
	}
}

func formatArgs(args []any) []string {
	if len(args) == 0 {
		return nil
	}
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = ledger.FormatValue(a)
	}
	return out
}

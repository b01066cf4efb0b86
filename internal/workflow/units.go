// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
package workflow

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/gocty"
)

// maxDecimals bounds the scale accepted by ParseUnits and FormatUnits.
const maxDecimals = 77

// ParseUnits converts a decimal string such as "1.5" into an integer amount
// scaled by 10^decimals. More fractional digits than decimals is an error.
func ParseUnits(s string, decimals uint8) (*big.Int, error) {
	if decimals > maxDecimals {
		return nil, fmt.Errorf("decimals %d out of range", decimals)
	}
	s = strings.TrimSpace(s)
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	if strings.HasPrefix(whole, "-") || strings.HasPrefix(whole, "+") {
		return nil, fmt.Errorf("invalid amount %q: sign not allowed", s)
	}
	if len(frac) > int(decimals) {
		return nil, fmt.Errorf("invalid amount %q: more than %d fractional digits", s, decimals)
	}
	digits := whole + frac + strings.Repeat("0", int(decimals)-len(frac))
	for _, r := range digits {
		if r < '0' || r > '9' {
			return nil, fmt.Errorf("invalid amount %q", s)
		}
	}
	n, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return n, nil
}

// MustParseUnits is ParseUnits for constants; it panics on error.
func MustParseUnits(s string, decimals uint8) *big.Int {
	n, err := ParseUnits(s, decimals)
	if err != nil {
		panic(err)
	}
	return n
}

// FormatUnits renders an integer amount scaled by 10^decimals as a decimal
// string, keeping at least one fractional digit ("100.0").
func FormatUnits(x *big.Int, decimals uint8) string {
	neg := x.Sign() < 0
	digits := new(big.Int).Abs(x).String()
	if len(digits) <= int(decimals) {
		digits = strings.Repeat("0", int(decimals)-len(digits)+1) + digits
	}
	whole := digits[:len(digits)-int(decimals)]
	frac := strings.TrimRight(digits[len(digits)-int(decimals):], "0")
	if frac == "" {
		frac = "0"
	}
	out := whole + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}

// ParseUnitsFunc is the HCL function parse_units(amount, decimals).
var ParseUnitsFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "amount", Type: cty.String},
		{Name: "decimals", Type: cty.Number},
	},
	Type: function.StaticReturnType(cty.Number),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		var decimals uint8
		if err := gocty.FromCtyValue(args[1], &decimals); err != nil {
			return cty.UnknownVal(cty.Number), function.NewArgError(1, err)
		}
		n, err := ParseUnits(args[0].AsString(), decimals)
		if err != nil {
			return cty.UnknownVal(cty.Number), function.NewArgError(0, err)
		}
		return AmountVal(n), nil
	},
})

// FormatUnitsFunc is the HCL function format_units(amount, decimals).
var FormatUnitsFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "amount", Type: cty.Number},
		{Name: "decimals", Type: cty.Number},
	},
	Type: function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		var decimals uint8
		if err := gocty.FromCtyValue(args[1], &decimals); err != nil {
			return cty.UnknownVal(cty.String), function.NewArgError(1, err)
		}
		n, err := AmountFromValue(args[0])
		if err != nil {
			return cty.UnknownVal(cty.String), function.NewArgError(0, err)
		}
		return cty.StringVal(FormatUnits(n, decimals)), nil
	},
})

// Functions returns the functions available to workflow expressions.
func Functions() map[string]function.Function {
	return map[string]function.Function{
		"parse_units":  ParseUnitsFunc,
		"format_units": FormatUnitsFunc,
	}
}

// AmountFromValue converts a cty number into an integer amount. Fractional
// values are rejected.
func AmountFromValue(v cty.Value) (*big.Int, error) {
	if v.IsNull() || !v.IsKnown() || v.Type() != cty.Number {
		return nil, fmt.Errorf("expected a known number, got %s", FormatValue(v))
	}
	bf := v.AsBigFloat()
	if !bf.IsInt() {
		return nil, fmt.Errorf("amount %s is not a whole number", bf.Text('f', -1))
	}
	n, _ := bf.Int(nil)
	return n, nil
}

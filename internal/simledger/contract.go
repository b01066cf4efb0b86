// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file holds the small amount of machinery shared by every service template:
// a typed method table, argument normalization, reverts, and the execution
// environment used for nested calls between services.
//
// Why a method table instead of reflection?
//
// The ledger has to reject malformed operations at submission time, before they
// touch any state. A declared list of argument kinds per method gives Submit enough
// information to check arity and types up front, and gives execution a guarantee
// that every argument already has its canonical Go type.
package simledger

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/specialistvlad/ledgerboot/internal/ledger"
)

type argKind int

const (
	argAddress argKind = iota
	argAmount
	argString
)

func (k argKind) String() string {
	switch k {
	case argAddress:
		return "address"
	case argAmount:
		return "amount"
	case argString:
		return "string"
	default:
		return "unknown"
	}
}

// method is one entry of a service's method table.
type method struct {
	args     []argKind
	readOnly bool
	fn       func(e *env, args []any) ([]any, error)
}

// service is a deployed instance of a template.
type service interface {
	methods() map[string]method
}

// template creates a service when a deploy operation is confirmed.
type template struct {
	args   []argKind
	create func(e *env, args []any) (service, error)
}

// revert is returned by a method to abort the operation. A method must return it
// before mutating any state so that a reverted operation leaves no trace.
type revert string

func (r revert) Error() string {
	return string(r)
}

func reverted(format string, args ...any) error {
	return revert(fmt.Sprintf(format, args...))
}

// env is the execution environment of a single method invocation.
type env struct {
	ledger *Ledger
	sender ledger.Address
	self   ledger.Address
	now    time.Time
}

// call invokes a state-mutating method on another service with self as the sender.
func (e *env) call(target ledger.Address, name string, args ...any) ([]any, error) {
	return e.invoke(target, name, false, args)
}

// query invokes a read-only method on another service.
func (e *env) query(target ledger.Address, name string, args ...any) ([]any, error) {
	return e.invoke(target, name, true, args)
}

func (e *env) invoke(target ledger.Address, name string, readOnly bool, args []any) ([]any, error) {
	svc, ok := e.ledger.services[target]
	if !ok {
		return nil, reverted("call to unknown service %s", target)
	}
	m, ok := svc.methods()[name]
	if !ok || m.readOnly != readOnly {
		return nil, reverted("service %s has no method %s", target, name)
	}
	normalized, err := normalizeArgs(m.args, args)
	if err != nil {
		return nil, reverted("bad arguments to %s: %v", name, err)
	}
	nested := &env{ledger: e.ledger, sender: e.self, self: target, now: e.now}
	return m.fn(nested, normalized)
}

// queryAmount runs a read-only call that returns a single amount.
func (e *env) queryAmount(target ledger.Address, name string, args ...any) (*big.Int, error) {
	out, err := e.query(target, name, args...)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, reverted("%s returned %d values", name, len(out))
	}
	amount, ok := out[0].(*big.Int)
	if !ok {
		return nil, reverted("%s did not return an amount", name)
	}
	return amount, nil
}

var errArity = errors.New("wrong number of arguments")

// normalizeArgs checks args against kinds and converts each to its canonical type:
// ledger.Address, *big.Int (copied, never negative) or string.
func normalizeArgs(kinds []argKind, args []any) ([]any, error) {
	if len(kinds) != len(args) {
		return nil, fmt.Errorf("%w: want %d, got %d", errArity, len(kinds), len(args))
	}
	out := make([]any, len(args))
	for i, kind := range kinds {
		v, err := normalizeArg(kind, args[i])
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func normalizeArg(kind argKind, v any) (any, error) {
	switch kind {
	case argAddress:
		switch a := v.(type) {
		case ledger.Address:
			return ledger.ParseAddress(string(a))
		case string:
			return ledger.ParseAddress(a)
		}
	case argAmount:
		var n *big.Int
		switch a := v.(type) {
		case *big.Int:
			if a != nil {
				n = new(big.Int).Set(a)
			}
		case int:
			n = big.NewInt(int64(a))
		case int64:
			n = big.NewInt(a)
		case uint64:
			n = new(big.Int).SetUint64(a)
		}
		if n != nil {
			if n.Sign() < 0 {
				return nil, fmt.Errorf("negative amount %s", n)
			}
			return n, nil
		}
	case argString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	}
	return nil, fmt.Errorf("expected %s, got %T", kind, v)
}

// balanceIn returns a copy of the balance held by addr in m, zero if absent.
func balanceIn(m map[ledger.Address]*big.Int, addr ledger.Address) *big.Int {
	if b, ok := m[addr]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// mulDiv returns a*b/c rounded down, or rounded up when ceil is set.
func mulDiv(a, b, c *big.Int, ceil bool) *big.Int {
	num := new(big.Int).Mul(a, b)
	q, r := new(big.Int).QuoRem(num, c, new(big.Int))
	if ceil && r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package ledger defines the contract between the bootstrap orchestrator and the
// shared, ordered, append-only substrate that records state-mutating operations.
//
// # Why a Client interface?
//
// The orchestrator only needs three things from a ledger: a way to submit an
// operation, a way to block until that operation is final, and a read-only query
// path. Everything else (transport, signing, gas, block production) is a detail of
// a concrete implementation. Keeping the contract this narrow lets the orchestrator
// be tested against a recording fake and run against the in-process ledger in
// internal/simledger without any change.
//
// # Operation lifecycle
//
//	Submit/Deploy ──▶ PendingOperation ──AwaitConfirmation──▶ ConfirmedOperation
//	                                      └─────────────────▶ ExecutionError / TimeoutError
//
// Both outcomes are terminal. A pending operation is never retried by this package.
package ledger

import (
	"context"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Address identifies an account or a deployed service on the ledger.
type Address string

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ParseAddress validates and normalizes a textual address.
func ParseAddress(s string) (Address, error) {
	if !addressPattern.MatchString(s) {
		return "", fmt.Errorf("malformed address %q", s)
	}
	return Address(strings.ToLower(s)), nil
}

func (a Address) String() string {
	return string(a)
}

// OperationKind distinguishes a service creation from a call on an existing service.
type OperationKind int

const (
	// KindCall is a state-mutating call on an already deployed service.
	KindCall OperationKind = iota
	// KindDeploy creates a new service from a template.
	KindDeploy
)

func (k OperationKind) String() string {
	switch k {
	case KindDeploy:
		return "deploy"
	case KindCall:
		return "call"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// PendingOperation is the handle returned on submission. It is accepted by the
// ledger but not yet final.
type PendingOperation struct {
	ID    uuid.UUID
	Nonce uint64
	Kind  OperationKind

	// Template is set for deploy operations, Target and Method for calls.
	Template string
	Target   Address
	Method   string
	Args     []any

	SubmittedAt time.Time
}

// Describe returns a short human-readable form, e.g. "call approve@0xab.." or "deploy Token".
func (p *PendingOperation) Describe() string {
	if p.Kind == KindDeploy {
		return "deploy " + p.Template
	}
	return fmt.Sprintf("call %s@%s", p.Method, p.Target)
}

// ConfirmedOperation is a PendingOperation the ledger has durably committed.
type ConfirmedOperation struct {
	PendingOperation

	ConfirmedAt time.Time
	Block       uint64

	// Created is the address of the new service for deploy operations.
	Created Address

	// ReturnValues holds the values returned by the called method, in order.
	ReturnValues []any
}

// Client is the orchestrator's view of a ledger.
//
// Implementations must serialize operations of the operator identity: while an
// operation is pending, a further Submit or Deploy may be rejected with a
// SubmissionError.
type Client interface {
	// Operator returns the single identity every operation is submitted as.
	Operator() Address

	// Deploy submits the creation of a new service from a named template.
	Deploy(ctx context.Context, template string, args ...any) (*PendingOperation, error)

	// Submit submits a state-mutating call of method on the service at target.
	Submit(ctx context.Context, target Address, method string, args ...any) (*PendingOperation, error)

	// AwaitConfirmation blocks until op is final or ctx is done.
	AwaitConfirmation(ctx context.Context, op *PendingOperation) (*ConfirmedOperation, error)

	// Query performs a read-only call. It needs no confirmation.
	Query(ctx context.Context, target Address, method string, args ...any) ([]any, error)
}

// FormatValue renders a ledger value for logs and reports.
func FormatValue(v any) string {
	switch val := v.(type) {
	case *big.Int:
		return val.String()
	case Address:
		return val.String()
	case string:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

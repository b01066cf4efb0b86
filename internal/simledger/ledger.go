// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package simledger provides an in-process implementation of ledger.Client.
//
// # Why an in-process ledger?
//
// The bootstrap orchestrator is only interesting against a substrate that behaves
// like a real one: operations are accepted first and become final later, the
// operator's operations are ordered by a strictly increasing sequence counter,
// accepted operations can still revert, and new services get addresses that are
// unknown until confirmation. This package models exactly those properties and
// nothing about networking, signing or fees.
//
// # Semantics
//
//   - One operation of the operator may be in flight at a time. Submitting another
//     before the first is confirmed is rejected with a ledger.SubmissionError.
//   - Each confirmation produces one block. The simulated clock advances by the
//     block interval per block, so epoch-based services see time pass.
//   - A reverted operation consumes its nonce and its block but changes no state.
//   - Service addresses are derived from the operator and the nonce, so running the
//     same workflow twice deploys two independent sets of services.
package simledger

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/specialistvlad/ledgerboot/internal/ledger"
)

// DefaultOperator is the operator identity used when none is configured.
const DefaultOperator ledger.Address = "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"

// ErrUnknownOperation is returned when awaiting an operation this ledger is not tracking.
var ErrUnknownOperation = errors.New("operation is not pending on this ledger")

// Status is the terminal state of an operation recorded in a Receipt.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusReverted  Status = "reverted"
)

// Receipt records the outcome of one operation, in block order.
type Receipt struct {
	Op      ledger.PendingOperation
	Block   uint64
	At      time.Time
	Status  Status
	Reason  string
	Created ledger.Address
}

// Ledger is an in-memory ledger. It is safe for concurrent use, although the
// orchestrator drives it from a single flow of control.
type Ledger struct {
	mu sync.Mutex

	operator ledger.Address
	nonce    uint64
	inFlight *ledger.PendingOperation

	templates map[string]template
	services  map[ledger.Address]service

	now           time.Time
	blockInterval time.Duration
	blockTime     time.Duration
	height        uint64
	receipts      []Receipt
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithOperator sets the operator identity.
func WithOperator(addr ledger.Address) Option {
	return func(l *Ledger) { l.operator = addr }
}

// WithBlockTime sets the real time AwaitConfirmation waits before an operation
// becomes final. Zero confirms immediately. An operation whose wait was cut
// short stays in flight: further submissions are rejected until a later
// AwaitConfirmation for it completes.
func WithBlockTime(d time.Duration) Option {
	return func(l *Ledger) { l.blockTime = d }
}

// WithBlockInterval sets how far the simulated clock advances per block.
func WithBlockInterval(d time.Duration) Option {
	return func(l *Ledger) { l.blockInterval = d }
}

// WithGenesis sets the simulated time of the genesis block.
func WithGenesis(t time.Time) Option {
	return func(l *Ledger) { l.now = t }
}

// New creates a ledger with the Token, StakingVault and RewardContract templates installed.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		operator:      DefaultOperator,
		templates:     make(map[string]template),
		services:      make(map[ledger.Address]service),
		now:           time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		blockInterval: 12 * time.Second,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.templates[TemplateToken] = tokenTemplate
	l.templates[TemplateStakingVault] = vaultTemplate
	l.templates[TemplateRewardContract] = rewardTemplate
	return l
}

var _ ledger.Client = (*Ledger)(nil)

// Operator implements ledger.Client.
func (l *Ledger) Operator() ledger.Address {
	return l.operator
}

// Deploy implements ledger.Client.
func (l *Ledger) Deploy(ctx context.Context, name string, args ...any) (*ledger.PendingOperation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	describe := "deploy " + name
	tmpl, ok := l.templates[name]
	if !ok {
		return nil, &ledger.SubmissionError{Operation: describe, Err: fmt.Errorf("unknown template %q", name)}
	}
	normalized, err := normalizeArgs(tmpl.args, args)
	if err != nil {
		return nil, &ledger.SubmissionError{Operation: describe, Err: err}
	}
	return l.accept(&ledger.PendingOperation{
		Kind:     ledger.KindDeploy,
		Template: name,
		Args:     normalized,
	})
}

// Submit implements ledger.Client.
func (l *Ledger) Submit(ctx context.Context, target ledger.Address, name string, args ...any) (*ledger.PendingOperation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	describe := fmt.Sprintf("call %s@%s", name, target)
	m, err := l.lookup(target, name, false)
	if err != nil {
		return nil, &ledger.SubmissionError{Operation: describe, Err: err}
	}
	normalized, err := normalizeArgs(m.args, args)
	if err != nil {
		return nil, &ledger.SubmissionError{Operation: describe, Err: err}
	}
	return l.accept(&ledger.PendingOperation{
		Kind:   ledger.KindCall,
		Target: target,
		Method: name,
		Args:   normalized,
	})
}

// accept assigns the next nonce and makes op the in-flight operation. l.mu must be held.
func (l *Ledger) accept(op *ledger.PendingOperation) (*ledger.PendingOperation, error) {
	if l.inFlight != nil {
		return nil, &ledger.SubmissionError{
			Operation: op.Describe(),
			Err:       fmt.Errorf("nonce %d is still pending (%s)", l.inFlight.Nonce, l.inFlight.Describe()),
		}
	}
	op.ID = uuid.New()
	op.Nonce = l.nonce
	op.SubmittedAt = l.now
	l.nonce++
	l.inFlight = op
	return op, nil
}

// AwaitConfirmation implements ledger.Client. The operation is executed when it
// becomes final; a revert is reported as a ledger.ExecutionError. A context
// deadline is reported as a ledger.TimeoutError, a cancellation as the wrapped
// context error. Either way the operation stays pending and may be awaited again.
func (l *Ledger) AwaitConfirmation(ctx context.Context, op *ledger.PendingOperation) (*ledger.ConfirmedOperation, error) {
	if !l.isInFlight(op) {
		return nil, fmt.Errorf("await %s: %w", op.Describe(), ErrUnknownOperation)
	}

	started := time.Now()
	if l.blockTime > 0 {
		timer := time.NewTimer(l.blockTime)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, waitAborted(ctx, op, started)
		}
	} else if ctx.Err() != nil {
		return nil, waitAborted(ctx, op, started)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inFlight == nil || l.inFlight.ID != op.ID {
		return nil, fmt.Errorf("await %s: %w", op.Describe(), ErrUnknownOperation)
	}
	l.inFlight = nil
	l.height++
	l.now = l.now.Add(l.blockInterval)

	receipt := Receipt{Op: *op, Block: l.height, At: l.now}
	confirmed, err := l.execute(op)
	if err != nil {
		var r revert
		if !errors.As(err, &r) {
			return nil, err
		}
		receipt.Status = StatusReverted
		receipt.Reason = r.Error()
		l.receipts = append(l.receipts, receipt)
		return nil, &ledger.ExecutionError{Op: op, Reason: r.Error()}
	}

	receipt.Status = StatusConfirmed
	receipt.Created = confirmed.Created
	l.receipts = append(l.receipts, receipt)
	confirmed.ConfirmedAt = l.now
	confirmed.Block = l.height
	return confirmed, nil
}

func waitAborted(ctx context.Context, op *ledger.PendingOperation, started time.Time) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &ledger.TimeoutError{Op: op, Waited: time.Since(started)}
	}
	return fmt.Errorf("await %s: %w", op.Describe(), ctx.Err())
}

func (l *Ledger) isInFlight(op *ledger.PendingOperation) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return op != nil && l.inFlight != nil && l.inFlight.ID == op.ID
}

// execute applies op to the state. l.mu must be held.
func (l *Ledger) execute(op *ledger.PendingOperation) (*ledger.ConfirmedOperation, error) {
	confirmed := &ledger.ConfirmedOperation{PendingOperation: *op}

	if op.Kind == ledger.KindDeploy {
		addr := deriveAddress(l.operator, op.Nonce)
		e := &env{ledger: l, sender: l.operator, self: addr, now: l.now}
		svc, err := l.templates[op.Template].create(e, op.Args)
		if err != nil {
			return nil, err
		}
		l.services[addr] = svc
		confirmed.Created = addr
		return confirmed, nil
	}

	m, err := l.lookup(op.Target, op.Method, false)
	if err != nil {
		return nil, revert(err.Error())
	}
	e := &env{ledger: l, sender: l.operator, self: op.Target, now: l.now}
	out, err := m.fn(e, op.Args)
	if err != nil {
		return nil, err
	}
	confirmed.ReturnValues = out
	return confirmed, nil
}

// Query implements ledger.Client.
func (l *Ledger) Query(ctx context.Context, target ledger.Address, name string, args ...any) ([]any, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	describe := fmt.Sprintf("query %s@%s", name, target)
	m, err := l.lookup(target, name, true)
	if err != nil {
		return nil, &ledger.SubmissionError{Operation: describe, Err: err}
	}
	normalized, err := normalizeArgs(m.args, args)
	if err != nil {
		return nil, &ledger.SubmissionError{Operation: describe, Err: err}
	}
	e := &env{ledger: l, sender: l.operator, self: target, now: l.now}
	out, err := m.fn(e, normalized)
	if err != nil {
		var r revert
		if errors.As(err, &r) {
			return nil, &ledger.ExecutionError{Reason: r.Error()}
		}
		return nil, err
	}
	return out, nil
}

// lookup finds a method of the right mutability on a deployed service. l.mu must be held.
func (l *Ledger) lookup(target ledger.Address, name string, readOnly bool) (method, error) {
	svc, ok := l.services[target]
	if !ok {
		return method{}, fmt.Errorf("no service deployed at %s", target)
	}
	m, ok := svc.methods()[name]
	if !ok {
		return method{}, fmt.Errorf("service at %s has no method %q", target, name)
	}
	if m.readOnly != readOnly {
		if readOnly {
			return method{}, fmt.Errorf("method %q mutates state and cannot be queried", name)
		}
		return method{}, fmt.Errorf("method %q is read-only and cannot be submitted", name)
	}
	return m, nil
}

// Receipts returns a copy of the operation history in block order.
func (l *Ledger) Receipts() []Receipt {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Receipt, len(l.receipts))
	copy(out, l.receipts)
	return out
}

// Now returns the simulated time of the latest block.
func (l *Ledger) Now() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.now
}

// Nonce returns the next sequence number of the operator.
func (l *Ledger) Nonce() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nonce
}

// deriveAddress computes the address of a service created by sender at nonce.
func deriveAddress(sender ledger.Address, nonce uint64) ledger.Address {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], nonce)
	h := sha256.New()
	h.Write([]byte(sender))
	h.Write(buf[:])
	return ledger.Address("0x" + hex.EncodeToString(h.Sum(nil)[:20]))
}

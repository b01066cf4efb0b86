// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the three ways an operation can fail on the ledger.
//
//   - SubmissionError: the ledger refused the operation before accepting it
//     (malformed arguments, unknown target, sequence conflict, authorization).
//   - ExecutionError: the operation was accepted but reverted while being processed.
//   - TimeoutError: finality was not observed within the allowed wait.
//
// None of them is recovered locally. Callers inspect them with errors.As.
package ledger

import (
	"fmt"
	"time"
)

// SubmissionError reports an operation rejected before it entered the ledger.
type SubmissionError struct {
	Operation string
	Err       error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission of %s rejected: %v", e.Operation, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// ExecutionError reports an accepted operation that reverted. It carries the
// failed operation and the ledger's reason.
type ExecutionError struct {
	Op     *PendingOperation
	Reason string
}

func (e *ExecutionError) Error() string {
	if e.Op == nil {
		return "execution reverted: " + e.Reason
	}
	return fmt.Sprintf("%s (nonce %d) reverted: %s", e.Op.Describe(), e.Op.Nonce, e.Reason)
}

// TimeoutError reports that no finality was observed within the wait window.
type TimeoutError struct {
	Op     *PendingOperation
	Waited time.Duration
}

func (e *TimeoutError) Error() string {
	if e.Op == nil {
		return fmt.Sprintf("no confirmation after %s", e.Waited)
	}
	return fmt.Sprintf("%s (nonce %d) not confirmed after %s", e.Op.Describe(), e.Op.Nonce, e.Waited)
}

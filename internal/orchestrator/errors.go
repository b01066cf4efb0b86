// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
package orchestrator

import (
	"errors"
	"fmt"
)

// ErrOutputMismatch means a confirmed operation did not return the values its
// step declared as outputs.
var ErrOutputMismatch = errors.New("confirmed operation does not match declared outputs")

// StepError attaches the failing step to the underlying cause. Steps before
// Index were confirmed and remain applied; steps after it were never submitted.
type StepError struct {
	Index     int
	StepID    string
	Operation string
	Cause     error
}

func (e *StepError) Error() string {
	if e.Operation == "" {
		return fmt.Sprintf("step #%d %q failed: %v", e.Index+1, e.StepID, e.Cause)
	}
	return fmt.Sprintf("step #%d %q failed at %s: %v", e.Index+1, e.StepID, e.Operation, e.Cause)
}

func (e *StepError) Unwrap() error {
	return e.Cause
}

// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package workflow defines bootstrap workflows as data.
//
// # Why steps as data?
//
// A workflow is an ordered slice of Step values. Each step declares the
// operations it submits and, through Bindings, exactly which outputs of earlier
// steps it consumes. Because the dependency order is data rather than control
// flow, Validate can reject a broken workflow before a single operation reaches
// the ledger, and tests can build partial workflows from the same building
// blocks the fixed Bootstrap table uses.
//
// The ordering rule is deliberately strict: a step may only reference outputs
// of steps that appear before it. The step list is a DAG flattened into a total
// order, so there is nothing to schedule; the orchestrator simply walks it.
package workflow

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/ledgerboot/internal/registry"
)

// AddressOutput is the output recorded by every deploy step.
const AddressOutput = registry.AddressOutput

// ErrInvalidWorkflow is wrapped by every error returned from Validate.
var ErrInvalidWorkflow = errors.New("invalid workflow")

// Kind classifies what a step does on the ledger.
type Kind int

const (
	// KindDeploy creates a new service from a template.
	KindDeploy Kind = iota
	// KindCall submits state-mutating operations and awaits their confirmation.
	KindCall
	// KindQuery performs read-only operations; nothing is submitted.
	KindQuery
)

func (k Kind) String() string {
	switch k {
	case KindDeploy:
		return "deploy"
	case KindCall:
		return "call"
	case KindQuery:
		return "query"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind maps the textual kind used in workflow files to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "deploy":
		return KindDeploy, nil
	case "call":
		return KindCall, nil
	case "query":
		return KindQuery, nil
	default:
		return 0, fmt.Errorf("unknown step kind %q (expected deploy, call or query)", s)
	}
}

// Operation is a single ledger interaction. Deploy operations set Template;
// call and query operations set Target and Method.
type Operation struct {
	Template string
	Target   Binding
	Method   string
	Args     []Binding
	// Outputs names return values positionally. Deploy operations always
	// produce AddressOutput and must leave this empty.
	Outputs []string
}

// Name describes the operation for logs and errors.
func (o Operation) Name() string {
	if o.Template != "" {
		return "deploy " + o.Template
	}
	return o.Method
}

// References lists every step output the operation reads.
func (o Operation) References() []Ref {
	var refs []Ref
	if o.Target != nil {
		refs = append(refs, o.Target.References()...)
	}
	for _, a := range o.Args {
		if a != nil {
			refs = append(refs, a.References()...)
		}
	}
	return refs
}

// Step is one named unit of the workflow. Its operations run strictly in order.
type Step struct {
	ID         string
	Kind       Kind
	Operations []Operation
}

// Produces returns the names of the outputs the step records on success.
func (s Step) Produces() []string {
	if s.Kind == KindDeploy {
		return []string{AddressOutput}
	}
	var out []string
	for _, op := range s.Operations {
		out = append(out, op.Outputs...)
	}
	return out
}

// Workflow is an ordered list of steps.
type Workflow struct {
	Name  string
	Steps []Step
}

// Step returns the step with the given id.
func (w Workflow) Step(id string) (Step, bool) {
	for _, s := range w.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return Step{}, false
}

// Validate checks the structure of every step and the ordering invariant: each
// reference names an output that an earlier step produces. All problems are
// reported together.
func (w Workflow) Validate() error {
	var errs []error
	fail := func(i int, id, format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: step #%d %q: %s", ErrInvalidWorkflow, i+1, id, fmt.Sprintf(format, args...)))
	}

	if len(w.Steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalidWorkflow)
	}

	produced := make(map[string]map[string]bool, len(w.Steps))
	later := make(map[string]int, len(w.Steps))
	for i, s := range w.Steps {
		if _, dup := later[s.ID]; !dup {
			later[s.ID] = i
		}
	}

	for i, s := range w.Steps {
		if s.ID == "" {
			fail(i, s.ID, "missing id")
		}
		if _, dup := produced[s.ID]; dup {
			fail(i, s.ID, "duplicate step id")
			continue
		}
		for _, msg := range checkShape(s) {
			fail(i, s.ID, "%s", msg)
		}

		for _, op := range s.Operations {
			for _, r := range op.References() {
				outs, done := produced[r.Step]
				switch {
				case r.Step == s.ID:
					fail(i, s.ID, "%s refers to its own step; outputs are recorded only after the step completes", r)
				case !done:
					if j, exists := later[r.Step]; exists && j > i {
						fail(i, s.ID, "%s is a forward reference to step #%d", r, j+1)
					} else {
						fail(i, s.ID, "%s refers to an unknown step", r)
					}
				case !outs[r.Output]:
					fail(i, s.ID, "%s: step %q does not produce output %q", r, r.Step, r.Output)
				}
			}
		}

		outs := make(map[string]bool)
		for _, name := range s.Produces() {
			if outs[name] {
				fail(i, s.ID, "output %q declared twice", name)
			}
			outs[name] = true
		}
		produced[s.ID] = outs
	}

	return errors.Join(errs...)
}

func checkShape(s Step) []string {
	var problems []string
	if len(s.Operations) == 0 {
		problems = append(problems, "no operations")
	}
	if s.Kind == KindDeploy && len(s.Operations) > 1 {
		problems = append(problems, "a deploy step creates exactly one service")
	}
	for n, op := range s.Operations {
		switch s.Kind {
		case KindDeploy:
			if op.Template == "" {
				problems = append(problems, fmt.Sprintf("operation %d: deploy needs a template", n+1))
			}
			if op.Target != nil || op.Method != "" {
				problems = append(problems, fmt.Sprintf("operation %d: deploy takes no target or method", n+1))
			}
			if len(op.Outputs) > 0 {
				problems = append(problems, fmt.Sprintf("operation %d: deploy outputs are implicit", n+1))
			}
		case KindCall, KindQuery:
			if op.Template != "" {
				problems = append(problems, fmt.Sprintf("operation %d: only deploy steps take a template", n+1))
			}
			if op.Target == nil || op.Method == "" {
				problems = append(problems, fmt.Sprintf("operation %d: needs a target and a method", n+1))
			}
		default:
			problems = append(problems, fmt.Sprintf("unknown kind %s", s.Kind))
			return problems
		}
		for k, a := range op.Args {
			if a == nil {
				problems = append(problems, fmt.Sprintf("operation %d: argument %d is empty", n+1, k+1))
			}
		}
	}
	return problems
}

// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package registry holds the outputs of confirmed workflow steps.
//
// # Why an immutable accumulator?
//
// The registry is the only state a bootstrap run carries from one step to the
// next. Instead of a package-level map that every step mutates, a run threads a
// *Registry value through its step loop: each confirmed step produces a new
// registry via With, and the previous value is left untouched. This keeps the
// orchestrator reentrant (every run starts from New) and makes the invariant easy
// to check: a registry only ever contains outputs of steps that were confirmed
// before it was created.
//
// # Output naming
//
// Outputs are addressed as step.<step_id>.<output>. Deploy steps always record
// "address"; other steps record whatever return values they declare. The same
// names are exposed to HCL expressions through EvalContext.
//
// Only steps recorded with WithService yield a ServiceHandle. A call or query
// step that happens to return an output named "address" does not.
package registry

import (
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// AddressOutput is the output name under which a deploy step records the new
// service address.
const AddressOutput = "address"

// ServiceHandle identifies a service created by a deploy step.
type ServiceHandle struct {
	Name    string
	Address string
}

// Registry is an immutable snapshot of the outputs of confirmed steps.
type Registry struct {
	operator string
	order    []string
	outputs  map[string]map[string]cty.Value
	services map[string]bool
}

// New returns an empty registry for a run submitted as operator.
func New(operator string) *Registry {
	return &Registry{
		operator: operator,
		outputs:  make(map[string]map[string]cty.Value),
		services: make(map[string]bool),
	}
}

// With returns a new registry that also contains the outputs of stepID. It
// panics if stepID was already recorded, since step ids are unique within a
// validated workflow.
func (r *Registry) With(stepID string, outputs map[string]cty.Value) *Registry {
	return r.with(stepID, outputs, false)
}

// WithService is With for a deploy step: the step's address output also
// becomes a ServiceHandle.
func (r *Registry) WithService(stepID string, outputs map[string]cty.Value) *Registry {
	return r.with(stepID, outputs, true)
}

func (r *Registry) with(stepID string, outputs map[string]cty.Value, service bool) *Registry {
	if _, exists := r.outputs[stepID]; exists {
		panic(fmt.Sprintf("registry: outputs of step %q recorded twice", stepID))
	}

	next := &Registry{
		operator: r.operator,
		order:    append(append(make([]string, 0, len(r.order)+1), r.order...), stepID),
		outputs:  make(map[string]map[string]cty.Value, len(r.outputs)+1),
		services: make(map[string]bool, len(r.services)+1),
	}
	for id, out := range r.outputs {
		next.outputs[id] = out
	}
	for id := range r.services {
		next.services[id] = true
	}
	if service {
		next.services[stepID] = true
	}
	copied := make(map[string]cty.Value, len(outputs))
	for name, val := range outputs {
		copied[name] = val
	}
	next.outputs[stepID] = copied
	return next
}

// Operator returns the operator identity of the run.
func (r *Registry) Operator() string {
	return r.operator
}

// Output returns the named output of a confirmed step.
func (r *Registry) Output(stepID, name string) (cty.Value, bool) {
	out, ok := r.outputs[stepID]
	if !ok {
		return cty.NilVal, false
	}
	val, ok := out[name]
	return val, ok
}

// Outputs returns a copy of all outputs recorded for stepID.
func (r *Registry) Outputs(stepID string) (map[string]cty.Value, bool) {
	out, ok := r.outputs[stepID]
	if !ok {
		return nil, false
	}
	copied := make(map[string]cty.Value, len(out))
	for name, val := range out {
		copied[name] = val
	}
	return copied, true
}

// Has reports whether stepID has been confirmed.
func (r *Registry) Has(stepID string) bool {
	_, ok := r.outputs[stepID]
	return ok
}

// Steps returns the ids of confirmed steps in confirmation order.
func (r *Registry) Steps() []string {
	return append([]string(nil), r.order...)
}

// Handle returns the service created by a deploy step.
func (r *Registry) Handle(stepID string) (ServiceHandle, bool) {
	if !r.services[stepID] {
		return ServiceHandle{}, false
	}
	val, ok := r.Output(stepID, AddressOutput)
	if !ok || val.IsNull() || !val.IsKnown() || val.Type() != cty.String {
		return ServiceHandle{}, false
	}
	return ServiceHandle{Name: stepID, Address: val.AsString()}, true
}

// Handles returns every service handle in confirmation order.
func (r *Registry) Handles() []ServiceHandle {
	var handles []ServiceHandle
	for _, id := range r.order {
		if h, ok := r.Handle(id); ok {
			handles = append(handles, h)
		}
	}
	return handles
}

// EvalContext builds the HCL evaluation context exposing `step` and `operator`.
func (r *Registry) EvalContext() *hcl.EvalContext {
	steps := make(map[string]cty.Value, len(r.outputs))
	ids := make([]string, 0, len(r.outputs))
	for id := range r.outputs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if len(r.outputs[id]) == 0 {
			steps[id] = cty.EmptyObjectVal
			continue
		}
		steps[id] = cty.ObjectVal(r.outputs[id])
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"step":     cty.ObjectVal(steps),
			"operator": cty.StringVal(r.operator),
		},
	}
}

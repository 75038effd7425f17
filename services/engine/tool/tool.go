// Copyright (C) 2026 PyClarity Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package tool defines the boundary between the workflow engine and the
// analysis tools it orchestrates.
//
// A tool is anything that can be described by a Spec (name plus declared
// input parameters and output fields) and invoked through an Adapter. The
// engine never looks inside a tool; it only reads the Spec for dependency
// validation and calls Invoke with resolved inputs.
package tool

import (
	"context"
	"time"
)

// Param declares one input parameter of a tool.
type Param struct {
	// Name is the parameter name, unique within the tool.
	Name string `json:"name"`

	// Type is a free-form type hint (e.g., "string", "object").
	// The engine does not enforce it; it exists for validation by
	// adapters and for documentation.
	Type string `json:"type,omitempty"`

	// Required marks parameters that must be bound in every invocation.
	Required bool `json:"required,omitempty"`
}

// Field declares one output field of a tool.
type Field struct {
	// Name is the field name, unique within the tool's outputs.
	Name string `json:"name"`

	// Type is a free-form type hint.
	Type string `json:"type,omitempty"`
}

// Spec is the static declaration of a tool's identity and I/O schema.
//
// Description:
//
//	Spec is registered once per tool kind and consulted by the dependency
//	resolver to validate that every reference input of a workflow resolves
//	to a declared output field.
//
// Thread Safety:
//
//	Spec is immutable after registration. Safe to share across goroutines.
type Spec struct {
	// Name uniquely identifies the tool kind (e.g., "fetch", "summarize").
	Name string `json:"name"`

	// Inputs are the declared input parameters.
	Inputs []Param `json:"inputs,omitempty"`

	// Outputs are the declared output fields.
	Outputs []Field `json:"outputs,omitempty"`

	// Timeout is the default per-invocation timeout for this tool.
	// Zero means the scheduler's default applies.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// Input returns the declared input parameter with the given name.
func (s Spec) Input(name string) (Param, bool) {
	for _, p := range s.Inputs {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// Output returns the declared output field with the given name.
func (s Spec) Output(name string) (Field, bool) {
	for _, f := range s.Outputs {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Adapter exposes an analysis tool to the engine as (input) -> output | error.
//
// Description:
//
//	Adapter is the engine's only view of a tool. Implementations translate
//	the engine-level call into whatever the wrapped tool requires (process
//	spawn, RPC, in-process call). The adapter owns no execution-engine
//	state.
//
// Thread Safety:
//
//	Implementations must be safe for concurrent use. Invoke may be called
//	concurrently for independent workflow nodes.
type Adapter interface {
	// Spec returns the tool's static declaration.
	Spec() Spec

	// Invoke runs the tool with resolved inputs keyed by parameter name.
	//
	// Inputs:
	//   ctx - Context for cancellation and per-node timeout. Implementations
	//         must respect cancellation.
	//   inputs - Resolved input values keyed by parameter name.
	//
	// Outputs:
	//   map[string]any - Output values keyed by declared output field name.
	//   error - Non-nil on failure. Wrap policy.ErrTransient to signal that
	//           the failure is retryable.
	Invoke(ctx context.Context, inputs map[string]any) (map[string]any, error)
}

// Func wraps a plain function as an Adapter for simple cases.
//
// Example:
//
//	adapter := tool.NewFunc(spec, func(ctx context.Context, in map[string]any) (map[string]any, error) {
//	    return map[string]any{"data": "x"}, nil
//	})
type Func struct {
	spec Spec
	fn   func(context.Context, map[string]any) (map[string]any, error)
}

// NewFunc creates an Adapter from a function.
func NewFunc(spec Spec, fn func(context.Context, map[string]any) (map[string]any, error)) *Func {
	return &Func{spec: spec, fn: fn}
}

// Spec returns the wrapped tool's declaration.
func (f *Func) Spec() Spec {
	return f.spec
}

// Invoke runs the wrapped function.
func (f *Func) Invoke(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	if f.fn == nil {
		return nil, ErrNilFunc
	}
	return f.fn(ctx, inputs)
}

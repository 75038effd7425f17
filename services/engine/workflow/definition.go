// Copyright (C) 2026 PyClarity Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package workflow holds the authored form of a workflow: an ordered list
// of tool invocations whose inputs are either literals or references to
// other invocations' outputs.
//
// A Definition is inert data. It carries no graph structure; the plan
// package derives edges, validates schemas, and computes the execution
// layering.
package workflow

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// OutputRef points at one output field of another invocation.
type OutputRef struct {
	// Invocation is the id of the producing invocation.
	Invocation string `yaml:"ref" json:"ref"`

	// Field is the output field name on the producing tool.
	Field string `yaml:"field" json:"field"`
}

// InputValue binds one input parameter to either a literal value or an
// OutputRef. Exactly one of the two is set.
type InputValue struct {
	// Literal is the inline value. Nil when Ref is set.
	Literal any

	// Ref is the reference to another invocation's output. Nil for literals.
	Ref *OutputRef
}

// IsRef reports whether the value is a reference input.
func (v InputValue) IsRef() bool {
	return v.Ref != nil
}

// UnmarshalYAML decodes either form:
//
//	param: "literal value"
//	param: {ref: other_invocation, field: output_name}
//
// A mapping is treated as a reference only when it carries a "ref" key;
// any other mapping is kept as a literal object value.
func (v *InputValue) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value != "ref" {
				continue
			}
			var ref OutputRef
			if err := node.Decode(&ref); err != nil {
				return fmt.Errorf("decode output reference: %w", err)
			}
			if ref.Invocation == "" || ref.Field == "" {
				return ErrIncompleteRef
			}
			v.Ref = &ref
			return nil
		}
	}

	var literal any
	if err := node.Decode(&literal); err != nil {
		return fmt.Errorf("decode literal input: %w", err)
	}
	v.Literal = literal
	return nil
}

// Invocation is one concrete, parameterized use of a tool.
//
// Immutable once the definition is parsed.
type Invocation struct {
	// ID uniquely identifies the invocation within the definition.
	ID string `yaml:"id" json:"id" validate:"required"`

	// Tool names the registered tool kind to invoke.
	Tool string `yaml:"tool" json:"tool" validate:"required"`

	// Inputs binds each input parameter to a literal or a reference.
	Inputs map[string]InputValue `yaml:"inputs,omitempty" json:"inputs,omitempty"`

	// Timeout overrides the tool's and the run's default node timeout.
	Timeout Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// Duration is a time.Duration that decodes from YAML strings like "30s".
type Duration time.Duration

// UnmarshalYAML parses Go duration syntax.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts to the standard library representation.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// References returns the ids of all invocations this one reads from.
// The result is deduplicated; order follows no particular rule.
func (inv Invocation) References() []string {
	seen := make(map[string]bool)
	var refs []string
	for _, value := range inv.Inputs {
		if value.Ref == nil || seen[value.Ref.Invocation] {
			continue
		}
		seen[value.Ref.Invocation] = true
		refs = append(refs, value.Ref.Invocation)
	}
	return refs
}

// Definition is an authored workflow: a named, ordered collection of
// invocations. Declaration order matters only as a deterministic
// tie-break during scheduling.
type Definition struct {
	// Name identifies the workflow (used in logging and metrics).
	Name string `yaml:"name" json:"name" validate:"required"`

	// Invocations are the tool invocations in declaration order.
	Invocations []Invocation `yaml:"invocations" json:"invocations" validate:"required,min=1,dive"`
}

// Invocation returns the invocation with the given id.
func (d *Definition) Invocation(id string) (*Invocation, bool) {
	for i := range d.Invocations {
		if d.Invocations[i].ID == id {
			return &d.Invocations[i], true
		}
	}
	return nil, false
}

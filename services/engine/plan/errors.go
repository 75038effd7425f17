// Copyright (C) 2026 PyClarity Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package plan

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the plan package. All plan errors are fatal at
// build time and are never retried.
var (
	// ErrNilDefinition is returned when Build receives a nil definition.
	ErrNilDefinition = errors.New("workflow definition must not be nil")

	// ErrNilRegistry is returned when Build receives a nil tool registry.
	ErrNilRegistry = errors.New("tool registry must not be nil")

	// ErrEmptyDefinition is returned for a definition with no invocations.
	ErrEmptyDefinition = errors.New("workflow definition has no invocations")

	// ErrDuplicateInvocation is returned when two invocations share an id.
	ErrDuplicateInvocation = errors.New("duplicate invocation id")
)

// UnknownToolError is returned when an invocation references a tool name
// absent from the registry.
type UnknownToolError struct {
	Invocation string
	Tool       string
}

// Error returns the error message.
func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("invocation %q: tool %q is not registered", e.Invocation, e.Tool)
}

// SchemaError is returned when an invocation's inputs do not line up with
// the declared schemas: a missing required parameter, an undeclared
// parameter, a reference to an unknown invocation, or a reference to an
// output field the producing tool does not declare.
type SchemaError struct {
	// Invocation is the id of the invocation whose inputs are invalid.
	Invocation string

	// Param is the input parameter at fault, when known.
	Param string

	// Ref is the referenced invocation id, for reference inputs.
	Ref string

	// Field is the referenced output field, for reference inputs.
	Field string

	// Reason describes the mismatch.
	Reason string
}

// Error returns the error message.
func (e *SchemaError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "invocation %q", e.Invocation)
	if e.Param != "" {
		fmt.Fprintf(&b, ", input %q", e.Param)
	}
	if e.Ref != "" {
		fmt.Fprintf(&b, ", reference %s.%s", e.Ref, e.Field)
	}
	fmt.Fprintf(&b, ": %s", e.Reason)
	return b.String()
}

// CycleError is returned when the dependency graph contains a cycle.
// Path lists the participating invocation ids, ending where it starts.
type CycleError struct {
	Path []string
}

// Error returns the cycle description.
func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Path, " -> "))
}

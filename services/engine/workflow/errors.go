// Copyright (C) 2026 PyClarity Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package workflow

import (
	"errors"
	"fmt"
)

// Sentinel errors for the workflow package.
var (
	// ErrInvalidDefinition is returned when a parsed definition fails
	// shape validation.
	ErrInvalidDefinition = errors.New("invalid workflow definition")

	// ErrDuplicateInvocation is returned when two invocations share an id.
	ErrDuplicateInvocation = errors.New("duplicate invocation id")

	// ErrIncompleteRef is returned when a reference input is missing its
	// ref or field key.
	ErrIncompleteRef = errors.New("output reference requires both ref and field")
)

// DefinitionError wraps an error with the invocation that caused it.
type DefinitionError struct {
	Invocation string
	Err        error
}

// Error returns the error message.
func (e *DefinitionError) Error() string {
	return fmt.Sprintf("invocation %q: %v", e.Invocation, e.Err)
}

// Unwrap returns the underlying error.
func (e *DefinitionError) Unwrap() error {
	return e.Err
}

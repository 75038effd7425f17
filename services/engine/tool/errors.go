// Copyright (C) 2026 PyClarity Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tool

import (
	"errors"
	"fmt"
)

// Sentinel errors for the tool package.
var (
	// ErrNilAdapter is returned when registering a nil adapter.
	ErrNilAdapter = errors.New("adapter must not be nil")

	// ErrUnnamedTool is returned when an adapter's Spec has no name.
	ErrUnnamedTool = errors.New("tool spec must have a name")

	// ErrDuplicateTool is returned when a tool name is registered twice.
	ErrDuplicateTool = errors.New("tool with this name already registered")

	// ErrNilFunc is returned when a Func adapter has no function.
	ErrNilFunc = errors.New("func adapter requires a non-nil function")
)

// ToolError wraps an error with the tool that caused it.
type ToolError struct {
	Tool string
	Err  error
}

// Error returns the error message.
func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %q: %v", e.Tool, e.Err)
}

// Unwrap returns the underlying error.
func (e *ToolError) Unwrap() error {
	return e.Err
}

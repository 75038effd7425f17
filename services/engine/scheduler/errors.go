// Copyright (C) 2026 PyClarity Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package scheduler

import "errors"

var (
	// ErrNilContext is returned when Run is called with a nil context.
	ErrNilContext = errors.New("context must not be nil")

	// ErrNilPlan is returned when Run is called with a nil plan.
	ErrNilPlan = errors.New("plan must not be nil")

	// ErrNilRegistry is returned when the scheduler is created without
	// a tool registry.
	ErrNilRegistry = errors.New("registry must not be nil")

	// ErrUnknownTool is returned when a plan references a tool that is
	// no longer registered. The resolver validates tools at build time,
	// so this indicates the registry changed between Build and Run.
	ErrUnknownTool = errors.New("tool not registered")
)

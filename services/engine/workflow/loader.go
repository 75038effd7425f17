// Copyright (C) 2026 PyClarity Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package workflow

import (
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// validate checks struct tags on parsed definitions. A single instance is
// safe for concurrent use and caches struct metadata.
var validate = validator.New()

// Load parses a YAML workflow definition from r.
//
// Description:
//
//	Load performs shape validation only: required fields present, at least
//	one invocation, invocation ids unique. Graph-level validation (unknown
//	tools, schema mismatches, cycles) happens in plan.Build.
//
// Inputs:
//
//	r - YAML document source.
//
// Outputs:
//
//	*Definition - The parsed definition.
//	error - Non-nil on malformed YAML or shape violations.
func Load(r io.Reader) (*Definition, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read workflow definition: %w", err)
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse workflow definition: %w", err)
	}

	if err := validate.Struct(&def); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}

	seen := make(map[string]bool, len(def.Invocations))
	for _, inv := range def.Invocations {
		if seen[inv.ID] {
			return nil, &DefinitionError{Invocation: inv.ID, Err: ErrDuplicateInvocation}
		}
		seen[inv.ID] = true
	}

	return &def, nil
}

// LoadFile parses a YAML workflow definition from a file path.
func LoadFile(path string) (*Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open workflow definition: %w", err)
	}
	defer f.Close()

	def, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

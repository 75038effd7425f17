// Copyright (C) 2026 PyClarity Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package cache provides advisory result caching for tool invocations.
//
// A hit substitutes a previous output for a fresh invocation; a miss
// never blocks execution. Concurrent writers for the same key race
// harmlessly: the cache keeps whichever result lands last, which is
// acceptable because hits are never required for correctness.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// ResultCache maps (tool identity, input fingerprint) to a previously
// computed output.
//
// Thread Safety:
//
//	Implementations must be safe for concurrent use by multiple workers.
type ResultCache interface {
	// Get returns the cached output for the key, if present and fresh.
	Get(ctx context.Context, toolName, fingerprint string) (map[string]any, bool)

	// Put stores an output under the key. Best effort; failures are
	// swallowed by implementations because caching is advisory.
	Put(ctx context.Context, toolName, fingerprint string, output map[string]any)
}

// Fingerprint computes a deterministic hash of a node's resolved input
// values, used as the cache key together with the tool name.
//
// encoding/json marshals map keys in sorted order, which makes the
// encoding canonical for JSON-representable inputs.
func Fingerprint(toolName string, inputs map[string]any) (string, error) {
	payload := struct {
		Tool   string         `json:"tool"`
		Inputs map[string]any `json:"inputs"`
	}{Tool: toolName, Inputs: inputs}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("fingerprint inputs for tool %q: %w", toolName, err)
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Nop is a ResultCache that never hits. Used when caching is disabled.
type Nop struct{}

// Get always misses.
func (Nop) Get(context.Context, string, string) (map[string]any, bool) { return nil, false }

// Put discards the output.
func (Nop) Put(context.Context, string, string, map[string]any) {}

var _ ResultCache = Nop{}

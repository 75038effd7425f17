// Copyright (C) 2026 PyClarity Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package builtin registers the engine's built-in tools: small
// deterministic adapters for composing values, pacing, and exercising
// failure handling in workflows without external dependencies.
package builtin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kivo360/pyclarity/services/engine/policy"
	"github.com/kivo360/pyclarity/services/engine/tool"
)

// Register adds all built-in tools to the registry.
func Register(reg *tool.Registry) error {
	adapters := []tool.Adapter{
		Constant(),
		Concat(),
		Sleep(),
		Fail(),
	}
	for _, adapter := range adapters {
		if err := reg.Register(adapter); err != nil {
			return fmt.Errorf("register builtin %s: %w", adapter.Spec().Name, err)
		}
	}
	return nil
}

// Constant returns its "value" input unchanged as "value".
func Constant() tool.Adapter {
	spec := tool.Spec{
		Name: "constant",
		Inputs: []tool.Param{
			{Name: "value", Type: "any", Required: true},
		},
		Outputs: []tool.Field{
			{Name: "value", Type: "any"},
		},
	}
	return tool.NewFunc(spec, func(_ context.Context, inputs map[string]any) (map[string]any, error) {
		return map[string]any{"value": inputs["value"]}, nil
	})
}

// Concat joins "left" and "right" into "result", with an optional
// "separator" between them. Nil inputs render as empty strings so
// optional upstream failures degrade gracefully.
func Concat() tool.Adapter {
	spec := tool.Spec{
		Name: "concat",
		Inputs: []tool.Param{
			{Name: "left", Type: "string", Required: true},
			{Name: "right", Type: "string", Required: true},
			{Name: "separator", Type: "string"},
		},
		Outputs: []tool.Field{
			{Name: "result", Type: "string"},
		},
	}
	return tool.NewFunc(spec, func(_ context.Context, inputs map[string]any) (map[string]any, error) {
		sep := ""
		if s, ok := inputs["separator"].(string); ok {
			sep = s
		}
		return map[string]any{
			"result": asString(inputs["left"]) + sep + asString(inputs["right"]),
		}, nil
	})
}

// Sleep waits for its "duration" input (a Go duration string) and
// reports the elapsed time as "slept_ms". Respects cancellation.
func Sleep() tool.Adapter {
	spec := tool.Spec{
		Name: "sleep",
		Inputs: []tool.Param{
			{Name: "duration", Type: "string", Required: true},
		},
		Outputs: []tool.Field{
			{Name: "slept_ms", Type: "number"},
		},
	}
	return tool.NewFunc(spec, func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
		raw, ok := inputs["duration"].(string)
		if !ok {
			return nil, fmt.Errorf("sleep: duration must be a string, got %T", inputs["duration"])
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("sleep: %w", err)
		}

		start := time.Now()
		select {
		case <-time.After(d):
			return map[string]any{"slept_ms": time.Since(start).Milliseconds()}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
}

// failState tracks per-key invocation counts for the fail tool.
type failState struct {
	mu     sync.Mutex
	counts map[string]int
}

// Fail fails deliberately. "times" bounds how many invocations fail
// before it starts succeeding (counted per "key", default forever);
// "transient" marks the failures retryable. Exists for workflow and
// policy testing.
func Fail() tool.Adapter {
	state := &failState{counts: make(map[string]int)}

	spec := tool.Spec{
		Name: "fail",
		Inputs: []tool.Param{
			{Name: "key", Type: "string"},
			{Name: "times", Type: "number"},
			{Name: "transient", Type: "bool"},
		},
		Outputs: []tool.Field{
			{Name: "attempts", Type: "number"},
		},
	}
	return tool.NewFunc(spec, func(_ context.Context, inputs map[string]any) (map[string]any, error) {
		key := asString(inputs["key"])

		state.mu.Lock()
		state.counts[key]++
		count := state.counts[key]
		state.mu.Unlock()

		times := -1
		switch v := inputs["times"].(type) {
		case int:
			times = v
		case float64:
			times = int(v)
		}

		if times < 0 || count <= times {
			if transient, _ := inputs["transient"].(bool); transient {
				return nil, fmt.Errorf("%w: deliberate failure %d", policy.ErrTransient, count)
			}
			return nil, fmt.Errorf("deliberate failure %d", count)
		}
		return map[string]any{"attempts": count}, nil
	})
}

func asString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

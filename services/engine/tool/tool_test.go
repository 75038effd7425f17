// Copyright (C) 2026 PyClarity Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tool

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSpec(name string) Spec {
	return Spec{
		Name:    name,
		Inputs:  []Param{{Name: "in", Type: "string", Required: true}},
		Outputs: []Field{{Name: "out", Type: "string"}},
	}
}

func echoAdapter(name string) Adapter {
	return NewFunc(testSpec(name), func(_ context.Context, inputs map[string]any) (map[string]any, error) {
		return map[string]any{"out": inputs["in"]}, nil
	})
}

func TestSpec_Lookups(t *testing.T) {
	spec := testSpec("echo")

	param, ok := spec.Input("in")
	require.True(t, ok)
	assert.True(t, param.Required)

	_, ok = spec.Input("missing")
	assert.False(t, ok)

	field, ok := spec.Output("out")
	require.True(t, ok)
	assert.Equal(t, "string", field.Type)

	_, ok = spec.Output("missing")
	assert.False(t, ok)
}

func TestFunc_Invoke(t *testing.T) {
	adapter := echoAdapter("echo")

	out, err := adapter.Invoke(context.Background(), map[string]any{"in": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", out["out"])
}

func TestFunc_NilFn(t *testing.T) {
	adapter := &Func{}
	_, err := adapter.Invoke(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilFunc)
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(echoAdapter("echo")))

	adapter, ok := reg.Lookup("echo")
	require.True(t, ok)
	assert.Equal(t, "echo", adapter.Spec().Name)

	_, ok = reg.Lookup("missing")
	assert.False(t, ok)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_RejectsBadAdapters(t *testing.T) {
	reg := NewRegistry()

	assert.ErrorIs(t, reg.Register(nil), ErrNilAdapter)
	assert.ErrorIs(t, reg.Register(NewFunc(Spec{}, nil)), ErrUnnamedTool)
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(echoAdapter("echo")))

	err := reg.Register(echoAdapter("echo"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateTool)

	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, "echo", toolErr.Tool)
}

func TestRegistry_NamesSorted(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, reg.Register(echoAdapter(name)))
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, reg.Names())
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(echoAdapter("echo")))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				adapter, ok := reg.Lookup("echo")
				assert.True(t, ok)
				_, err := adapter.Invoke(context.Background(), map[string]any{"in": "x"})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
}

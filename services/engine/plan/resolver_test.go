// Copyright (C) 2026 PyClarity Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package plan

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/kivo360/pyclarity/services/engine/tool"
	"github.com/kivo360/pyclarity/services/engine/workflow"
)

func noopAdapter(spec tool.Spec) tool.Adapter {
	return tool.NewFunc(spec, func(context.Context, map[string]any) (map[string]any, error) {
		return map[string]any{}, nil
	})
}

func testRegistry(t *testing.T) *tool.Registry {
	t.Helper()
	reg := tool.NewRegistry()
	specs := []tool.Spec{
		{
			Name:    "fetch",
			Inputs:  []tool.Param{{Name: "url", Type: "string", Required: true}},
			Outputs: []tool.Field{{Name: "data", Type: "string"}},
			Timeout: 10 * time.Second,
		},
		{
			Name:    "transform",
			Inputs:  []tool.Param{{Name: "data", Type: "string", Required: true}, {Name: "mode", Type: "string"}},
			Outputs: []tool.Field{{Name: "result", Type: "string"}},
		},
		{
			Name:    "merge",
			Inputs:  []tool.Param{{Name: "a", Required: true}, {Name: "b", Required: true}},
			Outputs: []tool.Field{{Name: "merged", Type: "string"}},
		},
	}
	for _, spec := range specs {
		if err := reg.Register(noopAdapter(spec)); err != nil {
			t.Fatalf("register %s: %v", spec.Name, err)
		}
	}
	return reg
}

func literal(v any) workflow.InputValue {
	return workflow.InputValue{Literal: v}
}

func ref(invocation, field string) workflow.InputValue {
	return workflow.InputValue{Ref: &workflow.OutputRef{Invocation: invocation, Field: field}}
}

func TestBuild_LinearPipeline(t *testing.T) {
	def := &workflow.Definition{
		Name: "pipeline",
		Invocations: []workflow.Invocation{
			{ID: "f", Tool: "fetch", Inputs: map[string]workflow.InputValue{"url": literal("x")}},
			{ID: "t", Tool: "transform", Inputs: map[string]workflow.InputValue{"data": ref("f", "data")}},
		},
	}

	p, err := Build(def, testRegistry(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if p.Name() != "pipeline" {
		t.Errorf("Name = %q, want pipeline", p.Name())
	}
	if p.NodeCount() != 2 {
		t.Errorf("NodeCount = %d, want 2", p.NodeCount())
	}

	node, ok := p.Node("t")
	if !ok {
		t.Fatal("node t missing")
	}
	if got := node.Predecessors(); !reflect.DeepEqual(got, []string{"f"}) {
		t.Errorf("t.Predecessors = %v, want [f]", got)
	}

	node, _ = p.Node("f")
	if got := node.Successors(); !reflect.DeepEqual(got, []string{"t"}) {
		t.Errorf("f.Successors = %v, want [t]", got)
	}

	wantLayers := [][]string{{"f"}, {"t"}}
	if got := p.Layers(); !reflect.DeepEqual(got, wantLayers) {
		t.Errorf("Layers = %v, want %v", got, wantLayers)
	}
}

func TestBuild_DiamondLayers(t *testing.T) {
	def := &workflow.Definition{
		Name: "diamond",
		Invocations: []workflow.Invocation{
			{ID: "root", Tool: "fetch", Inputs: map[string]workflow.InputValue{"url": literal("x")}},
			{ID: "left", Tool: "transform", Inputs: map[string]workflow.InputValue{"data": ref("root", "data")}},
			{ID: "right", Tool: "transform", Inputs: map[string]workflow.InputValue{"data": ref("root", "data")}},
			{ID: "join", Tool: "merge", Inputs: map[string]workflow.InputValue{
				"a": ref("left", "result"),
				"b": ref("right", "result"),
			}},
		},
	}

	p, err := Build(def, testRegistry(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	want := [][]string{{"root"}, {"left", "right"}, {"join"}}
	if got := p.Layers(); !reflect.DeepEqual(got, want) {
		t.Errorf("Layers = %v, want %v", got, want)
	}

	join, _ := p.Node("join")
	if got := join.Predecessors(); !reflect.DeepEqual(got, []string{"left", "right"}) {
		t.Errorf("join.Predecessors = %v, want [left right]", got)
	}
}

func TestBuild_DeduplicatesEdges(t *testing.T) {
	// Two references onto the same producer yield one edge.
	def := &workflow.Definition{
		Name: "dedup",
		Invocations: []workflow.Invocation{
			{ID: "f", Tool: "fetch", Inputs: map[string]workflow.InputValue{"url": literal("x")}},
			{ID: "m", Tool: "merge", Inputs: map[string]workflow.InputValue{
				"a": ref("f", "data"),
				"b": ref("f", "data"),
			}},
		},
	}

	p, err := Build(def, testRegistry(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	m, _ := p.Node("m")
	if got := m.Predecessors(); len(got) != 1 {
		t.Errorf("m.Predecessors = %v, want single edge", got)
	}
}

func TestBuild_RejectsCycle(t *testing.T) {
	def := &workflow.Definition{
		Name: "cyclic",
		Invocations: []workflow.Invocation{
			{ID: "a", Tool: "transform", Inputs: map[string]workflow.InputValue{"data": ref("b", "result")}},
			{ID: "b", Tool: "transform", Inputs: map[string]workflow.InputValue{"data": ref("a", "result")}},
		},
	}

	_, err := Build(def, testRegistry(t))
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("Build error = %v, want CycleError", err)
	}
	if len(cycleErr.Path) < 3 {
		t.Errorf("cycle path %v too short to name the loop", cycleErr.Path)
	}
}

func TestBuild_RejectsSelfReference(t *testing.T) {
	def := &workflow.Definition{
		Name: "selfie",
		Invocations: []workflow.Invocation{
			{ID: "a", Tool: "transform", Inputs: map[string]workflow.InputValue{"data": ref("a", "result")}},
		},
	}

	_, err := Build(def, testRegistry(t))
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("Build error = %v, want CycleError", err)
	}
}

func TestBuild_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		def  *workflow.Definition
		want func(error) bool
	}{
		{
			name: "nil definition",
			def:  nil,
			want: func(err error) bool { return errors.Is(err, ErrNilDefinition) },
		},
		{
			name: "no invocations",
			def:  &workflow.Definition{Name: "empty"},
			want: func(err error) bool { return errors.Is(err, ErrEmptyDefinition) },
		},
		{
			name: "unknown tool",
			def: &workflow.Definition{
				Name:        "w",
				Invocations: []workflow.Invocation{{ID: "a", Tool: "no_such_tool"}},
			},
			want: func(err error) bool {
				var e *UnknownToolError
				return errors.As(err, &e) && e.Tool == "no_such_tool"
			},
		},
		{
			name: "duplicate ids",
			def: &workflow.Definition{
				Name: "w",
				Invocations: []workflow.Invocation{
					{ID: "a", Tool: "fetch", Inputs: map[string]workflow.InputValue{"url": literal("x")}},
					{ID: "a", Tool: "fetch", Inputs: map[string]workflow.InputValue{"url": literal("y")}},
				},
			},
			want: func(err error) bool { return errors.Is(err, ErrDuplicateInvocation) },
		},
		{
			name: "missing required param",
			def: &workflow.Definition{
				Name:        "w",
				Invocations: []workflow.Invocation{{ID: "a", Tool: "fetch"}},
			},
			want: func(err error) bool {
				var e *SchemaError
				return errors.As(err, &e) && e.Param == "url"
			},
		},
		{
			name: "undeclared input param",
			def: &workflow.Definition{
				Name: "w",
				Invocations: []workflow.Invocation{
					{ID: "a", Tool: "fetch", Inputs: map[string]workflow.InputValue{
						"url":   literal("x"),
						"bogus": literal("y"),
					}},
				},
			},
			want: func(err error) bool {
				var e *SchemaError
				return errors.As(err, &e) && e.Param == "bogus"
			},
		},
		{
			name: "reference onto unknown invocation",
			def: &workflow.Definition{
				Name: "w",
				Invocations: []workflow.Invocation{
					{ID: "a", Tool: "transform", Inputs: map[string]workflow.InputValue{
						"data": ref("ghost", "data"),
					}},
				},
			},
			want: func(err error) bool {
				var e *SchemaError
				return errors.As(err, &e) && e.Ref == "ghost"
			},
		},
		{
			name: "reference onto undeclared output field",
			def: &workflow.Definition{
				Name: "w",
				Invocations: []workflow.Invocation{
					{ID: "f", Tool: "fetch", Inputs: map[string]workflow.InputValue{"url": literal("x")}},
					{ID: "t", Tool: "transform", Inputs: map[string]workflow.InputValue{
						"data": ref("f", "no_such_field"),
					}},
				},
			},
			want: func(err error) bool {
				var e *SchemaError
				return errors.As(err, &e) && e.Field == "no_such_field"
			},
		},
	}

	reg := testRegistry(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.def, reg)
			if err == nil {
				t.Fatal("Build succeeded, want error")
			}
			if !tt.want(err) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestBuild_NilRegistry(t *testing.T) {
	def := &workflow.Definition{
		Name:        "w",
		Invocations: []workflow.Invocation{{ID: "a", Tool: "fetch"}},
	}
	if _, err := Build(def, nil); !errors.Is(err, ErrNilRegistry) {
		t.Errorf("Build error = %v, want ErrNilRegistry", err)
	}
}

func TestNode_TimeoutPrecedence(t *testing.T) {
	def := &workflow.Definition{
		Name: "timeouts",
		Invocations: []workflow.Invocation{
			{ID: "default", Tool: "fetch", Inputs: map[string]workflow.InputValue{"url": literal("x")}},
			{
				ID: "override", Tool: "fetch",
				Inputs:  map[string]workflow.InputValue{"url": literal("x")},
				Timeout: workflow.Duration(3 * time.Second),
			},
			{ID: "none", Tool: "transform", Inputs: map[string]workflow.InputValue{"data": literal("x")}},
		},
	}

	p, err := Build(def, testRegistry(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	node, _ := p.Node("default")
	if got := node.Timeout(); got != 10*time.Second {
		t.Errorf("default timeout = %v, want tool default 10s", got)
	}
	node, _ = p.Node("override")
	if got := node.Timeout(); got != 3*time.Second {
		t.Errorf("override timeout = %v, want 3s", got)
	}
	node, _ = p.Node("none")
	if got := node.Timeout(); got != 0 {
		t.Errorf("none timeout = %v, want 0 (scheduler default applies)", got)
	}
}

func TestCycleError_Message(t *testing.T) {
	err := &CycleError{Path: []string{"a", "b", "a"}}
	want := "dependency cycle: a -> b -> a"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

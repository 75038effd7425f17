// Copyright (C) 2026 PyClarity Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package plan

import (
	"sort"

	"github.com/kivo360/pyclarity/services/engine/tool"
	"github.com/kivo360/pyclarity/services/engine/workflow"
)

// Build resolves a workflow definition against a tool registry and
// produces an immutable ExecutionPlan.
//
// Description:
//
//	Build is a pure function of its inputs. It derives one directed edge
//	per reference input, validates every reference against the producing
//	tool's declared outputs, detects cycles, and computes the topological
//	layering. Nothing is partially constructed on failure.
//
// Inputs:
//
//	def - The authored definition. Must not be nil or empty.
//	reg - The tool registry supplying a Spec for every referenced tool.
//
// Outputs:
//
//	*ExecutionPlan - The validated plan.
//	error - *UnknownToolError, *SchemaError, *CycleError, or a sentinel
//	        for structural problems. All are fatal; none are retryable.
func Build(def *workflow.Definition, reg *tool.Registry) (*ExecutionPlan, error) {
	if def == nil {
		return nil, ErrNilDefinition
	}
	if reg == nil {
		return nil, ErrNilRegistry
	}
	if len(def.Invocations) == 0 {
		return nil, ErrEmptyDefinition
	}

	nodes := make(map[string]*Node, len(def.Invocations))
	order := make([]string, 0, len(def.Invocations))

	// First pass: resolve every invocation to a registered tool spec and
	// reject duplicate ids, so the second pass can validate references
	// regardless of declaration order.
	for i, inv := range def.Invocations {
		if _, exists := nodes[inv.ID]; exists {
			return nil, &workflow.DefinitionError{Invocation: inv.ID, Err: ErrDuplicateInvocation}
		}
		adapter, ok := reg.Lookup(inv.Tool)
		if !ok {
			return nil, &UnknownToolError{Invocation: inv.ID, Tool: inv.Tool}
		}
		nodes[inv.ID] = &Node{inv: inv, spec: adapter.Spec(), index: i}
		order = append(order, inv.ID)
	}

	// Second pass: validate inputs against schemas and derive edges.
	for _, id := range order {
		node := nodes[id]
		if err := validateInputs(node, nodes); err != nil {
			return nil, err
		}

		seen := make(map[string]bool)
		for _, value := range node.inv.Inputs {
			if value.Ref == nil || seen[value.Ref.Invocation] {
				continue
			}
			seen[value.Ref.Invocation] = true
			pred := nodes[value.Ref.Invocation]
			node.preds = append(node.preds, pred.inv.ID)
			pred.succs = append(pred.succs, id)
		}
		sortByIndex(node.preds, nodes)
	}
	for _, id := range order {
		sortByIndex(nodes[id].succs, nodes)
	}

	if err := detectCycle(order, nodes); err != nil {
		return nil, err
	}

	layers := layer(order, nodes)

	return &ExecutionPlan{
		name:   def.Name,
		nodes:  nodes,
		order:  order,
		layers: layers,
	}, nil
}

// validateInputs checks one node's input bindings against the declared
// schemas of its own tool and of every referenced tool.
func validateInputs(node *Node, nodes map[string]*Node) error {
	id := node.inv.ID

	for _, param := range node.spec.Inputs {
		if !param.Required {
			continue
		}
		if _, bound := node.inv.Inputs[param.Name]; !bound {
			return &SchemaError{
				Invocation: id,
				Param:      param.Name,
				Reason:     "required input is not bound",
			}
		}
	}

	for name, value := range node.inv.Inputs {
		if _, declared := node.spec.Input(name); !declared {
			return &SchemaError{
				Invocation: id,
				Param:      name,
				Reason:     "input is not declared by tool " + node.inv.Tool,
			}
		}
		if value.Ref == nil {
			continue
		}
		pred, ok := nodes[value.Ref.Invocation]
		if !ok {
			return &SchemaError{
				Invocation: id,
				Param:      name,
				Ref:        value.Ref.Invocation,
				Field:      value.Ref.Field,
				Reason:     "references an unknown invocation",
			}
		}
		if _, ok := pred.spec.Output(value.Ref.Field); !ok {
			return &SchemaError{
				Invocation: id,
				Param:      name,
				Ref:        value.Ref.Invocation,
				Field:      value.Ref.Field,
				Reason:     "referenced output field is not declared by tool " + pred.inv.Tool,
			}
		}
	}
	return nil
}

// detectCycle runs an iterative depth-first search over the dependency
// edges, tracking an in-progress set. Returns a *CycleError naming the
// participating invocation ids when a back edge is found.
func detectCycle(order []string, nodes map[string]*Node) error {
	const (
		white = 0 // unvisited
		gray  = 1 // on the current DFS path
		black = 2 // fully explored
	)
	color := make(map[string]int, len(nodes))

	type frame struct {
		id   string
		next int
	}

	for _, start := range order {
		if color[start] != white {
			continue
		}

		stack := []frame{{id: start}}
		color[start] = gray

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			preds := nodes[top.id].preds

			if top.next >= len(preds) {
				color[top.id] = black
				stack = stack[:len(stack)-1]
				continue
			}

			dep := preds[top.next]
			top.next++

			switch color[dep] {
			case white:
				color[dep] = gray
				stack = append(stack, frame{id: dep})
			case gray:
				// Back edge: the cycle is the stack segment from dep
				// to the top, closed back on dep.
				var path []string
				for i := range stack {
					if len(path) > 0 || stack[i].id == dep {
						path = append(path, stack[i].id)
					}
				}
				path = append(path, dep)
				return &CycleError{Path: path}
			}
		}
	}
	return nil
}

// layer computes the topological layering: repeatedly collect every node
// whose predecessors are all already layered. Within a layer, nodes keep
// declaration order, which makes scheduling order reproducible.
func layer(order []string, nodes map[string]*Node) [][]string {
	placed := make(map[string]bool, len(nodes))
	remaining := len(nodes)
	var layers [][]string

	for remaining > 0 {
		var current []string
		for _, id := range order {
			if placed[id] {
				continue
			}
			ready := true
			for _, pred := range nodes[id].preds {
				if !placed[pred] {
					ready = false
					break
				}
			}
			if ready {
				current = append(current, id)
			}
		}

		// A valid (acyclic) graph always yields progress here; cycle
		// detection has already run.
		for _, id := range current {
			placed[id] = true
		}
		remaining -= len(current)
		layers = append(layers, current)
	}
	return layers
}

// sortByIndex orders ids by their declaration index, in place.
func sortByIndex(ids []string, nodes map[string]*Node) {
	sort.Slice(ids, func(i, j int) bool {
		return nodes[ids[i]].index < nodes[ids[j]].index
	})
}

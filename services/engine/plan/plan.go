// Copyright (C) 2026 PyClarity Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package plan turns an authored workflow definition into a validated,
// layered execution plan.
//
// Build derives a directed edge for every reference input, validates each
// reference against the producing tool's declared output schema, rejects
// cycles, and computes a topological layering: groups of nodes with no
// dependency relationship, in dependency order. Nodes within a layer are
// candidates for concurrent execution.
package plan

import (
	"time"

	"github.com/kivo360/pyclarity/services/engine/tool"
	"github.com/kivo360/pyclarity/services/engine/workflow"
)

// Node is one resolved vertex of the execution plan: an invocation plus
// its computed predecessor and successor sets.
//
// Immutable after Build.
type Node struct {
	inv   workflow.Invocation
	spec  tool.Spec
	preds []string
	succs []string
	index int
}

// ID returns the invocation id.
func (n *Node) ID() string {
	return n.inv.ID
}

// Tool returns the tool name this node invokes.
func (n *Node) Tool() string {
	return n.inv.Tool
}

// Spec returns the tool's declared schema.
func (n *Node) Spec() tool.Spec {
	return n.spec
}

// Invocation returns the authored invocation.
func (n *Node) Invocation() workflow.Invocation {
	return n.inv
}

// Predecessors returns the ids of nodes this node depends on.
func (n *Node) Predecessors() []string {
	out := make([]string, len(n.preds))
	copy(out, n.preds)
	return out
}

// Successors returns the ids of nodes that depend on this node.
func (n *Node) Successors() []string {
	out := make([]string, len(n.succs))
	copy(out, n.succs)
	return out
}

// Index returns the declaration position within the workflow definition.
// Used only as a deterministic tie-break when ordering ready nodes.
func (n *Node) Index() int {
	return n.index
}

// Timeout returns the effective per-node timeout: the invocation override
// if set, otherwise the tool's declared default, otherwise zero (meaning
// the run configuration default applies).
func (n *Node) Timeout() time.Duration {
	if n.inv.Timeout > 0 {
		return n.inv.Timeout.Std()
	}
	return n.spec.Timeout
}

// ExecutionPlan is the validated DAG derived from a workflow definition.
//
// Thread Safety:
//
//	ExecutionPlan is read-only after Build and safe to share across all
//	workers of a run without synchronization.
type ExecutionPlan struct {
	name   string
	nodes  map[string]*Node
	order  []string
	layers [][]string
}

// Name returns the workflow name.
func (p *ExecutionPlan) Name() string {
	return p.name
}

// NodeCount returns the number of nodes.
func (p *ExecutionPlan) NodeCount() int {
	return len(p.nodes)
}

// Node returns a node by invocation id.
func (p *ExecutionPlan) Node(id string) (*Node, bool) {
	n, ok := p.nodes[id]
	return n, ok
}

// NodeIDs returns all node ids in declaration order.
func (p *ExecutionPlan) NodeIDs() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// Layers returns the topological layering. Layer 0 holds the nodes with
// no predecessors; every node appears in a strictly later layer than all
// of its predecessors. Within a layer, ids follow declaration order.
func (p *ExecutionPlan) Layers() [][]string {
	out := make([][]string, len(p.layers))
	for i, layer := range p.layers {
		out[i] = make([]string, len(layer))
		copy(out[i], layer)
	}
	return out
}

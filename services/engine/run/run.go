// Copyright (C) 2026 PyClarity Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package run tracks the live state of one workflow execution: per-node
// status, outputs, attempt counts, and the run-level status derived from
// them.
package run

import (
	"fmt"
	"sync"
	"time"
)

// NodeStatus is the lifecycle state of one node within a run.
type NodeStatus string

const (
	// NodePending means dependencies are not yet satisfied.
	NodePending NodeStatus = "pending"

	// NodeReady means all dependencies succeeded and the node awaits a worker.
	NodeReady NodeStatus = "ready"

	// NodeRunning means a worker is executing the node.
	NodeRunning NodeStatus = "running"

	// NodeSucceeded is terminal: the node produced an output.
	NodeSucceeded NodeStatus = "succeeded"

	// NodeFailed is terminal: all attempts failed.
	NodeFailed NodeStatus = "failed"

	// NodeSkipped is terminal: a dependency failed or the run aborted
	// before the node could start.
	NodeSkipped NodeStatus = "skipped"
)

// Terminal reports whether the status is final.
func (s NodeStatus) Terminal() bool {
	switch s {
	case NodeSucceeded, NodeFailed, NodeSkipped:
		return true
	default:
		return false
	}
}

// Status is the run-level state.
type Status string

const (
	// StatusRunning means at least one node has not reached a terminal state.
	StatusRunning Status = "running"

	// StatusCancelling means cancellation was requested and in-flight
	// nodes are draining.
	StatusCancelling Status = "cancelling"

	// StatusSucceeded means every node succeeded.
	StatusSucceeded Status = "succeeded"

	// StatusPartiallyFailed means some nodes succeeded and others
	// failed or were skipped.
	StatusPartiallyFailed Status = "partially_failed"

	// StatusFailed means no node succeeded, or the run was aborted.
	StatusFailed Status = "failed"

	// StatusCancelled means the run stopped due to external cancellation.
	StatusCancelled Status = "cancelled"
)

// NodeRecord is the per-node state within a run.
type NodeRecord struct {
	Status    NodeStatus     `json:"status"`
	Output    map[string]any `json:"output,omitempty"`
	Error     string         `json:"error,omitempty"`
	Attempts  int            `json:"attempts"`
	SkipCause string         `json:"skip_cause,omitempty"`
	FromCache bool           `json:"from_cache,omitempty"`
	StartedAt time.Time      `json:"started_at,omitempty"`
	EndedAt   time.Time      `json:"ended_at,omitempty"`
}

// Counts aggregates terminal node statuses.
type Counts struct {
	Pending   int
	Ready     int
	Running   int
	Succeeded int
	Failed    int
	Skipped   int
}

// Done reports whether every node has reached a terminal state.
func (c Counts) Done() bool {
	return c.Pending == 0 && c.Ready == 0 && c.Running == 0
}

// Run is the mutable state of one workflow execution.
//
// Thread Safety:
//
//	Run is safe for concurrent use. Workers record outcomes while the
//	coordinator reads counts and outputs.
type Run struct {
	mu sync.RWMutex

	id        string
	planName  string
	status    Status
	nodes     map[string]*NodeRecord
	startedAt time.Time
	endedAt   time.Time
}

// New creates a Run with every node Pending.
func New(id, planName string, nodeIDs []string) *Run {
	nodes := make(map[string]*NodeRecord, len(nodeIDs))
	for _, nodeID := range nodeIDs {
		nodes[nodeID] = &NodeRecord{Status: NodePending}
	}
	return &Run{
		id:        id,
		planName:  planName,
		status:    StatusRunning,
		nodes:     nodes,
		startedAt: time.Now(),
	}
}

// ID returns the run identifier.
func (r *Run) ID() string { return r.id }

// PlanName returns the name of the plan being executed.
func (r *Run) PlanName() string { return r.planName }

// StartedAt returns when the run began.
func (r *Run) StartedAt() time.Time { return r.startedAt }

// EndedAt returns when the run finished, or the zero time while running.
func (r *Run) EndedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.endedAt
}

// Status returns the current run-level status.
func (r *Run) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// NodeStatus returns the status of one node.
func (r *Run) NodeStatus(nodeID string) (NodeStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.nodes[nodeID]
	if !ok {
		return "", false
	}
	return record.Status, true
}

// Node returns a copy of one node's record.
func (r *Run) Node(nodeID string) (NodeRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.nodes[nodeID]
	if !ok {
		return NodeRecord{}, false
	}
	return *record, true
}

// Output returns a succeeded node's output map.
func (r *Run) Output(nodeID string) (map[string]any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.nodes[nodeID]
	if !ok || record.Status != NodeSucceeded {
		return nil, false
	}
	return record.Output, true
}

// Counts returns the current status tally.
func (r *Run) Counts() Counts {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var c Counts
	for _, record := range r.nodes {
		switch record.Status {
		case NodePending:
			c.Pending++
		case NodeReady:
			c.Ready++
		case NodeRunning:
			c.Running++
		case NodeSucceeded:
			c.Succeeded++
		case NodeFailed:
			c.Failed++
		case NodeSkipped:
			c.Skipped++
		}
	}
	return c
}

// MarkReady transitions a node from Pending to Ready.
func (r *Run) MarkReady(nodeID string) (NodeStatus, error) {
	return r.transition(nodeID, NodeReady, NodePending)
}

// MarkRunning transitions a node from Ready to Running and stamps the
// start time.
func (r *Run) MarkRunning(nodeID string) (NodeStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.nodes[nodeID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownNode, nodeID)
	}
	previous := record.Status
	if previous != NodeReady {
		return previous, fmt.Errorf("%w: %s is %s, want %s", ErrBadTransition, nodeID, previous, NodeReady)
	}
	record.Status = NodeRunning
	record.StartedAt = time.Now()
	return previous, nil
}

// MarkSucceeded records a node's output and closes it out.
func (r *Run) MarkSucceeded(nodeID string, output map[string]any, attempts int, fromCache bool) (NodeStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.nodes[nodeID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownNode, nodeID)
	}
	previous := record.Status
	if previous.Terminal() {
		return previous, fmt.Errorf("%w: %s already %s", ErrBadTransition, nodeID, previous)
	}
	record.Status = NodeSucceeded
	record.Output = output
	record.Attempts = attempts
	record.FromCache = fromCache
	record.EndedAt = time.Now()
	return previous, nil
}

// MarkFailed records a node's terminal failure.
func (r *Run) MarkFailed(nodeID string, err error, attempts int) (NodeStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.nodes[nodeID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownNode, nodeID)
	}
	previous := record.Status
	if previous.Terminal() {
		return previous, fmt.Errorf("%w: %s already %s", ErrBadTransition, nodeID, previous)
	}
	record.Status = NodeFailed
	if err != nil {
		record.Error = err.Error()
	}
	record.Attempts = attempts
	record.EndedAt = time.Now()
	return previous, nil
}

// MarkSkipped records that a node will never run, with the cause
// (usually the id of the failed dependency, or "aborted"/"cancelled").
func (r *Run) MarkSkipped(nodeID, cause string) (NodeStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.nodes[nodeID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownNode, nodeID)
	}
	previous := record.Status
	if previous.Terminal() {
		return previous, fmt.Errorf("%w: %s already %s", ErrBadTransition, nodeID, previous)
	}
	record.Status = NodeSkipped
	record.SkipCause = cause
	record.EndedAt = time.Now()
	return previous, nil
}

// RecordAttempt bumps a node's attempt counter after a failed attempt
// that will be retried.
func (r *Run) RecordAttempt(nodeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if record, ok := r.nodes[nodeID]; ok {
		record.Attempts++
	}
}

// SetStatus sets the run-level status. Terminal statuses stamp the end
// time once.
func (r *Run) SetStatus(status Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = status
	if status != StatusRunning && status != StatusCancelling && r.endedAt.IsZero() {
		r.endedAt = time.Now()
	}
}

// Finalize derives and sets the terminal run status from node outcomes.
//
// All nodes succeeded maps to Succeeded; a mix of successes and
// failures or skips maps to PartiallyFailed; no successes maps to
// Failed. Cancelled runs keep StatusCancelled regardless of outcomes.
func (r *Run) Finalize(cancelled bool) Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cancelled {
		r.status = StatusCancelled
	} else {
		var succeeded, unsuccessful int
		for _, record := range r.nodes {
			switch record.Status {
			case NodeSucceeded:
				succeeded++
			default:
				unsuccessful++
			}
		}
		switch {
		case unsuccessful == 0:
			r.status = StatusSucceeded
		case succeeded > 0:
			r.status = StatusPartiallyFailed
		default:
			r.status = StatusFailed
		}
	}

	if r.endedAt.IsZero() {
		r.endedAt = time.Now()
	}
	return r.status
}

// transition moves a node to next if its current status matches want.
func (r *Run) transition(nodeID string, next NodeStatus, want NodeStatus) (NodeStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.nodes[nodeID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownNode, nodeID)
	}
	previous := record.Status
	if previous != want {
		return previous, fmt.Errorf("%w: %s is %s, want %s", ErrBadTransition, nodeID, previous, want)
	}
	record.Status = next
	return previous, nil
}

// Copyright (C) 2026 PyClarity Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package scheduler

import (
	"time"

	"github.com/kivo360/pyclarity/services/engine/run"
)

// NodeResult is the final state of one node after a run.
type NodeResult struct {
	Status    run.NodeStatus
	Output    map[string]any
	Error     string
	Attempts  int
	SkipCause string
	FromCache bool
	Duration  time.Duration
}

// Result is the outcome of one workflow run.
type Result struct {
	RunID       string
	PlanName    string
	Status      run.Status
	Nodes       map[string]NodeResult
	StartedAt   time.Time
	EndedAt     time.Time
	Duration    time.Duration
	ArchivePath string
}

// Succeeded reports whether every node succeeded.
func (r *Result) Succeeded() bool {
	return r.Status == run.StatusSucceeded
}

// buildResult snapshots the run state into an immutable Result.
func buildResult(state *run.Run, nodeIDs []string, archivePath string) *Result {
	nodes := make(map[string]NodeResult, len(nodeIDs))
	for _, id := range nodeIDs {
		record, ok := state.Node(id)
		if !ok {
			continue
		}
		var duration time.Duration
		if !record.StartedAt.IsZero() && !record.EndedAt.IsZero() {
			duration = record.EndedAt.Sub(record.StartedAt)
		}
		nodes[id] = NodeResult{
			Status:    record.Status,
			Output:    record.Output,
			Error:     record.Error,
			Attempts:  record.Attempts,
			SkipCause: record.SkipCause,
			FromCache: record.FromCache,
			Duration:  duration,
		}
	}

	return &Result{
		RunID:       state.ID(),
		PlanName:    state.PlanName(),
		Status:      state.Status(),
		Nodes:       nodes,
		StartedAt:   state.StartedAt(),
		EndedAt:     state.EndedAt(),
		Duration:    state.EndedAt().Sub(state.StartedAt()),
		ArchivePath: archivePath,
	}
}

// Copyright (C) 2026 PyClarity Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package run

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRun(t *testing.T, nodeIDs ...string) *Run {
	t.Helper()
	if len(nodeIDs) == 0 {
		nodeIDs = []string{"fetch", "transform", "summarize"}
	}
	return New("run-1", "pipeline", nodeIDs)
}

func TestNew_AllNodesPending(t *testing.T) {
	r := newTestRun(t)

	assert.Equal(t, "run-1", r.ID())
	assert.Equal(t, "pipeline", r.PlanName())
	assert.Equal(t, StatusRunning, r.Status())

	counts := r.Counts()
	assert.Equal(t, 3, counts.Pending)
	assert.False(t, counts.Done())

	status, ok := r.NodeStatus("fetch")
	require.True(t, ok)
	assert.Equal(t, NodePending, status)
}

func TestRun_Lifecycle(t *testing.T) {
	r := newTestRun(t)

	prev, err := r.MarkReady("fetch")
	require.NoError(t, err)
	assert.Equal(t, NodePending, prev)

	prev, err = r.MarkRunning("fetch")
	require.NoError(t, err)
	assert.Equal(t, NodeReady, prev)

	output := map[string]any{"data": "hello"}
	prev, err = r.MarkSucceeded("fetch", output, 1, false)
	require.NoError(t, err)
	assert.Equal(t, NodeRunning, prev)

	got, ok := r.Output("fetch")
	require.True(t, ok)
	assert.Equal(t, "hello", got["data"])

	record, ok := r.Node("fetch")
	require.True(t, ok)
	assert.Equal(t, 1, record.Attempts)
	assert.False(t, record.StartedAt.IsZero())
	assert.False(t, record.EndedAt.IsZero())
}

func TestRun_RejectsBadTransitions(t *testing.T) {
	r := newTestRun(t)

	// Running before Ready.
	_, err := r.MarkRunning("fetch")
	assert.ErrorIs(t, err, ErrBadTransition)

	// Terminal states are sticky.
	_, err = r.MarkSkipped("transform", "fetch")
	require.NoError(t, err)
	_, err = r.MarkSucceeded("transform", nil, 0, false)
	assert.ErrorIs(t, err, ErrBadTransition)
	_, err = r.MarkFailed("transform", errors.New("late"), 1)
	assert.ErrorIs(t, err, ErrBadTransition)

	_, err = r.MarkReady("missing")
	assert.ErrorIs(t, err, ErrUnknownNode)
}

func TestRun_FailureAndSkipRecords(t *testing.T) {
	r := newTestRun(t)

	_, err := r.MarkFailed("fetch", errors.New("boom"), 3)
	require.NoError(t, err)

	record, ok := r.Node("fetch")
	require.True(t, ok)
	assert.Equal(t, NodeFailed, record.Status)
	assert.Equal(t, "boom", record.Error)
	assert.Equal(t, 3, record.Attempts)

	_, ok = r.Output("fetch")
	assert.False(t, ok, "failed nodes expose no output")

	_, err = r.MarkSkipped("transform", "fetch")
	require.NoError(t, err)
	record, ok = r.Node("transform")
	require.True(t, ok)
	assert.Equal(t, "fetch", record.SkipCause)
}

func TestRun_Finalize(t *testing.T) {
	tests := []struct {
		name string
		mark func(r *Run)
		want Status
	}{
		{
			name: "all succeeded",
			mark: func(r *Run) {
				for _, id := range []string{"a", "b"} {
					r.MarkReady(id)
					r.MarkRunning(id)
					r.MarkSucceeded(id, nil, 1, false)
				}
			},
			want: StatusSucceeded,
		},
		{
			name: "mixed outcomes",
			mark: func(r *Run) {
				r.MarkReady("a")
				r.MarkRunning("a")
				r.MarkSucceeded("a", nil, 1, false)
				r.MarkFailed("b", errors.New("boom"), 2)
			},
			want: StatusPartiallyFailed,
		},
		{
			name: "nothing succeeded",
			mark: func(r *Run) {
				r.MarkFailed("a", errors.New("boom"), 1)
				r.MarkSkipped("b", "a")
			},
			want: StatusFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New("run-1", "pipeline", []string{"a", "b"})
			tt.mark(r)
			assert.Equal(t, tt.want, r.Finalize(false))
			assert.Equal(t, tt.want, r.Status())
			assert.False(t, r.EndedAt().IsZero())
		})
	}
}

func TestRun_FinalizeCancelled(t *testing.T) {
	r := New("run-1", "pipeline", []string{"a", "b"})
	r.MarkReady("a")
	r.MarkRunning("a")
	r.MarkSucceeded("a", nil, 1, false)
	r.MarkSkipped("b", "cancelled")

	assert.Equal(t, StatusCancelled, r.Finalize(true))
}

func TestRun_ConcurrentMarks(t *testing.T) {
	ids := make([]string, 32)
	for i := range ids {
		ids[i] = string(rune('a' + i))
	}
	r := New("run-1", "pipeline", ids)

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			r.MarkReady(id)
			r.MarkRunning(id)
			r.MarkSucceeded(id, map[string]any{"id": id}, 1, false)
		}(id)
	}
	wg.Wait()

	counts := r.Counts()
	assert.Equal(t, 32, counts.Succeeded)
	assert.True(t, counts.Done())
	assert.Equal(t, StatusSucceeded, r.Finalize(false))
}

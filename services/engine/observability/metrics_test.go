// Copyright (C) 2026 PyClarity Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/kivo360/pyclarity/services/engine/events"
	"github.com/kivo360/pyclarity/services/engine/run"
)

func TestMetrics_NodeLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.Emit(events.Event{Type: events.TypeNodeStarted, Tool: "fetch"})
	assert.Equal(t, float64(1), testutil.ToFloat64(m.activeNodes))

	m.Emit(events.Event{
		Type:     events.TypeNodeSucceeded,
		Tool:     "fetch",
		Duration: 50 * time.Millisecond,
	})
	assert.Equal(t, float64(0), testutil.ToFloat64(m.activeNodes))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.nodesTotal.WithLabelValues("fetch", "succeeded")))
}

func TestMetrics_FailureRetrySkip(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.Emit(events.Event{Type: events.TypeNodeStarted, Tool: "fetch"})
	m.Emit(events.Event{Type: events.TypeNodeRetrying, Tool: "fetch", Attempt: 1})
	m.Emit(events.Event{Type: events.TypeNodeRetrying, Tool: "fetch", Attempt: 2})
	m.Emit(events.Event{Type: events.TypeNodeFailed, Tool: "fetch", Duration: time.Second})
	m.Emit(events.Event{Type: events.TypeNodeSkipped, Tool: "transform"})

	assert.Equal(t, float64(2), testutil.ToFloat64(m.retriesTotal.WithLabelValues("fetch")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.nodesTotal.WithLabelValues("fetch", "failed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.nodesTotal.WithLabelValues("transform", "skipped")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.activeNodes))
}

func TestMetrics_RunAndCache(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.Emit(events.Event{Type: events.TypeCacheHit, Tool: "fetch"})
	m.Emit(events.Event{
		Type:      events.TypeRunFinished,
		RunStatus: run.StatusPartiallyFailed,
		Duration:  2 * time.Second,
	})

	assert.Equal(t, float64(1), testutil.ToFloat64(m.cacheHits))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.runsTotal.WithLabelValues("partially_failed")))
}

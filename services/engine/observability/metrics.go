// Copyright (C) 2026 PyClarity Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability exports Prometheus metrics for workflow
// execution. Metrics is an events.Sink, so wiring it into the
// scheduler's emitter is all the instrumentation a caller needs.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kivo360/pyclarity/services/engine/events"
)

// Metrics holds the engine's Prometheus instruments.
type Metrics struct {
	runsTotal    *prometheus.CounterVec
	runDuration  prometheus.Histogram
	nodesTotal   *prometheus.CounterVec
	nodeDuration *prometheus.HistogramVec
	activeNodes  prometheus.Gauge
	retriesTotal *prometheus.CounterVec
	cacheHits    prometheus.Counter
}

// NewMetrics registers the engine's instruments with the given
// registerer. Use prometheus.DefaultRegisterer in production and a
// fresh prometheus.NewRegistry() in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pyclarity_runs_total",
			Help: "Total workflow runs by terminal status",
		}, []string{"status"}),

		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pyclarity_run_duration_seconds",
			Help:    "Wall-clock duration of workflow runs",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 30, 120, 600},
		}),

		nodesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pyclarity_nodes_total",
			Help: "Total node completions by tool and status",
		}, []string{"tool", "status"}),

		nodeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pyclarity_node_duration_seconds",
			Help:    "Node execution duration by tool",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30, 120},
		}, []string{"tool"}),

		activeNodes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pyclarity_active_nodes",
			Help: "Nodes currently executing",
		}),

		retriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pyclarity_node_retries_total",
			Help: "Total retry attempts by tool",
		}, []string{"tool"}),

		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "pyclarity_cache_hits_total",
			Help: "Total node executions satisfied from the result cache",
		}),
	}
}

// Emit updates instruments from a scheduler event.
func (m *Metrics) Emit(event events.Event) {
	switch event.Type {
	case events.TypeRunFinished:
		m.runsTotal.WithLabelValues(string(event.RunStatus)).Inc()
		m.runDuration.Observe(event.Duration.Seconds())

	case events.TypeNodeStarted:
		m.activeNodes.Inc()

	case events.TypeNodeSucceeded:
		m.activeNodes.Dec()
		m.nodesTotal.WithLabelValues(event.Tool, "succeeded").Inc()
		m.nodeDuration.WithLabelValues(event.Tool).Observe(event.Duration.Seconds())

	case events.TypeNodeFailed:
		m.activeNodes.Dec()
		m.nodesTotal.WithLabelValues(event.Tool, "failed").Inc()
		m.nodeDuration.WithLabelValues(event.Tool).Observe(event.Duration.Seconds())

	case events.TypeNodeSkipped:
		m.nodesTotal.WithLabelValues(event.Tool, "skipped").Inc()

	case events.TypeNodeRetrying:
		m.retriesTotal.WithLabelValues(event.Tool).Inc()

	case events.TypeCacheHit:
		m.cacheHits.Inc()
	}
}

var _ events.Sink = (*Metrics)(nil)

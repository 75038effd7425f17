// Copyright (C) 2026 PyClarity Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package events carries progress notifications out of the scheduler:
// run and node transitions, retries, and cache hits. Sinks observe;
// they cannot influence execution.
package events

import (
	"log/slog"
	"time"

	"github.com/kivo360/pyclarity/services/engine/run"
)

// Type identifies the kind of event.
type Type string

const (
	// TypeRunStarted fires once when a run begins.
	TypeRunStarted Type = "run.started"

	// TypeRunFinished fires once with the run's terminal status.
	TypeRunFinished Type = "run.finished"

	// TypeNodeStarted fires when a worker picks up a node.
	TypeNodeStarted Type = "node.started"

	// TypeNodeSucceeded fires when a node produces an output.
	TypeNodeSucceeded Type = "node.succeeded"

	// TypeNodeFailed fires when a node's retry budget is exhausted.
	TypeNodeFailed Type = "node.failed"

	// TypeNodeSkipped fires when a node is skipped.
	TypeNodeSkipped Type = "node.skipped"

	// TypeNodeRetrying fires before a retry attempt is scheduled.
	TypeNodeRetrying Type = "node.retrying"

	// TypeCacheHit fires when a cached output substitutes for execution.
	TypeCacheHit Type = "cache.hit"
)

// Event is a single progress notification.
type Event struct {
	Type      Type
	RunID     string
	PlanName  string
	NodeID    string
	Tool      string
	RunStatus run.Status
	Attempt   int
	Duration  time.Duration
	Err       error
	Timestamp time.Time
}

// Sink receives events from the scheduler.
//
// Thread Safety:
//
//	Emit may be called concurrently from multiple workers; sinks must
//	tolerate that. Emit must not block: slow consumers stall workers.
type Sink interface {
	Emit(event Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

// Emit calls the function.
func (f SinkFunc) Emit(event Event) { f(event) }

// NopSink discards all events.
type NopSink struct{}

// Emit discards the event.
func (NopSink) Emit(Event) {}

// SlogSink logs each event through a structured logger.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a sink that logs events at debug level, with
// failures at warn.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return &SlogSink{logger: logger}
}

// Emit logs the event.
func (s *SlogSink) Emit(event Event) {
	attrs := []any{
		slog.String("event", string(event.Type)),
		slog.String("run_id", event.RunID),
	}
	if event.NodeID != "" {
		attrs = append(attrs, slog.String("node", event.NodeID))
	}
	if event.Tool != "" {
		attrs = append(attrs, slog.String("tool", event.Tool))
	}
	if event.Attempt > 0 {
		attrs = append(attrs, slog.Int("attempt", event.Attempt))
	}
	if event.Duration > 0 {
		attrs = append(attrs, slog.Duration("duration", event.Duration))
	}
	if event.RunStatus != "" {
		attrs = append(attrs, slog.String("status", string(event.RunStatus)))
	}

	switch event.Type {
	case TypeNodeFailed:
		if event.Err != nil {
			attrs = append(attrs, slog.String("error", event.Err.Error()))
		}
		s.logger.Warn("workflow event", attrs...)
	case TypeNodeRetrying:
		if event.Err != nil {
			attrs = append(attrs, slog.String("error", event.Err.Error()))
		}
		s.logger.Info("workflow event", attrs...)
	case TypeRunStarted, TypeRunFinished:
		s.logger.Info("workflow event", attrs...)
	default:
		s.logger.Debug("workflow event", attrs...)
	}
}

var (
	_ Sink = SinkFunc(nil)
	_ Sink = NopSink{}
	_ Sink = (*SlogSink)(nil)
)

// Copyright (C) 2026 PyClarity Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/kivo360/pyclarity/services/engine/cache"
	"github.com/kivo360/pyclarity/services/engine/events"
	"github.com/kivo360/pyclarity/services/engine/plan"
	"github.com/kivo360/pyclarity/services/engine/policy"
	"github.com/kivo360/pyclarity/services/engine/run"
	"github.com/kivo360/pyclarity/services/engine/tool"
)

// worker acquires a parallelism slot and executes one node, reporting
// the outcome back to the coordinator exactly once.
func (s *Scheduler) worker(runCtx context.Context, node *plan.Node, state *run.Run, cfg RunConfig, sem *semaphore.Weighted, done chan<- outcome) {
	if err := sem.Acquire(runCtx, 1); err != nil {
		done <- outcome{nodeID: node.ID(), started: false}
		return
	}
	defer sem.Release(1)

	done <- s.executeNode(runCtx, node, state, cfg)
}

// executeNode runs one node: resolve inputs, consult the cache, then
// invoke the tool with per-attempt timeouts until the policy says stop.
func (s *Scheduler) executeNode(runCtx context.Context, node *plan.Node, state *run.Run, cfg RunConfig) outcome {
	start := time.Now()
	nodeID := node.ID()

	if _, err := state.MarkRunning(nodeID); err != nil {
		return outcome{nodeID: nodeID, started: false}
	}
	if s.activeNodes != nil {
		s.activeNodes.Add(runCtx, 1)
		defer s.activeNodes.Add(runCtx, -1)
	}
	cfg.Events.Emit(events.Event{
		Type:      events.TypeNodeStarted,
		RunID:     state.ID(),
		NodeID:    nodeID,
		Tool:      node.Tool(),
		Timestamp: time.Now(),
	})

	adapter, ok := s.registry.Lookup(node.Tool())
	if !ok {
		err := policy.NewNodeError(nodeID, 1, fmt.Errorf("%w: %s", ErrUnknownTool, node.Tool()))
		return outcome{
			nodeID:   nodeID,
			err:      err,
			action:   policy.ActionAbort,
			attempts: 1,
			started:  true,
			duration: time.Since(start),
		}
	}

	inputs := s.resolveInputs(node, state)

	fingerprint, fpErr := cache.Fingerprint(node.Tool(), inputs)
	if fpErr == nil {
		if output, hit := cfg.Cache.Get(runCtx, node.Tool(), fingerprint); hit {
			cfg.Events.Emit(events.Event{
				Type:      events.TypeCacheHit,
				RunID:     state.ID(),
				NodeID:    nodeID,
				Tool:      node.Tool(),
				Timestamp: time.Now(),
			})
			s.logger.Debug("cache hit",
				slog.String("run_id", state.ID()),
				slog.String("node", nodeID),
				slog.String("tool", node.Tool()))
			return outcome{
				nodeID:    nodeID,
				output:    output,
				fromCache: true,
				started:   true,
				duration:  time.Since(start),
			}
		}
	} else {
		// Unfingerprintable inputs make the node uncacheable, not unrunnable.
		s.logger.Debug("node inputs not cacheable",
			slog.String("node", nodeID),
			slog.String("error", fpErr.Error()))
	}

	timeout := node.Timeout()
	if timeout <= 0 {
		timeout = cfg.DefaultNodeTimeout
	}

	for attempt := 1; ; attempt++ {
		output, err := s.invoke(runCtx, node, adapter, inputs, attempt, timeout)
		if err == nil {
			if fpErr == nil {
				cfg.Cache.Put(runCtx, node.Tool(), fingerprint, output)
			}
			return outcome{
				nodeID:   nodeID,
				output:   output,
				attempts: attempt,
				started:  true,
				duration: time.Since(start),
			}
		}

		nodeErr := policy.NewNodeError(nodeID, attempt, err)
		decision := cfg.Policy.Decide(node.Tool(), nodeErr, attempt)
		if decision.Action != policy.ActionRetry {
			return outcome{
				nodeID:   nodeID,
				err:      nodeErr,
				action:   decision.Action,
				attempts: attempt,
				started:  true,
				duration: time.Since(start),
			}
		}

		state.RecordAttempt(nodeID)
		if s.nodeRetries != nil {
			s.nodeRetries.Add(runCtx, 1,
				metric.WithAttributes(attribute.String("tool", node.Tool())))
		}
		cfg.Events.Emit(events.Event{
			Type:      events.TypeNodeRetrying,
			RunID:     state.ID(),
			NodeID:    nodeID,
			Tool:      node.Tool(),
			Attempt:   attempt,
			Err:       nodeErr,
			Timestamp: time.Now(),
		})
		s.logger.Info("node retrying",
			slog.String("run_id", state.ID()),
			slog.String("node", nodeID),
			slog.String("tool", node.Tool()),
			slog.Int("attempt", attempt),
			slog.Duration("delay", decision.Delay),
			slog.String("error", err.Error()))

		select {
		case <-time.After(decision.Delay):
		case <-runCtx.Done():
			cancelErr := policy.NewNodeError(nodeID, attempt, runCtx.Err())
			return outcome{
				nodeID:   nodeID,
				err:      cancelErr,
				action:   policy.ActionSkip,
				attempts: attempt,
				started:  true,
				duration: time.Since(start),
			}
		}
	}
}

// invoke runs a single attempt under its own timeout and span.
func (s *Scheduler) invoke(runCtx context.Context, node *plan.Node, adapter tool.Adapter, inputs map[string]any, attempt int, timeout time.Duration) (map[string]any, error) {
	attemptCtx, cancel := context.WithTimeout(runCtx, timeout)
	defer cancel()

	attemptCtx, span := tracer.Start(attemptCtx, "workflow.Node",
		trace.WithAttributes(
			attribute.String("node.id", node.ID()),
			attribute.String("node.tool", node.Tool()),
			attribute.Int("node.attempt", attempt),
		),
	)
	defer span.End()

	attemptStart := time.Now()
	output, err := adapter.Invoke(attemptCtx, inputs)

	if s.nodeLatency != nil {
		s.nodeLatency.Record(runCtx, time.Since(attemptStart).Seconds(),
			metric.WithAttributes(attribute.String("tool", node.Tool())))
	}

	if err != nil {
		// An adapter may surface the deadline as its own error or just
		// return late; either way the attempt counts as a timeout.
		if attemptCtx.Err() != nil {
			err = fmt.Errorf("tool %s: %w", node.Tool(), attemptCtx.Err())
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return output, nil
}

// resolveInputs materializes a node's input map: literals pass through,
// references read the producing node's output. References onto a
// dependency that did not succeed (possible only for optional tools)
// resolve to nil.
func (s *Scheduler) resolveInputs(node *plan.Node, state *run.Run) map[string]any {
	authored := node.Invocation().Inputs
	resolved := make(map[string]any, len(authored))

	for name, value := range authored {
		if !value.IsRef() {
			resolved[name] = value.Literal
			continue
		}

		output, ok := state.Output(value.Ref.Invocation)
		if !ok {
			resolved[name] = nil
			continue
		}
		resolved[name] = output[value.Ref.Field]
	}
	return resolved
}

// Copyright (C) 2026 PyClarity Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package scheduler executes a validated plan with bounded parallelism.
//
// A single coordinator goroutine owns readiness evaluation and all
// status transitions to terminal states; workers execute one node each,
// bounded by a weighted semaphore, and report outcomes back over a
// channel. Retries happen inside the worker so a retrying node never
// releases its readiness slot.
package scheduler

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
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

var (
	tracer = otel.Tracer("pyclarity.scheduler")
	meter  = otel.Meter("pyclarity.scheduler")
)

// RunConfig tunes one workflow run.
type RunConfig struct {
	// Workers bounds concurrent node executions. Default: GOMAXPROCS.
	Workers int

	// DefaultNodeTimeout applies to nodes with no timeout of their own.
	// Default: 30s.
	DefaultNodeTimeout time.Duration

	// Cache substitutes previous outputs for fresh invocations.
	// Default: cache.Nop (caching disabled).
	Cache cache.ResultCache

	// Policy decides retry/skip/abort on node failure.
	// Default: policy.DefaultHandler().
	Policy *policy.Handler

	// Events receives progress notifications. Default: events.NopSink.
	Events events.Sink

	// ArchiveDir, when set, receives a JSON archive of the finished run.
	ArchiveDir string
}

func (c *RunConfig) normalize() {
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.DefaultNodeTimeout <= 0 {
		c.DefaultNodeTimeout = 30 * time.Second
	}
	if c.Cache == nil {
		c.Cache = cache.Nop{}
	}
	if c.Policy == nil {
		c.Policy = policy.DefaultHandler()
	}
	if c.Events == nil {
		c.Events = events.NopSink{}
	}
}

// Scheduler executes plans against a tool registry.
//
// Thread Safety:
//
//	Scheduler is safe for concurrent use. Multiple runs can execute
//	concurrently on the same Scheduler.
type Scheduler struct {
	registry *tool.Registry
	logger   *slog.Logger

	// Metrics (initialized lazily)
	metricsOnce sync.Once
	nodeLatency metric.Float64Histogram
	nodeRetries metric.Int64Counter
	activeNodes metric.Int64UpDownCounter
	runLatency  metric.Float64Histogram
}

// New creates a Scheduler.
//
// Inputs:
//
//	registry - Tool registry the plans were validated against. Must not be nil.
//	logger - Logger for run logs. If nil, uses slog.Default().
func New(registry *tool.Registry, logger *slog.Logger) (*Scheduler, error) {
	if registry == nil {
		return nil, ErrNilRegistry
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{registry: registry, logger: logger}, nil
}

// initMetrics lazily initializes metrics.
// Logs errors if metric creation fails but continues execution (graceful degradation).
func (s *Scheduler) initMetrics() {
	s.metricsOnce.Do(func() {
		var initErrors []string

		var err error
		s.nodeLatency, err = meter.Float64Histogram("workflow_node_duration_seconds",
			metric.WithDescription("Time spent executing each workflow node"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErrors = append(initErrors, "node_latency: "+err.Error())
		}

		s.nodeRetries, err = meter.Int64Counter("workflow_node_retries_total",
			metric.WithDescription("Number of node retry attempts"),
		)
		if err != nil {
			initErrors = append(initErrors, "node_retries: "+err.Error())
		}

		s.activeNodes, err = meter.Int64UpDownCounter("workflow_active_nodes",
			metric.WithDescription("Number of currently executing nodes"),
		)
		if err != nil {
			initErrors = append(initErrors, "active_nodes: "+err.Error())
		}

		s.runLatency, err = meter.Float64Histogram("workflow_run_duration_seconds",
			metric.WithDescription("Total workflow run time"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErrors = append(initErrors, "run_latency: "+err.Error())
		}

		if len(initErrors) > 0 {
			s.logger.Error("failed to initialize some scheduler metrics (observability degraded)",
				slog.Int("failed_count", len(initErrors)),
				slog.Any("errors", initErrors),
			)
		}
	})
}

// outcome is a worker's report for one node.
type outcome struct {
	nodeID    string
	output    map[string]any
	err       *policy.NodeError
	action    policy.Action
	attempts  int
	fromCache bool
	started   bool
	duration  time.Duration
}

// Run executes the plan to completion, cancellation, or abort.
//
// The returned Result is always populated when err is nil; inspect
// Result.Status for the run outcome. A non-nil error means the run
// could not start.
func (s *Scheduler) Run(ctx context.Context, p *plan.ExecutionPlan, cfg RunConfig) (*Result, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if p == nil {
		return nil, ErrNilPlan
	}
	cfg.normalize()
	s.initMetrics()

	runID := uuid.NewString()
	ctx, span := tracer.Start(ctx, "workflow.Run",
		trace.WithAttributes(
			attribute.String("workflow.name", p.Name()),
			attribute.String("workflow.run_id", runID),
			attribute.Int("workflow.node_count", p.NodeCount()),
		),
	)
	defer span.End()

	start := time.Now()
	state := run.New(runID, p.Name(), p.NodeIDs())

	s.logger.Info("run started",
		slog.String("workflow", p.Name()),
		slog.String("run_id", runID),
		slog.Int("nodes", p.NodeCount()),
		slog.Int("workers", cfg.Workers),
	)
	cfg.Events.Emit(events.Event{
		Type:      events.TypeRunStarted,
		RunID:     runID,
		PlanName:  p.Name(),
		Timestamp: time.Now(),
	})

	status := s.coordinate(ctx, p, state, cfg)

	duration := time.Since(start)
	if s.runLatency != nil {
		s.runLatency.Record(ctx, duration.Seconds(),
			metric.WithAttributes(attribute.String("workflow", p.Name())),
		)
	}

	archivePath := ""
	if cfg.ArchiveDir != "" {
		snap, err := state.Snapshot()
		if err == nil {
			archivePath, err = run.WriteArchive(cfg.ArchiveDir, snap)
		}
		if err != nil {
			s.logger.Warn("run archive failed",
				slog.String("run_id", runID),
				slog.String("error", err.Error()))
		}
	}

	cfg.Events.Emit(events.Event{
		Type:      events.TypeRunFinished,
		RunID:     runID,
		PlanName:  p.Name(),
		RunStatus: status,
		Duration:  duration,
		Timestamp: time.Now(),
	})

	counts := state.Counts()
	if status == run.StatusSucceeded {
		span.SetStatus(codes.Ok, "")
		s.logger.Info("run completed",
			slog.String("run_id", runID),
			slog.Duration("duration", duration),
			slog.Int("succeeded", counts.Succeeded),
		)
	} else {
		span.SetStatus(codes.Error, string(status))
		s.logger.Warn("run did not fully succeed",
			slog.String("run_id", runID),
			slog.String("status", string(status)),
			slog.Duration("duration", duration),
			slog.Int("succeeded", counts.Succeeded),
			slog.Int("failed", counts.Failed),
			slog.Int("skipped", counts.Skipped),
		)
	}

	return buildResult(state, p.NodeIDs(), archivePath), nil
}

// coordinate is the scheduling loop. It dispatches ready nodes, applies
// skip cascades, and reacts to worker outcomes until every node is
// terminal, then derives the run's terminal status.
func (s *Scheduler) coordinate(ctx context.Context, p *plan.ExecutionPlan, state *run.Run, cfg RunConfig) run.Status {
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	sem := semaphore.NewWeighted(int64(cfg.Workers))
	done := make(chan outcome, p.NodeCount())

	var (
		inFlight  int
		aborted   bool
		cancelled bool
	)
	ctxDone := ctx.Done()

	for {
		// External cancellation outranks abort even when a worker's
		// abort outcome races ahead of the context signal.
		if !cancelled && ctx.Err() != nil {
			cancelled = true
			ctxDone = nil
			state.SetStatus(run.StatusCancelling)
			cancelRun()
		}

		if aborted || cancelled {
			s.skipPending(p, state, cfg, skipCauseFor(aborted))
		} else {
			inFlight += s.dispatch(runCtx, p, state, cfg, sem, done)
		}

		if inFlight == 0 && state.Counts().Done() {
			break
		}

		select {
		case out := <-done:
			inFlight--
			s.record(p, state, cfg, out)
			if out.err != nil && out.action == policy.ActionAbort && !cancelled && !aborted {
				aborted = true
				cancelRun()
			}

		case <-ctxDone:
			ctxDone = nil
			cancelled = true
			state.SetStatus(run.StatusCancelling)
			s.logger.Info("run cancelling",
				slog.String("run_id", state.ID()),
				slog.Int("in_flight", inFlight))
			cancelRun()
		}
	}

	if aborted && !cancelled {
		state.SetStatus(run.StatusFailed)
		return run.StatusFailed
	}
	return state.Finalize(cancelled)
}

func skipCauseFor(aborted bool) string {
	if aborted {
		return "aborted"
	}
	return "cancelled"
}

// dispatch marks runnable pending nodes ready and launches workers for
// them. Pending nodes whose dependencies can never be satisfied are
// skipped; skipping can enable further skips, so the scan repeats until
// it makes no progress. Returns the number of workers launched.
func (s *Scheduler) dispatch(runCtx context.Context, p *plan.ExecutionPlan, state *run.Run, cfg RunConfig, sem *semaphore.Weighted, done chan<- outcome) int {
	launched := 0
	for {
		progressed := false

		for _, id := range p.NodeIDs() {
			status, ok := state.NodeStatus(id)
			if !ok || status != run.NodePending {
				continue
			}
			node, _ := p.Node(id)

			runnable, blockedBy, settled := s.evaluate(p, state, cfg, node)
			if !settled {
				continue
			}
			if !runnable {
				if _, err := state.MarkSkipped(id, blockedBy); err == nil {
					progressed = true
					cfg.Events.Emit(events.Event{
						Type:      events.TypeNodeSkipped,
						RunID:     state.ID(),
						PlanName:  p.Name(),
						NodeID:    id,
						Tool:      node.Tool(),
						Timestamp: time.Now(),
					})
				}
				continue
			}

			if _, err := state.MarkReady(id); err != nil {
				continue
			}
			progressed = true
			launched++
			go s.worker(runCtx, node, state, cfg, sem, done)
		}

		if !progressed {
			return launched
		}
	}
}

// evaluate decides a pending node's fate from its predecessors.
//
// Outputs:
//
//	runnable - True when every dependency is satisfied.
//	blockedBy - The failed or skipped dependency id, when not runnable.
//	settled - False while some dependency is still in flight.
func (s *Scheduler) evaluate(p *plan.ExecutionPlan, state *run.Run, cfg RunConfig, node *plan.Node) (runnable bool, blockedBy string, settled bool) {
	for _, pred := range node.Predecessors() {
		predStatus, ok := state.NodeStatus(pred)
		if !ok {
			continue
		}
		if !predStatus.Terminal() {
			return false, "", false
		}
		if predStatus == run.NodeSucceeded {
			continue
		}

		// Failed or skipped dependency: optional tools let dependents
		// run with nil reference values, everything else cascades.
		predNode, ok := p.Node(pred)
		if !ok || cfg.Policy.Criticality(predNode.Tool()) != policy.CriticalityOptional {
			return false, pred, true
		}
	}
	return true, "", true
}

// skipPending closes out every pending node after an abort or
// cancellation.
func (s *Scheduler) skipPending(p *plan.ExecutionPlan, state *run.Run, cfg RunConfig, cause string) {
	for _, id := range p.NodeIDs() {
		status, ok := state.NodeStatus(id)
		if !ok || status != run.NodePending {
			continue
		}
		if _, err := state.MarkSkipped(id, cause); err != nil {
			continue
		}
		node, _ := p.Node(id)
		cfg.Events.Emit(events.Event{
			Type:      events.TypeNodeSkipped,
			RunID:     state.ID(),
			PlanName:  p.Name(),
			NodeID:    id,
			Tool:      node.Tool(),
			Timestamp: time.Now(),
		})
	}
}

// record applies a worker outcome to the run state and emits the
// matching event.
func (s *Scheduler) record(p *plan.ExecutionPlan, state *run.Run, cfg RunConfig, out outcome) {
	node, _ := p.Node(out.nodeID)
	toolName := ""
	if node != nil {
		toolName = node.Tool()
	}

	switch {
	case !out.started:
		// Worker never got a slot: the run was cancelled or aborted
		// while it waited.
		state.MarkSkipped(out.nodeID, "cancelled")
		cfg.Events.Emit(events.Event{
			Type:      events.TypeNodeSkipped,
			RunID:     state.ID(),
			PlanName:  p.Name(),
			NodeID:    out.nodeID,
			Tool:      toolName,
			Timestamp: time.Now(),
		})

	case out.err == nil:
		state.MarkSucceeded(out.nodeID, out.output, out.attempts, out.fromCache)
		cfg.Events.Emit(events.Event{
			Type:      events.TypeNodeSucceeded,
			RunID:     state.ID(),
			PlanName:  p.Name(),
			NodeID:    out.nodeID,
			Tool:      toolName,
			Attempt:   out.attempts,
			Duration:  out.duration,
			Timestamp: time.Now(),
		})

	default:
		state.MarkFailed(out.nodeID, out.err, out.attempts)
		cfg.Events.Emit(events.Event{
			Type:      events.TypeNodeFailed,
			RunID:     state.ID(),
			PlanName:  p.Name(),
			NodeID:    out.nodeID,
			Tool:      toolName,
			Attempt:   out.attempts,
			Duration:  out.duration,
			Err:       out.err,
			Timestamp: time.Now(),
		})
	}
}

// Copyright (C) 2026 PyClarity Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/kivo360/pyclarity/pkg/logging"
	"github.com/kivo360/pyclarity/services/engine/builtin"
	"github.com/kivo360/pyclarity/services/engine/cache"
	"github.com/kivo360/pyclarity/services/engine/events"
	"github.com/kivo360/pyclarity/services/engine/observability"
	"github.com/kivo360/pyclarity/services/engine/plan"
	"github.com/kivo360/pyclarity/services/engine/policy"
	"github.com/kivo360/pyclarity/services/engine/run"
	"github.com/kivo360/pyclarity/services/engine/scheduler"
	"github.com/kivo360/pyclarity/services/engine/tool"
	"github.com/kivo360/pyclarity/services/engine/workflow"
)

// runWorkflow loads a workflow definition, builds its execution plan,
// and runs it to completion.
//
// Description:
//
//	Cancellation via SIGINT/SIGTERM stops dispatch, lets in-flight
//	nodes drain, and reports the run as cancelled. The exit code is
//	non-zero unless every node succeeded.
//
// Inputs:
//
//	args[0] - Path to the workflow YAML file.
//
// Outputs:
//
//	error - Non-nil on load, build, or execution failure.
func runWorkflow(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	defer logger.Close()

	registry := tool.NewRegistry()
	if err := builtin.Register(registry); err != nil {
		return fmt.Errorf("register builtin tools: %w", err)
	}

	def, err := workflow.LoadFile(args[0])
	if err != nil {
		return fmt.Errorf("load workflow: %w", err)
	}

	p, err := plan.Build(def, registry)
	if err != nil {
		return fmt.Errorf("build plan: %w", err)
	}

	timeout, err := time.ParseDuration(nodeTimeout)
	if err != nil {
		return fmt.Errorf("parse --timeout: %w", err)
	}

	handler, err := policy.NewHandler(policy.Rule{
		MaxAttempts: maxAttempts,
		Backoff:     policy.DefaultBackoff(),
	})
	if err != nil {
		return fmt.Errorf("build failure policy: %w", err)
	}

	resultCache, closeCache, err := openCache(logger)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer closeCache()

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	emitter := events.NewEmitter(events.NewSlogSink(logger.Slog()), metrics)

	sched, err := scheduler.New(registry, logger.Slog())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting workflow run",
		"workflow", def.Name,
		"nodes", p.NodeCount(),
		"workers", workers,
	)

	result, err := sched.Run(ctx, p, scheduler.RunConfig{
		Workers:            workers,
		DefaultNodeTimeout: timeout,
		Cache:              resultCache,
		Policy:             handler,
		Events:             emitter,
		ArchiveDir:         expandPath(archiveDir),
	})
	if err != nil {
		return fmt.Errorf("run workflow: %w", err)
	}

	printResult(p, result)

	if !result.Succeeded() {
		return fmt.Errorf("run %s finished %s", result.RunID, result.Status)
	}
	return nil
}

// openCache builds the result cache selected by --cache. The returned
// close function is a no-op for backends without resources to release.
func openCache(logger *logging.Logger) (cache.ResultCache, func(), error) {
	nop := func() {}
	switch cacheKind {
	case "none", "":
		return cache.Nop{}, nop, nil
	case "memory":
		return cache.NewMemory(cache.DefaultMemoryOptions()), nop, nil
	case "badger":
		cfg := cache.DefaultBadgerConfig(expandPath(cacheDir))
		cfg.Logger = logger.Slog()
		store, err := cache.OpenBadger(cfg)
		if err != nil {
			return nil, nop, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nop, fmt.Errorf("unknown cache backend %q (want none, memory, or badger)", cacheKind)
	}
}

// printResult writes a per-node summary in layer order, so output reads
// in roughly the order nodes executed.
func printResult(p *plan.ExecutionPlan, result *scheduler.Result) {
	fmt.Printf("\nRun %s (%s): %s in %s\n", result.RunID, result.PlanName,
		result.Status, result.Duration.Round(time.Millisecond))

	for _, layer := range p.Layers() {
		ids := append([]string(nil), layer...)
		sort.Strings(ids)
		for _, id := range ids {
			node, ok := result.Nodes[id]
			if !ok {
				continue
			}
			fmt.Printf("  %-10s %s", node.Status, id)
			switch node.Status {
			case run.NodeSucceeded:
				if node.FromCache {
					fmt.Print("  (cached)")
				} else if node.Attempts > 1 {
					fmt.Printf("  (%d attempts)", node.Attempts)
				}
				if len(node.Output) > 0 {
					fmt.Printf("  %v", node.Output)
				}
			case run.NodeFailed:
				fmt.Printf("  error: %s", node.Error)
			case run.NodeSkipped:
				fmt.Printf("  cause: %s", node.SkipCause)
			}
			fmt.Println()
		}
	}

	if result.ArchivePath != "" {
		fmt.Printf("Archive: %s\n", result.ArchivePath)
	}
}

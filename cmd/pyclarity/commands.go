// Copyright (C) 2026 PyClarity Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

// --- Global Command Variables ---
var (
	workers     int
	nodeTimeout string
	maxAttempts int
	cacheKind   string // result cache backend (none/memory/badger)
	cacheDir    string
	archiveDir  string
	logJSON     bool
	verbose     bool

	rootCmd = &cobra.Command{
		Use:   "pyclarity",
		Short: "A cli to run and validate PyClarity workflow definitions",
		Long: `PyClarity executes DAGs of tool invocations with bounded
				parallelism, retry policies, and result caching.`,
		SilenceUsage: true,
	}

	runCmd = &cobra.Command{
		Use:   "run [workflow.yaml]",
		Short: "Execute a workflow definition",
		Args:  cobra.ExactArgs(1),
		RunE:  runWorkflow, // Defined in cmd_run.go
	}

	validateCmd = &cobra.Command{
		Use:   "validate [workflow.yaml]",
		Short: "Build the execution plan without running it and print its layers",
		Args:  cobra.ExactArgs(1),
		RunE:  validateWorkflow, // Defined in cmd_validate.go
	}

	toolsCmd = &cobra.Command{
		Use:   "tools",
		Short: "List the built-in tool adapters",
		RunE:  listTools, // Defined in cmd_validate.go
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the pyclarity version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("pyclarity " + version)
		},
	}
)

// init runs when the Go program starts
func init() {
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false,
		"Force JSON log output (default: JSON when stderr is not a terminal)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging")

	rootCmd.AddCommand(runCmd)
	runCmd.Flags().IntVar(&workers, "workers", 0,
		"Maximum concurrent node executions (default: number of CPUs)")
	runCmd.Flags().StringVar(&nodeTimeout, "timeout", "30s",
		"Default per-node timeout for nodes without their own")
	runCmd.Flags().IntVar(&maxAttempts, "max-attempts", 3,
		"Total attempts per node before its failure is final")
	runCmd.Flags().StringVar(&cacheKind, "cache", "none",
		"Result cache backend: 'none', 'memory', or 'badger'")
	runCmd.Flags().StringVar(&cacheDir, "cache-dir", "~/.pyclarity/cache",
		"Directory for the badger cache backend")
	runCmd.Flags().StringVar(&archiveDir, "archive-dir", "",
		"Write a JSON archive of the finished run into this directory")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(versionCmd)
}

// Copyright (C) 2026 PyClarity Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kivo360/pyclarity/services/engine/builtin"
	"github.com/kivo360/pyclarity/services/engine/plan"
	"github.com/kivo360/pyclarity/services/engine/tool"
	"github.com/kivo360/pyclarity/services/engine/workflow"
)

// validateWorkflow builds the execution plan without running it and
// prints the topological layers, so cycles, schema mismatches, and
// unknown tools surface before anything executes.
func validateWorkflow(cmd *cobra.Command, args []string) error {
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

	fmt.Printf("Workflow %q is valid: %d nodes\n", p.Name(), p.NodeCount())
	for i, layer := range p.Layers() {
		fmt.Printf("  layer %d: %s\n", i, strings.Join(layer, ", "))
	}
	return nil
}

// listTools prints the built-in adapter specs.
func listTools(cmd *cobra.Command, args []string) error {
	registry := tool.NewRegistry()
	if err := builtin.Register(registry); err != nil {
		return err
	}

	for _, name := range registry.Names() {
		adapter, ok := registry.Lookup(name)
		if !ok {
			continue
		}
		spec := adapter.Spec()
		fmt.Printf("%s\n", spec.Name)
		for _, param := range spec.Inputs {
			required := ""
			if param.Required {
				required = " (required)"
			}
			fmt.Printf("  in:  %s %s%s\n", param.Name, param.Type, required)
		}
		for _, field := range spec.Outputs {
			fmt.Printf("  out: %s %s\n", field.Name, field.Type)
		}
	}
	return nil
}

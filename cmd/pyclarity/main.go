// Copyright (C) 2026 PyClarity Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command pyclarity runs and validates workflow definitions.
//
// Usage:
//
//	pyclarity run workflow.yaml
//	pyclarity run workflow.yaml --workers 8 --cache memory
//	pyclarity validate workflow.yaml
//	pyclarity version
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

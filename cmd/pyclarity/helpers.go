// Copyright (C) 2026 PyClarity Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"

	"github.com/kivo360/pyclarity/pkg/logging"
)

// newLogger builds the CLI logger from the global flags. Output is
// human-readable text on a terminal and JSON when piped, unless
// --log-json forces JSON.
func newLogger() *logging.Logger {
	level := logging.LevelInfo
	if verbose {
		level = logging.LevelDebug
	}

	useJSON := logJSON
	if !useJSON {
		fd := os.Stderr.Fd()
		useJSON = !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd)
	}

	return logging.New(logging.Config{
		Level:   level,
		Service: "pyclarity",
		JSON:    useJSON,
	})
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

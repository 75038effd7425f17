// Copyright (C) 2026 PyClarity Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package run

import "errors"

var (
	// ErrUnknownNode is returned when a node id is not part of the run.
	ErrUnknownNode = errors.New("unknown node")

	// ErrBadTransition is returned when a status change violates the
	// node lifecycle.
	ErrBadTransition = errors.New("invalid status transition")

	// ErrArchiveCorrupt is returned when an archive's checksum does not
	// match its payload.
	ErrArchiveCorrupt = errors.New("archive checksum mismatch")

	// ErrArchiveVersion is returned when an archive was written by an
	// incompatible format version.
	ErrArchiveVersion = errors.New("unsupported archive version")
)

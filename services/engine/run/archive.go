// Copyright (C) 2026 PyClarity Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package run

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ArchiveVersion identifies the archive format. Bump on incompatible
// changes to Snapshot.
const ArchiveVersion = "1.0.0"

// Snapshot is an immutable point-in-time copy of a run, suitable for
// archival and post-hoc inspection.
type Snapshot struct {
	Version   string                `json:"version"`
	RunID     string                `json:"run_id"`
	PlanName  string                `json:"plan_name"`
	Status    Status                `json:"status"`
	Nodes     map[string]NodeRecord `json:"nodes"`
	StartedAt time.Time             `json:"started_at"`
	EndedAt   time.Time             `json:"ended_at,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
}

// archiveEnvelope wraps a snapshot with an integrity checksum.
type archiveEnvelope struct {
	Checksum string          `json:"checksum"`
	Snapshot json.RawMessage `json:"snapshot"`
}

// Snapshot captures the run's current state. Node outputs are deep
// copied through a JSON round trip so later mutations of live state
// cannot leak into the snapshot.
func (r *Run) Snapshot() (*Snapshot, error) {
	r.mu.RLock()
	nodes := make(map[string]NodeRecord, len(r.nodes))
	for id, record := range r.nodes {
		nodes[id] = *record
	}
	snap := &Snapshot{
		Version:   ArchiveVersion,
		RunID:     r.id,
		PlanName:  r.planName,
		Status:    r.status,
		Nodes:     nodes,
		StartedAt: r.startedAt,
		EndedAt:   r.endedAt,
		CreatedAt: time.Now(),
	}
	r.mu.RUnlock()

	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode run snapshot: %w", err)
	}
	var detached Snapshot
	if err := json.Unmarshal(raw, &detached); err != nil {
		return nil, fmt.Errorf("decode run snapshot: %w", err)
	}
	return &detached, nil
}

// WriteArchive writes the snapshot to dir as <run-id>.json with an
// embedded sha256 checksum. The write goes through a temp file and
// rename so readers never observe a partial archive.
func WriteArchive(dir string, snap *Snapshot) (string, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("create archive directory %s: %w", dir, err)
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("encode archive payload: %w", err)
	}

	sum := sha256.Sum256(payload)
	envelope := archiveEnvelope{
		Checksum: hex.EncodeToString(sum[:]),
		Snapshot: payload,
	}

	data, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode archive envelope: %w", err)
	}

	path := filepath.Join(dir, snap.RunID+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0640); err != nil {
		return "", fmt.Errorf("write archive %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("finalize archive %s: %w", path, err)
	}
	return path, nil
}

// ReadArchive loads and verifies an archived snapshot.
//
// Outputs:
//
//	*Snapshot - The verified snapshot.
//	error - ErrArchiveCorrupt on checksum mismatch, ErrArchiveVersion on
//	        an incompatible format version, or an I/O or decode error.
func ReadArchive(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read archive %s: %w", path, err)
	}

	var envelope archiveEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode archive envelope %s: %w", path, err)
	}

	sum := sha256.Sum256(envelope.Snapshot)
	if hex.EncodeToString(sum[:]) != envelope.Checksum {
		return nil, fmt.Errorf("%w: %s", ErrArchiveCorrupt, path)
	}

	var snap Snapshot
	if err := json.Unmarshal(envelope.Snapshot, &snap); err != nil {
		return nil, fmt.Errorf("decode archive snapshot %s: %w", path, err)
	}
	if snap.Version != ArchiveVersion {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrArchiveVersion, snap.Version, ArchiveVersion)
	}
	return &snap, nil
}

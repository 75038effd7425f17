// Copyright (C) 2026 PyClarity Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerConfig holds configuration for the persistent cache backend.
type BadgerConfig struct {
	// Path is the directory for database files. Required unless InMemory.
	Path string

	// InMemory enables in-memory mode (no disk persistence). For tests.
	InMemory bool

	// SyncWrites enables synchronous writes. The cache is advisory, so
	// this defaults off; losing entries on crash only costs recomputation.
	SyncWrites bool

	// TTL expires entries after this duration, enforced by BadgerDB
	// itself. Zero keeps entries until evicted by compaction.
	TTL time.Duration

	// Logger receives BadgerDB's internal log output. If nil, BadgerDB
	// logging is disabled.
	Logger *slog.Logger
}

// DefaultBadgerConfig returns the standard persistent configuration.
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{
		Path: path,
		TTL:  24 * time.Hour,
	}
}

// InMemoryBadgerConfig returns a configuration for testing.
func InMemoryBadgerConfig() BadgerConfig {
	return BadgerConfig{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Badger is a ResultCache backed by an embedded BadgerDB, giving cached
// outputs a lifetime beyond a single process.
//
// Thread Safety:
//
//	Badger is safe for concurrent use; BadgerDB handles transaction
//	isolation internally.
type Badger struct {
	db     *badger.DB
	ttl    time.Duration
	logger *slog.Logger
}

// OpenBadger opens (creating if needed) the persistent cache.
//
// Outputs:
//
//	*Badger - The opened cache. Caller must call Close() when done.
//	error - Non-nil if the path is invalid or the database cannot open.
func OpenBadger(cfg BadgerConfig) (*Badger, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent cache")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Badger{db: db, ttl: cfg.TTL, logger: logger}, nil
}

// Get returns the cached output if a fresh entry exists. Decode failures
// and storage errors report a miss.
func (b *Badger) Get(_ context.Context, toolName, fingerprint string) (map[string]any, bool) {
	key := []byte(cacheKey(toolName, fingerprint))

	var raw []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			b.logger.Warn("cache read failed",
				slog.String("tool", toolName),
				slog.String("error", err.Error()))
		}
		return nil, false
	}

	var output map[string]any
	if err := json.Unmarshal(raw, &output); err != nil {
		b.logger.Warn("cache entry undecodable, treating as miss",
			slog.String("tool", toolName),
			slog.String("error", err.Error()))
		return nil, false
	}
	return output, true
}

// Put stores an output. Errors are logged and swallowed; the cache is
// advisory and a failed write must not fail the node.
func (b *Badger) Put(_ context.Context, toolName, fingerprint string, output map[string]any) {
	raw, err := json.Marshal(output)
	if err != nil {
		b.logger.Warn("cache entry unencodable, skipping",
			slog.String("tool", toolName),
			slog.String("error", err.Error()))
		return
	}

	key := []byte(cacheKey(toolName, fingerprint))
	err = b.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key, raw)
		if b.ttl > 0 {
			entry = entry.WithTTL(b.ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		b.logger.Warn("cache write failed",
			slog.String("tool", toolName),
			slog.String("error", err.Error()))
	}
}

// Close closes the underlying database.
func (b *Badger) Close() error {
	return b.db.Close()
}

var _ ResultCache = (*Badger)(nil)

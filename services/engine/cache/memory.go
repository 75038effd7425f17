// Copyright (C) 2026 PyClarity Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryOptions configures the in-memory cache.
type MemoryOptions struct {
	// MaxEntries bounds the cache; least-recently-used entries are
	// evicted beyond it. Default: 1024.
	MaxEntries int

	// TTL expires entries after this duration; an expired entry reports
	// a miss even if still present. Zero disables expiry.
	TTL time.Duration
}

// DefaultMemoryOptions returns the standard bounds.
func DefaultMemoryOptions() MemoryOptions {
	return MemoryOptions{
		MaxEntries: 1024,
		TTL:        1 * time.Hour,
	}
}

type memoryEntry struct {
	key       string
	output    map[string]any
	createdAt time.Time
	element   *list.Element
}

// Memory is a bounded in-memory ResultCache with LRU eviction and TTL.
//
// Thread Safety:
//
//	Memory is safe for concurrent use. Concurrent Puts for the same key
//	do not block each other; the last write wins.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	lru     *list.List
	opts    MemoryOptions

	hits      int64
	misses    int64
	evictions int64
}

// NewMemory creates an in-memory cache with the given options.
func NewMemory(opts MemoryOptions) *Memory {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMemoryOptions().MaxEntries
	}
	return &Memory{
		entries: make(map[string]*memoryEntry),
		lru:     list.New(),
		opts:    opts,
	}
}

// Get returns the cached output if present and within TTL.
func (m *Memory) Get(_ context.Context, toolName, fingerprint string) (map[string]any, bool) {
	key := cacheKey(toolName, fingerprint)

	m.mu.Lock()
	entry, ok := m.entries[key]
	if !ok {
		m.mu.Unlock()
		atomic.AddInt64(&m.misses, 1)
		return nil, false
	}

	if m.opts.TTL > 0 && time.Since(entry.createdAt) > m.opts.TTL {
		m.removeLocked(entry)
		m.mu.Unlock()
		atomic.AddInt64(&m.misses, 1)
		return nil, false
	}

	m.lru.MoveToFront(entry.element)
	output := entry.output
	m.mu.Unlock()

	atomic.AddInt64(&m.hits, 1)
	return output, true
}

// Put stores an output, overwriting any previous value for the key and
// evicting the least-recently-used entries beyond the configured bound.
func (m *Memory) Put(_ context.Context, toolName, fingerprint string, output map[string]any) {
	key := cacheKey(toolName, fingerprint)

	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.entries[key]; ok {
		entry.output = output
		entry.createdAt = time.Now()
		m.lru.MoveToFront(entry.element)
		return
	}

	entry := &memoryEntry{
		key:       key,
		output:    output,
		createdAt: time.Now(),
	}
	entry.element = m.lru.PushFront(entry)
	m.entries[key] = entry

	for len(m.entries) > m.opts.MaxEntries {
		oldest := m.lru.Back()
		if oldest == nil {
			break
		}
		m.removeLocked(oldest.Value.(*memoryEntry))
		atomic.AddInt64(&m.evictions, 1)
	}
}

// Len returns the current entry count.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Entries   int
}

// Stats returns the current counters.
func (m *Memory) Stats() Stats {
	return Stats{
		Hits:      atomic.LoadInt64(&m.hits),
		Misses:    atomic.LoadInt64(&m.misses),
		Evictions: atomic.LoadInt64(&m.evictions),
		Entries:   m.Len(),
	}
}

// removeLocked deletes an entry. Caller holds m.mu.
func (m *Memory) removeLocked(entry *memoryEntry) {
	m.lru.Remove(entry.element)
	delete(m.entries, entry.key)
}

func cacheKey(toolName, fingerprint string) string {
	return toolName + "\x00" + fingerprint
}

var _ ResultCache = (*Memory)(nil)

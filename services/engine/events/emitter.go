// Copyright (C) 2026 PyClarity Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package events

import (
	"sync"

	"github.com/google/uuid"
)

// Emitter fans events out to a dynamic set of sinks.
//
// Thread Safety:
//
//	Subscribe, Unsubscribe, and Emit are safe for concurrent use. Emit
//	holds a read lock while calling sinks, so a sink must not call
//	Subscribe or Unsubscribe from within Emit.
type Emitter struct {
	mu    sync.RWMutex
	sinks map[string]Sink
}

// NewEmitter creates an Emitter with the given initial sinks.
func NewEmitter(sinks ...Sink) *Emitter {
	e := &Emitter{sinks: make(map[string]Sink)}
	for _, sink := range sinks {
		e.Subscribe(sink)
	}
	return e
}

// Subscribe registers a sink and returns its subscription id.
func (e *Emitter) Subscribe(sink Sink) string {
	id := uuid.NewString()
	e.mu.Lock()
	e.sinks[id] = sink
	e.mu.Unlock()
	return id
}

// Unsubscribe removes a sink by its subscription id.
func (e *Emitter) Unsubscribe(id string) {
	e.mu.Lock()
	delete(e.sinks, id)
	e.mu.Unlock()
}

// Emit delivers the event to every subscribed sink.
func (e *Emitter) Emit(event Event) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, sink := range e.sinks {
		sink.Emit(event)
	}
}

// Len returns the number of subscribed sinks.
func (e *Emitter) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.sinks)
}

var _ Sink = (*Emitter)(nil)

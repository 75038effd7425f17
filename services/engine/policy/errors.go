// Copyright (C) 2026 PyClarity Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package policy

import (
	"context"
	"errors"
	"fmt"
)

// ErrTransient marks a failure as retryable. Adapters wrap it to signal
// resource exhaustion, connection loss, or similar recoverable conditions:
//
//	return nil, fmt.Errorf("%w: connection reset", policy.ErrTransient)
var ErrTransient = errors.New("transient failure")

// Kind classifies a node execution error for the retry policy.
type Kind string

const (
	// KindTimeout means the node exceeded its per-node timeout.
	KindTimeout Kind = "timeout"

	// KindTransient means the adapter reported a retryable condition.
	KindTransient Kind = "transient"

	// KindToolFailed means the wrapped tool reported a non-retryable failure.
	KindToolFailed Kind = "tool_failed"

	// KindCancelled means the run was cancelled while the node executed.
	KindCancelled Kind = "cancelled"
)

// Retryable reports whether errors of this kind may be retried.
func (k Kind) Retryable() bool {
	switch k {
	case KindTimeout, KindTransient:
		return true
	default:
		return false
	}
}

// Classify maps a node execution error to its Kind.
//
// Deadline expiry classifies as KindTimeout, context cancellation as
// KindCancelled, anything wrapping ErrTransient as KindTransient, and
// everything else as KindToolFailed.
func Classify(err error) Kind {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, ErrTransient):
		return KindTransient
	default:
		return KindToolFailed
	}
}

// NodeError records one failed attempt of one node. It carries the
// originating node id and attempt number per the engine's error contract.
type NodeError struct {
	NodeID  string
	Attempt int
	Kind    Kind
	Err     error
}

// Error returns the error message.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %q attempt %d (%s): %v", e.NodeID, e.Attempt, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// NewNodeError classifies err and wraps it with node attribution.
func NewNodeError(nodeID string, attempt int, err error) *NodeError {
	return &NodeError{
		NodeID:  nodeID,
		Attempt: attempt,
		Kind:    Classify(err),
		Err:     err,
	}
}

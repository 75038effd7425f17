// Copyright (C) 2026 PyClarity Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package policy decides what happens when a workflow node fails: retry
// with backoff, skip the node and its dependents, or abort the run.
//
// The decision is re-evaluated independently per node; the handler keeps
// no cross-node memory beyond its configuration.
package policy

import (
	"errors"
	"time"
)

// Criticality states how downstream consumers tolerate a node's failure
// after its retry budget is exhausted.
type Criticality int

const (
	// CriticalityRequired skips all dependents; the run continues and
	// terminates PartiallyFailed. This is the default.
	CriticalityRequired Criticality = iota

	// CriticalityOptional lets dependents run anyway; their reference
	// inputs onto the failed node resolve to nil.
	CriticalityOptional

	// CriticalityCritical aborts the entire run immediately.
	CriticalityCritical
)

// String returns the human-readable name of the criticality level.
func (c Criticality) String() string {
	switch c {
	case CriticalityOptional:
		return "optional"
	case CriticalityCritical:
		return "critical"
	default:
		return "required"
	}
}

// Action is the outcome of a failure decision.
type Action int

const (
	// ActionRetry re-runs the node after Decision.Delay.
	ActionRetry Action = iota

	// ActionSkip records the failure and skips dependents according to
	// the node's criticality.
	ActionSkip

	// ActionAbort cancels the whole run.
	ActionAbort
)

// String returns the human-readable name of the action.
func (a Action) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionAbort:
		return "abort"
	default:
		return "skip"
	}
}

// Decision is the handler's verdict for one failed attempt.
type Decision struct {
	Action Action

	// Delay applies only to ActionRetry.
	Delay time.Duration
}

// Rule is the per-tool failure policy.
//
// MaxAttempts counts total attempts including the first: MaxAttempts=2
// yields exactly two attempts before the node is declared Failed, even
// when a third attempt would have succeeded. MaxAttempts=1 disables
// retries entirely.
type Rule struct {
	MaxAttempts int
	Backoff     Backoff
	Criticality Criticality
}

// DefaultRule returns the standard policy: three total attempts with
// exponential backoff, failures required by dependents.
func DefaultRule() Rule {
	return Rule{
		MaxAttempts: 3,
		Backoff:     DefaultBackoff(),
		Criticality: CriticalityRequired,
	}
}

// Validate checks the rule's invariants.
func (r Rule) Validate() error {
	if r.MaxAttempts < 1 {
		return ErrInvalidRule
	}
	if r.Backoff.Initial <= 0 || r.Backoff.Max < r.Backoff.Initial || r.Backoff.Factor < 1.0 {
		return ErrInvalidRule
	}
	return nil
}

// ErrInvalidRule is returned when a rule fails validation.
var ErrInvalidRule = errors.New("invalid failure policy rule")

// Handler applies per-tool failure rules.
//
// Thread Safety:
//
//	Handler is immutable after construction and safe for concurrent use.
type Handler struct {
	defaults Rule
	perTool  map[string]Rule
}

// Option configures a Handler.
type Option func(*Handler)

// WithToolRule overrides the policy for one tool name.
func WithToolRule(toolName string, rule Rule) Option {
	return func(h *Handler) {
		h.perTool[toolName] = rule
	}
}

// NewHandler creates a Handler with the given default rule.
//
// Outputs:
//
//	*Handler - The configured handler.
//	error - ErrInvalidRule if the default or any per-tool rule is invalid.
func NewHandler(defaults Rule, opts ...Option) (*Handler, error) {
	h := &Handler{
		defaults: defaults,
		perTool:  make(map[string]Rule),
	}
	for _, opt := range opts {
		opt(h)
	}

	if err := defaults.Validate(); err != nil {
		return nil, err
	}
	for _, rule := range h.perTool {
		if err := rule.Validate(); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// DefaultHandler returns a handler with DefaultRule for every tool.
func DefaultHandler() *Handler {
	h, _ := NewHandler(DefaultRule())
	return h
}

// Rule returns the effective rule for a tool name.
func (h *Handler) Rule(toolName string) Rule {
	if rule, ok := h.perTool[toolName]; ok {
		return rule
	}
	return h.defaults
}

// Criticality returns the effective criticality for a tool name.
func (h *Handler) Criticality(toolName string) Criticality {
	return h.Rule(toolName).Criticality
}

// Decide returns the verdict for one failed attempt of one node.
//
// Inputs:
//
//	toolName - The tool whose rule applies.
//	err - The attempt's error; its Kind drives retryability.
//	attempt - The attempt number just completed (1-based).
//
// Retryable kinds (timeout, transient) retry until the rule's attempt
// budget is spent. Cancellation never retries. Exhausted or
// non-retryable failures map to Skip, or Abort for critical tools.
func (h *Handler) Decide(toolName string, err error, attempt int) Decision {
	rule := h.Rule(toolName)

	kind := Classify(err)
	var nodeErr *NodeError
	if errors.As(err, &nodeErr) {
		kind = nodeErr.Kind
	}

	if kind == KindCancelled {
		return Decision{Action: ActionAbort}
	}

	if kind.Retryable() && attempt < rule.MaxAttempts {
		return Decision{
			Action: ActionRetry,
			Delay:  rule.Backoff.Delay(attempt),
		}
	}

	if rule.Criticality == CriticalityCritical {
		return Decision{Action: ActionAbort}
	}
	return Decision{Action: ActionSkip}
}

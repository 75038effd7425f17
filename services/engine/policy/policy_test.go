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
	"strings"
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"wrapped deadline", fmt.Errorf("tool x: %w", context.DeadlineExceeded), KindTimeout},
		{"cancelled", context.Canceled, KindCancelled},
		{"transient", fmt.Errorf("%w: connection reset", ErrTransient), KindTransient},
		{"plain", errors.New("bad input"), KindToolFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestKind_Retryable(t *testing.T) {
	if !KindTimeout.Retryable() || !KindTransient.Retryable() {
		t.Error("timeout and transient must be retryable")
	}
	if KindToolFailed.Retryable() || KindCancelled.Retryable() {
		t.Error("tool_failed and cancelled must not be retryable")
	}
}

func TestNodeError(t *testing.T) {
	cause := fmt.Errorf("%w: flaky backend", ErrTransient)
	err := NewNodeError("fetch", 2, cause)

	if err.Kind != KindTransient {
		t.Errorf("Kind = %v, want transient", err.Kind)
	}
	if !errors.Is(err, ErrTransient) {
		t.Error("NodeError must unwrap to its cause")
	}
	msg := err.Error()
	for _, want := range []string{"fetch", "attempt 2", "transient"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{Initial: time.Second, Max: 10 * time.Second, Factor: 2.0}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second}, // capped
		{9, 10 * time.Second},
		{0, time.Second}, // clamped to 1
	}
	for _, c := range cases {
		if got := b.Delay(c.attempt); got != c.want {
			t.Errorf("Delay(%d) = %v, want %v", c.attempt, got, c.want)
		}
	}
}

func TestBackoff_JitterBounds(t *testing.T) {
	b := Backoff{Initial: time.Second, Max: time.Minute, Factor: 2.0, Jitter: 0.5}

	for i := 0; i < 100; i++ {
		d := b.Delay(1)
		if d < 500*time.Millisecond || d > 1500*time.Millisecond {
			t.Fatalf("Delay(1) = %v, outside [0.5s, 1.5s]", d)
		}
	}
}

func TestRule_Validate(t *testing.T) {
	if err := DefaultRule().Validate(); err != nil {
		t.Fatalf("DefaultRule invalid: %v", err)
	}

	bad := []Rule{
		{MaxAttempts: 0, Backoff: DefaultBackoff()},
		{MaxAttempts: 1, Backoff: Backoff{Initial: 0, Max: time.Second, Factor: 2}},
		{MaxAttempts: 1, Backoff: Backoff{Initial: 2 * time.Second, Max: time.Second, Factor: 2}},
		{MaxAttempts: 1, Backoff: Backoff{Initial: time.Second, Max: time.Second, Factor: 0.5}},
	}
	for i, rule := range bad {
		if err := rule.Validate(); !errors.Is(err, ErrInvalidRule) {
			t.Errorf("rule %d: Validate() = %v, want ErrInvalidRule", i, err)
		}
	}
}

func TestNewHandler_RejectsInvalidRules(t *testing.T) {
	if _, err := NewHandler(Rule{}); !errors.Is(err, ErrInvalidRule) {
		t.Errorf("NewHandler(zero rule) = %v, want ErrInvalidRule", err)
	}

	_, err := NewHandler(DefaultRule(), WithToolRule("x", Rule{MaxAttempts: -1}))
	if !errors.Is(err, ErrInvalidRule) {
		t.Errorf("NewHandler(bad tool rule) = %v, want ErrInvalidRule", err)
	}
}

func TestHandler_PerToolOverrides(t *testing.T) {
	custom := Rule{
		MaxAttempts: 7,
		Backoff:     DefaultBackoff(),
		Criticality: CriticalityCritical,
	}
	h, err := NewHandler(DefaultRule(), WithToolRule("special", custom))
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	if got := h.Rule("special").MaxAttempts; got != 7 {
		t.Errorf("special MaxAttempts = %d, want 7", got)
	}
	if got := h.Rule("other").MaxAttempts; got != DefaultRule().MaxAttempts {
		t.Errorf("other MaxAttempts = %d, want default", got)
	}
	if h.Criticality("special") != CriticalityCritical {
		t.Error("special criticality should be critical")
	}
	if h.Criticality("other") != CriticalityRequired {
		t.Error("default criticality should be required")
	}
}

func TestDecide(t *testing.T) {
	transient := fmt.Errorf("%w: hiccup", ErrTransient)
	permanent := errors.New("bad input")

	rule := Rule{MaxAttempts: 3, Backoff: Backoff{Initial: time.Second, Max: 8 * time.Second, Factor: 2.0}}
	h, err := NewHandler(rule,
		WithToolRule("critical", Rule{MaxAttempts: 2, Backoff: rule.Backoff, Criticality: CriticalityCritical}),
	)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	tests := []struct {
		name    string
		tool    string
		err     error
		attempt int
		want    Action
	}{
		{"transient within budget retries", "t", transient, 1, ActionRetry},
		{"transient at budget skips", "t", transient, 3, ActionSkip},
		{"timeout within budget retries", "t", context.DeadlineExceeded, 2, ActionRetry},
		{"permanent never retries", "t", permanent, 1, ActionSkip},
		{"cancellation always aborts", "t", context.Canceled, 1, ActionAbort},
		{"critical exhausted aborts", "critical", permanent, 1, ActionAbort},
		{"critical transient within budget retries", "critical", transient, 1, ActionRetry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := h.Decide(tt.tool, tt.err, tt.attempt)
			if d.Action != tt.want {
				t.Errorf("Decide(%s, attempt %d) = %v, want %v", tt.tool, tt.attempt, d.Action, tt.want)
			}
			if tt.want == ActionRetry && d.Delay <= 0 {
				t.Error("retry decision must carry a positive delay")
			}
		})
	}
}

func TestDecide_HonorsNodeErrorKind(t *testing.T) {
	h := DefaultHandler()

	// The wrapped cause alone would classify as tool_failed; the
	// NodeError's recorded kind takes precedence.
	nodeErr := &NodeError{NodeID: "n", Attempt: 1, Kind: KindTransient, Err: errors.New("opaque")}
	if d := h.Decide("t", nodeErr, 1); d.Action != ActionRetry {
		t.Errorf("Decide = %v, want retry from NodeError kind", d.Action)
	}
}

func TestDefaultHandler(t *testing.T) {
	h := DefaultHandler()
	if h == nil {
		t.Fatal("DefaultHandler returned nil")
	}
	if got := h.Rule("anything"); got.MaxAttempts != 3 {
		t.Errorf("default MaxAttempts = %d, want 3", got.MaxAttempts)
	}
}

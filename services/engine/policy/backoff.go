// Copyright (C) 2026 PyClarity Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package policy

import (
	"math/rand"
	"time"
)

// Backoff configures the delay schedule between retry attempts.
type Backoff struct {
	// Initial is the delay before the first retry. Default: 1s.
	Initial time.Duration

	// Max caps the delay between retries. Default: 30s.
	Max time.Duration

	// Factor multiplies the delay after each retry. Default: 2.0.
	Factor float64

	// Jitter is the maximum random adjustment as a fraction of the delay
	// (0-1). Prevents synchronized retry bursts. Default: 0.2.
	Jitter float64
}

// DefaultBackoff returns the standard exponential schedule.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial: 1 * time.Second,
		Max:     30 * time.Second,
		Factor:  2.0,
		Jitter:  0.2,
	}
}

// Delay returns the wait before retrying after the given attempt number
// (1-based: Delay(1) is the wait between attempt 1 and attempt 2).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	base := b.Initial
	for i := 1; i < attempt; i++ {
		base = time.Duration(float64(base) * b.Factor)
		if base >= b.Max {
			base = b.Max
			break
		}
	}
	if base > b.Max {
		base = b.Max
	}

	return withJitter(base, b.Jitter)
}

// withJitter spreads the delay over [base*(1-jitter), base*(1+jitter)].
func withJitter(base time.Duration, jitter float64) time.Duration {
	if jitter <= 0 {
		return base
	}
	offset := (rand.Float64()*2 - 1) * jitter
	return time.Duration(float64(base) * (1.0 + offset))
}

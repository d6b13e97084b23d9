// Package pacing provides pluggable inter-submission delay policies for
// the detail fetch scheduler.
package pacing

import (
	"math/rand/v2"
	"time"
)

// Uniform draws each delay uniformly from [Min, Max). This is the
// production policy used to blur the crawl's request cadence.
type Uniform struct {
	Min time.Duration
	Max time.Duration
}

// NewUniform builds a Uniform policy, swapping bounds if inverted.
func NewUniform(min, max time.Duration) *Uniform {
	if max < min {
		min, max = max, min
	}
	return &Uniform{Min: min, Max: max}
}

// Delay returns a random duration in [Min, Max).
func (u *Uniform) Delay(int) time.Duration {
	if u.Max <= u.Min {
		return u.Min
	}
	return u.Min + time.Duration(rand.Int64N(int64(u.Max-u.Min)))
}

// Fixed returns the same delay for every index. Useful in tests that
// measure submission spacing.
type Fixed time.Duration

// Delay returns the fixed duration.
func (f Fixed) Delay(int) time.Duration { return time.Duration(f) }

// None disables pacing entirely.
type None struct{}

// Delay always returns zero.
func (None) Delay(int) time.Duration { return 0 }

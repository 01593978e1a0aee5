// Package retry provides reconnect delay strategies for supervised
// network connections.
package retry

import (
	"math"
	"math/rand"
	"time"
)

// Strategy yields the delay to wait before the next connection attempt.
type Strategy interface {
	Next() time.Duration
	Reset()
}

// Fixed waits for the same duration between every attempt
type Fixed struct {
	duration time.Duration
}

// NewFixed creates a new fixed delay strategy
func NewFixed(duration time.Duration) *Fixed {
	return &Fixed{duration: duration}
}

// Next returns the next delay
func (s *Fixed) Next() time.Duration {
	return s.duration
}

// Reset resets the strategy
func (s *Fixed) Reset() {}

// Range picks a uniformly random delay in [min, max] on every attempt.
// Each instance carries its own random source so two supervisors never
// share jitter state.
type Range struct {
	min time.Duration
	max time.Duration
	rng *rand.Rand
}

// NewRange creates a new jittered range strategy
func NewRange(min, max time.Duration) *Range {
	if max < min {
		min, max = max, min
	}
	return &Range{
		min: min,
		max: max,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns the next delay
func (s *Range) Next() time.Duration {
	if s.max == s.min {
		return s.min
	}
	return s.min + time.Duration(s.rng.Int63n(int64(s.max-s.min)+1))
}

// Reset resets the strategy
func (s *Range) Reset() {}

// Exponential increases the delay by a multiplier on every attempt, up
// to an optional maximum.
type Exponential struct {
	initial    time.Duration
	multiplier float64
	max        time.Duration
	attempt    int
}

// NewExponential creates a new exponential backoff strategy
func NewExponential(initial time.Duration, multiplier float64, max time.Duration) *Exponential {
	return &Exponential{
		initial:    initial,
		multiplier: multiplier,
		max:        max,
	}
}

// Next returns the next delay
func (s *Exponential) Next() time.Duration {
	duration := time.Duration(float64(s.initial) * math.Pow(s.multiplier, float64(s.attempt)))
	if s.max > 0 && duration > s.max {
		duration = s.max
	}
	s.attempt++
	return duration
}

// Reset resets the strategy
func (s *Exponential) Reset() {
	s.attempt = 0
}

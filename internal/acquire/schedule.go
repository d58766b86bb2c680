// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import "time"

const (
	defaultMaxAttempts    = 3
	defaultInitialTimeout = 30 * time.Second

	// timeoutGrowth multiplies the timeout after each timed-out attempt.
	timeoutGrowth = 1.5
)

// Attempt holds the parameters of one retrieval attempt.
type Attempt struct {
	// Number is 1-based.
	Number int

	// UseProxy is true only for the first attempt; later attempts connect
	// directly to work around proxy-specific failures.
	UseProxy bool
}

// Schedule is the full retry plan for one retrieval, computed up front.
// Attempts run in order. Timeouts is a ladder: an attempt uses the rung
// equal to the number of earlier attempts that timed out, so only timeouts
// lengthen the next attempt's deadline.
type Schedule struct {
	Attempts []Attempt
	Timeouts []time.Duration
}

// NewSchedule builds the plan for maxAttempts attempts starting at
// initialTimeout. Non-positive arguments fall back to 3 attempts and 30s.
func NewSchedule(maxAttempts int, initialTimeout time.Duration) Schedule {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if initialTimeout <= 0 {
		initialTimeout = defaultInitialTimeout
	}

	s := Schedule{
		Attempts: make([]Attempt, maxAttempts),
		Timeouts: make([]time.Duration, maxAttempts),
	}
	timeout := float64(initialTimeout)
	for i := range maxAttempts {
		s.Attempts[i] = Attempt{Number: i + 1, UseProxy: i == 0}
		s.Timeouts[i] = time.Duration(timeout)
		timeout *= timeoutGrowth
	}
	return s
}

// Timeout returns the deadline for an attempt after timedOut earlier
// attempts timed out.
func (s Schedule) Timeout(timedOut int) time.Duration {
	if timedOut >= len(s.Timeouts) {
		timedOut = len(s.Timeouts) - 1
	}
	return s.Timeouts[timedOut]
}

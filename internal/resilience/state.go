package resilience

import (
	"time"
)

const (
	// StateVersion is the current state schema version.
	StateVersion = 1
)

// State is the resilience state shared by every postbrowser process on the
// machine, so a warm run and an open browser draw from one request budget.
type State struct {
	// Version is the schema version for future migrations.
	Version int `json:"version"`

	// RateLimiter tracks the token bucket state.
	RateLimiter RateLimiterState `json:"rate_limiter"`

	// Breaker records the last circuit transition seen by any process.
	Breaker BreakerState `json:"breaker"`

	// UpdatedAt is when the state was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// RateLimiterState tracks the token bucket rate limiter state.
type RateLimiterState struct {
	// Tokens is the current number of available tokens.
	Tokens float64 `json:"tokens"`

	// LastRefillAt is when tokens were last refilled.
	LastRefillAt time.Time `json:"last_refill_at"`

	// RetryAfterUntil is set from a 429 or 503 Retry-After header.
	// No requests are made until this time passes.
	RetryAfterUntil time.Time `json:"retry_after_until"`
}

// BlockedFor returns how long until the Retry-After window expires at now.
// Returns zero if not blocked.
func (r *RateLimiterState) BlockedFor(now time.Time) time.Duration {
	if r.RetryAfterUntil.IsZero() {
		return 0
	}
	remaining := r.RetryAfterUntil.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsBlocked returns true if now is within a Retry-After window.
func (r *RateLimiterState) IsBlocked(now time.Time) bool {
	return r.BlockedFor(now) > 0
}

// BreakerState is the persisted record of circuit transitions.
type BreakerState struct {
	// State is "closed", "half-open" or "open".
	State string `json:"state"`

	// ChangedAt is when State was entered.
	ChangedAt time.Time `json:"changed_at"`

	// Trips counts transitions into open.
	Trips int `json:"trips"`
}

// NewState returns a new State with default values.
// RateLimiterState.LastRefillAt is left zero so the first refill fills the
// bucket to MaxTokens.
func NewState() *State {
	return &State{
		Version:   StateVersion,
		Breaker:   BreakerState{State: "closed"},
		UpdatedAt: time.Now(),
	}
}

package resilience

import (
	"time"
)

// RateLimiter is a token bucket persisted in the shared store.
type RateLimiter struct {
	config RateLimiterConfig
	store  *Store
	now    func() time.Time
}

// NewRateLimiter creates a rate limiter. Zero config fields take defaults.
func NewRateLimiter(store *Store, config RateLimiterConfig) *RateLimiter {
	return &RateLimiter{
		config: config.withDefaults(),
		store:  store,
		now:    time.Now,
	}
}

// refill adds tokens for the time elapsed since the last refill.
func (rl *RateLimiter) refill(state *RateLimiterState, now time.Time) {
	if state.LastRefillAt.IsZero() {
		state.Tokens = rl.config.MaxTokens
		state.LastRefillAt = now
		return
	}

	elapsed := now.Sub(state.LastRefillAt)
	state.LastRefillAt = now
	state.Tokens += elapsed.Seconds() * rl.config.RefillRate
	if state.Tokens > rl.config.MaxTokens {
		state.Tokens = rl.config.MaxTokens
	}
}

// Allow consumes a request's tokens. When the request is rejected it also
// returns how long the caller should wait before trying again.
// Store failures allow the request.
func (rl *RateLimiter) Allow() (bool, time.Duration) {
	var (
		allowed bool
		wait    time.Duration
	)
	err := rl.store.Update(func(state *State) error {
		rlState := &state.RateLimiter
		now := rl.now()

		if blocked := rlState.BlockedFor(now); blocked > 0 {
			wait = blocked
			return nil
		}

		rl.refill(rlState, now)
		if rlState.Tokens >= rl.config.TokensPerRequest {
			rlState.Tokens -= rl.config.TokensPerRequest
			allowed = true
		} else {
			missing := rl.config.TokensPerRequest - rlState.Tokens
			wait = time.Duration(missing / rl.config.RefillRate * float64(time.Second))
		}
		state.UpdatedAt = now
		return nil
	})
	if err != nil {
		return true, 0
	}
	return allowed, wait
}

// SetRetryAfter blocks requests until the given time. An earlier time than
// the current block is ignored.
func (rl *RateLimiter) SetRetryAfter(until time.Time) error {
	return rl.store.Update(func(state *State) error {
		if until.After(state.RateLimiter.RetryAfterUntil) {
			state.RateLimiter.RetryAfterUntil = until
			state.UpdatedAt = rl.now()
		}
		return nil
	})
}

// SetRetryAfterDuration blocks requests for d from now.
func (rl *RateLimiter) SetRetryAfterDuration(d time.Duration) error {
	return rl.SetRetryAfter(rl.now().Add(d))
}

// Tokens returns the available tokens, persisting any refill.
func (rl *RateLimiter) Tokens() (float64, error) {
	var tokens float64
	err := rl.store.Update(func(state *State) error {
		now := rl.now()
		rl.refill(&state.RateLimiter, now)
		tokens = state.RateLimiter.Tokens
		state.UpdatedAt = now
		return nil
	})
	if err != nil {
		return 0, err
	}
	return tokens, nil
}

// RetryAfterRemaining returns the remaining Retry-After block, or 0.
func (rl *RateLimiter) RetryAfterRemaining() (time.Duration, error) {
	state, err := rl.store.Load()
	if err != nil {
		return 0, err
	}
	return state.RateLimiter.BlockedFor(rl.now()), nil
}

// Reset refills the bucket and clears any Retry-After block.
func (rl *RateLimiter) Reset() error {
	return rl.store.Update(func(state *State) error {
		now := rl.now()
		state.RateLimiter = RateLimiterState{
			Tokens:       rl.config.MaxTokens,
			LastRefillAt: now,
		}
		state.UpdatedAt = now
		return nil
	})
}

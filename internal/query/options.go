package query

import (
	"context"
	"errors"
	"time"
)

// Options configures how a Query fetches, retries, and ages its data.
type Options struct {
	FreshTTL  time.Duration // how long data is "fresh" (0 = never goes stale on its own)
	ExpiryTTL time.Duration // how long an unobserved entry is kept (0 = never evicted)

	MaxRetries int           // retries after the first attempt
	RetryBase  time.Duration // delay before the first retry; doubles per retry
	RetryMax   time.Duration // cap on the retry delay

	// RetryIf decides whether a failed attempt is worth retrying.
	// Nil retries every error except context cancellation.
	RetryIf func(error) bool

	RefetchOnFocus     bool
	RefetchOnReconnect bool

	// KeepPrevious keeps the previous key's value visible on an Observer
	// while a newly observed key resolves.
	KeepPrevious bool
}

// DefaultOptions returns the options the browser runs with unless configured.
func DefaultOptions() Options {
	return Options{
		FreshTTL:           5 * time.Minute,
		ExpiryTTL:          5 * time.Minute,
		MaxRetries:         3,
		RetryBase:          time.Second,
		RetryMax:           30 * time.Second,
		RefetchOnFocus:     true,
		RefetchOnReconnect: true,
		KeepPrevious:       true,
	}
}

// Option adjusts Options for a single query.
type Option func(*Options)

// WithOptions replaces every option wholesale.
func WithOptions(o Options) Option {
	return func(dst *Options) { *dst = o }
}

// WithFreshTTL sets the fresh window.
func WithFreshTTL(d time.Duration) Option {
	return func(o *Options) { o.FreshTTL = d }
}

// WithExpiryTTL sets the expiry window for unobserved entries.
func WithExpiryTTL(d time.Duration) Option {
	return func(o *Options) { o.ExpiryTTL = d }
}

// WithRetry sets the retry budget and backoff bounds.
func WithRetry(maxRetries int, base, maxDelay time.Duration) Option {
	return func(o *Options) {
		o.MaxRetries = maxRetries
		o.RetryBase = base
		o.RetryMax = maxDelay
	}
}

// WithRetryIf sets the retry predicate.
func WithRetryIf(fn func(error) bool) Option {
	return func(o *Options) { o.RetryIf = fn }
}

// WithKeepPrevious toggles keep-previous-on-key-change.
func WithKeepPrevious(keep bool) Option {
	return func(o *Options) { o.KeepPrevious = keep }
}

// RetryDelay returns the delay before retry number attempt (0-based):
// RetryBase * 2^attempt, capped at RetryMax.
func (o Options) RetryDelay(attempt int) time.Duration {
	if o.RetryBase <= 0 {
		return 0
	}
	d := o.RetryBase
	for range attempt {
		d *= 2
		if o.RetryMax > 0 && d >= o.RetryMax {
			return o.RetryMax
		}
	}
	if o.RetryMax > 0 && d > o.RetryMax {
		return o.RetryMax
	}
	return d
}

func (o Options) shouldRetry(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if o.RetryIf != nil {
		return o.RetryIf(err)
	}
	return true
}

func (o Options) apply(opts []Option) Options {
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

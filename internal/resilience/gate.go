package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrCircuitOpen is returned when the breaker rejects a request.
var ErrCircuitOpen = errors.New("circuit open")

// ErrRateLimited is matched by every RateLimitedError.
var ErrRateLimited = errors.New("rate limited")

// RateLimitedError is returned when the token bucket or a Retry-After block
// rejects a request.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry in %s", e.RetryAfter.Round(time.Millisecond))
	}
	return "rate limited"
}

// Is reports ErrRateLimited as a match.
func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

// Status is a point-in-time view of the gate for --stats and the status bar.
type Status struct {
	Breaker    string
	Failures   uint32
	Tokens     float64
	RetryAfter time.Duration
	Trips      int
}

// Gate admits requests through the rate limiter and then the breaker.
// The limiter is checked first so a rejected request never holds a
// half-open probe slot.
type Gate struct {
	breaker *gobreaker.CircuitBreaker
	limiter *RateLimiter
	store   *Store
	logger  *zap.Logger
	trip    func(error) bool

	mu        sync.Mutex
	onRecover []func()
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithGateLogger sets the logger for breaker transitions.
func WithGateLogger(l *zap.Logger) GateOption {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithTripFunc decides which errors count as failures. By default every
// non-nil error except context cancellation does.
func WithTripFunc(fn func(error) bool) GateOption {
	return func(g *Gate) { g.trip = fn }
}

// WithoutRateLimit disables the token bucket.
func WithoutRateLimit() GateOption {
	return func(g *Gate) { g.limiter = nil }
}

// NewGate creates a gate persisting shared state in store.
func NewGate(store *Store, cfg *Config, opts ...GateOption) *Gate {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	g := &Gate{
		limiter: NewRateLimiter(store, cfg.RateLimiter),
		store:   store,
		logger:  zap.NewNop(),
		trip:    func(err error) bool { return err != nil },
	}
	for _, opt := range opts {
		opt(g)
	}

	bc := cfg.Breaker.withDefaults()
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "posts-api",
		MaxRequests: bc.HalfOpenMaxRequests,
		Interval:    bc.Interval,
		Timeout:     bc.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= bc.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			return !g.trip(err)
		},
		OnStateChange: g.stateChanged,
	})
	return g
}

// OnRecover registers fn to run when the circuit closes after having been
// open. fn runs on the requesting goroutine and must not block.
func (g *Gate) OnRecover(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onRecover = append(g.onRecover, fn)
}

func (g *Gate) stateChanged(name string, from, to gobreaker.State) {
	g.logger.Info("circuit state changed",
		zap.String("breaker", name), zap.Stringer("from", from), zap.Stringer("to", to))

	if g.store != nil {
		_ = g.store.Update(func(s *State) error {
			s.Breaker.State = to.String()
			s.Breaker.ChangedAt = time.Now()
			if to == gobreaker.StateOpen {
				s.Breaker.Trips++
			}
			s.UpdatedAt = s.Breaker.ChangedAt
			return nil
		})
	}

	if to == gobreaker.StateClosed {
		g.mu.Lock()
		fns := append([]func(){}, g.onRecover...)
		g.mu.Unlock()
		for _, fn := range fns {
			fn()
		}
	}
}

// Do runs fn if the gate admits it.
func (g *Gate) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if g.limiter != nil {
		if ok, wait := g.limiter.Allow(); !ok {
			return &RateLimitedError{RetryAfter: wait}
		}
	}

	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s", ErrCircuitOpen, err)
	}
	return err
}

// SetRetryAfter blocks requests for d, following a Retry-After header.
func (g *Gate) SetRetryAfter(d time.Duration) {
	if g.limiter == nil || d <= 0 {
		return
	}
	if err := g.limiter.SetRetryAfterDuration(d); err != nil {
		g.logger.Debug("persisting retry-after failed", zap.Error(err))
	}
}

// State returns the breaker state: "closed", "half-open" or "open".
func (g *Gate) State() string {
	return g.breaker.State().String()
}

// Status reports breaker and limiter state.
func (g *Gate) Status() Status {
	st := Status{
		Breaker:  g.breaker.State().String(),
		Failures: g.breaker.Counts().ConsecutiveFailures,
	}
	if g.limiter != nil {
		st.Tokens, _ = g.limiter.Tokens()
		st.RetryAfter, _ = g.limiter.RetryAfterRemaining()
	}
	if g.store != nil {
		if s, err := g.store.Load(); err == nil {
			st.Trips = s.Breaker.Trips
		}
	}
	return st
}

// Reset refills the rate limiter and clears persisted breaker history.
func (g *Gate) Reset() error {
	if g.limiter != nil {
		if err := g.limiter.Reset(); err != nil {
			return err
		}
	}
	if g.store == nil {
		return nil
	}
	return g.store.Update(func(s *State) error {
		s.Breaker = BreakerState{State: g.State(), ChangedAt: time.Now()}
		return nil
	})
}

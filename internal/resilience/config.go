package resilience

import (
	"time"
)

// Config holds configuration for the request gate.
type Config struct {
	// Breaker configures the circuit breaker in front of the posts API.
	Breaker BreakerConfig

	// RateLimiter configures the token bucket rate limiter.
	RateLimiter RateLimiterConfig
}

// BreakerConfig configures the circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before opening.
	// Default: 5
	FailureThreshold uint32

	// HalfOpenMaxRequests is how many probe requests the half-open circuit
	// lets through; that many consecutive successes close it again.
	// Default: 1
	HalfOpenMaxRequests uint32

	// OpenTimeout is how long the circuit stays open before probing.
	// Default: 30 seconds
	OpenTimeout time.Duration

	// Interval is the cyclic period after which a closed circuit clears its
	// failure counts. Zero never clears them.
	Interval time.Duration
}

// RateLimiterConfig configures the token bucket rate limiter.
type RateLimiterConfig struct {
	// MaxTokens is the maximum number of tokens in the bucket.
	// Default: 50
	MaxTokens float64

	// RefillRate is how many tokens are added per second.
	// Default: 10
	RefillRate float64

	// TokensPerRequest is how many tokens each request consumes.
	// Default: 1
	TokensPerRequest float64
}

// DefaultConfig returns a Config suited to a public JSON API.
func DefaultConfig() *Config {
	return &Config{
		Breaker: BreakerConfig{
			FailureThreshold:    5,
			HalfOpenMaxRequests: 1,
			OpenTimeout:         30 * time.Second,
		},
		RateLimiter: RateLimiterConfig{
			MaxTokens:        50,
			RefillRate:       10,
			TokensPerRequest: 1,
		},
	}
}

// WithBreaker returns a copy of the config with custom breaker settings.
func (c *Config) WithBreaker(b BreakerConfig) *Config {
	copy := *c
	copy.Breaker = b
	return &copy
}

// WithRateLimiter returns a copy of the config with custom rate limiter settings.
func (c *Config) WithRateLimiter(rl RateLimiterConfig) *Config {
	copy := *c
	copy.RateLimiter = rl
	return &copy
}

func (b BreakerConfig) withDefaults() BreakerConfig {
	if b.FailureThreshold == 0 {
		b.FailureThreshold = 5
	}
	if b.HalfOpenMaxRequests == 0 {
		b.HalfOpenMaxRequests = 1
	}
	if b.OpenTimeout <= 0 {
		b.OpenTimeout = 30 * time.Second
	}
	return b
}

func (rl RateLimiterConfig) withDefaults() RateLimiterConfig {
	if rl.MaxTokens <= 0 {
		rl.MaxTokens = 50
	}
	if rl.RefillRate <= 0 {
		rl.RefillRate = 10
	}
	if rl.TokensPerRequest <= 0 {
		rl.TokensPerRequest = 1
	}
	return rl
}

package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(t *testing.T, cfg RateLimiterConfig) (*RateLimiter, *testClock) {
	t.Helper()
	clock := &testClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(NewStore(t.TempDir()), cfg)
	rl.now = clock.now
	return rl, clock
}

func TestRateLimiterStartsWithFullBucket(t *testing.T) {
	rl, _ := newTestLimiter(t, RateLimiterConfig{MaxTokens: 5, RefillRate: 10, TokensPerRequest: 1})

	tokens, err := rl.Tokens()
	require.NoError(t, err)
	assert.Equal(t, 5.0, tokens)
}

func TestRateLimiterExhaustsAndReportsWait(t *testing.T) {
	rl, _ := newTestLimiter(t, RateLimiterConfig{MaxTokens: 5, RefillRate: 10, TokensPerRequest: 1})

	for i := range 5 {
		ok, _ := rl.Allow()
		assert.True(t, ok, "request %d", i+1)
	}

	ok, wait := rl.Allow()
	assert.False(t, ok)
	assert.Equal(t, 100*time.Millisecond, wait, "one token at 10/s")
}

func TestRateLimiterRefillsOverTime(t *testing.T) {
	rl, clock := newTestLimiter(t, RateLimiterConfig{MaxTokens: 5, RefillRate: 100, TokensPerRequest: 1})
	for range 5 {
		rl.Allow()
	}

	clock.advance(100 * time.Millisecond)
	ok, _ := rl.Allow()
	assert.True(t, ok)

	tokens, err := rl.Tokens()
	require.NoError(t, err)
	assert.Equal(t, 4.0, tokens, "refill is capped at MaxTokens before the request is charged")
}

func TestRateLimiterRetryAfter(t *testing.T) {
	rl, clock := newTestLimiter(t, RateLimiterConfig{MaxTokens: 5, RefillRate: 10})

	require.NoError(t, rl.SetRetryAfterDuration(2*time.Second))

	ok, wait := rl.Allow()
	assert.False(t, ok)
	assert.Equal(t, 2*time.Second, wait)

	remaining, err := rl.RetryAfterRemaining()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, remaining)

	clock.advance(2 * time.Second)
	ok, _ = rl.Allow()
	assert.True(t, ok)
}

func TestRateLimiterRetryAfterOnlyExtends(t *testing.T) {
	rl, _ := newTestLimiter(t, RateLimiterConfig{})

	require.NoError(t, rl.SetRetryAfterDuration(10*time.Second))
	require.NoError(t, rl.SetRetryAfterDuration(time.Second))

	remaining, err := rl.RetryAfterRemaining()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, remaining)
}

func TestRateLimiterReset(t *testing.T) {
	rl, _ := newTestLimiter(t, RateLimiterConfig{MaxTokens: 5, RefillRate: 10})
	for range 5 {
		rl.Allow()
	}
	require.NoError(t, rl.SetRetryAfterDuration(10*time.Second))

	require.NoError(t, rl.Reset())

	tokens, _ := rl.Tokens()
	assert.Equal(t, 5.0, tokens)
	ok, _ := rl.Allow()
	assert.True(t, ok)
}

func TestRateLimiterSharedAcrossStores(t *testing.T) {
	dir := t.TempDir()
	clock := &testClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cfg := RateLimiterConfig{MaxTokens: 5, RefillRate: 0.1}

	rl1 := NewRateLimiter(NewStore(dir), cfg)
	rl1.now = clock.now
	for range 3 {
		rl1.Allow()
	}

	// A second process sees the same bucket.
	rl2 := NewRateLimiter(NewStore(dir), cfg)
	rl2.now = clock.now
	tokens, err := rl2.Tokens()
	require.NoError(t, err)
	assert.Equal(t, 2.0, tokens)
}

func TestRateLimiterAppliesDefaults(t *testing.T) {
	rl, _ := newTestLimiter(t, RateLimiterConfig{})
	tokens, err := rl.Tokens()
	require.NoError(t, err)
	assert.Equal(t, 50.0, tokens)
}

func TestRateLimiterTokensPerRequest(t *testing.T) {
	rl, _ := newTestLimiter(t, RateLimiterConfig{MaxTokens: 10, RefillRate: 1, TokensPerRequest: 5})

	for range 2 {
		ok, _ := rl.Allow()
		assert.True(t, ok)
	}
	ok, wait := rl.Allow()
	assert.False(t, ok)
	assert.Equal(t, 5*time.Second, wait)
}

package query

import (
	"context"
	"errors"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// UpdatedMsg is sent when a query's snapshot changes.
// Consumers match on Key to identify which query updated, then read
// typed data via the query's Get() method.
type UpdatedMsg struct {
	Key string
}

// ErrNoData is returned by Load when the query settles without a value,
// for example because the cache was cleared while the fetch ran.
var ErrNoData = errors.New("query: no data")

// FetchFunc retrieves data for a query.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Query is a typed, keyed cache entry with fetch capabilities.
// One Query exists per distinct Key in a Client.
//
// A Query never pushes: Fetch returns a tea.Cmd that resolves the entry and
// emits UpdatedMsg, and the consumer re-reads Get() when it sees the message.
type Query[T any] struct {
	mu         sync.RWMutex
	key        Key
	client     *Client
	opts       Options
	fetchFn    FetchFunc[T]
	snapshot   Snapshot[T]
	version    uint64 // incremented on every data change
	generation uint64 // incremented on Clear, used to discard fetches from before it
	seq        uint64 // incremented on every fetch, used for last-request-wins
	cancel     context.CancelFunc
	settled    chan struct{} // closed when the latest fetch finishes
	observers  int
	lastUsed   time.Time
}

func newQuery[T any](c *Client, key Key, opts Options, fetchFn FetchFunc[T]) *Query[T] {
	return &Query[T]{
		key:      key,
		client:   c,
		opts:     opts,
		fetchFn:  fetchFn,
		lastUsed: c.now(),
	}
}

// Key returns the query's identifier.
func (q *Query[T]) Key() Key { return q.key }

// Options returns the options the query currently runs with.
func (q *Query[T]) Options() Options {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.opts
}

// Get returns the current snapshot. Never blocks on I/O.
// A snapshot stored as Fresh is returned as Stale once FreshTTL has elapsed.
func (q *Query[T]) Get() Snapshot[T] {
	q.mu.RLock()
	defer q.mu.RUnlock()
	snap := q.snapshot
	if snap.State == StateFresh && q.expiredFresh() {
		snap.State = StateStale
	}
	return snap
}

// dataVersion returns how many results have been applied.
func (q *Query[T]) dataVersion() uint64 {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.version
}

// Observers returns how many consumers currently retain the query.
func (q *Query[T]) Observers() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.observers
}

// Retain registers an active consumer. Retained queries are never evicted.
func (q *Query[T]) Retain() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.observers++
	q.lastUsed = q.client.now()
}

// Release drops an active consumer registered with Retain.
func (q *Query[T]) Release() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.observers > 0 {
		q.observers--
	}
	q.lastUsed = q.client.now()
}

// Fetch returns a Cmd that fetches fresh data and emits UpdatedMsg.
// A Fetch issued while another is in flight supersedes it: the older
// request is cancelled and its result discarded on arrival.
func (q *Query[T]) Fetch(ctx context.Context) tea.Cmd {
	q.mu.Lock()
	if q.cancel != nil {
		q.cancel()
		q.client.logger.Debug("superseding in-flight fetch", zap.String("key", q.key.String()))
	}
	q.seq++
	seq, gen := q.seq, q.generation
	fetchCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(q.client.ctx, cancel)
	q.cancel = cancel
	q.settled = make(chan struct{})
	q.snapshot.State = StateLoading
	q.snapshot.Fetching = true
	fetchFn, opts, settled := q.fetchFn, q.opts, q.settled
	q.mu.Unlock()

	return func() tea.Msg {
		defer close(settled)
		defer stop()
		defer cancel()
		data, attempts, err := q.run(fetchCtx, fetchFn, opts)

		q.mu.Lock()
		defer q.mu.Unlock()

		// Discard results from superseded requests or from before a Clear.
		if q.generation != gen || q.seq != seq {
			q.client.logger.Debug("discarding stale fetch result",
				zap.String("key", q.key.String()), zap.Uint64("seq", seq))
			return nil
		}
		q.cancel = nil
		q.snapshot.Fetching = false
		q.lastUsed = q.client.now()

		switch {
		case err == nil:
			q.snapshot.Data = data
			q.snapshot.State = StateFresh
			q.snapshot.FetchedAt = q.client.now()
			q.snapshot.HasData = true
			q.snapshot.Err = nil
			q.snapshot.FailureCount = 0
			q.version++
		case fetchCtx.Err() != nil && errors.Is(err, context.Canceled):
			// Abandoned by the caller: leave the entry as it was, minus the
			// freshness, so the next FetchIfStale tries again.
			if q.snapshot.HasData {
				q.snapshot.State = StateStale
			} else {
				q.snapshot.State = StateEmpty
			}
			return nil
		default:
			q.snapshot.State = StateError
			q.snapshot.Err = err
			q.snapshot.FailureCount = attempts
			q.client.logger.Debug("fetch failed",
				zap.String("key", q.key.String()), zap.Int("attempts", attempts), zap.Error(err))
		}
		return UpdatedMsg{Key: q.key.String()}
	}
}

// run executes fetchFn with retries. It returns the data, the number of
// attempts made, and the terminal error if every attempt failed.
func (q *Query[T]) run(ctx context.Context, fetchFn FetchFunc[T], opts Options) (T, int, error) {
	var zero T
	key := q.key.String()
	for attempt := 0; ; attempt++ {
		start := time.Now()
		q.client.metrics.Record(Event{Timestamp: start, Key: key, Type: FetchStart})

		data, err := fetchFn(withAttempt(ctx, attempt+1))
		if err == nil {
			q.client.metrics.Record(Event{Timestamp: time.Now(), Key: key, Type: FetchComplete, Duration: time.Since(start)})
			return data, attempt + 1, nil
		}
		q.client.metrics.Record(Event{Timestamp: time.Now(), Key: key, Type: FetchError, Duration: time.Since(start)})

		if attempt >= opts.MaxRetries || !opts.shouldRetry(err) || ctx.Err() != nil {
			return zero, attempt + 1, err
		}

		delay := opts.RetryDelay(attempt)
		q.client.metrics.Record(Event{Timestamp: time.Now(), Key: key, Type: FetchRetry})
		q.client.logger.Debug("retrying fetch",
			zap.String("key", key), zap.Int("attempt", attempt+1), zap.Duration("delay", delay), zap.Error(err))
		if q.client.onRetry != nil {
			q.client.onRetry(key, attempt+2, err)
		}
		if err := sleep(ctx, delay); err != nil {
			return zero, attempt + 1, err
		}
	}
}

type attemptKey struct{}

func withAttempt(ctx context.Context, n int) context.Context {
	return context.WithValue(ctx, attemptKey{}, n)
}

// Attempt returns the 1-based attempt number of the fetch running under ctx,
// or 1 outside a coordinator fetch.
func Attempt(ctx context.Context) int {
	if n, ok := ctx.Value(attemptKey{}).(int); ok {
		return n
	}
	return 1
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// FetchIfStale returns a Fetch Cmd if data is stale or empty, nil if fresh
// or if a fetch is already in flight.
func (q *Query[T]) FetchIfStale(ctx context.Context) tea.Cmd {
	if q.isFreshOrFetching() {
		q.client.metrics.RecordHit(q.key.String())
		return nil
	}
	q.client.metrics.RecordMiss(q.key.String())
	return q.Fetch(ctx)
}

// isFreshOrFetching returns true if the data is fresh or a fetch is in progress.
func (q *Query[T]) isFreshOrFetching() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.snapshot.Fetching {
		return true
	}
	return q.snapshot.HasData && q.snapshot.State == StateFresh && !q.expiredFresh()
}

// expiredFresh reports whether the fresh window has elapsed. Caller holds mu.
func (q *Query[T]) expiredFresh() bool {
	return q.opts.FreshTTL > 0 && q.client.now().Sub(q.snapshot.FetchedAt) >= q.opts.FreshTTL
}

// Load resolves the query synchronously: it fetches when stale, waits for
// any fetch already in flight, and returns the resulting value. Intended for
// one-shot command-line use.
func (q *Query[T]) Load(ctx context.Context) (T, error) {
	if cmd := q.FetchIfStale(ctx); cmd != nil {
		cmd()
	}
	for {
		q.mu.RLock()
		fetching, settled := q.snapshot.Fetching, q.settled
		q.mu.RUnlock()
		if !fetching || settled == nil {
			break
		}
		select {
		case <-settled:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}

	snap := q.Get()
	if snap.State == StateError && snap.Err != nil {
		return snap.Data, snap.Err
	}
	if !snap.HasData {
		if err := ctx.Err(); err != nil {
			return snap.Data, err
		}
		return snap.Data, ErrNoData
	}
	return snap.Data, nil
}

// Invalidate marks current data as stale. Next FetchIfStale will re-fetch.
func (q *Query[T]) Invalidate() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.snapshot.HasData && q.snapshot.State == StateFresh {
		q.snapshot.State = StateStale
	}
}

// Clear resets the query to its initial empty state and cancels any
// in-flight fetch.
func (q *Query[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cancel != nil {
		q.cancel()
		q.cancel = nil
	}
	var zero T
	q.snapshot = Snapshot[T]{Data: zero}
	q.version++
	q.generation++
}

// update swaps in the latest fetch function and options. Consumers pass a
// fresh closure on every use; the newest one wins.
func (q *Query[T]) update(fetchFn FetchFunc[T], opts Options) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if fetchFn != nil {
		q.fetchFn = fetchFn
	}
	q.opts = opts
}

// evictable reports whether the entry may be dropped from the store.
func (q *Query[T]) evictable(now time.Time) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.observers > 0 || q.snapshot.Fetching || q.opts.ExpiryTTL <= 0 {
		return false
	}
	return now.Sub(q.lastUsed) >= q.opts.ExpiryTTL
}

// revalidate refetches an observed query when the trigger is enabled for it.
func (q *Query[T]) revalidate(ctx context.Context, t trigger) tea.Cmd {
	q.mu.RLock()
	observed := q.observers > 0
	enabled := (t == triggerFocus && q.opts.RefetchOnFocus) ||
		(t == triggerReconnect && q.opts.RefetchOnReconnect)
	q.mu.RUnlock()
	if !observed || !enabled {
		return nil
	}
	return q.FetchIfStale(ctx)
}

func (q *Query[T]) snapshotState() SnapshotState {
	return q.Get().State
}

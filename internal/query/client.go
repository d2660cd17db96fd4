// Package query provides the keyed, self-refreshing cache that sits between
// the post browser and the posts API.
package query

import (
	"context"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// GCMsg is sent when the garbage-collection interval fires.
type GCMsg struct{}

type trigger int

const (
	triggerFocus trigger = iota
	triggerReconnect
)

// entry is the non-generic view of a Query used for store-wide operations.
type entry interface {
	Key() Key
	Invalidate()
	Clear()
	Observers() int
	evictable(now time.Time) bool
	revalidate(ctx context.Context, t trigger) tea.Cmd
	snapshotState() SnapshotState
}

// Client owns every cache entry for an application session.
// Construct one per session and pass it to consumers; there is no global.
// Close cancels the session context so in-flight fetches abort.
type Client struct {
	mu       sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
	entries  map[string]entry
	defaults Options
	now      func() time.Time
	logger   *zap.Logger
	metrics  *Metrics
	gcEvery  time.Duration
	onRetry  func(key string, attempt int, err error)
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithDefaults sets the options every query starts from.
func WithDefaults(o Options) ClientOption {
	return func(c *Client) { c.defaults = o }
}

// WithClock overrides the time source used for freshness and expiry.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) { c.now = now }
}

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics shares a metrics collector with the client.
func WithMetrics(m *Metrics) ClientOption {
	return func(c *Client) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithGCInterval sets how often GCTick fires (0 disables it).
func WithGCInterval(d time.Duration) ClientOption {
	return func(c *Client) { c.gcEvery = d }
}

// WithRetryHook registers fn to run before every retry. attempt is the
// number of the attempt about to start and err the failure that caused it.
func WithRetryHook(fn func(key string, attempt int, err error)) ClientOption {
	return func(c *Client) { c.onRetry = fn }
}

// NewClient creates a Client whose lifetime is bound to parent.
func NewClient(parent context.Context, opts ...ClientOption) *Client {
	ctx, cancel := context.WithCancel(parent)
	c := &Client{
		ctx:      ctx,
		cancel:   cancel,
		entries:  make(map[string]entry),
		defaults: DefaultOptions(),
		now:      time.Now,
		logger:   zap.NewNop(),
		metrics:  NewMetrics(),
		gcEvery:  time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Context returns the session context. Canceled on Close.
func (c *Client) Context() context.Context { return c.ctx }

// Defaults returns the options new queries start from.
func (c *Client) Defaults() Options {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defaults
}

// SetDefaults replaces the default options. Existing queries pick them up
// the next time they are used.
func (c *Client) SetDefaults(o Options) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaults = o
}

// Metrics returns the client's fetch telemetry.
func (c *Client) Metrics() *Metrics { return c.metrics }

// Use retrieves or creates the query for key. The fetch function and options
// are refreshed on every call so the newest closure wins.
//
// Each key maps to exactly one concrete type; callers must be consistent.
func Use[T any](c *Client, key Key, fetchFn FetchFunc[T], opts ...Option) *Query[T] {
	id := key.String()

	c.mu.RLock()
	e, ok := c.entries[id]
	defaults := c.defaults
	c.mu.RUnlock()
	o := defaults.apply(opts)

	if ok {
		q := mustType[T](id, e)
		q.update(fetchFn, o)
		return q
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[id]; ok {
		q := mustType[T](id, e)
		q.update(fetchFn, o)
		return q
	}
	q := newQuery(c, key, o, fetchFn)
	c.entries[id] = q
	c.metrics.RegisterQuery(id, func() QueryStatus {
		snap := q.Get()
		return QueryStatus{Key: id, State: snap.State, FetchedAt: snap.FetchedAt, Observers: q.Observers()}
	})
	return q
}

func mustType[T any](id string, e entry) *Query[T] {
	q, ok := e.(*Query[T])
	if !ok {
		panic(fmt.Sprintf("query %q has type %T, want %T", id, e, (*Query[T])(nil)))
	}
	return q
}

// Peek returns the current result for key without creating or fetching it.
func Peek[T any](c *Client, key Key) (Result[T], bool) {
	c.mu.RLock()
	e, ok := c.entries[key.String()]
	c.mu.RUnlock()
	if !ok {
		return Result[T]{}, false
	}
	q, ok := e.(*Query[T])
	if !ok {
		return Result[T]{}, false
	}
	return q.Get().Result(), true
}

// GetOrFetch returns the latest known value for key and, when the entry is
// empty or stale, a Cmd that revalidates it in the background.
func GetOrFetch[T any](ctx context.Context, c *Client, key Key, fetchFn FetchFunc[T], opts ...Option) (Result[T], tea.Cmd) {
	q := Use(c, key, fetchFn, opts...)
	cmd := q.FetchIfStale(ctx)
	return q.Get().Result(), cmd
}

// Prefetch warms the entry for key without retaining it.
func Prefetch[T any](ctx context.Context, c *Client, key Key, fetchFn FetchFunc[T], opts ...Option) tea.Cmd {
	return Use(c, key, fetchFn, opts...).FetchIfStale(ctx)
}

// Len returns the number of entries in the store.
func (c *Client) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// States returns the current freshness state of every entry, by key.
func (c *Client) States() map[string]SnapshotState {
	c.mu.RLock()
	entries := make([]entry, 0, len(c.entries))
	for _, e := range c.entries {
		entries = append(entries, e)
	}
	c.mu.RUnlock()

	states := make(map[string]SnapshotState, len(entries))
	for _, e := range entries {
		states[e.Key().String()] = e.snapshotState()
	}
	return states
}

// Invalidate marks every entry whose key starts with prefix as stale and
// returns how many matched.
func (c *Client) Invalidate(prefix Key) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, e := range c.entries {
		if e.Key().HasPrefix(prefix) {
			e.Invalidate()
			n++
		}
	}
	return n
}

// Clear evicts every entry. Entries still retained by an observer stay
// registered but empty, so the observer sees a cold pending cycle.
func (c *Client) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, e := range c.entries {
		e.Clear()
		if e.Observers() == 0 {
			delete(c.entries, id)
			c.metrics.UnregisterQuery(id)
		}
	}
	c.logger.Debug("cache cleared")
}

// GC evicts unobserved entries idle for longer than their expiry window.
// Returns the number evicted.
func (c *Client) GC() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for id, e := range c.entries {
		if e.evictable(now) {
			e.Clear()
			delete(c.entries, id)
			c.metrics.UnregisterQuery(id)
			c.logger.Debug("evicted expired entry", zap.String("key", id))
			n++
		}
	}
	return n
}

// GCTick returns a Cmd that emits GCMsg after the GC interval.
func (c *Client) GCTick() tea.Cmd {
	if c.gcEvery <= 0 {
		return nil
	}
	return tea.Tick(c.gcEvery, func(time.Time) tea.Msg {
		return GCMsg{}
	})
}

// Focus revalidates observed, stale entries that refetch on focus.
func (c *Client) Focus(ctx context.Context) tea.Cmd {
	return c.revalidate(ctx, triggerFocus)
}

// Reconnect revalidates observed, stale entries that refetch on reconnect.
func (c *Client) Reconnect(ctx context.Context) tea.Cmd {
	return c.revalidate(ctx, triggerReconnect)
}

func (c *Client) revalidate(ctx context.Context, t trigger) tea.Cmd {
	c.mu.RLock()
	entries := make([]entry, 0, len(c.entries))
	for _, e := range c.entries {
		entries = append(entries, e)
	}
	c.mu.RUnlock()

	var cmds []tea.Cmd
	for _, e := range entries {
		if cmd := e.revalidate(ctx, t); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	if len(cmds) == 0 {
		return nil
	}
	return tea.Batch(cmds...)
}

// Close cancels the session context and clears every entry.
// After Close, the client should not be reused.
func (c *Client) Close() {
	c.cancel()
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, e := range c.entries {
		e.Clear()
		c.metrics.UnregisterQuery(id)
	}
	c.entries = make(map[string]entry)
}

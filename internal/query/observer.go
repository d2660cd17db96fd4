package query

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// Observer follows one key at a time on behalf of a consumer. It retains
// the observed query so the store never evicts it, and when KeepPrevious is
// set it remembers the last resolved value across key changes.
type Observer[T any] struct {
	mu      sync.Mutex
	client  *Client
	opts    []Option
	query   *Query[T]
	prev    T
	hasPrev bool
}

// NewObserver creates an observer that is not yet bound to a key.
func NewObserver[T any](c *Client, opts ...Option) *Observer[T] {
	return &Observer[T]{client: c, opts: opts}
}

// Key returns the observed key, or nil when unbound.
func (o *Observer[T]) Key() Key {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.query == nil {
		return nil
	}
	return o.query.Key()
}

// Observe binds the observer to key and returns a Cmd that fetches it when
// it is empty or stale. Observing the current key again only refreshes the
// fetch function.
func (o *Observer[T]) Observe(ctx context.Context, key Key, fetchFn FetchFunc[T]) tea.Cmd {
	o.mu.Lock()
	prevQuery := o.query
	q := Use(o.client, key, fetchFn, o.opts...)
	if prevQuery != q {
		if prevQuery != nil {
			if snap := prevQuery.Get(); snap.HasData {
				o.prev = snap.Data
				o.hasPrev = true
			}
			prevQuery.Release()
		}
		q.Retain()
		o.query = q
	}
	o.mu.Unlock()
	return q.FetchIfStale(ctx)
}

// Query returns the currently observed query, or nil when unbound.
func (o *Observer[T]) Query() *Query[T] {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.query
}

// Result returns the observed key's result. While the key has no value and
// KeepPrevious is on, the previous key's value is returned with IsPrevious.
func (o *Observer[T]) Result() Result[T] {
	o.mu.Lock()
	q, prev, hasPrev := o.query, o.prev, o.hasPrev
	o.mu.Unlock()
	if q == nil {
		return Result[T]{}
	}

	r := q.Get().Result()
	if !r.HasData && hasPrev && q.Options().KeepPrevious {
		r.Data = prev
		r.HasData = true
		r.IsPrevious = true
		r.IsStale = true
		if r.Status == StatusPending {
			r.Status = StatusSuccess
			r.IsFetching = true
		}
	}
	return r
}

// Refetch forces a fetch of the observed key, superseding any in-flight one.
func (o *Observer[T]) Refetch(ctx context.Context) tea.Cmd {
	q := o.Query()
	if q == nil {
		return nil
	}
	q.Invalidate()
	return q.Fetch(ctx)
}

// ForgetPrevious drops the remembered value so the next pending state is
// shown as pending rather than as previous data.
func (o *Observer[T]) ForgetPrevious() {
	o.mu.Lock()
	defer o.mu.Unlock()
	var zero T
	o.prev = zero
	o.hasPrev = false
}

// Release unbinds the observer and releases its query.
func (o *Observer[T]) Release() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.query != nil {
		o.query.Release()
		o.query = nil
	}
}

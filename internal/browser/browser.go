// Package browser holds the paginated post browser: its view state, the
// commands that change it, and the pure function that renders it.
//
// Every command mutates state synchronously and returns a tea.Cmd carrying
// the coordinator work. Caching, freshness and retries are the query
// client's job; the browser only picks keys and reacts to updates.
package browser

import (
	"context"
	"fmt"
	"math"
	"slices"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/basecamp/postbrowser/internal/api"
	"github.com/basecamp/postbrowser/internal/query"
)

// DefaultPageSize is the number of posts per page.
const DefaultPageSize = 10

// Fetcher loads posts. *api.Client satisfies it.
type Fetcher interface {
	FetchPage(ctx context.Context, page, pageSize int) (api.Page, error)
	FetchPost(ctx context.Context, id int64) (api.Post, error)
}

// State is the browser's own view state. Everything else is read from the
// query client.
type State struct {
	Page     int   // always >= 1
	Selected int64 // 0 when nothing is selected
	Notice   string
}

// PageKey is the cache key of one page of posts.
func PageKey(page int) query.Key { return query.NewKey("posts", page) }

// PostKey is the cache key of a single post.
func PostKey(id int64) query.Key { return query.NewKey("post", id) }

// Browser is the paginated post browser.
// It is not safe for concurrent use; drive it from the event loop.
type Browser struct {
	client   *query.Client
	fetcher  Fetcher
	pageSize int
	logger   *zap.Logger
	opts     []query.Option

	state State
	pages *query.Observer[api.Page]
	post  *query.Observer[api.Post]
}

// Option configures a Browser.
type Option func(*Browser)

// WithPageSize sets the number of posts per page.
func WithPageSize(n int) Option {
	return func(b *Browser) {
		if n > 0 {
			b.pageSize = n
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Browser) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithQueryOptions adds per-query options on top of the client defaults.
func WithQueryOptions(opts ...query.Option) Option {
	return func(b *Browser) { b.opts = append(b.opts, opts...) }
}

// New creates a browser on page 1. Call Init to start loading it.
func New(client *query.Client, fetcher Fetcher, opts ...Option) *Browser {
	b := &Browser{
		client:   client,
		fetcher:  fetcher,
		pageSize: DefaultPageSize,
		logger:   zap.NewNop(),
		opts:     []query.Option{query.WithRetryIf(api.IsRetryable)},
		state:    State{Page: 1},
	}
	for _, opt := range opts {
		opt(b)
	}
	b.pages = query.NewObserver[api.Page](client, b.opts...)
	// A different post's body is never a useful placeholder.
	b.post = query.NewObserver[api.Post](client, append(slices.Clone(b.opts), query.WithKeepPrevious(false))...)
	return b
}

func (b *Browser) ctx() context.Context { return b.client.Context() }

// State returns a copy of the current view state.
func (b *Browser) State() State { return b.state }

// PageSize returns the number of posts per page.
func (b *Browser) PageSize() int { return b.pageSize }

// Client returns the query client the browser reads from.
func (b *Browser) Client() *query.Client { return b.client }

// Init observes the current page.
func (b *Browser) Init() tea.Cmd {
	return b.GoToPage(b.state.Page)
}

// PageResult returns the coordinator's view of the current page.
func (b *Browser) PageResult() query.Result[api.Page] { return b.pages.Result() }

// PostResult returns the coordinator's view of the selected post.
func (b *Browser) PostResult() query.Result[api.Post] { return b.post.Result() }

// View renders the current state.
func (b *Browser) View() View {
	return Render(b.state, b.pages.Result(), b.post.Result())
}

func (b *Browser) fetchPage(page int) query.FetchFunc[api.Page] {
	size := b.pageSize
	return func(ctx context.Context) (api.Page, error) {
		return b.fetcher.FetchPage(ctx, page, size)
	}
}

func (b *Browser) fetchPost(id int64) query.FetchFunc[api.Post] {
	return func(ctx context.Context) (api.Post, error) {
		return b.fetcher.FetchPost(ctx, id)
	}
}

// GoToPage moves to page max(n, 1) and fetches it unless it is fresh.
// There is no upper bound: pages past the end resolve to an empty page.
func (b *Browser) GoToPage(n int) tea.Cmd {
	n = max(n, 1)
	if n != b.state.Page {
		b.logger.Debug("go to page", zap.Int("from", b.state.Page), zap.Int("to", n))
	}
	b.state.Page = n
	return b.pages.Observe(b.ctx(), PageKey(n), b.fetchPage(n))
}

// NextPage moves forward one page. It does nothing when the current page
// is known to be the last.
func (b *Browser) NextPage() tea.Cmd {
	if b.onLastPage() {
		return nil
	}
	return b.GoToPage(b.state.Page + 1)
}

// PrevPage moves back one page, stopping at page 1.
func (b *Browser) PrevPage() tea.Cmd {
	if b.state.Page <= 1 {
		return nil
	}
	return b.GoToPage(b.state.Page - 1)
}

func (b *Browser) onLastPage() bool {
	if b.state.Page == math.MaxInt {
		return true
	}
	r := b.pages.Result()
	return r.Status == query.StatusSuccess && !r.IsPrevious && !r.Data.HasMore
}

// SelectItem opens the detail of post id. The post is fetched only when it
// is not cached and fresh, independently of any pending page fetch.
func (b *Browser) SelectItem(id int64) tea.Cmd {
	if id <= 0 {
		b.ClearSelection()
		return nil
	}
	b.state.Selected = id
	return b.post.Observe(b.ctx(), PostKey(id), b.fetchPost(id))
}

// ClearSelection closes the detail. The post stays cached.
func (b *Browser) ClearSelection() {
	b.state.Selected = 0
	b.post.Release()
}

// Refresh marks the current page stale and refetches it. The current items
// stay visible until the new ones arrive; a second Refresh supersedes the
// first.
func (b *Browser) Refresh() tea.Cmd {
	b.logger.Debug("refresh", zap.Int("page", b.state.Page))
	return b.pages.Refetch(b.ctx())
}

// PrefetchNext warms the next page without changing state.
func (b *Browser) PrefetchNext() tea.Cmd {
	if b.onLastPage() {
		return nil
	}
	next := b.state.Page + 1
	return query.Prefetch(b.ctx(), b.client, PageKey(next), b.fetchPage(next), b.opts...)
}

// ClearAllCache evicts every entry. The current page, and the selected post
// if any, go through a cold pending cycle again.
func (b *Browser) ClearAllCache() tea.Cmd {
	b.client.Clear()
	b.pages.ForgetPrevious()
	b.post.ForgetPrevious()
	b.state.Notice = ""
	b.logger.Debug("cache cleared by user")

	cmds := []tea.Cmd{b.GoToPage(b.state.Page)}
	if id := b.state.Selected; id != 0 {
		cmds = append(cmds, b.post.Observe(b.ctx(), PostKey(id), b.fetchPost(id)))
	}
	return tea.Batch(cmds...)
}

// Retry re-runs the fetch for the current page, and for the selected post
// when its last fetch failed with a retryable error.
func (b *Browser) Retry() tea.Cmd {
	cmds := []tea.Cmd{b.pages.Refetch(b.ctx())}
	if b.state.Selected != 0 {
		if r := b.post.Result(); r.Status == query.StatusError && !api.IsNotFound(r.Err) {
			cmds = append(cmds, b.post.Refetch(b.ctx()))
		}
	}
	return tea.Batch(cmds...)
}

// DismissNotice clears the refresh-error notice.
func (b *Browser) DismissNotice() {
	b.state.Notice = ""
}

// Focus forwards a window-focus signal to the query client.
func (b *Browser) Focus() tea.Cmd {
	return b.client.Focus(b.ctx())
}

// Reconnect forwards a network-reconnect signal to the query client.
func (b *Browser) Reconnect() tea.Cmd {
	return b.client.Reconnect(b.ctx())
}

// Update reacts to query messages. It returns true when msg concerned the
// current page or the selected post and the view should be redrawn.
func (b *Browser) Update(msg tea.Msg) (bool, tea.Cmd) {
	switch msg := msg.(type) {
	case query.UpdatedMsg:
		if k := b.pages.Key(); k != nil && k.String() == msg.Key {
			b.pageUpdated()
			return true, nil
		}
		if k := b.post.Key(); k != nil && k.String() == msg.Key {
			return true, nil
		}
		return false, nil
	case query.GCMsg:
		if n := b.client.GC(); n > 0 {
			b.logger.Debug("evicted expired entries", zap.Int("count", n))
		}
		return false, b.client.GCTick()
	}
	return false, nil
}

func (b *Browser) pageUpdated() {
	r := b.pages.Result()
	switch {
	case r.Err == nil:
		b.state.Notice = ""
	case r.Status == query.StatusSuccess && !r.IsPrevious:
		// Refresh of data we already had: keep it, surface the failure.
		b.state.Notice = fmt.Sprintf("Refresh failed: %v", r.Err)
		b.logger.Debug("refresh failed, keeping cached page",
			zap.Int("page", b.state.Page), zap.Error(r.Err))
	}
}

// Close releases the browser's observers.
func (b *Browser) Close() {
	b.pages.Release()
	b.post.Release()
}

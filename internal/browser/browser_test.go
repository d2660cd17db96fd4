package browser

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basecamp/postbrowser/internal/api"
	"github.com/basecamp/postbrowser/internal/query"
)

// fakeFetcher serves total posts and counts the requests it answers.
type fakeFetcher struct {
	mu        sync.Mutex
	total     int
	pageErr   error
	pageCalls map[int]int
	postCalls map[int64]int
	requested []int
}

func newFakeFetcher(total int) *fakeFetcher {
	return &fakeFetcher{total: total, pageCalls: map[int]int{}, postCalls: map[int64]int{}}
}

func (f *fakeFetcher) FetchPage(ctx context.Context, page, pageSize int) (api.Page, error) {
	if err := ctx.Err(); err != nil {
		return api.Page{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageCalls[page]++
	f.requested = append(f.requested, page)
	if f.pageErr != nil {
		return api.Page{}, f.pageErr
	}
	var items []api.Post
	if page <= f.total {
		for id := (page-1)*pageSize + 1; id <= min(page*pageSize, f.total); id++ {
			items = append(items, f.post(int64(id)))
		}
	}
	return api.NewPage(items, page, pageSize, f.total), nil
}

func (f *fakeFetcher) FetchPost(ctx context.Context, id int64) (api.Post, error) {
	if err := ctx.Err(); err != nil {
		return api.Post{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.postCalls[id]++
	if id < 1 || id > int64(f.total) {
		return api.Post{}, &api.NotFoundError{Resource: "post", ID: id}
	}
	return f.post(id), nil
}

func (f *fakeFetcher) post(id int64) api.Post {
	return api.Post{ID: id, UserID: 1, Title: fmt.Sprintf("Post %d", id), Body: "body"}
}

func (f *fakeFetcher) calls(page int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pageCalls[page]
}

func (f *fakeFetcher) setPageErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageErr = err
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBrowser(t *testing.T, f *fakeFetcher) (*Browser, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	defaults := query.DefaultOptions()
	defaults.MaxRetries = 2
	defaults.RetryBase = time.Millisecond
	defaults.RetryMax = 2 * time.Millisecond
	c := query.NewClient(context.Background(), query.WithDefaults(defaults), query.WithClock(clock.Now))
	t.Cleanup(c.Close)
	b := New(c, f)
	t.Cleanup(b.Close)
	return b, clock
}

// run executes cmd and every command it batches, feeding each message back
// into the browser, and returns the messages.
func run(b *Browser, cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var msgs []tea.Msg
		for _, c := range batch {
			msgs = append(msgs, run(b, c)...)
		}
		return msgs
	}
	if msg == nil {
		return nil
	}
	b.Update(msg)
	return []tea.Msg{msg}
}

// cached reports whether the browser's client holds an entry for key.
func cached(b *Browser, key query.Key) bool {
	_, ok := b.Client().States()[key.String()]
	return ok
}

func ids(posts []api.Post) []int64 {
	out := make([]int64, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}

func TestBrowserPaginationScenario(t *testing.T) {
	f := newFakeFetcher(25)
	b, _ := newTestBrowser(t, f)

	assert.Equal(t, ModeLoading, b.View().Mode)
	run(b, b.Init())

	v := b.View()
	require.Equal(t, ModeReady, v.Mode)
	assert.Equal(t, 1, v.Page)
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, ids(v.Items))
	assert.True(t, v.HasMore)
	assert.False(t, v.HasPrev)

	run(b, b.NextPage())
	run(b, b.NextPage())

	v = b.View()
	assert.Equal(t, 3, b.State().Page)
	assert.Equal(t, []int64{21, 22, 23, 24, 25}, ids(v.Items))
	assert.False(t, v.HasMore)
	assert.True(t, v.HasPrev)
	assert.Equal(t, []int{1, 2, 3}, f.requested)

	assert.Nil(t, b.NextPage(), "no page after the last")
	assert.Equal(t, 3, b.State().Page)

	run(b, b.PrevPage())
	assert.Equal(t, 2, b.State().Page)
	assert.Equal(t, 1, f.calls(2), "fresh page is served from cache")
}

func TestBrowserGoToPageBounds(t *testing.T) {
	f := newFakeFetcher(25)
	b, _ := newTestBrowser(t, f)

	run(b, b.GoToPage(-4))
	assert.Equal(t, 1, b.State().Page)

	run(b, b.GoToPage(0))
	assert.Equal(t, 1, b.State().Page)

	run(b, b.GoToPage(100))
	v := b.View()
	assert.Equal(t, 100, v.Page)
	assert.Equal(t, ModeReady, v.Mode)
	assert.NotNil(t, v.Items)
	assert.Empty(t, v.Items)
	assert.False(t, v.HasMore)
	assert.Nil(t, v.Error)
}

func TestBrowserLastRepresentablePage(t *testing.T) {
	f := newFakeFetcher(25)
	b, _ := newTestBrowser(t, f)

	run(b, b.GoToPage(math.MaxInt))
	v := b.View()
	assert.Equal(t, math.MaxInt, v.Page)
	assert.Equal(t, ModeReady, v.Mode)
	assert.Empty(t, v.Items)
	assert.False(t, v.HasMore)

	assert.Nil(t, b.NextPage())
	assert.Nil(t, b.PrefetchNext())
	assert.Equal(t, math.MaxInt, b.State().Page)

	run(b, b.PrevPage())
	assert.Equal(t, math.MaxInt-1, b.State().Page)
}

func TestBrowserHasMoreExactBoundary(t *testing.T) {
	b, _ := newTestBrowser(t, newFakeFetcher(20))
	run(b, b.GoToPage(2))

	v := b.View()
	assert.Equal(t, []int64{11, 12, 13, 14, 15, 16, 17, 18, 19, 20}, ids(v.Items))
	assert.False(t, v.HasMore)
}

func TestBrowserEmptyResult(t *testing.T) {
	b, _ := newTestBrowser(t, newFakeFetcher(0))
	run(b, b.Init())

	v := b.View()
	assert.Equal(t, ModeReady, v.Mode)
	assert.Empty(t, v.Items)
	assert.Zero(t, v.TotalCount)
	assert.False(t, v.HasMore)
	assert.Nil(t, b.PrefetchNext())
}

func TestBrowserKeepsPreviousPageWhileLoading(t *testing.T) {
	f := newFakeFetcher(25)
	b, _ := newTestBrowser(t, f)
	run(b, b.Init())

	cmd := b.NextPage()
	require.NotNil(t, cmd)

	v := b.View()
	assert.Equal(t, 2, v.Page)
	assert.Equal(t, ModeReady, v.Mode, "no flash to loading")
	assert.True(t, v.IsPrevious)
	assert.True(t, v.IsUpdating)
	assert.Equal(t, int64(1), v.Items[0].ID)

	run(b, cmd)
	v = b.View()
	assert.False(t, v.IsPrevious)
	assert.False(t, v.IsUpdating)
	assert.Equal(t, int64(11), v.Items[0].ID)
}

func TestBrowserIgnoresResultsForInactivePage(t *testing.T) {
	f := newFakeFetcher(25)
	b, _ := newTestBrowser(t, f)
	run(b, b.Init())

	toTwo := b.GoToPage(2)
	toThree := b.GoToPage(3)

	msg := toTwo()
	require.Equal(t, query.UpdatedMsg{Key: PageKey(2).String()}, msg)
	redraw, _ := b.Update(msg)
	assert.False(t, redraw)

	v := b.View()
	assert.Equal(t, 3, v.Page)
	assert.True(t, v.IsPrevious, "page 2 did not replace the pending page 3")
	assert.Equal(t, int64(1), v.Items[0].ID)

	run(b, toThree)
	assert.Equal(t, int64(21), b.View().Items[0].ID)
}

func TestBrowserRefreshTwiceAppliesOnce(t *testing.T) {
	f := newFakeFetcher(25)
	b, _ := newTestBrowser(t, f)
	run(b, b.Init())

	first := b.Refresh()
	second := b.Refresh()

	v := b.View()
	assert.Equal(t, ModeReady, v.Mode)
	assert.True(t, v.IsUpdating)
	assert.Len(t, v.Items, 10, "old items stay visible during refresh")

	msgs := append(run(b, first), run(b, second)...)
	assert.Len(t, msgs, 1, "only the latest refresh is applied")
	assert.Equal(t, 2, f.calls(1))
	assert.False(t, b.View().IsUpdating)
}

func TestBrowserRefreshErrorShowsNotice(t *testing.T) {
	f := newFakeFetcher(25)
	b, _ := newTestBrowser(t, f)
	run(b, b.Init())

	f.setPageErr(&api.FetchError{Status: 503, Message: "service unavailable"})
	run(b, b.Refresh())

	v := b.View()
	assert.Equal(t, ModeReady, v.Mode)
	assert.Len(t, v.Items, 10)
	assert.Nil(t, v.Error)
	assert.Contains(t, v.Notice, "service unavailable")
	assert.Equal(t, 4, f.calls(1), "initial load plus one attempt and two retries")

	b.DismissNotice()
	assert.Empty(t, b.View().Notice)

	f.setPageErr(nil)
	run(b, b.Refresh())
	assert.Empty(t, b.View().Notice)
}

func TestBrowserFirstLoadErrorAndRetry(t *testing.T) {
	f := newFakeFetcher(25)
	f.setPageErr(&api.FetchError{Message: "network error", Cause: errors.New("connection refused")})
	b, _ := newTestBrowser(t, f)

	run(b, b.Init())
	v := b.View()
	require.Equal(t, ModeError, v.Mode)
	require.NotNil(t, v.Error)
	assert.Equal(t, ErrorKindFetch, v.Error.Kind)
	assert.True(t, v.Error.CanRetry)
	assert.Equal(t, 3, v.Error.Attempts)
	assert.Empty(t, v.Items)
	assert.Empty(t, v.Notice, "first-load failure is a panel, not a notice")

	f.setPageErr(nil)
	retry := b.Retry()
	assert.Equal(t, ModeLoading, b.View().Mode)
	run(b, retry)

	assert.Equal(t, ModeReady, b.View().Mode)
	for _, page := range f.requested {
		assert.Equal(t, 1, page, "retry re-invokes the same key")
	}
}

func TestBrowserPermanentErrorIsNotRetried(t *testing.T) {
	f := newFakeFetcher(25)
	f.setPageErr(&api.FetchError{Status: 400, Message: "bad request"})
	b, _ := newTestBrowser(t, f)

	run(b, b.Init())
	assert.Equal(t, ModeError, b.View().Mode)
	assert.Equal(t, 1, f.calls(1))
}

func TestBrowserSelectClearSelectRoundTrip(t *testing.T) {
	f := newFakeFetcher(25)
	b, _ := newTestBrowser(t, f)
	run(b, b.Init())

	run(b, b.SelectItem(3))
	d := b.View().Detail
	require.NotNil(t, d)
	assert.Equal(t, ModeReady, d.Mode)
	assert.Equal(t, "Post 3", d.Post.Title)

	b.ClearSelection()
	assert.Zero(t, b.State().Selected)
	assert.Nil(t, b.View().Detail)
	assert.True(t, cached(b, PostKey(3)), "clearing the selection keeps the entry")

	assert.Nil(t, b.SelectItem(3), "fresh post is not refetched")
	assert.Equal(t, ModeReady, b.View().Detail.Mode)
	assert.Equal(t, 1, f.postCalls[3])
}

func TestBrowserSelectWhilePageLoading(t *testing.T) {
	f := newFakeFetcher(25)
	b, _ := newTestBrowser(t, f)

	pageCmd := b.Init()
	postCmd := b.SelectItem(5)
	require.NotNil(t, pageCmd)
	require.NotNil(t, postCmd)

	run(b, postCmd)
	v := b.View()
	assert.Equal(t, ModeLoading, v.Mode)
	require.NotNil(t, v.Detail)
	assert.Equal(t, ModeReady, v.Detail.Mode)

	run(b, pageCmd)
	assert.Equal(t, ModeReady, b.View().Mode)
}

func TestBrowserSelectNotFound(t *testing.T) {
	f := newFakeFetcher(25)
	b, _ := newTestBrowser(t, f)
	run(b, b.Init())

	run(b, b.SelectItem(99))
	d := b.View().Detail
	require.NotNil(t, d)
	assert.Equal(t, ModeError, d.Mode)
	assert.Equal(t, ErrorKindNotFound, d.Error.Kind)
	assert.False(t, d.Error.CanRetry)
	assert.Equal(t, 1, f.postCalls[99], "not found is never retried")

	run(b, b.Retry())
	assert.Equal(t, 1, f.postCalls[99])
	assert.Equal(t, ModeReady, b.View().Mode, "the page itself is unaffected")
}

func TestBrowserSelectNonPositiveClears(t *testing.T) {
	b, _ := newTestBrowser(t, newFakeFetcher(5))
	run(b, b.SelectItem(2))
	assert.Nil(t, b.SelectItem(0))
	assert.Zero(t, b.State().Selected)
}

func TestBrowserPrefetchNext(t *testing.T) {
	f := newFakeFetcher(25)
	b, _ := newTestBrowser(t, f)
	run(b, b.Init())

	before := b.State()
	run(b, b.PrefetchNext())
	assert.Equal(t, before, b.State())
	assert.Equal(t, 1, f.calls(2))

	assert.Nil(t, b.NextPage(), "prefetched page is fresh")
	v := b.View()
	assert.Equal(t, ModeReady, v.Mode)
	assert.False(t, v.IsPrevious)
	assert.Equal(t, int64(11), v.Items[0].ID)
	assert.Equal(t, 1, f.calls(2))
}

func TestBrowserClearAllCache(t *testing.T) {
	f := newFakeFetcher(25)
	b, _ := newTestBrowser(t, f)
	run(b, b.Init())
	run(b, b.PrefetchNext())
	run(b, b.SelectItem(2))

	cmd := b.ClearAllCache()
	v := b.View()
	assert.Equal(t, ModeLoading, v.Mode, "cleared page is pending again")
	assert.Empty(t, v.Items)
	assert.Equal(t, ModeLoading, v.Detail.Mode)
	assert.False(t, cached(b, PageKey(2)))

	run(b, cmd)
	v = b.View()
	assert.Equal(t, ModeReady, v.Mode)
	assert.Equal(t, ModeReady, v.Detail.Mode)
	assert.Equal(t, 2, f.calls(1))
	assert.Equal(t, 2, f.postCalls[2])
}

func TestBrowserFocusAndReconnect(t *testing.T) {
	f := newFakeFetcher(25)
	b, _ := newTestBrowser(t, f)
	run(b, b.Init())

	assert.Nil(t, b.Focus(), "fresh data is not refetched on focus")

	b.Client().Invalidate(query.Key{"posts"})
	run(b, b.Focus())
	assert.Equal(t, 2, f.calls(1))

	b.Client().Invalidate(query.Key{"posts"})
	run(b, b.Reconnect())
	assert.Equal(t, 3, f.calls(1))
}

func TestBrowserStaleAfterFreshWindow(t *testing.T) {
	f := newFakeFetcher(25)
	b, clock := newTestBrowser(t, f)
	run(b, b.Init())

	clock.Advance(6 * time.Minute)
	cmd := b.GoToPage(1)
	require.NotNil(t, cmd)

	v := b.View()
	assert.Equal(t, ModeReady, v.Mode, "stale data is served while revalidating")
	assert.True(t, v.IsUpdating)
	run(b, cmd)
	assert.Equal(t, 2, f.calls(1))
}

func TestBrowserGarbageCollectsUnobservedPages(t *testing.T) {
	f := newFakeFetcher(25)
	b, clock := newTestBrowser(t, f)
	run(b, b.Init())
	run(b, b.PrefetchNext())

	clock.Advance(10 * time.Minute)
	redraw, next := b.Update(query.GCMsg{})
	assert.False(t, redraw)
	assert.NotNil(t, next, "gc reschedules itself")
	assert.False(t, cached(b, PageKey(2)))
	assert.True(t, cached(b, PageKey(1)), "observed page is never evicted")
}

func TestBrowserUpdateIgnoresUnknownMessages(t *testing.T) {
	b, _ := newTestBrowser(t, newFakeFetcher(1))
	redraw, cmd := b.Update(tea.KeyMsg{})
	assert.False(t, redraw)
	assert.Nil(t, cmd)

	redraw, _ = b.Update(query.UpdatedMsg{Key: "posts:42"})
	assert.False(t, redraw)
}

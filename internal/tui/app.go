package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"go.uber.org/zap"

	"github.com/basecamp/postbrowser/internal/api"
	"github.com/basecamp/postbrowser/internal/browser"
	"github.com/basecamp/postbrowser/internal/query"
	"github.com/basecamp/postbrowser/internal/recents"
	"github.com/basecamp/postbrowser/internal/resilience"
	"github.com/basecamp/postbrowser/internal/richtext"
)

// ReconnectMsg tells the browser the API is reachable again.
type ReconnectMsg struct{}

// OptionsReloadedMsg carries new query defaults after a config change.
type OptionsReloadedMsg struct {
	Options query.Options
}

// Gate is the part of the request gate the browser shows and listens to.
type Gate interface {
	Status() resilience.Status
	OnRecover(fn func())
}

// Model is the bubbletea model for the post browser.
type Model struct {
	browser  *browser.Browser
	styles   *Styles
	keys     KeyMap
	help     help.Model
	spinner  spinner.Model
	viewport viewport.Model
	logger   *zap.Logger

	gate       Gate
	gateStatus resilience.Status
	recents    *recents.Store

	width, height int
	cursor        int
	showStats     bool
	autoPrefetch  bool
	detailStyle   richtext.Style
	detail        *detailCache
	recorded      int64
}

// detailCache holds the last rendered post body; glamour is too slow to
// run on every frame.
type detailCache struct {
	id    int64
	width int
	out   string
}

// ModelOption configures a Model.
type ModelOption func(*Model)

// WithStyles sets the styles.
func WithStyles(s *Styles) ModelOption {
	return func(m *Model) {
		if s != nil {
			m.styles = s
		}
	}
}

// WithGate shows breaker and rate-limit state and refetches on recovery.
func WithGate(g Gate) ModelOption {
	return func(m *Model) { m.gate = g }
}

// WithRecents records opened posts.
func WithRecents(r *recents.Store) ModelOption {
	return func(m *Model) { m.recents = r }
}

// WithAutoPrefetch warms the next page whenever a page resolves.
func WithAutoPrefetch(on bool) ModelOption {
	return func(m *Model) { m.autoPrefetch = on }
}

// WithDetailStyle sets the glamour style for post bodies.
func WithDetailStyle(s richtext.Style) ModelOption {
	return func(m *Model) { m.detailStyle = s }
}

// WithModelLogger sets the structured logger.
func WithModelLogger(l *zap.Logger) ModelOption {
	return func(m *Model) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewModel creates the browser model.
func NewModel(b *browser.Browser, opts ...ModelOption) Model {
	m := Model{
		browser:      b,
		styles:       NewStyles(),
		keys:         DefaultKeyMap(),
		help:         help.New(),
		viewport:     viewport.New(80, 10),
		logger:       zap.NewNop(),
		autoPrefetch: true,
		detailStyle:  richtext.StyleAuto,
		detail:       &detailCache{},
	}
	for _, opt := range opts {
		opt(&m)
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(m.styles.theme.Primary)
	m.spinner = s
	m.refreshGate()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.browser.Init(), m.browser.Client().GCTick(), m.spinner.Tick)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.resize()
		return m, nil

	case tea.FocusMsg:
		return m, m.browser.Focus()

	case tea.BlurMsg:
		return m, nil

	case ReconnectMsg:
		m.logger.Info("posts API recovered, revalidating")
		m.refreshGate()
		return m, m.browser.Reconnect()

	case OptionsReloadedMsg:
		m.browser.Client().SetDefaults(msg.Options)
		m.logger.Info("query options reloaded",
			zap.Duration("fresh_ttl", msg.Options.FreshTTL), zap.Int("max_retries", msg.Options.MaxRetries))
		return m, m.browser.GoToPage(m.browser.State().Page)

	case query.UpdatedMsg:
		return m.handleUpdate(msg)

	case query.GCMsg:
		_, cmd := m.browser.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleUpdate(msg query.UpdatedMsg) (tea.Model, tea.Cmd) {
	redraw, cmd := m.browser.Update(msg)
	if !redraw {
		return m, cmd
	}
	m.refreshGate()
	v := m.browser.View()
	m.clampCursor(v)
	m.syncDetail(v)

	cmds := []tea.Cmd{cmd}
	page := browser.PageKey(m.browser.State().Page).String()
	if m.autoPrefetch && msg.Key == page && v.Mode == browser.ModeReady && !v.IsPrevious && v.HasMore {
		cmds = append(cmds, m.browser.PrefetchNext())
	}
	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	v := m.browser.View()

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, m.keys.Stats):
		m.showStats = !m.showStats

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(v.Items)-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Next):
		if cmd := m.browser.NextPage(); cmd != nil || m.browser.State().Page != v.Page {
			m.cursor = 0
			return m.afterNavigation(cmd)
		}

	case key.Matches(msg, m.keys.Prev):
		if v.Page > 1 {
			m.cursor = 0
			return m.afterNavigation(m.browser.PrevPage())
		}

	case key.Matches(msg, m.keys.Open):
		if m.cursor < len(v.Items) {
			cmd := m.browser.SelectItem(v.Items[m.cursor].ID)
			m.viewport.GotoTop()
			m.syncDetail(m.browser.View())
			return m, cmd
		}

	case key.Matches(msg, m.keys.Close):
		m.browser.ClearSelection()

	case key.Matches(msg, m.keys.Refresh):
		if v.Mode == browser.ModeError || (v.Detail != nil && v.Detail.Error != nil && v.Detail.Error.CanRetry) {
			return m, m.browser.Retry()
		}
		return m, m.browser.Refresh()

	case key.Matches(msg, m.keys.Prefetch):
		return m, m.browser.PrefetchNext()

	case key.Matches(msg, m.keys.ClearAll):
		m.cursor = 0
		m.detail.id = 0
		return m, m.browser.ClearAllCache()

	case key.Matches(msg, m.keys.Dismiss):
		m.browser.DismissNotice()

	case key.Matches(msg, m.keys.ScrollUp):
		m.viewport.SetYOffset(m.viewport.YOffset - max(m.viewport.Height/2, 1))

	case key.Matches(msg, m.keys.ScrollDn):
		m.viewport.SetYOffset(m.viewport.YOffset + max(m.viewport.Height/2, 1))
	}
	return m, nil
}

// afterNavigation prefetches past a page that is already cached, since no
// update message will arrive to trigger it.
func (m Model) afterNavigation(cmd tea.Cmd) (tea.Model, tea.Cmd) {
	if cmd == nil && m.autoPrefetch {
		cmd = m.browser.PrefetchNext()
	}
	return m, cmd
}

func (m *Model) clampCursor(v browser.View) {
	if m.cursor >= len(v.Items) {
		m.cursor = max(len(v.Items)-1, 0)
	}
}

func (m *Model) refreshGate() {
	if m.gate != nil {
		m.gateStatus = m.gate.Status()
	}
}

func (m *Model) resize() {
	w := max(m.width-4, 20)
	h := max(m.height/2-4, 5)
	m.viewport.Width = w
	m.viewport.Height = h
	m.syncDetail(m.browser.View())
}

// syncDetail loads the selected post into the viewport when it changes.
func (m *Model) syncDetail(v browser.View) {
	d := v.Detail
	if d == nil || d.Mode != browser.ModeReady {
		return
	}
	width := m.viewport.Width
	if m.detail.id == d.ID && m.detail.width == width && m.detail.out != "" {
		return
	}

	p := d.Post
	md := richtext.PostMarkdown(p.ID, p.UserID, p.Title, p.Body)
	m.detail.id, m.detail.width = d.ID, width
	m.detail.out = richtext.RenderOrPlain(md, width, m.detailStyle)
	m.viewport.SetContent(m.detail.out)

	if m.recents != nil && m.recorded != p.ID {
		m.recents.Add(recents.Item{ID: p.ID, Title: p.Title, UserID: p.UserID})
		m.recorded = p.ID
	}
}

// View implements tea.Model.
func (m Model) View() string {
	v := m.browser.View()
	width := m.width
	if width <= 0 {
		width = 80
	}

	sections := []string{m.renderHeader(v)}
	sections = append(sections, m.renderList(v, width))
	if v.Notice != "" {
		sections = append(sections, m.styles.Notice.Render("⚠ "+v.Notice)+m.styles.Muted.Render("  (x to dismiss)"))
	}
	if v.Detail != nil {
		sections = append(sections, m.renderDetail(v.Detail, width))
	}
	sections = append(sections, m.renderStatus(width))
	sections = append(sections, m.help.View(m.keys))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader(v browser.View) string {
	sub := fmt.Sprintf("page %d", v.Page)
	if v.TotalCount > 0 {
		sub += fmt.Sprintf(" of %d", api.PageCount(v.TotalCount, m.browser.PageSize()))
	}
	header := m.styles.RenderTitle("Posts", sub)
	if v.IsUpdating {
		header += "  " + m.spinner.View() + m.styles.Muted.Render(" Refreshing...")
	}
	return header + "\n"
}

func (m Model) renderList(v browser.View, width int) string {
	switch v.Mode {
	case browser.ModeLoading:
		return m.spinner.View() + " Loading posts..."

	case browser.ModeError:
		return m.styles.ErrorPanel.Render(m.errorText("Error loading posts", v.Error))

	default:
		if len(v.Items) == 0 {
			return m.styles.Muted.Render("  No posts on this page.")
		}
		rows := make([]string, 0, len(v.Items))
		for i, p := range v.Items {
			title := ansi.Truncate(p.Title, max(width-10, 10), "…")
			line := m.styles.RowID.Render(fmt.Sprintf("#%d", p.ID)) + title
			switch {
			case v.IsPrevious:
				rows = append(rows, m.styles.Previous.Render(line))
			case i == m.cursor:
				rows = append(rows, m.styles.RowCursor.Render("› "+line))
			default:
				rows = append(rows, m.styles.Row.Render("  "+line))
			}
		}
		return strings.Join(rows, "\n")
	}
}

func (m Model) renderDetail(d *browser.DetailView, width int) string {
	var body string
	switch d.Mode {
	case browser.ModeLoading:
		body = m.spinner.View() + fmt.Sprintf(" Loading post %d...", d.ID)
		if title := m.cachedTitle(d.ID); title != "" {
			body = ansi.Truncate(title, max(width-6, 10), "...") + "\n" + body
		}
	case browser.ModeError:
		if d.Error.Kind == browser.ErrorKindNotFound {
			body = m.styles.Warning.Render(fmt.Sprintf("Post %d not found", d.ID))
		} else {
			body = m.styles.Error.Render(m.errorText("Error loading post", d.Error))
		}
	default:
		body = m.viewport.View()
	}
	return m.styles.Detail.Width(max(width-2, 20)).Render(body)
}

// cachedTitle returns the title of post id when the current page is cached.
func (m Model) cachedTitle(id int64) string {
	r, ok := query.Peek[api.Page](m.browser.Client(), browser.PageKey(m.browser.State().Page))
	if !ok || !r.HasData {
		return ""
	}
	if p, found := r.Data.Find(id); found {
		return p.Title
	}
	return ""
}

func (m Model) errorText(title string, e *browser.ErrorView) string {
	if e == nil {
		return title
	}
	text := title + ": " + e.Message
	if e.Attempts > 1 {
		text += fmt.Sprintf(" (after %d attempts)", e.Attempts)
	}
	if e.CanRetry {
		text += "\npress r to retry"
	}
	return text
}

// cacheSummary counts entries by freshness, e.g. "3 cached (2 fresh, 1 stale)".
func cacheSummary(states map[string]query.SnapshotState) string {
	counts := map[query.SnapshotState]int{}
	for _, st := range states {
		counts[st]++
	}
	var detail []string
	for _, st := range []query.SnapshotState{query.StateFresh, query.StateStale, query.StateLoading, query.StateError, query.StateEmpty} {
		if n := counts[st]; n > 0 {
			detail = append(detail, fmt.Sprintf("%d %s", n, st))
		}
	}
	out := fmt.Sprintf("%d cached", len(states))
	if len(detail) > 0 {
		out += " (" + strings.Join(detail, ", ") + ")"
	}
	return out
}

func (m Model) renderStatus(width int) string {
	s := m.browser.Client().Metrics().Summary()
	parts := []string{
		cacheSummary(m.browser.Client().States()),
		fmt.Sprintf("%d fetches", s.Fetches),
		fmt.Sprintf("%.0f%% hits", s.HitRate()*100),
	}
	if s.P50Latency > 0 {
		parts = append(parts, "p50 "+s.P50Latency.Round(time.Millisecond).String())
	}
	if s.Retries > 0 {
		parts = append(parts, fmt.Sprintf("%d retries", s.Retries))
	}
	if m.gate != nil {
		parts = append(parts, "circuit "+m.gateStatus.Breaker)
		if m.gateStatus.RetryAfter > 0 {
			parts = append(parts, "rate limited "+m.gateStatus.RetryAfter.Round(time.Second).String())
		}
	}
	bar := strings.Join(parts, " · ")

	if m.showStats {
		var lines []string
		for _, q := range m.browser.Client().Metrics().QueryStatuses() {
			lines = append(lines, fmt.Sprintf("%-12s %-8s %d observer(s)", q.Key, q.State, q.Observers))
		}
		if len(lines) > 0 {
			bar += "\n" + strings.Join(lines, "\n")
		}
	}
	return m.styles.StatusBar.Width(width).Render(bar)
}

// Run starts the browser full screen and blocks until the user quits or ctx
// is cancelled. Options arriving on reload replace the query defaults.
func Run(ctx context.Context, m Model, reload <-chan query.Options) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithReportFocus(), tea.WithContext(ctx))

	if m.gate != nil {
		// The recovery callback runs inside the breaker; never block it.
		m.gate.OnRecover(func() { go p.Send(ReconnectMsg{}) })
	}
	if reload != nil {
		go func() {
			for opts := range reload {
				p.Send(OptionsReloadedMsg{Options: opts})
			}
		}()
	}

	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

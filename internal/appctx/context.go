// Package appctx provides application context helpers.
package appctx

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/x/term"
	"go.uber.org/zap"

	"github.com/basecamp/postbrowser/internal/api"
	"github.com/basecamp/postbrowser/internal/auth"
	"github.com/basecamp/postbrowser/internal/config"
	"github.com/basecamp/postbrowser/internal/observability"
	"github.com/basecamp/postbrowser/internal/output"
	"github.com/basecamp/postbrowser/internal/query"
	"github.com/basecamp/postbrowser/internal/recents"
	"github.com/basecamp/postbrowser/internal/resilience"
)

type contextKey string

const appKey contextKey = "app"

// App holds the shared application context for all commands.
type App struct {
	Config  *config.Config
	Auth    *auth.Manager
	Gate    *resilience.Gate
	API     *api.Client
	Query   *query.Client
	Recents *recents.Store
	Output  *output.Writer
	Logger  *zap.Logger

	// Observability
	Collector *observability.SessionCollector
	Hooks     *observability.CLIHooks

	// Flags holds the global flag values
	Flags GlobalFlags

	stdout io.Writer
}

// GlobalFlags holds values for global CLI flags.
type GlobalFlags struct {
	// Output format flags
	JSON    bool
	Quiet   bool
	MD      bool // Literal Markdown syntax output
	Styled  bool // Force ANSI styled output (even when piped)
	IDsOnly bool
	Count   bool
	JQ      string

	// Source flags
	BaseURL  string
	PageSize int
	CacheDir string
	Theme    string

	// Behavior flags
	Verbose int // 0=off, 1=operations, 2=operations+requests
	Stats   bool
	LogFile string
}

// Option configures NewApp.
type Option func(*App)

// WithLogger sets the session logger shared by every component.
func WithLogger(l *zap.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.Logger = l
		}
	}
}

// WithStdout redirects command output.
func WithStdout(w io.Writer) Option {
	return func(a *App) { a.stdout = w }
}

// NewApp wires the API stack for cfg: credentials, the resilience gate, the
// HTTP client and the query coordinator.
func NewApp(cfg *config.Config, opts ...Option) *App {
	a := &App{
		Config: cfg,
		Logger: zap.NewNop(),
		stdout: os.Stdout,
	}
	for _, opt := range opts {
		opt(a)
	}

	// Collector always runs; ApplyFlags sets the trace level from -v.
	a.Collector = observability.NewSessionCollector()
	a.Hooks = observability.NewCLIHooks(0, a.Collector, observability.NewTraceWriter())
	a.Hooks.SetLogger(a.Logger)

	a.Auth = auth.NewManager(cfg.BaseURL, auth.NewStore(config.GlobalConfigDir(), a.Logger))

	store := resilience.NewStore(filepath.Join(cfg.CacheDir, "resilience"))
	a.Gate = resilience.NewGate(store, resilience.DefaultConfig(),
		resilience.WithGateLogger(a.Logger),
		resilience.WithTripFunc(api.ShouldTrip),
	)

	a.API = api.NewClient(cfg.BaseURL,
		api.WithGate(a.Gate),
		api.WithTokenSource(a.Auth),
		api.WithHooks(a.Hooks),
	)

	a.Query = query.NewClient(context.Background(),
		query.WithDefaults(cfg.QueryOptions()),
		query.WithLogger(a.Logger),
		query.WithRetryHook(func(key string, attempt int, err error) {
			a.Hooks.OnRetry(context.Background(), observability.RequestInfo{Method: "GET", URL: key}, attempt, err)
		}),
	)

	a.Recents = recents.NewStore(cfg.CacheDir)

	format, err := output.ParseFormat(cfg.Format)
	if err != nil {
		format = output.FormatAuto
	}
	a.Output = output.New(output.Options{
		Format:    format,
		Writer:    a.stdout,
		ThemePath: cfg.Theme,
	})
	return a
}

// Close cancels in-flight fetches and flushes the logger.
func (a *App) Close() {
	if a.Query != nil {
		a.Query.Close()
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
}

// ApplyFlags applies global flag values to the app configuration.
func (a *App) ApplyFlags() {
	format := a.Output.Format()
	switch {
	case a.Flags.IDsOnly:
		format = output.FormatIDs
	case a.Flags.Count:
		format = output.FormatCount
	case a.Flags.Quiet:
		format = output.FormatQuiet
	case a.Flags.JSON:
		format = output.FormatJSON
	case a.Flags.Styled:
		format = output.FormatStyled
	case a.Flags.MD:
		format = output.FormatMarkdown
	}
	a.Output = output.New(output.Options{
		Format:    format,
		Writer:    a.stdout,
		JQ:        a.Flags.JQ,
		ThemePath: a.Config.Theme,
	})

	a.Hooks.SetLevel(a.VerboseLevel())
}

// VerboseLevel combines -v flags, the verbose config key and POSTBROWSER_DEBUG,
// taking the highest.
func (a *App) VerboseLevel() int {
	level := a.Flags.Verbose
	if a.Config != nil && a.Config.Verbose != nil && *a.Config.Verbose > level {
		level = *a.Config.Verbose
	}
	if debug := os.Getenv("POSTBROWSER_DEBUG"); debug != "" {
		// "1", "2", or "true" (full debug)
		if n, err := strconv.Atoi(debug); err == nil {
			level = max(level, n)
		} else if debug == "true" {
			level = 2
		}
	}
	return level
}

// StatsEnabled reports whether --stats or the stats config key is on.
func (a *App) StatsEnabled() bool {
	if a.Flags.Stats {
		return true
	}
	return a.Config != nil && a.Config.Stats != nil && *a.Config.Stats
}

// OK outputs a success response, including session stats when enabled.
func (a *App) OK(data any, opts ...output.ResponseOption) error {
	if a.StatsEnabled() {
		opts = append(opts, output.WithMeta("stats", a.Stats()))
	}
	return a.Output.OK(data, opts...)
}

// Err outputs an error response, printing stats to stderr when enabled.
func (a *App) Err(err error) error {
	if outputErr := a.Output.Err(err); outputErr != nil {
		return outputErr
	}
	if a.StatsEnabled() && !a.isMachineOutput() {
		fmt.Fprintf(os.Stderr, "\nStats: %s\n", a.StatsLine())
	}
	return nil
}

// Stats merges HTTP session counters with coordinator cache metrics.
func (a *App) Stats() map[string]any {
	session := a.Collector.Summary()
	cache := a.Query.Metrics().Summary()
	return map[string]any{
		"requests":    session.TotalRequests,
		"failed":      session.FailedRequests,
		"retries":     session.TotalRetries,
		"avg_latency": session.AverageLatency().Round(time.Millisecond).String(),
		"cached":      a.Query.Len(),
		"fetches":     cache.Fetches,
		"hit_rate":    fmt.Sprintf("%.0f%%", cache.HitRate()*100),
		"p50":         cache.P50Latency.Round(time.Millisecond).String(),
	}
}

// StatsLine renders a compact one-line stats summary.
func (a *App) StatsLine() string {
	session := a.Collector.Summary()
	cache := a.Query.Metrics().Summary()

	var parts []string
	duration := session.EndTime.Sub(session.StartTime)
	if duration < time.Second {
		parts = append(parts, fmt.Sprintf("%dms", duration.Milliseconds()))
	} else {
		parts = append(parts, fmt.Sprintf("%.1fs", duration.Seconds()))
	}
	switch session.TotalRequests {
	case 0:
	case 1:
		parts = append(parts, "1 request")
	default:
		parts = append(parts, fmt.Sprintf("%d requests", session.TotalRequests))
	}
	if cache.Hits > 0 {
		parts = append(parts, fmt.Sprintf("%d cached (%.0f%%)", cache.Hits, cache.HitRate()*100))
	}
	switch session.TotalRetries {
	case 0:
	case 1:
		parts = append(parts, "1 retry")
	default:
		parts = append(parts, fmt.Sprintf("%d retries", session.TotalRetries))
	}
	if session.FailedRequests > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", session.FailedRequests))
	}
	return strings.Join(parts, " | ")
}

// isMachineOutput reports whether the output is meant for programs.
func (a *App) isMachineOutput() bool {
	if a.Flags.Quiet || a.Flags.IDsOnly || a.Flags.Count || a.Flags.JQ != "" {
		return true
	}
	return a.Config != nil && a.Config.Format == "quiet"
}

// IsInteractive reports whether prompts and the TUI can use the terminal.
func (a *App) IsInteractive() bool {
	if a.Flags.JSON || a.Flags.Quiet || a.Flags.IDsOnly || a.Flags.Count || a.Flags.JQ != "" {
		return false
	}
	return term.IsTerminal(os.Stdin.Fd()) && term.IsTerminal(os.Stdout.Fd())
}

// WithApp stores the app in the context.
func WithApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appKey, app)
}

// FromContext retrieves the app from the context.
func FromContext(ctx context.Context) *App {
	app, _ := ctx.Value(appKey).(*App)
	return app
}

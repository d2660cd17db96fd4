package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/basecamp/postbrowser/internal/appctx"
	"github.com/basecamp/postbrowser/internal/browser"
	"github.com/basecamp/postbrowser/internal/config"
	"github.com/basecamp/postbrowser/internal/output"
	"github.com/basecamp/postbrowser/internal/query"
	"github.com/basecamp/postbrowser/internal/tui"
)

// NewBrowseCmd creates the interactive browser command.
func NewBrowseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse posts interactively",
		Long: `Open the full-screen post browser.

Pages are cached and refreshed in the background. The next page is
prefetched while you read, and edits to the config file apply without
restarting.`,
		Args: cobra.NoArgs,
		RunE: RunBrowse,
	}
}

// RunBrowse opens the browser. The root command runs it when no
// subcommand is given.
func RunBrowse(cmd *cobra.Command, args []string) error {
	app, err := requireApp(cmd)
	if err != nil {
		return err
	}
	if !app.IsInteractive() {
		return output.ErrUsageHint("browse needs an interactive terminal", "Run: postbrowser page 1")
	}

	cfg := app.Config
	b := browser.New(app.Query, app.API,
		browser.WithPageSize(cfg.PageSize),
		browser.WithLogger(app.Logger),
	)
	defer b.Close()

	// Trace lines would tear the alternate screen.
	app.Hooks.SetLevel(0)

	m := tui.NewModel(b,
		tui.WithStyles(tui.NewStylesWithTheme(tui.ResolveTheme(cfg.Theme))),
		tui.WithGate(app.Gate),
		tui.WithRecents(app.Recents),
		tui.WithAutoPrefetch(cfg.AutoPrefetch),
		tui.WithModelLogger(app.Logger),
	)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	err = tui.Run(ctx, m, watchQueryOptions(ctx, app))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// watchQueryOptions streams query defaults from config reloads. It returns
// nil when the config directories cannot be watched.
func watchQueryOptions(ctx context.Context, app *appctx.App) <-chan query.Options {
	configs, err := config.Watch(ctx, overridesFrom(app.Flags), app.Logger)
	if err != nil {
		app.Logger.Warn("config reload disabled", zap.Error(err))
		return nil
	}
	out := make(chan query.Options)
	go func() {
		defer close(out)
		for cfg := range configs {
			app.Logger.Info("config reloaded", zap.Duration("fresh_ttl", cfg.FreshTTL))
			select {
			case out <- cfg.QueryOptions():
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

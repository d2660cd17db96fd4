// Package commands implements the CLI commands.
package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/basecamp/postbrowser/internal/api"
	"github.com/basecamp/postbrowser/internal/appctx"
	"github.com/basecamp/postbrowser/internal/browser"
	"github.com/basecamp/postbrowser/internal/config"
	"github.com/basecamp/postbrowser/internal/output"
	"github.com/basecamp/postbrowser/internal/query"
	"github.com/basecamp/postbrowser/internal/urlarg"
)

func requireApp(cmd *cobra.Command) (*appctx.App, error) {
	app := appctx.FromContext(cmd.Context())
	if app == nil {
		return nil, fmt.Errorf("app not initialized")
	}
	return app, nil
}

// loadPage resolves page n through the coordinator so repeated reads within
// a session share the cache the browser uses.
func loadPage(ctx context.Context, app *appctx.App, n int) (api.Page, error) {
	size := app.Config.PageSize
	q := query.Use(app.Query, browser.PageKey(n), func(ctx context.Context) (api.Page, error) {
		return app.API.FetchPage(ctx, n, size)
	}, query.WithRetryIf(api.IsRetryable))
	return q.Load(ctx)
}

func loadPost(ctx context.Context, app *appctx.App, id int64) (api.Post, error) {
	q := query.Use(app.Query, browser.PostKey(id), func(ctx context.Context) (api.Post, error) {
		return app.API.FetchPost(ctx, id)
	}, query.WithRetryIf(api.IsRetryable))
	return q.Load(ctx)
}

func parsePostID(s string) (int64, error) {
	arg := strings.TrimPrefix(strings.TrimSpace(urlarg.ExtractID(s)), "#")
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id < 1 {
		return 0, output.ErrUsage(fmt.Sprintf("Invalid post ID: %q", s))
	}
	return id, nil
}

func overridesFrom(f appctx.GlobalFlags) config.FlagOverrides {
	return config.FlagOverrides{
		BaseURL:  f.BaseURL,
		PageSize: f.PageSize,
		CacheDir: f.CacheDir,
		Theme:    f.Theme,
	}
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/basecamp/postbrowser/internal/appctx"
	"github.com/basecamp/postbrowser/internal/output"
	"github.com/basecamp/postbrowser/internal/tui"
)

const (
	maxWarmPages   = 50
	warmConcurrent = 4
)

// pageRange is an inclusive range of pages given as "A-B" or "N".
type pageRange struct {
	First, Last int
}

var _ pflag.Value = (*pageRange)(nil)

func (r *pageRange) String() string {
	if r.First == r.Last {
		return strconv.Itoa(r.First)
	}
	return fmt.Sprintf("%d-%d", r.First, r.Last)
}

func (r *pageRange) Type() string { return "range" }

func (r *pageRange) Set(s string) error {
	lo, hi, found := strings.Cut(strings.TrimSpace(s), "-")
	first, err := tui.ParsePageNumber(lo)
	if err != nil {
		return err
	}
	last := first
	if found {
		if last, err = tui.ParsePageNumber(hi); err != nil {
			return err
		}
	}
	if last < first {
		return fmt.Errorf("range %q ends before it starts", s)
	}
	if last-first+1 > maxWarmPages {
		return fmt.Errorf("at most %d pages at a time", maxWarmPages)
	}
	r.First, r.Last = first, last
	return nil
}

// Len returns the number of pages in the range.
func (r *pageRange) Len() int { return r.Last - r.First + 1 }

// NewWarmCmd creates the command that prefetches a range of pages.
func NewWarmCmd() *cobra.Command {
	pages := pageRange{First: 1, Last: 3}

	cmd := &cobra.Command{
		Use:   "warm",
		Short: "Prefetch a range of pages",
		Long: `Fetch a range of pages concurrently through the query cache and
report how the cache behaved.`,
		Example: "  postbrowser warm --pages 1-5\n  postbrowser warm --pages 2 --stats",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}
			return runWarm(cmd.Context(), app, pages)
		},
	}

	cmd.Flags().Var(&pages, "pages", "Pages to fetch, as A-B or N")
	return cmd
}

type warmResult struct {
	mu     sync.Mutex
	posts  int
	failed []int
	errs   []error
}

func (r *warmResult) record(page, posts int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.failed = append(r.failed, page)
		r.errs = append(r.errs, err)
		return
	}
	r.posts += posts
}

func runWarm(ctx context.Context, app *appctx.App, pages pageRange) error {
	var res warmResult

	warm := func(ctx context.Context, progress tui.ProgressFunc) error {
		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(warmConcurrent)

		var mu sync.Mutex
		done := 0
		for i := range pages.Len() {
			n := pages.First + i
			g.Go(func() error {
				page, err := loadPage(ctx, app, n)
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if err != nil {
					app.Logger.Debug("warm failed", zap.Int("page", n), zap.Error(err))
				}
				res.record(n, len(page.Items), err)

				if progress != nil {
					mu.Lock()
					done++
					progress(done, pages.Len())
					mu.Unlock()
				}
				return nil
			})
		}
		return g.Wait()
	}

	var err error
	if app.IsInteractive() {
		styles := tui.NewStylesWithTheme(tui.ResolveTheme(app.Config.Theme))
		err = tui.NewSpinner(fmt.Sprintf("Warming pages %s", pages.String()), styles, os.Stderr).Run(ctx, warm)
	} else {
		err = warm(ctx, nil)
	}
	if errors.Is(err, tui.ErrCanceled) || errors.Is(err, context.Canceled) {
		return output.ErrCanceled()
	}
	if err != nil {
		return err
	}
	if len(res.failed) == pages.Len() {
		return res.errs[0]
	}

	cache := app.Query.Metrics().Summary()
	data := map[string]any{
		"first":    pages.First,
		"last":     pages.Last,
		"pages":    pages.Len() - len(res.failed),
		"posts":    res.posts,
		"failed":   len(res.failed),
		"cached":   app.Query.Len(),
		"fetches":  cache.Fetches,
		"hit_rate": cache.HitRate(),
	}

	summary := fmt.Sprintf("Warmed %d of %d pages", pages.Len()-len(res.failed), pages.Len())
	opts := []output.ResponseOption{output.WithEntity("warm"), output.WithSummary(summary)}
	if len(res.failed) > 0 {
		opts = append(opts, output.WithBreadcrumbs(output.Breadcrumb{
			Action:      "retry",
			Cmd:         fmt.Sprintf("postbrowser warm --pages %s", pages.String()),
			Description: "Retry the failed pages",
		}))
	}
	return app.OK(data, opts...)
}

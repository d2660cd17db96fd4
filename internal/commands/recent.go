package commands

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/basecamp/postbrowser/internal/dateparse"
	"github.com/basecamp/postbrowser/internal/output"
	"github.com/basecamp/postbrowser/internal/recents"
	"github.com/basecamp/postbrowser/internal/tui"
)

// NewRecentCmd creates the recently viewed posts command.
func NewRecentCmd() *cobra.Command {
	var (
		limit int
		since string
	)

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List recently viewed posts",
		Long:  "List the posts you opened most recently, newest first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}
			if limit < 0 {
				return output.ErrUsage("--limit must be 0 or greater")
			}

			items := app.Recents.List(0)
			if since != "" {
				cutoff, err := dateparse.Parse(since)
				if err != nil {
					return output.ErrUsageHint(err.Error(), "Try --since yesterday, --since 3d or --since 2026-01-31")
				}
				items = slices.DeleteFunc(items, func(it recents.Item) bool {
					return it.ViewedAt.Before(cutoff)
				})
			}
			if limit > 0 && len(items) > limit {
				items = items[:limit]
			}

			summary := fmt.Sprintf("%d recently viewed", len(items))
			if len(items) == 0 {
				summary = "Nothing viewed yet"
			}
			return app.OK(items,
				output.WithEntity("recent"),
				output.WithSummary(summary),
				output.WithBreadcrumbs(output.Breadcrumb{
					Action:      "browse",
					Cmd:         "postbrowser browse",
					Description: "Browse posts",
				}),
			)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of posts (0 for all)")
	cmd.Flags().StringVar(&since, "since", "", "Only posts viewed since (today, yesterday, monday, 3d, 2026-01-31)")
	cmd.AddCommand(newRecentClearCmd())
	return cmd
}

func newRecentClearCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Forget recently viewed posts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}

			n := len(app.Recents.List(0))
			if !force && n > 0 {
				if !app.IsInteractive() {
					return output.ErrUsageHint("Refusing to clear without confirmation", "Pass --force to clear")
				}
				ok, err := tui.Confirm(fmt.Sprintf("Forget %d recently viewed posts?", n), false)
				if err != nil || !ok {
					return output.ErrCanceled()
				}
			}

			app.Recents.Clear()
			if err := app.Recents.LastError(); err != nil {
				return fmt.Errorf("clearing %s: %w", app.Recents.Path(), err)
			}
			return app.OK(map[string]any{"cleared": n},
				output.WithSummary(fmt.Sprintf("Forgot %d recently viewed posts", n)),
			)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip the confirmation prompt")
	return cmd
}

package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/basecamp/postbrowser/internal/api"
	"github.com/basecamp/postbrowser/internal/output"
	"github.com/basecamp/postbrowser/internal/tui"
	"github.com/basecamp/postbrowser/internal/urlarg"
)

// NewPageCmd creates the command that prints one page of posts.
func NewPageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "page [N]",
		Short: "Print one page of posts",
		Long: `Print page N of the posts list.

Without N, an interactive terminal asks for the page and anything else
gets page 1.`,
		Example: `  postbrowser page 3
  postbrowser page 'https://jsonplaceholder.typicode.com/posts?_page=2' --json
  postbrowser page --ids-only`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}

			n := 1
			switch {
			case len(args) == 1:
				n, err = tui.ParsePageNumber(urlarg.ExtractPage(args[0]))
				if err != nil {
					return output.ErrUsage(err.Error())
				}
			case app.IsInteractive():
				n, err = tui.InputPage(1)
				if err != nil {
					return output.ErrCanceled()
				}
			}

			page, err := loadPage(cmd.Context(), app, n)
			if err != nil {
				return err
			}

			return app.OK(page.Items,
				output.WithEntity("post"),
				output.WithSummary(pageSummary(page)),
				output.WithContext("page", page.Page),
				output.WithContext("total_count", page.TotalCount),
				output.WithBreadcrumbs(pageBreadcrumbs(page)...),
			)
		},
	}
}

func pageTotal(p api.Page) int {
	return api.PageCount(p.TotalCount, p.PageSize)
}

func pageSummary(p api.Page) string {
	total := pageTotal(p)
	switch {
	case len(p.Items) == 0:
		return fmt.Sprintf("Page %d has no posts", p.Page)
	case total == 0:
		return fmt.Sprintf("Page %d", p.Page)
	default:
		return fmt.Sprintf("Page %d of %d (%d posts)", p.Page, total, p.TotalCount)
	}
}

func pageBreadcrumbs(p api.Page) []output.Breadcrumb {
	var crumbs []output.Breadcrumb
	if p.HasMore {
		crumbs = append(crumbs, output.Breadcrumb{
			Action:      "next",
			Cmd:         "postbrowser page " + strconv.Itoa(p.NextPage),
			Description: "Next page",
		})
	}
	if p.Page > 1 {
		crumbs = append(crumbs, output.Breadcrumb{
			Action:      "prev",
			Cmd:         "postbrowser page " + strconv.Itoa(p.Page-1),
			Description: "Previous page",
		})
	}
	if ids := p.IDs(); len(ids) > 0 {
		crumbs = append(crumbs, output.Breadcrumb{
			Action:      "show",
			Cmd:         "postbrowser post " + strconv.FormatInt(ids[0], 10),
			Description: "Show the first post",
		})
	}
	return crumbs
}

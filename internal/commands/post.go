package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/basecamp/postbrowser/internal/completion"
	"github.com/basecamp/postbrowser/internal/output"
	"github.com/basecamp/postbrowser/internal/recents"
)

// NewPostCmd creates the command that shows a single post.
func NewPostCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "post <id>",
		Aliases: []string{"show"},
		Short:   "Show a post",
		Long:    "Show a single post and record it in the recently viewed list.",
		Example: "  postbrowser post 7\n  postbrowser post https://jsonplaceholder.typicode.com/posts/7\n  postbrowser post 7 --jq .data.title",
		Args:    cobra.ExactArgs(1),

		ValidArgsFunction: completion.NewCompleter(nil).PostCompletion(),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}

			id, err := parsePostID(args[0])
			if err != nil {
				return err
			}

			post, err := loadPost(cmd.Context(), app, id)
			if err != nil {
				return err
			}

			app.Recents.Add(recents.Item{
				ID:       post.ID,
				Title:    post.Title,
				UserID:   post.UserID,
				ViewedAt: time.Now(),
			})

			return app.OK(post,
				output.WithEntity("post"),
				output.WithSummary(fmt.Sprintf("Post #%d", post.ID)),
			)
		},
	}
}

package commands

import (
	"github.com/spf13/cobra"

	"github.com/basecamp/postbrowser/internal/output"
)

// CommandInfo describes a CLI command.
type CommandInfo struct {
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Actions     []string `json:"actions,omitempty"`
}

// CommandCategory groups commands by category.
type CommandCategory struct {
	Name     string        `json:"name"`
	Commands []CommandInfo `json:"commands"`
}

func commandCategories() []CommandCategory {
	return []CommandCategory{
		{
			Name: "Browsing",
			Commands: []CommandInfo{
				{Name: "browse", Category: "browse", Description: "Browse posts interactively"},
				{Name: "page", Category: "browse", Description: "Print one page of posts"},
				{Name: "post", Category: "browse", Description: "Show a post"},
				{Name: "recent", Category: "browse", Description: "List recently viewed posts", Actions: []string{"clear"}},
			},
		},
		{
			Name: "Cache",
			Commands: []CommandInfo{
				{Name: "warm", Category: "cache", Description: "Prefetch a range of pages"},
			},
		},
		{
			Name: "Auth & Config",
			Commands: []CommandInfo{
				{Name: "auth", Category: "auth", Description: "Manage authentication", Actions: []string{"login", "logout", "status"}},
				{Name: "config", Category: "auth", Description: "Show configuration", Actions: []string{"show", "path"}},
			},
		},
		{
			Name: "Additional Commands",
			Commands: []CommandInfo{
				{Name: "commands", Category: "additional", Description: "List all commands"},
				{Name: "completion", Category: "additional", Description: "Generate shell completions", Actions: []string{"bash", "zsh", "fish", "powershell"}},
				{Name: "help", Category: "additional", Description: "Show help"},
				{Name: "version", Category: "additional", Description: "Show version"},
			},
		},
	}
}

// CatalogCommandNames returns all command names from the catalog.
func CatalogCommandNames() []string {
	var names []string
	for _, cat := range commandCategories() {
		for _, cmd := range cat.Commands {
			names = append(names, cmd.Name)
		}
	}
	return names
}

// NewCommandsCmd creates the commands listing command.
func NewCommandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "commands",
		Aliases: []string{"cmds"},
		Short:   "List all available commands",
		Long:    "List all available postbrowser commands organized by category.",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}

			return app.OK(commandCategories(),
				output.WithSummary("All available postbrowser commands"),
				output.WithBreadcrumbs(
					output.Breadcrumb{
						Action:      "help",
						Cmd:         "postbrowser --help",
						Description: "View help",
					},
				),
			)
		},
	}
}

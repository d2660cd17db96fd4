package commands

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/basecamp/postbrowser/internal/output"
	"github.com/basecamp/postbrowser/internal/tui"
)

// NewAuthCmd creates the auth command group.
func NewAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage authentication",
		Long: `Store a bearer token for the posts API.

Tokens live in the system keyring, or a private file when no keyring is
available. POSTBROWSER_TOKEN overrides any stored token.`,
	}

	cmd.AddCommand(
		newAuthLoginCmd(),
		newAuthLogoutCmd(),
		newAuthStatusCmd(),
	)
	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save an API token",
		Long:  "Save a bearer token for the configured base URL. Reads --token, a prompt, or stdin.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}

			if token == "" {
				if app.IsInteractive() {
					token, err = tui.InputSecret("API token for " + app.Auth.Origin())
					if err != nil {
						return output.ErrCanceled()
					}
				} else {
					token, err = readToken(cmd.InOrStdin())
					if err != nil {
						return err
					}
				}
			}

			if err := app.Auth.Login(token); err != nil {
				return err
			}
			return app.OK(app.Auth.Status(),
				output.WithSummary("Logged in to "+app.Auth.Origin()),
				output.WithBreadcrumbs(output.Breadcrumb{
					Action:      "status",
					Cmd:         "postbrowser auth status",
					Description: "Check authentication",
				}),
			)
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "Token to store (otherwise prompt or stdin)")
	return cmd
}

func readToken(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("reading token: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}
			if err := app.Auth.Logout(); err != nil {
				return err
			}
			return app.OK(map[string]any{"status": "logged_out", "origin": app.Auth.Origin()},
				output.WithSummary("Logged out of "+app.Auth.Origin()),
			)
		},
	}
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authentication status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}

			status := app.Auth.Status()
			summary := "Anonymous access to " + status.Origin
			if status.Authenticated {
				summary = fmt.Sprintf("Authenticated to %s (%s)", status.Origin, status.Source)
			}

			var crumbs []output.Breadcrumb
			if !status.Authenticated {
				crumbs = append(crumbs, output.Breadcrumb{
					Action:      "login",
					Cmd:         "postbrowser auth login",
					Description: "Save an API token",
				})
			}
			return app.OK(status, output.WithSummary(summary), output.WithBreadcrumbs(crumbs...))
		},
	}
}

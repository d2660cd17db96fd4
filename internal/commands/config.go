package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/basecamp/postbrowser/internal/appctx"
	"github.com/basecamp/postbrowser/internal/config"
	"github.com/basecamp/postbrowser/internal/output"
)

// NewConfigCmd creates the config command group.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show configuration",
		Long:  "Show the effective configuration and where each value came from.",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show effective configuration",
			Long:  "Display the current effective configuration with source information.",
			Args:  cobra.NoArgs,
			RunE:  runConfigShow,
		},
		&cobra.Command{
			Use:   "path",
			Short: "Show config file locations",
			Args:  cobra.NoArgs,
			RunE:  runConfigPath,
		},
	)
	return cmd
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	app, err := requireApp(cmd)
	if err != nil {
		return err
	}

	data := make(map[string]any)
	for _, e := range configEntries(app) {
		data[e.key] = map[string]string{
			"value":  e.value,
			"source": app.Config.Source(e.key),
		}
	}

	return app.OK(data,
		output.WithSummary("Effective configuration"),
		output.WithBreadcrumbs(
			output.Breadcrumb{
				Action:      "path",
				Cmd:         "postbrowser config path",
				Description: "Show config file locations",
			},
		),
	)
}

type configEntry struct {
	key   string
	value string
}

func configEntries(app *appctx.App) []configEntry {
	c := app.Config
	entries := []configEntry{
		{"base_url", c.BaseURL},
		{"page_size", strconv.Itoa(c.PageSize)},
		{"fresh_ttl", c.FreshTTL.String()},
		{"expiry_ttl", c.ExpiryTTL.String()},
		{"max_retries", strconv.Itoa(c.MaxRetries)},
		{"retry_base", c.RetryBase.String()},
		{"retry_max", c.RetryMax.String()},
		{"refetch_on_focus", strconv.FormatBool(c.RefetchOnFocus)},
		{"refetch_on_reconnect", strconv.FormatBool(c.RefetchOnReconnect)},
		{"keep_previous", strconv.FormatBool(c.KeepPrevious)},
		{"auto_prefetch", strconv.FormatBool(c.AutoPrefetch)},
		{"cache_dir", c.CacheDir},
		{"format", c.Format},
	}
	if c.Theme != "" {
		entries = append(entries, configEntry{"theme", c.Theme})
	}
	if c.Stats != nil {
		entries = append(entries, configEntry{"stats", strconv.FormatBool(*c.Stats)})
	}
	if c.Verbose != nil {
		entries = append(entries, configEntry{"verbose", strconv.Itoa(*c.Verbose)})
	}
	return entries
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	app, err := requireApp(cmd)
	if err != nil {
		return err
	}

	files := config.Files()
	loaded := make([]map[string]string, 0, len(files))
	for _, f := range files {
		loaded = append(loaded, map[string]string{"path": f.Path, "source": string(f.Source)})
	}

	return app.OK(map[string]any{
		"global": config.GlobalConfigPath(),
		"loaded": loaded,
	}, output.WithSummary(fmt.Sprintf("%d config file(s) loaded", len(files))))
}

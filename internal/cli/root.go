package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/basecamp/postbrowser/internal/appctx"
	"github.com/basecamp/postbrowser/internal/commands"
	"github.com/basecamp/postbrowser/internal/config"
	"github.com/basecamp/postbrowser/internal/observability"
	"github.com/basecamp/postbrowser/internal/output"
	"github.com/basecamp/postbrowser/internal/version"
)

// NewRootCmd creates the root cobra command. Running it without a
// subcommand opens the browser.
func NewRootCmd() *cobra.Command {
	var flags appctx.GlobalFlags

	cmd := &cobra.Command{
		Use:           "postbrowser",
		Short:         "Browse a paginated posts API from the terminal",
		Long:          "postbrowser pages through a JSON posts API with caching, background refresh and prefetching.",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          commands.RunBrowse,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "version" || cmd.Name() == cobra.ShellCompRequestCmd {
				return nil
			}

			cfg, err := config.Load(config.FlagOverrides{
				BaseURL:  flags.BaseURL,
				PageSize: flags.PageSize,
				CacheDir: flags.CacheDir,
				Theme:    flags.Theme,
			})
			if err != nil {
				return output.ErrUsage(err.Error())
			}

			// The TUI owns the terminal, so it only logs to --log-file.
			logger, err := observability.NewLogger(observability.LoggerOptions{
				Verbose: flags.Verbose > 0 || os.Getenv("POSTBROWSER_DEBUG") != "",
				File:    flags.LogFile,
				Quiet:   isTUICommand(cmd),
			})
			if err != nil {
				return output.ErrUsage(err.Error())
			}

			app := appctx.NewApp(cfg,
				appctx.WithLogger(logger),
				appctx.WithStdout(cmd.OutOrStdout()),
			)
			app.Flags = flags
			app.ApplyFlags()

			cmd.SetContext(appctx.WithApp(cmd.Context(), app))
			return nil
		},
	}

	// Allow flags anywhere in the command line
	cmd.Flags().SetInterspersed(true)
	cmd.PersistentFlags().SetInterspersed(true)

	// Output format flags
	cmd.PersistentFlags().BoolVarP(&flags.JSON, "json", "j", false, "Output as JSON")
	cmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Output data only, no envelope")
	cmd.PersistentFlags().BoolVarP(&flags.MD, "md", "m", false, "Output as Markdown (portable)")
	cmd.PersistentFlags().BoolVar(&flags.MD, "markdown", false, "Output as Markdown (portable)")
	cmd.PersistentFlags().BoolVar(&flags.Styled, "styled", false, "Force styled output (ANSI colors)")
	cmd.PersistentFlags().BoolVar(&flags.IDsOnly, "ids-only", false, "Output only IDs")
	cmd.PersistentFlags().BoolVar(&flags.Count, "count", false, "Output only count")
	cmd.PersistentFlags().StringVar(&flags.JQ, "jq", "", "Filter the JSON envelope with a jq expression")

	// Source flags
	cmd.PersistentFlags().StringVar(&flags.BaseURL, "base-url", "", "Posts API base URL")
	cmd.PersistentFlags().IntVar(&flags.PageSize, "page-size", 0, "Posts per page (1-100)")
	cmd.PersistentFlags().StringVar(&flags.CacheDir, "cache-dir", "", "Cache directory")
	cmd.PersistentFlags().StringVar(&flags.Theme, "theme", "", "Color theme file (TOML)")

	// Behavior flags
	cmd.PersistentFlags().CountVarP(&flags.Verbose, "verbose", "v", "Verbose output (-v for operations, -vv for requests)")
	cmd.PersistentFlags().BoolVar(&flags.Stats, "stats", false, "Show session and cache statistics")
	cmd.PersistentFlags().StringVar(&flags.LogFile, "log-file", "", "Write logs to this file")

	cmd.AddCommand(
		commands.NewBrowseCmd(),
		commands.NewPageCmd(),
		commands.NewPostCmd(),
		commands.NewWarmCmd(),
		commands.NewRecentCmd(),
		commands.NewConfigCmd(),
		commands.NewAuthCmd(),
		commands.NewVersionCmd(),
		commands.NewCommandsCmd(),
	)

	return cmd
}

// isTUICommand reports whether cmd runs the full-screen browser.
func isTUICommand(cmd *cobra.Command) bool {
	return cmd.Name() == "browse" || !cmd.HasParent()
}

// Execute runs the root command and exits with the mapped exit code.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := Run(ctx, os.Args[1:], os.Stdout)
	stop()
	os.Exit(code)
}

// Run executes args and returns the process exit code. Errors are rendered
// to stdout in the selected output format.
func Run(ctx context.Context, args []string, stdout io.Writer) int {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)

	executedCmd, err := cmd.ExecuteContextC(ctx)
	var app *appctx.App
	if executedCmd != nil && executedCmd.Context() != nil {
		app = appctx.FromContext(executedCmd.Context())
	}
	if app != nil {
		defer app.Close()
	}
	if err == nil {
		return output.ExitOK
	}

	err = transformCobraError(err)
	apiErr := output.AsError(err)

	// Prefer app.Err for --stats support
	if app != nil {
		_ = app.Err(err)
		return apiErr.ExitCode()
	}

	// Fallback when setup failed before the app existed
	pf := cmd.PersistentFlags()
	format := output.FormatAuto
	quiet, _ := pf.GetBool("quiet")
	idsOnly, _ := pf.GetBool("ids-only")
	count, _ := pf.GetBool("count")
	styled, _ := pf.GetBool("styled")
	md, _ := pf.GetBool("md")
	jsonFlag, _ := pf.GetBool("json")

	switch {
	case quiet:
		format = output.FormatQuiet
	case idsOnly:
		format = output.FormatIDs
	case count:
		format = output.FormatCount
	case styled:
		format = output.FormatStyled
	case md:
		format = output.FormatMarkdown
	case jsonFlag:
		format = output.FormatJSON
	}

	writer := output.New(output.Options{Format: format, Writer: stdout})
	_ = writer.Err(err)
	return apiErr.ExitCode()
}

var (
	shorthandRe    = regexp.MustCompile(`unknown shorthand flag: '.' in (-\w)`)
	requiredFlagRe = regexp.MustCompile(`required flag\(s\) "([\w-]+)" not set`)
)

// transformCobraError turns cobra's parse errors into usage errors with
// consistent wording.
func transformCobraError(err error) error {
	msg := err.Error()

	switch {
	case strings.HasPrefix(msg, "flag needs an argument: "):
		return output.ErrUsage(strings.TrimPrefix(msg, "flag needs an argument: ") + " requires a value")

	case strings.HasPrefix(msg, "unknown flag: "):
		return output.ErrUsage("Unknown option: " + strings.TrimPrefix(msg, "unknown flag: "))

	case strings.HasPrefix(msg, "unknown shorthand flag: "):
		if m := shorthandRe.FindStringSubmatch(msg); len(m) > 1 {
			return output.ErrUsage("Unknown option: " + m[1])
		}

	case strings.HasPrefix(msg, "unknown command "):
		return output.ErrUsageHint(msg, "Run: postbrowser --help")

	case strings.Contains(msg, "invalid argument"):
		return output.ErrUsage(msg)

	case strings.Contains(msg, "arg(s), received"):
		return output.ErrUsage(msg)

	case strings.HasPrefix(msg, "required flag(s) "):
		if m := requiredFlagRe.FindStringSubmatch(msg); len(m) > 1 {
			return output.ErrUsage("--" + m[1] + " required")
		}
	}

	return err
}

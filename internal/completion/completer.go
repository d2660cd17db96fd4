// Package completion provides shell completion for post arguments.
package completion

import (
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/basecamp/postbrowser/internal/appctx"
	"github.com/basecamp/postbrowser/internal/config"
	"github.com/basecamp/postbrowser/internal/recents"
)

// CacheDirFunc returns the cache directory to use for completion.
// Takes the command to allow checking both context and flags at completion time.
type CacheDirFunc func(cmd *cobra.Command) string

// DefaultCacheDirFunc returns the cache directory by checking, in order, the
// --cache-dir flag, the app config, POSTBROWSER_CACHE_DIR and the default.
//
// During __complete no config files are loaded, so a cache_dir set only in a
// config file is not honored. Completions stay fast that way.
func DefaultCacheDirFunc(cmd *cobra.Command) string {
	if root := cmd.Root(); root != nil {
		if flag := root.PersistentFlags().Lookup("cache-dir"); flag != nil && flag.Changed {
			return flag.Value.String()
		}
	}
	if app := appctx.FromContext(cmd.Context()); app != nil {
		return app.Config.CacheDir
	}
	if v := os.Getenv("POSTBROWSER_CACHE_DIR"); v != "" {
		return v
	}
	return config.Default().CacheDir
}

// Completer provides tab completion from the recently viewed posts file.
// It never touches the network.
type Completer struct {
	getCacheDir CacheDirFunc
}

// NewCompleter creates a new Completer. If getCacheDir is nil,
// DefaultCacheDirFunc is used.
func NewCompleter(getCacheDir CacheDirFunc) *Completer {
	if getCacheDir == nil {
		getCacheDir = DefaultCacheDirFunc
	}
	return &Completer{getCacheDir: getCacheDir}
}

// PostCompletion completes the first argument with recently viewed post IDs,
// newest first, described by title. Input matches an ID prefix or any part
// of the title.
func (c *Completer) PostCompletion() cobra.CompletionFunc {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]cobra.Completion, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}

		needle := strings.ToLower(strings.TrimPrefix(toComplete, "#"))
		var completions []cobra.Completion
		for _, item := range recents.NewStore(c.getCacheDir(cmd)).List(0) {
			id := strconv.FormatInt(item.ID, 10)
			if strings.HasPrefix(id, needle) || strings.Contains(strings.ToLower(item.Title), needle) {
				completions = append(completions, cobra.CompletionWithDesc(id, item.Title))
			}
		}
		return completions, cobra.ShellCompDirectiveNoFileComp
	}
}

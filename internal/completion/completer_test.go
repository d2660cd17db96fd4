package completion

import (
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basecamp/postbrowser/internal/recents"
)

// newTestCompleter creates a Completer for testing with a fixed cache directory.
func newTestCompleter(cacheDir string) *Completer {
	return NewCompleter(func(cmd *cobra.Command) string { return cacheDir })
}

func newTestCmd() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	return cmd
}

func seed(t *testing.T, dir string, items ...recents.Item) {
	t.Helper()
	store := recents.NewStore(dir)
	// Add puts the newest first, so add in reverse.
	for i := len(items) - 1; i >= 0; i-- {
		store.Add(items[i])
	}
	require.NoError(t, store.LastError())
}

func TestPostCompletion(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir,
		recents.Item{ID: 12, Title: "Qui est esse"},
		recents.Item{ID: 1, Title: "Sunt aut facere"},
		recents.Item{ID: 120, Title: "Dolorem eum"},
	)
	fn := newTestCompleter(dir).PostCompletion()

	tests := []struct {
		name       string
		toComplete string
		want       []cobra.Completion
	}{
		{"all, newest first", "", []cobra.Completion{"12\tQui est esse", "1\tSunt aut facere", "120\tDolorem eum"}},
		{"id prefix", "12", []cobra.Completion{"12\tQui est esse", "120\tDolorem eum"}},
		{"hash prefix", "#1", []cobra.Completion{"12\tQui est esse", "1\tSunt aut facere", "120\tDolorem eum"}},
		{"title substring", "EST", []cobra.Completion{"12\tQui est esse"}},
		{"no match", "zzz", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, directive := fn(newTestCmd(), nil, tt.toComplete)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, cobra.ShellCompDirectiveNoFileComp, directive)
		})
	}
}

func TestPostCompletionOnlyFirstArg(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir, recents.Item{ID: 5, Title: "five"})

	got, _ := newTestCompleter(dir).PostCompletion()(newTestCmd(), []string{"5"}, "")
	assert.Empty(t, got)
}

func TestPostCompletionEmptyCache(t *testing.T) {
	got, directive := newTestCompleter(t.TempDir()).PostCompletion()(newTestCmd(), nil, "")
	assert.Empty(t, got)
	assert.Equal(t, cobra.ShellCompDirectiveNoFileComp, directive)
}

func TestDefaultCacheDirFunc(t *testing.T) {
	t.Run("flag wins", func(t *testing.T) {
		t.Setenv("POSTBROWSER_CACHE_DIR", "/from/env")
		root := &cobra.Command{Use: "root"}
		root.PersistentFlags().String("cache-dir", "", "")
		sub := &cobra.Command{Use: "post"}
		root.AddCommand(sub)
		require.NoError(t, root.PersistentFlags().Set("cache-dir", "/from/flag"))
		sub.SetContext(context.Background())

		assert.Equal(t, "/from/flag", DefaultCacheDirFunc(sub))
	})

	t.Run("env", func(t *testing.T) {
		t.Setenv("POSTBROWSER_CACHE_DIR", "/from/env")
		assert.Equal(t, "/from/env", DefaultCacheDirFunc(newTestCmd()))
	})

	t.Run("default", func(t *testing.T) {
		t.Setenv("POSTBROWSER_CACHE_DIR", "")
		t.Setenv("XDG_CACHE_HOME", "/xdg")
		assert.Equal(t, "/xdg/postbrowser", DefaultCacheDirFunc(newTestCmd()))
	})
}

package observability

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerQuietIsNop(t *testing.T) {
	l, err := NewLogger(LoggerOptions{Quiet: true})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(-1))
}

func TestNewLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "postbrowser.log")
	l, err := NewLogger(LoggerOptions{Verbose: true, Quiet: true, File: path})
	require.NoError(t, err)

	l.Debug("fetch started")
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "fetch started")
}

func TestNewLoggerLevel(t *testing.T) {
	l, err := NewLogger(LoggerOptions{})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(-1), "debug disabled without verbose")
	assert.True(t, l.Core().Enabled(0))
}

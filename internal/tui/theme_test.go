package tui

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseColors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    map[string]string
		wantErr bool
	}{
		{
			name: "flat keys",
			input: `accent = "#89b4fa"
foreground = "#cdd6f4"
background = "#1e1e2e"`,
			want: map[string]string{
				"accent":     "#89b4fa",
				"foreground": "#cdd6f4",
				"background": "#1e1e2e",
			},
		},
		{
			name: "comments and colors table",
			input: `# palette
accent = "#89b4fa" # inline

[colors]
color1 = "#f38ba8"
`,
			want: map[string]string{
				"accent": "#89b4fa",
				"color1": "#f38ba8",
			},
		},
		{
			name: "non-colors ignored",
			input: `accent = "blue"
name = "Catppuccin"
opacity = 0.9
color2 = "#abc"`,
			want: map[string]string{"color2": "#abc"},
		},
		{
			name:    "invalid toml",
			input:   `accent = "#89b4fa`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseColors([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsValidHexColor(t *testing.T) {
	valid := []string{"#fff", "#FFF", "#89b4fa", "#000000"}
	invalid := []string{"", "fff", "#ff", "#ffff", "#gggggg", "#89b4fa00"}
	for _, s := range valid {
		assert.True(t, isValidHexColor(s), s)
	}
	for _, s := range invalid {
		assert.False(t, isValidHexColor(s), s)
	}
}

func TestMapColorsToTheme(t *testing.T) {
	theme := mapColorsToTheme(map[string]string{
		"color4": "#0000ff",
		"color1": "#ff0000",
		"color0": "#111111",
	})
	defaults := DefaultTheme()

	assert.Equal(t, "#0000ff", theme.Primary.Dark)
	assert.Equal(t, defaults.Primary.Light, theme.Primary.Light)
	assert.Equal(t, "#ff0000", theme.Error.Dark)
	assert.Equal(t, "#111111", theme.Muted.Dark)
	assert.Equal(t, "#111111", theme.Border.Dark)
	assert.Equal(t, defaults.Success, theme.Success)

	assert.Equal(t, "#abcdef", mapColorsToTheme(map[string]string{"accent": "#abcdef", "color4": "#0000ff"}).Primary.Dark,
		"accent wins over color4")
}

func writeTheme(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "colors.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadThemeFromFile(t *testing.T) {
	theme, err := LoadThemeFromFile(writeTheme(t, `accent = "#123456"`))
	require.NoError(t, err)
	assert.Equal(t, "#123456", theme.Primary.Dark)

	_, err = LoadThemeFromFile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = LoadThemeFromFile(writeTheme(t, `accent = `))
	assert.Error(t, err)
}

func TestResolveTheme(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("NO_COLOR", "")
	os.Unsetenv("NO_COLOR")

	t.Run("no color wins", func(t *testing.T) {
		t.Setenv("NO_COLOR", "1")
		assert.Equal(t, NoColorTheme(), ResolveTheme(writeTheme(t, `accent = "#123456"`)))
	})

	t.Run("explicit path before env", func(t *testing.T) {
		t.Setenv(ThemeEnv, writeTheme(t, `accent = "#222222"`))
		assert.Equal(t, "#111111", ResolveTheme(writeTheme(t, `accent = "#111111"`)).Primary.Dark)
	})

	t.Run("env when no path", func(t *testing.T) {
		t.Setenv(ThemeEnv, writeTheme(t, `accent = "#222222"`))
		assert.Equal(t, "#222222", ResolveTheme("").Primary.Dark)
	})

	t.Run("broken files fall through to default", func(t *testing.T) {
		t.Setenv(ThemeEnv, "/nonexistent/colors.toml")
		assert.Equal(t, DefaultTheme(), ResolveTheme(writeTheme(t, `= nope`)))
	})

	t.Run("user theme", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)
		t.Setenv(ThemeEnv, "")
		dir := filepath.Join(home, ".config", "postbrowser", "theme")
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "colors.toml"), []byte(`color2 = "#00ff00"`), 0o600))
		assert.Equal(t, "#00ff00", ResolveTheme("").Success.Dark)
	})
}

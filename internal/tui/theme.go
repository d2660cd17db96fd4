package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/lipgloss"
)

// ThemeEnv names a colors.toml file that overrides the user theme.
const ThemeEnv = "POSTBROWSER_THEME"

// ResolveTheme loads a theme with the following precedence:
//  1. NO_COLOR env var set: NoColorTheme
//  2. path, when non-empty (the theme config key)
//  3. POSTBROWSER_THEME env var
//  4. ~/.config/postbrowser/theme/colors.toml
//  5. DefaultTheme
//
// A file that fails to load falls through to the next source.
func ResolveTheme(path string) Theme {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return NoColorTheme()
	}

	for _, p := range []string{path, os.Getenv(ThemeEnv)} {
		if p == "" {
			continue
		}
		if theme, err := LoadThemeFromFile(p); err == nil {
			return theme
		}
	}

	if theme, err := LoadUserTheme(); err == nil {
		return theme
	}

	return DefaultTheme()
}

// NoColorTheme returns a theme with empty colors. Lipgloss renders empty
// colors as plain text.
func NoColorTheme() Theme {
	empty := lipgloss.AdaptiveColor{}
	return Theme{
		Primary:    empty,
		Secondary:  empty,
		Success:    empty,
		Warning:    empty,
		Error:      empty,
		Muted:      empty,
		Background: empty,
		Foreground: empty,
		Border:     empty,
	}
}

// LoadUserTheme loads ~/.config/postbrowser/theme/colors.toml.
// The theme directory may be a symlink into another theme system.
func LoadUserTheme() (Theme, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Theme{}, err
	}
	return LoadThemeFromFile(filepath.Join(home, ".config", "postbrowser", "theme", "colors.toml"))
}

// LoadThemeFromFile parses a colors.toml file and returns a Theme.
func LoadThemeFromFile(path string) (Theme, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: Path from trusted config
	if err != nil {
		return Theme{}, err
	}

	colors, err := parseColors(data)
	if err != nil {
		return Theme{}, fmt.Errorf("theme %s: %w", path, err)
	}

	return mapColorsToTheme(colors), nil
}

// parseColors decodes a colors.toml document. Top-level keys and keys of a
// [colors] table are read; values that are not hex colors are ignored.
func parseColors(data []byte) (map[string]string, error) {
	var doc map[string]any
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return nil, err
	}

	result := make(map[string]string)
	collect := func(m map[string]any) {
		for k, v := range m {
			if s, ok := v.(string); ok {
				s = strings.TrimSpace(s)
				if isValidHexColor(s) {
					result[k] = s
				}
			}
		}
	}
	collect(doc)
	if table, ok := doc["colors"].(map[string]any); ok {
		collect(table)
	}
	return result, nil
}

// isValidHexColor reports whether s is #RGB or #RRGGBB.
func isValidHexColor(s string) bool {
	hex, ok := strings.CutPrefix(s, "#")
	if !ok || (len(hex) != 3 && len(hex) != 6) {
		return false
	}
	for _, c := range hex {
		isDigit := c >= '0' && c <= '9'
		isLower := c >= 'a' && c <= 'f'
		isUpper := c >= 'A' && c <= 'F'
		if !isDigit && !isLower && !isUpper {
			return false
		}
	}
	return true
}

// mapColorsToTheme maps terminal palette names to Theme roles:
//
//	accent, color4     → Primary
//	color7             → Secondary
//	color2             → Success
//	color3             → Warning
//	color1             → Error
//	color8, color0     → Muted, Border
//	foreground         → Foreground
//	background         → Background
//
// Terminal themes are usually dark, so only Dark variants are replaced.
func mapColorsToTheme(colors map[string]string) Theme {
	defaults := DefaultTheme()

	dark := func(base lipgloss.AdaptiveColor, keys ...string) lipgloss.AdaptiveColor {
		for _, k := range keys {
			if v, ok := colors[k]; ok {
				return lipgloss.AdaptiveColor{Light: base.Light, Dark: v}
			}
		}
		return base
	}

	return Theme{
		Primary:    dark(defaults.Primary, "accent", "color4"),
		Secondary:  dark(defaults.Secondary, "color7"),
		Success:    dark(defaults.Success, "color2"),
		Warning:    dark(defaults.Warning, "color3"),
		Error:      dark(defaults.Error, "color1"),
		Muted:      dark(defaults.Muted, "color8", "color0"),
		Background: dark(defaults.Background, "background"),
		Foreground: dark(defaults.Foreground, "foreground"),
		Border:     dark(defaults.Border, "color8", "color0"),
	}
}

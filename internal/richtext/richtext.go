// Package richtext renders post bodies for the terminal.
// It uses glamour for Markdown rendering.
package richtext

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/glamour"
)

// DefaultWidth is the word-wrap width when none is given.
const DefaultWidth = 80

// Style selects a glamour style.
type Style string

const (
	StyleAuto  Style = "auto"
	StyleDark  Style = "dark"
	StyleLight Style = "light"
	StyleNoTTY Style = "notty" // no colors or escape sequences
)

// ParseStyle maps a config value to a Style. Unknown values give StyleAuto.
func ParseStyle(s string) Style {
	switch Style(strings.ToLower(strings.TrimSpace(s))) {
	case StyleDark:
		return StyleDark
	case StyleLight:
		return StyleLight
	case StyleNoTTY, "none", "plain":
		return StyleNoTTY
	default:
		return StyleAuto
	}
}

// PostMarkdown builds the Markdown document for a post: the title as a
// heading, a byline, then the body with its hard line breaks kept.
func PostMarkdown(id, userID int64, title, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", EscapeInline(title))
	fmt.Fprintf(&b, "*Post %d by user %d*\n\n", id, userID)
	lines := strings.Split(strings.TrimSpace(body), "\n")
	for i, line := range lines {
		b.WriteString(EscapeInline(strings.TrimSpace(line)))
		if i < len(lines)-1 {
			// Two trailing spaces force a Markdown line break.
			b.WriteString("  \n")
		}
	}
	b.WriteString("\n")
	return b.String()
}

var inlineSpecial = regexp.MustCompile("([\\\\`*_\\[\\]#<>|])")

// EscapeInline escapes characters that would otherwise be read as Markdown.
func EscapeInline(s string) string {
	return inlineSpecial.ReplaceAllString(s, `\$1`)
}

// Render renders Markdown for terminal display.
func Render(md string, width int, style Style) (string, error) {
	if md == "" {
		return "", nil
	}
	if width <= 0 {
		width = DefaultWidth
	}

	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if style == StyleAuto || style == "" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(string(style)))
	}

	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", err
	}

	out, err := r.Render(md)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(out), nil
}

// RenderMarkdown renders Markdown with the default width and automatic style.
func RenderMarkdown(md string) (string, error) {
	return Render(md, DefaultWidth, StyleAuto)
}

// RenderOrPlain renders Markdown, falling back to the raw text when
// rendering fails.
func RenderOrPlain(md string, width int, style Style) string {
	out, err := Render(md, width, style)
	if err != nil {
		return strings.TrimSpace(md)
	}
	return out
}

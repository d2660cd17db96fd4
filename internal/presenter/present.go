package presenter

import (
	"io"

	"github.com/basecamp/postbrowser/internal/tui"
)

// RenderMode controls the output format.
type RenderMode int

const (
	ModeStyled   RenderMode = iota // ANSI styled terminal output
	ModeMarkdown                   // Literal Markdown syntax
)

// Present renders data with the schema named by entity. It returns false
// when no schema matches or the data shape is not one it handles, in which
// case the caller falls back to generic rendering.
func Present(w io.Writer, data any, entity string, mode RenderMode, theme tui.Theme, styled bool) bool {
	schema := LookupByName(entity)
	if schema == nil {
		return false
	}
	locale := DetectLocale()

	switch d := data.(type) {
	case map[string]any:
		if mode == ModeMarkdown {
			return RenderDetailMarkdown(w, schema, d, locale) == nil
		}
		return RenderDetail(w, schema, d, NewStyles(theme, styled), locale) == nil
	case []map[string]any:
		if len(d) == 0 {
			return false
		}
		if mode == ModeMarkdown {
			return RenderListMarkdown(w, schema, d, locale) == nil
		}
		return RenderList(w, schema, d, NewStyles(theme, styled), locale) == nil
	}
	return false
}

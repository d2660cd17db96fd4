package output

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/x/ansi"
	"github.com/charmbracelet/x/term"

	"github.com/basecamp/postbrowser/internal/presenter"
	"github.com/basecamp/postbrowser/internal/tui"
)

const (
	// cellPadding is the space the hidden table border adds per column.
	cellPadding = 2
	// maxCellWidth caps a column in a styled table.
	maxCellWidth = 40
)

// Renderer writes styled terminal output.
type Renderer struct {
	width  int
	styled bool
	theme  tui.Theme
	locale presenter.Locale

	Summary lipgloss.Style
	Heading lipgloss.Style
	Muted   lipgloss.Style
	Data    lipgloss.Style
	Error   lipgloss.Style
	Hint    lipgloss.Style
}

// NewRenderer creates a renderer using the resolved theme. Output is styled
// when w is a TTY or forceStyled is set.
func NewRenderer(w io.Writer, forceStyled bool) *Renderer {
	return NewRendererWithTheme(w, forceStyled, tui.ResolveTheme(""))
}

// NewRendererWithTheme creates a renderer with a specific theme.
func NewRendererWithTheme(w io.Writer, forceStyled bool, theme tui.Theme) *Renderer {
	width, isTTY := terminalInfo(w)
	r := &Renderer{
		width:  width,
		styled: isTTY || forceStyled,
		theme:  theme,
		locale: presenter.DetectLocale(),
	}

	// The global profile decides whether lipgloss emits color at all.
	if r.styled {
		lipgloss.SetColorProfile(2) // TrueColor
	} else {
		lipgloss.SetColorProfile(0) // Ascii
	}

	style := func(hex string) lipgloss.Style {
		if !r.styled {
			return lipgloss.NewStyle()
		}
		return lipgloss.NewStyle().Foreground(lipgloss.Color(hex))
	}
	// Piped output has no background to detect, so the dark variants apply.
	r.Summary = style(theme.Primary.Dark).Bold(r.styled)
	r.Heading = style(theme.Foreground.Dark).Bold(r.styled)
	r.Muted = style(theme.Muted.Dark)
	r.Data = style(theme.Foreground.Dark)
	r.Error = style(theme.Error.Dark).Bold(r.styled)
	r.Hint = style(theme.Muted.Dark).Italic(r.styled)
	return r
}

// terminalInfo returns the width of w, 80 when unknown, and whether w is a TTY.
func terminalInfo(w io.Writer) (width int, isTTY bool) {
	width = 80
	f, ok := w.(*os.File)
	if !ok {
		return width, false
	}
	if cols, _, err := term.GetSize(f.Fd()); err == nil && cols >= 40 {
		width = cols
	}
	if fi, err := f.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
		isTTY = true
	}
	return width, isTTY
}

// RenderResponse renders a success response. Entities with a presenter
// schema render through it; anything else uses the generic block layout.
func (r *Renderer) RenderResponse(w io.Writer, resp *Response) error {
	var b strings.Builder

	if resp.Summary != "" {
		b.WriteString(r.Summary.Render(resp.Summary) + "\n\n")
	}

	data := NormalizeData(resp.Data)
	if !presenter.Present(&b, data, resp.Entity, presenter.ModeStyled, r.theme, r.styled) {
		for i, blk := range layout(data) {
			if i > 0 {
				b.WriteString("\n")
			}
			r.drawBlock(&b, blk)
		}
	}

	if len(resp.Breadcrumbs) > 0 {
		b.WriteString("\n" + r.Muted.Render("Next:") + "\n")
		for _, bc := range resp.Breadcrumbs {
			line := "  " + bc.Cmd
			if bc.Description != "" {
				line += "  # " + bc.Description
			}
			b.WriteString(r.Muted.Render(line) + "\n")
		}
	}

	if parts := statsParts(extractStats(resp.Meta)); len(parts) > 0 {
		b.WriteString("\n" + r.Muted.Render("Stats: "+strings.Join(parts, " | ")) + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderError renders an error response.
func (r *Renderer) RenderError(w io.Writer, resp *ErrorResponse) error {
	out := r.Error.Render("Error: "+resp.Error) + "\n"
	if resp.Hint != "" {
		out += r.Hint.Render("Hint: "+resp.Hint) + "\n"
	}
	_, err := io.WriteString(w, out)
	return err
}

func (r *Renderer) drawBlock(b *strings.Builder, blk block) {
	if blk.title != "" {
		b.WriteString(r.Heading.Render(blk.title) + "\n")
	}
	switch {
	case blk.note != "":
		b.WriteString(r.Muted.Render("("+blk.note+")") + "\n")
	case blk.grid != nil:
		r.drawGrid(b, blk.grid)
	case len(blk.items) > 0:
		for _, item := range blk.items {
			b.WriteString(r.Data.Render("• "+item) + "\n")
		}
	}

	width := 0
	for _, p := range blk.pairs {
		width = max(width, len(p.label))
	}
	for _, p := range blk.pairs {
		value := formatValue(p.key, p.value, r.locale)
		label := r.Muted.Render(fmt.Sprintf("%-*s: ", width, p.label))
		if quietFields[p.key] {
			b.WriteString(label + r.Muted.Render(value) + "\n")
		} else {
			b.WriteString(label + r.Data.Render(value) + "\n")
		}
	}
}

func (r *Renderer) drawGrid(b *strings.Builder, g *grid) {
	keys, headers := r.fitColumns(g)
	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return r.Heading
			case col < len(keys) && quietFields[keys[col]]:
				return r.Muted
			default:
				return r.Data
			}
		})
	for _, row := range g.rows {
		cells := make([]string, len(keys))
		for i, k := range keys {
			cells[i] = r.cell(k, row[k])
		}
		t.Row(cells...)
	}
	b.WriteString(t.String() + "\n")
}

func (r *Renderer) cell(key string, val any) string {
	return ansi.Truncate(formatValue(key, val, r.locale), maxCellWidth, "...")
}

// fitColumns drops the lowest-ranked columns until the table fits the
// terminal. The first column always stays.
func (r *Renderer) fitColumns(g *grid) ([]string, []string) {
	widths := make([]int, len(g.keys))
	for i, k := range g.keys {
		widths[i] = lipgloss.Width(g.headers[i])
		for _, row := range g.rows {
			widths[i] = max(widths[i], lipgloss.Width(r.cell(k, row[k])))
		}
	}

	n := len(g.keys)
	for n > 1 {
		total := 0
		for _, w := range widths[:n] {
			total += w + cellPadding
		}
		if total <= r.width {
			break
		}
		n--
	}
	return g.keys[:n], g.headers[:n]
}

// MarkdownRenderer writes literal Markdown, for pasting or piping.
type MarkdownRenderer struct {
	locale presenter.Locale
}

// NewMarkdownRenderer creates a Markdown renderer.
func NewMarkdownRenderer(io.Writer) *MarkdownRenderer {
	return &MarkdownRenderer{locale: presenter.DetectLocale()}
}

// RenderResponse renders a success response as Markdown.
func (r *MarkdownRenderer) RenderResponse(w io.Writer, resp *Response) error {
	var b strings.Builder

	if resp.Summary != "" {
		b.WriteString("## " + resp.Summary + "\n\n")
	}

	data := NormalizeData(resp.Data)
	if !presenter.Present(&b, data, resp.Entity, presenter.ModeMarkdown, tui.Theme{}, false) {
		for i, blk := range layout(data) {
			if i > 0 {
				b.WriteString("\n")
			}
			r.drawBlock(&b, blk)
		}
	}

	if len(resp.Breadcrumbs) > 0 {
		b.WriteString("\n### Next\n\n")
		for _, bc := range resp.Breadcrumbs {
			line := "- `" + bc.Cmd + "`"
			if bc.Description != "" {
				line += ": " + bc.Description
			}
			b.WriteString(line + "\n")
		}
	}

	if parts := statsParts(extractStats(resp.Meta)); len(parts) > 0 {
		b.WriteString("\n*Stats: " + strings.Join(parts, " | ") + "*\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderError renders an error response as Markdown.
func (r *MarkdownRenderer) RenderError(w io.Writer, resp *ErrorResponse) error {
	out := "**Error:** " + resp.Error + "\n"
	if resp.Hint != "" {
		out += "\n*Hint: " + resp.Hint + "*\n"
	}
	_, err := io.WriteString(w, out)
	return err
}

func (r *MarkdownRenderer) drawBlock(b *strings.Builder, blk block) {
	if blk.title != "" {
		b.WriteString("### " + blk.title + "\n\n")
	}
	switch {
	case blk.note != "":
		b.WriteString("*" + strings.ToUpper(blk.note[:1]) + blk.note[1:] + "*\n")
	case blk.grid != nil:
		g := blk.grid
		b.WriteString("| " + strings.Join(g.headers, " | ") + " |\n")
		b.WriteString("|" + strings.Repeat(" --- |", len(g.headers)) + "\n")
		for _, row := range g.rows {
			cells := make([]string, len(g.keys))
			for i, k := range g.keys {
				cells[i] = strings.ReplaceAll(formatValue(k, row[k], r.locale), "|", `\|`)
			}
			b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
		}
	case len(blk.items) > 0:
		for _, item := range blk.items {
			b.WriteString("- " + item + "\n")
		}
	}
	for _, p := range blk.pairs {
		b.WriteString("- **" + p.label + ":** " + formatValue(p.key, p.value, r.locale) + "\n")
	}
}

// statsParts formats stats as "key value" pairs in key order.
func statsParts(stats map[string]any) []string {
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, strings.ReplaceAll(k, "_", " ")+" "+formatCell(stats[k]))
	}
	return parts
}

// extractStats pulls the --stats payload out of response meta.
func extractStats(meta map[string]any) map[string]any {
	stats, _ := meta["stats"].(map[string]any)
	return stats
}

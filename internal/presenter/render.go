package presenter

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/basecamp/postbrowser/internal/tui"
)

// Styles holds the lipgloss styles used by the presenter.
type Styles struct {
	Primary lipgloss.Style
	Normal  lipgloss.Style
	Muted   lipgloss.Style
	Subtle  lipgloss.Style
	Warning lipgloss.Style
	Heading lipgloss.Style
	Label   lipgloss.Style
	Body    lipgloss.Style
}

// NewStyles creates presenter styles from a theme. Unstyled output uses
// empty styles so nothing but text is written.
func NewStyles(theme tui.Theme, styled bool) Styles {
	if !styled {
		plain := lipgloss.NewStyle()
		return Styles{plain, plain, plain, plain, plain, plain, plain, plain}
	}
	fg := func(c lipgloss.AdaptiveColor) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(lipgloss.Color(c.Dark))
	}
	return Styles{
		Primary: fg(theme.Primary).Bold(true),
		Normal:  fg(theme.Foreground),
		Muted:   fg(theme.Muted),
		Subtle:  fg(theme.Border),
		Warning: fg(theme.Warning),
		Heading: fg(theme.Muted).Bold(true),
		Label:   fg(theme.Muted),
		Body:    fg(theme.Foreground),
	}
}

func (s Styles) emphasis(name string) lipgloss.Style {
	switch name {
	case "primary":
		return s.Primary
	case "muted":
		return s.Muted
	case "warning":
		return s.Warning
	default:
		return s.Normal
	}
}

// RenderDetail renders one entity using its detail view.
func RenderDetail(w io.Writer, schema *EntitySchema, data map[string]any, styles Styles, locale Locale) error {
	var b strings.Builder

	if headline := RenderHeadline(schema, data); headline != "" {
		b.WriteString(styles.Primary.Render(headline))
		b.WriteString("\n")
	}

	for _, section := range detailSections(schema) {
		if section.Heading != "" {
			b.WriteString("\n")
			b.WriteString(styles.Heading.Render(section.Heading))
			b.WriteString("\n")
		}
		fields := visibleFields(schema, section.Fields, data)
		width := labelWidth(schema, fields)
		for _, name := range fields {
			spec := schema.Fields[name]
			formatted := FormatField(spec, data[name], locale)
			if spec.Role == "body" {
				style := styles.Body
				if spec.Emphasis != "" {
					style = styles.emphasis(spec.Emphasis)
				}
				b.WriteString("\n")
				b.WriteString(style.Render(indent(formatted)))
				b.WriteString("\n")
				continue
			}
			b.WriteString(styles.Label.Render(fmt.Sprintf("  %-*s  ", width, fieldLabel(name))))
			b.WriteString(styles.emphasis(spec.Emphasis).Render(formatted))
			b.WriteString("\n")
		}
	}

	if actions := visibleActions(schema, data); len(actions) > 0 {
		b.WriteString("\n")
		b.WriteString(styles.Muted.Render("─────"))
		b.WriteString("\n")
		b.WriteString(styles.Subtle.Render("Next:"))
		b.WriteString("\n")
		cmds := make([]string, len(actions))
		maxCmd := 0
		for i, a := range actions {
			cmds[i] = RenderTemplate(a.Cmd, data)
			maxCmd = max(maxCmd, len(cmds[i]))
		}
		for i, a := range actions {
			b.WriteString(styles.Subtle.Render(fmt.Sprintf("  %-*s  %s", maxCmd, cmds[i], a.Label)))
			b.WriteString("\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderList renders entities as compact rows using the list view.
func RenderList(w io.Writer, schema *EntitySchema, data []map[string]any, styles Styles, locale Locale) error {
	columns := listColumns(schema)
	if len(columns) == 0 || len(data) == 0 {
		return nil
	}

	var b strings.Builder
	for _, item := range data {
		parts := make([]string, 0, len(columns))
		for _, col := range columns {
			spec := schema.Fields[col]
			parts = append(parts, styles.emphasis(spec.Emphasis).Render(FormatField(spec, item[col], locale)))
		}
		b.WriteString(strings.Join(parts, "  "))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderDetailMarkdown renders one entity as Markdown.
func RenderDetailMarkdown(w io.Writer, schema *EntitySchema, data map[string]any, locale Locale) error {
	var b strings.Builder

	if headline := RenderHeadline(schema, data); headline != "" {
		b.WriteString("**" + headline + "**\n")
	}

	for _, section := range detailSections(schema) {
		if section.Heading != "" {
			b.WriteString("\n#### " + section.Heading + "\n\n")
		}
		for _, name := range visibleFields(schema, section.Fields, data) {
			spec := schema.Fields[name]
			formatted := FormatField(spec, data[name], locale)
			if spec.Role == "body" {
				b.WriteString("\n" + formatted + "\n")
				continue
			}
			b.WriteString("- **" + fieldLabel(name) + ":** " + formatted + "\n")
		}
	}

	if actions := visibleActions(schema, data); len(actions) > 0 {
		b.WriteString("\n#### Next\n\n")
		for _, a := range actions {
			b.WriteString("- `" + RenderTemplate(a.Cmd, data) + "`: " + a.Label + "\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderListMarkdown renders entities as a Markdown table.
func RenderListMarkdown(w io.Writer, schema *EntitySchema, data []map[string]any, locale Locale) error {
	columns := listColumns(schema)
	if len(columns) == 0 || len(data) == 0 {
		return nil
	}

	var b strings.Builder
	headers := make([]string, len(columns))
	dividers := make([]string, len(columns))
	for i, col := range columns {
		headers[i] = fieldLabel(col)
		dividers[i] = "---"
	}
	b.WriteString("| " + strings.Join(headers, " | ") + " |\n")
	b.WriteString("| " + strings.Join(dividers, " | ") + " |\n")

	for _, item := range data {
		cells := make([]string, len(columns))
		for i, col := range columns {
			cells[i] = strings.ReplaceAll(FormatField(schema.Fields[col], item[col], locale), "|", "\\|")
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// detailSections falls back to a single section of every non-title field,
// detail roles first, when the schema declares none.
func detailSections(schema *EntitySchema) []DetailSection {
	if len(schema.Views.Detail.Sections) > 0 {
		return schema.Views.Detail.Sections
	}
	names := make([]string, 0, len(schema.Fields))
	for name := range schema.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var fields []string
	for _, role := range []string{"detail", "meta", "body"} {
		for _, name := range names {
			if schema.Fields[name].Role == role {
				fields = append(fields, name)
			}
		}
	}
	return []DetailSection{{Fields: fields}}
}

func visibleFields(schema *EntitySchema, names []string, data map[string]any) []string {
	var out []string
	for _, name := range names {
		spec := schema.Fields[name]
		val := data[name]
		if spec.Role == "title" {
			continue
		}
		if spec.Collapse && isEmpty(val) {
			continue
		}
		if val == nil {
			continue
		}
		out = append(out, name)
	}
	return out
}

func visibleActions(schema *EntitySchema, data map[string]any) []Affordance {
	var out []Affordance
	for _, a := range schema.Actions {
		if EvalCondition(a.When, data) {
			out = append(out, a)
		}
	}
	return out
}

func listColumns(schema *EntitySchema) []string {
	if cols := schema.Views.List.Columns; len(cols) > 0 {
		return cols
	}
	var cols []string
	for name, spec := range schema.Fields {
		if spec.Role == "title" || spec.Role == "detail" {
			cols = append(cols, name)
		}
	}
	sort.Strings(cols)
	return cols
}

func labelWidth(schema *EntitySchema, fields []string) int {
	width := 0
	for _, name := range fields {
		if schema.Fields[name].Role != "body" {
			width = max(width, len(fieldLabel(name)))
		}
	}
	return width
}

// fieldLabel turns "viewed_at" into "Viewed" and "userId" into "User".
func fieldLabel(key string) string {
	key = strings.TrimSuffix(key, "Id")
	key = strings.ReplaceAll(key, "_", " ")
	key = strings.TrimSuffix(key, " id")
	key = strings.TrimSuffix(key, " at")
	words := strings.Fields(key)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = "  " + line
	}
	return strings.Join(lines, "\n")
}

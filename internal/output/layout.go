package output

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/basecamp/postbrowser/internal/presenter"
)

// block is one section of generic output. Payloads without a presenter
// schema (config, auth, the command catalog) are laid out as blocks and then
// drawn by the styled or Markdown renderer.
type block struct {
	title string
	note  string // shown instead of content, e.g. "no results"
	pairs []pair
	grid  *grid
	items []string
}

type pair struct {
	key   string
	label string
	value any
}

type grid struct {
	keys    []string
	headers []string
	rows    []map[string]any
}

// fieldRank orders fields and columns; unranked keys sort after these, by name.
var fieldRank = map[string]int{
	"id":          1,
	"name":        2,
	"title":       2,
	"key":         2,
	"value":       3,
	"userId":      4,
	"user_id":     4,
	"description": 5,
	"status":      5,
	"page":        5,
	"source":      6,
	"actions":     7,
	"body":        8,
	"viewed_at":   9,
	"fetched_at":  9,
	"since":       9,
}

// quietFields are rendered muted.
var quietFields = map[string]bool{
	"id":         true,
	"userId":     true,
	"user_id":    true,
	"source":     true,
	"viewed_at":  true,
	"fetched_at": true,
	"since":      true,
}

// Post bodies do not fit in a table row.
var wideFields = map[string]bool{
	"body": true,
}

func rankOf(key string) int {
	if r, ok := fieldRank[key]; ok {
		return r
	}
	return 50
}

func sortKeys(keys []string) {
	slices.SortFunc(keys, func(a, b string) int {
		return cmp.Or(cmp.Compare(rankOf(a), rankOf(b)), strings.Compare(a, b))
	})
}

// layout turns response data into blocks.
func layout(data any) []block {
	switch d := plain(data).(type) {
	case nil:
		return []block{{note: "no data"}}
	case map[string]any:
		return layoutObject("", d)
	case []map[string]any:
		return layoutRows("", d)
	case []any:
		if rows, ok := asRows(d); ok {
			return layoutRows("", rows)
		}
		items := make([]string, len(d))
		for i, v := range d {
			items[i] = formatCell(v)
		}
		return []block{{items: items}}
	default:
		return []block{{items: []string{formatCell(d)}}}
	}
}

// plain round-trips data through JSON so nested typed values become maps,
// slices and float64s.
func plain(data any) any {
	b, err := json.Marshal(data)
	if err != nil {
		return data
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return data
	}
	return v
}

// layoutObject lists scalar fields as label/value pairs. Nested lists of
// objects become tables of their own, and nested objects become sub-blocks.
// An object whose every value is a flat object ("base_url" -> {value,
// source}) reads best as a single keyed table.
func layoutObject(title string, obj map[string]any) []block {
	if len(obj) == 0 {
		return []block{{title: title, note: "no data"}}
	}
	if rows, ok := keyedRows(obj); ok {
		return []block{{title: title, grid: newGrid(rows, "key")}}
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sortKeys(keys)

	head := block{title: title}
	var nested []block
	for _, k := range keys {
		switch v := obj[k].(type) {
		case map[string]any:
			nested = append(nested, layoutObject(formatHeader(k), v)...)
		case []map[string]any:
			nested = append(nested, layoutRows(formatHeader(k), v)...)
		case []any:
			if rows, ok := asRows(v); ok && len(v) > 0 {
				nested = append(nested, layoutRows(formatHeader(k), rows)...)
				continue
			}
			head.pairs = append(head.pairs, pair{key: k, label: formatHeader(k), value: v})
		default:
			head.pairs = append(head.pairs, pair{key: k, label: formatHeader(k), value: v})
		}
	}
	if len(head.pairs) == 0 && title == "" {
		return nested
	}
	return append([]block{head}, nested...)
}

// layoutRows draws rows as a table. Rows that group a nested list (command
// categories) become one titled table per row.
func layoutRows(title string, rows []map[string]any) []block {
	if len(rows) == 0 {
		return []block{{title: title, note: "no results"}}
	}
	if key := groupKey(rows[0]); key != "" {
		var out []block
		for _, row := range rows {
			inner, _ := asRows(asAnySlice(row[key]))
			out = append(out, layoutRows(rowTitle(row), inner)...)
		}
		return out
	}
	return []block{{title: title, grid: newGrid(rows, "")}}
}

func newGrid(rows []map[string]any, lead string) *grid {
	seen := map[string]bool{}
	var keys []string
	for _, row := range rows {
		for k, v := range row {
			if seen[k] || wideFields[k] {
				continue
			}
			switch v.(type) {
			case map[string]any, []map[string]any:
				continue
			}
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sortKeys(keys)
	if lead != "" {
		keys = append([]string{lead}, slices.DeleteFunc(keys, func(k string) bool { return k == lead })...)
	}

	g := &grid{keys: keys, rows: rows}
	for _, k := range keys {
		g.headers = append(g.headers, formatHeader(k))
	}
	return g
}

// keyedRows reports whether every value of obj is a flat object, and if so
// returns one row per entry with the entry's key under "key".
func keyedRows(obj map[string]any) ([]map[string]any, bool) {
	keys := make([]string, 0, len(obj))
	for k, v := range obj {
		inner, ok := v.(map[string]any)
		if !ok || len(inner) == 0 {
			return nil, false
		}
		for _, iv := range inner {
			switch iv.(type) {
			case map[string]any, []map[string]any, []any:
				return nil, false
			}
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)

	rows := make([]map[string]any, len(keys))
	for i, k := range keys {
		row := map[string]any{"key": k}
		for ik, iv := range obj[k].(map[string]any) {
			row[ik] = iv
		}
		rows[i] = row
	}
	return rows, true
}

// groupKey returns the field of row holding a nested list of objects.
func groupKey(row map[string]any) string {
	for k, v := range row {
		if rows, ok := asRows(asAnySlice(v)); ok && len(rows) > 0 {
			return k
		}
	}
	return ""
}

func rowTitle(row map[string]any) string {
	for _, k := range []string{"name", "title", "id"} {
		if v, ok := row[k]; ok {
			return formatCell(v)
		}
	}
	return ""
}

func asAnySlice(v any) []any {
	switch s := v.(type) {
	case []any:
		return s
	case []map[string]any:
		out := make([]any, len(s))
		for i, m := range s {
			out[i] = m
		}
		return out
	}
	return nil
}

func asRows(items []any) ([]map[string]any, bool) {
	if items == nil {
		return nil, false
	}
	rows := make([]map[string]any, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, false
		}
		rows = append(rows, m)
	}
	return rows, true
}

// formatHeader turns a field key into a column label: "viewed_at" becomes
// "Viewed", "user_id" becomes "User Id".
func formatHeader(key string) string {
	key = strings.TrimSuffix(strings.ReplaceAll(key, "_", " "), " at")
	words := strings.Fields(key)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// formatCell renders a scalar or a list of scalars as text.
func formatCell(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "yes"
		}
		return "no"
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%.2f", v)
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				parts = append(parts, rowTitle(m))
				continue
			}
			parts = append(parts, formatCell(item))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprintf("%v", v)
	}
}

// isTimeField reports whether key holds a timestamp.
func isTimeField(key string) bool {
	return strings.HasSuffix(key, "_at") || key == "since"
}

// formatValue renders a field value, showing timestamps relative to now.
func formatValue(key string, val any, locale presenter.Locale) string {
	if isTimeField(key) {
		if s, ok := val.(string); ok && s != "" {
			return presenter.FormatField(presenter.FieldSpec{Format: "relative_time"}, s, locale)
		}
	}
	return formatCell(val)
}

package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"
)

type benchPost struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"userId"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

func benchPage(n int) []benchPost {
	posts := make([]benchPost, n)
	for i := range posts {
		posts[i] = benchPost{
			ID:     int64(i + 1),
			UserID: int64(i%10 + 1),
			Title:  fmt.Sprintf("sunt aut facere repellat provident %d", i+1),
			Body:   "quia et suscipit\nsuscipit recusandae consequuntur expedita et cum",
		}
	}
	return posts
}

func BenchmarkNormalizeData(b *testing.B) {
	b.Run("typed_page", func(b *testing.B) {
		page := benchPage(10)
		for b.Loop() {
			NormalizeData(page)
		}
	})

	b.Run("raw_page", func(b *testing.B) {
		raw, _ := json.Marshal(benchPage(10))
		msg := json.RawMessage(raw)
		for b.Loop() {
			NormalizeData(msg)
		}
	})

	b.Run("already_normalized", func(b *testing.B) {
		data := []map[string]any{{"id": 1, "title": "a"}, {"id": 2, "title": "b"}}
		for b.Loop() {
			NormalizeData(data)
		}
	})

	b.Run("mixed_slice", func(b *testing.B) {
		data := []any{map[string]any{"id": 1}, "loose", 42}
		for b.Loop() {
			normalizeUnmarshaled(data)
		}
	})
}

func BenchmarkWriter(b *testing.B) {
	formats := []struct {
		name   string
		format Format
		entity string
	}{
		{"json", FormatJSON, ""},
		{"ids", FormatIDs, ""},
		{"count", FormatCount, ""},
		{"markdown", FormatMarkdown, ""},
		{"markdown_entity", FormatMarkdown, "post"},
		{"styled_entity", FormatStyled, "post"},
	}
	page := benchPage(10)

	for _, f := range formats {
		b.Run(f.name, func(b *testing.B) {
			buf := &bytes.Buffer{}
			w := New(Options{Writer: buf, Format: f.format})
			for b.Loop() {
				buf.Reset()
				_ = w.OK(page,
					WithEntity(f.entity),
					WithSummary("Page 1 of 10 (100 posts)"),
					WithContext("page", 1),
				)
			}
		})
	}
}

func BenchmarkWriterJQ(b *testing.B) {
	buf := &bytes.Buffer{}
	w := New(Options{Writer: buf, Format: FormatJSON, JQ: ".data[].title"})
	page := benchPage(100)
	for b.Loop() {
		buf.Reset()
		_ = w.OK(page)
	}
}

func BenchmarkErrorOutput(b *testing.B) {
	buf := &bytes.Buffer{}
	w := New(Options{Writer: buf, Format: FormatJSON})
	err := ErrNotFound("post", "42")
	for b.Loop() {
		buf.Reset()
		_ = w.Err(err)
	}
}

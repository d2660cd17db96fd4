package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/basecamp/postbrowser/internal/api"
	"github.com/basecamp/postbrowser/internal/presenter"
	"github.com/basecamp/postbrowser/internal/resilience"
	"github.com/basecamp/postbrowser/internal/tui"
)

// =============================================================================
// Exit Code Tests
// =============================================================================

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{CodeUsage, ExitUsage},
		{CodeNotFound, ExitNotFound},
		{CodeAuth, ExitAuth},
		{CodeForbidden, ExitForbidden},
		{CodeRateLimit, ExitRateLimit},
		{CodeNetwork, ExitNetwork},
		{CodeAPI, ExitAPI},
		{CodeCanceled, ExitCanceled},
		{CodeUnavailable, ExitUnavailable},
		{"unknown", ExitAPI},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := ExitCodeFor(tt.code); got != tt.expected {
				t.Errorf("ExitCodeFor(%q) = %d, want %d", tt.code, got, tt.expected)
			}
		})
	}
}

// =============================================================================
// Error Tests
// =============================================================================

func TestErrorInterface(t *testing.T) {
	e := &Error{Message: "post not found: 42"}
	if e.Error() != "post not found: 42" {
		t.Errorf("Error() = %q", e.Error())
	}

	e.Hint = "Check the id"
	if e.Error() != "post not found: 42: Check the id" {
		t.Errorf("Error() with hint = %q", e.Error())
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	e := ErrNetwork(cause)
	if !errors.Is(e, cause) {
		t.Error("ErrNetwork should wrap its cause")
	}
	if !e.Retryable {
		t.Error("network errors are retryable")
	}
	if e.Hint != cause.Error() {
		t.Errorf("Hint = %q, want cause text", e.Hint)
	}
}

func TestErrAuthHint(t *testing.T) {
	e := ErrAuth("token rejected")
	if e.Hint != "Run: postbrowser auth login" {
		t.Errorf("Hint = %q", e.Hint)
	}
	if e.ExitCode() != ExitAuth {
		t.Errorf("ExitCode() = %d, want %d", e.ExitCode(), ExitAuth)
	}
}

func TestErrRateLimit(t *testing.T) {
	e := ErrRateLimit(90 * time.Second)
	if e.Hint != "Try again in 1m30s" {
		t.Errorf("Hint = %q", e.Hint)
	}
	if ErrRateLimit(0).Hint != "Try again later" {
		t.Errorf("zero Retry-After hint = %q", ErrRateLimit(0).Hint)
	}
}

func TestAsErrorClassifies(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      string
		exit      int
		retryable bool
	}{
		{"output error passes through", ErrUsage("bad flag"), CodeUsage, ExitUsage, false},
		{"wrapped output error", fmt.Errorf("ctx: %w", ErrNotFound("post", "9")), CodeNotFound, ExitNotFound, false},
		{"not found", &api.NotFoundError{Resource: "post", ID: 101}, CodeNotFound, ExitNotFound, false},
		{"wrapped not found", fmt.Errorf("load: %w", &api.NotFoundError{Resource: "post", ID: 7}), CodeNotFound, ExitNotFound, false},
		{"network", &api.FetchError{Message: "network error", Cause: errors.New("refused")}, CodeNetwork, ExitNetwork, true},
		{"server error", &api.FetchError{Status: 502, Message: "server error"}, CodeAPI, ExitAPI, true},
		{"client error", &api.FetchError{Status: 400, Message: "bad page"}, CodeAPI, ExitAPI, false},
		{"unauthorized", &api.FetchError{Status: 401, Message: "bad token"}, CodeAuth, ExitAuth, false},
		{"forbidden", &api.FetchError{Status: 403, Message: "nope"}, CodeForbidden, ExitForbidden, false},
		{"http 429", &api.FetchError{Status: 429, Message: "slow down", RetryAfter: time.Minute}, CodeRateLimit, ExitRateLimit, true},
		{"local rate limit", &resilience.RateLimitedError{RetryAfter: time.Second}, CodeRateLimit, ExitRateLimit, true},
		{"circuit open", fmt.Errorf("%w: too many failures", resilience.ErrCircuitOpen), CodeUnavailable, ExitUnavailable, true},
		{"plain error", errors.New("boom"), CodeAPI, ExitAPI, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := AsError(tt.err)
			if e.Code != tt.code {
				t.Errorf("Code = %q, want %q", e.Code, tt.code)
			}
			if e.ExitCode() != tt.exit {
				t.Errorf("ExitCode() = %d, want %d", e.ExitCode(), tt.exit)
			}
			if e.Retryable != tt.retryable {
				t.Errorf("Retryable = %v, want %v", e.Retryable, tt.retryable)
			}
		})
	}
}

func TestAsErrorKeepsMessages(t *testing.T) {
	if got := AsError(&api.NotFoundError{Resource: "post", ID: 101}).Message; got != "post 101 not found" {
		t.Errorf("not found message = %q", got)
	}
	if got := AsError(&api.FetchError{Status: 400, Message: "bad page"}).Message; got != "bad page (HTTP 400)" {
		t.Errorf("api message = %q", got)
	}
}

// =============================================================================
// Format Tests
// =============================================================================

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{
		"": FormatAuto, "auto": FormatAuto, "JSON": FormatJSON, "md": FormatMarkdown,
		"markdown": FormatMarkdown, "styled": FormatStyled, "quiet": FormatQuiet,
		"ids": FormatIDs, "count": FormatCount,
	} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %v, %v; want %v", in, got, err, want)
		}
	}

	_, err := ParseFormat("xml")
	if AsError(err).Code != CodeUsage {
		t.Errorf("ParseFormat(xml) error = %v, want usage error", err)
	}
}

// =============================================================================
// Writer Tests
// =============================================================================

var testPosts = []map[string]any{
	{"id": 1, "user_id": 1, "title": "first | post", "body": "one"},
	{"id": 2, "user_id": 1, "title": "second", "body": "two"},
}

func TestWriterOK(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatJSON, Writer: &buf})

	if err := w.OK(testPosts, WithSummary("Page 1 of 3"), WithContext("page", 1)); err != nil {
		t.Fatalf("OK() failed: %v", err)
	}

	var resp Response
	if err := json.Unmarshal(buf.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal output: %v", err)
	}
	if !resp.OK || resp.Summary != "Page 1 of 3" {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Context["page"] != float64(1) {
		t.Errorf("Context[page] = %v", resp.Context["page"])
	}
}

func TestWriterErr(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatJSON, Writer: &buf})

	if err := w.Err(&api.NotFoundError{Resource: "post", ID: 5}); err != nil {
		t.Fatalf("Err() failed: %v", err)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(buf.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal output: %v", err)
	}
	if resp.OK || resp.Code != CodeNotFound || resp.Error != "post 5 not found" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestWriterQuietFormat(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatQuiet, Writer: &buf})
	if err := w.OK(map[string]any{"id": 3}, WithSummary("ignored")); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "summary") || !strings.Contains(buf.String(), `"id": 3`) {
		t.Errorf("quiet output = %s", buf.String())
	}
}

func TestWriterIDsAndCount(t *testing.T) {
	var ids bytes.Buffer
	if err := New(Options{Format: FormatIDs, Writer: &ids}).OK(testPosts); err != nil {
		t.Fatal(err)
	}
	if ids.String() != "1\n2\n" {
		t.Errorf("ids output = %q", ids.String())
	}

	var count bytes.Buffer
	if err := New(Options{Format: FormatCount, Writer: &count}).OK(testPosts); err != nil {
		t.Fatal(err)
	}
	if count.String() != "2\n" {
		t.Errorf("count output = %q", count.String())
	}
}

func TestWriterMarkdownTable(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatMarkdown, Writer: &buf})
	if err := w.OK(testPosts, WithSummary("Posts")); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{"## Posts", "| Id | Title | User Id |", `first \| post`} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Body") {
		t.Errorf("bodies should be left out of tables:\n%s", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("markdown output should not contain ANSI codes: %q", out)
	}
}

func TestWriterMarkdownObjectAndStats(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatMarkdown, Writer: &buf})
	err := w.OK(map[string]any{"id": 7, "title": "seven", "body": "text"},
		WithMeta("stats", map[string]any{"fetches": 2, "hit_rate": "50%"}),
		WithBreadcrumbs(Breadcrumb{Action: "next", Cmd: "postbrowser page 2", Description: "Next page"}))
	if err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{"- **Id:** 7", "- **Body:** text", "*Stats: fetches 2 | hit rate 50%*", "- `postbrowser page 2`: Next page"} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown output missing %q:\n%s", want, out)
		}
	}
}

func TestWriterStyledEmitsANSI(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatStyled, Writer: &buf})
	if err := w.Err(ErrNotFound("post", "123")); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "\x1b[") || !strings.Contains(out, "Error:") {
		t.Errorf("styled output = %q", out)
	}
}

func TestWriterAutoIsJSONWhenPiped(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Writer: &buf})
	if err := w.OK(map[string]any{"id": 1}); err != nil {
		t.Fatal(err)
	}
	if !json.Valid(buf.Bytes()) {
		t.Errorf("auto output to a buffer should be JSON, got %q", buf.String())
	}
}

// =============================================================================
// jq Tests
// =============================================================================

func TestWriterJQ(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatStyled, Writer: &buf, JQ: ".data[] | .title"})
	if err := w.OK(testPosts); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "first | post\nsecond\n" {
		t.Errorf("jq output = %q", buf.String())
	}

	buf.Reset()
	w = New(Options{Writer: &buf, JQ: "[.data[].id]"})
	if err := w.OK(testPosts); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "[1,2]\n" {
		t.Errorf("jq output = %q", buf.String())
	}
}

func TestWriterJQSkipsErrors(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatJSON, Writer: &buf, JQ: ".data"})
	if err := w.Err(ErrUsage("bad")); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"code": "usage"`) {
		t.Errorf("error envelope should bypass jq, got %s", buf.String())
	}
}

func TestValidateJQ(t *testing.T) {
	if err := ValidateJQ(".data[0]"); err != nil {
		t.Errorf("ValidateJQ(valid) = %v", err)
	}
	err := ValidateJQ(".data[")
	if err == nil || AsError(err).Code != CodeUsage {
		t.Errorf("ValidateJQ(invalid) = %v, want usage error", err)
	}
}

func TestRunJQRuntimeError(t *testing.T) {
	_, err := RunJQ(".data | keys", map[string]any{"data": 3})
	if err == nil || AsError(err).Code != CodeUsage {
		t.Errorf("RunJQ() error = %v, want usage error", err)
	}
}

// =============================================================================
// Normalization and Formatting Tests
// =============================================================================

func TestNormalizeDataWithStruct(t *testing.T) {
	data := NormalizeData(api.Post{ID: 4, UserID: 2, Title: "t"})
	m, ok := data.(map[string]any)
	if !ok {
		t.Fatalf("NormalizeData(struct) = %T", data)
	}
	if m["id"] != float64(4) || m["title"] != "t" {
		t.Errorf("normalized = %v", m)
	}

	list := NormalizeData([]api.Post{{ID: 1}, {ID: 2}})
	if rows, ok := list.([]map[string]any); !ok || len(rows) != 2 {
		t.Errorf("NormalizeData(slice) = %#v", list)
	}
}

func TestFormatCell(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{true, "yes"},
		{float64(3), "3"},
		{2.5, "2.50"},
		{strings.Repeat("x", 50), strings.Repeat("x", 50)},
		{[]any{"a", float64(2)}, "a, 2"},
	}
	for _, tt := range tests {
		if got := formatCell(tt.in); got != tt.want {
			t.Errorf("formatCell(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatHeader(t *testing.T) {
	for in, want := range map[string]string{"user_id": "User Id", "viewed_at": "Viewed", "title": "Title"} {
		if got := formatHeader(in); got != want {
			t.Errorf("formatHeader(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWriterMarkdownUsesEntitySchema(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatMarkdown, Writer: &buf})
	post := api.Post{ID: 4, UserID: 1, Title: "eum et est occaecati", Body: "ullam et saepe"}
	if err := w.OK(post, WithEntity("post")); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "**#4 eum et est occaecati**") {
		t.Errorf("expected presenter headline, got:\n%s", out)
	}
	if !strings.Contains(out, "ullam et saepe") {
		t.Errorf("expected body, got:\n%s", out)
	}

	buf.Reset()
	if err := w.OK(post, WithEntity("unknown")); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "**#4") {
		t.Errorf("unknown entity should use generic rendering:\n%s", buf.String())
	}
}

func TestWriterJSONIgnoresEntity(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatJSON, Writer: &buf})
	if err := w.OK(map[string]any{"id": 1}, WithEntity("post")); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "entity") {
		t.Errorf("entity must not leak into JSON: %s", buf.String())
	}
}

func TestWriterMarkdownKeyedObjectAsTable(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatMarkdown, Writer: &buf})
	err := w.OK(map[string]any{
		"page_size": map[string]string{"value": "10", "source": "env"},
		"base_url":  map[string]string{"value": "https://example.test", "source": "default"},
	})
	if err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{
		"| Key | Value | Source |",
		"| base_url | https://example.test | default |\n| page_size | 10 | env |",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown output missing %q:\n%s", want, out)
		}
	}
}

func TestWriterMarkdownNestedRows(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatMarkdown, Writer: &buf})
	err := w.OK(map[string]any{
		"global": "/home/me/.config/postbrowser/config.json",
		"loaded": []map[string]string{{"path": "/etc/postbrowser/config.json", "source": "system"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{
		"- **Global:** /home/me/.config/postbrowser/config.json",
		"### Loaded",
		"| Path | Source |",
		"| /etc/postbrowser/config.json | system |",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown output missing %q:\n%s", want, out)
		}
	}
}

func TestWriterMarkdownGroupedRows(t *testing.T) {
	type command struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Actions     []string `json:"actions,omitempty"`
	}
	type category struct {
		Name     string    `json:"name"`
		Commands []command `json:"commands"`
	}

	var buf bytes.Buffer
	w := New(Options{Format: FormatMarkdown, Writer: &buf})
	err := w.OK([]category{
		{Name: "Browsing", Commands: []command{{Name: "page", Description: "Print one page"}}},
		{Name: "Auth", Commands: []command{{Name: "auth", Description: "Manage auth", Actions: []string{"login", "logout"}}}},
	})
	if err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{
		"### Browsing",
		"| Name | Description |",
		"| page | Print one page |",
		"### Auth",
		"| Name | Description | Actions |",
		"| auth | Manage auth | login, logout |",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown output missing %q:\n%s", want, out)
		}
	}
}

func TestWriterMarkdownEmptyList(t *testing.T) {
	var buf bytes.Buffer
	if err := New(Options{Format: FormatMarkdown, Writer: &buf}).OK([]map[string]any{}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "*No results*") {
		t.Errorf("empty list output = %q", buf.String())
	}
}

func TestFormatValueRelativeTimes(t *testing.T) {
	locale := presenter.NewLocale("en_US")
	viewed := time.Now().Add(-2 * time.Hour).Format(time.RFC3339)

	if got := formatValue("viewed_at", viewed, locale); got != "2 hours ago" {
		t.Errorf("formatValue(viewed_at) = %q", got)
	}
	if got := formatValue("title", viewed, locale); got != viewed {
		t.Errorf("formatValue(title) = %q, want the raw string", got)
	}
	if got := formatValue("since", "", locale); got != "" {
		t.Errorf("formatValue(since, empty) = %q", got)
	}
}

func TestStyledTableDropsColumnsToFit(t *testing.T) {
	r := NewRendererWithTheme(&bytes.Buffer{}, false, tui.Theme{})
	r.width = 20
	g := newGrid([]map[string]any{{"id": float64(1), "title": "a fairly long title", "source": "env"}}, "")

	keys, headers := r.fitColumns(g)
	if len(keys) != 1 || keys[0] != "id" || headers[0] != "Id" {
		t.Errorf("fitColumns() = %v %v", keys, headers)
	}
}

func TestStyledCellTruncates(t *testing.T) {
	r := NewRendererWithTheme(&bytes.Buffer{}, false, tui.Theme{})
	got := r.cell("title", strings.Repeat("x", 50))
	if len(got) > maxCellWidth || !strings.HasSuffix(got, "...") {
		t.Errorf("cell() = %q", got)
	}
	if got := r.cell("title", "short"); got != "short" {
		t.Errorf("cell(short) = %q", got)
	}
}

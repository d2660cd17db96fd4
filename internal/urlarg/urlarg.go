// Package urlarg parses posts API URLs into IDs.
// This allows users to paste a URL wherever a post ID or page is expected.
package urlarg

import (
	"net/url"
	"strconv"
	"strings"
)

// Parsed represents components extracted from a posts URL.
type Parsed struct {
	BaseURL string // everything before /posts
	PostID  int64  // 0 for list URLs
	Page    int    // from ?_page=, 0 when absent
}

// IsURL reports whether input looks like a posts API URL.
func IsURL(input string) bool {
	return Parse(input) != nil
}

// Parse extracts IDs from a posts URL. It returns nil when input is not an
// http(s) URL with a /posts segment.
//
// Supported URL patterns:
//   - https://host/posts/{id}
//   - https://host/api/posts/{id}#comments
//   - https://host/posts?_page={page}&_limit={size}
func Parse(input string) *Parsed {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "http://") && !strings.HasPrefix(input, "https://") {
		return nil
	}
	u, err := url.Parse(input)
	if err != nil || u.Host == "" {
		return nil
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	at := -1
	for i, s := range segments {
		if s == "posts" {
			at = i
		}
	}
	if at < 0 {
		return nil
	}

	p := &Parsed{BaseURL: u.Scheme + "://" + u.Host}
	if at > 0 {
		p.BaseURL += "/" + strings.Join(segments[:at], "/")
	}
	if at+1 < len(segments) {
		id, err := strconv.ParseInt(segments[at+1], 10, 64)
		if err != nil || id < 1 {
			return nil
		}
		p.PostID = id
	}
	if page, err := strconv.Atoi(u.Query().Get("_page")); err == nil && page > 0 {
		p.Page = page
	}
	return p
}

// ExtractID extracts a post ID from an argument.
// If the argument is a post URL, returns its ID. Otherwise, returns the
// argument as-is (assumed to be an ID).
func ExtractID(arg string) string {
	if p := Parse(arg); p != nil && p.PostID != 0 {
		return strconv.FormatInt(p.PostID, 10)
	}
	return arg
}

// ExtractPage extracts a page number from an argument the same way.
func ExtractPage(arg string) string {
	if p := Parse(arg); p != nil && p.Page != 0 {
		return strconv.Itoa(p.Page)
	}
	return arg
}

// Package api provides the HTTP client for the posts API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/basecamp/postbrowser/internal/hostutil"
	"github.com/basecamp/postbrowser/internal/observability"
	"github.com/basecamp/postbrowser/internal/query"
	"github.com/basecamp/postbrowser/internal/resilience"
	"github.com/basecamp/postbrowser/internal/version"
)

// DefaultBaseURL is the public JSONPlaceholder API.
const DefaultBaseURL = "https://jsonplaceholder.typicode.com"

// defaultRetryAfter is assumed for a 429 without a Retry-After header.
const defaultRetryAfter = 60 * time.Second

// TokenSource supplies an optional bearer token.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client fetches pages and posts. It performs exactly one HTTP request per
// call; retries belong to the query coordinator.
type Client struct {
	baseURL    string
	httpClient *http.Client
	gate       *resilience.Gate
	tokens     TokenSource
	hooks      observability.Hooks
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithGate routes every request through a resilience gate.
func WithGate(g *resilience.Gate) Option {
	return func(c *Client) { c.gate = g }
}

// WithTokenSource adds an Authorization header when a token is available.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithHooks sets observability hooks.
func WithHooks(h observability.Hooks) Option {
	return func(c *Client) {
		if h != nil {
			c.hooks = h
		}
	}
}

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		hooks: observability.NopHooks{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchPage fetches one page of posts. Pages past the end return an empty
// page with HasMore false.
func (c *Client) FetchPage(ctx context.Context, page, pageSize int) (Page, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		return Page{}, fmt.Errorf("page size must be positive, got %d", pageSize)
	}

	q := url.Values{}
	q.Set("_page", strconv.Itoa(page))
	q.Set("_limit", strconv.Itoa(pageSize))

	op := observability.OperationInfo{Service: "Posts", Operation: "Page", ResourceID: int64(page)}
	var items []Post
	header, err := c.operation(ctx, op, "/posts?"+q.Encode(), &items)
	if err != nil {
		return Page{}, err
	}

	total, ok := parseTotal(header.Get("X-Total-Count"))
	if !ok {
		// Without a total, a full page means there may be more.
		total = pageOffset(page, pageSize) + min(len(items), pageSize)
		if len(items) >= pageSize && total < math.MaxInt {
			total++
		}
	}
	return NewPage(items, page, pageSize, total), nil
}

// FetchPost fetches a single post. A missing post returns *NotFoundError.
func (c *Client) FetchPost(ctx context.Context, id int64) (Post, error) {
	op := observability.OperationInfo{Service: "Posts", Operation: "Get", ResourceID: id}
	var post Post
	_, err := c.operation(ctx, op, "/posts/"+strconv.FormatInt(id, 10), &post)
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) && fe.Status == http.StatusNotFound {
			return Post{}, &NotFoundError{Resource: "post", ID: id}
		}
		return Post{}, err
	}
	return post, nil
}

func (c *Client) operation(ctx context.Context, op observability.OperationInfo, path string, out any) (http.Header, error) {
	start := time.Now()
	ctx = c.hooks.OnOperationStart(ctx, op)

	var header http.Header
	run := func(ctx context.Context) error {
		var err error
		header, err = c.get(ctx, path, out)
		return err
	}

	var err error
	if c.gate != nil {
		err = c.gate.Do(ctx, run)
	} else {
		err = run(ctx)
	}
	c.hooks.OnOperationEnd(ctx, op, err, time.Since(start))
	return header, err
}

func (c *Client) get(ctx context.Context, path string, out any) (http.Header, error) {
	reqURL := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", requestID)

	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, err
		}
		// Tokens never travel over plain http to a remote host.
		if token != "" && hostutil.AllowsCredentials(reqURL) {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	info := observability.RequestInfo{
		Method:    http.MethodGet,
		URL:       reqURL,
		Attempt:   query.Attempt(ctx),
		RequestID: requestID,
	}
	ctx = c.hooks.OnRequestStart(ctx, info)
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			c.hooks.OnRequestEnd(ctx, info, observability.RequestResult{Duration: time.Since(start), Error: ctxErr})
			return nil, ctxErr
		}
		fe := &FetchError{Message: "network error", RequestID: requestID, Cause: err}
		c.hooks.OnRequestEnd(ctx, info, observability.RequestResult{
			Duration: time.Since(start), Retryable: true, Error: fe,
		})
		return nil, fe
	}
	defer resp.Body.Close()

	result := observability.RequestResult{StatusCode: resp.StatusCode}
	err = c.decode(resp, requestID, out)
	result.Duration = time.Since(start)
	result.Error = err
	result.Retryable = IsRetryable(err)

	var fe *FetchError
	if errors.As(err, &fe) && fe.RetryAfter > 0 {
		result.RetryAfter = fe.RetryAfter
		if c.gate != nil {
			c.gate.SetRetryAfter(fe.RetryAfter)
		}
	}
	c.hooks.OnRequestEnd(ctx, info, result)
	if err != nil {
		return nil, err
	}
	return resp.Header, nil
}

func (c *Client) decode(resp *http.Response, requestID string, out any) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return &FetchError{Status: resp.StatusCode, Message: "failed to read response", RequestID: requestID, Cause: err}
		}
		if err := json.Unmarshal(body, out); err != nil {
			return &FetchError{Status: resp.StatusCode, Message: "failed to parse response", RequestID: requestID, Cause: err}
		}
		return nil
	}

	fe := &FetchError{Status: resp.StatusCode, RequestID: requestID}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		fe.Message = "rate limited"
		fe.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		if fe.RetryAfter == 0 {
			fe.RetryAfter = defaultRetryAfter
		}
	case resp.StatusCode == http.StatusServiceUnavailable:
		fe.Message = "service unavailable"
		fe.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
	case resp.StatusCode == http.StatusNotFound:
		fe.Message = "not found"
	case resp.StatusCode >= 500:
		fe.Message = "server error"
	default:
		fe.Message = errorMessage(resp.Body, resp.StatusCode)
	}
	return fe
}

// errorMessage extracts {"error": ...} or {"message": ...} from a body.
func errorMessage(r io.Reader, status int) string {
	body, _ := io.ReadAll(io.LimitReader(r, 64<<10))
	var apiErr struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &apiErr) == nil {
		if apiErr.Error != "" {
			return apiErr.Error
		}
		if apiErr.Message != "" {
			return apiErr.Message
		}
	}
	return fmt.Sprintf("request failed: %s", strings.ToLower(http.StatusText(status)))
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(header string, now time.Time) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func parseTotal(header string) (int, bool) {
	if header == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

package observability

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// OperationInfo describes one API operation, e.g. Posts.Page.
type OperationInfo struct {
	Service    string
	Operation  string
	ResourceID int64
}

// RequestInfo describes one HTTP request.
type RequestInfo struct {
	Method    string
	URL       string
	Attempt   int
	RequestID string
}

// RequestResult describes the outcome of one HTTP request.
type RequestResult struct {
	StatusCode int
	Duration   time.Duration
	Retryable  bool
	RetryAfter time.Duration
	Error      error
}

// Hooks receives callbacks around API operations and HTTP requests.
type Hooks interface {
	OnOperationStart(ctx context.Context, op OperationInfo) context.Context
	OnOperationEnd(ctx context.Context, op OperationInfo, err error, duration time.Duration)
	OnRequestStart(ctx context.Context, info RequestInfo) context.Context
	OnRequestEnd(ctx context.Context, info RequestInfo, result RequestResult)
	OnRetry(ctx context.Context, info RequestInfo, attempt int, err error)
}

// NopHooks ignores every callback.
type NopHooks struct{}

var _ Hooks = NopHooks{}

func (NopHooks) OnOperationStart(ctx context.Context, _ OperationInfo) context.Context { return ctx }
func (NopHooks) OnOperationEnd(context.Context, OperationInfo, error, time.Duration) {}
func (NopHooks) OnRequestStart(ctx context.Context, _ RequestInfo) context.Context { return ctx }
func (NopHooks) OnRequestEnd(context.Context, RequestInfo, RequestResult) {}
func (NopHooks) OnRetry(context.Context, RequestInfo, int, error) {}

var _ Hooks = (*CLIHooks)(nil)

// CLIHooks collects session metrics and writes trace lines by verbosity:
//   - 0: Silent (collect stats only, no output)
//   - 1: Operations only
//   - 2: Operations + requests
type CLIHooks struct {
	mu        sync.Mutex
	level     int
	collector *SessionCollector
	writer    *TraceWriter
	logger    *zap.Logger
}

// NewCLIHooks creates CLIHooks with the given verbosity level.
// A nil collector skips metrics, a nil writer skips trace output.
func NewCLIHooks(level int, collector *SessionCollector, writer *TraceWriter) *CLIHooks {
	return &CLIHooks{
		level:     level,
		collector: collector,
		writer:    writer,
		logger:    zap.NewNop(),
	}
}

// SetLogger attaches a structured logger that receives one debug line per request.
func (h *CLIHooks) SetLogger(l *zap.Logger) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if l != nil {
		h.logger = l
	}
}

// SetLevel changes the verbosity level at runtime.
func (h *CLIHooks) SetLevel(level int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.level = level
}

// Level returns the current verbosity level.
func (h *CLIHooks) Level() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.level
}

func (h *CLIHooks) snapshot() (int, *SessionCollector, *TraceWriter, *zap.Logger) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.level, h.collector, h.writer, h.logger
}

// OnOperationStart is called when an API operation begins.
func (h *CLIHooks) OnOperationStart(ctx context.Context, op OperationInfo) context.Context {
	level, _, writer, _ := h.snapshot()
	if level >= 1 && writer != nil {
		writer.WriteOperationStart(op)
	}
	return ctx
}

// OnOperationEnd is called when an API operation completes.
func (h *CLIHooks) OnOperationEnd(ctx context.Context, op OperationInfo, err error, duration time.Duration) {
	level, collector, writer, _ := h.snapshot()
	if collector != nil {
		collector.RecordOperation(OperationMetrics{
			Service:    op.Service,
			Operation:  op.Operation,
			ResourceID: op.ResourceID,
			Duration:   duration,
			Error:      err,
		})
	}
	if level >= 1 && writer != nil {
		writer.WriteOperationEnd(op, err, duration)
	}
}

// OnRequestStart is called before an HTTP request is sent.
func (h *CLIHooks) OnRequestStart(ctx context.Context, info RequestInfo) context.Context {
	level, _, writer, _ := h.snapshot()
	if level >= 2 && writer != nil {
		writer.WriteRequestStart(info)
	}
	return ctx
}

// OnRequestEnd is called after an HTTP request completes.
func (h *CLIHooks) OnRequestEnd(ctx context.Context, info RequestInfo, result RequestResult) {
	level, collector, writer, logger := h.snapshot()
	if collector != nil {
		collector.RecordRequest(RequestMetrics{
			Method:     info.Method,
			URL:        info.URL,
			Attempt:    info.Attempt,
			StatusCode: result.StatusCode,
			Duration:   result.Duration,
			Retryable:  result.Retryable,
			Error:      result.Error,
		})
	}
	logger.Debug("request",
		zap.String("method", info.Method),
		zap.String("url", scrubURL(info.URL)),
		zap.String("request_id", info.RequestID),
		zap.Int("attempt", info.Attempt),
		zap.Int("status", result.StatusCode),
		zap.Duration("duration", result.Duration),
		zap.Error(result.Error))
	if level >= 2 && writer != nil {
		writer.WriteRequestEnd(info, result)
	}
}

// OnRetry is called when a request is a retry of an earlier failed attempt.
func (h *CLIHooks) OnRetry(ctx context.Context, info RequestInfo, attempt int, err error) {
	level, collector, writer, _ := h.snapshot()
	if collector != nil {
		collector.RecordRetry(RetryMetrics{
			Method:  info.Method,
			URL:     info.URL,
			Attempt: attempt,
			Error:   err,
		})
	}
	if level >= 2 && writer != nil {
		writer.WriteRetry(info, attempt, err)
	}
}

package query

import (
	"slices"
	"strings"
	"sync"
	"time"
)

// EventType classifies query fetch events.
type EventType int

const (
	FetchStart EventType = iota
	FetchComplete
	FetchError
	FetchRetry
)

// Event records a single fetch event.
type Event struct {
	Timestamp time.Time
	Key       string
	Type      EventType
	Duration  time.Duration
}

// Stats holds aggregate counters for a single key.
type Stats struct {
	FetchCount int
	ErrorCount int
	RetryCount int
	HitCount   int
	MissCount  int
	TotalTime  time.Duration
	LastFetch  time.Time
}

// Summary provides a point-in-time view of coordinator health.
type Summary struct {
	Queries    int
	Fetches    int
	Errors     int
	Retries    int
	Hits       int
	Misses     int
	P50Latency time.Duration
	ErrorRate  float64
}

// HitRate returns the fraction of reads served without a fetch.
func (s Summary) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// QueryStatus is a live status snapshot from a registered query.
type QueryStatus struct {
	Key       string
	State     SnapshotState
	FetchedAt time.Time
	Observers int
}

// Metrics collects fetch telemetry for the status bar and --stats.
type Metrics struct {
	mu     sync.RWMutex
	events []Event // ring buffer, last maxEvents
	stats  map[string]*Stats

	reporters map[string]func() QueryStatus
}

const maxEvents = 100

// NewMetrics creates an empty metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		stats:     make(map[string]*Stats),
		reporters: make(map[string]func() QueryStatus),
	}
}

func (m *Metrics) statsFor(key string) *Stats {
	s, ok := m.stats[key]
	if !ok {
		s = &Stats{}
		m.stats[key] = s
	}
	return s
}

// Record adds an event to the ring buffer and updates per-key stats.
func (m *Metrics) Record(e Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.events) >= maxEvents {
		m.events = m.events[1:]
	}
	m.events = append(m.events, e)

	s := m.statsFor(e.Key)
	switch e.Type {
	case FetchComplete, FetchError:
		s.FetchCount++
		s.TotalTime += e.Duration
		s.LastFetch = e.Timestamp
		if e.Type == FetchError {
			s.ErrorCount++
		}
	case FetchRetry:
		s.RetryCount++
	}
}

// RecordHit counts a read served from cache.
func (m *Metrics) RecordHit(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statsFor(key).HitCount++
}

// RecordMiss counts a read that needed a fetch.
func (m *Metrics) RecordMiss(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statsFor(key).MissCount++
}

// Stats returns a copy of the counters for key.
func (m *Metrics) Stats(key string) Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.stats[key]; ok {
		return *s
	}
	return Stats{}
}

// Summary returns aggregate metrics.
func (m *Metrics) Summary() Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summary := Summary{Queries: len(m.reporters)}
	for _, s := range m.stats {
		summary.Fetches += s.FetchCount
		summary.Errors += s.ErrorCount
		summary.Retries += s.RetryCount
		summary.Hits += s.HitCount
		summary.Misses += s.MissCount
	}

	var latencies []time.Duration
	for i := len(m.events) - 1; i >= 0 && len(latencies) < 50; i-- {
		if m.events[i].Type == FetchComplete {
			latencies = append(latencies, m.events[i].Duration)
		}
	}
	if len(latencies) > 0 {
		slices.Sort(latencies)
		summary.P50Latency = latencies[len(latencies)/2]
	}
	if summary.Fetches > 0 {
		summary.ErrorRate = float64(summary.Errors) / float64(summary.Fetches)
	}
	return summary
}

// RegisterQuery adds a live status reporter for a query.
func (m *Metrics) RegisterQuery(key string, reporter func() QueryStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reporters[key] = reporter
}

// UnregisterQuery removes a query's status reporter.
func (m *Metrics) UnregisterQuery(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reporters, key)
}

// QueryStatuses returns live status from all registered queries, sorted by key.
// Reporters are invoked without holding the metrics lock to avoid lock-order
// inversion with query mutexes.
func (m *Metrics) QueryStatuses() []QueryStatus {
	m.mu.RLock()
	reporters := make([]func() QueryStatus, 0, len(m.reporters))
	for _, r := range m.reporters {
		reporters = append(reporters, r)
	}
	m.mu.RUnlock()

	statuses := make([]QueryStatus, 0, len(reporters))
	for _, r := range reporters {
		statuses = append(statuses, r())
	}
	slices.SortFunc(statuses, func(a, b QueryStatus) int {
		return strings.Compare(a.Key, b.Key)
	})
	return statuses
}

package query

import "time"

// SnapshotState represents the freshness state of a cache entry.
type SnapshotState int

const (
	StateEmpty   SnapshotState = iota // never resolved, or cleared
	StateFresh                        // resolved within the fresh window
	StateStale                        // resolved, past the fresh window or invalidated
	StateLoading                      // fetch in progress (may hold stale data)
	StateError                        // last fetch failed (may hold stale data)
)

func (s SnapshotState) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateFresh:
		return "fresh"
	case StateStale:
		return "stale"
	case StateLoading:
		return "loading"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Snapshot holds typed data along with its fetch state.
type Snapshot[T any] struct {
	Data      T
	State     SnapshotState
	Err       error
	FetchedAt time.Time
	HasData   bool // distinguishes zero-value T from "never fetched"
	Fetching  bool

	// FailureCount is the number of attempts made by the last failed fetch.
	FailureCount int
}

// Fresh returns true if the snapshot has data in the Fresh state.
func (s Snapshot[T]) Fresh() bool {
	return s.HasData && s.State == StateFresh
}

// Status is the coarse lifecycle of a query result as seen by a consumer.
type Status int

const (
	StatusPending Status = iota // no value yet, first fetch outstanding or not started
	StatusError                 // no value and the last fetch failed terminally
	StatusSuccess               // a value is available (possibly stale or refetching)
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusError:
		return "error"
	case StatusSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// Result is what a consumer renders from: the latest known value plus flags.
type Result[T any] struct {
	Data    T
	HasData bool
	Status  Status

	// Err is the most recent terminal failure. It may be set alongside
	// StatusSuccess when a refetch of cached data failed.
	Err          error
	FailureCount int

	IsFetching bool
	IsStale    bool

	// IsPrevious is set when Data belongs to the previously observed key
	// and is shown while the current key resolves.
	IsPrevious bool

	FetchedAt time.Time
}

// Result converts a snapshot into a consumer-facing result.
func (s Snapshot[T]) Result() Result[T] {
	r := Result[T]{
		Data:         s.Data,
		HasData:      s.HasData,
		Err:          s.Err,
		FailureCount: s.FailureCount,
		IsFetching:   s.Fetching,
		IsStale:      s.HasData && s.State != StateFresh,
		FetchedAt:    s.FetchedAt,
	}
	switch {
	case s.HasData:
		r.Status = StatusSuccess
	case s.State == StateError && !s.Fetching:
		r.Status = StatusError
	default:
		r.Status = StatusPending
	}
	return r
}

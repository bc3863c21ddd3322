package query

import (
	"context"
	"time"
)

// Status describes where a query is in its lifecycle.
type Status int

const (
	// StatusIdle marks a query that has never run, typically because it is disabled.
	StatusIdle Status = iota
	// StatusLoading marks a query whose first fetch is in flight.
	StatusLoading
	// StatusError marks a query whose latest fetch failed.
	StatusError
	// StatusSuccess marks a query holding data from a successful fetch.
	StatusSuccess
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusError:
		return "error"
	case StatusSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// Fetcher loads the data for a key. It receives a context owned by the cache.
type Fetcher func(ctx context.Context) (any, error)

// Resolver returns the default fetcher for a key. The cache uses it when a key
// is refetched before any caller registered a fetcher for it.
type Resolver func(key Key) (Fetcher, bool)

// Result is a point-in-time snapshot of a cache entry.
type Result struct {
	Status    Status
	Data      any
	Err       error
	Fetching  bool
	Stale     bool
	UpdatedAt time.Time
}

// State is the typed view of a Result.
type State[T any] struct {
	Status    Status
	Data      T
	Err       error
	Fetching  bool
	Stale     bool
	UpdatedAt time.Time
}

// HasData reports whether a successful fetch has populated the entry, even if
// a later fetch failed.
func (s State[T]) HasData() bool {
	return !s.UpdatedAt.IsZero()
}

// As converts a snapshot into its typed view. Data of another type yields the
// zero value of T.
func As[T any](r Result) State[T] {
	state := State[T]{
		Status:    r.Status,
		Err:       r.Err,
		Fetching:  r.Fetching,
		Stale:     r.Stale,
		UpdatedAt: r.UpdatedAt,
	}
	if data, ok := r.Data.(T); ok {
		state.Data = data
	}
	return state
}

// FetcherFor adapts a typed load function to a Fetcher.
func FetcherFor[T any](fn func(ctx context.Context) (T, error)) Fetcher {
	return func(ctx context.Context) (any, error) {
		return fn(ctx)
	}
}

// Get runs Query with a typed fetcher and returns the typed state.
func Get[T any](ctx context.Context, c *Cache, key Key, fn func(ctx context.Context) (T, error), opts ...Option) State[T] {
	return As[T](c.Query(ctx, key, FetcherFor(fn), opts...))
}

// PeekAs returns the typed snapshot of key without fetching.
func PeekAs[T any](c *Cache, key Key) State[T] {
	return As[T](c.Peek(key))
}

// Package mutation runs remote writes and keeps the query cache in step with them.
package mutation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cinemate/client/internal/logging"
	"github.com/cinemate/client/internal/query"
)

// ErrInFlight is returned when a mutation is triggered while the same mutation
// key is still running. The second trigger never reaches the network.
var ErrInFlight = errors.New("mutation already in flight")

// Cache is the subset of the query cache that mutations drive.
type Cache interface {
	Invalidate(key query.Key)
	Refetch(ctx context.Context, key query.Key) *query.Handle
}

// Runner executes mutations with at most one in flight per mutation key.
type Runner struct {
	cache Cache

	mu       sync.Mutex
	inFlight map[string]query.Key
	watchers []func(key query.Key, running bool)
}

// NewRunner constructs a Runner that refreshes cache entries after mutations.
func NewRunner(cache Cache) *Runner {
	if cache == nil {
		panic("mutation: cache must not be nil")
	}
	return &Runner{
		cache:    cache,
		inFlight: make(map[string]query.Key),
	}
}

// InFlight reports whether a mutation with key is running. Screens use it to
// disable the triggering control.
func (r *Runner) InFlight(key query.Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.inFlight[key.String()]
	return ok
}

// Watch registers fn to be told whenever a mutation key starts or stops
// running. It is the push form of InFlight for UI controls.
func (r *Runner) Watch(fn func(key query.Key, running bool)) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.watchers = append(r.watchers, fn)
	r.mu.Unlock()
}

// Do runs fn unless a mutation with the same key is already running, in which
// case it returns ErrInFlight. A panic in fn is returned as an error.
func (r *Runner) Do(ctx context.Context, key query.Key, fn func(ctx context.Context) error) (err error) {
	if !r.acquire(key) {
		logging.FromContext(ctx).Info("mutation ignored while in flight", "mutation", key.String())
		return ErrInFlight
	}
	defer r.release(key)

	defer func() {
		if rec := recover(); rec != nil {
			logging.FromContext(ctx).Error("mutation panicked", "mutation", key.String(), "panic", rec)
			err = fmt.Errorf("mutation %s: panic: %v", key, rec)
		}
	}()

	return fn(ctx)
}

func (r *Runner) acquire(key query.Key) bool {
	r.mu.Lock()
	id := key.String()
	if _, ok := r.inFlight[id]; ok {
		r.mu.Unlock()
		return false
	}
	r.inFlight[id] = key
	watchers := append([]func(query.Key, bool){}, r.watchers...)
	r.mu.Unlock()

	for _, fn := range watchers {
		fn(key, true)
	}
	return true
}

func (r *Runner) release(key query.Key) {
	r.mu.Lock()
	delete(r.inFlight, key.String())
	watchers := append([]func(query.Key, bool){}, r.watchers...)
	r.mu.Unlock()

	for _, fn := range watchers {
		fn(key, false)
	}
}

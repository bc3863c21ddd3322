// Package focus refetches screen data when a screen becomes visible again.
package focus

import (
	"context"
	"sync"

	"github.com/cinemate/client/internal/query"
)

// Source emits an event each time its screen regains visibility. The returned
// function removes the subscription.
type Source interface {
	Subscribe(fn func()) (unsubscribe func())
}

// focusReporter is implemented by sources that know whether their screen is
// currently visible.
type focusReporter interface {
	Focused() bool
}

// Bind calls refetch on every visibility event after the first. The first
// event is the screen's mount-focus, which the initial query already covers.
// When src reports that it is already focused, the mount-focus has happened and
// the next event is treated as a regain. Calling release more than once is safe.
func Bind(src Source, refetch func()) (release func()) {
	var (
		mu      sync.Mutex
		seen    bool
		stopped bool
	)
	if r, ok := src.(focusReporter); ok && r.Focused() {
		seen = true
	}

	unsubscribe := src.Subscribe(func() {
		mu.Lock()
		first := !seen
		seen = true
		done := stopped
		mu.Unlock()

		if first || done {
			return
		}
		refetch()
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			mu.Lock()
			stopped = true
			mu.Unlock()
			if unsubscribe != nil {
				unsubscribe()
			}
		})
	}
}

// RefetchOnFocus binds a cache refetch of key to src. Failed refetches surface
// only through the query's own state.
func RefetchOnFocus(ctx context.Context, src Source, cache *query.Cache, key query.Key) (release func()) {
	return Bind(src, func() {
		cache.Refetch(ctx, key)
	})
}

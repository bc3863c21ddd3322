package datasync

import (
	"context"
	"strings"
	"sync"

	"github.com/cinemate/client/internal/models"
	"github.com/cinemate/client/internal/movies"
	"github.com/cinemate/client/internal/query"
)

// Search separates the text being typed from the text submitted. Typing never
// fetches; each non-empty submission fetches once.
type Search[T any] struct {
	cache *query.Cache
	keyOf func(q string) query.Key

	mu        sync.Mutex
	draft     string
	submitted string
}

// MovieSearch returns a search over the movie catalog.
func (l *Layer) MovieSearch() *Search[movies.ListEntry] {
	return &Search[movies.ListEntry]{cache: l.cache, keyOf: SearchMoviesKey}
}

// FriendSearch returns a search over user profiles.
func (l *Layer) FriendSearch() *Search[models.UserProfile] {
	return &Search[models.UserProfile]{cache: l.cache, keyOf: SearchFriendsKey}
}

// SetDraft records the text in the search box.
func (s *Search[T]) SetDraft(text string) {
	s.mu.Lock()
	s.draft = text
	s.mu.Unlock()
}

// Draft returns the text typed so far.
func (s *Search[T]) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// Submitted returns the trimmed text of the last submission.
func (s *Search[T]) Submitted() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitted
}

// Submit captures the draft and fetches its results. An empty draft clears the
// submission and returns an idle state without fetching.
func (s *Search[T]) Submit(ctx context.Context) query.State[[]T] {
	s.mu.Lock()
	q := strings.TrimSpace(s.draft)
	s.submitted = q
	s.mu.Unlock()

	if q == "" {
		return query.State[[]T]{Status: query.StatusIdle}
	}

	result, _ := s.cache.Refetch(ctx, s.keyOf(q)).Wait(ctx)
	return query.As[[]T](result)
}

// Results returns the cached state of the last submission without fetching.
func (s *Search[T]) Results() query.State[[]T] {
	q := s.Submitted()
	if q == "" {
		return query.State[[]T]{Status: query.StatusIdle}
	}
	return query.PeekAs[[]T](s.cache, s.keyOf(q))
}

// Package datasync exposes the app's entities as cached queries and its user
// actions as mutation chains that keep those caches current.
package datasync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cinemate/client/internal/auth"
	"github.com/cinemate/client/internal/focus"
	"github.com/cinemate/client/internal/models"
	"github.com/cinemate/client/internal/movies"
	"github.com/cinemate/client/internal/mutation"
	"github.com/cinemate/client/internal/query"
)

var (
	// ErrInvalidTransition is returned for watch status changes the app does not
	// allow, such as moving a watched movie back to the watchlist.
	ErrInvalidTransition = errors.New("invalid watch status transition")
	// ErrInvalidRating is returned for ratings outside 1 to 5.
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
	// ErrInvalidInput is returned for malformed mutation arguments.
	ErrInvalidInput = errors.New("invalid input")
	// ErrPhotosUnavailable is returned when no photo store is configured.
	ErrPhotosUnavailable = errors.New("photo storage not configured")
	// ErrNotLoaded is returned when a mutation needs current data that could
	// not be loaded.
	ErrNotLoaded = errors.New("data not loaded")
)

// Backend is the remote API the layer reads from and writes to.
type Backend interface {
	movies.Provider
	movies.Recommender

	UserProfile(ctx context.Context, userID string) (models.UserProfile, error)
	EditProfile(ctx context.Context, userID string, edit models.ProfileEdit) error
	SearchUsers(ctx context.Context, query string) ([]models.UserProfile, error)

	Friends(ctx context.Context, userID string) ([]models.Friend, error)
	AddFriend(ctx context.Context, userID, friendID string) error
	RemoveFriend(ctx context.Context, userID, friendID string) error
	BlockedUsers(ctx context.Context, userID string) ([]models.BlockedUser, error)
	AddBlockedUser(ctx context.Context, userID, blockedUserID string) error
	RemoveBlockedUser(ctx context.Context, userID, blockedUserID string) error

	SavedMovies(ctx context.Context, userID string) ([]models.SavedMovie, error)
	WatchedMovies(ctx context.Context, userID string) ([]models.SavedMovie, error)
	WatchlistMovies(ctx context.Context, userID string) ([]models.SavedMovie, error)
	AddWatchedMovie(ctx context.Context, userID string, movieID int) error
	RemoveWatchedMovie(ctx context.Context, userID string, movieID int) error
	AddWatchlistMovie(ctx context.Context, userID string, movieID int) error
	RemoveWatchlistMovie(ctx context.Context, userID string, movieID int) error

	Schedules(ctx context.Context, userID string) ([]models.Schedule, error)
	Schedule(ctx context.Context, userID, isoDate string) (models.Schedule, error)
	CreateSchedule(ctx context.Context, userID string, schedule models.NewSchedule) error
	EditSchedule(ctx context.Context, userID, isoDate string, edit models.ScheduleEdit) error
	DeleteSchedule(ctx context.Context, userID, isoDate string) error

	ReviewedMovies(ctx context.Context, userID string) ([]models.Review, error)
	OverallRating(ctx context.Context, movieID int) (models.OverallRating, error)
	MovieReviews(ctx context.Context, movieID int) ([]models.Review, error)
	Review(ctx context.Context, movieID int, userID string) (models.Review, error)
	CreateReview(ctx context.Context, movieID int, userID string, input models.ReviewInput) error
	EditReview(ctx context.Context, movieID int, userID string, input models.ReviewInput) error
	DeleteReview(ctx context.Context, movieID int, userID string) error
}

// Identity reports the signed-in user.
type Identity interface {
	UserID() (string, error)
	Subscribe(fn func(auth.Event, auth.Session)) (unsubscribe func())
}

// PhotoStore uploads profile photos and returns their public URL.
type PhotoStore interface {
	SaveProfilePhoto(ctx context.Context, userID, name string, r io.Reader) (string, error)
}

// Options configures a Layer.
type Options struct {
	Backend   Backend
	Identity  Identity
	Photos    PhotoStore
	ImageBase string

	StaleTime  time.Duration
	IdleTTL    time.Duration
	MaxEntries int

	// OnMutation is told whenever a mutation key starts or stops running.
	// Screens use it to disable and re-enable the triggering control.
	OnMutation func(key query.Key, running bool)

	Logger *slog.Logger
}

// Layer is the app's data access point. One Layer is built at start and
// shared by every screen.
type Layer struct {
	backend   Backend
	identity  Identity
	photos    PhotoStore
	imageBase string
	logger    *slog.Logger

	cache  *query.Cache
	runner *mutation.Runner

	mu          sync.Mutex
	userID      string
	unsubscribe func()
}

// New constructs a Layer with its own cache and mutation runner.
func New(opts Options) (*Layer, error) {
	if opts.Backend == nil {
		return nil, errors.New("datasync: backend is required")
	}
	if opts.Identity == nil {
		return nil, errors.New("datasync: identity is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	imageBase := opts.ImageBase
	if imageBase == "" {
		imageBase = movies.DefaultImageBase
	}

	l := &Layer{
		backend:   opts.Backend,
		identity:  opts.Identity,
		photos:    opts.Photos,
		imageBase: imageBase,
		logger:    logger,
	}
	l.cache = query.New(query.Options{
		Resolver:   l.resolve,
		StaleTime:  opts.StaleTime,
		IdleTTL:    opts.IdleTTL,
		MaxEntries: opts.MaxEntries,
		Logger:     logger,
	})
	l.runner = mutation.NewRunner(l.cache)
	if opts.OnMutation != nil {
		l.runner.Watch(opts.OnMutation)
	}

	if uid, err := l.identity.UserID(); err == nil {
		l.userID = uid
	}
	l.unsubscribe = l.identity.Subscribe(l.onSessionChange)

	return l, nil
}

// onSessionChange drops every cached entry when the user signs out or a
// different user signs in.
func (l *Layer) onSessionChange(event auth.Event, session auth.Session) {
	l.mu.Lock()
	previous := l.userID
	if event == auth.SignedOut {
		l.userID = ""
	} else {
		l.userID = session.UserID
	}
	changed := previous != l.userID
	l.mu.Unlock()

	if event == auth.SignedOut || changed {
		l.cache.Clear()
		l.logger.Info("query cache cleared", "event", event.String())
	}
}

// Close stops session tracking and releases in-flight fetches.
func (l *Layer) Close() {
	if l.unsubscribe != nil {
		l.unsubscribe()
	}
	l.cache.Close()
}

// Cache returns the layer's query cache.
func (l *Layer) Cache() *query.Cache {
	return l.cache
}

// Runner returns the layer's mutation runner.
func (l *Layer) Runner() *mutation.Runner {
	return l.runner
}

// PosterURL resolves a movie poster path against the configured image base.
func (l *Layer) PosterURL(path string) string {
	return movies.PosterURL(l.imageBase, path)
}

// RefetchOnFocus refetches keys each time src reports the screen visible again.
func (l *Layer) RefetchOnFocus(ctx context.Context, src focus.Source, keys ...query.Key) (release func()) {
	return focus.Bind(src, func() {
		for _, key := range keys {
			l.cache.Refetch(ctx, key)
		}
	})
}

func (l *Layer) currentUser() (string, error) {
	uid, err := l.identity.UserID()
	if err != nil {
		return "", err
	}
	if uid == "" {
		return "", auth.ErrNotAuthenticated
	}
	return uid, nil
}

func userEnabled(userID string, opts []query.Option) []query.Option {
	if userID != "" {
		return opts
	}
	return append(opts[:len(opts):len(opts)], query.Enabled(false))
}

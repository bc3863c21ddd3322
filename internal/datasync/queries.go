package datasync

import (
	"context"
	"strings"

	"github.com/cinemate/client/internal/api"
	"github.com/cinemate/client/internal/models"
	"github.com/cinemate/client/internal/movies"
	"github.com/cinemate/client/internal/query"
)

// Friends returns the user's friends. Queries for an empty user id stay idle.
func (l *Layer) Friends(ctx context.Context, userID string, opts ...query.Option) query.State[[]models.Friend] {
	return query.Get(ctx, l.cache, FriendsKey(userID), l.fetchFriends(userID), userEnabled(userID, opts)...)
}

// BlockedUsers returns the users the user blocked.
func (l *Layer) BlockedUsers(ctx context.Context, userID string, opts ...query.Option) query.State[[]models.BlockedUser] {
	return query.Get(ctx, l.cache, BlockedUsersKey(userID), l.fetchBlockedUsers(userID), userEnabled(userID, opts)...)
}

// SavedMovies returns every movie the user saved, with its watch status.
func (l *Layer) SavedMovies(ctx context.Context, userID string, opts ...query.Option) query.State[[]models.SavedMovie] {
	return query.Get(ctx, l.cache, SavedMoviesKey(userID), l.fetchSavedMovies(userID), userEnabled(userID, opts)...)
}

// WatchedMovies returns the user's watched list.
func (l *Layer) WatchedMovies(ctx context.Context, userID string, opts ...query.Option) query.State[[]models.SavedMovie] {
	return query.Get(ctx, l.cache, WatchedMoviesKey(userID), l.fetchWatchedMovies(userID), userEnabled(userID, opts)...)
}

// WatchlistMovies returns the user's watchlist.
func (l *Layer) WatchlistMovies(ctx context.Context, userID string, opts ...query.Option) query.State[[]models.SavedMovie] {
	return query.Get(ctx, l.cache, WatchlistMoviesKey(userID), l.fetchWatchlistMovies(userID), userEnabled(userID, opts)...)
}

// Schedules returns the user's schedules without invites.
func (l *Layer) Schedules(ctx context.Context, userID string, opts ...query.Option) query.State[[]models.Schedule] {
	return query.Get(ctx, l.cache, SchedulesKey(userID), l.fetchSchedules(userID), userEnabled(userID, opts)...)
}

// Schedule returns one schedule with its invites.
func (l *Layer) Schedule(ctx context.Context, userID, isoDate string, opts ...query.Option) query.State[models.Schedule] {
	if isoDate == "" {
		opts = userEnabled("", opts)
	}
	return query.Get(ctx, l.cache, ScheduleKey(userID, isoDate), l.fetchSchedule(userID, isoDate), userEnabled(userID, opts)...)
}

// Review returns the user's review of a movie. A user who has not reviewed
// the movie yields a successful state with nil data.
func (l *Layer) Review(ctx context.Context, movieID int, userID string, opts ...query.Option) query.State[*models.Review] {
	return query.Get(ctx, l.cache, ReviewKey(movieID, userID), l.fetchReview(movieID, userID), userEnabled(userID, opts)...)
}

// MovieReviews returns every review of a movie.
func (l *Layer) MovieReviews(ctx context.Context, movieID int, opts ...query.Option) query.State[[]models.Review] {
	return query.Get(ctx, l.cache, MovieReviewsKey(movieID), l.fetchMovieReviews(movieID), opts...)
}

// OverallRating returns the movie's average rating and review count.
func (l *Layer) OverallRating(ctx context.Context, movieID int, opts ...query.Option) query.State[models.OverallRating] {
	return query.Get(ctx, l.cache, OverallRatingKey(movieID), l.fetchOverallRating(movieID), opts...)
}

// ReviewedMovies returns the reviews the user wrote.
func (l *Layer) ReviewedMovies(ctx context.Context, userID string, opts ...query.Option) query.State[[]models.Review] {
	return query.Get(ctx, l.cache, ReviewedMoviesKey(userID), l.fetchReviewedMovies(userID), userEnabled(userID, opts)...)
}

// UserProfile returns a user's public profile.
func (l *Layer) UserProfile(ctx context.Context, userID string, opts ...query.Option) query.State[models.UserProfile] {
	return query.Get(ctx, l.cache, UserProfileKey(userID), l.fetchUserProfile(userID), userEnabled(userID, opts)...)
}

// MovieDetails returns a movie's metadata.
func (l *Layer) MovieDetails(ctx context.Context, movieID int, opts ...query.Option) query.State[movies.Movie] {
	return query.Get(ctx, l.cache, MovieDetailsKey(movieID), l.fetchMovieDetails(movieID), opts...)
}

// Recommendations returns suggestions for one of movies.Categories. Unknown
// categories stay idle.
func (l *Layer) Recommendations(ctx context.Context, category string, opts ...query.Option) query.State[[]movies.ListEntry] {
	category = strings.ToLower(strings.TrimSpace(category))
	if !movies.ValidCategory(category) {
		opts = userEnabled("", opts)
	}
	return query.Get(ctx, l.cache, RecommendationsKey(category), l.fetchRecommendations(category), opts...)
}

// WatchStatus derives the user's status for a movie from the saved movies
// query. A movie appears with at most one status.
func (l *Layer) WatchStatus(ctx context.Context, userID string, movieID int, opts ...query.Option) query.State[models.WatchStatus] {
	saved := l.SavedMovies(ctx, userID, opts...)
	return query.State[models.WatchStatus]{
		Status:    saved.Status,
		Data:      statusOf(saved.Data, movieID),
		Err:       saved.Err,
		Fetching:  saved.Fetching,
		Stale:     saved.Stale,
		UpdatedAt: saved.UpdatedAt,
	}
}

func statusOf(saved []models.SavedMovie, movieID int) models.WatchStatus {
	status := models.WatchStatusNone
	for _, m := range saved {
		if m.MovieID != movieID {
			continue
		}
		if m.WatchStatus == models.WatchStatusWatched {
			return m.WatchStatus
		}
		status = m.WatchStatus
	}
	return status
}

func (l *Layer) fetchFriends(userID string) func(context.Context) ([]models.Friend, error) {
	return func(ctx context.Context) ([]models.Friend, error) {
		return l.backend.Friends(ctx, userID)
	}
}

func (l *Layer) fetchBlockedUsers(userID string) func(context.Context) ([]models.BlockedUser, error) {
	return func(ctx context.Context) ([]models.BlockedUser, error) {
		return l.backend.BlockedUsers(ctx, userID)
	}
}

func (l *Layer) fetchSavedMovies(userID string) func(context.Context) ([]models.SavedMovie, error) {
	return func(ctx context.Context) ([]models.SavedMovie, error) {
		return l.backend.SavedMovies(ctx, userID)
	}
}

func (l *Layer) fetchWatchedMovies(userID string) func(context.Context) ([]models.SavedMovie, error) {
	return func(ctx context.Context) ([]models.SavedMovie, error) {
		return l.backend.WatchedMovies(ctx, userID)
	}
}

func (l *Layer) fetchWatchlistMovies(userID string) func(context.Context) ([]models.SavedMovie, error) {
	return func(ctx context.Context) ([]models.SavedMovie, error) {
		return l.backend.WatchlistMovies(ctx, userID)
	}
}

func (l *Layer) fetchSchedules(userID string) func(context.Context) ([]models.Schedule, error) {
	return func(ctx context.Context) ([]models.Schedule, error) {
		return l.backend.Schedules(ctx, userID)
	}
}

func (l *Layer) fetchSchedule(userID, isoDate string) func(context.Context) (models.Schedule, error) {
	return func(ctx context.Context) (models.Schedule, error) {
		return l.backend.Schedule(ctx, userID, isoDate)
	}
}

// fetchReview maps a missing review to nil so the query succeeds.
func (l *Layer) fetchReview(movieID int, userID string) func(context.Context) (*models.Review, error) {
	return func(ctx context.Context) (*models.Review, error) {
		review, err := l.backend.Review(ctx, movieID, userID)
		if err != nil {
			if api.IsNotFound(err) {
				return nil, nil
			}
			return nil, err
		}
		return &review, nil
	}
}

func (l *Layer) fetchMovieReviews(movieID int) func(context.Context) ([]models.Review, error) {
	return func(ctx context.Context) ([]models.Review, error) {
		return l.backend.MovieReviews(ctx, movieID)
	}
}

func (l *Layer) fetchOverallRating(movieID int) func(context.Context) (models.OverallRating, error) {
	return func(ctx context.Context) (models.OverallRating, error) {
		return l.backend.OverallRating(ctx, movieID)
	}
}

func (l *Layer) fetchReviewedMovies(userID string) func(context.Context) ([]models.Review, error) {
	return func(ctx context.Context) ([]models.Review, error) {
		return l.backend.ReviewedMovies(ctx, userID)
	}
}

func (l *Layer) fetchUserProfile(userID string) func(context.Context) (models.UserProfile, error) {
	return func(ctx context.Context) (models.UserProfile, error) {
		return l.backend.UserProfile(ctx, userID)
	}
}

func (l *Layer) fetchMovieDetails(movieID int) func(context.Context) (movies.Movie, error) {
	return func(ctx context.Context) (movies.Movie, error) {
		return l.backend.Details(ctx, movieID)
	}
}

func (l *Layer) fetchRecommendations(category string) func(context.Context) ([]movies.ListEntry, error) {
	return func(ctx context.Context) ([]movies.ListEntry, error) {
		return l.backend.Recommendations(ctx, category)
	}
}

func (l *Layer) fetchSearchUsers(q string) func(context.Context) ([]models.UserProfile, error) {
	return func(ctx context.Context) ([]models.UserProfile, error) {
		return l.backend.SearchUsers(ctx, q)
	}
}

func (l *Layer) fetchSearchMovies(q string) func(context.Context) ([]movies.ListEntry, error) {
	return func(ctx context.Context) ([]movies.ListEntry, error) {
		return l.backend.Search(ctx, q)
	}
}

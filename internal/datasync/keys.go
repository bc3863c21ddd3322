package datasync

import (
	"github.com/cinemate/client/internal/query"
)

// Query key families. Entity keys are built only through the constructors below.
const (
	familyFriends         = "getFriends"
	familyBlockedUsers    = "getBlockedUsers"
	familySavedMovies     = "getSavedMovies"
	familyWatchedMovies   = "getWatchedMovies"
	familyWatchlistMovies = "getWatchlistMovies"
	familySchedules       = "getSchedules"
	familySchedule        = "getSchedule"
	familyReview          = "reviewDetails"
	familyMovieReviews    = "movieReviews"
	familyOverallRating   = "getOverallRating"
	familyReviewedMovies  = "getReviewedMovies"
	familyUserProfile     = "userProfile"
	familySearchFriends   = "searchFriends"
	familySearchMovies    = "searchMovies"
	familyMovieDetails    = "movieDetails"
	familyRecommendations = "getAiMovieRecommendationsByCategory"
)

// FriendsKey addresses a user's friends list.
func FriendsKey(userID string) query.Key { return query.NewKey(familyFriends, userID) }

// BlockedUsersKey addresses the users a user blocked.
func BlockedUsersKey(userID string) query.Key { return query.NewKey(familyBlockedUsers, userID) }

// SavedMoviesKey addresses every saved movie of a user, whatever its status.
func SavedMoviesKey(userID string) query.Key { return query.NewKey(familySavedMovies, userID) }

// WatchedMoviesKey addresses a user's watched list.
func WatchedMoviesKey(userID string) query.Key { return query.NewKey(familyWatchedMovies, userID) }

// WatchlistMoviesKey addresses a user's watchlist.
func WatchlistMoviesKey(userID string) query.Key { return query.NewKey(familyWatchlistMovies, userID) }

// SchedulesKey addresses a user's schedule list.
func SchedulesKey(userID string) query.Key { return query.NewKey(familySchedules, userID) }

// ReviewedMoviesKey addresses the reviews a user wrote.
func ReviewedMoviesKey(userID string) query.Key { return query.NewKey(familyReviewedMovies, userID) }

// UserProfileKey addresses a user's profile.
func UserProfileKey(userID string) query.Key { return query.NewKey(familyUserProfile, userID) }

// MovieReviewsKey addresses every review of a movie.
func MovieReviewsKey(movieID int) query.Key { return query.NewKey(familyMovieReviews, movieID) }

// OverallRatingKey addresses a movie's average rating.
func OverallRatingKey(movieID int) query.Key { return query.NewKey(familyOverallRating, movieID) }

// MovieDetailsKey addresses a movie's metadata.
func MovieDetailsKey(movieID int) query.Key { return query.NewKey(familyMovieDetails, movieID) }

// SearchFriendsKey addresses the user search results for q.
func SearchFriendsKey(q string) query.Key { return query.NewKey(familySearchFriends, q) }

// SearchMoviesKey addresses the movie search results for q.
func SearchMoviesKey(q string) query.Key { return query.NewKey(familySearchMovies, q) }

// ScheduleKey addresses one schedule. The isoDate is the schedule's identity,
// so editing the date moves the schedule to a different key.
func ScheduleKey(userID, isoDate string) query.Key {
	return query.NewKey(familySchedule, userID, isoDate)
}

// ReviewKey addresses a user's review of a movie.
func ReviewKey(movieID int, userID string) query.Key {
	return query.NewKey(familyReview, movieID, userID)
}

// RecommendationsKey addresses the suggestions for a category.
func RecommendationsKey(category string) query.Key {
	return query.NewKey(familyRecommendations, category)
}

// resolve supplies the default fetcher for a key so the cache can refetch
// entries that were never read in this process.
func (l *Layer) resolve(key query.Key) (query.Fetcher, bool) {
	if len(key) < 2 {
		return nil, false
	}
	family, ok := key[0].(string)
	if !ok {
		return nil, false
	}

	switch family {
	case familyFriends, familyBlockedUsers, familySavedMovies, familyWatchedMovies,
		familyWatchlistMovies, familySchedules, familyReviewedMovies, familyUserProfile:
		userID, ok := stringPart(key, 1)
		if !ok {
			return nil, false
		}
		return l.userFetcher(family, userID)
	case familySchedule:
		userID, ok := stringPart(key, 1)
		isoDate, ok2 := stringPart(key, 2)
		if !ok || !ok2 {
			return nil, false
		}
		return query.FetcherFor(l.fetchSchedule(userID, isoDate)), true
	case familyReview:
		movieID, ok := intPart(key, 1)
		userID, ok2 := stringPart(key, 2)
		if !ok || !ok2 {
			return nil, false
		}
		return query.FetcherFor(l.fetchReview(movieID, userID)), true
	case familyMovieReviews, familyOverallRating, familyMovieDetails:
		movieID, ok := intPart(key, 1)
		if !ok {
			return nil, false
		}
		return l.movieFetcher(family, movieID)
	case familySearchFriends, familySearchMovies, familyRecommendations:
		text, ok := stringPart(key, 1)
		if !ok {
			return nil, false
		}
		return l.textFetcher(family, text)
	default:
		return nil, false
	}
}

func (l *Layer) userFetcher(family, userID string) (query.Fetcher, bool) {
	switch family {
	case familyFriends:
		return query.FetcherFor(l.fetchFriends(userID)), true
	case familyBlockedUsers:
		return query.FetcherFor(l.fetchBlockedUsers(userID)), true
	case familySavedMovies:
		return query.FetcherFor(l.fetchSavedMovies(userID)), true
	case familyWatchedMovies:
		return query.FetcherFor(l.fetchWatchedMovies(userID)), true
	case familyWatchlistMovies:
		return query.FetcherFor(l.fetchWatchlistMovies(userID)), true
	case familySchedules:
		return query.FetcherFor(l.fetchSchedules(userID)), true
	case familyReviewedMovies:
		return query.FetcherFor(l.fetchReviewedMovies(userID)), true
	case familyUserProfile:
		return query.FetcherFor(l.fetchUserProfile(userID)), true
	default:
		return nil, false
	}
}

func (l *Layer) movieFetcher(family string, movieID int) (query.Fetcher, bool) {
	switch family {
	case familyMovieReviews:
		return query.FetcherFor(l.fetchMovieReviews(movieID)), true
	case familyOverallRating:
		return query.FetcherFor(l.fetchOverallRating(movieID)), true
	case familyMovieDetails:
		return query.FetcherFor(l.fetchMovieDetails(movieID)), true
	default:
		return nil, false
	}
}

func (l *Layer) textFetcher(family, text string) (query.Fetcher, bool) {
	switch family {
	case familySearchFriends:
		return query.FetcherFor(l.fetchSearchUsers(text)), true
	case familySearchMovies:
		return query.FetcherFor(l.fetchSearchMovies(text)), true
	case familyRecommendations:
		return query.FetcherFor(l.fetchRecommendations(text)), true
	default:
		return nil, false
	}
}

func stringPart(key query.Key, i int) (string, bool) {
	if i >= len(key) {
		return "", false
	}
	s, ok := key[i].(string)
	return s, ok
}

func intPart(key query.Key, i int) (int, bool) {
	if i >= len(key) {
		return 0, false
	}
	switch v := key[i].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

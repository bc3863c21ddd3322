package api

import (
	"context"
	"strings"

	"github.com/cinemate/client/internal/models"
)

// UserProfile handles GET /user/:id.
func (c *Client) UserProfile(ctx context.Context, userID string) (models.UserProfile, error) {
	return getResult[models.UserProfile](ctx, c, "/user/:id", "/user/"+segment(userID))
}

// EditProfile handles PATCH /user/:id.
func (c *Client) EditProfile(ctx context.Context, userID string, edit models.ProfileEdit) error {
	return c.send(ctx, "PATCH", "/user/:id", "/user/"+segment(userID), edit)
}

// SearchUsers handles GET /user/search/:query.
func (c *Client) SearchUsers(ctx context.Context, query string) ([]models.UserProfile, error) {
	query = strings.TrimSpace(query)
	return getResults[models.UserProfile](ctx, c, "/user/search/:query", "/user/search/"+segment(query))
}

// Friends handles GET /user/:id/friends.
func (c *Client) Friends(ctx context.Context, userID string) ([]models.Friend, error) {
	return getResults[models.Friend](ctx, c, "/user/:id/friends", "/user/"+segment(userID)+"/friends")
}

// AddFriend handles POST /user/:id/friends.
func (c *Client) AddFriend(ctx context.Context, userID, friendID string) error {
	return c.send(ctx, "POST", "/user/:id/friends", "/user/"+segment(userID)+"/friends",
		map[string]string{"friendId": friendID})
}

// RemoveFriend handles DELETE /user/:id/friends/:friendId.
func (c *Client) RemoveFriend(ctx context.Context, userID, friendID string) error {
	return c.send(ctx, "DELETE", "/user/:id/friends/:friendId",
		"/user/"+segment(userID)+"/friends/"+segment(friendID), nil)
}

// BlockedUsers handles GET /user/:id/blocked-users.
func (c *Client) BlockedUsers(ctx context.Context, userID string) ([]models.BlockedUser, error) {
	return getResults[models.BlockedUser](ctx, c, "/user/:id/blocked-users", "/user/"+segment(userID)+"/blocked-users")
}

// AddBlockedUser handles POST /user/:id/blocked-users.
func (c *Client) AddBlockedUser(ctx context.Context, userID, blockedUserID string) error {
	return c.send(ctx, "POST", "/user/:id/blocked-users", "/user/"+segment(userID)+"/blocked-users",
		map[string]string{"blockedUserId": blockedUserID})
}

// RemoveBlockedUser handles DELETE /user/:id/blocked-users/:blockedId.
func (c *Client) RemoveBlockedUser(ctx context.Context, userID, blockedUserID string) error {
	return c.send(ctx, "DELETE", "/user/:id/blocked-users/:blockedId",
		"/user/"+segment(userID)+"/blocked-users/"+segment(blockedUserID), nil)
}

// SavedMovies handles GET /user/:id/saved-movies.
func (c *Client) SavedMovies(ctx context.Context, userID string) ([]models.SavedMovie, error) {
	return getResults[models.SavedMovie](ctx, c, "/user/:id/saved-movies", "/user/"+segment(userID)+"/saved-movies")
}

// WatchedMovies handles GET /user/:id/watched-movies.
func (c *Client) WatchedMovies(ctx context.Context, userID string) ([]models.SavedMovie, error) {
	return getResults[models.SavedMovie](ctx, c, "/user/:id/watched-movies", "/user/"+segment(userID)+"/watched-movies")
}

// WatchlistMovies handles GET /user/:id/watchlist-movies.
func (c *Client) WatchlistMovies(ctx context.Context, userID string) ([]models.SavedMovie, error) {
	return getResults[models.SavedMovie](ctx, c, "/user/:id/watchlist-movies", "/user/"+segment(userID)+"/watchlist-movies")
}

// AddWatchedMovie handles POST /user/:id/watched-movies.
func (c *Client) AddWatchedMovie(ctx context.Context, userID string, movieID int) error {
	return c.send(ctx, "POST", "/user/:id/watched-movies", "/user/"+segment(userID)+"/watched-movies",
		map[string]int{"movieId": movieID})
}

// RemoveWatchedMovie handles DELETE /user/:id/watched-movies/:movieId.
func (c *Client) RemoveWatchedMovie(ctx context.Context, userID string, movieID int) error {
	return c.send(ctx, "DELETE", "/user/:id/watched-movies/:movieId",
		"/user/"+segment(userID)+"/watched-movies/"+segment(movieID), nil)
}

// AddWatchlistMovie handles POST /user/:id/watchlist-movies.
func (c *Client) AddWatchlistMovie(ctx context.Context, userID string, movieID int) error {
	return c.send(ctx, "POST", "/user/:id/watchlist-movies", "/user/"+segment(userID)+"/watchlist-movies",
		map[string]int{"movieId": movieID})
}

// RemoveWatchlistMovie handles DELETE /user/:id/watchlist-movies/:movieId.
func (c *Client) RemoveWatchlistMovie(ctx context.Context, userID string, movieID int) error {
	return c.send(ctx, "DELETE", "/user/:id/watchlist-movies/:movieId",
		"/user/"+segment(userID)+"/watchlist-movies/"+segment(movieID), nil)
}

// ReviewedMovies handles GET /user/:id/reviews.
func (c *Client) ReviewedMovies(ctx context.Context, userID string) ([]models.Review, error) {
	return getResults[models.Review](ctx, c, "/user/:id/reviews", "/user/"+segment(userID)+"/reviews")
}

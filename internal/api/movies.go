package api

import (
	"context"
	"strings"

	"github.com/cinemate/client/internal/models"
	"github.com/cinemate/client/internal/movies"
)

var (
	_ movies.Provider    = (*Client)(nil)
	_ movies.Recommender = (*Client)(nil)
)

// Details handles GET /movie/:id.
func (c *Client) Details(ctx context.Context, id int) (movies.Movie, error) {
	return getResult[movies.Movie](ctx, c, "/movie/:id", "/movie/"+segment(id))
}

// Search handles GET /movie/search/:query.
func (c *Client) Search(ctx context.Context, query string) ([]movies.ListEntry, error) {
	query = strings.TrimSpace(query)
	return getResults[movies.ListEntry](ctx, c, "/movie/search/:query", "/movie/search/"+segment(query))
}

// Recommendations handles GET /movie/recommendations/:category.
func (c *Client) Recommendations(ctx context.Context, category string) ([]movies.ListEntry, error) {
	return getResults[movies.ListEntry](ctx, c, "/movie/recommendations/:category",
		"/movie/recommendations/"+segment(category))
}

// OverallRating handles GET /movie/:id/rating.
func (c *Client) OverallRating(ctx context.Context, movieID int) (models.OverallRating, error) {
	return getResult[models.OverallRating](ctx, c, "/movie/:id/rating", "/movie/"+segment(movieID)+"/rating")
}

// MovieReviews handles GET /movie/:id/reviews.
func (c *Client) MovieReviews(ctx context.Context, movieID int) ([]models.Review, error) {
	return getResults[models.Review](ctx, c, "/movie/:id/reviews", "/movie/"+segment(movieID)+"/reviews")
}

// Review handles GET /movie/:id/reviews/:userId. A user without a review
// yields a StatusError matching ErrNotFound.
func (c *Client) Review(ctx context.Context, movieID int, userID string) (models.Review, error) {
	return getResult[models.Review](ctx, c, "/movie/:id/reviews/:userId",
		"/movie/"+segment(movieID)+"/reviews/"+segment(userID))
}

// CreateReview handles POST /movie/:id/reviews.
func (c *Client) CreateReview(ctx context.Context, movieID int, userID string, input models.ReviewInput) error {
	payload := struct {
		UserID string `json:"userId"`
		models.ReviewInput
	}{UserID: userID, ReviewInput: input}
	return c.send(ctx, "POST", "/movie/:id/reviews", "/movie/"+segment(movieID)+"/reviews", payload)
}

// EditReview handles PATCH /movie/:id/reviews/:userId.
func (c *Client) EditReview(ctx context.Context, movieID int, userID string, input models.ReviewInput) error {
	return c.send(ctx, "PATCH", "/movie/:id/reviews/:userId",
		"/movie/"+segment(movieID)+"/reviews/"+segment(userID), input)
}

// DeleteReview handles DELETE /movie/:id/reviews/:userId.
func (c *Client) DeleteReview(ctx context.Context, movieID int, userID string) error {
	return c.send(ctx, "DELETE", "/movie/:id/reviews/:userId",
		"/movie/"+segment(movieID)+"/reviews/"+segment(userID), nil)
}

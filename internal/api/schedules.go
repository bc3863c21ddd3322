package api

import (
	"context"

	"github.com/cinemate/client/internal/models"
)

// Schedules handles GET /user/:id/schedules.
func (c *Client) Schedules(ctx context.Context, userID string) ([]models.Schedule, error) {
	return getResults[models.Schedule](ctx, c, "/user/:id/schedules", "/user/"+segment(userID)+"/schedules")
}

// Schedule handles GET /user/:id/schedules/:isoDate. The result carries the
// schedule's invites.
func (c *Client) Schedule(ctx context.Context, userID, isoDate string) (models.Schedule, error) {
	return getResult[models.Schedule](ctx, c, "/user/:id/schedules/:isoDate",
		"/user/"+segment(userID)+"/schedules/"+segment(isoDate))
}

// CreateSchedule handles POST /user/:id/schedules.
func (c *Client) CreateSchedule(ctx context.Context, userID string, schedule models.NewSchedule) error {
	return c.send(ctx, "POST", "/user/:id/schedules", "/user/"+segment(userID)+"/schedules", schedule)
}

// EditSchedule handles PATCH /user/:id/schedules/:isoDate.
func (c *Client) EditSchedule(ctx context.Context, userID, isoDate string, edit models.ScheduleEdit) error {
	return c.send(ctx, "PATCH", "/user/:id/schedules/:isoDate",
		"/user/"+segment(userID)+"/schedules/"+segment(isoDate), edit)
}

// DeleteSchedule handles DELETE /user/:id/schedules/:isoDate.
func (c *Client) DeleteSchedule(ctx context.Context, userID, isoDate string) error {
	return c.send(ctx, "DELETE", "/user/:id/schedules/:isoDate",
		"/user/"+segment(userID)+"/schedules/"+segment(isoDate), nil)
}

package datasync

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cinemate/client/internal/models"
	"github.com/cinemate/client/internal/mutation"
	"github.com/cinemate/client/internal/query"
)

// AddFriendKey guards adding friendID. Two triggers of the same action on the
// same target never run concurrently, and screens check Runner().InFlight with
// these keys to disable their controls.
func AddFriendKey(uid, friendID string) query.Key { return query.NewKey("addFriend", uid, friendID) }

// RemoveFriendKey guards removing friendID.
func RemoveFriendKey(uid, friendID string) query.Key { return query.NewKey("removeFriend", uid, friendID) }

// BlockUserKey guards the block chain for targetID.
func BlockUserKey(uid, targetID string) query.Key { return query.NewKey("blockUser", uid, targetID) }

// UnblockUserKey guards unblocking targetID.
func UnblockUserKey(uid, targetID string) query.Key { return query.NewKey("unblockUser", uid, targetID) }

// CreateScheduleKey guards schedule creation.
func CreateScheduleKey(uid string) query.Key { return query.NewKey("createSchedule", uid) }

// ProfileMutationKey guards profile and photo edits.
func ProfileMutationKey(uid string) query.Key { return query.NewKey("editProfile", uid) }

// WatchStatusMutationKey guards every watch status change of one movie.
func WatchStatusMutationKey(uid string, movieID int) query.Key {
	return query.NewKey("setWatchStatus", uid, movieID)
}

// EditScheduleKey guards every write to one schedule, including completion
// and deletion.
func EditScheduleKey(uid, isoDate string) query.Key {
	return query.NewKey("editSchedule", uid, isoDate)
}

// ReviewMutationKey guards writes to the user's review of a movie.
func ReviewMutationKey(uid string, movieID int) query.Key {
	return query.NewKey("review", uid, movieID)
}

// AddFriend adds friendID to the signed-in user's friends.
func (l *Layer) AddFriend(ctx context.Context, friendID string) error {
	uid, err := l.currentUser()
	if err != nil {
		return err
	}
	if err := validTarget(uid, friendID); err != nil {
		return err
	}
	return l.runner.Run(ctx, mutation.Chain{
		Name: "addFriend",
		Key:  AddFriendKey(uid, friendID),
		Steps: []mutation.Step{{
			Name:    "addFriend",
			Mutate:  func(ctx context.Context) error { return l.backend.AddFriend(ctx, uid, friendID) },
			Refetch: []query.Key{FriendsKey(uid)},
		}},
	})
}

// RemoveFriend removes friendID from the signed-in user's friends.
func (l *Layer) RemoveFriend(ctx context.Context, friendID string) error {
	uid, err := l.currentUser()
	if err != nil {
		return err
	}
	if err := validTarget(uid, friendID); err != nil {
		return err
	}
	return l.runner.Run(ctx, mutation.Chain{
		Name:  "removeFriend",
		Key:   RemoveFriendKey(uid, friendID),
		Steps: []mutation.Step{l.unfriendStep(uid, friendID)},
	})
}

// BlockUser blocks targetID. When targetID is a friend the block is applied
// first and the friendship removed second. A failed unfriend leaves the block
// in place and returns a partial *mutation.ChainError.
func (l *Layer) BlockUser(ctx context.Context, targetID string) error {
	uid, err := l.currentUser()
	if err != nil {
		return err
	}
	if err := validTarget(uid, targetID); err != nil {
		return err
	}

	friends := l.Friends(ctx, uid)
	if err := requireLoaded(friends, "friends"); err != nil {
		return err
	}

	steps := []mutation.Step{{
		Name:    "block",
		Mutate:  func(ctx context.Context) error { return l.backend.AddBlockedUser(ctx, uid, targetID) },
		Refetch: []query.Key{BlockedUsersKey(uid)},
	}}
	if isFriend(friends.Data, targetID) {
		steps = append(steps, l.unfriendStep(uid, targetID))
	}

	return l.runner.Run(ctx, mutation.Chain{
		Name:  "blockUser",
		Key:   BlockUserKey(uid, targetID),
		Steps: steps,
	})
}

// UnblockUser removes targetID from the blocked list. The friendship is not
// restored.
func (l *Layer) UnblockUser(ctx context.Context, targetID string) error {
	uid, err := l.currentUser()
	if err != nil {
		return err
	}
	if err := validTarget(uid, targetID); err != nil {
		return err
	}
	return l.runner.Run(ctx, mutation.Chain{
		Name: "unblockUser",
		Key:  UnblockUserKey(uid, targetID),
		Steps: []mutation.Step{{
			Name:    "unblock",
			Mutate:  func(ctx context.Context) error { return l.backend.RemoveBlockedUser(ctx, uid, targetID) },
			Refetch: []query.Key{BlockedUsersKey(uid)},
		}},
	})
}

func (l *Layer) unfriendStep(uid, friendID string) mutation.Step {
	return mutation.Step{
		Name:    "unfriend",
		Mutate:  func(ctx context.Context) error { return l.backend.RemoveFriend(ctx, uid, friendID) },
		Refetch: []query.Key{FriendsKey(uid)},
	}
}

func isFriend(friends []models.Friend, id string) bool {
	for _, f := range friends {
		if f.FriendID == id {
			return true
		}
	}
	return false
}

// requireLoaded fails unless state holds data from a successful fetch.
func requireLoaded[T any](state query.State[T], what string) error {
	if state.HasData() {
		return nil
	}
	if state.Err != nil {
		return fmt.Errorf("load %s: %w", what, state.Err)
	}
	return fmt.Errorf("%s is %s: %w", what, state.Status, ErrNotLoaded)
}

func validTarget(uid, target string) error {
	if strings.TrimSpace(target) == "" {
		return fmt.Errorf("empty user id: %w", ErrInvalidInput)
	}
	if target == uid {
		return fmt.Errorf("cannot target yourself: %w", ErrInvalidInput)
	}
	return nil
}

// SetWatchStatus moves a movie to target. Moving a watchlist movie to watched
// removes it from the watchlist before adding it to the watched list, so the
// movie never holds two statuses. Watched movies cannot return to the
// watchlist.
func (l *Layer) SetWatchStatus(ctx context.Context, movieID int, target models.WatchStatus) error {
	uid, err := l.currentUser()
	if err != nil {
		return err
	}
	if !target.Valid() {
		return fmt.Errorf("watch status %q: %w", string(target), ErrInvalidInput)
	}

	saved := l.SavedMovies(ctx, uid)
	if err := requireLoaded(saved, "saved movies"); err != nil {
		return err
	}
	current := statusOf(saved.Data, movieID)
	if current == target {
		return nil
	}
	if current == models.WatchStatusWatched && target == models.WatchStatusWatchList {
		return fmt.Errorf("%s to %s: %w", current, target, ErrInvalidTransition)
	}

	var steps []mutation.Step
	switch current {
	case models.WatchStatusWatchList:
		steps = append(steps, l.removeWatchlistStep(uid, movieID))
	case models.WatchStatusWatched:
		steps = append(steps, l.removeWatchedStep(uid, movieID))
	}
	switch target {
	case models.WatchStatusWatchList:
		steps = append(steps, l.addWatchlistStep(uid, movieID))
	case models.WatchStatusWatched:
		steps = append(steps, l.addWatchedStep(uid, movieID))
	}

	return l.runner.Run(ctx, mutation.Chain{
		Name:  "setWatchStatus",
		Key:   WatchStatusMutationKey(uid, movieID),
		Steps: steps,
	})
}

func (l *Layer) addWatchlistStep(uid string, movieID int) mutation.Step {
	return mutation.Step{
		Name:    "addToWatchlist",
		Mutate:  func(ctx context.Context) error { return l.backend.AddWatchlistMovie(ctx, uid, movieID) },
		Refetch: []query.Key{WatchlistMoviesKey(uid), SavedMoviesKey(uid)},
	}
}

func (l *Layer) removeWatchlistStep(uid string, movieID int) mutation.Step {
	return mutation.Step{
		Name:    "removeFromWatchlist",
		Mutate:  func(ctx context.Context) error { return l.backend.RemoveWatchlistMovie(ctx, uid, movieID) },
		Refetch: []query.Key{WatchlistMoviesKey(uid), SavedMoviesKey(uid)},
	}
}

func (l *Layer) addWatchedStep(uid string, movieID int) mutation.Step {
	return mutation.Step{
		Name:    "addToWatched",
		Mutate:  func(ctx context.Context) error { return l.backend.AddWatchedMovie(ctx, uid, movieID) },
		Refetch: []query.Key{WatchedMoviesKey(uid), SavedMoviesKey(uid)},
	}
}

func (l *Layer) removeWatchedStep(uid string, movieID int) mutation.Step {
	return mutation.Step{
		Name:    "removeFromWatched",
		Mutate:  func(ctx context.Context) error { return l.backend.RemoveWatchedMovie(ctx, uid, movieID) },
		Refetch: []query.Key{WatchedMoviesKey(uid), SavedMoviesKey(uid)},
	}
}

// CreateSchedule plans a watch session. The isoDate must be an RFC 3339
// timestamp and is unique per user.
func (l *Layer) CreateSchedule(ctx context.Context, schedule models.NewSchedule) error {
	uid, err := l.currentUser()
	if err != nil {
		return err
	}
	if err := validSchedule(schedule.ISODate, schedule.MovieID); err != nil {
		return err
	}
	return l.runner.Run(ctx, mutation.Chain{
		Name: "createSchedule",
		Key:  CreateScheduleKey(uid),
		Steps: []mutation.Step{{
			Name:       "createSchedule",
			Mutate:     func(ctx context.Context) error { return l.backend.CreateSchedule(ctx, uid, schedule) },
			Invalidate: []query.Key{ScheduleKey(uid, schedule.ISODate)},
			Refetch:    []query.Key{SchedulesKey(uid)},
		}},
	})
}

// EditSchedule updates the schedule stored at isoDate. Moving it to a new
// date drops the entry cached under the old date.
func (l *Layer) EditSchedule(ctx context.Context, isoDate string, edit models.ScheduleEdit) error {
	uid, err := l.currentUser()
	if err != nil {
		return err
	}
	if edit.NewISODate == "" {
		edit.NewISODate = isoDate
	}
	if err := validSchedule(isoDate, edit.MovieID); err != nil {
		return err
	}
	if err := validSchedule(edit.NewISODate, edit.MovieID); err != nil {
		return err
	}

	moved := edit.NewISODate != isoDate
	return l.runner.Run(ctx, mutation.Chain{
		Name: "editSchedule",
		Key:  EditScheduleKey(uid, isoDate),
		Steps: []mutation.Step{{
			Name: "editSchedule",
			Mutate: func(ctx context.Context) error {
				if err := l.backend.EditSchedule(ctx, uid, isoDate, edit); err != nil {
					return err
				}
				if moved {
					l.cache.Remove(ScheduleKey(uid, isoDate))
				}
				return nil
			},
			Refetch: []query.Key{ScheduleKey(uid, edit.NewISODate), SchedulesKey(uid)},
		}},
	})
}

// DeleteSchedule removes the schedule stored at isoDate.
func (l *Layer) DeleteSchedule(ctx context.Context, isoDate string) error {
	uid, err := l.currentUser()
	if err != nil {
		return err
	}
	if strings.TrimSpace(isoDate) == "" {
		return fmt.Errorf("empty schedule date: %w", ErrInvalidInput)
	}
	return l.runner.Run(ctx, mutation.Chain{
		Name: "deleteSchedule",
		Key:  EditScheduleKey(uid, isoDate),
		Steps: []mutation.Step{{
			Name: "deleteSchedule",
			Mutate: func(ctx context.Context) error {
				if err := l.backend.DeleteSchedule(ctx, uid, isoDate); err != nil {
					return err
				}
				l.cache.Remove(ScheduleKey(uid, isoDate))
				return nil
			},
			Refetch: []query.Key{SchedulesKey(uid)},
		}},
	})
}

// CompleteSchedule marks a pending schedule as done, then moves its movie
// off the watchlist and onto the watched list. Each step starts only after
// the previous one succeeded and its caches were refetched. Steps whose
// outcome already holds are skipped; a schedule that is no longer pending is
// left alone.
func (l *Layer) CompleteSchedule(ctx context.Context, isoDate string) error {
	uid, err := l.currentUser()
	if err != nil {
		return err
	}
	if strings.TrimSpace(isoDate) == "" {
		return fmt.Errorf("empty schedule date: %w", ErrInvalidInput)
	}

	schedule := l.Schedule(ctx, uid, isoDate)
	if err := requireLoaded(schedule, "schedule "+isoDate); err != nil {
		return err
	}
	if !schedule.Data.IsPending {
		return nil
	}

	saved := l.SavedMovies(ctx, uid)
	if err := requireLoaded(saved, "saved movies"); err != nil {
		return err
	}
	movieID := schedule.Data.MovieID
	status := statusOf(saved.Data, movieID)

	edit := models.ScheduleEdit{
		NewISODate:       isoDate,
		MovieID:          movieID,
		IsPending:        false,
		NotificationID:   schedule.Data.NotificationID,
		InvitedFriendIDs: invitedFriends(schedule.Data.Invites),
	}
	steps := []mutation.Step{{
		Name:       "markDone",
		Mutate:     func(ctx context.Context) error { return l.backend.EditSchedule(ctx, uid, isoDate, edit) },
		Invalidate: []query.Key{SchedulesKey(uid)},
		Refetch:    []query.Key{ScheduleKey(uid, isoDate)},
	}}
	if status == models.WatchStatusWatchList {
		steps = append(steps, l.removeWatchlistStep(uid, movieID))
	}
	if status != models.WatchStatusWatched {
		steps = append(steps, l.addWatchedStep(uid, movieID))
	}

	return l.runner.Run(ctx, mutation.Chain{
		Name:  "completeSchedule",
		Key:   EditScheduleKey(uid, isoDate),
		Steps: steps,
	})
}

func invitedFriends(invites []models.ScheduleInvite) []string {
	if len(invites) == 0 {
		return nil
	}
	ids := make([]string, 0, len(invites))
	for _, invite := range invites {
		ids = append(ids, invite.FriendID)
	}
	return ids
}

func validSchedule(isoDate string, movieID int) error {
	if _, err := time.Parse(time.RFC3339, isoDate); err != nil {
		return fmt.Errorf("schedule date %q: %w", isoDate, ErrInvalidInput)
	}
	if movieID <= 0 {
		return fmt.Errorf("schedule movie %d: %w", movieID, ErrInvalidInput)
	}
	return nil
}

// CreateReview records the signed-in user's review of a movie.
func (l *Layer) CreateReview(ctx context.Context, movieID int, input models.ReviewInput) error {
	if err := validRating(input.Rating); err != nil {
		return err
	}
	return l.reviewMutation(ctx, "createReview", movieID, func(ctx context.Context, uid string) error {
		return l.backend.CreateReview(ctx, movieID, uid, input)
	})
}

// EditReview replaces the signed-in user's review of a movie.
func (l *Layer) EditReview(ctx context.Context, movieID int, input models.ReviewInput) error {
	if err := validRating(input.Rating); err != nil {
		return err
	}
	return l.reviewMutation(ctx, "editReview", movieID, func(ctx context.Context, uid string) error {
		return l.backend.EditReview(ctx, movieID, uid, input)
	})
}

// DeleteReview removes the signed-in user's review of a movie.
func (l *Layer) DeleteReview(ctx context.Context, movieID int) error {
	return l.reviewMutation(ctx, "deleteReview", movieID, func(ctx context.Context, uid string) error {
		return l.backend.DeleteReview(ctx, movieID, uid)
	})
}

func (l *Layer) reviewMutation(ctx context.Context, name string, movieID int, mutate func(context.Context, string) error) error {
	uid, err := l.currentUser()
	if err != nil {
		return err
	}
	return l.runner.Run(ctx, mutation.Chain{
		Name: name,
		Key:  ReviewMutationKey(uid, movieID),
		Steps: []mutation.Step{{
			Name:       name,
			Mutate:     func(ctx context.Context) error { return mutate(ctx, uid) },
			Invalidate: []query.Key{ReviewedMoviesKey(uid)},
			Refetch:    []query.Key{ReviewKey(movieID, uid), MovieReviewsKey(movieID), OverallRatingKey(movieID)},
		}},
	})
}

func validRating(rating int) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("rating %d: %w", rating, ErrInvalidRating)
	}
	return nil
}

// EditProfile changes the signed-in user's display name.
func (l *Layer) EditProfile(ctx context.Context, displayName string) error {
	uid, err := l.currentUser()
	if err != nil {
		return err
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return fmt.Errorf("empty display name: %w", ErrInvalidInput)
	}
	return l.runner.Run(ctx, mutation.Chain{
		Name: "editProfile",
		Key:  ProfileMutationKey(uid),
		Steps: []mutation.Step{{
			Name: "editProfile",
			Mutate: func(ctx context.Context) error {
				return l.backend.EditProfile(ctx, uid, models.ProfileEdit{DisplayName: displayName})
			},
			Refetch: []query.Key{UserProfileKey(uid)},
		}},
	})
}

// UpdateProfilePhoto uploads a new profile photo and points the profile at
// it. It returns the photo's public URL.
func (l *Layer) UpdateProfilePhoto(ctx context.Context, name string, r io.Reader) (string, error) {
	uid, err := l.currentUser()
	if err != nil {
		return "", err
	}
	if l.photos == nil {
		return "", ErrPhotosUnavailable
	}

	var photoURL string
	err = l.runner.Run(ctx, mutation.Chain{
		Name: "updateProfilePhoto",
		Key:  ProfileMutationKey(uid),
		Steps: []mutation.Step{
			{
				Name: "uploadPhoto",
				Mutate: func(ctx context.Context) error {
					url, err := l.photos.SaveProfilePhoto(ctx, uid, name, r)
					if err != nil {
						return err
					}
					photoURL = url
					return nil
				},
			},
			{
				Name: "setPhotoURL",
				Mutate: func(ctx context.Context) error {
					return l.backend.EditProfile(ctx, uid, models.ProfileEdit{PhotoURL: photoURL})
				},
				Refetch: []query.Key{UserProfileKey(uid)},
			},
		},
	})
	if err != nil {
		return "", err
	}
	return photoURL, nil
}

package models

import "time"

// UserProfile is the public profile of a Cinemate user.
type UserProfile struct {
	UID         string `json:"uid"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	PhotoURL    string `json:"photoURL,omitempty"`
}

// Friend links a user to one of their friends.
type Friend struct {
	UserID   string `json:"userId"`
	FriendID string `json:"friendId"`
}

// BlockedUser records that UserID blocked BlockedUserID.
type BlockedUser struct {
	UserID        string `json:"userId"`
	BlockedUserID string `json:"blockedUserId"`
}

// WatchStatus is the saved state of a movie for one user.
type WatchStatus string

// Watch statuses. A movie holds at most one.
const (
	WatchStatusNone      WatchStatus = ""
	WatchStatusWatchList WatchStatus = "WatchList"
	WatchStatusWatched   WatchStatus = "Watched"
)

// Valid reports whether s is one of the known statuses.
func (s WatchStatus) Valid() bool {
	switch s {
	case WatchStatusNone, WatchStatusWatchList, WatchStatusWatched:
		return true
	default:
		return false
	}
}

func (s WatchStatus) String() string {
	if s == WatchStatusNone {
		return "none"
	}
	return string(s)
}

// SavedMovie is a movie on a user's watchlist or watched list.
type SavedMovie struct {
	UserID      string      `json:"userId"`
	MovieID     int         `json:"movieId"`
	WatchStatus WatchStatus `json:"watchStatus"`
}

// Review is a user's rating of a movie. A user reviews a movie at most once.
type Review struct {
	MovieID   int       `json:"movieId"`
	UserID    string    `json:"userId"`
	Rating    int       `json:"rating"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"createdAt"`
}

// OverallRating aggregates every review of a movie.
type OverallRating struct {
	MovieID int     `json:"movieId"`
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// Schedule is a planned watch session. ISODate identifies it per user.
type Schedule struct {
	UserID         string           `json:"userId"`
	ISODate        string           `json:"isoDate"`
	MovieID        int              `json:"movieId"`
	IsPending      bool             `json:"isPending"`
	NotificationID string           `json:"notificationId,omitempty"`
	Invites        []ScheduleInvite `json:"scheduleInvites,omitempty"`
}

// ScheduleInvite invites a friend to a schedule.
type ScheduleInvite struct {
	UserID   string `json:"userId"`
	ISODate  string `json:"isoDate"`
	FriendID string `json:"friendId"`
}

// NewSchedule is the payload for creating a schedule.
type NewSchedule struct {
	ISODate          string   `json:"isoDate"`
	MovieID          int      `json:"movieId"`
	NotificationID   string   `json:"notificationId,omitempty"`
	InvitedFriendIDs []string `json:"invitedFriendIds,omitempty"`
}

// ScheduleEdit is the payload for editing the schedule stored at an isoDate.
// NewISODate may equal the current date.
type ScheduleEdit struct {
	NewISODate       string   `json:"newIsoDate"`
	MovieID          int      `json:"movieId"`
	IsPending        bool     `json:"isPending"`
	NotificationID   string   `json:"notificationId,omitempty"`
	InvitedFriendIDs []string `json:"invitedFriendIds,omitempty"`
}

// ReviewInput is the payload for creating or editing a review.
type ReviewInput struct {
	Rating  int    `json:"rating"`
	Details string `json:"details"`
}

// ProfileEdit is the payload for editing a profile. Empty fields are left unchanged.
type ProfileEdit struct {
	DisplayName string `json:"displayName,omitempty"`
	PhotoURL    string `json:"photoURL,omitempty"`
}

// Package devbackend serves the Cinemate REST contract from memory for local
// development and tests.
package devbackend

import (
	"errors"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cinemate/client/internal/models"
	"github.com/cinemate/client/internal/movies"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates the attempted write would violate a uniqueness constraint.
	ErrConflict = errors.New("record conflict")
	// ErrInvalid indicates a malformed write.
	ErrInvalid = errors.New("invalid record")
)

// Store holds every backend record in memory.
type Store struct {
	mu        sync.RWMutex
	profiles  map[string]models.UserProfile
	friends   map[string]map[string]struct{}
	blocked   map[string]map[string]struct{}
	saved     map[string]map[int]models.WatchStatus
	schedules map[string]map[string]models.Schedule
	reviews   map[int]map[string]models.Review
	catalog   map[int]movies.Movie
	now       func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		profiles:  make(map[string]models.UserProfile),
		friends:   make(map[string]map[string]struct{}),
		blocked:   make(map[string]map[string]struct{}),
		saved:     make(map[string]map[int]models.WatchStatus),
		schedules: make(map[string]map[string]models.Schedule),
		reviews:   make(map[int]map[string]models.Review),
		catalog:   make(map[int]movies.Movie),
		now:       time.Now,
	}
}

// WithNowFunc overrides the clock used for review timestamps.
func (s *Store) WithNowFunc(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// PutUser creates or replaces a profile.
func (s *Store) PutUser(profile models.UserProfile) {
	s.mu.Lock()
	s.profiles[profile.UID] = profile
	s.mu.Unlock()
}

// PutMovie adds a movie to the catalog.
func (s *Store) PutMovie(movie movies.Movie) {
	s.mu.Lock()
	s.catalog[movie.ID] = movie
	s.mu.Unlock()
}

// User returns a profile or ErrNotFound.
func (s *Store) User(uid string) (models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[uid]
	if !ok {
		return models.UserProfile{}, ErrNotFound
	}
	return profile, nil
}

// EditUser applies the non-empty fields of edit.
func (s *Store) EditUser(uid string, edit models.ProfileEdit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, ok := s.profiles[uid]
	if !ok {
		return ErrNotFound
	}
	if name := strings.TrimSpace(edit.DisplayName); name != "" {
		profile.DisplayName = name
	}
	if edit.PhotoURL != "" {
		profile.PhotoURL = edit.PhotoURL
	}
	s.profiles[uid] = profile
	return nil
}

// SearchUsers matches display names and emails case-insensitively.
func (s *Store) SearchUsers(q string) []models.UserProfile {
	q = strings.ToLower(strings.TrimSpace(q))
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.UserProfile{}
	if q == "" {
		return out
	}
	for _, p := range s.profiles {
		if strings.Contains(strings.ToLower(p.DisplayName), q) || strings.Contains(strings.ToLower(p.Email), q) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out
}

// Friends lists uid's friends sorted by id.
func (s *Store) Friends(uid string) []models.Friend {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Friend{}
	for _, id := range sortedIDs(s.friends[uid]) {
		out = append(out, models.Friend{UserID: uid, FriendID: id})
	}
	return out
}

// AddFriend records a mutual friendship. Blocked users cannot be added.
func (s *Store) AddFriend(uid, friendID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if uid == friendID {
		return ErrInvalid
	}
	if _, ok := s.profiles[friendID]; !ok {
		return ErrNotFound
	}
	if has(s.friends, uid, friendID) || has(s.blocked, uid, friendID) || has(s.blocked, friendID, uid) {
		return ErrConflict
	}
	link(s.friends, uid, friendID)
	link(s.friends, friendID, uid)
	return nil
}

// RemoveFriend ends the friendship on both sides.
func (s *Store) RemoveFriend(uid, friendID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !has(s.friends, uid, friendID) {
		return ErrNotFound
	}
	delete(s.friends[uid], friendID)
	delete(s.friends[friendID], uid)
	return nil
}

// BlockedUsers lists the users uid blocked.
func (s *Store) BlockedUsers(uid string) []models.BlockedUser {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.BlockedUser{}
	for _, id := range sortedIDs(s.blocked[uid]) {
		out = append(out, models.BlockedUser{UserID: uid, BlockedUserID: id})
	}
	return out
}

// AddBlocked blocks a user. An existing friendship is left for the caller
// to remove.
func (s *Store) AddBlocked(uid, blockedID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if uid == blockedID {
		return ErrInvalid
	}
	if has(s.blocked, uid, blockedID) {
		return ErrConflict
	}
	link(s.blocked, uid, blockedID)
	return nil
}

// RemoveBlocked unblocks blockedID.
func (s *Store) RemoveBlocked(uid, blockedID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !has(s.blocked, uid, blockedID) {
		return ErrNotFound
	}
	delete(s.blocked[uid], blockedID)
	return nil
}

// SavedMovies lists every saved movie of uid, optionally filtered by status.
func (s *Store) SavedMovies(uid string, status models.WatchStatus) []models.SavedMovie {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.SavedMovie{}
	for movieID, st := range s.saved[uid] {
		if status != models.WatchStatusNone && st != status {
			continue
		}
		out = append(out, models.SavedMovie{UserID: uid, MovieID: movieID, WatchStatus: st})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MovieID < out[j].MovieID })
	return out
}

// Save gives a movie a status. A movie holds one status per user, so saving a
// movie that already has one is a conflict.
func (s *Store) Save(uid string, movieID int, status models.WatchStatus) error {
	if movieID <= 0 || status == models.WatchStatusNone || !status.Valid() {
		return ErrInvalid
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.saved[uid][movieID]; ok {
		return ErrConflict
	}
	if s.saved[uid] == nil {
		s.saved[uid] = make(map[int]models.WatchStatus)
	}
	s.saved[uid][movieID] = status
	return nil
}

// Unsave removes a movie that currently holds status.
func (s *Store) Unsave(uid string, movieID int, status models.WatchStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.saved[uid][movieID]; !ok || st != status {
		return ErrNotFound
	}
	delete(s.saved[uid], movieID)
	return nil
}

// Schedules lists uid's schedules without invites.
func (s *Store) Schedules(uid string) []models.Schedule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Schedule{}
	for _, sch := range s.schedules[uid] {
		sch.Invites = nil
		out = append(out, sch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ISODate < out[j].ISODate })
	return out
}

// Schedule returns one schedule with its invites.
func (s *Store) Schedule(uid, isoDate string) (models.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sch, ok := s.schedules[uid][isoDate]
	if !ok {
		return models.Schedule{}, ErrNotFound
	}
	return sch, nil
}

// CreateSchedule stores a pending schedule. Dates are unique per user.
func (s *Store) CreateSchedule(uid string, in models.NewSchedule) error {
	if _, err := time.Parse(time.RFC3339, in.ISODate); err != nil || in.MovieID <= 0 {
		return ErrInvalid
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schedules[uid][in.ISODate]; ok {
		return ErrConflict
	}
	if s.schedules[uid] == nil {
		s.schedules[uid] = make(map[string]models.Schedule)
	}
	s.schedules[uid][in.ISODate] = models.Schedule{
		UserID:         uid,
		ISODate:        in.ISODate,
		MovieID:        in.MovieID,
		IsPending:      true,
		NotificationID: in.NotificationID,
		Invites:        invites(uid, in.ISODate, in.InvitedFriendIDs),
	}
	return nil
}

// EditSchedule replaces the schedule at isoDate, possibly moving it to
// edit.NewISODate.
func (s *Store) EditSchedule(uid, isoDate string, edit models.ScheduleEdit) error {
	if edit.NewISODate == "" {
		edit.NewISODate = isoDate
	}
	if _, err := time.Parse(time.RFC3339, edit.NewISODate); err != nil || edit.MovieID <= 0 {
		return ErrInvalid
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schedules[uid][isoDate]; !ok {
		return ErrNotFound
	}
	if edit.NewISODate != isoDate {
		if _, taken := s.schedules[uid][edit.NewISODate]; taken {
			return ErrConflict
		}
		delete(s.schedules[uid], isoDate)
	}
	s.schedules[uid][edit.NewISODate] = models.Schedule{
		UserID:         uid,
		ISODate:        edit.NewISODate,
		MovieID:        edit.MovieID,
		IsPending:      edit.IsPending,
		NotificationID: edit.NotificationID,
		Invites:        invites(uid, edit.NewISODate, edit.InvitedFriendIDs),
	}
	return nil
}

// DeleteSchedule removes the schedule at isoDate.
func (s *Store) DeleteSchedule(uid, isoDate string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schedules[uid][isoDate]; !ok {
		return ErrNotFound
	}
	delete(s.schedules[uid], isoDate)
	return nil
}

func invites(uid, isoDate string, friendIDs []string) []models.ScheduleInvite {
	if len(friendIDs) == 0 {
		return nil
	}
	out := make([]models.ScheduleInvite, 0, len(friendIDs))
	for _, id := range friendIDs {
		out = append(out, models.ScheduleInvite{UserID: uid, ISODate: isoDate, FriendID: id})
	}
	return out
}

// Review returns uid's review of movieID or ErrNotFound.
func (s *Store) Review(movieID int, uid string) (models.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	review, ok := s.reviews[movieID][uid]
	if !ok {
		return models.Review{}, ErrNotFound
	}
	return review, nil
}

// MovieReviews lists every review of movieID.
func (s *Store) MovieReviews(movieID int) []models.Review {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Review{}
	for _, r := range s.reviews[movieID] {
		out = append(out, r)
	}
	sortReviews(out)
	return out
}

// ReviewedMovies lists the reviews written by uid.
func (s *Store) ReviewedMovies(uid string) []models.Review {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Review{}
	for _, byUser := range s.reviews {
		if r, ok := byUser[uid]; ok {
			out = append(out, r)
		}
	}
	sortReviews(out)
	return out
}

// CreateReview stores a review. A user reviews a movie at most once.
func (s *Store) CreateReview(movieID int, uid string, in models.ReviewInput) error {
	if in.Rating < 1 || in.Rating > 5 || uid == "" {
		return ErrInvalid
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reviews[movieID][uid]; ok {
		return ErrConflict
	}
	if s.reviews[movieID] == nil {
		s.reviews[movieID] = make(map[string]models.Review)
	}
	s.reviews[movieID][uid] = models.Review{
		MovieID:   movieID,
		UserID:    uid,
		Rating:    in.Rating,
		Details:   in.Details,
		CreatedAt: s.now().UTC(),
	}
	return nil
}

// EditReview replaces the rating and details of an existing review.
func (s *Store) EditReview(movieID int, uid string, in models.ReviewInput) error {
	if in.Rating < 1 || in.Rating > 5 {
		return ErrInvalid
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	review, ok := s.reviews[movieID][uid]
	if !ok {
		return ErrNotFound
	}
	review.Rating = in.Rating
	review.Details = in.Details
	s.reviews[movieID][uid] = review
	return nil
}

// DeleteReview removes uid's review of movieID.
func (s *Store) DeleteReview(movieID int, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reviews[movieID][uid]; !ok {
		return ErrNotFound
	}
	delete(s.reviews[movieID], uid)
	return nil
}

// OverallRating averages every review of a movie, rounded to one decimal.
func (s *Store) OverallRating(movieID int) models.OverallRating {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := models.OverallRating{MovieID: movieID}
	total := 0
	for _, r := range s.reviews[movieID] {
		total += r.Rating
		out.Count++
	}
	if out.Count > 0 {
		out.Average = math.Round(float64(total)/float64(out.Count)*10) / 10
	}
	return out
}

// Movie returns movie metadata or ErrNotFound.
func (s *Store) Movie(id int) (movies.Movie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	movie, ok := s.catalog[id]
	if !ok {
		return movies.Movie{}, ErrNotFound
	}
	return movie, nil
}

// SearchMovies matches titles case-insensitively, most popular first.
func (s *Store) SearchMovies(q string) []movies.ListEntry {
	q = strings.ToLower(strings.TrimSpace(q))
	return s.listMovies(func(m movies.Movie) bool {
		return q != "" && strings.Contains(strings.ToLower(m.Title), q)
	})
}

// Recommend lists catalog movies in a genre, best rated first.
func (s *Store) Recommend(category string) []movies.ListEntry {
	return s.listMovies(func(m movies.Movie) bool {
		for _, g := range m.Genres {
			if strings.EqualFold(g.Name, category) {
				return true
			}
		}
		return false
	})
}

func (s *Store) listMovies(match func(movies.Movie) bool) []movies.ListEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []movies.ListEntry{}
	for _, m := range s.catalog {
		if match(m) {
			out = append(out, listEntry(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].VoteAverage != out[j].VoteAverage {
			return out[i].VoteAverage > out[j].VoteAverage
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func listEntry(m movies.Movie) movies.ListEntry {
	ids := make([]int, 0, len(m.Genres))
	for _, g := range m.Genres {
		ids = append(ids, g.ID)
	}
	return movies.ListEntry{
		ID:            m.ID,
		Title:         m.Title,
		OriginalTitle: m.OriginalTitle,
		Overview:      m.Overview,
		PosterPath:    m.PosterPath,
		BackdropPath:  m.BackdropPath,
		ReleaseDate:   m.ReleaseDate,
		GenreIDs:      ids,
		VoteAverage:   m.VoteAverage,
		VoteCount:     m.VoteCount,
	}
}

func sortReviews(reviews []models.Review) {
	sort.Slice(reviews, func(i, j int) bool {
		if !reviews[i].CreatedAt.Equal(reviews[j].CreatedAt) {
			return reviews[i].CreatedAt.After(reviews[j].CreatedAt)
		}
		if reviews[i].MovieID != reviews[j].MovieID {
			return reviews[i].MovieID < reviews[j].MovieID
		}
		return reviews[i].UserID < reviews[j].UserID
	})
}

func has(m map[string]map[string]struct{}, a, b string) bool {
	_, ok := m[a][b]
	return ok
}

func link(m map[string]map[string]struct{}, a, b string) {
	if m[a] == nil {
		m[a] = make(map[string]struct{})
	}
	m[a][b] = struct{}{}
}

func sortedIDs(set map[string]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

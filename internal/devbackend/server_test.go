package devbackend

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cinemate/client/internal/models"
)

func newTestServer(t *testing.T, origins ...string) *Server {
	t.Helper()
	store := NewStore()
	Seed(store, "u1")
	return New(Options{
		Store:          store,
		AllowedOrigins: origins,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func tokenFor(t *testing.T, uid string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": uid,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("dev"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func serve(t *testing.T, s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var env map[string]json.RawMessage
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return env
}

func TestReadsUseEnvelopes(t *testing.T) {
	s := newTestServer(t)

	rec := serve(t, s, http.MethodGet, "/user/u1/friends", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}
	env := decodeEnvelope(t, rec)
	var friends []models.Friend
	if err := json.Unmarshal(env["results"], &friends); err != nil {
		t.Fatalf("decode friends: %v", err)
	}
	if len(friends) != 1 || friends[0].FriendID != "ava" {
		t.Fatalf("unexpected friends %+v", friends)
	}

	rec = serve(t, s, http.MethodGet, "/movie/603", "", nil)
	env = decodeEnvelope(t, rec)
	if _, ok := env["result"]; !ok {
		t.Fatalf("expected result envelope got %v", env)
	}

	rec = serve(t, s, http.MethodGet, "/movie/603/reviews/u1", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected missing review to be %d got %d", http.StatusNotFound, rec.Code)
	}
	env = decodeEnvelope(t, rec)
	if _, ok := env["message"]; !ok {
		t.Fatalf("expected message envelope got %v", env)
	}
}

func TestWritesRequireOwner(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{name: "missing token", status: http.StatusUnauthorized},
		{name: "garbage token", token: "not-a-jwt", status: http.StatusUnauthorized},
		{name: "other user", token: tokenFor(t, "ben"), status: http.StatusForbidden},
		{name: "owner", token: tokenFor(t, "u1"), status: http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, s, http.MethodPost, "/user/u1/blocked-users", tt.token, map[string]string{"blockedUserId": "chloe"})
			if rec.Code != tt.status {
				t.Fatalf("expected status %d got %d", tt.status, rec.Code)
			}
		})
	}
}

func TestOneWatchStatusPerMovie(t *testing.T) {
	s := newTestServer(t)
	token := tokenFor(t, "u1")

	rec := serve(t, s, http.MethodPost, "/user/u1/watched-movies", token, map[string]int{"movieId": 603})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected watchlist movie to conflict got %d", rec.Code)
	}

	rec = serve(t, s, http.MethodDelete, "/user/u1/watched-movies/603", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected removing wrong status to be not found got %d", rec.Code)
	}

	rec = serve(t, s, http.MethodDelete, "/user/u1/watchlist-movies/603", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected watchlist removal got %d", rec.Code)
	}
	rec = serve(t, s, http.MethodPost, "/user/u1/watched-movies", token, map[string]int{"movieId": 603})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected watched insert got %d", rec.Code)
	}

	saved := s.Store().SavedMovies("u1", models.WatchStatusNone)
	count := 0
	for _, m := range saved {
		if m.MovieID == 603 {
			count++
			if m.WatchStatus != models.WatchStatusWatched {
				t.Fatalf("expected watched got %s", m.WatchStatus)
			}
		}
	}
	if count != 1 {
		t.Fatalf("expected a single saved record got %d", count)
	}
}

func TestScheduleLifecycle(t *testing.T) {
	s := newTestServer(t)
	token := tokenFor(t, "u1")
	date := "2024-05-01T20:00:00.000Z"
	moved := "2024-05-02T20:00:00.000Z"

	rec := serve(t, s, http.MethodPost, "/user/u1/schedules", token, models.NewSchedule{
		ISODate: date, MovieID: 603, InvitedFriendIDs: []string{"ava"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create schedule: %d %s", rec.Code, rec.Body.String())
	}
	rec = serve(t, s, http.MethodPost, "/user/u1/schedules", token, models.NewSchedule{ISODate: date, MovieID: 550})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected duplicate date conflict got %d", rec.Code)
	}
	rec = serve(t, s, http.MethodPost, "/user/u1/schedules", token, models.NewSchedule{ISODate: "tomorrow", MovieID: 550})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected invalid date rejected got %d", rec.Code)
	}

	rec = serve(t, s, http.MethodGet, "/user/u1/schedules/"+date, "", nil)
	env := decodeEnvelope(t, rec)
	var schedule models.Schedule
	if err := json.Unmarshal(env["result"], &schedule); err != nil {
		t.Fatalf("decode schedule: %v", err)
	}
	if !schedule.IsPending || len(schedule.Invites) != 1 || schedule.Invites[0].FriendID != "ava" {
		t.Fatalf("unexpected schedule %+v", schedule)
	}

	rec = serve(t, s, http.MethodPatch, "/user/u1/schedules/"+date, token, models.ScheduleEdit{
		NewISODate: moved, MovieID: 603, IsPending: true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("edit schedule: %d %s", rec.Code, rec.Body.String())
	}
	if rec := serve(t, s, http.MethodGet, "/user/u1/schedules/"+date, "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected old date gone got %d", rec.Code)
	}
	if rec := serve(t, s, http.MethodDelete, "/user/u1/schedules/"+moved, token, nil); rec.Code != http.StatusOK {
		t.Fatalf("delete schedule: %d", rec.Code)
	}
}

func TestReviewsAggregate(t *testing.T) {
	s := newTestServer(t)

	for uid, rating := range map[string]int{"u1": 4, "ben": 5} {
		rec := serve(t, s, http.MethodPost, "/movie/550/reviews", tokenFor(t, uid), map[string]any{
			"userId": uid, "rating": rating, "details": "good",
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("create review for %s: %d", uid, rec.Code)
		}
	}
	rec := serve(t, s, http.MethodPost, "/movie/550/reviews", tokenFor(t, "u1"), map[string]any{
		"userId": "u1", "rating": 3,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected second review conflict got %d", rec.Code)
	}
	rec = serve(t, s, http.MethodPost, "/movie/550/reviews", tokenFor(t, "chloe"), map[string]any{
		"userId": "chloe", "rating": 9,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected invalid rating rejected got %d", rec.Code)
	}

	rating := s.Store().OverallRating(550)
	if rating.Count != 2 || rating.Average != 4.5 {
		t.Fatalf("unexpected rating %+v", rating)
	}
}

func TestFailNextInjectsOnce(t *testing.T) {
	s := newTestServer(t)
	token := tokenFor(t, "u1")
	s.FailNext(http.MethodDelete, "/user/:id/friends/:friendId", http.StatusInternalServerError)

	rec := serve(t, s, http.MethodDelete, "/user/u1/friends/ava", token, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected injected failure got %d", rec.Code)
	}
	if len(s.Store().Friends("u1")) != 1 {
		t.Fatal("expected injected failure to leave the store untouched")
	}

	rec = serve(t, s, http.MethodDelete, "/user/u1/friends/ava", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected second call to succeed got %d", rec.Code)
	}

	calls := s.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 calls got %d", len(calls))
	}
	if calls[0].Route != "/user/{id}/friends/{friendId}" || calls[0].Status != http.StatusInternalServerError {
		t.Fatalf("unexpected call %+v", calls[0])
	}
}

func TestSearchAndRecommendations(t *testing.T) {
	s := newTestServer(t)

	rec := serve(t, s, http.MethodGet, "/movie/search/the%20matrix", "", nil)
	env := decodeEnvelope(t, rec)
	var results []map[string]any
	if err := json.Unmarshal(env["results"], &results); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if len(results) != 1 || results[0]["title"] != "The Matrix" {
		t.Fatalf("unexpected search results %v", results)
	}

	rec = serve(t, s, http.MethodGet, "/movie/recommendations/science%20fiction", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected recommendations got %d", rec.Code)
	}
	rec = serve(t, s, http.MethodGet, "/movie/recommendations/opera", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected unknown category rejected got %d", rec.Code)
	}

	rec = serve(t, s, http.MethodGet, "/user/search/ava", "", nil)
	env = decodeEnvelope(t, rec)
	var users []models.UserProfile
	if err := json.Unmarshal(env["results"], &users); err != nil {
		t.Fatalf("decode users: %v", err)
	}
	if len(users) != 1 || users[0].UID != "ava" {
		t.Fatalf("unexpected users %+v", users)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, "http://localhost:19006")

	req := httptest.NewRequest(http.MethodOptions, "/user/u1/friends", nil)
	req.Header.Set("Origin", "http://localhost:19006")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:19006" {
		t.Fatalf("expected allowed origin got %q", got)
	}
}

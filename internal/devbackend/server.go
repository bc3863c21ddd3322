package devbackend

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/cinemate/client/internal/auth"
	"github.com/cinemate/client/internal/logging"
	"github.com/cinemate/client/internal/models"
	"github.com/cinemate/client/internal/movies"
)

// Options configures a Server.
type Options struct {
	Store          *Store
	AllowedOrigins []string
	Logger         *slog.Logger
	NowFunc        func() time.Time
}

// Server implements the backend REST contract over a Store. Writes require a
// bearer token whose user owns the resource.
type Server struct {
	store  *Store
	logger *slog.Logger
	faults *faults
	now    func() time.Time
	router chi.Router
}

// New builds a Server and its routes.
func New(opts Options) *Server {
	store := opts.Store
	if store == nil {
		store = NewStore()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.NowFunc
	if now == nil {
		now = time.Now
	}

	s := &Server{
		store:  store,
		logger: logger,
		faults: &faults{},
		now:    now,
	}
	s.router = s.routes(opts.AllowedOrigins)
	return s
}

// Store returns the backing store.
func (s *Server) Store() *Store {
	return s.store
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// FailNext makes the next request to route answer status without touching
// the store. Routes use either ":param" or "{param}" notation.
func (s *Server) FailNext(method, route string, status int) {
	s.faults.add(method, route, status)
}

// Calls returns every request served so far, in order.
func (s *Server) Calls() []Call {
	return s.faults.snapshot()
}

// ResetCalls clears the call log.
func (s *Server) ResetCalls() {
	s.faults.reset()
}

func (s *Server) routes(allowedOrigins []string) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(chimw.Recoverer)
	if len(allowedOrigins) > 0 {
		r.Use(corsHandler(allowedOrigins))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/user", func(r chi.Router) {
		r.Get("/search/{query}", s.handle(s.searchUsers))
		r.Get("/{id}", s.handle(s.getUser))
		r.Patch("/{id}", s.handle(s.editUser))

		r.Get("/{id}/friends", s.handle(s.listFriends))
		r.Post("/{id}/friends", s.handle(s.addFriend))
		r.Delete("/{id}/friends/{friendId}", s.handle(s.removeFriend))

		r.Get("/{id}/blocked-users", s.handle(s.listBlocked))
		r.Post("/{id}/blocked-users", s.handle(s.addBlocked))
		r.Delete("/{id}/blocked-users/{blockedId}", s.handle(s.removeBlocked))

		r.Get("/{id}/saved-movies", s.handle(s.listSaved(models.WatchStatusNone)))
		r.Get("/{id}/watched-movies", s.handle(s.listSaved(models.WatchStatusWatched)))
		r.Post("/{id}/watched-movies", s.handle(s.saveMovie(models.WatchStatusWatched)))
		r.Delete("/{id}/watched-movies/{movieId}", s.handle(s.unsaveMovie(models.WatchStatusWatched)))
		r.Get("/{id}/watchlist-movies", s.handle(s.listSaved(models.WatchStatusWatchList)))
		r.Post("/{id}/watchlist-movies", s.handle(s.saveMovie(models.WatchStatusWatchList)))
		r.Delete("/{id}/watchlist-movies/{movieId}", s.handle(s.unsaveMovie(models.WatchStatusWatchList)))

		r.Get("/{id}/schedules", s.handle(s.listSchedules))
		r.Post("/{id}/schedules", s.handle(s.createSchedule))
		r.Get("/{id}/schedules/{isoDate}", s.handle(s.getSchedule))
		r.Patch("/{id}/schedules/{isoDate}", s.handle(s.editSchedule))
		r.Delete("/{id}/schedules/{isoDate}", s.handle(s.deleteSchedule))

		r.Get("/{id}/reviews", s.handle(s.listUserReviews))
	})

	r.Route("/movie", func(r chi.Router) {
		r.Get("/search/{query}", s.handle(s.searchMovies))
		r.Get("/recommendations/{category}", s.handle(s.recommendations))
		r.Get("/{id}", s.handle(s.getMovie))
		r.Get("/{id}/rating", s.handle(s.overallRating))
		r.Get("/{id}/reviews", s.handle(s.listMovieReviews))
		r.Post("/{id}/reviews", s.handle(s.createReview))
		r.Get("/{id}/reviews/{userId}", s.handle(s.getReview))
		r.Patch("/{id}/reviews/{userId}", s.handle(s.editReview))
		r.Delete("/{id}/reviews/{userId}", s.handle(s.deleteReview))
	})

	return r
}

// handle records the call and serves any failure queued for its route.
func (s *Server) handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		route := normalizeRoute(chi.RouteContext(r.Context()).RoutePattern())
		wrapped := &responseWriter{ResponseWriter: w}
		defer func() {
			s.faults.record(Call{Method: r.Method, Route: route, Path: r.URL.Path, Status: wrapped.Status()})
		}()

		if status, ok := s.faults.take(r.Method, route); ok {
			logging.FromContext(r.Context()).Warn("serving injected failure", "route", route, "status", status)
			respondError(r.Context(), wrapped, status, injectedMessage(status), "")
			return
		}
		next(wrapped, r)
	}
}

func (s *Server) searchUsers(w http.ResponseWriter, r *http.Request) {
	respondResults(r.Context(), w, s.store.SearchUsers(param(r, "query")))
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	profile, err := s.store.User(param(r, "id"))
	if err != nil {
		respondStoreError(r.Context(), w, err, "user not found")
		return
	}
	respondResult(r.Context(), w, http.StatusOK, profile)
}

func (s *Server) editUser(w http.ResponseWriter, r *http.Request) {
	uid := param(r, "id")
	if !s.authorize(w, r, uid) {
		return
	}
	var edit models.ProfileEdit
	if !decodeBody(w, r, &edit) {
		return
	}
	if err := s.store.EditUser(uid, edit); err != nil {
		respondStoreError(r.Context(), w, err, "user not found")
		return
	}
	respondResult(r.Context(), w, http.StatusOK, "profile updated")
}

func (s *Server) listFriends(w http.ResponseWriter, r *http.Request) {
	respondResults(r.Context(), w, s.store.Friends(param(r, "id")))
}

func (s *Server) addFriend(w http.ResponseWriter, r *http.Request) {
	uid := param(r, "id")
	if !s.authorize(w, r, uid) {
		return
	}
	var req struct {
		FriendID string `json:"friendId"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.store.AddFriend(uid, strings.TrimSpace(req.FriendID)); err != nil {
		respondStoreError(r.Context(), w, err, "cannot add friend")
		return
	}
	respondResult(r.Context(), w, http.StatusCreated, "friend added")
}

func (s *Server) removeFriend(w http.ResponseWriter, r *http.Request) {
	uid := param(r, "id")
	if !s.authorize(w, r, uid) {
		return
	}
	if err := s.store.RemoveFriend(uid, param(r, "friendId")); err != nil {
		respondStoreError(r.Context(), w, err, "friend not found")
		return
	}
	respondResult(r.Context(), w, http.StatusOK, "friend removed")
}

func (s *Server) listBlocked(w http.ResponseWriter, r *http.Request) {
	respondResults(r.Context(), w, s.store.BlockedUsers(param(r, "id")))
}

func (s *Server) addBlocked(w http.ResponseWriter, r *http.Request) {
	uid := param(r, "id")
	if !s.authorize(w, r, uid) {
		return
	}
	var req struct {
		BlockedUserID string `json:"blockedUserId"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.store.AddBlocked(uid, strings.TrimSpace(req.BlockedUserID)); err != nil {
		respondStoreError(r.Context(), w, err, "cannot block user")
		return
	}
	respondResult(r.Context(), w, http.StatusCreated, "user blocked")
}

func (s *Server) removeBlocked(w http.ResponseWriter, r *http.Request) {
	uid := param(r, "id")
	if !s.authorize(w, r, uid) {
		return
	}
	if err := s.store.RemoveBlocked(uid, param(r, "blockedId")); err != nil {
		respondStoreError(r.Context(), w, err, "blocked user not found")
		return
	}
	respondResult(r.Context(), w, http.StatusOK, "user unblocked")
}

func (s *Server) listSaved(status models.WatchStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondResults(r.Context(), w, s.store.SavedMovies(param(r, "id"), status))
	}
}

func (s *Server) saveMovie(status models.WatchStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := param(r, "id")
		if !s.authorize(w, r, uid) {
			return
		}
		var req struct {
			MovieID int `json:"movieId"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if err := s.store.Save(uid, req.MovieID, status); err != nil {
			respondStoreError(r.Context(), w, err, "movie already saved")
			return
		}
		respondResult(r.Context(), w, http.StatusCreated, "movie saved")
	}
}

func (s *Server) unsaveMovie(status models.WatchStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := param(r, "id")
		if !s.authorize(w, r, uid) {
			return
		}
		movieID, ok := intParam(w, r, "movieId")
		if !ok {
			return
		}
		if err := s.store.Unsave(uid, movieID, status); err != nil {
			respondStoreError(r.Context(), w, err, "movie not saved with status "+status.String())
			return
		}
		respondResult(r.Context(), w, http.StatusOK, "movie removed")
	}
}

func (s *Server) listSchedules(w http.ResponseWriter, r *http.Request) {
	respondResults(r.Context(), w, s.store.Schedules(param(r, "id")))
}

func (s *Server) getSchedule(w http.ResponseWriter, r *http.Request) {
	schedule, err := s.store.Schedule(param(r, "id"), param(r, "isoDate"))
	if err != nil {
		respondStoreError(r.Context(), w, err, "schedule not found")
		return
	}
	respondResult(r.Context(), w, http.StatusOK, schedule)
}

func (s *Server) createSchedule(w http.ResponseWriter, r *http.Request) {
	uid := param(r, "id")
	if !s.authorize(w, r, uid) {
		return
	}
	var req models.NewSchedule
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.store.CreateSchedule(uid, req); err != nil {
		respondStoreError(r.Context(), w, err, "cannot create schedule")
		return
	}
	respondResult(r.Context(), w, http.StatusCreated, "schedule created")
}

func (s *Server) editSchedule(w http.ResponseWriter, r *http.Request) {
	uid := param(r, "id")
	if !s.authorize(w, r, uid) {
		return
	}
	var req models.ScheduleEdit
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.store.EditSchedule(uid, param(r, "isoDate"), req); err != nil {
		respondStoreError(r.Context(), w, err, "cannot edit schedule")
		return
	}
	respondResult(r.Context(), w, http.StatusOK, "schedule updated")
}

func (s *Server) deleteSchedule(w http.ResponseWriter, r *http.Request) {
	uid := param(r, "id")
	if !s.authorize(w, r, uid) {
		return
	}
	if err := s.store.DeleteSchedule(uid, param(r, "isoDate")); err != nil {
		respondStoreError(r.Context(), w, err, "schedule not found")
		return
	}
	respondResult(r.Context(), w, http.StatusOK, "schedule deleted")
}

func (s *Server) listUserReviews(w http.ResponseWriter, r *http.Request) {
	respondResults(r.Context(), w, s.store.ReviewedMovies(param(r, "id")))
}

func (s *Server) searchMovies(w http.ResponseWriter, r *http.Request) {
	respondResults(r.Context(), w, s.store.SearchMovies(param(r, "query")))
}

func (s *Server) recommendations(w http.ResponseWriter, r *http.Request) {
	category := param(r, "category")
	if !movies.ValidCategory(category) {
		respondError(r.Context(), w, http.StatusBadRequest, "unknown category", category)
		return
	}
	respondResults(r.Context(), w, s.store.Recommend(category))
}

func (s *Server) getMovie(w http.ResponseWriter, r *http.Request) {
	movieID, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	movie, err := s.store.Movie(movieID)
	if err != nil {
		respondStoreError(r.Context(), w, err, "movie not found")
		return
	}
	respondResult(r.Context(), w, http.StatusOK, movie)
}

func (s *Server) overallRating(w http.ResponseWriter, r *http.Request) {
	movieID, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	respondResult(r.Context(), w, http.StatusOK, s.store.OverallRating(movieID))
}

func (s *Server) listMovieReviews(w http.ResponseWriter, r *http.Request) {
	movieID, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	respondResults(r.Context(), w, s.store.MovieReviews(movieID))
}

func (s *Server) getReview(w http.ResponseWriter, r *http.Request) {
	movieID, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	review, err := s.store.Review(movieID, param(r, "userId"))
	if err != nil {
		respondStoreError(r.Context(), w, err, "review not found")
		return
	}
	respondResult(r.Context(), w, http.StatusOK, review)
}

func (s *Server) createReview(w http.ResponseWriter, r *http.Request) {
	movieID, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		UserID string `json:"userId"`
		models.ReviewInput
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if !s.authorize(w, r, req.UserID) {
		return
	}
	if err := s.store.CreateReview(movieID, req.UserID, req.ReviewInput); err != nil {
		respondStoreError(r.Context(), w, err, "cannot create review")
		return
	}
	respondResult(r.Context(), w, http.StatusCreated, "review created")
}

func (s *Server) editReview(w http.ResponseWriter, r *http.Request) {
	movieID, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	uid := param(r, "userId")
	if !s.authorize(w, r, uid) {
		return
	}
	var req models.ReviewInput
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.store.EditReview(movieID, uid, req); err != nil {
		respondStoreError(r.Context(), w, err, "cannot edit review")
		return
	}
	respondResult(r.Context(), w, http.StatusOK, "review updated")
}

func (s *Server) deleteReview(w http.ResponseWriter, r *http.Request) {
	movieID, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	uid := param(r, "userId")
	if !s.authorize(w, r, uid) {
		return
	}
	if err := s.store.DeleteReview(movieID, uid); err != nil {
		respondStoreError(r.Context(), w, err, "review not found")
		return
	}
	respondResult(r.Context(), w, http.StatusOK, "review deleted")
}

// authorize checks that the bearer token belongs to uid and writes the error
// response when it does not.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, uid string) bool {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		respondError(r.Context(), w, http.StatusUnauthorized, "missing bearer token", "")
		return false
	}
	session, err := auth.ParseToken(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		respondError(r.Context(), w, http.StatusUnauthorized, "invalid bearer token", err.Error())
		return false
	}
	if session.Expired(s.now()) {
		respondError(r.Context(), w, http.StatusUnauthorized, "token expired", "")
		return false
	}
	if session.UserID != uid {
		respondError(r.Context(), w, http.StatusForbidden, "cannot modify another user's data", "")
		return false
	}
	return true
}

func param(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(param(r, name))
	if err != nil {
		respondError(r.Context(), w, http.StatusBadRequest, "invalid "+name, err.Error())
		return 0, false
	}
	return v, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		logging.FromContext(r.Context()).Warn("invalid request payload", "error", err)
		respondError(r.Context(), w, http.StatusBadRequest, "invalid request body", err.Error())
		return false
	}
	return true
}

func respondResult(ctx context.Context, w http.ResponseWriter, status int, result any) {
	respondJSON(ctx, w, status, map[string]any{"result": result})
}

func respondResults(ctx context.Context, w http.ResponseWriter, results any) {
	respondJSON(ctx, w, http.StatusOK, map[string]any{"results": results})
}

func respondError(ctx context.Context, w http.ResponseWriter, status int, message, detail string) {
	body := map[string]string{"message": message}
	if detail != "" {
		body["error"] = detail
	}
	respondJSON(ctx, w, status, body)
}

func respondStoreError(ctx context.Context, w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, ErrNotFound):
		respondError(ctx, w, http.StatusNotFound, message, err.Error())
	case errors.Is(err, ErrConflict):
		respondError(ctx, w, http.StatusConflict, message, err.Error())
	case errors.Is(err, ErrInvalid):
		respondError(ctx, w, http.StatusBadRequest, message, err.Error())
	default:
		respondError(ctx, w, http.StatusInternalServerError, message, err.Error())
	}
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cinemate/client/internal/datasync"
	"github.com/cinemate/client/internal/devbackend"
	"github.com/cinemate/client/internal/models"
)

func startBackend(t *testing.T) *devbackend.Store {
	t.Helper()
	store := devbackend.NewStore()
	devbackend.Seed(store, "u1")
	srv := httptest.NewServer(devbackend.New(devbackend.Options{
		Store:  store,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}))
	t.Cleanup(srv.Close)

	t.Setenv("CINEMATE_BACKEND_BASE_URL", srv.URL)
	t.Setenv("CINEMATE_LOG_LEVEL", "error")
	t.Setenv("CINEMATE_PHOTOS_BUCKET", "")
	return store
}

func signToken(t *testing.T, uid string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": uid,
		"email":   uid + "@example.com",
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestRunRejectsUnknownCommands(t *testing.T) {
	startBackend(t)

	if err := run(context.Background(), nil, io.Discard); err == nil || err.Error() != usage {
		t.Fatalf("expected usage error got %v", err)
	}
	if err := run(context.Background(), []string{"serve"}, io.Discard); err == nil {
		t.Fatal("expected unknown command error")
	}
}

func TestRunReadCommands(t *testing.T) {
	startBackend(t)
	ctx := context.Background()

	var out bytes.Buffer
	if err := run(ctx, []string{"friends", "u1"}, &out); err != nil {
		t.Fatalf("friends: %v", err)
	}
	if strings.TrimSpace(out.String()) != "ava" {
		t.Fatalf("expected ava got %q", out.String())
	}

	out.Reset()
	if err := run(ctx, []string{"search", "the", "matrix"}, &out); err != nil {
		t.Fatalf("search: %v", err)
	}
	if !strings.Contains(out.String(), "603\tThe Matrix\thttps://image.tmdb.org/t/p/original/") {
		t.Fatalf("unexpected search output %q", out.String())
	}
}

func TestRunWriteCommands(t *testing.T) {
	store := startBackend(t)
	ctx := context.Background()
	token := signToken(t, "u1")

	if err := run(ctx, []string{"status", token, "13", "watched"}, io.Discard); err != nil {
		t.Fatalf("status: %v", err)
	}
	found := false
	for _, m := range store.SavedMovies("u1", models.WatchStatusWatched) {
		if m.MovieID == 13 {
			found = true
		}
	}
	if !found {
		t.Fatal("expected movie 13 to be watched")
	}

	err := run(ctx, []string{"status", token, "550", "watchlist"}, io.Discard)
	if !errors.Is(err, datasync.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition got %v", err)
	}

	if err := run(ctx, []string{"status", token, "13", "later"}, io.Discard); err == nil {
		t.Fatal("expected unknown status error")
	}

	if err := run(ctx, []string{"block", token, "ava"}, io.Discard); err != nil {
		t.Fatalf("block: %v", err)
	}
	if len(store.Friends("u1")) != 0 || len(store.BlockedUsers("u1")) != 1 {
		t.Fatalf("expected ava blocked and unfriended")
	}
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	logger := newLogger("chatty", io.Discard)
	if !logger.Enabled(context.Background(), slog.LevelInfo) || logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected info level")
	}
}

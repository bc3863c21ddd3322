package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/cinemate/client/internal/config"
	"github.com/cinemate/client/internal/devbackend"
	"github.com/cinemate/client/internal/httpserver"
	"github.com/cinemate/client/internal/models"
	"github.com/cinemate/client/internal/mutation"
)

const usage = "expected command: devserver, friends, search, block, status, or complete"

// Run bootstraps the Cinemate command line client.
func Run(ctx context.Context, args []string) error {
	return run(ctx, args, os.Stdout)
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel, os.Stderr)
	slog.SetDefault(logger)

	switch args[0] {
	case "devserver":
		return serveDev(ctx, cfg, logger)
	case "friends", "search", "block", "status", "complete":
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}

	deps, cleanup, err := buildDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = cleanup(context.Background())
	}()

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "friends":
		return listFriends(ctx, deps, rest, out)
	case "search":
		return searchMovies(ctx, deps, rest, out)
	case "block":
		return blockUser(ctx, deps, rest, out)
	case "status":
		return setWatchStatus(ctx, deps, rest, out)
	default:
		return completeSchedule(ctx, deps, rest, out)
	}
}

func newLogger(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{AddSource: true, Level: lvl}))
}

func serveDev(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store := devbackend.NewStore()
	if cfg.DevServerSeedUserID != "" {
		devbackend.Seed(store, cfg.DevServerSeedUserID)
		logger.Info("seeded development data", "user_id", cfg.DevServerSeedUserID)
	}

	handler := devbackend.New(devbackend.Options{
		Store:          store,
		AllowedOrigins: cfg.DevServerOrigins,
		Logger:         logger,
	})

	srv := httpserver.New(cfg.DevServerPort, handler, logger)
	return srv.Run(ctx)
}

func listFriends(ctx context.Context, deps dependencies, args []string, out io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: friends <userId>")
	}
	state := deps.Layer.Friends(ctx, args[0])
	if state.Err != nil {
		return state.Err
	}
	for _, friend := range state.Data {
		fmt.Fprintln(out, friend.FriendID)
	}
	return nil
}

func searchMovies(ctx context.Context, deps dependencies, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("usage: search <query>")
	}
	search := deps.Layer.MovieSearch()
	search.SetDraft(strings.Join(args, " "))
	state := search.Submit(ctx)
	if state.Err != nil {
		return state.Err
	}
	for _, movie := range state.Data {
		fmt.Fprintf(out, "%d\t%s\t%s\n", movie.ID, movie.Title, deps.Layer.PosterURL(movie.PosterPath))
	}
	return nil
}

func blockUser(ctx context.Context, deps dependencies, args []string, out io.Writer) error {
	if len(args) != 2 {
		return errors.New("usage: block <token> <userId>")
	}
	if err := signIn(ctx, deps, args[0]); err != nil {
		return err
	}
	if err := deps.Layer.BlockUser(ctx, args[1]); err != nil {
		return err
	}
	fmt.Fprintf(out, "blocked %s\n", args[1])
	return nil
}

func setWatchStatus(ctx context.Context, deps dependencies, args []string, out io.Writer) error {
	if len(args) != 3 {
		return errors.New("usage: status <token> <movieId> <none|watchlist|watched>")
	}
	movieID, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid movie id %q", args[1])
	}
	status, err := parseWatchStatus(args[2])
	if err != nil {
		return err
	}
	if err := signIn(ctx, deps, args[0]); err != nil {
		return err
	}
	if err := deps.Layer.SetWatchStatus(ctx, movieID, status); err != nil {
		return err
	}
	fmt.Fprintf(out, "movie %d is now %s\n", movieID, status)
	return nil
}

func completeSchedule(ctx context.Context, deps dependencies, args []string, out io.Writer) error {
	if len(args) != 2 {
		return errors.New("usage: complete <token> <isoDate>")
	}
	if err := signIn(ctx, deps, args[0]); err != nil {
		return err
	}
	if err := deps.Layer.CompleteSchedule(ctx, args[1]); err != nil {
		var chainErr *mutation.ChainError
		if errors.As(err, &chainErr) && chainErr.Partial() {
			fmt.Fprintf(out, "completed steps: %s\n", strings.Join(chainErr.Completed, ", "))
		}
		return err
	}
	fmt.Fprintf(out, "completed %s\n", args[1])
	return nil
}

func signIn(ctx context.Context, deps dependencies, token string) error {
	_, err := deps.Auth.SignIn(ctx, token)
	return err
}

func parseWatchStatus(value string) (models.WatchStatus, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "none":
		return models.WatchStatusNone, nil
	case "watchlist":
		return models.WatchStatusWatchList, nil
	case "watched":
		return models.WatchStatusWatched, nil
	default:
		return "", fmt.Errorf("unknown watch status %q", value)
	}
}

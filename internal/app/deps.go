package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/cinemate/client/internal/api"
	"github.com/cinemate/client/internal/auth"
	"github.com/cinemate/client/internal/config"
	"github.com/cinemate/client/internal/datasync"
	"github.com/cinemate/client/internal/query"
	"github.com/cinemate/client/internal/storage"
)

// limiterIdleTTL is how long an unused per-route rate limit bucket is kept.
const limiterIdleTTL = 10 * time.Minute

type dependencies struct {
	Auth   *auth.Manager
	API    *api.Client
	Photos *storage.S3PhotoStore
	Layer  *datasync.Layer
}

// buildDependencies wires together the concrete implementations behind the data layer.
func buildDependencies(ctx context.Context, cfg config.Config, logger *slog.Logger) (dependencies, func(context.Context) error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	manager := auth.NewManager(auth.NewInMemorySessionStore(), nil, logger)

	client, err := api.New(api.Options{
		BaseURL: cfg.BackendBaseURL,
		Timeout: cfg.RequestTimeout,
		Tokens:  manager,
		Limiter: api.NewRouteRateLimiter(cfg.APIRequestsPerSecond, cfg.APIBurst, limiterIdleTTL),
		Logger:  logger,
	})
	if err != nil {
		return dependencies{}, nil, err
	}

	deps := dependencies{Auth: manager, API: client}

	opts := datasync.Options{
		Backend:    client,
		Identity:   manager,
		ImageBase:  cfg.ImageCDNBase,
		StaleTime:  cfg.CacheStaleTime,
		IdleTTL:    cfg.CacheIdleTTL,
		MaxEntries: cfg.CacheMaxEntries,
		OnMutation: func(key query.Key, running bool) {
			logger.Debug("mutation state changed", "mutation", key.String(), "running", running)
		},
		Logger: logger,
	}
	if cfg.Photos.Enabled() {
		photos, err := storage.NewS3PhotoStore(ctx, cfg.Photos)
		if err != nil {
			return dependencies{}, nil, err
		}
		deps.Photos = photos
		opts.Photos = photos
	}

	layer, err := datasync.New(opts)
	if err != nil {
		return dependencies{}, nil, err
	}
	deps.Layer = layer

	cleanup := func(context.Context) error {
		layer.Close()
		return nil
	}
	return deps, cleanup, nil
}

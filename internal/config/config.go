package config

import (
	"errors"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures the runtime configuration for the Cinemate client.
type Config struct {
	BackendBaseURL string
	ImageCDNBase   string
	RequestTimeout time.Duration
	LogLevel       string

	CacheStaleTime  time.Duration
	CacheIdleTTL    time.Duration
	CacheMaxEntries int

	APIRequestsPerSecond float64
	APIBurst             int

	DevServerPort       int
	DevServerOrigins    []string
	DevServerSeedUserID string

	Photos ObjectStoreConfig
}

// ObjectStoreConfig points at the S3-compatible bucket holding profile photos.
type ObjectStoreConfig struct {
	Bucket        string
	Region        string
	Endpoint      string
	PublicBaseURL string
}

// Enabled reports whether a bucket was configured.
func (c ObjectStoreConfig) Enabled() bool {
	return strings.TrimSpace(c.Bucket) != ""
}

// Load reads configuration from a local .env file, when present, and the
// environment, applying defaults suited to local development.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		BackendBaseURL: getString("CINEMATE_BACKEND_BASE_URL", "http://localhost:8080"),
		ImageCDNBase:   getString("CINEMATE_IMAGE_CDN_BASE", "https://image.tmdb.org/t/p/original/"),
		RequestTimeout: getDuration("CINEMATE_REQUEST_TIMEOUT", 15*time.Second),
		LogLevel:       getString("CINEMATE_LOG_LEVEL", "info"),

		CacheStaleTime:  getDuration("CINEMATE_CACHE_STALE_TIME", 0),
		CacheIdleTTL:    getDuration("CINEMATE_CACHE_IDLE_TTL", 10*time.Minute),
		CacheMaxEntries: getInt("CINEMATE_CACHE_MAX_ENTRIES", 512),

		APIRequestsPerSecond: getFloat("CINEMATE_API_RATE", 10),
		APIBurst:             getInt("CINEMATE_API_BURST", 20),

		DevServerPort:       getInt("CINEMATE_DEVSERVER_PORT", 8080),
		DevServerOrigins:    getList("CINEMATE_DEVSERVER_ORIGINS", []string{"http://localhost:8081", "http://localhost:19006"}),
		DevServerSeedUserID: getString("CINEMATE_DEVSERVER_SEED_USER", "demo-user"),

		Photos: ObjectStoreConfig{
			Bucket:        getString("CINEMATE_PHOTOS_BUCKET", ""),
			Region:        getString("CINEMATE_PHOTOS_REGION", "us-east-1"),
			Endpoint:      getString("CINEMATE_PHOTOS_ENDPOINT", ""),
			PublicBaseURL: getString("CINEMATE_PHOTOS_PUBLIC_URL", ""),
		},
	}

	if _, err := url.ParseRequestURI(cfg.BackendBaseURL); err != nil {
		return Config{}, errors.New("CINEMATE_BACKEND_BASE_URL must be an absolute URL")
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return i
}

func getFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func getList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Package api is the client for the Cinemate backend REST service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cinemate/client/internal/logging"
)

const maxResponseBytes = 4 << 20

// TokenSource supplies the bearer token attached to every request. An empty
// token sends the request unauthenticated.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Tokens     TokenSource
	Limiter    RateLimiter
	Logger     *slog.Logger
}

// Client calls the backend. Reads are GET; mutations are POST, PATCH and DELETE.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	limiter RateLimiter
	logger  *slog.Logger
}

// New constructs a Client for the backend at opts.BaseURL.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(opts.BaseURL))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("api: invalid base url %q", opts.BaseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: strings.TrimRight(base.String(), "/"),
		http:    httpClient,
		tokens:  opts.Tokens,
		limiter: opts.Limiter,
		logger:  logger,
	}, nil
}

// do sends a request and returns the body of a 2xx response. route is the
// path template used for rate limiting and logs, e.g. "/user/:id/friends".
func (c *Client) do(ctx context.Context, method, route, path string, payload any) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, method+" "+route); err != nil {
			return nil, &TransportError{Method: method, Path: path, Err: err}
		}
	}

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, &TransportError{Method: method, Path: path, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	requestID := logging.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req.Header.Set("X-Request-ID", requestID)

	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s %s: token: %w", method, path, err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	logger := logging.FromContext(ctx)
	if logger == slog.Default() {
		logger = c.logger
	}
	logger = logger.With(
		slog.String("request_id", requestID),
		slog.String("method", method),
		slog.String("route", route),
	)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		logger.Warn("backend request failed", "error", err)
		return nil, &TransportError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{Method: method, Path: path, Err: err}
	}

	logger.Debug("backend request completed",
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message, detail := decodeErrorEnvelope(data)
		return nil, &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Message:    message,
			Detail:     detail,
		}
	}
	return data, nil
}

func (c *Client) send(ctx context.Context, method, route, path string, payload any) error {
	_, err := c.do(ctx, method, route, path, payload)
	return err
}

func segment(v any) string {
	return url.PathEscape(fmt.Sprint(v))
}

// IsNotFound reports whether err is a backend 404.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/cinemate/client/internal/logging"
)

var (
	// ErrClosed is reported by queries issued after the cache was closed.
	ErrClosed = errors.New("query cache closed")
	// ErrNoFetcher is reported when a key is refetched but no fetcher is known for it.
	ErrNoFetcher = errors.New("no fetcher registered for key")
)

// Options tunes a Cache.
type Options struct {
	// Resolver supplies default fetchers for keys refetched before first use.
	Resolver Resolver
	// StaleTime is how long a successful result is served without refetching.
	// Zero keeps results fresh until they are invalidated or refetched.
	StaleTime time.Duration
	// IdleTTL evicts entries that nobody read for this long and that have no
	// fetch in flight.
	IdleTTL time.Duration
	// MaxEntries caps the number of entries. Least recently used idle entries
	// are evicted first.
	MaxEntries int
	Logger     *slog.Logger
}

type entry struct {
	key        Key
	result     Result
	fetcher    Fetcher
	gen        uint64
	running    bool
	stale      bool
	lastAccess time.Time
}

// Cache is a keyed store of query results shared by every consumer of the
// process. Concurrent requests for equal keys share a single fetch.
type Cache struct {
	resolver   Resolver
	staleTime  time.Duration
	idleTTL    time.Duration
	maxEntries int
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	group  singleflight.Group

	mu      sync.Mutex
	entries map[string]*entry
	seq     uint64
	closed  bool
	now     func() time.Time
}

// New constructs a cache. Close releases in-flight fetches.
func New(opts Options) *Cache {
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 10 * time.Minute
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = 512
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Cache{
		resolver:   opts.Resolver,
		staleTime:  opts.StaleTime,
		idleTTL:    opts.IdleTTL,
		maxEntries: opts.MaxEntries,
		logger:     opts.Logger,
		ctx:        ctx,
		cancel:     cancel,
		entries:    make(map[string]*entry),
		now:        time.Now,
	}
}

// Option adjusts a single query call.
type Option func(*queryOptions)

type queryOptions struct {
	enabled   bool
	staleTime *time.Duration
}

// Enabled gates a query. A disabled query never calls its fetcher and reports
// the current snapshot, which is StatusIdle when the key was never fetched.
func Enabled(enabled bool) Option {
	return func(o *queryOptions) {
		o.enabled = enabled
	}
}

// StaleTime overrides the cache-wide stale time for one call.
func StaleTime(d time.Duration) Option {
	return func(o *queryOptions) {
		o.staleTime = &d
	}
}

// Handle tracks one fetch of a key.
type Handle struct {
	cache *Cache
	key   Key
	done  chan struct{}
	err   error
}

// Done is closed once the fetch behind the handle resolved.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the fetch resolved or ctx ends and returns the entry's
// snapshot. The fetch itself keeps running when ctx ends.
func (h *Handle) Wait(ctx context.Context) (Result, error) {
	if h.err != nil {
		return Result{Status: StatusError, Err: h.err}, nil
	}
	select {
	case <-h.done:
		return h.cache.Peek(h.key), nil
	case <-ctx.Done():
		return h.cache.Peek(h.key), ctx.Err()
	}
}

// Query returns the result for key. Fresh cached data is returned right away;
// otherwise the call starts a fetch, or joins one already in flight, and waits
// for it. Fetch errors are reported in the result, never returned.
// When a refetch supersedes the joined run, Query keeps waiting on the newer
// run so a loading snapshot is never returned as the outcome.
func (c *Cache) Query(ctx context.Context, key Key, fetch Fetcher, opts ...Option) Result {
	h := c.Fetch(ctx, key, fetch, opts...)
	result, err := h.Wait(ctx)
	if !optionsFrom(opts).enabled {
		return result
	}
	for err == nil && result.Fetching {
		result, err = c.rejoin(ctx, key).Wait(ctx)
	}
	return result
}

// rejoin returns a handle on the run in flight for key, or a resolved handle
// when none is running.
func (c *Cache) rejoin(ctx context.Context, key Key) *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entries[key.hash()]
	if e == nil || !e.running {
		return c.resolvedLocked(key)
	}
	return c.joinLocked(ctx, e)
}

func optionsFrom(opts []Option) queryOptions {
	o := queryOptions{enabled: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Fetch is the non-blocking form of Query.
func (c *Cache) Fetch(ctx context.Context, key Key, fetch Fetcher, opts ...Option) *Handle {
	o := optionsFrom(opts)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.gcLocked(now)

	if c.closed {
		h := c.resolvedLocked(key)
		h.err = ErrClosed
		return h
	}

	e := c.entries[key.hash()]
	if e == nil {
		if !o.enabled {
			return c.resolvedLocked(key)
		}
		e = &entry{key: key, result: Result{Status: StatusIdle}, lastAccess: now}
		c.entries[key.hash()] = e
		defer c.evictLocked()
	}
	e.lastAccess = now
	if fetch != nil {
		e.fetcher = fetch
	}

	if !o.enabled {
		return c.resolvedLocked(key)
	}
	if e.running {
		return c.joinLocked(ctx, e)
	}

	staleTime := c.staleTime
	if o.staleTime != nil {
		staleTime = *o.staleTime
	}
	if c.freshLocked(e, now, staleTime) {
		return c.resolvedLocked(key)
	}

	return c.startLocked(ctx, e)
}

// Peek returns the current snapshot of key without fetching.
func (c *Cache) Peek(key Key) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entries[key.hash()]
	if e == nil {
		return Result{Status: StatusIdle}
	}
	e.lastAccess = c.now()
	return snapshot(e)
}

// Invalidate marks key stale. Its data stays readable until a refetch replaces it.
func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e := c.entries[key.hash()]; e != nil {
		e.stale = true
	}
}

// InvalidatePrefix marks every key starting with prefix stale.
func (c *Cache) InvalidatePrefix(prefix ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.entries {
		if e.key.HasPrefix(prefix...) {
			e.stale = true
		}
	}
}

// Refetch starts a new fetch of key regardless of freshness. A fetch already
// in flight is superseded: its result is discarded when it resolves.
func (c *Cache) Refetch(ctx context.Context, key Key) *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.gcLocked(now)

	if c.closed {
		h := c.resolvedLocked(key)
		h.err = ErrClosed
		return h
	}

	e := c.entries[key.hash()]
	if e == nil {
		e = &entry{key: key, result: Result{Status: StatusIdle}, lastAccess: now}
		c.entries[key.hash()] = e
		defer c.evictLocked()
	}
	e.lastAccess = now

	if e.fetcher == nil && c.resolver != nil {
		if fetch, ok := c.resolver(key); ok {
			e.fetcher = fetch
		}
	}
	if e.fetcher == nil {
		c.logger.Warn("refetch skipped", "key", key.String(), "error", ErrNoFetcher)
		if e.result.Status == StatusIdle {
			delete(c.entries, key.hash())
		}
		return c.resolvedLocked(key)
	}

	return c.startLocked(ctx, e)
}

// Remove drops key from the cache. A fetch in flight for it is discarded.
func (c *Cache) Remove(key Key) {
	c.mu.Lock()
	delete(c.entries, key.hash())
	c.mu.Unlock()
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*entry)
	c.mu.Unlock()
}

// Len reports the number of entries held.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close cancels in-flight fetches and drops every entry.
func (c *Cache) Close() {
	c.mu.Lock()
	c.closed = true
	c.entries = make(map[string]*entry)
	c.mu.Unlock()
	c.cancel()
}

func (c *Cache) freshLocked(e *entry, now time.Time, staleTime time.Duration) bool {
	if e.stale || e.result.Status != StatusSuccess {
		return false
	}
	if staleTime <= 0 {
		return true
	}
	return now.Sub(e.result.UpdatedAt) < staleTime
}

func (c *Cache) resolvedLocked(key Key) *Handle {
	done := make(chan struct{})
	close(done)
	return &Handle{cache: c, key: key, done: done}
}

func (c *Cache) joinLocked(ctx context.Context, e *entry) *Handle {
	fetch := e.fetcher
	if fetch == nil {
		fetch = func(context.Context) (any, error) { return nil, ErrNoFetcher }
	}
	return c.doLocked(ctx, e, e.gen, fetch)
}

func (c *Cache) startLocked(ctx context.Context, e *entry) *Handle {
	fetch := e.fetcher
	if fetch == nil && c.resolver != nil {
		if resolved, ok := c.resolver(e.key); ok {
			fetch = resolved
			e.fetcher = resolved
		}
	}
	if fetch == nil {
		fetch = func(context.Context) (any, error) { return nil, ErrNoFetcher }
	}

	c.seq++
	e.gen = c.seq
	e.running = true
	if e.result.Status == StatusIdle {
		e.result.Status = StatusLoading
	}
	return c.doLocked(ctx, e, e.gen, fetch)
}

// doLocked joins the singleflight call for generation gen of the entry.
// Generations are unique across the cache, so a refetch never joins a
// superseded run, even one of a removed entry.
func (c *Cache) doLocked(ctx context.Context, e *entry, gen uint64, fetch Fetcher) *Handle {
	flightKey := e.key.hash() + "@" + strconv.FormatUint(gen, 10)
	fetchCtx := c.fetchContext(ctx)

	ch := c.group.DoChan(flightKey, func() (any, error) {
		data, err := c.run(fetchCtx, e.key, fetch)
		c.complete(e, gen, data, err)
		return data, err
	})

	h := &Handle{cache: c, key: e.key, done: make(chan struct{})}
	go func() {
		<-ch
		close(h.done)
	}()
	return h
}

// fetchContext detaches the fetch from the caller while keeping its logger and
// trace so the fetch outlives an abandoned wait.
func (c *Cache) fetchContext(ctx context.Context) context.Context {
	fetchCtx := logging.WithLogger(c.ctx, c.logger)
	if ctx == nil {
		return fetchCtx
	}
	fetchCtx = logging.WithLogger(fetchCtx, logging.FromContext(ctx))
	fetchCtx = logging.WithTraceID(fetchCtx, logging.TraceIDFromContext(ctx))
	fetchCtx = logging.WithSpanID(fetchCtx, logging.SpanIDFromContext(ctx))
	return fetchCtx
}

func (c *Cache) run(ctx context.Context, key Key, fetch Fetcher) (data any, err error) {
	ctx, span := logging.StartSpan(ctx, "query "+key.String())
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			logging.FromContext(ctx).Error("query fetcher panicked", "key", key.String(), "panic", rec)
			data = nil
			err = fmt.Errorf("query %s: fetcher panic: %v", key, rec)
		}
		span.Fail(err)
	}()

	return fetch(ctx)
}

func (c *Cache) complete(e *entry, gen uint64, data any, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if current := c.entries[e.key.hash()]; current != e || e.gen != gen {
		return
	}

	e.running = false
	if err != nil {
		e.result.Status = StatusError
		e.result.Err = err
		return
	}

	e.result = Result{
		Status:    StatusSuccess,
		Data:      data,
		UpdatedAt: c.now(),
	}
	e.stale = false
}

func snapshot(e *entry) Result {
	r := e.result
	r.Fetching = e.running
	r.Stale = e.stale
	return r
}

func (c *Cache) gcLocked(now time.Time) {
	for hash, e := range c.entries {
		if e.running {
			continue
		}
		if now.Sub(e.lastAccess) > c.idleTTL {
			delete(c.entries, hash)
		}
	}
}

func (c *Cache) evictLocked() {
	if len(c.entries) <= c.maxEntries {
		return
	}

	idle := make([]string, 0, len(c.entries))
	for hash, e := range c.entries {
		if !e.running {
			idle = append(idle, hash)
		}
	}
	sort.Slice(idle, func(i, j int) bool {
		return c.entries[idle[i]].lastAccess.Before(c.entries[idle[j]].lastAccess)
	})

	for _, hash := range idle {
		if len(c.entries) <= c.maxEntries {
			return
		}
		delete(c.entries, hash)
	}
}

// WithNowFunc allows tests to override the time source.
func (c *Cache) WithNowFunc(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

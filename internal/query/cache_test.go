package query

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestCache(opts Options) *Cache {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return New(opts)
}

type countingFetcher struct {
	calls   atomic.Int32
	release chan struct{}
	data    any
	err     error
}

func (f *countingFetcher) fetch(ctx context.Context) (any, error) {
	f.calls.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.data, f.err
}

func TestKeyIdentity(t *testing.T) {
	tests := []struct {
		name  string
		a, b  Key
		equal bool
	}{
		{name: "same parts", a: NewKey("getFriends", "u1"), b: NewKey("getFriends", "u1"), equal: true},
		{name: "different user", a: NewKey("getFriends", "u1"), b: NewKey("getFriends", "u2")},
		{name: "numeric widths", a: NewKey("movieDetails", 42), b: NewKey("movieDetails", int64(42)), equal: true},
		{name: "string vs number", a: NewKey("movieDetails", "42"), b: NewKey("movieDetails", 42)},
		{name: "prefix only", a: NewKey("getSchedule", "u1"), b: NewKey("getSchedule", "u1", "2024-01-01")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.equal {
				t.Fatalf("expected equal=%v got %v", tt.equal, got)
			}
		})
	}

	key := NewKey("getSchedule", "u1", "2024-01-01")
	if !key.HasPrefix("getSchedule", "u1") {
		t.Fatal("expected key to match its prefix")
	}
	if key.HasPrefix("getSchedules") {
		t.Fatal("expected different family not to match")
	}
	if got := key.String(); got != "getSchedule:u1:2024-01-01" {
		t.Fatalf("unexpected key string %q", got)
	}
}

func TestQueryDeduplicatesConcurrentCalls(t *testing.T) {
	cache := newTestCache(Options{})
	defer cache.Close()

	f := &countingFetcher{release: make(chan struct{}), data: []string{"f1"}}
	key := NewKey("getFriends", "u1")

	var wg sync.WaitGroup
	results := make([]Result, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = cache.Query(context.Background(), NewKey("getFriends", "u1"), f.fetch)
		}(i)
	}

	waitForCondition(t, func() bool { return cache.Peek(key).Fetching }, time.Second)
	// give the second caller time to join the flight
	time.Sleep(20 * time.Millisecond)
	close(f.release)
	wg.Wait()

	if calls := f.calls.Load(); calls != 1 {
		t.Fatalf("expected fetcher called once got %d", calls)
	}
	for i, r := range results {
		if r.Status != StatusSuccess {
			t.Fatalf("caller %d: expected success got %s", i, r.Status)
		}
	}
}

func TestQueryServesFreshData(t *testing.T) {
	cache := newTestCache(Options{})
	defer cache.Close()

	f := &countingFetcher{data: 7}
	key := NewKey("getOverallRating", 550)

	first := Get(context.Background(), cache, key, func(ctx context.Context) (int, error) {
		v, err := f.fetch(ctx)
		return v.(int), err
	})
	if first.Status != StatusSuccess || first.Data != 7 {
		t.Fatalf("unexpected first state: %+v", first)
	}

	cache.Query(context.Background(), key, f.fetch)
	if calls := f.calls.Load(); calls != 1 {
		t.Fatalf("expected cached result got %d calls", calls)
	}
}

func TestInvalidateKeepsDataUntilRefetchResolves(t *testing.T) {
	cache := newTestCache(Options{})
	defer cache.Close()

	key := NewKey("getFriends", "u1")
	f := &countingFetcher{data: "old"}
	cache.Query(context.Background(), key, f.fetch)

	cache.Invalidate(key)
	peek := cache.Peek(key)
	if !peek.Stale || peek.Data != "old" || peek.Status != StatusSuccess {
		t.Fatalf("expected stale old data got %+v", peek)
	}

	f.release = make(chan struct{})
	f.data = "new"
	h := cache.Refetch(context.Background(), key)

	waitForCondition(t, func() bool { return cache.Peek(key).Fetching }, time.Second)
	mid := cache.Peek(key)
	if mid.Data != "old" || mid.Status != StatusSuccess {
		t.Fatalf("expected old data while revalidating got %+v", mid)
	}

	close(f.release)
	res, err := h.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if res.Data != "new" || res.Stale || res.Fetching {
		t.Fatalf("expected fresh new data got %+v", res)
	}
}

func TestQueryAfterInvalidateRefetches(t *testing.T) {
	cache := newTestCache(Options{})
	defer cache.Close()

	key := NewKey("getBlockedUsers", "u1")
	f := &countingFetcher{data: 1}
	cache.Query(context.Background(), key, f.fetch)
	cache.Invalidate(key)
	cache.Query(context.Background(), key, f.fetch)

	if calls := f.calls.Load(); calls != 2 {
		t.Fatalf("expected refetch after invalidate got %d calls", calls)
	}
}

func TestFetchErrorBecomesState(t *testing.T) {
	cache := newTestCache(Options{})
	defer cache.Close()

	key := NewKey("userProfile", "u1")
	f := &countingFetcher{data: "profile"}
	cache.Query(context.Background(), key, f.fetch)

	boom := errors.New("boom")
	f.err = boom
	res, _ := cache.Refetch(context.Background(), key).Wait(context.Background())
	if res.Status != StatusError || !errors.Is(res.Err, boom) {
		t.Fatalf("expected error state got %+v", res)
	}
	if res.Data != "profile" {
		t.Fatalf("expected previous data retained got %v", res.Data)
	}
}

func TestFetcherPanicBecomesError(t *testing.T) {
	cache := newTestCache(Options{})
	defer cache.Close()

	res := cache.Query(context.Background(), NewKey("movieDetails", 1), func(context.Context) (any, error) {
		panic("decoder exploded")
	})
	if res.Status != StatusError || res.Err == nil {
		t.Fatalf("expected error state from panic got %+v", res)
	}
}

func TestDisabledQueryNeverFetches(t *testing.T) {
	cache := newTestCache(Options{})
	defer cache.Close()

	f := &countingFetcher{data: "x"}
	res := cache.Query(context.Background(), NewKey("searchMovies", ""), f.fetch, Enabled(false))
	if res.Status != StatusIdle {
		t.Fatalf("expected idle got %s", res.Status)
	}
	if calls := f.calls.Load(); calls != 0 {
		t.Fatalf("expected no fetch got %d", calls)
	}
	if cache.Len() != 0 {
		t.Fatalf("expected disabled query not to allocate an entry got %d", cache.Len())
	}
}

func TestRefetchSupersedesInFlight(t *testing.T) {
	cache := newTestCache(Options{})
	defer cache.Close()

	key := NewKey("getSchedules", "u1")
	var order []string
	var mu sync.Mutex
	gate := make(chan struct{})
	calls := 0
	fetch := func(ctx context.Context) (any, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			<-gate
			mu.Lock()
			order = append(order, "older")
			mu.Unlock()
			return "older", nil
		}
		mu.Lock()
		order = append(order, "newer")
		mu.Unlock()
		return "newer", nil
	}

	older := cache.Fetch(context.Background(), key, fetch)
	waitForCondition(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 1
	}, time.Second)
	newer := cache.Refetch(context.Background(), key)
	if _, err := newer.Wait(context.Background()); err != nil {
		t.Fatalf("wait newer: %v", err)
	}
	close(gate)
	if _, err := older.Wait(context.Background()); err != nil {
		t.Fatalf("wait older: %v", err)
	}

	if got := cache.Peek(key).Data; got != "newer" {
		t.Fatalf("expected newer result to win got %v (resolution order %v)", got, order)
	}
}

func TestQueryWaitsForSupersedingRun(t *testing.T) {
	cache := newTestCache(Options{})
	defer cache.Close()

	key := NewKey("getSavedMovies", "u1")
	firstGate := make(chan struct{})
	secondGate := make(chan struct{})
	var calls atomic.Int32
	var firstDone atomic.Bool
	fetch := func(ctx context.Context) (any, error) {
		if calls.Add(1) == 1 {
			<-firstGate
			firstDone.Store(true)
			return "older", nil
		}
		<-secondGate
		return "newer", nil
	}

	results := make(chan Result, 1)
	go func() {
		results <- cache.Query(context.Background(), key, fetch)
	}()
	waitForCondition(t, func() bool { return calls.Load() == 1 }, time.Second)

	cache.Refetch(context.Background(), key)
	waitForCondition(t, func() bool { return calls.Load() == 2 }, time.Second)

	close(firstGate)
	waitForCondition(t, firstDone.Load, time.Second)
	select {
	case res := <-results:
		t.Fatalf("expected query to wait for the newer run got status %s data %v", res.Status, res.Data)
	case <-time.After(50 * time.Millisecond):
	}

	close(secondGate)
	select {
	case res := <-results:
		if res.Status != StatusSuccess || res.Data != "newer" || res.Fetching {
			t.Fatalf("expected newer success got status %s data %v fetching %v", res.Status, res.Data, res.Fetching)
		}
	case <-time.After(time.Second):
		t.Fatal("query did not return")
	}
}

func TestRefetchUsesResolver(t *testing.T) {
	f := &countingFetcher{data: "resolved"}
	cache := newTestCache(Options{Resolver: func(key Key) (Fetcher, bool) {
		if key.HasPrefix("getFriends") {
			return f.fetch, true
		}
		return nil, false
	}})
	defer cache.Close()

	res, _ := cache.Refetch(context.Background(), NewKey("getFriends", "u1")).Wait(context.Background())
	if res.Data != "resolved" {
		t.Fatalf("expected resolver fetcher to run got %+v", res)
	}

	res, _ = cache.Refetch(context.Background(), NewKey("unknown")).Wait(context.Background())
	if res.Status != StatusIdle {
		t.Fatalf("expected unknown key to stay idle got %s", res.Status)
	}
	if cache.Len() != 1 {
		t.Fatalf("expected unknown key not to be retained got %d entries", cache.Len())
	}
}

func TestAbandonedWaitDoesNotCancelFetch(t *testing.T) {
	cache := newTestCache(Options{})
	defer cache.Close()

	key := NewKey("movieReviews", 9)
	f := &countingFetcher{release: make(chan struct{}), data: "reviews"}

	ctx, cancel := context.WithCancel(context.Background())
	h := cache.Fetch(ctx, key, f.fetch)
	cancel()
	if _, err := h.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled wait got %v", err)
	}

	close(f.release)
	<-h.Done()
	if res := cache.Peek(key); res.Status != StatusSuccess || res.Data != "reviews" {
		t.Fatalf("expected fetch to finish after caller left got %+v", res)
	}
}

func TestRemovedEntryIgnoresLateResult(t *testing.T) {
	cache := newTestCache(Options{})
	defer cache.Close()

	key := NewKey("getSchedule", "u1", "2024-05-01T20:00:00Z")
	f := &countingFetcher{release: make(chan struct{}), data: "late"}
	h := cache.Fetch(context.Background(), key, f.fetch)
	cache.Remove(key)
	close(f.release)
	<-h.Done()

	if res := cache.Peek(key); res.Status != StatusIdle {
		t.Fatalf("expected removed key to stay idle got %+v", res)
	}
}

func TestIdleEntriesExpire(t *testing.T) {
	cache := newTestCache(Options{IdleTTL: time.Minute})
	defer cache.Close()

	now := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	cache.WithNowFunc(func() time.Time { return now })

	f := &countingFetcher{data: 1}
	cache.Query(context.Background(), NewKey("a"), f.fetch)

	now = now.Add(2 * time.Minute)
	cache.Query(context.Background(), NewKey("b"), f.fetch)

	if cache.Len() != 1 {
		t.Fatalf("expected idle entry collected got %d entries", cache.Len())
	}
	if res := cache.Peek(NewKey("a")); res.Status != StatusIdle {
		t.Fatalf("expected expired key to read idle got %s", res.Status)
	}
}

func TestMaxEntriesEvictsLeastRecentlyUsed(t *testing.T) {
	cache := newTestCache(Options{MaxEntries: 2})
	defer cache.Close()

	now := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	cache.WithNowFunc(func() time.Time { return now })

	f := &countingFetcher{data: 1}
	for _, name := range []string{"a", "b"} {
		cache.Query(context.Background(), NewKey(name), f.fetch)
		now = now.Add(time.Second)
	}
	cache.Peek(NewKey("a"))
	now = now.Add(time.Second)
	cache.Query(context.Background(), NewKey("c"), f.fetch)

	if cache.Len() != 2 {
		t.Fatalf("expected 2 entries got %d", cache.Len())
	}
	if res := cache.Peek(NewKey("b")); res.Status != StatusIdle {
		t.Fatalf("expected least recently used key evicted got %s", res.Status)
	}
	if res := cache.Peek(NewKey("a")); res.Status != StatusSuccess {
		t.Fatalf("expected recently read key kept got %s", res.Status)
	}
}

func TestEvictionSparesNewEntryWhenOthersAreFetching(t *testing.T) {
	cache := newTestCache(Options{MaxEntries: 1})
	defer cache.Close()

	slow := &countingFetcher{release: make(chan struct{}), data: "slow"}
	pending := cache.Fetch(context.Background(), NewKey("a"), slow.fetch)
	waitForCondition(t, func() bool { return slow.calls.Load() == 1 }, time.Second)

	fast := &countingFetcher{data: "fast"}
	res := cache.Query(context.Background(), NewKey("b"), fast.fetch)
	if res.Status != StatusSuccess || res.Data != "fast" {
		t.Fatalf("expected new entry to keep its result got status %s data %v", res.Status, res.Data)
	}

	close(slow.release)
	if _, err := pending.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if cache.Len() != 2 {
		t.Fatalf("expected running entries to be spared got %d entries", cache.Len())
	}
}

func TestStaleTime(t *testing.T) {
	cache := newTestCache(Options{StaleTime: time.Minute})
	defer cache.Close()

	now := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	cache.WithNowFunc(func() time.Time { return now })

	f := &countingFetcher{data: 1}
	key := NewKey("movieDetails", 603)
	cache.Query(context.Background(), key, f.fetch)
	now = now.Add(30 * time.Second)
	cache.Query(context.Background(), key, f.fetch)
	if calls := f.calls.Load(); calls != 1 {
		t.Fatalf("expected fresh hit got %d calls", calls)
	}

	now = now.Add(time.Minute)
	cache.Query(context.Background(), key, f.fetch)
	if calls := f.calls.Load(); calls != 2 {
		t.Fatalf("expected refetch once stale got %d calls", calls)
	}

	cache.Query(context.Background(), key, f.fetch, StaleTime(time.Nanosecond))
	if calls := f.calls.Load(); calls != 2 {
		t.Fatalf("expected no refetch on entry updated at the current time got %d calls", calls)
	}
}

func TestInvalidatePrefix(t *testing.T) {
	cache := newTestCache(Options{})
	defer cache.Close()

	f := &countingFetcher{data: 1}
	cache.Query(context.Background(), NewKey("reviewDetails", 1, "u1"), f.fetch)
	cache.Query(context.Background(), NewKey("reviewDetails", 2, "u1"), f.fetch)
	cache.Query(context.Background(), NewKey("movieReviews", 1), f.fetch)

	cache.InvalidatePrefix("reviewDetails")

	if !cache.Peek(NewKey("reviewDetails", 1, "u1")).Stale || !cache.Peek(NewKey("reviewDetails", 2, "u1")).Stale {
		t.Fatal("expected review details invalidated")
	}
	if cache.Peek(NewKey("movieReviews", 1)).Stale {
		t.Fatal("expected other family untouched")
	}
}

func TestClosedCacheReportsError(t *testing.T) {
	cache := newTestCache(Options{})
	cache.Close()

	f := &countingFetcher{data: 1}
	res := cache.Query(context.Background(), NewKey("a"), f.fetch)
	if !errors.Is(res.Err, ErrClosed) {
		t.Fatalf("expected closed error got %+v", res)
	}
	if f.calls.Load() != 0 {
		t.Fatal("expected no fetch after close")
	}
}

func TestAsTypedView(t *testing.T) {
	state := As[[]string](Result{Status: StatusSuccess, Data: []string{"a"}, UpdatedAt: time.Now()})
	if len(state.Data) != 1 || !state.HasData() {
		t.Fatalf("unexpected typed state %+v", state)
	}

	mismatch := As[int](Result{Status: StatusSuccess, Data: "nope"})
	if mismatch.Data != 0 {
		t.Fatalf("expected zero value for mismatched type got %v", mismatch.Data)
	}
}

func waitForCondition(t *testing.T, predicate func() bool, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if predicate() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

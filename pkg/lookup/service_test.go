package lookup

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/goliatone/go-formrules/pkg/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func cities(country string) []model.LookupOption {
	switch country {
	case "RS":
		return []model.LookupOption{{Value: "bg", Label: "Belgrade"}, {Value: "ns", Label: "Novi Sad"}}
	default:
		return []model.LookupOption{{Value: "zg", Label: "Zagreb"}}
	}
}

type countingTransport struct {
	calls atomic.Int32
	gate  chan struct{}
	err   error
}

func (c *countingTransport) Fetch(ctx context.Context, req Request) ([]model.LookupOption, error) {
	c.calls.Add(1)
	if c.gate != nil {
		select {
		case <-c.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.err != nil {
		return nil, c.err
	}
	country, _ := req.Params["country"].(string)
	return cities(country), nil
}

func TestCacheKeyIsOrderIndependent(t *testing.T) {
	t.Parallel()

	a := CacheKey("cities", map[string]any{"a": 1, "b": 2})
	b := CacheKey("cities", map[string]any{"b": 2, "a": 1})
	require.Equal(t, a, b)
	require.Equal(t, `cities?a=1&b=2`, a)
	require.Equal(t, "cities", CacheKey("cities", nil))
	require.Equal(t, `cities?country="RS"`, CacheKey("cities", map[string]any{"country": "RS"}))
	require.NotEqual(t, CacheKey("cities", map[string]any{"n": 1}), CacheKey("cities", map[string]any{"n": "1"}))

	require.True(t, KeyMatchesRef(a, "cities"))
	require.True(t, KeyMatchesRef("cities", "cities"))
	require.False(t, KeyMatchesRef("citiesLarge?a=1", "cities"))
	require.Equal(t, "cities", RefOf(a))
}

func TestGetLookupCachesResult(t *testing.T) {
	t.Parallel()

	transport := &countingTransport{}
	svc, err := New(transport)
	require.NoError(t, err)

	ctx := context.Background()
	first, err := svc.GetLookup(ctx, "cities", map[string]any{"country": "RS"})
	require.NoError(t, err)
	second, err := svc.GetLookup(ctx, "cities", map[string]any{"country": "RS"})
	require.NoError(t, err)

	require.Equal(t, cities("RS"), first)
	require.Equal(t, first, second)
	require.EqualValues(t, 1, transport.calls.Load())

	_, err = svc.GetLookup(ctx, "cities", map[string]any{"country": "HR"})
	require.NoError(t, err)
	require.EqualValues(t, 2, transport.calls.Load())
}

func TestGetLookupSingleFlight(t *testing.T) {
	t.Parallel()

	transport := &countingTransport{gate: make(chan struct{})}
	core, logs := observer.New(zapcore.DebugLevel)
	svc, err := New(transport, WithLogger(zap.New(core)))
	require.NoError(t, err)

	const callers = 10
	var (
		wg      sync.WaitGroup
		results = make([][]model.LookupOption, callers)
		errs    = make([]error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx], errs[idx] = svc.GetLookup(context.Background(), "cities", map[string]any{"country": "RS"})
		}(i)
	}

	// The gate holds the transport call open, so every caller counted here
	// is attached to that one flight.
	require.Eventually(t, func() bool { return svc.Waiting() == callers }, time.Second, time.Millisecond)
	require.EqualValues(t, 1, transport.calls.Load())
	close(transport.gate)
	wg.Wait()

	require.EqualValues(t, 1, transport.calls.Load())
	require.Zero(t, svc.Waiting())
	require.Equal(t, callers, logs.FilterMessage("lookup request deduplicated").Len())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, cities("RS"), results[i])
	}
}

// refreshingStore stores a fresh entry right after the first read, standing
// in for a concurrent fetch that lands between a stale read and its eviction.
type refreshingStore struct {
	*MemoryStore
	once    sync.Once
	refresh func()
}

func (s *refreshingStore) Get(ctx context.Context, key string) (CacheEntry, bool, error) {
	entry, ok, err := s.MemoryStore.Get(ctx, key)
	s.once.Do(s.refresh)
	return entry, ok, err
}

func TestStaleEvictionKeepsNewerEntry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newFakeClock()
	params := map[string]any{"country": "RS"}
	key := CacheKey("cities", params)

	store := &refreshingStore{MemoryStore: NewMemoryStore()}
	require.NoError(t, store.Set(ctx, key, CacheEntry{Data: cities("HR"), Timestamp: clock.Now().Add(-time.Hour), TTL: time.Minute}))
	store.refresh = func() {
		_ = store.MemoryStore.Set(ctx, key, CacheEntry{Data: cities("RS"), Timestamp: clock.Now(), TTL: time.Minute})
	}

	transport := &countingTransport{}
	svc, err := New(transport, WithStore(store), WithClock(clock.Now))
	require.NoError(t, err)

	data, err := svc.GetLookup(ctx, "cities", params)
	require.NoError(t, err)
	require.Equal(t, cities("RS"), data)
	require.Zero(t, transport.calls.Load(), "the newer entry serves the request")
	require.Equal(t, 1, store.Len())
}

func TestGetLookupFailureIsNotCached(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection refused")
	transport := &countingTransport{err: boom}
	svc, err := New(transport)
	require.NoError(t, err)

	_, err = svc.GetLookup(context.Background(), "cities", nil)
	require.ErrorIs(t, err, boom)

	var lookupErr *Error
	require.ErrorAs(t, err, &lookupErr)
	require.Equal(t, "cities", lookupErr.Ref)

	transport.err = nil
	data, err := svc.GetLookup(context.Background(), "cities", nil)
	require.NoError(t, err)
	require.NotEmpty(t, data)
	require.EqualValues(t, 2, transport.calls.Load())
}

func TestGetLookupRecoversTransportPanic(t *testing.T) {
	t.Parallel()

	svc, err := New(TransportFunc(func(context.Context, Request) ([]model.LookupOption, error) {
		panic("bad transport")
	}))
	require.NoError(t, err)

	_, err = svc.GetLookup(context.Background(), "cities", nil)
	var lookupErr *Error
	require.ErrorAs(t, err, &lookupErr)
}

func TestInvalidateForcesRefetch(t *testing.T) {
	t.Parallel()

	transport := &countingTransport{}
	svc, err := New(transport)
	require.NoError(t, err)

	ctx := context.Background()
	params := map[string]any{"country": "RS"}
	_, err = svc.GetLookup(ctx, "cities", params)
	require.NoError(t, err)
	_, err = svc.GetLookup(ctx, "citiesLarge", params)
	require.NoError(t, err)
	require.EqualValues(t, 2, transport.calls.Load())

	svc.Invalidate("cities")

	_, err = svc.GetLookup(ctx, "cities", params)
	require.NoError(t, err)
	require.EqualValues(t, 3, transport.calls.Load())

	_, err = svc.GetLookup(ctx, "citiesLarge", params)
	require.NoError(t, err)
	require.EqualValues(t, 3, transport.calls.Load(), "invalidate must stop at the ref boundary")
}

func TestTTLExpiryEvictsLazily(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	store := NewMemoryStore()
	transport := &countingTransport{}
	ttl := 60
	svc, err := New(transport,
		WithStore(store),
		WithClock(clock.Now),
		WithDefinitions(model.LookupDefinition{Ref: "cities", TTL: &ttl}),
	)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = svc.GetLookup(ctx, "cities", nil)
	require.NoError(t, err)

	clock.Advance(59 * time.Second)
	_, err = svc.GetLookup(ctx, "cities", nil)
	require.NoError(t, err)
	require.EqualValues(t, 1, transport.calls.Load())

	clock.Advance(time.Second)
	require.Equal(t, 1, store.Len(), "stale entries stay until accessed")
	_, err = svc.GetLookup(ctx, "cities", nil)
	require.NoError(t, err)
	require.EqualValues(t, 2, transport.calls.Load())
}

func TestZeroTTLDisablesCaching(t *testing.T) {
	t.Parallel()

	transport := &countingTransport{}
	zero := 0
	svc, err := New(transport, WithDefinitions(model.LookupDefinition{Ref: "live", TTL: &zero}))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = svc.GetLookup(context.Background(), "live", nil)
		require.NoError(t, err)
	}
	require.EqualValues(t, 3, transport.calls.Load())
}

func TestClearAllDuringFlightDoesNotCache(t *testing.T) {
	t.Parallel()

	transport := &countingTransport{gate: make(chan struct{})}
	store := NewMemoryStore()
	svc, err := New(transport, WithStore(store))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := svc.GetLookup(context.Background(), "cities", nil)
		done <- err
	}()
	require.Eventually(t, func() bool { return transport.calls.Load() == 1 }, time.Second, time.Millisecond)

	svc.ClearAll()

	// A caller after the clear must not join the stale flight.
	second := make(chan error, 1)
	go func() {
		_, err := svc.GetLookup(context.Background(), "cities", nil)
		second <- err
	}()
	require.Eventually(t, func() bool { return transport.calls.Load() == 2 }, time.Second, time.Millisecond)

	close(transport.gate)
	require.NoError(t, <-done)
	require.NoError(t, <-second)

	require.Equal(t, 1, store.Len(), "only the post-clear flight is cached")
	_, err = svc.GetLookup(context.Background(), "cities", nil)
	require.NoError(t, err)
	require.EqualValues(t, 2, transport.calls.Load())
}

func TestInvalidateDuringFlightDoesNotCache(t *testing.T) {
	t.Parallel()

	transport := &countingTransport{gate: make(chan struct{})}
	store := NewMemoryStore()
	svc, err := New(transport, WithStore(store))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := svc.GetLookup(context.Background(), "cities", nil)
		done <- err
	}()
	require.Eventually(t, func() bool { return transport.calls.Load() == 1 }, time.Second, time.Millisecond)

	svc.Invalidate("cities")
	close(transport.gate)
	require.NoError(t, <-done)
	require.Equal(t, 0, store.Len())
}

func TestGetLookupCallerCancellation(t *testing.T) {
	t.Parallel()

	transport := &countingTransport{gate: make(chan struct{})}
	svc, err := New(transport)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		_, err := svc.GetLookup(ctx, "cities", nil)
		result <- err
	}()
	require.Eventually(t, func() bool { return transport.calls.Load() == 1 }, time.Second, time.Millisecond)

	cancel()
	require.ErrorIs(t, <-result, context.Canceled)

	// The flight keeps running for other waiters and still caches.
	close(transport.gate)
	require.Eventually(t, func() bool {
		data, err := svc.GetLookup(context.Background(), "cities", nil)
		return err == nil && len(data) > 0
	}, time.Second, time.Millisecond)
	require.EqualValues(t, 1, transport.calls.Load())
}

func TestDefineValidatesDefinitions(t *testing.T) {
	t.Parallel()

	_, err := New(&countingTransport{}, WithDefinitions(model.LookupDefinition{}))
	require.Error(t, err)

	negative := -1
	_, err = New(&countingTransport{}, WithDefinitions(model.LookupDefinition{Ref: "x", TTL: &negative}))
	require.Error(t, err)

	_, err = New(&countingTransport{}, WithDefinitions(model.LookupDefinition{
		Ref:      "x",
		Endpoint: &model.EndpointConfig{URL: "not a url"},
	}))
	require.Error(t, err)

	svc, err := New(&countingTransport{}, WithDefinitions(model.LookupDefinition{
		Ref:      "cities",
		Endpoint: &model.EndpointConfig{URL: "https://api.example.com/cities", Method: "GET"},
	}))
	require.NoError(t, err)
	def, ok := svc.Definition("cities")
	require.True(t, ok)
	require.Equal(t, model.DefaultLookupTTL, def.TTLSeconds())

	_, err = New(nil)
	require.Error(t, err)
}

func TestServiceLogsCacheEvents(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	svc, err := New(&countingTransport{}, WithLogger(zap.New(core)))
	require.NoError(t, err)

	_, err = svc.GetLookup(context.Background(), "cities", nil)
	require.NoError(t, err)
	_, err = svc.GetLookup(context.Background(), "cities", nil)
	require.NoError(t, err)

	require.Equal(t, 1, logs.FilterMessage("lookup cache miss").Len())
	require.Equal(t, 1, logs.FilterMessage("lookup cached").Len())
	require.Equal(t, 1, logs.FilterMessage("lookup cache hit").Len())
}

func TestMuxRoutes(t *testing.T) {
	t.Parallel()

	mux := NewMux()
	mux.HandleFunc("colors", func(context.Context, Request) ([]model.LookupOption, error) {
		return []model.LookupOption{{Value: "red", Label: "Red"}}, nil
	})

	data, err := mux.Fetch(context.Background(), Request{Ref: "colors"})
	require.NoError(t, err)
	require.Len(t, data, 1)

	_, err = mux.Fetch(context.Background(), Request{Ref: "sizes"})
	require.ErrorIs(t, err, ErrUnknownLookup)

	mux.Fallback(&countingTransport{})
	_, err = mux.Fetch(context.Background(), Request{Ref: "sizes"})
	require.NoError(t, err)
	require.Equal(t, []string{"colors"}, mux.Refs())
}

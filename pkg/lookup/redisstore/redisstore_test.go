package redisstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-formrules/pkg/lookup"
	"github.com/goliatone/go-formrules/pkg/model"
)

func TestEscapeGlob(t *testing.T) {
	t.Parallel()

	require.Equal(t, `cities`, escapeGlob("cities"))
	require.Equal(t, `a\*b\?c\[d\]\\`, escapeGlob(`a*b?c[d]\`))
}

func TestMatchPatternsEscapePrefix(t *testing.T) {
	t.Parallel()

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })

	store, err := New(client, WithPrefix("forms[*]:"))
	require.NoError(t, err)
	require.Equal(t, `forms\[\*\]:cities\?*`, store.refPattern("cities"))
	require.Equal(t, `forms\[\*\]:*`, store.prefixPattern())

	store, err = New(client)
	require.NoError(t, err)
	require.Equal(t, `formrules:lookup:a\?b\?*`, store.refPattern("a?b"))
}

func TestNewRequiresClient(t *testing.T) {
	t.Parallel()

	_, err := New(nil)
	require.Error(t, err)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("FORMRULES_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("FORMRULES_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unavailable at %s: %v", addr, err)
	}
	store, err := New(client, WithPrefix("formrules:test:"+t.Name()+":"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Clear(context.Background()) })
	return store
}

func TestStoreRoundTripAndDeletes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry := lookup.CacheEntry{
		Data: []model.LookupOption{
			{Value: "bg", Label: "Belgrade", Extra: map[string]any{"country": "RS"}},
		},
		Timestamp: time.UnixMilli(1_700_000_000_000),
		TTL:       time.Minute,
	}
	keys := []string{
		"cities",
		lookup.CacheKey("cities", map[string]any{"country": "RS"}),
		lookup.CacheKey("cities2", map[string]any{"country": "RS"}),
	}
	for _, key := range keys {
		require.NoError(t, store.Set(ctx, key, entry))
	}

	got, ok, err := store.Get(ctx, keys[1])
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, entry.Data, got.Data)
	require.True(t, entry.Timestamp.Equal(got.Timestamp))
	require.Equal(t, entry.TTL, got.TTL)

	require.NoError(t, store.DeleteRef(ctx, "cities"))
	for _, key := range keys[:2] {
		_, ok, err := store.Get(ctx, key)
		require.NoError(t, err)
		require.False(t, ok, key)
	}
	_, ok, err = store.Get(ctx, keys[2])
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, store.Clear(ctx))
	_, ok, err = store.Get(ctx, keys[2])
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStoreBacksService(t *testing.T) {
	store := newTestStore(t)
	calls := 0
	svc, err := lookup.New(lookup.TransportFunc(func(context.Context, lookup.Request) ([]model.LookupOption, error) {
		calls++
		return []model.LookupOption{{Value: "hr", Label: "Croatia"}}, nil
	}), lookup.WithStore(store))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		options, err := svc.GetLookup(context.Background(), "countries", nil)
		require.NoError(t, err)
		require.Equal(t, []model.LookupOption{{Value: "hr", Label: "Croatia"}}, options)
	}
	require.Equal(t, 1, calls)
}

package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/cakestore-backend/pkg/config"
)

func TestAllowCountsWithinWindow(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	client := &Client{store: store}

	for i := 1; i <= 2; i++ {
		win, err := client.Allow(ctx, "placement:ip:1.2.3.4", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, win.Allowed)
		assert.EqualValues(t, i, win.Count)
		assert.Zero(t, win.ResetIn)
	}
	assert.Len(t, store.expires, 1, "expiry is set on the first hit only")

	store.ttl["cs:rate_limit:placement:ip:1.2.3.4"] = 42 * time.Second
	win, err := client.Allow(ctx, "placement:ip:1.2.3.4", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, win.Allowed)
	assert.EqualValues(t, 3, win.Count)
	assert.Equal(t, 42*time.Second, win.ResetIn)
}

func TestAllowRepairsCounterWithoutExpiry(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.counters["cs:rate_limit:estimate"] = 9
	client := &Client{store: store}

	win, err := client.Allow(ctx, "estimate", 5, time.Minute)
	require.NoError(t, err)
	assert.False(t, win.Allowed)
	assert.Equal(t, time.Minute, win.ResetIn)
	assert.Equal(t, time.Minute, store.ttl["cs:rate_limit:estimate"])
}

func TestIdempotencyClaimAndRelease(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newFakeStore()}
	k := client.IdempotencyKey("orders", "abc")

	ok, err := client.SetNX(ctx, k, "pending", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = client.SetNX(ctx, k, "pending", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	value, err := client.Get(ctx, k)
	require.NoError(t, err)
	assert.Equal(t, "pending", value)

	require.NoError(t, client.Del(ctx, k))
	_, err = client.Get(ctx, k)
	assert.ErrorIs(t, err, redis.Nil)
}

func TestDeleteIfValueOnlyRemovesOwnedKey(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	client := &Client{store: store}
	store.data["cs:lock:cron-worker:dev"] = "owner-a"

	deleted, err := client.DeleteIfValue(ctx, "cs:lock:cron-worker:dev", "owner-b")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Contains(t, store.data, "cs:lock:cron-worker:dev")

	deleted, err = client.DeleteIfValue(ctx, "cs:lock:cron-worker:dev", "owner-a")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.NotContains(t, store.data, "cs:lock:cron-worker:dev")
}

func TestUninitializedClientFails(t *testing.T) {
	client := &Client{}
	_, err := client.Allow(context.Background(), "x", 1, time.Second)
	assert.ErrorIs(t, err, errNotInitialized)
	assert.ErrorIs(t, client.Ping(context.Background()), errNotInitialized)
	assert.NoError(t, client.Close())
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	assert.Equal(t, "cs:idempotency:scope:id", client.IdempotencyKey("scope", "id"))
	assert.Equal(t, "cs:rate_limit:scope", client.RateLimitKey("scope"))
	assert.Equal(t, "cs:lock:cron-worker:dev", client.LockKey("cron-worker", "dev"))
	assert.Equal(t, "cs:lock:cron-worker", client.LockKey(" cron-worker ", " "))
}

func TestOptionsFromConfig(t *testing.T) {
	_, err := optionsFromConfig(config.RedisConfig{})
	assert.Error(t, err)

	opts, err := optionsFromConfig(config.RedisConfig{Address: "localhost:6379", DB: 2, PoolSize: 7, DialTimeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 7, opts.PoolSize)
	assert.Equal(t, time.Second, opts.DialTimeout)

	opts, err = optionsFromConfig(config.RedisConfig{URL: "redis://:secret@cache:6380/4", DB: 1, PoolSize: 3})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 4, opts.DB, "url database wins")
	assert.Equal(t, 3, opts.PoolSize)

	_, err = optionsFromConfig(config.RedisConfig{URL: "://bad"})
	assert.Error(t, err)
}

// fakeStore keeps strings, counters and TTLs in maps. Eval understands only the
// compare-and-delete script.
type fakeStore struct {
	data     map[string]string
	counters map[string]int64
	ttl      map[string]time.Duration
	expires  []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		data:     map[string]string{},
		counters: map[string]int64{},
		ttl:      map[string]time.Duration{},
	}
}

func (f *fakeStore) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeStore) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeStore) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeStore) Incr(_ context.Context, key string) *redis.IntCmd {
	f.counters[key]++
	return redis.NewIntResult(f.counters[key], nil)
}

func (f *fakeStore) Expire(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	f.expires = append(f.expires, key)
	f.ttl[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (f *fakeStore) PTTL(_ context.Context, key string) *redis.DurationCmd {
	if ttl, ok := f.ttl[key]; ok {
		return redis.NewDurationResult(ttl, nil)
	}
	return redis.NewDurationResult(-1, nil)
}

func (f *fakeStore) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, key := range keys {
		if _, ok := f.data[key]; ok {
			n++
		}
		delete(f.data, key)
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeStore) Eval(_ context.Context, script string, keys []string, args ...any) *redis.Cmd {
	if script != compareAndDelete || len(keys) != 1 || len(args) != 1 {
		return redis.NewCmdResult(nil, fmt.Errorf("unexpected script"))
	}
	if f.data[keys[0]] != args[0] {
		return redis.NewCmdResult(int64(0), nil)
	}
	delete(f.data, keys[0])
	return redis.NewCmdResult(int64(1), nil)
}

package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/koustreak/gardien/internal/errs"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb, "", ttl), mr
}

func TestStores(t *testing.T) {
	redisStore, _ := newRedis(t, 0)
	stores := map[string]Store{
		"memory": NewMemoryStore(0),
		"redis":  redisStore,
	}

	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			var login string
			ok, err := s.Get(ctx, "c1", SlotLogin, &login)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Set(ctx, "c1", SlotAuthenticated, true))
			require.NoError(t, s.Set(ctx, "c1", SlotLogin, "alice"))
			require.NoError(t, s.Set(ctx, "c1", SlotUser, map[string]any{"id": 1, "nom": "A"}))
			require.NoError(t, s.Set(ctx, "c2", SlotLogin, "bob"))

			var authed bool
			ok, err = s.Get(ctx, "c1", SlotAuthenticated, &authed)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.True(t, authed)

			var user map[string]any
			_, err = s.Get(ctx, "c1", SlotUser, &user)
			require.NoError(t, err)
			assert.Equal(t, "A", user["nom"])
			assert.Equal(t, float64(1), user["id"])

			require.NoError(t, s.Delete(ctx, "c1", SlotLogin, "missing"))
			ok, err = s.Get(ctx, "c1", SlotLogin, &login)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Clear(ctx, "c1"))
			ok, err = s.Get(ctx, "c1", SlotAuthenticated, &authed)
			require.NoError(t, err)
			assert.False(t, ok)

			ok, err = s.Get(ctx, "c2", SlotLogin, &login)
			require.NoError(t, err)
			assert.True(t, ok, "clients are isolated")
			assert.Equal(t, "bob", login)
		})
	}
}

func TestStores_DecodeMismatch(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	require.NoError(t, s.Set(ctx, "c", SlotAttempts, []int64{1, 2}))

	var wrong string
	_, err := s.Get(ctx, "c", SlotAttempts, &wrong)
	assert.True(t, errs.IsInvalidInput(err))
}

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore(time.Minute)
	s.SetClock(func() time.Time { return now })

	require.NoError(t, s.Set(ctx, "c", SlotLogin, "alice"))
	assert.Equal(t, 1, s.Len())

	now = now.Add(59 * time.Second)
	require.NoError(t, s.Set(ctx, "c", SlotAuthenticated, true))

	now = now.Add(59 * time.Second)
	var login string
	ok, err := s.Get(ctx, "c", SlotLogin, &login)
	require.NoError(t, err)
	assert.True(t, ok, "writes slide the expiry")

	now = now.Add(2 * time.Second)
	ok, err = s.Get(ctx, "c", SlotLogin, &login)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, s.Len())
}

func TestRedisStore_TTL(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedis(t, time.Minute)

	require.NoError(t, s.Set(ctx, "c", SlotLogin, "alice"))
	assert.True(t, mr.Exists(DefaultRedisPrefix+"c"))
	assert.Equal(t, time.Minute, mr.TTL(DefaultRedisPrefix+"c"))

	mr.FastForward(61 * time.Second)
	var login string
	ok, err := s.Get(ctx, "c", SlotLogin, &login)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_Unavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	s := NewRedisStore(rdb, "test:", 0)
	mr.Close()

	err = s.Set(context.Background(), "c", SlotLogin, "x")
	require.Error(t, err)
	assert.True(t, errs.IsConnectionFailed(err))
	assert.True(t, errs.IsConnectionFailed(s.Ping(context.Background())))
}

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/koustreak/gardien/internal/errs"
	"github.com/koustreak/gardien/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time           { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newLimiter(cfg Config) (*Limiter, *clock) {
	c := &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	l := New(session.NewMemoryStore(0), cfg)
	l.SetClock(c.now)
	return l, c
}

func TestLimiter_BlocksAtThreshold(t *testing.T) {
	ctx := context.Background()
	l, _ := newLimiter(Config{})

	for i := 0; i < DefaultMaxAttempts; i++ {
		blocked, err := l.IsBlocked(ctx, "c")
		require.NoError(t, err)
		assert.False(t, blocked, "attempt %d", i+1)
		require.NoError(t, l.RecordFailure(ctx, "c"))
	}

	blocked, err := l.IsBlocked(ctx, "c")
	require.NoError(t, err)
	assert.True(t, blocked)

	other, err := l.IsBlocked(ctx, "other")
	require.NoError(t, err)
	assert.False(t, other)
}

func TestLimiter_WindowExpiry(t *testing.T) {
	ctx := context.Background()
	l, c := newLimiter(Config{MaxAttempts: 2, Window: 10 * time.Minute})

	require.NoError(t, l.RecordFailure(ctx, "c"))
	c.advance(5 * time.Minute)
	require.NoError(t, l.RecordFailure(ctx, "c"))

	blocked, _ := l.IsBlocked(ctx, "c")
	assert.True(t, blocked)

	c.advance(5 * time.Minute)
	blocked, err := l.IsBlocked(ctx, "c")
	require.NoError(t, err)
	assert.False(t, blocked, "an attempt exactly one window old no longer counts")

	n, err := l.Remaining(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	c.advance(5 * time.Minute)
	n, _ = l.Remaining(ctx, "c")
	assert.Equal(t, 2, n)
}

func TestLimiter_Reset(t *testing.T) {
	ctx := context.Background()
	l, _ := newLimiter(Config{MaxAttempts: 1, Window: time.Minute})

	require.NoError(t, l.RecordFailure(ctx, "c"))
	blocked, _ := l.IsBlocked(ctx, "c")
	require.True(t, blocked)

	require.NoError(t, l.Reset(ctx, "c"))
	blocked, _ = l.IsBlocked(ctx, "c")
	assert.False(t, blocked)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.True(t, errs.IsConfiguration(Config{MaxAttempts: 0, Window: time.Second}.Validate()))
	assert.True(t, errs.IsConfiguration(Config{MaxAttempts: 1}.Validate()))
}

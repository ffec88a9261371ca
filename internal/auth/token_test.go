package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/koustreak/gardien/internal/auth"
	"github.com/koustreak/gardien/internal/database/dbtest"
	"github.com/koustreak/gardien/internal/password"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func tokenFixture(t *testing.T) *fixture {
	t.Helper()
	probe := dbtest.NewProbe(dbtest.OpenMemory(t))
	dbtest.MustExec(t, probe, `CREATE TABLE utilisateur (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		login VARCHAR(255) NOT NULL UNIQUE,
		mot_de_passe VARCHAR(255) NOT NULL,
		jeton VARCHAR(64),
		jeton_expire DATETIME
	)`)

	f := &fixture{probe: probe, clock: &clock{t: time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)}}
	f.mapping = auth.DefaultMapping()
	f.mapping.LogFile = ""
	f.mapping.TokenColumn = "jeton"
	f.mapping.TokenExpiryColumn = "jeton_expire"

	hasher, err := password.NewBcrypt(bcrypt.MinCost)
	require.NoError(t, err)
	f.engine, err = auth.NewWithDB(context.Background(), probe,
		auth.WithMapping(f.mapping),
		auth.WithHasher(hasher),
		auth.WithClock(f.clock.now),
		auth.WithTokenTTL(10*time.Minute))
	require.NoError(t, err)

	_, err = f.engine.Client("setup", "").CreateAccount(context.Background(), "pia", "password", nil)
	require.NoError(t, err)
	return f
}

func TestLoginToken_RoundTrip(t *testing.T) {
	ctx := context.Background()
	f := tokenFixture(t)
	require.True(t, f.engine.TokensEnabled())

	c := f.engine.Client("c", "")
	token, ok, err := c.IssueLoginToken(ctx, "pia")
	require.NoError(t, err)
	require.True(t, ok, c.Errors())
	assert.Len(t, token, 64)

	var stored string
	require.NoError(t, f.probe.QueryRow(ctx, `SELECT jeton FROM utilisateur WHERE login = ?`, "pia").Scan(&stored))
	assert.NotEqual(t, token, stored, "only the digest is stored")

	ok, err = c.AuthenticateToken(ctx, token)
	require.NoError(t, err)
	require.True(t, ok, c.Errors())

	user, err := c.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pia", user["login"])
	assert.NotContains(t, user, "jeton")
	assert.NotContains(t, user, "jeton_expire")

	ok, err = f.engine.Client("d", "").AuthenticateToken(ctx, token)
	require.NoError(t, err)
	assert.False(t, ok, "tokens are single use")
}

func TestLoginToken_Failures(t *testing.T) {
	ctx := context.Background()
	f := tokenFixture(t)
	c := f.engine.Client("c", "")

	token, ok, err := c.IssueLoginToken(ctx, "pia")
	require.NoError(t, err)
	require.True(t, ok)

	f.clock.advance(10 * time.Minute)
	ok, err = c.AuthenticateToken(ctx, token)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "invalid or expired token", c.FirstError())

	ok, err = c.AuthenticateToken(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)

	remaining, err := f.engine.Limiter().Remaining(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 3, remaining, "token failures count against the limiter")

	_, ok, err = c.IssueLoginToken(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "user not found", c.FirstError())
}

func TestLoginToken_DisabledWithoutColumns(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	assert.False(t, f.engine.TokensEnabled())

	c := f.engine.Client("c", "")
	_, ok, err := c.IssueLoginToken(ctx, "x")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "login tokens are not enabled", c.FirstError())

	ok, err = c.AuthenticateToken(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)
}

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/koustreak/gardien/internal/database"
	"github.com/koustreak/gardien/internal/errs"
)

const tokenBytes = 32

// IssueLoginToken stores a one-time login token for login and returns it.
// Only the SHA-256 of the token is kept in the table. The token expires
// after the configured TTL and a new one replaces any previous token.
func (c *Client) IssueLoginToken(ctx context.Context, login string) (string, bool, error) {
	c.reset()
	e := c.e
	if !e.TokensEnabled() {
		ok, err := c.fail(msgTokensDisabled)
		return "", ok, err
	}

	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", false, errs.Wrap(errs.ErrKindUnknown, "generate login token", err)
	}
	token := hex.EncodeToString(raw)

	q, args, err := database.Update(e.mapping.Table, e.db.Dialect()).
		Set(e.mapping.TokenColumn, hashToken(token)).
		Set(e.mapping.TokenExpiryColumn, e.timestampValue(e.now().Add(e.tokenTTL))).
		WhereAll(database.ExactEq(e.mapping.LoginColumn, login)).
		Build()
	if err != nil {
		return "", false, err
	}
	res, err := e.db.Exec(ctx, q, args...)
	if err != nil {
		return "", false, err
	}
	if res.RowsAffected == 0 {
		ok, err := c.fail(msgUserNotFound)
		return "", ok, err
	}

	e.log.With().Str("login", login).Logger().Info("login token issued")
	return token, true, nil
}

// AuthenticateToken opens a session from a token issued by IssueLoginToken.
// The token is consumed on success. Failures count against the rate limiter
// like password failures.
func (c *Client) AuthenticateToken(ctx context.Context, token string) (bool, error) {
	c.reset()
	e := c.e
	if !e.TokensEnabled() {
		return c.fail(msgTokensDisabled)
	}

	blocked, err := e.limiter.IsBlocked(ctx, c.id)
	if err != nil {
		return false, err
	}
	if blocked {
		return c.fail(msgTooManyAttempts)
	}

	var row Row
	if token != "" {
		row, err = e.findBy(ctx, e.mapping.TokenColumn, hashToken(token))
		if err != nil {
			return false, err
		}
	}
	if row == nil {
		return c.recordFailure(ctx, "", msgInvalidToken)
	}

	login := e.storedLogin(row)
	expiry, ok := parseTimestamp(row[e.mapping.TokenExpiryColumn])
	if !ok || !e.now().UTC().Before(expiry) {
		return c.recordFailure(ctx, login, msgInvalidToken)
	}

	q, args, err := database.Update(e.mapping.Table, e.db.Dialect()).
		Set(e.mapping.TokenColumn, nil).
		Set(e.mapping.TokenExpiryColumn, nil).
		WhereAll(database.ExactEq(e.mapping.TokenColumn, hashToken(token))).
		Build()
	if err != nil {
		return false, err
	}
	res, err := e.db.Exec(ctx, q, args...)
	if err != nil {
		return false, err
	}
	if res.RowsAffected == 0 {
		// consumed concurrently
		return c.recordFailure(ctx, login, msgInvalidToken)
	}

	_, post := e.hooks()
	return c.establish(ctx, row, post)
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// parseTimestamp reads a timestamp column as the drivers return it: a
// time.Time, or text in the layout CURRENT_TIMESTAMP produces.
func parseTimestamp(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), true
	case string:
		for _, layout := range []string{database.TimestampLayout, time.RFC3339Nano} {
			if parsed, err := time.ParseInLocation(layout, t, time.UTC); err == nil {
				return parsed.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

package auth

import "context"

// Authenticate checks login and pw. A blocked client and a pre-auth hook
// rejection fail before the database is touched, and a hook rejection is
// not counted as a failed attempt. Unknown logins and wrong passwords fail
// with the same message after the same amount of hashing work.
func (c *Client) Authenticate(ctx context.Context, login, pw string) (bool, error) {
	c.reset()
	e := c.e

	blocked, err := e.limiter.IsBlocked(ctx, c.id)
	if err != nil {
		return false, err
	}
	if blocked {
		return c.fail(msgTooManyAttempts)
	}

	pre, post := e.hooks()
	if pre != nil && !pre(ctx, login) {
		e.log.With().Str("client", c.id).Str("login", login).Logger().Info("authentication rejected by hook")
		return c.fail(msgHookRejected)
	}

	row, err := e.findBy(ctx, e.mapping.LoginColumn, login)
	if err != nil {
		return false, err
	}

	ok := false
	if row == nil {
		_, _ = e.hasher.Verify(pw, e.dummyHash)
	} else {
		stored, _ := row[e.mapping.PasswordColumn].(string)
		ok, err = e.hasher.Verify(pw, stored)
		if err != nil {
			e.log.WarnWith("stored password hash unreadable", err, map[string]any{"login": login})
			ok = false
		}
	}
	if !ok {
		return c.recordFailure(ctx, login, msgInvalidCredentials)
	}
	return c.establish(ctx, row, post)
}

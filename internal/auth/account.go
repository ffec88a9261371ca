package auth

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/koustreak/gardien/internal/database"
	"github.com/koustreak/gardien/internal/errs"
	"github.com/koustreak/gardien/internal/session"
)

// CreateAccount inserts a user. extra supplies the mandatory fields and any
// other column values; keys that are not columns of the table are ignored.
// Every missing mandatory field is reported, not just the first.
func (c *Client) CreateAccount(ctx context.Context, login, pw string, extra map[string]any) (bool, error) {
	c.reset()
	e := c.e

	if login == "" || pw == "" {
		return c.fail(msgCredentialsRequired)
	}
	if utf8.RuneCountInString(pw) < e.minPasswordLength {
		return c.fail(msgPasswordTooShort, e.minPasswordLength)
	}

	cat := e.catalogue()
	for _, f := range cat.Mandatory() {
		if isEmpty(lookupFold(extra, f)) {
			c.push(msgFieldRequired, f)
		}
	}
	if len(c.errors) > 0 {
		return false, nil
	}

	if e.validator != nil && len(e.fieldRules) > 0 {
		v := e.validator.Clone()
		if !v.Validate(extra, e.fieldRules) {
			c.errors = append(c.errors, v.Messages()...)
			return false, nil
		}
	}

	exists, err := e.loginExists(ctx, login)
	if err != nil {
		return false, err
	}
	if exists {
		return c.fail(msgLoginExists)
	}

	hash, err := e.hasher.Hash(pw)
	if errs.IsValidation(err) {
		return c.fail(errs.MessageOf(err))
	}
	if err != nil {
		return false, err
	}

	d := e.db.Dialect()
	ins := database.Insert(e.mapping.Table, d).
		Set(e.mapping.LoginColumn, login).
		Set(e.mapping.PasswordColumn, hash)
	set := make(map[string]bool, len(extra))
	for _, name := range sortedKeys(extra) {
		col, ok := cat.Column(name)
		if !ok || e.protected(col) || strings.EqualFold(col.Name, e.mapping.PasswordColumn) {
			continue
		}
		if set[col.Name] {
			c.push(msgDuplicateField, col.Name)
			continue
		}
		set[col.Name] = true
		ins.Set(col.Name, extra[name])
	}
	if len(c.errors) > 0 {
		return false, nil
	}
	if d.TouchMode() == database.TouchApplication {
		now := e.timestampValue(e.now())
		for _, col := range []string{database.ColumnCreatedAt, database.ColumnUpdatedAt} {
			if cat.Has(col) {
				ins.Set(col, now)
			}
		}
	}

	q, args, err := ins.Build()
	if err != nil {
		return false, err
	}
	if _, err := e.db.Exec(ctx, q, args...); err != nil {
		if errs.IsConflict(err) {
			return c.fail(msgLoginExists)
		}
		return false, err
	}

	e.log.With().Str("login", login).Logger().Info("account created")
	return true, nil
}

// UpdateUser changes the given columns of the user identified by login.
// Unknown and protected columns are ignored; a password value is checked
// and hashed. When login is the client's own session, the session
// snapshot is refreshed.
func (c *Client) UpdateUser(ctx context.Context, login string, fields map[string]any) (bool, error) {
	c.reset()
	e := c.e
	cat := e.catalogue()
	d := e.db.Dialect()

	upd := database.Update(e.mapping.Table, d)
	set := make(map[string]bool, len(fields))
	for _, name := range sortedKeys(fields) {
		col, ok := cat.Column(name)
		if !ok || e.protected(col) {
			continue
		}
		if set[col.Name] {
			return c.fail(msgDuplicateField, col.Name)
		}
		set[col.Name] = true
		v := fields[name]
		if strings.EqualFold(col.Name, e.mapping.PasswordColumn) {
			pw, _ := v.(string)
			if utf8.RuneCountInString(pw) < e.minPasswordLength {
				return c.fail(msgPasswordTooShort, e.minPasswordLength)
			}
			hash, err := e.hasher.Hash(pw)
			if errs.IsValidation(err) {
				return c.fail(errs.MessageOf(err))
			}
			if err != nil {
				return false, err
			}
			v = hash
		}
		upd.Set(col.Name, v)
	}
	if len(set) == 0 {
		return c.fail(msgNoUpdatableFields)
	}
	if d.TouchMode() == database.TouchApplication && cat.Has(database.ColumnUpdatedAt) {
		upd.Set(database.ColumnUpdatedAt, e.timestampValue(e.now()))
	}

	q, args, err := upd.WhereAll(database.ExactEq(e.mapping.LoginColumn, login)).Build()
	if err != nil {
		return false, err
	}
	res, err := e.db.Exec(ctx, q, args...)
	if err != nil {
		return false, err
	}
	if res.RowsAffected == 0 {
		return c.fail(msgUserNotFound)
	}

	if err := c.refreshSnapshot(ctx, login); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteUser removes the user identified by login, logging the client out
// when it was its own account.
func (c *Client) DeleteUser(ctx context.Context, login string) (bool, error) {
	c.reset()
	e := c.e

	q, args, err := database.Delete(e.mapping.Table, e.db.Dialect()).
		WhereAll(database.ExactEq(e.mapping.LoginColumn, login)).
		Build()
	if err != nil {
		return false, err
	}
	res, err := e.db.Exec(ctx, q, args...)
	if err != nil {
		return false, err
	}
	if res.RowsAffected == 0 {
		return c.fail(msgUserNotFound)
	}

	current, err := c.sessionLogin(ctx)
	if err != nil {
		return false, err
	}
	if current == login {
		if err := c.Logout(ctx); err != nil {
			return false, err
		}
	}
	e.log.With().Str("login", login).Logger().Info("account deleted")
	return true, nil
}

func (c *Client) refreshSnapshot(ctx context.Context, login string) error {
	current, err := c.sessionLogin(ctx)
	if err != nil || current != login {
		return err
	}
	row, err := c.e.findBy(ctx, c.e.mapping.LoginColumn, login)
	if err != nil || row == nil {
		return err
	}
	return c.e.sessions.Set(ctx, c.id, session.SlotUser, c.e.snapshot(row))
}

// protected reports whether callers may not write col directly.
func (e *Engine) protected(col database.ColumnInfo) bool {
	if col.AutoIncrement {
		return true
	}
	for _, name := range []string{
		database.ColumnID, database.ColumnCreatedAt, database.ColumnUpdatedAt,
		e.mapping.LoginColumn, e.mapping.TokenColumn, e.mapping.TokenExpiryColumn,
	} {
		if name != "" && strings.EqualFold(col.Name, name) {
			return true
		}
	}
	return false
}

// lookupFold finds key in m, falling back to a case-insensitive match.
func lookupFold(m map[string]any, key string) any {
	if v, ok := m[key]; ok {
		return v
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return nil
}

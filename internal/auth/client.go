package auth

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/koustreak/gardien/internal/database"
	"github.com/koustreak/gardien/internal/errs"
	"github.com/koustreak/gardien/internal/session"
)

// Client runs operations on behalf of one client. Operations return
// (true, nil) on success, (false, nil) on a recovered failure whose messages
// are in Errors, and a non-nil error only when the database or the session
// store failed. A Client is not safe for concurrent use; the Engine is.
type Client struct {
	e      *Engine
	id     string
	ip     string
	errors []string
	kind   errs.ErrKind
}

func (c *Client) ID() string { return c.id }
func (c *Client) IP() string { return c.ip }

// Errors returns the messages of the last operation.
func (c *Client) Errors() []string {
	return append([]string(nil), c.errors...)
}

// FirstError returns the first message of the last operation, or "".
func (c *Client) FirstError() string {
	if len(c.errors) == 0 {
		return ""
	}
	return c.errors[0]
}

// Failure classifies the last operation's recovered failure as Validation,
// Conflict, AuthFailure or NotFound. It is ErrKindUnknown after a success.
func (c *Client) Failure() errs.ErrKind {
	switch {
	case len(c.errors) == 0:
		return errs.ErrKindUnknown
	case c.kind == errs.ErrKindUnknown:
		return errs.ErrKindValidation
	}
	return c.kind
}

func (c *Client) reset() {
	c.errors = nil
	c.kind = errs.ErrKindUnknown
}

func (c *Client) push(format string, args ...any) {
	if len(args) > 0 {
		format = fmt.Sprintf(format, args...)
	}
	c.errors = append(c.errors, format)
}

var failureKinds = map[string]errs.ErrKind{
	msgLoginExists:        errs.ErrKindConflict,
	msgInvalidCredentials: errs.ErrKindAuthFailure,
	msgTooManyAttempts:    errs.ErrKindAuthFailure,
	msgHookRejected:       errs.ErrKindAuthFailure,
	msgInvalidToken:       errs.ErrKindAuthFailure,
	msgUserNotFound:       errs.ErrKindNotFound,
}

// fail records a recovered failure.
func (c *Client) fail(format string, args ...any) (bool, error) {
	if k, ok := failureKinds[format]; ok {
		c.kind = k
	}
	c.push(format, args...)
	return false, nil
}

// Logout clears the authentication slots. The attempt log is kept.
func (c *Client) Logout(ctx context.Context) error {
	c.reset()
	return c.e.sessions.Delete(ctx, c.id, session.SlotAuthenticated, session.SlotLogin, session.SlotUser)
}

func (c *Client) IsAuthenticated(ctx context.Context) (bool, error) {
	var authed bool
	found, err := c.e.sessions.Get(ctx, c.id, session.SlotAuthenticated, &authed)
	if err != nil {
		return false, err
	}
	return found && authed, nil
}

// CurrentUser returns the row snapshot taken at login, or nil when the
// client is not authenticated. Numbers come back as float64.
func (c *Client) CurrentUser(ctx context.Context) (Row, error) {
	authed, err := c.IsAuthenticated(ctx)
	if err != nil || !authed {
		return nil, err
	}
	var user Row
	if _, err := c.e.sessions.Get(ctx, c.id, session.SlotUser, &user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login returns the login of the authenticated session, or "".
func (c *Client) Login(ctx context.Context) (string, error) {
	return c.sessionLogin(ctx)
}

// sessionLogin returns the login of the authenticated session, or "".
func (c *Client) sessionLogin(ctx context.Context) (string, error) {
	authed, err := c.IsAuthenticated(ctx)
	if err != nil || !authed {
		return "", err
	}
	var login string
	_, err = c.e.sessions.Get(ctx, c.id, session.SlotLogin, &login)
	return login, err
}

// establish opens the session for row and runs the post-auth hook. The
// session login is the stored value, which later lookups compare exactly.
func (c *Client) establish(ctx context.Context, row Row, post PostAuthHook) (bool, error) {
	e := c.e
	login := e.storedLogin(row)
	snapshot := e.snapshot(row)

	if err := e.sessions.Set(ctx, c.id, session.SlotAuthenticated, true); err != nil {
		return false, err
	}
	if err := e.sessions.Set(ctx, c.id, session.SlotLogin, login); err != nil {
		return false, err
	}
	if err := e.sessions.Set(ctx, c.id, session.SlotUser, snapshot); err != nil {
		return false, err
	}
	if err := e.limiter.Reset(ctx, c.id); err != nil {
		return false, err
	}

	if post != nil {
		if err := post(ctx, snapshot); err != nil {
			e.log.WarnWith("post-authentication hook failed", err, map[string]any{"login": login})
		}
	}
	e.log.With().Str("client", c.id).Str("login", login).Logger().Info("authenticated")
	return true, nil
}

func (e *Engine) storedLogin(row Row) string {
	switch v := row[e.mapping.LoginColumn].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

// recordFailure counts a failed attempt against the client and logs it.
func (c *Client) recordFailure(ctx context.Context, login, msg string) (bool, error) {
	if err := c.e.limiter.RecordFailure(ctx, c.id); err != nil {
		return false, err
	}
	c.e.failures.Record(c.ip, login)
	c.e.log.With().Str("client", c.id).Str("ip", c.ip).Str("login", login).Logger().Warn("authentication failed")
	return c.fail(msg)
}

// snapshot copies row without the secret columns.
func (e *Engine) snapshot(row Row) Row {
	out := make(Row, len(row))
	for k, v := range row {
		if e.secret(k) {
			continue
		}
		out[k] = v
	}
	return out
}

func (e *Engine) secret(column string) bool {
	m := e.mapping
	return strings.EqualFold(column, m.PasswordColumn) ||
		(m.TokenColumn != "" && strings.EqualFold(column, m.TokenColumn)) ||
		(m.TokenExpiryColumn != "" && strings.EqualFold(column, m.TokenExpiryColumn))
}

// findBy returns the first row where column equals value exactly, or nil.
func (e *Engine) findBy(ctx context.Context, column string, value any) (Row, error) {
	q, args, err := database.Select(e.mapping.Table, e.db.Dialect()).
		WhereAll(database.ExactEq(column, value)).
		Limit(1).
		Build()
	if err != nil {
		return nil, err
	}
	rows, err := e.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	row, err := database.ScanOne(rows)
	if errs.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return Row(row), nil
}

func (e *Engine) loginExists(ctx context.Context, login string) (bool, error) {
	q, args, err := database.Count(e.mapping.Table, e.db.Dialect()).
		WhereAll(database.ExactEq(e.mapping.LoginColumn, login)).
		Build()
	if err != nil {
		return false, err
	}
	var n int64
	if err := e.db.QueryRow(ctx, q, args...).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// timestampValue is the argument bound for a timestamp column.
func (e *Engine) timestampValue(t time.Time) any {
	if e.db.Dialect().TouchMode() == database.TouchApplication {
		return database.Timestamp(t)
	}
	return t.UTC()
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// isEmpty reports whether a mandatory value is missing: nil or "".
// Zero numbers and false are legitimate values.
func isEmpty(v any) bool {
	switch s := v.(type) {
	case nil:
		return true
	case string:
		return s == ""
	case []byte:
		return len(s) == 0
	}
	return false
}

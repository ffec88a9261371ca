// Package auth implements account creation and credential verification
// against a user table whose shape is discovered at runtime.
//
// An Engine is shared by every request and owns the connection, the schema
// catalogue and the hooks. Per-request state lives in a Client obtained from
// Engine.Client, which carries the client id used for the session and the
// rate limiter, and collects user-facing error messages.
package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/koustreak/gardien/internal/database"
	_ "github.com/koustreak/gardien/internal/database/mysql"    // register mysql
	_ "github.com/koustreak/gardien/internal/database/postgres" // register postgres
	_ "github.com/koustreak/gardien/internal/database/sqlite"   // register sqlite
	"github.com/koustreak/gardien/internal/errs"
	"github.com/koustreak/gardien/internal/logger"
	"github.com/koustreak/gardien/internal/password"
	"github.com/koustreak/gardien/internal/ratelimit"
	"github.com/koustreak/gardien/internal/schema"
	"github.com/koustreak/gardien/internal/session"
	"github.com/koustreak/gardien/internal/validation"
)

// dummyPassword is hashed once at setup; unknown logins are verified
// against it so both failure paths cost one hash verification.
const dummyPassword = "gardien-unknown-login"

type Engine struct {
	db      database.DB
	ownsDB  bool
	mapping Mapping
	log     *logger.Logger

	reader  *schema.Introspector
	manager *schema.TableManager

	sessions          session.Store
	limiter           *ratelimit.Limiter
	hasher            password.Hasher
	dummyHash         string
	failures          *FailureLog
	minPasswordLength int
	now               func() time.Time
	validator         *validation.Validator
	fieldRules        map[string]any
	tokenTTL          time.Duration

	mu       sync.RWMutex
	cat      *schema.Catalogue
	tokens   bool
	preAuth  PreAuthHook
	postAuth PostAuthHook
}

// New connects with cfg and prepares the user table.
func New(ctx context.Context, cfg *database.Config, opts ...Option) (*Engine, error) {
	db, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	e, err := NewWithDB(ctx, db, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	e.ownsDB = true
	return e, nil
}

// NewWithDB prepares the user table on an existing connection. The caller
// keeps ownership of db.
func NewWithDB(ctx context.Context, db database.DB, opts ...Option) (*Engine, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.mapping.Validate(); err != nil {
		return nil, err
	}
	if err := o.rateLimit.Validate(); err != nil {
		return nil, err
	}
	if o.minPasswordLength < 1 {
		return nil, errs.New(errs.ErrKindConfiguration, "minimum password length must be at least 1")
	}
	if o.log == nil {
		o.log = logger.Nop()
	}
	if o.sessions == nil {
		o.sessions = session.NewMemoryStore(0)
	}
	if o.hasher == nil {
		b, err := password.NewBcrypt(password.DefaultBcryptCost)
		if err != nil {
			return nil, err
		}
		o.hasher = b
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.tokenTTL <= 0 {
		o.tokenTTL = DefaultTokenTTL
	}

	log := o.log.Component("auth")
	limiter := ratelimit.New(o.sessions, o.rateLimit)
	limiter.SetClock(o.now)

	e := &Engine{
		db:                db,
		mapping:           o.mapping,
		log:               log,
		reader:            schema.NewIntrospector(db, o.log),
		sessions:          o.sessions,
		limiter:           limiter,
		hasher:            o.hasher,
		failures:          NewFailureLog(o.mapping.LogFile, log),
		minPasswordLength: o.minPasswordLength,
		now:               o.now,
		validator:         o.validator,
		fieldRules:        o.fieldRules,
		tokenTTL:          o.tokenTTL,
		preAuth:           o.preAuth,
		postAuth:          o.postAuth,
	}
	e.failures.now = o.now
	e.manager = schema.NewTableManager(db, e.reader, o.log)

	dummy, err := e.hasher.Hash(dummyPassword)
	if err != nil {
		return nil, err
	}
	e.dummyHash = dummy

	if err := e.setup(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) setup(ctx context.Context) error {
	spec := e.mapping.tableSpec()

	if e.mapping.AutoCreate {
		if _, err := e.manager.EnsureTable(ctx, spec); err != nil {
			if errs.IsConnectionFailed(err) || errs.IsTimeout(err) {
				return err
			}
			e.log.WarnWith("could not create user table", err, map[string]any{"table": spec.Table})
		}
	}

	cat, err := e.reader.Catalogue(ctx, spec.Table, spec.LoginColumn, spec.PasswordColumn)
	if err != nil {
		return err
	}
	if !cat.Exists() {
		return errs.Newf(errs.ErrKindSchema, "table %s does not exist", spec.Table)
	}
	for _, col := range []string{spec.LoginColumn, spec.PasswordColumn} {
		if !cat.Has(col) {
			return errs.Newf(errs.ErrKindSchema, "table %s has no column %s", spec.Table, col)
		}
	}

	cat, err = e.manager.EnsureConventionColumns(ctx, spec, cat)
	if err != nil {
		return err
	}

	tokens := false
	if e.mapping.tokensConfigured() {
		tokens = cat.Has(e.mapping.TokenColumn) && cat.Has(e.mapping.TokenExpiryColumn)
		if !tokens {
			e.log.With().
				Str("token_column", e.mapping.TokenColumn).
				Str("token_expiry_column", e.mapping.TokenExpiryColumn).
				Logger().Warn("token columns missing, login tokens disabled")
		}
	}

	e.mu.Lock()
	e.cat = cat
	e.tokens = tokens
	e.mu.Unlock()

	e.log.With().
		Str("table", spec.Table).
		Int("columns", cat.Len()).
		Any("mandatory", cat.Mandatory()).
		Logger().Info("auth engine ready")
	return nil
}

// Reload re-reads the table structure, for use after an external migration.
func (e *Engine) Reload(ctx context.Context) error {
	e.reader.Reset()
	return e.setup(ctx)
}

// Close releases the connection when the engine opened it.
func (e *Engine) Close() error {
	if e.ownsDB {
		return e.db.Close()
	}
	return nil
}

func (e *Engine) catalogue() *schema.Catalogue {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cat
}

// MandatoryFields lists the columns CreateAccount requires in extra.
func (e *Engine) MandatoryFields() []string {
	return e.catalogue().Mandatory()
}

// TableSchema returns the current catalogue of the user table.
func (e *Engine) TableSchema() *schema.Catalogue {
	return e.catalogue()
}

// PublicColumns lists the columns of the user table that may leave the
// engine: every column except the password and token columns.
func (e *Engine) PublicColumns() []string {
	var out []string
	for _, name := range e.catalogue().Names() {
		if !e.secret(name) {
			out = append(out, name)
		}
	}
	return out
}

// DB returns the connection the engine works on.
func (e *Engine) DB() database.DB { return e.db }

// Introspector returns the structure cache shared with other helpers bound
// to the same connection.
func (e *Engine) Introspector() *schema.Introspector { return e.reader }

// FieldExists reports whether the user table has a column called name.
func (e *Engine) FieldExists(name string) bool {
	return e.catalogue().Has(name)
}

// TokensEnabled reports whether one-time login tokens are available.
func (e *Engine) TokensEnabled() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tokens
}

func (e *Engine) SetPreAuthHook(h PreAuthHook) {
	e.mu.Lock()
	e.preAuth = h
	e.mu.Unlock()
}

func (e *Engine) SetPostAuthHook(h PostAuthHook) {
	e.mu.Lock()
	e.postAuth = h
	e.mu.Unlock()
}

func (e *Engine) hooks() (PreAuthHook, PostAuthHook) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.preAuth, e.postAuth
}

// Limiter exposes the rate limiter, mainly to report remaining attempts.
func (e *Engine) Limiter() *ratelimit.Limiter {
	return e.limiter
}

// Client returns a handle bound to clientID and the remote ip. An empty
// clientID gets a fresh random id; an empty ip is logged as unknown.
func (e *Engine) Client(clientID, ip string) *Client {
	if clientID == "" {
		clientID = uuid.NewString()
	}
	return &Client{e: e, id: clientID, ip: ip}
}

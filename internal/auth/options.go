package auth

import (
	"context"
	"time"

	"github.com/koustreak/gardien/internal/logger"
	"github.com/koustreak/gardien/internal/password"
	"github.com/koustreak/gardien/internal/ratelimit"
	"github.com/koustreak/gardien/internal/session"
	"github.com/koustreak/gardien/internal/validation"
)

// Row is one user row keyed by column name.
type Row map[string]any

// PreAuthHook runs before credentials are checked. Returning false rejects
// the attempt.
type PreAuthHook func(ctx context.Context, login string) bool

// PostAuthHook runs after a successful authentication. Its error is logged
// and otherwise ignored.
type PostAuthHook func(ctx context.Context, user Row) error

const (
	DefaultMinPasswordLength = 6
	DefaultTokenTTL          = time.Hour
)

type options struct {
	mapping           Mapping
	log               *logger.Logger
	sessions          session.Store
	rateLimit         ratelimit.Config
	hasher            password.Hasher
	minPasswordLength int
	now               func() time.Time
	preAuth           PreAuthHook
	postAuth          PostAuthHook
	validator         *validation.Validator
	fieldRules        map[string]any
	tokenTTL          time.Duration
}

func defaultOptions() options {
	return options{
		mapping:           DefaultMapping(),
		rateLimit:         ratelimit.DefaultConfig(),
		minPasswordLength: DefaultMinPasswordLength,
		now:               time.Now,
		tokenTTL:          DefaultTokenTTL,
	}
}

// Option configures an Engine.
type Option func(*options)

func WithMapping(m Mapping) Option {
	return func(o *options) { o.mapping = m }
}

func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithSessionStore replaces the default in-memory store.
func WithSessionStore(s session.Store) Option {
	return func(o *options) { o.sessions = s }
}

func WithRateLimit(maxAttempts int, window time.Duration) Option {
	return func(o *options) {
		o.rateLimit = ratelimit.Config{MaxAttempts: maxAttempts, Window: window}
	}
}

// WithHasher replaces the default bcrypt hasher.
func WithHasher(h password.Hasher) Option {
	return func(o *options) { o.hasher = h }
}

func WithMinPasswordLength(n int) Option {
	return func(o *options) { o.minPasswordLength = n }
}

// WithClock sets the time source shared by the rate limiter, token expiry
// and application-assigned timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithPreAuthHook(h PreAuthHook) Option {
	return func(o *options) { o.preAuth = h }
}

func WithPostAuthHook(h PostAuthHook) Option {
	return func(o *options) { o.postAuth = h }
}

// WithValidator checks the extra fields given to CreateAccount against
// fieldRules (field name to rule string or []string) before anything is
// written.
func WithValidator(v *validation.Validator, fieldRules map[string]any) Option {
	return func(o *options) {
		o.validator = v
		o.fieldRules = fieldRules
	}
}

func WithTokenTTL(d time.Duration) Option {
	return func(o *options) { o.tokenTTL = d }
}

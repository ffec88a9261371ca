// Package ratelimit throttles failed login attempts per client with a
// sliding window over the attempt timestamps kept in the session store.
package ratelimit

import (
	"context"
	"time"

	"github.com/koustreak/gardien/internal/errs"
	"github.com/koustreak/gardien/internal/session"
)

const (
	DefaultMaxAttempts = 5
	DefaultWindow      = 15 * time.Minute
)

// Config holds the throttling parameters.
type Config struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Window      time.Duration `yaml:"window"`
}

func DefaultConfig() Config {
	return Config{MaxAttempts: DefaultMaxAttempts, Window: DefaultWindow}
}

func (c Config) Validate() error {
	if c.MaxAttempts < 1 {
		return errs.New(errs.ErrKindConfiguration, "rate_limit.max_attempts must be at least 1")
	}
	if c.Window <= 0 {
		return errs.New(errs.ErrKindConfiguration, "rate_limit.window must be positive")
	}
	return nil
}

// Limiter blocks a client once MaxAttempts failures fall inside Window.
//
// Each operation is a read-modify-write of the client's attempt log with no
// lock across the store, so two concurrent failures from the same client may
// record only one attempt. Clients share nothing, so this only ever loosens
// the limit for a single client by a few attempts.
type Limiter struct {
	store session.Store
	cfg   Config
	now   func() time.Time
}

// New creates a limiter on store. Zero fields in cfg take the defaults.
func New(store session.Store, cfg Config) *Limiter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	return &Limiter{store: store, cfg: cfg, now: time.Now}
}

// SetClock replaces the time source.
func (l *Limiter) SetClock(now func() time.Time) {
	if now != nil {
		l.now = now
	}
}

func (l *Limiter) Config() Config { return l.cfg }

// IsBlocked prunes attempts older than the window, stores the pruned log and
// reports whether the client reached the limit.
func (l *Limiter) IsBlocked(ctx context.Context, clientID string) (bool, error) {
	attempts, err := l.prune(ctx, clientID)
	if err != nil {
		return false, err
	}
	return len(attempts) >= l.cfg.MaxAttempts, nil
}

// RecordFailure appends the current time to the client's attempt log.
func (l *Limiter) RecordFailure(ctx context.Context, clientID string) error {
	attempts, err := l.load(ctx, clientID)
	if err != nil {
		return err
	}
	attempts = append(l.live(attempts), l.now())
	return l.store.Set(ctx, clientID, session.SlotAttempts, attempts)
}

// Reset forgets every attempt of the client.
func (l *Limiter) Reset(ctx context.Context, clientID string) error {
	return l.store.Delete(ctx, clientID, session.SlotAttempts)
}

// Remaining returns how many failures the client may still make before it
// is blocked.
func (l *Limiter) Remaining(ctx context.Context, clientID string) (int, error) {
	attempts, err := l.prune(ctx, clientID)
	if err != nil {
		return 0, err
	}
	if n := l.cfg.MaxAttempts - len(attempts); n > 0 {
		return n, nil
	}
	return 0, nil
}

func (l *Limiter) load(ctx context.Context, clientID string) ([]time.Time, error) {
	var attempts []time.Time
	if _, err := l.store.Get(ctx, clientID, session.SlotAttempts, &attempts); err != nil {
		return nil, err
	}
	return attempts, nil
}

func (l *Limiter) prune(ctx context.Context, clientID string) ([]time.Time, error) {
	attempts, err := l.load(ctx, clientID)
	if err != nil {
		return nil, err
	}
	kept := l.live(attempts)
	if len(kept) != len(attempts) {
		if err := l.store.Set(ctx, clientID, session.SlotAttempts, kept); err != nil {
			return nil, err
		}
	}
	return kept, nil
}

// live keeps the attempts younger than the window.
func (l *Limiter) live(attempts []time.Time) []time.Time {
	now := l.now()
	kept := make([]time.Time, 0, len(attempts))
	for _, t := range attempts {
		if now.Sub(t) < l.cfg.Window {
			kept = append(kept, t)
		}
	}
	return kept
}

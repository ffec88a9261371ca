// Package config loads the gardien YAML configuration. Every field has a
// default, so a file only needs the settings it changes:
//
//	database:
//	  engine: pgsql
//	  host: db.internal
//	  database: app
//	  user: auth
//	auth:
//	  table: members
//	  login_column: email
//	  password_column: pw_hash
//	rate_limit:
//	  max_attempts: 3
//	  window: 10m
//
// Secrets can be supplied through the environment instead of the file.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/koustreak/gardien/internal/auth"
	"github.com/koustreak/gardien/internal/database"
	"github.com/koustreak/gardien/internal/errs"
	"github.com/koustreak/gardien/internal/filestore"
	"github.com/koustreak/gardien/internal/password"
	"github.com/koustreak/gardien/internal/ratelimit"
	"go.yaml.in/yaml/v3"
)

// Environment variables overriding file values.
const (
	EnvDBPassword = "GARDIEN_DB_PASSWORD"
	EnvDBDSN      = "GARDIEN_DB_DSN"
	EnvJWTSecret  = "GARDIEN_JWT_SECRET"
)

// Session drivers.
const (
	SessionMemory = "memory"
	SessionRedis  = "redis"
)

// MinJWTSecretLength is the shortest accepted HS256 signing secret.
const MinJWTSecretLength = 32

type Config struct {
	Database   database.Config  `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	RateLimit  ratelimit.Config `yaml:"rate_limit"`
	Session    SessionConfig    `yaml:"session"`
	Password   password.Config  `yaml:"password"`
	Log        LogConfig        `yaml:"log"`
	Server     ServerConfig     `yaml:"server"`
	FileStore  filestore.Config `yaml:"filestore"`
	Validation ValidationConfig `yaml:"validation"`
}

// AuthConfig extends the table mapping with the engine's tunables.
type AuthConfig struct {
	auth.Mapping `yaml:",inline"`

	MinPasswordLength int           `yaml:"min_password_length"`
	TokenTTL          time.Duration `yaml:"token_ttl"`
}

type SessionConfig struct {
	Driver string `yaml:"driver"` // memory, redis

	// TTL expires idle client state. Zero keeps it forever.
	TTL time.Duration `yaml:"ttl"`

	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, console

	// JournalFile receives the CRUD journal. Empty disables it.
	JournalFile string `yaml:"journal_file"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`

	// JWTSecret signs the client cookie. When empty a random secret is
	// generated at startup and clients are forgotten on restart.
	JWTSecret    string `yaml:"jwt_secret"`
	CookieName   string `yaml:"cookie_name"`
	CookieSecure bool   `yaml:"cookie_secure"`

	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type ValidationConfig struct {
	// RulesFile holds composite rule declarations loaded at startup.
	RulesFile string `yaml:"rules_file"`

	// Fields maps registration fields to rule strings ("required|email").
	Fields map[string]string `yaml:"fields"`

	// Messages overrides rule messages, keyed "rule" or "field.rule".
	Messages map[string]string `yaml:"messages"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	db := database.DefaultConfig()
	db.Engine = database.EngineSQLite
	db.Database = "gardien.db"
	return &Config{
		Database: *db,
		Auth: AuthConfig{
			Mapping:           auth.DefaultMapping(),
			MinPasswordLength: auth.DefaultMinPasswordLength,
			TokenTTL:          auth.DefaultTokenTTL,
		},
		RateLimit: ratelimit.DefaultConfig(),
		Session: SessionConfig{
			Driver: SessionMemory,
			TTL:    24 * time.Hour,
			Addr:   "localhost:6379",
		},
		Password: password.DefaultConfig(),
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			CookieName:      "gardien_client",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		FileStore: *filestore.DefaultConfig(),
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path loads the defaults alone.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindConfiguration, "read config file", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, errs.Wrap(errs.ErrKindConfiguration, "parse config file "+path, err)
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides secrets from the environment. lookup is os.LookupEnv
// outside tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvDBPassword); ok {
		c.Database.Password = v
	}
	if v, ok := lookup(EnvDBDSN); ok {
		c.Database.DSN = v
	}
	if v, ok := lookup(EnvJWTSecret); ok {
		c.Server.JWTSecret = v
	}
}

// Validate checks every section and normalises aliases.
func (c *Config) Validate() error {
	if err := c.Database.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Mapping.Validate(); err != nil {
		return err
	}
	if c.Auth.MinPasswordLength < 1 {
		return errs.New(errs.ErrKindConfiguration, "auth.min_password_length must be positive")
	}
	if c.Auth.TokenTTL <= 0 {
		return errs.New(errs.ErrKindConfiguration, "auth.token_ttl must be positive")
	}
	if err := c.RateLimit.Validate(); err != nil {
		return err
	}
	if _, err := password.FromConfig(c.Password); err != nil {
		return errs.Wrap(errs.ErrKindConfiguration, "invalid password settings", err)
	}

	c.Session.Driver = strings.ToLower(strings.TrimSpace(c.Session.Driver))
	switch c.Session.Driver {
	case "", SessionMemory:
		c.Session.Driver = SessionMemory
	case SessionRedis:
		if c.Session.Addr == "" {
			return errs.New(errs.ErrKindConfiguration, "session.addr is required for the redis driver")
		}
	default:
		return errs.Newf(errs.ErrKindConfiguration, "unsupported session driver %q", c.Session.Driver)
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		return errs.Newf(errs.ErrKindConfiguration, "unsupported log format %q", c.Log.Format)
	}

	if c.Server.Addr == "" {
		return errs.New(errs.ErrKindConfiguration, "server.addr is required")
	}
	if c.Server.CookieName == "" {
		return errs.New(errs.ErrKindConfiguration, "server.cookie_name is required")
	}
	if s := c.Server.JWTSecret; s != "" && len(s) < MinJWTSecretLength {
		return errs.Newf(errs.ErrKindConfiguration,
			"server.jwt_secret must be at least %d bytes", MinJWTSecretLength)
	}

	return c.FileStore.Validate()
}

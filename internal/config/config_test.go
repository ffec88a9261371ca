package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/koustreak/gardien/internal/database"
	"github.com/koustreak/gardien/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gardien.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "utilisateur", cfg.Auth.Table)
	assert.Equal(t, "login", cfg.Auth.LoginColumn)
	assert.Equal(t, "mot_de_passe", cfg.Auth.PasswordColumn)
	assert.True(t, cfg.Auth.AutoCreate)
	assert.Equal(t, 5, cfg.RateLimit.MaxAttempts)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, SessionMemory, cfg.Session.Driver)
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := writeFile(t, `
database:
  engine: pgsql
  host: db.internal
  database: app
  user: auth
auth:
  table: members
  login_column: email
  password_column: pw_hash
  min_password_length: 10
rate_limit:
  max_attempts: 3
  window: 10m
session:
  driver: Redis
  addr: cache:6379
validation:
  fields:
    email: required|email
  messages:
    email.required: Email please
`)
	t.Setenv(EnvDBPassword, "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, database.EnginePostgres, cfg.Database.Engine)
	assert.Equal(t, "from-env", cfg.Database.Password)
	assert.Equal(t, "members", cfg.Auth.Table)
	assert.Equal(t, "auth_erreurs.log", cfg.Auth.LogFile, "unset keys keep their default")
	assert.True(t, cfg.Auth.AutoCreate)
	assert.Equal(t, 10, cfg.Auth.MinPasswordLength)
	assert.Equal(t, 3, cfg.RateLimit.MaxAttempts)
	assert.Equal(t, 10*time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, SessionRedis, cfg.Session.Driver)
	assert.Equal(t, "required|email", cfg.Validation.Fields["email"])
	assert.Equal(t, "Email please", cfg.Validation.Messages["email.required"])
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.True(t, errs.IsConfiguration(err))

	_, err = Load(writeFile(t, "database: [unterminated"))
	assert.True(t, errs.IsConfiguration(err))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown engine", func(c *Config) { c.Database.Engine = "oracle" }, "unsupported database engine"},
		{"unsafe table", func(c *Config) { c.Auth.Table = "users; --" }, "auth.table"},
		{"same columns", func(c *Config) { c.Auth.PasswordColumn = c.Auth.LoginColumn }, "must differ"},
		{"zero attempts", func(c *Config) { c.RateLimit.MaxAttempts = -1 }, "max_attempts"},
		{"session driver", func(c *Config) { c.Session.Driver = "memcached" }, "session driver"},
		{"redis without addr", func(c *Config) { c.Session.Driver = SessionRedis; c.Session.Addr = "" }, "session.addr"},
		{"short secret", func(c *Config) { c.Server.JWTSecret = "short" }, "jwt_secret"},
		{"hash algorithm", func(c *Config) { c.Password.Algorithm = "md5" }, "password"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log format"},
		{"filestore", func(c *Config) { c.FileStore.Provider = "ftp" }, "filestore"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errs.IsConfiguration(err))
			assert.Contains(t, strings.ToLower(err.Error()), strings.ToLower(tt.wantErr))
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvDBDSN:     "postgres://u@h/db",
		EnvJWTSecret: strings.Repeat("s", MinJWTSecretLength),
	}
	cfg := Default()
	cfg.ApplyEnv(func(k string) (string, bool) { v, ok := env[k]; return v, ok })

	assert.Equal(t, "postgres://u@h/db", cfg.Database.DSN)
	assert.Equal(t, env[EnvJWTSecret], cfg.Server.JWTSecret)
	assert.Empty(t, cfg.Database.Password)
	assert.NoError(t, cfg.Validate())
}

package database

import (
	"strings"
	"time"

	"github.com/koustreak/gardien/internal/errs"
)

// Engine identifies one of the supported database products.
type Engine string

const (
	EngineMySQL    Engine = "mysql"
	EngineSQLite   Engine = "sqlite"
	EnginePostgres Engine = "postgres"
)

// Engines lists every supported engine.
var Engines = []Engine{EngineMySQL, EngineSQLite, EnginePostgres}

// ParseEngine folds the accepted aliases onto an Engine.
func ParseEngine(name string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mysql", "mariadb":
		return EngineMySQL, nil
	case "sqlite", "sqlite3":
		return EngineSQLite, nil
	case "postgres", "postgresql", "pgsql", "pg":
		return EnginePostgres, nil
	}
	return "", errs.Newf(errs.ErrKindConfiguration, "unsupported database engine %q", name)
}

// MemoryDatabase is the sqlite marker for a private in-memory database.
const MemoryDatabase = ":memory:"

// Config describes how to reach one database.
type Config struct {
	Engine Engine `yaml:"engine"`

	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"` // database name, or file path for sqlite
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Charset  string `yaml:"charset"`
	SSLMode  string `yaml:"sslmode"`

	// DSN, when set, is handed to the driver untouched instead of being built
	// from the fields above.
	DSN string `yaml:"dsn"`

	// Pool tuning
	MaxConns        int           `yaml:"max_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`

	// ConnectTimeout bounds the initial ping.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// DefaultConfig returns the settings used when a field is left empty.
func DefaultConfig() *Config {
	return &Config{
		Engine:          EngineMySQL,
		Host:            "localhost",
		Charset:         "utf8mb4",
		MaxConns:        10,
		MaxIdleConns:    5,
		MaxConnLifetime: 30 * time.Minute,
		MaxConnIdleTime: 5 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
}

// Validate checks the required parameters for the configured engine.
// Password is never required: passwordless local servers are supported.
func (c *Config) Validate() error {
	engine, err := ParseEngine(string(c.Engine))
	if err != nil {
		return err
	}
	c.Engine = engine

	if c.DSN != "" {
		return nil
	}

	var missing []string
	if c.Database == "" {
		missing = append(missing, "database")
	}
	if engine != EngineSQLite {
		if c.Host == "" {
			missing = append(missing, "host")
		}
		if c.User == "" {
			missing = append(missing, "user")
		}
	}
	if len(missing) > 0 {
		return errs.Newf(errs.ErrKindConfiguration,
			"missing required connection parameter(s): %s", strings.Join(missing, ", "))
	}
	if c.Port < 0 || c.Port > 65535 {
		return errs.Newf(errs.ErrKindConfiguration, "invalid port %d", c.Port)
	}
	return nil
}

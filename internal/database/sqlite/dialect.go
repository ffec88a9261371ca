// Package sqlite registers the SQLite strategy with the database package,
// backed by the pure-Go modernc.org/sqlite driver.
//
//	import _ "github.com/koustreak/gardien/internal/database/sqlite"
package sqlite

import (
	"net/url"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/koustreak/gardien/internal/database"
	_ "modernc.org/sqlite" // register "sqlite" driver
)

func init() {
	database.Register(Dialect{})
}

const busyTimeoutMillis = "5000"

// Dialect implements database.Dialect for SQLite. SQLite has neither an ON
// UPDATE clause nor non-constant defaults on ALTER TABLE ADD COLUMN, so
// timestamps are assigned by the application.
type Dialect struct{}

func (Dialect) Engine() database.Engine { return database.EngineSQLite }
func (Dialect) DriverName() string      { return "sqlite" }
func (Dialect) BindType() int           { return sqlx.QUESTION }

// MaxOpenConns pins the pool to one connection: every connection to
// ":memory:" is a separate database, and SQLite serialises writers anyway.
func (Dialect) MaxOpenConns() int { return 1 }

func (Dialect) TouchMode() database.TouchMode { return database.TouchApplication }

func (Dialect) QuoteIdent(name string) string {
	return database.QuoteANSI(name)
}

// BuildDSN returns the file path with a busy timeout pragma, or the bare
// in-memory marker.
func (Dialect) BuildDSN(cfg *database.Config) (string, error) {
	if cfg.Database == database.MemoryDatabase {
		return database.MemoryDatabase, nil
	}
	q := url.Values{}
	q.Add("_pragma", "busy_timeout("+busyTimeoutMillis+")")
	q.Add("_pragma", "foreign_keys(1)")
	return "file:" + cfg.Database + "?" + q.Encode(), nil
}

func (Dialect) TableExistsQuery() string {
	return `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`
}

func (d Dialect) CreateTableDDL(spec database.TableSpec) []string {
	return []string{database.UserTableDDL(d, spec, "INTEGER PRIMARY KEY AUTOINCREMENT", "DATETIME", "")}
}

// AddTimestampColumnDDL adds the column without a default and backfills
// existing rows.
func (d Dialect) AddTimestampColumnDDL(table, column string) []string {
	t, c := d.QuoteIdent(table), d.QuoteIdent(column)
	return []string{
		"ALTER TABLE " + t + " ADD COLUMN " + c + " DATETIME",
		"UPDATE " + t + " SET " + c + " = CURRENT_TIMESTAMP WHERE " + c + " IS NULL",
	}
}

func (Dialect) UpdatedAtTriggerDDL(string) []string { return nil }

func (Dialect) LoginColumnType() string { return "VARCHAR(255)" }

// ExactMatch overrides a NOCASE or RTRIM column collation.
func (Dialect) ExactMatch(col string) string { return col + " COLLATE BINARY" }

func (Dialect) MapError(err error, msg string) error {
	return mapError(err, msg)
}

func isIntegerType(declared string) bool {
	return strings.EqualFold(strings.TrimSpace(declared), "INTEGER")
}

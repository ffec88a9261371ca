// Package mysql registers the MySQL/MariaDB strategy with the database
// package. Import it for its side effect:
//
//	import _ "github.com/koustreak/gardien/internal/database/mysql"
package mysql

import (
	"strings"

	_ "github.com/go-sql-driver/mysql" // register "mysql" driver
	"github.com/jmoiron/sqlx"
	"github.com/koustreak/gardien/internal/database"
)

func init() {
	database.Register(Dialect{})
}

// Dialect implements database.Dialect for MySQL. updated_at refreshes itself
// through ON UPDATE CURRENT_TIMESTAMP.
type Dialect struct{}

func (Dialect) Engine() database.Engine { return database.EngineMySQL }
func (Dialect) DriverName() string      { return "mysql" }
func (Dialect) BindType() int           { return sqlx.QUESTION }
func (Dialect) MaxOpenConns() int       { return 0 }

func (Dialect) TouchMode() database.TouchMode { return database.TouchNative }

// QuoteIdent wraps a validated identifier in backticks.
func (Dialect) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (Dialect) BuildDSN(cfg *database.Config) (string, error) {
	return buildDSN(cfg), nil
}

func (Dialect) TableExistsQuery() string {
	return `
		SELECT COUNT(*)
		FROM information_schema.tables
		WHERE table_schema = DATABASE()
		  AND table_type   = 'BASE TABLE'
		  AND table_name   = ?`
}

func (d Dialect) CreateTableDDL(spec database.TableSpec) []string {
	return []string{database.UserTableDDL(d, spec,
		"INT AUTO_INCREMENT PRIMARY KEY",
		"TIMESTAMP",
		"ON UPDATE CURRENT_TIMESTAMP",
	) + " ENGINE=InnoDB"}
}

func (d Dialect) AddTimestampColumnDDL(table, column string) []string {
	def := "TIMESTAMP DEFAULT CURRENT_TIMESTAMP"
	if column == database.ColumnUpdatedAt {
		def += " ON UPDATE CURRENT_TIMESTAMP"
	}
	return []string{"ALTER TABLE " + d.QuoteIdent(table) + " ADD COLUMN " + d.QuoteIdent(column) + " " + def}
}

func (Dialect) UpdatedAtTriggerDDL(string) []string { return nil }

// LoginColumnType uses a binary collation: the server default collations
// fold case and accents.
func (Dialect) LoginColumnType() string { return "VARCHAR(255) COLLATE utf8mb4_bin" }

func (Dialect) ExactMatch(col string) string { return "BINARY " + col }

func (Dialect) MapError(err error, msg string) error {
	return mapError(err, msg)
}

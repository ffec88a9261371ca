// Package postgres registers the PostgreSQL strategy with the database
// package. Connections go through pgx's database/sql driver.
//
//	import _ "github.com/koustreak/gardien/internal/database/postgres"
package postgres

import (
	_ "github.com/jackc/pgx/v5/stdlib" // register "pgx" driver
	"github.com/jmoiron/sqlx"
	"github.com/koustreak/gardien/internal/database"
)

func init() {
	database.Register(Dialect{})
}

// Dialect implements database.Dialect for PostgreSQL. Postgres has no ON
// UPDATE clause, so updated_at is maintained by a BEFORE UPDATE trigger.
type Dialect struct{}

func (Dialect) Engine() database.Engine { return database.EnginePostgres }
func (Dialect) DriverName() string      { return "pgx" }
func (Dialect) BindType() int           { return sqlx.DOLLAR }
func (Dialect) MaxOpenConns() int       { return 0 }

func (Dialect) TouchMode() database.TouchMode { return database.TouchTrigger }

func (Dialect) QuoteIdent(name string) string {
	return database.QuoteANSI(name)
}

func (Dialect) BuildDSN(cfg *database.Config) (string, error) {
	return buildDSN(cfg)
}

func (Dialect) TableExistsQuery() string {
	return `
		SELECT COUNT(*)
		FROM information_schema.tables
		WHERE table_schema = current_schema()
		  AND table_type   = 'BASE TABLE'
		  AND table_name   = ?`
}

func (d Dialect) CreateTableDDL(spec database.TableSpec) []string {
	return []string{database.UserTableDDL(d, spec, "SERIAL PRIMARY KEY", "TIMESTAMP", "")}
}

func (d Dialect) AddTimestampColumnDDL(table, column string) []string {
	return []string{"ALTER TABLE " + d.QuoteIdent(table) +
		" ADD COLUMN IF NOT EXISTS " + d.QuoteIdent(column) + " TIMESTAMP DEFAULT CURRENT_TIMESTAMP"}
}

// UpdatedAtTriggerDDL replaces the backing function, then drops and
// recreates the trigger. Run inside one transaction it is idempotent.
func (d Dialect) UpdatedAtTriggerDDL(table string) []string {
	fn := d.QuoteIdent(table + "_touch_updated_at")
	trg := d.QuoteIdent(table + "_touch_updated_at_trg")
	tbl := d.QuoteIdent(table)

	return []string{
		"CREATE OR REPLACE FUNCTION " + fn + "() RETURNS TRIGGER AS $$\n" +
			"BEGIN\n" +
			"    NEW." + d.QuoteIdent(database.ColumnUpdatedAt) + " = CURRENT_TIMESTAMP;\n" +
			"    RETURN NEW;\n" +
			"END;\n" +
			"$$ LANGUAGE plpgsql",
		"DROP TRIGGER IF EXISTS " + trg + " ON " + tbl,
		"CREATE TRIGGER " + trg + " BEFORE UPDATE ON " + tbl +
			" FOR EACH ROW EXECUTE FUNCTION " + fn + "()",
	}
}

func (Dialect) LoginColumnType() string { return "VARCHAR(255)" }

// ExactMatch pins the "C" collation, which is always deterministic.
func (Dialect) ExactMatch(col string) string { return col + ` COLLATE "C"` }

func (Dialect) MapError(err error, msg string) error {
	return mapError(err, msg)
}

package database

import "time"

// ColumnInfo is the engine-neutral description of one column. Every dialect
// normalises its native metadata into this shape before anything else reads it.
type ColumnInfo struct {
	Name          string  `json:"name"`
	DeclaredType  string  `json:"declared_type"` // engine-native type string
	Nullable      bool    `json:"nullable"`
	Default       *string `json:"default,omitempty"` // nil when the column has no default
	AutoIncrement bool    `json:"auto_increment"`
}

// HasDefault reports whether the column carries a default value.
func (c ColumnInfo) HasDefault() bool {
	return c.Default != nil
}

// TableSpec names the physical table and the columns that carry the login
// and password roles.
type TableSpec struct {
	Table          string
	LoginColumn    string
	PasswordColumn string
}

// Convention column names managed by the table manager.
const (
	ColumnID        = "id"
	ColumnCreatedAt = "created_at"
	ColumnUpdatedAt = "updated_at"
)

// UserTableDDL renders the CREATE TABLE statement shared by every engine.
// pk is the engine's auto-increment primary key definition, ts its timestamp
// type and onUpdate an optional clause appended to updated_at.
func UserTableDDL(d Dialect, spec TableSpec, pk, ts, onUpdate string) string {
	updated := ts + " DEFAULT CURRENT_TIMESTAMP"
	if onUpdate != "" {
		updated += " " + onUpdate
	}
	return "CREATE TABLE IF NOT EXISTS " + d.QuoteIdent(spec.Table) + " (" +
		d.QuoteIdent(ColumnID) + " " + pk + ", " +
		d.QuoteIdent(spec.LoginColumn) + " " + d.LoginColumnType() + " NOT NULL UNIQUE, " +
		d.QuoteIdent(spec.PasswordColumn) + " VARCHAR(255) NOT NULL, " +
		d.QuoteIdent(ColumnCreatedAt) + " " + ts + " DEFAULT CURRENT_TIMESTAMP, " +
		d.QuoteIdent(ColumnUpdatedAt) + " " + updated + ")"
}

// TimestampLayout matches the text CURRENT_TIMESTAMP produces, so values
// assigned by the application sort and compare with engine defaults.
const TimestampLayout = "2006-01-02 15:04:05"

// Timestamp formats t (in UTC) for application-assigned timestamp columns.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

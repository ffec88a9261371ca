package schema

import (
	"encoding/json"
	"strings"

	"github.com/koustreak/gardien/internal/database"
)

// Catalogue is the cached description of the user table: its columns in
// declaration order, a name index and the derived mandatory fields.
// A Catalogue is immutable once built.
type Catalogue struct {
	table     string
	columns   []database.ColumnInfo
	index     map[string]int
	mandatory []string
}

// NewCatalogue indexes cols and derives the mandatory fields for the given
// login and password columns.
func NewCatalogue(table string, cols []database.ColumnInfo, loginColumn, passwordColumn string) *Catalogue {
	c := &Catalogue{
		table:   table,
		columns: append([]database.ColumnInfo(nil), cols...),
		index:   make(map[string]int, len(cols)),
	}
	for i, col := range c.columns {
		c.index[strings.ToLower(col.Name)] = i
	}
	c.mandatory = DeriveMandatoryFields(c.columns, loginColumn, passwordColumn)
	return c
}

func (c *Catalogue) Table() string { return c.table }

// Exists reports whether the table had any columns when described.
func (c *Catalogue) Exists() bool { return len(c.columns) > 0 }

func (c *Catalogue) Len() int { return len(c.columns) }

// Columns returns a copy of the columns in declaration order.
func (c *Catalogue) Columns() []database.ColumnInfo {
	return append([]database.ColumnInfo(nil), c.columns...)
}

// Column looks a column up by name, case-insensitively.
func (c *Catalogue) Column(name string) (database.ColumnInfo, bool) {
	i, ok := c.index[strings.ToLower(name)]
	if !ok {
		return database.ColumnInfo{}, false
	}
	return c.columns[i], true
}

// Has reports whether the table has a column called name.
func (c *Catalogue) Has(name string) bool {
	_, ok := c.index[strings.ToLower(name)]
	return ok
}

// Names returns the column names in declaration order.
func (c *Catalogue) Names() []string {
	names := make([]string, len(c.columns))
	for i, col := range c.columns {
		names[i] = col.Name
	}
	return names
}

// Mandatory returns a copy of the fields a caller must supply on account
// creation, in declaration order.
func (c *Catalogue) Mandatory() []string {
	return append([]string(nil), c.mandatory...)
}

// AutoIncrementColumn returns the first auto-increment column, if any.
func (c *Catalogue) AutoIncrementColumn() (string, bool) {
	for _, col := range c.columns {
		if col.AutoIncrement {
			return col.Name, true
		}
	}
	return "", false
}

func (c *Catalogue) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Table     string                `json:"table"`
		Columns   []database.ColumnInfo `json:"columns"`
		Mandatory []string              `json:"mandatory"`
	}{c.table, c.columns, c.mandatory})
}

// DeriveMandatoryFields returns, in declaration order, every column that is
// NOT NULL, has no default, is not auto-increment and is neither the login
// column, the password column nor one of the convention columns.
func DeriveMandatoryFields(cols []database.ColumnInfo, loginColumn, passwordColumn string) []string {
	excluded := []string{loginColumn, passwordColumn,
		database.ColumnID, database.ColumnCreatedAt, database.ColumnUpdatedAt}

	out := make([]string, 0, len(cols))
	for _, col := range cols {
		if col.Nullable || col.HasDefault() || col.AutoIncrement {
			continue
		}
		if containsFold(excluded, col.Name) {
			continue
		}
		out = append(out, col.Name)
	}
	return out
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// Package schema introspects the user table, derives which columns callers
// must supply, and keeps the table conformant (existence, convention
// timestamp columns, update triggers) across the supported engines.
package schema

import (
	"context"

	"github.com/koustreak/gardien/internal/database"
)

// Reader is the read side consumed by the CRUD helper.
// *Introspector implements it.
type Reader interface {
	// TableExists reports whether table exists in the connected database.
	TableExists(ctx context.Context, table string) (bool, error)

	// DescribeColumns returns the normalised columns of table in declaration
	// order; empty when the table does not exist.
	DescribeColumns(ctx context.Context, table string) ([]database.ColumnInfo, error)

	// Catalogue returns the cached catalogue of table with mandatory fields
	// derived for the given login and password columns.
	Catalogue(ctx context.Context, table, loginColumn, passwordColumn string) (*Catalogue, error)

	// Invalidate drops the cached description of table.
	Invalidate(table string)
}

package database

import "context"

// Querier runs parameterized statements. Statements are written with "?"
// placeholders; implementations rebind them for the active dialect.
type Querier interface {
	// Exec runs a statement that returns no rows.
	Exec(ctx context.Context, query string, args ...any) (Result, error)

	// Query executes a statement that returns multiple rows.
	Query(ctx context.Context, query string, args ...any) (Rows, error)

	// QueryRow executes a statement that returns at most one row.
	// Errors are deferred until Row.Scan.
	QueryRow(ctx context.Context, query string, args ...any) Row
}

// DB is the central contract for all database operations.
// Layers above this package talk only to this interface. They never import
// the engine packages except to register them.
type DB interface {
	Querier

	// Dialect returns the strategy for the connected engine.
	Dialect() Dialect

	// Begin starts a transaction.
	Begin(ctx context.Context) (Tx, error)

	// Ping verifies the database is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}

// Tx is a transaction opened by DB.Begin.
type Tx interface {
	Querier
	Commit() error
	Rollback() error
}

// Result reports the outcome of Exec.
type Result struct {
	RowsAffected int64
	// LastInsertID is 0 when the engine does not report it (postgres).
	LastInsertID int64
}

// Rows is an abstraction over a database result set.
// Callers must always call Close() when done, even on error.
type Rows interface {
	// Next advances to the next row.
	// Returns false when no more rows exist or on error.
	Next() bool

	// Scan copies the current row's columns into the provided destinations.
	Scan(dest ...any) error

	// Columns returns the column names of the result set.
	Columns() ([]string, error)

	// Close releases resources held by the result set.
	Close()

	// Err returns any error encountered during iteration.
	Err() error
}

// Row is an abstraction over a single database row.
type Row interface {
	Scan(dest ...any) error
}

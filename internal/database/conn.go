package database

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/koustreak/gardien/internal/errs"
)

// Conn is the database/sql backed implementation of DB shared by all
// engines. It is safe for concurrent use by multiple goroutines.
type Conn struct {
	x       *sqlx.DB
	dialect Dialect
	executor
}

// Open validates cfg, resolves the registered dialect, opens the pool and
// pings it within cfg.ConnectTimeout.
func Open(ctx context.Context, cfg *Config) (*Conn, error) {
	if cfg == nil {
		return nil, errs.New(errs.ErrKindConfiguration, "nil database config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d, err := Lookup(cfg.Engine)
	if err != nil {
		return nil, err
	}

	dsn := cfg.DSN
	if dsn == "" {
		if dsn, err = d.BuildDSN(cfg); err != nil {
			return nil, errs.Wrap(errs.ErrKindConfiguration, "cannot build DSN", err)
		}
	}

	x, err := sqlx.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid DSN", err)
	}
	configurePool(x.DB, cfg, d)

	c := NewConn(x, d)

	pingCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := c.Ping(pingCtx); err != nil {
		_ = x.Close()
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "database unreachable", err)
	}

	return c, nil
}

// NewConn builds a Conn around an already opened pool.
func NewConn(x *sqlx.DB, d Dialect) *Conn {
	return &Conn{x: x, dialect: d, executor: executor{ext: x, dialect: d}}
}

func configurePool(db *sql.DB, cfg *Config, d Dialect) {
	maxOpen := cfg.MaxConns
	if n := d.MaxOpenConns(); n > 0 {
		maxOpen = n
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(min(cfg.MaxIdleConns, max(maxOpen, 1)))
	}
	if cfg.MaxConnLifetime > 0 {
		db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	}
	if cfg.MaxConnIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.MaxConnIdleTime)
	}
}

// --- DB implementation ---

func (c *Conn) Dialect() Dialect {
	return c.dialect
}

func (c *Conn) Ping(ctx context.Context) error {
	if err := c.x.PingContext(ctx); err != nil {
		return c.mapError(err, "ping failed")
	}
	return nil
}

func (c *Conn) Close() error {
	return c.x.Close()
}

func (c *Conn) Begin(ctx context.Context) (Tx, error) {
	tx, err := c.x.BeginTxx(ctx, nil)
	if err != nil {
		return nil, c.mapError(err, "begin transaction failed")
	}
	return &sqlTx{tx: tx, executor: executor{ext: tx, dialect: c.dialect}}, nil
}

// executor is shared by Conn and sqlTx.
type executor struct {
	ext     sqlx.ExtContext
	dialect Dialect
}

func (e executor) rebind(query string) string {
	return sqlx.Rebind(e.dialect.BindType(), query)
}

func (e executor) mapError(err error, msg string) error {
	if common := MapCommon(err, msg); common != nil {
		return common
	}
	return e.dialect.MapError(err, msg)
}

func (e executor) Exec(ctx context.Context, query string, args ...any) (Result, error) {
	res, err := e.ext.ExecContext(ctx, e.rebind(query), args...)
	if err != nil {
		return Result{}, e.mapError(err, "exec failed")
	}

	var out Result
	if out.RowsAffected, err = res.RowsAffected(); err != nil {
		return Result{}, e.mapError(err, "rows affected unavailable")
	}
	if id, err := res.LastInsertId(); err == nil {
		out.LastInsertID = id
	}
	return out, nil
}

func (e executor) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := e.ext.QueryxContext(ctx, e.rebind(query), args...)
	if err != nil {
		return nil, e.mapError(err, "query failed")
	}
	return &sqlRows{rows: rows, exec: e}, nil
}

func (e executor) QueryRow(ctx context.Context, query string, args ...any) Row {
	return &sqlRow{row: e.ext.QueryRowxContext(ctx, e.rebind(query), args...), exec: e}
}

type sqlTx struct {
	tx *sqlx.Tx
	executor
}

func (t *sqlTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return t.mapError(err, "commit failed")
	}
	return nil
}

func (t *sqlTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil {
		return t.mapError(err, "rollback failed")
	}
	return nil
}

// --- result wrappers ---

type sqlRows struct {
	rows *sqlx.Rows
	exec executor
}

func (r *sqlRows) Next() bool                 { return r.rows.Next() }
func (r *sqlRows) Columns() ([]string, error) { return r.rows.Columns() }
func (r *sqlRows) Close()                     { _ = r.rows.Close() }

func (r *sqlRows) Scan(dest ...any) error {
	if err := r.rows.Scan(dest...); err != nil {
		return r.exec.mapError(err, "scan failed")
	}
	return nil
}

// MapScan lets ScanRows use sqlx's column mapping directly.
func (r *sqlRows) MapScan(dest map[string]any) error {
	if err := r.rows.MapScan(dest); err != nil {
		return r.exec.mapError(err, "scan failed")
	}
	return nil
}

func (r *sqlRows) Err() error {
	if err := r.rows.Err(); err != nil {
		return r.exec.mapError(err, "row iteration failed")
	}
	return nil
}

type sqlRow struct {
	row  *sqlx.Row
	exec executor
}

func (r *sqlRow) Scan(dest ...any) error {
	if err := r.row.Scan(dest...); err != nil {
		return r.exec.mapError(err, "scan failed")
	}
	return nil
}

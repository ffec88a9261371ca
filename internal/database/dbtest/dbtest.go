// Package dbtest provides helpers for tests that need a real database: an
// in-memory SQLite connection and a Probe that records every statement
// reaching the data layer.
package dbtest

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/koustreak/gardien/internal/database"
	_ "github.com/koustreak/gardien/internal/database/sqlite" // register sqlite
)

// OpenMemory opens a private in-memory SQLite database closed at test end.
func OpenMemory(t testing.TB) *database.Conn {
	t.Helper()
	db, err := database.Open(context.Background(), &database.Config{
		Engine:   database.EngineSQLite,
		Database: database.MemoryDatabase,
	})
	if err != nil {
		t.Fatalf("open in-memory sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// MustExec runs statements in order and fails the test on the first error.
func MustExec(t testing.TB, db database.Querier, stmts ...string) {
	t.Helper()
	for _, s := range stmts {
		if _, err := db.Exec(context.Background(), s); err != nil {
			t.Fatalf("exec %q: %v", s, err)
		}
	}
}

// Probe wraps a DB and records each statement it receives, including those
// run inside transactions. FailOn, when set, may veto a statement by
// returning an error.
type Probe struct {
	database.DB

	FailOn func(query string) error

	mu         sync.Mutex
	statements []string
}

// NewProbe wraps db.
func NewProbe(db database.DB) *Probe {
	return &Probe{DB: db}
}

func (p *Probe) record(query string) error {
	p.mu.Lock()
	p.statements = append(p.statements, strings.TrimSpace(query))
	fail := p.FailOn
	p.mu.Unlock()
	if fail != nil {
		return fail(query)
	}
	return nil
}

// Calls returns how many statements reached the data layer.
func (p *Probe) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.statements)
}

// Statements returns a copy of the recorded statements.
func (p *Probe) Statements() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.statements...)
}

// DDL returns the recorded statements that alter the schema.
func (p *Probe) DDL() []string {
	var out []string
	for _, s := range p.Statements() {
		up := strings.ToUpper(s)
		for _, kw := range []string{"CREATE ", "ALTER ", "DROP "} {
			if strings.HasPrefix(up, kw) {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// Reset forgets recorded statements.
func (p *Probe) Reset() {
	p.mu.Lock()
	p.statements = nil
	p.mu.Unlock()
}

func (p *Probe) Exec(ctx context.Context, query string, args ...any) (database.Result, error) {
	if err := p.record(query); err != nil {
		return database.Result{}, err
	}
	return p.DB.Exec(ctx, query, args...)
}

func (p *Probe) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	if err := p.record(query); err != nil {
		return nil, err
	}
	return p.DB.Query(ctx, query, args...)
}

func (p *Probe) QueryRow(ctx context.Context, query string, args ...any) database.Row {
	if err := p.record(query); err != nil {
		return errRow{err}
	}
	return p.DB.QueryRow(ctx, query, args...)
}

func (p *Probe) Begin(ctx context.Context) (database.Tx, error) {
	tx, err := p.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &probeTx{Tx: tx, p: p}, nil
}

type probeTx struct {
	database.Tx
	p *Probe
}

func (t *probeTx) Exec(ctx context.Context, query string, args ...any) (database.Result, error) {
	if err := t.p.record(query); err != nil {
		return database.Result{}, err
	}
	return t.Tx.Exec(ctx, query, args...)
}

func (t *probeTx) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	if err := t.p.record(query); err != nil {
		return nil, err
	}
	return t.Tx.Query(ctx, query, args...)
}

func (t *probeTx) QueryRow(ctx context.Context, query string, args ...any) database.Row {
	if err := t.p.record(query); err != nil {
		return errRow{err}
	}
	return t.Tx.QueryRow(ctx, query, args...)
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

// Package crud is a generic helper bound to one table: validated inserts and
// updates, condition-based selects, guarded raw queries, in-memory sorting
// and pagination, and CSV/JSON import and export to files or object stores.
//
// Every operation is journaled with a feature name and a request id:
//
//	journal, f, err := logger.OpenFile("logs/crud.log", "info")
//	if err != nil { ... }
//	defer f.Close()
//
//	users, err := crud.New(db, "utilisateur", crud.WithJournal(journal))
//	id, err := users.Insert(ctx, map[string]any{"login": "a@b.c", "nom": "Durand"})
package crud

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/koustreak/gardien/internal/database"
	"github.com/koustreak/gardien/internal/errs"
	"github.com/koustreak/gardien/internal/logger"
	"github.com/koustreak/gardien/internal/schema"
)

// Row is one record keyed by column name.
type Row = map[string]any

// Table runs CRUD operations against a single table. It is safe for
// concurrent use; Errors accumulates the messages of every failed operation
// until ClearErrors.
type Table struct {
	db      database.DB
	reader  schema.Reader
	journal *logger.Logger

	mu     sync.Mutex
	name   string
	errors []string
}

// Option configures a Table.
type Option func(*Table)

// WithJournal sends the operation journal to l.
func WithJournal(l *logger.Logger) Option {
	return func(t *Table) {
		if l != nil {
			t.journal = l
		}
	}
}

// WithIntrospector shares an existing structure cache, such as the one held
// by the authentication engine.
func WithIntrospector(r schema.Reader) Option {
	return func(t *Table) {
		if r != nil {
			t.reader = r
		}
	}
}

// New binds a helper to table.
func New(db database.DB, table string, opts ...Option) (*Table, error) {
	if db == nil {
		return nil, errs.New(errs.ErrKindConfiguration, "crud: database is required")
	}
	if err := database.ValidateIdentifier(table); err != nil {
		return nil, errs.Wrap(errs.ErrKindConfiguration, "crud: invalid table name", err)
	}
	t := &Table{db: db, name: table, journal: logger.Nop()}
	for _, opt := range opts {
		opt(t)
	}
	if t.reader == nil {
		t.reader = schema.NewIntrospector(db, t.journal)
	}
	t.journal = t.journal.Component("crud")
	t.log("configuration", "helper bound to table "+table)
	return t, nil
}

// Name returns the bound table.
func (t *Table) Name() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.name
}

// SetTable rebinds the helper and drops the cached structure of both the old
// and the new table.
func (t *Table) SetTable(table string) error {
	if err := database.ValidateIdentifier(table); err != nil {
		return t.fail("configuration", err)
	}
	t.mu.Lock()
	old := t.name
	t.name = table
	t.mu.Unlock()

	t.reader.Invalidate(old)
	t.reader.Invalidate(table)
	t.log("configuration", "table changed to "+table)
	return nil
}

// Structure returns the columns of the bound table in declaration order.
func (t *Table) Structure(ctx context.Context) ([]database.ColumnInfo, error) {
	table := t.Name()
	cols, err := t.reader.DescribeColumns(ctx, table)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, errs.Newf(errs.ErrKindSchema, "table %s does not exist", table)
	}
	return cols, nil
}

// HasColumn reports whether the bound table has column, ignoring case.
func (t *Table) HasColumn(ctx context.Context, column string) (bool, error) {
	cols, err := t.Structure(ctx)
	if err != nil {
		return false, err
	}
	_, ok := findColumn(cols, column)
	return ok, nil
}

// Errors returns the messages recorded since the last ClearErrors.
func (t *Table) Errors() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.errors...)
}

func (t *Table) ClearErrors() {
	t.mu.Lock()
	t.errors = nil
	t.mu.Unlock()
}

func (t *Table) push(msgs ...string) {
	t.mu.Lock()
	t.errors = append(t.errors, msgs...)
	t.mu.Unlock()
}

func (t *Table) fields(feature string) map[string]any {
	return map[string]any{
		"feature":    feature,
		"table":      t.Name(),
		"request_id": uuid.NewString(),
	}
}

func (t *Table) log(feature, msg string) {
	t.journal.InfoWith(msg, t.fields(feature))
}

// fail records err, journals it and returns it unchanged. Validation and
// input errors are journaled as warnings.
func (t *Table) fail(feature string, err error) error {
	t.push(errs.MessageOf(err))
	switch errs.KindOf(err) {
	case errs.ErrKindValidation, errs.ErrKindInvalidInput, errs.ErrKindNotFound:
		t.journal.WarnWith(feature+" rejected", err, t.fields(feature))
	default:
		t.journal.ErrorWith(feature+" failed", err, t.fields(feature))
	}
	return err
}

// reject records each problem and returns them as one validation error.
func (t *Table) reject(feature string, problems []string) error {
	t.push(problems...)
	err := validationError(problems)
	t.journal.WarnWith(feature+" rejected", err, t.fields(feature))
	return err
}

func findColumn(cols []database.ColumnInfo, name string) (database.ColumnInfo, bool) {
	for _, c := range cols {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return database.ColumnInfo{}, false
}

package schema

import (
	"context"
	"sync"

	"github.com/koustreak/gardien/internal/database"
	"github.com/koustreak/gardien/internal/errs"
	"github.com/koustreak/gardien/internal/logger"
)

// Introspector implements Reader on top of the connected dialect. Column
// descriptions are cached per table until invalidated; absent tables are
// never cached.
type Introspector struct {
	db  database.DB
	log *logger.Logger

	mu    sync.Mutex
	cache map[string][]database.ColumnInfo
}

var _ Reader = (*Introspector)(nil)

// NewIntrospector creates an introspector. A nil logger discards output.
func NewIntrospector(db database.DB, log *logger.Logger) *Introspector {
	if log == nil {
		log = logger.Nop()
	}
	return &Introspector{
		db:    db,
		log:   log.Component("schema"),
		cache: make(map[string][]database.ColumnInfo),
	}
}

// TableExists checks whether table exists in the connected database.
func (i *Introspector) TableExists(ctx context.Context, table string) (bool, error) {
	if err := database.ValidateIdentifier(table); err != nil {
		return false, err
	}
	var n int
	if err := i.db.QueryRow(ctx, i.db.Dialect().TableExistsQuery(), table).Scan(&n); err != nil {
		return false, schemaError("table existence check", err)
	}
	return n > 0, nil
}

// DescribeColumns returns the normalised columns of table, served from the
// cache when possible.
func (i *Introspector) DescribeColumns(ctx context.Context, table string) ([]database.ColumnInfo, error) {
	if err := database.ValidateIdentifier(table); err != nil {
		return nil, err
	}

	i.mu.Lock()
	cached, ok := i.cache[table]
	i.mu.Unlock()
	if ok {
		return append([]database.ColumnInfo(nil), cached...), nil
	}

	cols, err := i.db.Dialect().DescribeColumns(ctx, i.db, table)
	if err != nil {
		return nil, schemaError("describe columns of "+table, err)
	}
	if len(cols) > 0 {
		i.mu.Lock()
		i.cache[table] = cols
		i.mu.Unlock()
		i.log.Debugf("described %d columns of %s", len(cols), table)
	}
	return append([]database.ColumnInfo(nil), cols...), nil
}

// Catalogue builds the catalogue of table. An absent table yields an empty
// catalogue, not an error.
func (i *Introspector) Catalogue(ctx context.Context, table, loginColumn, passwordColumn string) (*Catalogue, error) {
	cols, err := i.DescribeColumns(ctx, table)
	if err != nil {
		return nil, err
	}
	return NewCatalogue(table, cols, loginColumn, passwordColumn), nil
}

// Invalidate drops the cached description of table.
func (i *Introspector) Invalidate(table string) {
	i.mu.Lock()
	delete(i.cache, table)
	i.mu.Unlock()
}

// Reset drops every cached description.
func (i *Introspector) Reset() {
	i.mu.Lock()
	i.cache = make(map[string][]database.ColumnInfo)
	i.mu.Unlock()
}

// schemaError keeps connectivity failures fatal under their own kind and
// reports everything else as a schema error.
func schemaError(msg string, err error) error {
	switch errs.KindOf(err) {
	case errs.ErrKindConnectionFailed, errs.ErrKindTimeout, errs.ErrKindInvalidInput:
		return err
	}
	return errs.Wrap(errs.ErrKindSchema, msg, err)
}

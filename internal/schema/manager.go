package schema

import (
	"context"

	"github.com/koustreak/gardien/internal/database"
	"github.com/koustreak/gardien/internal/errs"
	"github.com/koustreak/gardien/internal/logger"
)

// TableManager creates the user table when it is missing and brings
// existing tables up to the timestamp convention. Both operations are
// idempotent: a conformant table causes no DDL at all.
type TableManager struct {
	db     database.DB
	reader *Introspector
	log    *logger.Logger
}

// NewTableManager creates a manager sharing reader's cache.
func NewTableManager(db database.DB, reader *Introspector, log *logger.Logger) *TableManager {
	if log == nil {
		log = logger.Nop()
	}
	return &TableManager{db: db, reader: reader, log: log.Component("schema")}
}

// EnsureTable creates the user table described by spec if it does not
// exist, installing the updated_at trigger on engines that need one.
// It reports whether the table was created.
func (m *TableManager) EnsureTable(ctx context.Context, spec database.TableSpec) (bool, error) {
	for _, id := range []string{spec.Table, spec.LoginColumn, spec.PasswordColumn} {
		if err := database.ValidateIdentifier(id); err != nil {
			return false, err
		}
	}

	exists, err := m.reader.TableExists(ctx, spec.Table)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	d := m.db.Dialect()
	stmts := d.CreateTableDDL(spec)
	if d.TouchMode() == database.TouchTrigger {
		stmts = append(stmts, d.UpdatedAtTriggerDDL(spec.Table)...)
	}
	if err := m.apply(ctx, stmts); err != nil {
		return false, schemaError("create table "+spec.Table, err)
	}
	m.reader.Invalidate(spec.Table)

	m.log.With().
		Str("table", spec.Table).
		Str("engine", string(d.Engine())).
		Logger().Info("user table created")
	return true, nil
}

// EnsureConventionColumns adds created_at and updated_at when cat lacks
// them and returns the reloaded catalogue. Failing to add a column is not
// fatal: it is logged as a warning and the table is used as it is. Only a
// failure to reload the catalogue afterwards is returned.
func (m *TableManager) EnsureConventionColumns(ctx context.Context, spec database.TableSpec, cat *Catalogue) (*Catalogue, error) {
	if cat == nil || !cat.Exists() {
		return cat, nil
	}

	d := m.db.Dialect()
	changed := false
	for _, col := range []string{database.ColumnCreatedAt, database.ColumnUpdatedAt} {
		if cat.Has(col) {
			continue
		}
		stmts := d.AddTimestampColumnDDL(spec.Table, col)
		if col == database.ColumnUpdatedAt && d.TouchMode() == database.TouchTrigger {
			stmts = append(stmts, d.UpdatedAtTriggerDDL(spec.Table)...)
		}
		if err := m.apply(ctx, stmts); err != nil {
			m.log.WarnWith("could not add convention column",
				errs.Wrap(errs.ErrKindIO, "add column "+col, err),
				map[string]any{"table": spec.Table, "column": col})
			continue
		}
		changed = true
		m.log.With().Str("table", spec.Table).Str("column", col).Logger().Info("convention column added")
	}

	if !changed {
		return cat, nil
	}
	m.reader.Invalidate(spec.Table)
	return m.reader.Catalogue(ctx, spec.Table, spec.LoginColumn, spec.PasswordColumn)
}

// apply runs stmts in one transaction. MySQL commits DDL implicitly, so
// there the transaction only groups the statements.
func (m *TableManager) apply(ctx context.Context, stmts []string) error {
	if len(stmts) == 0 {
		return nil
	}
	tx, err := m.db.Begin(ctx)
	if err != nil {
		return err
	}
	for _, s := range stmts {
		if _, err := tx.Exec(ctx, s); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

package crud

import (
	"context"
	"fmt"
	"sort"

	"github.com/koustreak/gardien/internal/database"
	"github.com/koustreak/gardien/internal/errs"
)

// Order is one ORDER BY term.
type Order struct {
	Column string
	Dir    database.SortDirection
}

// Query selects rows for SelectAll. Zero Limit means no limit.
type Query struct {
	Conds  []database.Cond
	Order  []Order
	Limit  int
	Offset int
}

// Insert validates data against the table structure and inserts it. It
// returns the generated id, or 0 when the table has none.
func (t *Table) Insert(ctx context.Context, data Row) (int64, error) {
	const feature = "insert"
	if len(data) == 0 {
		return 0, t.reject(feature, []string{"no data to insert"})
	}
	cols, err := t.Structure(ctx)
	if err != nil {
		return 0, t.fail(feature, err)
	}
	table := t.Name()
	if problems := ValidateData(table, cols, data, false); len(problems) > 0 {
		return 0, t.reject(feature, problems)
	}

	d := t.db.Dialect()
	ins := database.Insert(table, d)
	for _, k := range sortedKeys(data) {
		col, _ := findColumn(cols, k)
		// NULL for a defaulted column lets the default apply
		if data[k] == nil && (col.HasDefault() || col.AutoIncrement) {
			continue
		}
		ins.Set(col.Name, data[k])
	}

	var id int64
	if auto := autoIncrement(cols); auto != "" && d.Engine() == database.EnginePostgres {
		q, args, err := ins.Returning(auto).Build()
		if err != nil {
			return 0, t.fail(feature, err)
		}
		if err := t.db.QueryRow(ctx, q, args...).Scan(&id); err != nil {
			return 0, t.fail(feature, err)
		}
	} else {
		q, args, err := ins.Build()
		if err != nil {
			return 0, t.fail(feature, err)
		}
		res, err := t.db.Exec(ctx, q, args...)
		if err != nil {
			return 0, t.fail(feature, err)
		}
		if auto != "" {
			id = res.LastInsertID
		}
	}

	t.log(feature, "record inserted into "+table)
	return id, nil
}

// SelectOne returns the first row matching conds. It returns a NotFound
// error when nothing matches.
func (t *Table) SelectOne(ctx context.Context, conds ...database.Cond) (Row, error) {
	const feature = "select"
	cols, err := t.Structure(ctx)
	if err != nil {
		return nil, t.fail(feature, err)
	}
	conds, err = t.canonicalConds(cols, conds)
	if err != nil {
		return nil, t.fail(feature, err)
	}

	q, args, err := database.Select(t.Name(), t.db.Dialect()).WhereAll(conds...).Limit(1).Build()
	if err != nil {
		return nil, t.fail(feature, err)
	}
	rows, err := t.db.Query(ctx, q, args...)
	if err != nil {
		return nil, t.fail(feature, err)
	}
	row, err := database.ScanOne(rows)
	if err != nil {
		if errs.IsNotFound(err) {
			t.log(feature, "no record matched")
			return nil, err
		}
		return nil, t.fail(feature, err)
	}
	t.log(feature, "one record selected from "+t.Name())
	return row, nil
}

// SelectAll returns every row matching q.
func (t *Table) SelectAll(ctx context.Context, q Query) ([]Row, error) {
	const feature = "select"
	cols, err := t.Structure(ctx)
	if err != nil {
		return nil, t.fail(feature, err)
	}
	conds, err := t.canonicalConds(cols, q.Conds)
	if err != nil {
		return nil, t.fail(feature, err)
	}

	b := database.Select(t.Name(), t.db.Dialect()).WhereAll(conds...)
	for _, o := range q.Order {
		col, ok := findColumn(cols, o.Column)
		if !ok {
			return nil, t.fail(feature, unknownColumn(t.Name(), o.Column))
		}
		b.OrderBy(col.Name, o.Dir)
	}
	if q.Limit > 0 {
		b.Limit(q.Limit)
	}
	if q.Offset > 0 {
		b.Offset(q.Offset)
	}

	sql, args, err := b.Build()
	if err != nil {
		return nil, t.fail(feature, err)
	}
	rows, err := t.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, t.fail(feature, err)
	}
	out, err := database.ScanRows(rows)
	if err != nil {
		return nil, t.fail(feature, err)
	}
	t.log(feature, fmt.Sprintf("%d records selected from %s", len(out), t.Name()))
	return out, nil
}

// Update validates the supplied columns and updates the rows matching
// conds. It refuses to run without conditions.
func (t *Table) Update(ctx context.Context, data Row, conds ...database.Cond) (int64, error) {
	const feature = "update"
	if len(conds) == 0 {
		return 0, t.fail(feature, errs.New(errs.ErrKindInvalidInput, "update requires at least one condition"))
	}
	if len(data) == 0 {
		return 0, t.reject(feature, []string{"no data to update"})
	}
	cols, err := t.Structure(ctx)
	if err != nil {
		return 0, t.fail(feature, err)
	}
	table := t.Name()
	if problems := ValidateData(table, cols, data, true); len(problems) > 0 {
		return 0, t.reject(feature, problems)
	}
	conds, err = t.canonicalConds(cols, conds)
	if err != nil {
		return 0, t.fail(feature, err)
	}

	upd := database.Update(table, t.db.Dialect()).WhereAll(conds...)
	for _, k := range sortedKeys(data) {
		col, _ := findColumn(cols, k)
		upd.Set(col.Name, data[k])
	}
	q, args, err := upd.Build()
	if err != nil {
		return 0, t.fail(feature, err)
	}
	res, err := t.db.Exec(ctx, q, args...)
	if err != nil {
		return 0, t.fail(feature, err)
	}
	t.log(feature, fmt.Sprintf("%d records updated in %s", res.RowsAffected, table))
	return res.RowsAffected, nil
}

// Delete removes the rows matching conds. It refuses to run without
// conditions.
func (t *Table) Delete(ctx context.Context, conds ...database.Cond) (int64, error) {
	const feature = "delete"
	if len(conds) == 0 {
		return 0, t.fail(feature, errs.New(errs.ErrKindInvalidInput, "delete requires at least one condition"))
	}
	cols, err := t.Structure(ctx)
	if err != nil {
		return 0, t.fail(feature, err)
	}
	conds, err = t.canonicalConds(cols, conds)
	if err != nil {
		return 0, t.fail(feature, err)
	}

	q, args, err := database.Delete(t.Name(), t.db.Dialect()).WhereAll(conds...).Build()
	if err != nil {
		return 0, t.fail(feature, err)
	}
	res, err := t.db.Exec(ctx, q, args...)
	if err != nil {
		return 0, t.fail(feature, err)
	}
	t.log(feature, fmt.Sprintf("%d records deleted from %s", res.RowsAffected, t.Name()))
	return res.RowsAffected, nil
}

// Count returns the number of rows matching conds.
func (t *Table) Count(ctx context.Context, conds ...database.Cond) (int64, error) {
	const feature = "count"
	cols, err := t.Structure(ctx)
	if err != nil {
		return 0, t.fail(feature, err)
	}
	conds, err = t.canonicalConds(cols, conds)
	if err != nil {
		return 0, t.fail(feature, err)
	}

	q, args, err := database.Count(t.Name(), t.db.Dialect()).WhereAll(conds...).Build()
	if err != nil {
		return 0, t.fail(feature, err)
	}
	var n int64
	if err := t.db.QueryRow(ctx, q, args...).Scan(&n); err != nil {
		return 0, t.fail(feature, err)
	}
	t.log(feature, fmt.Sprintf("%d records counted in %s", n, t.Name()))
	return n, nil
}

// Exists reports whether at least one row matches conds.
func (t *Table) Exists(ctx context.Context, conds ...database.Cond) (bool, error) {
	n, err := t.Count(ctx, conds...)
	return n > 0, err
}

func (t *Table) canonicalConds(cols []database.ColumnInfo, conds []database.Cond) ([]database.Cond, error) {
	out := make([]database.Cond, len(conds))
	for i, c := range conds {
		col, ok := findColumn(cols, c.Column)
		if !ok {
			return nil, unknownColumn(t.Name(), c.Column)
		}
		c.Column = col.Name
		out[i] = c
	}
	return out, nil
}

func unknownColumn(table, column string) error {
	return errs.Newf(errs.ErrKindInvalidInput, "column '%s' does not exist in table %s", column, table)
}

func autoIncrement(cols []database.ColumnInfo) string {
	for _, c := range cols {
		if c.AutoIncrement {
			return c.Name
		}
	}
	return ""
}

func sortedKeys(data Row) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package database

import (
	"fmt"
	"strings"
)

// validOps is the allowlist of comparison operators for WHERE clauses.
// Any operator not in this list is rejected to prevent SQL injection
// through the operator position (which cannot be parameterized).
var validOps = map[string]bool{
	"=":     true,
	"!=":    true,
	"<>":    true,
	"<":     true,
	">":     true,
	"<=":    true,
	">=":    true,
	"LIKE":  true,
	"ILIKE": true,
}

// Cond is one WHERE condition. Conditions are combined with AND.
type Cond struct {
	Column string
	Op     string
	Value  any
}

// OpExact compares byte for byte, ignoring the column collation.
const OpExact = "EXACT"

// Eq is shorthand for an equality condition.
func Eq(column string, value any) Cond {
	return Cond{Column: column, Op: "=", Value: value}
}

// ExactEq is an equality condition that is case sensitive even on a
// case-insensitive column.
func ExactEq(column string, value any) Cond {
	return Cond{Column: column, Op: OpExact, Value: value}
}

// SortDirection controls the ORDER BY direction.
type SortDirection bool

const (
	Asc  SortDirection = false
	Desc SortDirection = true
)

// ParseSortDirection accepts "asc"/"desc" in any case; anything else is Asc.
func ParseSortDirection(s string) SortDirection {
	if strings.EqualFold(s, "desc") {
		return Desc
	}
	return Asc
}

type orderClause struct {
	column string
	dir    SortDirection
}

// Every builder emits "?" placeholders; DB implementations rebind them for
// the connected engine. Identifiers are validated and then quoted by the
// dialect. Values are never interpolated into the SQL string.

// SelectBuilder constructs a parameterized SELECT query using a fluent API.
//
// Usage:
//
//	sql, args, err := database.Select("utilisateur", db.Dialect()).
//	    Columns("id", "login").
//	    Where("login", "=", login).
//	    OrderBy("created_at", database.Desc).
//	    Limit(20).
//	    Build()
type SelectBuilder struct {
	table   string
	dialect Dialect
	columns []string
	where   []Cond
	orderBy []orderClause
	limit   *int
	offset  *int
}

// Select starts a new SelectBuilder for the given table and dialect.
func Select(table string, d Dialect) *SelectBuilder {
	return &SelectBuilder{table: table, dialect: d}
}

// Columns restricts the SELECT to the specified columns.
// If not called, SELECT * is used.
func (b *SelectBuilder) Columns(cols ...string) *SelectBuilder {
	b.columns = cols
	return b
}

// Where adds a WHERE condition. Multiple calls are combined with AND.
func (b *SelectBuilder) Where(column, op string, value any) *SelectBuilder {
	b.where = append(b.where, Cond{column, op, value})
	return b
}

// WhereAll appends several conditions at once.
func (b *SelectBuilder) WhereAll(conds ...Cond) *SelectBuilder {
	b.where = append(b.where, conds...)
	return b
}

// OrderBy appends an ORDER BY clause for the given column and direction.
func (b *SelectBuilder) OrderBy(column string, dir SortDirection) *SelectBuilder {
	b.orderBy = append(b.orderBy, orderClause{column, dir})
	return b
}

// Limit sets the maximum number of rows to return.
func (b *SelectBuilder) Limit(n int) *SelectBuilder {
	b.limit = &n
	return b
}

// Offset sets the number of rows to skip (for pagination).
func (b *SelectBuilder) Offset(n int) *SelectBuilder {
	b.offset = &n
	return b
}

// Build produces the final SQL string and argument slice.
func (b *SelectBuilder) Build() (string, []any, error) {
	table, err := quote(b.dialect, b.table)
	if err != nil {
		return "", nil, err
	}

	cols := "*"
	if len(b.columns) > 0 {
		if cols, err = quoteList(b.dialect, b.columns); err != nil {
			return "", nil, err
		}
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(cols)
	sb.WriteString(" FROM ")
	sb.WriteString(table)

	where, args, err := buildWhere(b.dialect, b.where)
	if err != nil {
		return "", nil, err
	}
	sb.WriteString(where)

	// --- ORDER BY ---
	if len(b.orderBy) > 0 {
		parts := make([]string, len(b.orderBy))
		for i, o := range b.orderBy {
			col, err := quote(b.dialect, o.column)
			if err != nil {
				return "", nil, err
			}
			dir := "ASC"
			if o.dir == Desc {
				dir = "DESC"
			}
			parts[i] = col + " " + dir
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(parts, ", "))
	}

	// --- LIMIT / OFFSET ---
	if b.limit != nil {
		sb.WriteString(" LIMIT ?")
		args = append(args, *b.limit)
	}
	if b.offset != nil {
		if b.limit == nil {
			return "", nil, errInvalidInput("OFFSET requires LIMIT")
		}
		sb.WriteString(" OFFSET ?")
		args = append(args, *b.offset)
	}

	return sb.String(), args, nil
}

// CountBuilder builds SELECT COUNT(*) queries.
type CountBuilder struct {
	table   string
	dialect Dialect
	where   []Cond
}

// Count starts a COUNT(*) query on table.
func Count(table string, d Dialect) *CountBuilder {
	return &CountBuilder{table: table, dialect: d}
}

func (b *CountBuilder) Where(column, op string, value any) *CountBuilder {
	b.where = append(b.where, Cond{column, op, value})
	return b
}

func (b *CountBuilder) WhereAll(conds ...Cond) *CountBuilder {
	b.where = append(b.where, conds...)
	return b
}

func (b *CountBuilder) Build() (string, []any, error) {
	table, err := quote(b.dialect, b.table)
	if err != nil {
		return "", nil, err
	}
	where, args, err := buildWhere(b.dialect, b.where)
	if err != nil {
		return "", nil, err
	}
	return "SELECT COUNT(*) FROM " + table + where, args, nil
}

type assignment struct {
	column string
	value  any
}

// InsertBuilder builds single-row INSERT statements. Columns keep the order
// in which Set was called.
type InsertBuilder struct {
	table     string
	dialect   Dialect
	values    []assignment
	returning string
}

// Insert starts an INSERT into table.
func Insert(table string, d Dialect) *InsertBuilder {
	return &InsertBuilder{table: table, dialect: d}
}

func (b *InsertBuilder) Set(column string, value any) *InsertBuilder {
	b.values = append(b.values, assignment{column, value})
	return b
}

// Returning appends a RETURNING clause (postgres, sqlite).
func (b *InsertBuilder) Returning(column string) *InsertBuilder {
	b.returning = column
	return b
}

func (b *InsertBuilder) Build() (string, []any, error) {
	if len(b.values) == 0 {
		return "", nil, errInvalidInput("INSERT without values")
	}
	table, err := quote(b.dialect, b.table)
	if err != nil {
		return "", nil, err
	}

	cols := make([]string, len(b.values))
	marks := make([]string, len(b.values))
	args := make([]any, len(b.values))
	for i, a := range b.values {
		if cols[i], err = quote(b.dialect, a.column); err != nil {
			return "", nil, err
		}
		marks[i] = "?"
		args[i] = a.value
	}

	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.Join(marks, ", "))
	if b.returning != "" {
		col, err := quote(b.dialect, b.returning)
		if err != nil {
			return "", nil, err
		}
		q += " RETURNING " + col
	}
	return q, args, nil
}

// UpdateBuilder builds UPDATE statements.
type UpdateBuilder struct {
	table   string
	dialect Dialect
	values  []assignment
	where   []Cond
}

// Update starts an UPDATE of table.
func Update(table string, d Dialect) *UpdateBuilder {
	return &UpdateBuilder{table: table, dialect: d}
}

func (b *UpdateBuilder) Set(column string, value any) *UpdateBuilder {
	b.values = append(b.values, assignment{column, value})
	return b
}

func (b *UpdateBuilder) Where(column, op string, value any) *UpdateBuilder {
	b.where = append(b.where, Cond{column, op, value})
	return b
}

func (b *UpdateBuilder) WhereAll(conds ...Cond) *UpdateBuilder {
	b.where = append(b.where, conds...)
	return b
}

func (b *UpdateBuilder) Build() (string, []any, error) {
	if len(b.values) == 0 {
		return "", nil, errInvalidInput("UPDATE without assignments")
	}
	table, err := quote(b.dialect, b.table)
	if err != nil {
		return "", nil, err
	}

	sets := make([]string, len(b.values))
	args := make([]any, 0, len(b.values)+len(b.where))
	for i, a := range b.values {
		col, err := quote(b.dialect, a.column)
		if err != nil {
			return "", nil, err
		}
		sets[i] = col + " = ?"
		args = append(args, a.value)
	}

	where, whereArgs, err := buildWhere(b.dialect, b.where)
	if err != nil {
		return "", nil, err
	}
	return "UPDATE " + table + " SET " + strings.Join(sets, ", ") + where, append(args, whereArgs...), nil
}

// DeleteBuilder builds DELETE statements.
type DeleteBuilder struct {
	table   string
	dialect Dialect
	where   []Cond
}

// Delete starts a DELETE from table.
func Delete(table string, d Dialect) *DeleteBuilder {
	return &DeleteBuilder{table: table, dialect: d}
}

func (b *DeleteBuilder) Where(column, op string, value any) *DeleteBuilder {
	b.where = append(b.where, Cond{column, op, value})
	return b
}

func (b *DeleteBuilder) WhereAll(conds ...Cond) *DeleteBuilder {
	b.where = append(b.where, conds...)
	return b
}

func (b *DeleteBuilder) Build() (string, []any, error) {
	table, err := quote(b.dialect, b.table)
	if err != nil {
		return "", nil, err
	}
	where, args, err := buildWhere(b.dialect, b.where)
	if err != nil {
		return "", nil, err
	}
	return "DELETE FROM " + table + where, args, nil
}

// --- helpers ---

func buildWhere(d Dialect, conds []Cond) (string, []any, error) {
	if len(conds) == 0 {
		return "", nil, nil
	}
	parts := make([]string, 0, len(conds))
	args := make([]any, 0, len(conds))
	for _, w := range conds {
		op := strings.ToUpper(strings.TrimSpace(w.Op))
		if op != OpExact && !validOps[op] {
			return "", nil, errInvalidInput(fmt.Sprintf("unsupported WHERE operator: %q", w.Op))
		}
		col, err := quote(d, w.Column)
		if err != nil {
			return "", nil, err
		}
		if op == OpExact {
			col, op = d.ExactMatch(col), "="
		}
		parts = append(parts, col+" "+op+" ?")
		args = append(args, w.Value)
	}
	return " WHERE " + strings.Join(parts, " AND "), args, nil
}

func quote(d Dialect, name string) (string, error) {
	if err := ValidateIdentifier(name); err != nil {
		return "", err
	}
	return d.QuoteIdent(name), nil
}

func quoteList(d Dialect, names []string) (string, error) {
	quoted := make([]string, len(names))
	for i, n := range names {
		q, err := quote(d, n)
		if err != nil {
			return "", err
		}
		quoted[i] = q
	}
	return strings.Join(quoted, ", "), nil
}

// QuoteANSI wraps a SQL identifier in double-quotes (ANSI standard).
func QuoteANSI(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

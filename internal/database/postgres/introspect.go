package postgres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/koustreak/gardien/internal/database"
)

const describeColumnsQuery = `
	SELECT column_name, data_type, is_nullable, column_default, is_identity
	FROM information_schema.columns
	WHERE table_schema = current_schema()
	  AND table_name   = ?
	ORDER BY ordinal_position`

// DescribeColumns reads information_schema.columns for table in the current
// schema. SERIAL columns (nextval defaults) and identity columns are
// reported as auto-increment.
func (Dialect) DescribeColumns(ctx context.Context, q database.Querier, table string) ([]database.ColumnInfo, error) {
	rows, err := q.Query(ctx, describeColumnsQuery, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := make([]database.ColumnInfo, 0)
	for rows.Next() {
		var (
			name, dataType, nullable string
			def, identity            sql.NullString
		)
		if err := rows.Scan(&name, &dataType, &nullable, &def, &identity); err != nil {
			return nil, err
		}
		cols = append(cols, normalizeColumn(name, dataType, nullable, def, identity))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return cols, nil
}

func normalizeColumn(name, dataType, nullable string, def, identity sql.NullString) database.ColumnInfo {
	col := database.ColumnInfo{
		Name:         name,
		DeclaredType: dataType,
		Nullable:     strings.EqualFold(nullable, "YES"),
	}
	if def.Valid {
		v := def.String
		col.Default = &v
		col.AutoIncrement = strings.HasPrefix(strings.ToLower(v), "nextval(")
	}
	if identity.Valid && strings.EqualFold(identity.String, "YES") {
		col.AutoIncrement = true
	}
	return col
}

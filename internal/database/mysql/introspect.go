package mysql

import (
	"context"
	"database/sql"
	"strings"

	"github.com/koustreak/gardien/internal/database"
)

const describeColumnsQuery = `
	SELECT column_name, column_type, is_nullable, column_default, extra
	FROM information_schema.columns
	WHERE table_schema = DATABASE()
	  AND table_name   = ?
	ORDER BY ordinal_position`

// DescribeColumns reads information_schema.columns for table in the current
// database. A table that does not exist yields no rows.
func (Dialect) DescribeColumns(ctx context.Context, q database.Querier, table string) ([]database.ColumnInfo, error) {
	rows, err := q.Query(ctx, describeColumnsQuery, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := make([]database.ColumnInfo, 0)
	for rows.Next() {
		var (
			name, colType, nullable, extra string
			def                            sql.NullString
		)
		if err := rows.Scan(&name, &colType, &nullable, &def, &extra); err != nil {
			return nil, err
		}
		cols = append(cols, normalizeColumn(name, colType, nullable, def, extra))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return cols, nil
}

func normalizeColumn(name, colType, nullable string, def sql.NullString, extra string) database.ColumnInfo {
	col := database.ColumnInfo{
		Name:          name,
		DeclaredType:  colType,
		Nullable:      strings.EqualFold(nullable, "YES"),
		AutoIncrement: strings.Contains(strings.ToLower(extra), "auto_increment"),
	}
	if def.Valid {
		v := def.String
		col.Default = &v
	}
	return col
}

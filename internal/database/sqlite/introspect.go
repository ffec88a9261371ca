package sqlite

import (
	"context"
	"database/sql"

	"github.com/koustreak/gardien/internal/database"
)

const describeColumnsQuery = `SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info(?) ORDER BY cid`

// DescribeColumns reads pragma_table_info for table. A table that does not
// exist yields no rows. A lone INTEGER primary key aliases the rowid and is
// reported as auto-increment.
func (Dialect) DescribeColumns(ctx context.Context, q database.Querier, table string) ([]database.ColumnInfo, error) {
	rows, err := q.Query(ctx, describeColumnsQuery, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type rawColumn struct {
		name, declared string
		notNull, pk    int
		def            sql.NullString
	}

	var raw []rawColumn
	pkCount := 0
	for rows.Next() {
		var rc rawColumn
		if err := rows.Scan(&rc.name, &rc.declared, &rc.notNull, &rc.def, &rc.pk); err != nil {
			return nil, err
		}
		if rc.pk > 0 {
			pkCount++
		}
		raw = append(raw, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	cols := make([]database.ColumnInfo, 0, len(raw))
	for _, rc := range raw {
		col := database.ColumnInfo{
			Name:          rc.name,
			DeclaredType:  rc.declared,
			AutoIncrement: rc.pk == 1 && pkCount == 1 && isIntegerType(rc.declared),
		}
		col.Nullable = rc.notNull == 0 && !col.AutoIncrement
		if rc.def.Valid {
			v := rc.def.String
			col.Default = &v
		}
		cols = append(cols, col)
	}
	return cols, nil
}

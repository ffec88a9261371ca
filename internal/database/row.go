package database

import "github.com/koustreak/gardien/internal/errs"

type mapScanner interface {
	MapScan(dest map[string]any) error
}

// ScanRows reads all rows from the result set and returns them as a slice
// of maps keyed by column name. Text returned as []byte by some drivers is
// converted to string.
//
// The returned slice is always non-nil (empty slice on zero rows).
// ScanRows always closes the Rows; callers do not need to call Close().
func ScanRows(rows Rows) ([]map[string]any, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errQuery("failed to read column names", err)
	}

	result := make([]map[string]any, 0)

	for rows.Next() {
		row := make(map[string]any, len(columns))

		if ms, ok := rows.(mapScanner); ok {
			if err := ms.MapScan(row); err != nil {
				return nil, err
			}
		} else {
			dest := make([]any, len(columns))
			destPtrs := make([]any, len(columns))
			for i := range dest {
				destPtrs[i] = &dest[i]
			}
			if err := rows.Scan(destPtrs...); err != nil {
				return nil, err
			}
			for i, col := range columns {
				row[col] = dest[i]
			}
		}

		for k, v := range row {
			row[k] = normalizeValue(v)
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// ScanOne returns the first row of the result set, or ErrKindNotFound when
// the set is empty. It always closes rows.
func ScanOne(rows Rows) (map[string]any, error) {
	all, err := ScanRows(rows)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, errs.New(errs.ErrKindNotFound, "no matching row")
	}
	return all[0], nil
}

func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

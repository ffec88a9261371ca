package crud

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/koustreak/gardien/internal/database"
)

// Page is one slice of a result set.
type Page struct {
	Rows    []Row `json:"rows"`
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
	Total   int   `json:"total"`
	Pages   int   `json:"pages"`
}

// Sort returns a copy of rows ordered by column. Rows missing the column
// sort first. Numbers compare numerically and times chronologically.
func (t *Table) Sort(rows []Row, column string, dir database.SortDirection) []Row {
	out := append([]Row(nil), rows...)
	sort.SliceStable(out, func(i, j int) bool {
		c := compareValues(out[i][column], out[j][column])
		if dir == database.Desc {
			return c > 0
		}
		return c < 0
	})

	order := "ASC"
	if dir == database.Desc {
		order = "DESC"
	}
	t.log("sort", fmt.Sprintf("sorted %d records by %s %s", len(out), column, order))
	return out
}

// Paginate returns page (1-based) of rows with perPage rows per page.
// Values below 1 are raised to 1.
func (t *Table) Paginate(rows []Row, page, perPage int) Page {
	page = max(1, page)
	perPage = max(1, perPage)

	p := Page{
		Page:    page,
		PerPage: perPage,
		Total:   len(rows),
		Pages:   (len(rows) + perPage - 1) / perPage,
		Rows:    []Row{},
	}
	if start := (page - 1) * perPage; start < len(rows) {
		p.Rows = rows[start:min(start+perPage, len(rows))]
	}

	t.log("pagination", fmt.Sprintf("page %d, %d per page", page, perPage))
	return p
}

func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}
	if fa, ok := number(a); ok {
		if fb, ok := number(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}

	sa, sb := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	}
	return 0
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	return 0, false
}

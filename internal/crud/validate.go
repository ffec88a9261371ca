package crud

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/koustreak/gardien/internal/database"
	"github.com/koustreak/gardien/internal/errs"
)

// Family groups engine-native column types by the values they accept.
type Family int

const (
	FamilyString Family = iota
	FamilyInteger
	FamilyNumber
	FamilyBool
	FamilyDate
)

func (f Family) String() string {
	switch f {
	case FamilyInteger:
		return "integer"
	case FamilyNumber:
		return "number"
	case FamilyBool:
		return "boolean"
	case FamilyDate:
		return "date"
	default:
		return "string"
	}
}

var (
	typeBaseRe   = regexp.MustCompile(`^[a-z ]+`)
	typeLengthRe = regexp.MustCompile(`\((\d+)\)`)
)

var families = map[string]Family{
	"int":              FamilyInteger,
	"integer":          FamilyInteger,
	"tinyint":          FamilyInteger,
	"smallint":         FamilyInteger,
	"mediumint":        FamilyInteger,
	"bigint":           FamilyInteger,
	"serial":           FamilyInteger,
	"bigserial":        FamilyInteger,
	"smallserial":      FamilyInteger,
	"year":             FamilyInteger,
	"float":            FamilyNumber,
	"double":           FamilyNumber,
	"double precision": FamilyNumber,
	"decimal":          FamilyNumber,
	"numeric":          FamilyNumber,
	"real":             FamilyNumber,
	"bool":             FamilyBool,
	"boolean":          FamilyBool,
	"date":             FamilyDate,
	"datetime":         FamilyDate,
	"timestamp":        FamilyDate,
	"time":             FamilyDate,
}

var lengthLimited = map[string]bool{
	"varchar":           true,
	"char":              true,
	"character varying": true,
	"character":         true,
	"nvarchar":          true,
	"nchar":             true,
}

// ColumnFamily classifies a declared type and returns its maximum length,
// 0 when the type carries none.
func ColumnFamily(declared string) (Family, int) {
	lower := strings.ToLower(strings.TrimSpace(declared))
	base := strings.TrimSpace(typeBaseRe.FindString(lower))
	// "timestamp without time zone", "time with time zone"
	if i := strings.Index(base, " with"); i > 0 {
		base = base[:i]
	}
	base = strings.TrimSuffix(base, " unsigned")

	fam, ok := families[base]
	if !ok {
		fam = FamilyString
	}
	if !lengthLimited[base] {
		return fam, 0
	}
	if m := typeLengthRe.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		return fam, n
	}
	return fam, 0
}

var dateLayouts = []string{
	database.TimestampLayout,
	time.DateOnly,
	time.RFC3339,
	time.TimeOnly,
}

func acceptsValue(fam Family, v any) bool {
	switch fam {
	case FamilyInteger:
		switch x := v.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		case float32:
			return float64(x) == math.Trunc(float64(x))
		case float64:
			return x == math.Trunc(x)
		case string:
			_, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
			return err == nil
		}
		return false
	case FamilyNumber:
		switch x := v.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
			return true
		case string:
			_, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
			return err == nil
		}
		return false
	case FamilyBool:
		switch x := v.(type) {
		case bool:
			return true
		case int:
			return x == 0 || x == 1
		case int64:
			return x == 0 || x == 1
		case string:
			_, err := strconv.ParseBool(x)
			return err == nil
		}
		return false
	case FamilyDate:
		switch x := v.(type) {
		case time.Time:
			return true
		case string:
			for _, layout := range dateLayouts {
				if _, err := time.Parse(layout, x); err == nil {
					return true
				}
			}
		}
		return false
	default:
		switch v.(type) {
		case string, []byte,
			int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
			return true
		}
		return false
	}
}

// ValidateData checks data against cols and returns one message per
// problem. With partial set, only the supplied columns are checked;
// otherwise NOT NULL columns without a default must be present.
func ValidateData(table string, cols []database.ColumnInfo, data Row, partial bool) []string {
	var problems []string

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := data[k]
		col, ok := findColumn(cols, k)
		if !ok {
			problems = append(problems, fmt.Sprintf("column '%s' does not exist in table %s", k, table))
			continue
		}
		if v == nil {
			if !col.Nullable && !col.HasDefault() && !col.AutoIncrement {
				problems = append(problems, fmt.Sprintf("column '%s' cannot be NULL", k))
			}
			continue
		}

		fam, max := ColumnFamily(col.DeclaredType)
		if !acceptsValue(fam, v) {
			problems = append(problems, fmt.Sprintf("value for '%s' is not of type %s", k, fam))
			continue
		}
		if max > 0 {
			if s, ok := v.(string); ok && utf8.RuneCountInString(s) > max {
				problems = append(problems, fmt.Sprintf("value for '%s' exceeds maximum length (%d)", k, max))
			}
		}
	}

	if !partial {
		for _, col := range cols {
			if col.Nullable || col.HasDefault() || col.AutoIncrement {
				continue
			}
			if _, ok := lookup(data, col.Name); !ok {
				problems = append(problems, fmt.Sprintf("column '%s' is required", col.Name))
			}
		}
	}
	return problems
}

func lookup(data Row, column string) (any, bool) {
	for k, v := range data {
		if strings.EqualFold(k, column) {
			return v, true
		}
	}
	return nil, false
}

func validationError(problems []string) error {
	return errs.New(errs.ErrKindValidation, strings.Join(problems, "; "))
}

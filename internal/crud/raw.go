package crud

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/koustreak/gardien/internal/database"
	"github.com/koustreak/gardien/internal/errs"
)

var (
	statementRe = regexp.MustCompile(`(?i)^\s*(SELECT|INSERT|UPDATE|DELETE|WITH)\b`)
	forbiddenRe = regexp.MustCompile(`(?i)\b(DROP|TRUNCATE|ALTER|CREATE|GRANT|REVOKE|ATTACH|DETACH|PRAGMA|RENAME)\b`)
)

// ExecResult is the outcome of Execute: Rows for reads, RowsAffected for
// writes.
type ExecResult struct {
	Rows         []Row
	RowsAffected int64
}

// ValidateQuery checks a raw statement before Execute runs it: a single
// data statement, no schema-changing keywords, and one argument per "?"
// placeholder outside string literals.
func (t *Table) ValidateQuery(query string, args []any) error {
	if err := checkQuery(query, len(args)); err != nil {
		return t.fail("query", err)
	}
	return nil
}

func checkQuery(query string, nargs int) error {
	if !statementRe.MatchString(query) {
		return errs.New(errs.ErrKindInvalidInput, "query must be a SELECT, INSERT, UPDATE or DELETE statement")
	}

	stripped, marks, semis := scanLiterals(query)
	if kw := forbiddenRe.FindString(stripped); kw != "" {
		return errs.Newf(errs.ErrKindInvalidInput, "query contains forbidden keyword %s", strings.ToUpper(kw))
	}
	if semis > 1 || (semis == 1 && !strings.HasSuffix(strings.TrimSpace(stripped), ";")) {
		return errs.New(errs.ErrKindInvalidInput, "query must contain a single statement")
	}
	if marks != nargs {
		return errs.Newf(errs.ErrKindInvalidInput,
			"parameter count mismatch (%d required, %d supplied)", marks, nargs)
	}
	return nil
}

// scanLiterals blanks out quoted strings and identifiers, then counts the
// placeholders and semicolons left in the statement.
func scanLiterals(query string) (string, int, int) {
	var (
		b     strings.Builder
		quote rune
		marks int
		semis int
	)
	for _, r := range query {
		if quote != 0 {
			if r == quote {
				quote = 0
				b.WriteRune(r)
			} else {
				b.WriteRune(' ')
			}
			continue
		}
		switch r {
		case '\'', '"', '`':
			quote = r
		case '?':
			marks++
		case ';':
			semis++
		}
		b.WriteRune(r)
	}
	return b.String(), marks, semis
}

// Execute validates and runs a raw statement written with "?" placeholders.
func (t *Table) Execute(ctx context.Context, query string, args ...any) (*ExecResult, error) {
	const feature = "query"
	if err := t.ValidateQuery(query, args); err != nil {
		return nil, err
	}

	verb := strings.ToUpper(statementRe.FindStringSubmatch(query)[1])
	if verb == "SELECT" || verb == "WITH" {
		rows, err := t.db.Query(ctx, query, args...)
		if err != nil {
			return nil, t.fail(feature, err)
		}
		out, err := database.ScanRows(rows)
		if err != nil {
			return nil, t.fail(feature, err)
		}
		t.log(feature, fmt.Sprintf("SELECT returned %d records", len(out)))
		return &ExecResult{Rows: out}, nil
	}

	res, err := t.db.Exec(ctx, query, args...)
	if err != nil {
		return nil, t.fail(feature, err)
	}
	t.log(feature, fmt.Sprintf("%s affected %d records", verb, res.RowsAffected))
	return &ExecResult{RowsAffected: res.RowsAffected}, nil
}

package sqlite

import (
	"errors"
	"fmt"
	"strings"

	"github.com/koustreak/gardien/internal/errs"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// mapError translates modernc.org/sqlite errors into *errs.Error.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) {
		return errs.Wrap(
			classifyCode(sqlErr.Code(), sqlErr.Error()),
			fmt.Sprintf("%s: %s", msg, sqlErr.Error()),
			err,
		)
	}

	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}

// classifyCode maps a (possibly extended) result code to ErrKind.
func classifyCode(code int, text string) errs.ErrKind {
	switch code & 0xff {
	case sqlite3.SQLITE_CONSTRAINT:
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY ||
			strings.Contains(text, "UNIQUE constraint failed") {
			return errs.ErrKindConflict
		}
		return errs.ErrKindQueryFailed
	case sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_CORRUPT:
		return errs.ErrKindConnectionFailed
	case sqlite3.SQLITE_AUTH, sqlite3.SQLITE_PERM, sqlite3.SQLITE_READONLY:
		return errs.ErrKindPermissionDenied
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return errs.ErrKindTimeout
	default:
		return errs.ErrKindQueryFailed
	}
}

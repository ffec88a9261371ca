package postgres

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/koustreak/gardien/internal/errs"
)

// PostgreSQL SQLSTATE error codes
// Full list: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgErrUniqueViolation       = "23505"
	pgErrInsufficientPrivilege = "42501"
	pgErrInvalidCatalogName    = "3D000"
	pgErrAdminShutdown         = "57P01"
	pgErrCannotConnectNow      = "57P03"
)

// mapError translates pgx errors into *errs.Error.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return errs.Wrap(
			classifySQLState(pgErr.Code),
			fmt.Sprintf("%s: %s", msg, pgErr.Message),
			err,
		)
	}

	// *pgconn.ConnectError, network errors, …
	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}

// classifySQLState maps a SQLSTATE to ErrKind. Class 08 is connection
// exception and class 28 is invalid authorization.
func classifySQLState(code string) errs.ErrKind {
	switch {
	case code == pgErrUniqueViolation:
		return errs.ErrKindConflict
	case code == pgErrInsufficientPrivilege:
		return errs.ErrKindPermissionDenied
	case strings.HasPrefix(code, "08"), strings.HasPrefix(code, "28"),
		code == pgErrInvalidCatalogName, code == pgErrAdminShutdown, code == pgErrCannotConnectNow:
		return errs.ErrKindConnectionFailed
	default:
		return errs.ErrKindQueryFailed
	}
}

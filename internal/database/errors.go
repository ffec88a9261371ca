package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/koustreak/gardien/internal/errs"
)

// MapCommon classifies the errors every engine shares: context
// cancellation, missing rows and a closed pool. It returns nil for anything
// engine specific, which the dialect's MapError then handles.
func MapCommon(err error, msg string) *errs.Error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	case errors.Is(err, sql.ErrNoRows):
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	case errors.Is(err, sql.ErrConnDone):
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}

	// Already classified further down the stack.
	var e *errs.Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

func errInvalidInput(msg string) *errs.Error {
	return errs.New(errs.ErrKindInvalidInput, msg)
}

func errQuery(msg string, cause error) *errs.Error {
	return errs.Wrap(errs.ErrKindQueryFailed, msg, cause)
}

package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"

	"github.com/lib/pq"

	"github.com/WailSalutem-Health-Care/clinic-service/internal/apperr"
)

// Classify turns a storage error into an apperr.Error. Errors that are already
// classified pass through unchanged; nil stays nil.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}

	if errors.Is(err, sql.ErrNoRows) {
		return &apperr.Error{Kind: apperr.KindNotFound, Message: "record not found", Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return apperr.Transient("storage operation interrupted", err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23503":
			return apperr.Conflict("referenced record does not exist or is still in use", err)
		case "23505":
			return apperr.Conflict("a record with the same value already exists", err)
		case "23514", "23502", "22P02", "22007", "22008":
			return &apperr.Error{Kind: apperr.KindValidation, Message: "value rejected by storage constraints", Err: err}
		case "40001", "40P01", "55P03", "57014", "57P01", "57P02", "57P03":
			return apperr.Transient("storage conflict, retry the request", err)
		}
		if strings.HasPrefix(string(pqErr.Code), "08") {
			return apperr.Transient("storage connection failure", err)
		}
	}

	return apperr.Internal("storage failure", err)
}

// IsForeignKeyViolation reports whether err was caused by a missing
// referenced row.
func IsForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}

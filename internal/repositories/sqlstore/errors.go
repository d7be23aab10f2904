package sqlstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"

	"github.com/lib/pq"

	"github.com/Shelia5K/FAPI-order-service/internal/repositories"
)

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var storeErr *repositories.StoreError
	if errors.As(err, &storeErr) {
		return err
	}

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return repositories.NewStoreError(op, repositories.StoreErrorNotFound, "row not found", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, driver.ErrBadConn), errors.Is(err, sql.ErrConnDone), errors.Is(err, sql.ErrTxDone):
		return repositories.NewStoreError(op, repositories.StoreErrorUnavailable, "database unavailable", err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return repositories.NewStoreError(op, classifyPostgres(pqErr.Code), pqErr.Code.Name(), err)
	}

	if isSQLiteConstraint(err) {
		return repositories.NewStoreError(op, repositories.StoreErrorConflict, "constraint violation", err)
	}
	return repositories.NewStoreError(op, repositories.StoreErrorUnknown, "database error", err)
}

func classifyPostgres(code pq.ErrorCode) repositories.StoreErrorCode {
	switch code.Class() {
	case "23":
		return repositories.StoreErrorConflict
	case "08", "53", "57":
		return repositories.StoreErrorUnavailable
	case "40":
		// serialization_failure and deadlock_detected
		return repositories.StoreErrorConflict
	default:
		return repositories.StoreErrorUnknown
	}
}

// modernc.org/sqlite reports constraint failures as "constraint failed: ..." messages.
func isSQLiteConstraint(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "constraint failed") || strings.Contains(msg, "sqlite_constraint")
}

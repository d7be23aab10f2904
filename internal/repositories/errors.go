package repositories

import (
	"errors"
	"fmt"
)

// StoreErrorCode enumerates repository error causes.
type StoreErrorCode string

const (
	// StoreErrorUnknown represents an unspecified failure.
	StoreErrorUnknown StoreErrorCode = "store_unknown"
	// StoreErrorNotFound indicates the requested row or document does not exist.
	StoreErrorNotFound StoreErrorCode = "store_not_found"
	// StoreErrorInsufficientStock indicates a conditional decrement matched no row.
	StoreErrorInsufficientStock StoreErrorCode = "store_insufficient_stock"
	// StoreErrorConflict indicates a constraint violation or concurrent modification.
	StoreErrorConflict StoreErrorCode = "store_conflict"
	// StoreErrorUnavailable indicates a transient backend outage.
	StoreErrorUnavailable StoreErrorCode = "store_unavailable"
)

// StoreError wraps backend failures with machine readable codes.
type StoreError struct {
	Op      string
	Code    StoreErrorCode
	Message string
	Err     error
}

var _ RepositoryError = (*StoreError)(nil)

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

// Unwrap exposes the underlying error, if any.
func (e *StoreError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *StoreError) IsNotFound() bool { return e != nil && e.Code == StoreErrorNotFound }

// IsConflict covers both generic conflicts and failed stock decrements.
func (e *StoreError) IsConflict() bool {
	return e != nil && (e.Code == StoreErrorConflict || e.Code == StoreErrorInsufficientStock)
}

func (e *StoreError) IsUnavailable() bool { return e != nil && e.Code == StoreErrorUnavailable }

// NewStoreError constructs a typed repository error.
func NewStoreError(op string, code StoreErrorCode, message string, err error) *StoreError {
	if message == "" {
		message = string(code)
	}
	return &StoreError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ErrorCode extracts the StoreErrorCode from err, or StoreErrorUnknown.
func ErrorCode(err error) StoreErrorCode {
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Code
	}
	var repoErr RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return StoreErrorNotFound
		case repoErr.IsConflict():
			return StoreErrorConflict
		case repoErr.IsUnavailable():
			return StoreErrorUnavailable
		}
	}
	return StoreErrorUnknown
}

package exchangerates

import (
	"errors"
	"fmt"
)

var (
	// ErrFetchFailed is matched by every FetchError regardless of kind.
	ErrFetchFailed = errors.New("exchangerates: fetch failed")
	// ErrNoUsableRates is returned when a payload parses but yields no supported currency.
	ErrNoUsableRates = errors.New("exchangerates: no usable rates in payload")
)

// FetchErrorKind classifies why a rate fetch did not produce a table.
type FetchErrorKind string

const (
	FetchErrorNetwork FetchErrorKind = "network"
	FetchErrorTimeout FetchErrorKind = "timeout"
	FetchErrorStatus  FetchErrorKind = "status"
	FetchErrorParse   FetchErrorKind = "parse"
)

// FetchError carries a human-readable Reason suitable for display next to missing conversions.
type FetchError struct {
	Kind   FetchErrorKind
	Reason string
	Err    error
}

func (e *FetchError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("exchangerates: %s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("exchangerates: %s: %s", e.Kind, e.Reason)
}

func (e *FetchError) Unwrap() []error {
	if e == nil {
		return nil
	}
	if e.Err == nil {
		return []error{ErrFetchFailed}
	}
	return []error{ErrFetchFailed, e.Err}
}

// Reason extracts a display message from err, falling back to a generic one.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) && fetchErr.Reason != "" {
		return fetchErr.Reason
	}
	return "exchange rates are temporarily unavailable"
}

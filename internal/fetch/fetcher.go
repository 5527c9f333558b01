package fetch

import (
	"context"
	"errors"
	"fmt"

	"PriceSentry/internal/model"
)

// Fetcher retrieves the current name and price from a product page.
type Fetcher interface {
	Fetch(ctx context.Context, sourceURL string) (model.Quote, error)
	Name() string
}

// ErrorKind categorizes fetch failures.
type ErrorKind string

const (
	// KindNetwork covers transport failures: DNS, connect, timeout, read.
	KindNetwork ErrorKind = "NETWORK"

	// KindUnexpectedStatus means the page answered with a non-200 status.
	KindUnexpectedStatus ErrorKind = "UNEXPECTED_STATUS"

	// KindFieldNotFound means the title or price element is missing.
	KindFieldNotFound ErrorKind = "FIELD_NOT_FOUND"

	// KindUnparsablePrice means the price text did not parse as an amount.
	KindUnparsablePrice ErrorKind = "UNPARSABLE_PRICE"

	// KindInvalidObservation means a fetched quote failed validation before logging.
	KindInvalidObservation ErrorKind = "INVALID_OBSERVATION"
)

// Error is a classified fetch failure.
type Error struct {
	Kind   ErrorKind
	Detail string
	Status int   // HTTP status, set for KindUnexpectedStatus
	Err    error // underlying cause, if any
}

func (e *Error) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("%s: %s (status %d)", e.Kind, e.Detail, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the classified kind of err, or "" when err is not a fetch error.
// Uses errors.As to handle wrapped errors.
func KindOf(err error) ErrorKind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsKind reports whether err is a fetch error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

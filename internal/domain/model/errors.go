package model

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindValidation        ErrorKind = "VALIDATION"
	KindInsufficientStock ErrorKind = "INSUFFICIENT_STOCK"
	KindNotFound          ErrorKind = "NOT_FOUND"
	KindForbidden         ErrorKind = "FORBIDDEN"
	KindConflict          ErrorKind = "CONFLICT"
)

// Error is an expected business failure. Anything that is not an *Error is
// an infrastructure fault and must not be reported to callers as one of the
// kinds above.
type Error struct {
	Kind    ErrorKind
	Message string
	// Product is the display name of the product that ran out of stock.
	Product string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func InsufficientStock(productName string, available, requested int) *Error {
	return &Error{
		Kind:    KindInsufficientStock,
		Message: fmt.Sprintf("product %q has only %d in stock, %d requested", productName, available, requested),
		Product: productName,
	}
}

// KindOf reports the business kind carried by err, if any.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

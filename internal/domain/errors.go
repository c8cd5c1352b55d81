package domain

import (
	"errors"
	"fmt"
)

// Operational error kinds. Everything else reaching the edge is treated as an
// internal failure.
var (
	ErrValidation        = errors.New("validation error")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrAlreadyPaid       = errors.New("order already paid")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrSignatureMismatch = errors.New("payment signature mismatch")
	ErrGateway           = errors.New("payment gateway error")
)

// Error pairs a kind with a message that is safe to show to the client.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func Errorf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// IsOperational reports whether err is one of the expected kinds above.
func IsOperational(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

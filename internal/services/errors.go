// internal/services/errors.go
package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

type ErrorKind string

const (
	KindInvalidInput        ErrorKind = "INVALID_INPUT"
	KindPermissionDenied    ErrorKind = "PERMISSION_DENIED"
	KindInvalidState        ErrorKind = "INVALID_STATE"
	KindInvalidTransition   ErrorKind = "INVALID_TRANSITION"
	KindNotFound            ErrorKind = "NOT_FOUND"
	KindPaymentNotConfirmed ErrorKind = "PAYMENT_NOT_CONFIRMED"
	KindGatewayError        ErrorKind = "GATEWAY_ERROR"
	KindConflict            ErrorKind = "CONFLICT"
)

// Sentinels for errors.Is; every ServiceError matches the one of its kind.
var (
	ErrInvalidInput        = &ServiceError{Kind: KindInvalidInput}
	ErrPermissionDenied    = &ServiceError{Kind: KindPermissionDenied}
	ErrInvalidState        = &ServiceError{Kind: KindInvalidState}
	ErrInvalidTransition   = &ServiceError{Kind: KindInvalidTransition}
	ErrNotFound            = &ServiceError{Kind: KindNotFound}
	ErrPaymentNotConfirmed = &ServiceError{Kind: KindPaymentNotConfirmed}
	ErrGateway             = &ServiceError{Kind: KindGatewayError}
	ErrConflict            = &ServiceError{Kind: KindConflict}
)

type ServiceError struct {
	Kind ErrorKind
	// Key is the i18n message key rendered by handlers.
	Key     string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	return ok && t.Kind == e.Kind
}

func newError(kind ErrorKind, key, message string) *ServiceError {
	return &ServiceError{Kind: kind, Key: key, Message: message}
}

func wrapError(kind ErrorKind, key, message string, err error) *ServiceError {
	return &ServiceError{Kind: kind, Key: key, Message: message, Err: err}
}

// KindOf reports the kind of a service error, or "" for anything else.
func KindOf(err error) ErrorKind {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// notFoundOr maps gorm.ErrRecordNotFound to a NotFound error for resource
// and wraps anything else as a plain database error.
func notFoundOr(err error, key, resource string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return newError(KindNotFound, key, resource+" not found")
	}
	return fmt.Errorf("database error: %w", err)
}

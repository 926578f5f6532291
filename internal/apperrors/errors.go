// internal/apperrors/errors.go
package apperrors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Kind is the error category reported to callers
type Kind string

const (
	KindAuth       Kind = "auth_error"
	KindValidation Kind = "validation_error"
	KindOrder      Kind = "order_error"
	KindStatus     Kind = "status_error"
	KindNetwork    Kind = "network_error"
	KindTimeout    Kind = "timeout_error"
	KindInternal   Kind = "internal_error"
	KindIPN        Kind = "ipn_registration_error"
)

// Kind sentinels for errors.Is. A gateway call that never got a response wraps
// ErrNetwork or ErrTimeout inside the error of the step that failed.
var (
	ErrAuth       = &Error{Kind: KindAuth}
	ErrValidation = &Error{Kind: KindValidation}
	ErrOrder      = &Error{Kind: KindOrder}
	ErrStatus     = &Error{Kind: KindStatus}
	ErrNetwork    = &Error{Kind: KindNetwork}
	ErrTimeout    = &Error{Kind: KindTimeout}
)

// ErrInvalidNotificationID marks an order rejected because the IPN registration id is unknown to the gateway
var ErrInvalidNotificationID = errors.New("invalid notification id")

// Error is the single error type crossing the service boundary
type Error struct {
	Kind       Kind
	Message    string
	StatusCode int             // upstream HTTP status, 0 when there was no response
	Raw        json.RawMessage // upstream body for diagnostics
	Field      string          // set for validation errors
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches kind sentinels: a target with no message matches any error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Message != "" {
		return false
	}
	return t.Kind == e.Kind
}

// HTTPStatus maps the error onto the status returned to the caller.
// Upstream statuses are passed through when they describe a failure.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNetwork, KindTimeout, KindInternal:
		return http.StatusInternalServerError
	}
	if e.StatusCode >= 400 {
		return e.StatusCode
	}
	return http.StatusInternalServerError
}

// Transient reports whether a later identical call could succeed
func (e *Error) Transient() bool {
	return errors.Is(e, ErrTimeout) || errors.Is(e, ErrNetwork)
}

func Validation(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

func Internal(message string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: message, Cause: cause}
}

// As extracts an *Error from err's chain
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}

func IsValidation(err error) bool { return IsKind(err, KindValidation) }

func IsTimeout(err error) bool { return errors.Is(err, ErrTimeout) }

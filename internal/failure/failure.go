// Package failure defines the error taxonomy surfaced to API callers: every
// error that reaches a handler is mapped to a kind, a stable code and a
// user-facing message.
package failure

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindNetwork    Kind = "network"
	KindAuth       Kind = "auth"
	KindStore      Kind = "store"
	KindValidation Kind = "validation"
)

// Codes follow the identity provider / document store vocabulary.
const (
	CodeUnavailable       = "unavailable"
	CodeEmailAlreadyInUse = "email-already-in-use"
	CodeInvalidEmail      = "invalid-email"
	CodeWeakPassword      = "weak-password"
	CodePasswordTooLong   = "password-too-long"
	CodeInvalidCredential = "invalid-credential"
	CodeTooManyRequests   = "too-many-requests"
	CodePermissionDenied  = "permission-denied"
	CodeNotAuthenticated  = "unauthenticated"
	CodeNotFound          = "not-found"
	CodeInvalidRequest    = "invalid-request"
	CodeInternal          = "internal"
)

var messages = map[string]string{
	CodeEmailAlreadyInUse: "An account with this email already exists.",
	CodeInvalidEmail:      "Please enter a valid email address.",
	CodeWeakPassword:      "Password should be at least 6 characters.",
	CodePasswordTooLong:   "Password must be at most 72 bytes long.",
	CodeInvalidCredential: "Invalid email or password.",
	CodeTooManyRequests:   "Too many attempts. Please wait a moment and try again.",
	CodePermissionDenied:  "Permission denied. Please make sure you are signed in and try again.",
	CodeNotAuthenticated:  "Please sign in to save coins to your watchlist.",
	CodeNotFound:          "User document not found. Please try signing out and back in.",
	CodeInternal:          "Something went wrong. Please try again.",
}

var fallbacks = map[Kind]string{
	KindNetwork:    "Unable to load market data. Please try again later.",
	KindAuth:       "Authentication failed. Please try again.",
	KindStore:      "Failed to save coin. Please try again.",
	KindValidation: "Invalid request.",
}

// Error is a classified failure. Err keeps the underlying cause for logs.
type Error struct {
	Kind Kind
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s/%s: %v", e.Kind, e.Code, e.Err)
	}
	return fmt.Sprintf("%s/%s", e.Kind, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error on kind and code, so sentinel values below work
// with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// Message is the text shown to the user.
func (e *Error) Message() string {
	if e.Kind == KindStore && e.Code == CodeUnavailable {
		return "Service temporarily unavailable. Please try again later."
	}
	if e.Kind == KindNetwork {
		return fallbacks[KindNetwork]
	}
	if e.Kind == KindValidation && e.Code == CodeInvalidRequest && e.Err != nil {
		return e.Err.Error()
	}
	if m, ok := messages[e.Code]; ok {
		return m
	}
	return fallbacks[e.Kind]
}

// Retryable reports whether offering a retry action makes sense.
func (e *Error) Retryable() bool {
	switch {
	case e.Kind == KindNetwork:
		return true
	case e.Code == CodeUnavailable, e.Code == CodeTooManyRequests:
		return true
	}
	return false
}

// Status maps the failure to an HTTP status code.
func (e *Error) Status() int {
	switch e.Code {
	case CodeNotAuthenticated, CodeInvalidCredential:
		return http.StatusUnauthorized
	case CodePermissionDenied:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeEmailAlreadyInUse:
		return http.StatusConflict
	case CodeInvalidEmail, CodeWeakPassword, CodePasswordTooLong, CodeInvalidRequest:
		return http.StatusBadRequest
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	}
	switch e.Kind {
	case KindNetwork:
		return http.StatusBadGateway
	case KindStore:
		if e.Code == CodeUnavailable {
			return http.StatusServiceUnavailable
		}
	case KindValidation:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func New(kind Kind, code string, err error) *Error {
	return &Error{Kind: kind, Code: code, Err: err}
}

func Network(err error) *Error { return New(KindNetwork, CodeUnavailable, err) }

func Auth(code string, err error) *Error { return New(KindAuth, code, err) }

func Store(code string, err error) *Error { return New(KindStore, code, err) }

func Invalid(format string, args ...any) *Error {
	return New(KindValidation, CodeInvalidRequest, fmt.Errorf(format, args...))
}

// Sentinels for errors.Is checks.
var (
	ErrNotAuthenticated  = &Error{Kind: KindStore, Code: CodeNotAuthenticated}
	ErrNotFound          = &Error{Kind: KindStore, Code: CodeNotFound}
	ErrPermissionDenied  = &Error{Kind: KindStore, Code: CodePermissionDenied}
	ErrStoreUnavailable  = &Error{Kind: KindStore, Code: CodeUnavailable}
	ErrEmailInUse        = &Error{Kind: KindAuth, Code: CodeEmailAlreadyInUse}
	ErrInvalidCredential = &Error{Kind: KindAuth, Code: CodeInvalidCredential}
	ErrTooManyRequests   = &Error{Kind: KindAuth, Code: CodeTooManyRequests}
	ErrWeakPassword      = &Error{Kind: KindAuth, Code: CodeWeakPassword}
	ErrPasswordTooLong   = &Error{Kind: KindAuth, Code: CodePasswordTooLong}
	ErrInvalidEmail      = &Error{Kind: KindAuth, Code: CodeInvalidEmail}
)

// From extracts the classified failure from err. Unclassified errors become
// an internal store failure so callers always get a message.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	return New(KindStore, CodeInternal, err)
}

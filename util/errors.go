package util

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind is the stable, machine-distinguishable class of a failure.
type ErrorKind string

const (
	KindValidation              ErrorKind = "ValidationError"
	KindDuplicateAccount        ErrorKind = "DuplicateAccount"
	KindInvalidCredentials      ErrorKind = "InvalidCredentials"
	KindEmailNotVerified        ErrorKind = "EmailNotVerified"
	KindAccountSuspended        ErrorKind = "AccountSuspended"
	KindRateLimited             ErrorKind = "RateLimited"
	KindInvalidOrExpiredCode    ErrorKind = "InvalidOrExpiredCode"
	KindResetLimitExceeded      ErrorKind = "ResetLimitExceeded"
	KindNotAuthorized           ErrorKind = "NotAuthorized"
	KindNotFound                ErrorKind = "NotFound"
	KindSlotUnavailable         ErrorKind = "SlotUnavailable"
	KindInvalidStatusTransition ErrorKind = "InvalidStatusTransition"
	KindUnauthenticated         ErrorKind = "Unauthenticated"
	KindInternal                ErrorKind = "InternalError"
)

var kindStatus = map[ErrorKind]int{
	KindValidation:              http.StatusBadRequest,
	KindDuplicateAccount:        http.StatusBadRequest,
	KindInvalidCredentials:      http.StatusUnauthorized,
	KindEmailNotVerified:        http.StatusForbidden,
	KindAccountSuspended:        http.StatusForbidden,
	KindRateLimited:             http.StatusTooManyRequests,
	KindInvalidOrExpiredCode:    http.StatusBadRequest,
	KindResetLimitExceeded:      http.StatusForbidden,
	KindNotAuthorized:           http.StatusForbidden,
	KindNotFound:                http.StatusNotFound,
	KindSlotUnavailable:         http.StatusBadRequest,
	KindInvalidStatusTransition: http.StatusBadRequest,
	KindUnauthenticated:         http.StatusUnauthorized,
	KindInternal:                http.StatusInternalServerError,
}

// AppError carries a kind, a client-safe message and optional structured details.
// The wrapped cause is logged but never serialised.
type AppError struct {
	Kind    ErrorKind
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any *AppError of the same kind, so errors.Is(err, util.ErrSlotUnavailable) works
// regardless of message or details.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// WithDetail returns a copy of e with key set in its details.
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	cp := *e
	cp.Details = make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

// NewError builds an AppError of the given kind.
func NewError(kind ErrorKind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

// WrapError builds an AppError that keeps cause for logging.
func WrapError(kind ErrorKind, message string, cause error) *AppError {
	return &AppError{Kind: kind, Message: message, Err: cause}
}

// Kind sentinels for errors.Is checks.
var (
	ErrValidation              = NewError(KindValidation, "")
	ErrDuplicateAccount        = NewError(KindDuplicateAccount, USER_ALREADY_EXISTS)
	ErrInvalidCredentials      = NewError(KindInvalidCredentials, INVALID_CREDENTIALS)
	ErrEmailNotVerified        = NewError(KindEmailNotVerified, EMAIL_NOT_VERIFIED)
	ErrAccountSuspended        = NewError(KindAccountSuspended, ACCOUNT_SUSPENDED)
	ErrRateLimited             = NewError(KindRateLimited, TOO_MANY_REQUESTS)
	ErrInvalidOrExpiredCode    = NewError(KindInvalidOrExpiredCode, INVALID_OR_EXPIRED_OTP)
	ErrResetLimitExceeded      = NewError(KindResetLimitExceeded, RESET_LIMIT_EXCEEDED)
	ErrNotAuthorized           = NewError(KindNotAuthorized, NOT_AUTHORIZED)
	ErrNotFound                = NewError(KindNotFound, RESOURCE_NOT_FOUND)
	ErrSlotUnavailable         = NewError(KindSlotUnavailable, SLOT_UNAVAILABLE)
	ErrInvalidStatusTransition = NewError(KindInvalidStatusTransition, INVALID_STATUS_TRANSITION)
	ErrUnauthenticated         = NewError(KindUnauthenticated, AUTHENTICATION_REQUIRED)
	ErrInternal                = NewError(KindInternal, INTERNAL_ERROR)
)

// ValidationError is a shortcut for the most common failure.
func ValidationError(message string) *AppError {
	return NewError(KindValidation, message)
}

// InternalError hides cause from the client.
func InternalError(cause error) *AppError {
	return WrapError(KindInternal, INTERNAL_ERROR, cause)
}

// AsAppError extracts the AppError from err; anything unknown is treated as internal.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return InternalError(err)
}

// StatusFor maps an error to its HTTP status.
func StatusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if status, ok := kindStatus[AsAppError(err).Kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

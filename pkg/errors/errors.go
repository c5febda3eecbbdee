package errors

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a class of application error.
type ErrorCode int

const (
	ErrNotFound ErrorCode = iota + 1000
	ErrValidation
	ErrInvalidTransition
	ErrNoCompartmentAvailable
	ErrCodeMismatch
	ErrCodeLocked
	ErrRemoteUnavailable
	ErrTimeout
	ErrInconsistentState
	ErrConflict
	ErrUnauthorized
	ErrInternal
)

// AppError carries an error code, a human-readable message and the
// underlying cause.
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches AppErrors by code so errors.Is works across wrapped chains.
func (e *AppError) Is(target error) bool {
	var appErr *AppError
	if !errors.As(target, &appErr) {
		return false
	}
	return e.Code == appErr.Code
}

func NotFound(resource string) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

func Validation(message string) *AppError {
	return &AppError{
		Code:    ErrValidation,
		Message: message,
	}
}

// InvalidTransition names the violated guard so callers can surface it.
func InvalidTransition(guard string) *AppError {
	return &AppError{
		Code:    ErrInvalidTransition,
		Message: fmt.Sprintf("invalid transition: %s", guard),
	}
}

func NoCompartmentAvailable() *AppError {
	return &AppError{
		Code:    ErrNoCompartmentAvailable,
		Message: "no compartments available, retry later",
	}
}

func CodeMismatch() *AppError {
	return &AppError{
		Code:    ErrCodeMismatch,
		Message: "verification code does not match",
	}
}

func CodeLocked() *AppError {
	return &AppError{
		Code:    ErrCodeLocked,
		Message: "too many failed attempts, verification locked",
	}
}

func RemoteUnavailable(err error) *AppError {
	return &AppError{
		Code:    ErrRemoteUnavailable,
		Message: "backend unavailable",
		Err:     err,
	}
}

func Timeout(op string, err error) *AppError {
	return &AppError{
		Code:    ErrTimeout,
		Message: fmt.Sprintf("%s timed out", op),
		Err:     err,
	}
}

// InconsistentState reports a detected partial failure that left remote
// records disagreeing with each other.
func InconsistentState(detail string, err error) *AppError {
	return &AppError{
		Code:    ErrInconsistentState,
		Message: fmt.Sprintf("inconsistent state: %s", detail),
		Err:     err,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Code:    ErrConflict,
		Message: message,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: message,
	}
}

func Internal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal error",
		Err:     err,
	}
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

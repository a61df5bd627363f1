package common

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds shared by every service. They are matched with errors.Is and
// never returned bare to HTTP clients.
var (
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation failure")
	ErrModelUnavailable = errors.New("model unavailable")
	ErrStoreFailure     = errors.New("store failure")
	ErrInternal         = errors.New("internal error")
)

// AppError is an error carrying an HTTP status and a client-safe message
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
	kind    error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the kind of this error
func (e *AppError) Is(target error) bool {
	return e.kind != nil && e.kind == target
}

// NewAppError creates a new AppError
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err, kind: kindForStatus(code)}
}

// NewNotFoundError creates a 404 error
func NewNotFoundError(message string) *AppError {
	return &AppError{Code: http.StatusNotFound, Message: message, kind: ErrNotFound}
}

// NewBadRequestError creates a 400 error
func NewBadRequestError(message string, err error) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: message, Err: err, kind: ErrValidation}
}

// NewValidationError creates a 422 error for a malformed submission
func NewValidationError(message string) *AppError {
	return &AppError{Code: http.StatusUnprocessableEntity, Message: message, kind: ErrValidation}
}

// NewModelUnavailableError creates a 503 error for a classifier that is not loaded
func NewModelUnavailableError(model string) *AppError {
	return &AppError{
		Code:    http.StatusServiceUnavailable,
		Message: fmt.Sprintf("%s model unavailable", model),
		kind:    ErrModelUnavailable,
	}
}

// NewStoreError wraps an underlying store read/write failure
func NewStoreError(message string, err error) *AppError {
	return &AppError{Code: http.StatusInternalServerError, Message: message, Err: err, kind: ErrStoreFailure}
}

// NewInternalServerError creates a 500 error
func NewInternalServerError(message string) *AppError {
	return &AppError{Code: http.StatusInternalServerError, Message: message, kind: ErrInternal}
}

func kindForStatus(code int) error {
	switch code {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrValidation
	case http.StatusServiceUnavailable:
		return ErrModelUnavailable
	default:
		return ErrInternal
	}
}

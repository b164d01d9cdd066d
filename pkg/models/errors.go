package models

import (
	"errors"
	"fmt"
)

// Common error codes - HTTP focused but protocol-aware
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeInternal           = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"

	ErrCodeTCPFrameInvalid = "TCP_FRAME_INVALID"
)

// Common errors
var (
	ErrNotFound        = errors.New("resource not found")
	ErrInvalidToken    = errors.New("invalid or expired token")
	ErrUnauthorized    = errors.New("unauthorized access")
	ErrForbidden       = errors.New("forbidden access")
	ErrInvalidInput    = errors.New("invalid input")
	ErrVersionConflict = errors.New("stats version conflict")
	ErrQueueFull       = errors.New("reward queue is full")

	// Engine error kinds. None of them fail the report that triggered processing.
	ErrDuplicateEvent     = errors.New("duplicate reward event")
	ErrUnknownUser        = errors.New("user has no reward history")
	ErrInconsistentLedger = errors.New("stored stats disagree with ledger")
	ErrStaleRankSnapshot  = errors.New("rank snapshot is stale")

	// TCP protocol errors
	ErrTCPFrameTooLarge = errors.New("TCP frame exceeds 4KB limit")
	ErrTCPRateLimited   = errors.New("TCP rate limit exceeded")
)

// AppError carries a protocol-facing code alongside the wrapped cause
type AppError struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	StatusCode int                    `json:"status_code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Protocol   string                 `json:"protocol,omitempty"`
	Err        error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Protocol != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Protocol, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewHTTPError builds an HTTP-facing error
func NewHTTPError(code, message string, statusCode int, err error) *AppError {
	appErr := &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Protocol:   "http",
		Err:        err,
	}
	if err != nil {
		appErr.Details = map[string]interface{}{"original_error": err.Error()}
	}
	return appErr
}

// HTTPStatus maps an error to the status code the API answers with
func HTTPStatus(err error) int {
	var appErr *AppError
	switch {
	case err == nil:
		return 200
	case errors.As(err, &appErr) && appErr.StatusCode != 0:
		return appErr.StatusCode
	case errors.Is(err, ErrInvalidInput):
		return 400
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidToken):
		return 401
	case errors.Is(err, ErrForbidden):
		return 403
	case errors.Is(err, ErrNotFound):
		return 404
	case errors.Is(err, ErrVersionConflict):
		return 409
	case errors.Is(err, ErrQueueFull):
		return 503
	default:
		return 500
	}
}

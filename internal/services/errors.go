package services

import (
	"errors"
	"fmt"
	"net/http"
)

// ===============================
// SERVICE ERROR TAXONOMY
// ===============================

// Error type identifiers carried in API error payloads.
const (
	ErrTypeValidation     = "VALIDATION_ERROR"
	ErrTypeNotFound       = "NOT_FOUND"
	ErrTypeAuthentication = "AUTHENTICATION_ERROR"
	ErrTypeAuthorization  = "AUTHORIZATION_ERROR"
	ErrTypeBusiness       = "BUSINESS_ERROR"
	ErrTypeConflict       = "CONFLICT"
	ErrTypeRateLimit      = "RATE_LIMIT"
	ErrTypeInternal       = "INTERNAL_ERROR"
)

// ServiceError is the error currency between services and handlers. The Type
// determines the HTTP status; Cause is preserved for logging but never sent
// to the caller.
type ServiceError struct {
	Type       string                 `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	StatusCode int                    `json:"-"`
	Cause      error                  `json:"-"`
}

func (e *ServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the cause for errors.Is / errors.As.
func (e *ServiceError) Unwrap() error { return e.Cause }

// WithDetail attaches a key/value detail and returns the error for chaining.
func (e *ServiceError) WithDetail(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ===============================
// CONSTRUCTORS
// ===============================

// NewValidationError reports caller-fixable malformed input.
func NewValidationError(message string, cause error) *ServiceError {
	return &ServiceError{
		Type:       ErrTypeValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Cause:      cause,
	}
}

// NewNotFoundError reports a missing or inactive entity.
func NewNotFoundError(resource string) *ServiceError {
	return &ServiceError{
		Type:       ErrTypeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

// NewUnauthorizedError reports a missing or invalid identity.
func NewUnauthorizedError(message string) *ServiceError {
	return &ServiceError{
		Type:       ErrTypeAuthentication,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

// NewForbiddenError reports an authenticated but unauthorized actor.
func NewForbiddenError(message string) *ServiceError {
	return &ServiceError{
		Type:       ErrTypeAuthorization,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

// NewBusinessError reports a domain rule violation.
func NewBusinessError(message, code string) *ServiceError {
	return &ServiceError{
		Type:       ErrTypeBusiness,
		Message:    message,
		Code:       code,
		StatusCode: http.StatusUnprocessableEntity,
	}
}

// NewConflictError reports a state conflict with an existing record.
func NewConflictError(message string) *ServiceError {
	return &ServiceError{
		Type:       ErrTypeConflict,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// NewRateLimitError reports request throttling.
func NewRateLimitError(message string) *ServiceError {
	return &ServiceError{
		Type:       ErrTypeRateLimit,
		Message:    message,
		StatusCode: http.StatusTooManyRequests,
	}
}

// NewInternalError wraps an unexpected failure. The cause is logged, never
// surfaced to the caller.
func NewInternalError(message string, cause error) *ServiceError {
	return &ServiceError{
		Type:       ErrTypeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// ===============================
// INSPECTION HELPERS
// ===============================

// GetServiceError extracts a *ServiceError from an error chain, or nil.
func GetServiceError(err error) *ServiceError {
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}
	return nil
}

// IsNotFoundError reports whether err is a not-found service error.
func IsNotFoundError(err error) bool {
	se := GetServiceError(err)
	return se != nil && se.Type == ErrTypeNotFound
}

// IsValidationError reports whether err is a validation service error.
func IsValidationError(err error) bool {
	se := GetServiceError(err)
	return se != nil && se.Type == ErrTypeValidation
}

// IsForbiddenError reports whether err is an authorization service error.
func IsForbiddenError(err error) bool {
	se := GetServiceError(err)
	return se != nil && se.Type == ErrTypeAuthorization
}

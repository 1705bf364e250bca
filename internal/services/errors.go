package services

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// ErrorCode classifies a service failure for transport-layer mapping.
type ErrorCode string

const (
	ErrorInvalid      ErrorCode = "invalid"
	ErrorUnauthorized ErrorCode = "unauthorized"
	ErrorForbidden    ErrorCode = "forbidden"
	ErrorNotFound     ErrorCode = "not_found"
	ErrorConflict     ErrorCode = "conflict"
	ErrorBadGateway   ErrorCode = "bad_gateway"
)

// ServiceError is the error type services return for expected failures.
// The message is user-facing; the code drives status mapping and lets
// callers branch without string matching.
type ServiceError struct {
	Code    ErrorCode
	Message string
}

func (e *ServiceError) Error() string { return e.Message }

func NewInvalidError(msg string) *ServiceError {
	return &ServiceError{Code: ErrorInvalid, Message: msg}
}

func NewUnauthorizedError(msg string) *ServiceError {
	return &ServiceError{Code: ErrorUnauthorized, Message: msg}
}

func NewForbiddenError(msg string) *ServiceError {
	return &ServiceError{Code: ErrorForbidden, Message: msg}
}

func NewNotFoundError(msg string) *ServiceError {
	return &ServiceError{Code: ErrorNotFound, Message: msg}
}

func NewConflictError(msg string) *ServiceError {
	return &ServiceError{Code: ErrorConflict, Message: msg}
}

func NewBadGatewayError(msg string) *ServiceError {
	return &ServiceError{Code: ErrorBadGateway, Message: msg}
}

// AsServiceError unwraps err into a ServiceError if one is in the chain.
func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// shortID returns an n-character identifier derived from a random UUID
// with the dashes stripped.
func shortID(n int) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if n > 0 && n < len(id) {
		return id[:n]
	}
	return id
}

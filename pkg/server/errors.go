package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"runtime"
	"time"
)

// Error types for structured error handling
type ErrorType string

const (
	ErrorTypeSchemaResolution ErrorType = "schema_resolution"
	ErrorTypeToolNotFound     ErrorType = "tool_not_found"
	ErrorTypeMissingParameter ErrorType = "missing_parameter"
	ErrorTypeValidation       ErrorType = "validation"
	ErrorTypeAuth             ErrorType = "authentication"
	ErrorTypeNetwork          ErrorType = "network"
	ErrorTypeDatabase         ErrorType = "database"
	ErrorTypeNotFound         ErrorType = "not_found"
	ErrorTypeInternal         ErrorType = "internal"
)

// ServerError represents a structured error with context
type ServerError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	Timestamp  int64     `json:"timestamp"`
	StackTrace string    `json:"stack_trace,omitempty"`
}

// Error implements the error interface
func (e *ServerError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// NewError creates a new ServerError
func NewError(errType ErrorType, message string, details string) *ServerError {
	return &ServerError{
		Type:      errType,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().Unix(),
	}
}

// NewErrorWithContext creates a new ServerError carrying the request id from
// the context, if one was attached via WithRequestID.
func NewErrorWithContext(ctx context.Context, errType ErrorType, message string, details string) *ServerError {
	err := NewError(errType, message, details)
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		err.RequestID = requestID
	}
	return err
}

// WithStackTrace adds stack trace information to the error
func (e *ServerError) WithStackTrace() *ServerError {
	buf := make([]byte, 1024)
	n := runtime.Stack(buf, false)
	e.StackTrace = string(buf[:n])
	return e
}

// LogError logs the error with appropriate level and context
func (e *ServerError) LogError() {
	switch e.Type {
	case ErrorTypeValidation, ErrorTypeMissingParameter:
		log.Printf("VALIDATION ERROR: %s", e.Error())
	case ErrorTypeSchemaResolution:
		log.Printf("SCHEMA ERROR: %s", e.Error())
	case ErrorTypeAuth:
		log.Printf("AUTH ERROR: %s", e.Error())
	case ErrorTypeDatabase:
		log.Printf("DATABASE ERROR: %s", e.Error())
	case ErrorTypeNetwork:
		log.Printf("NETWORK ERROR: %s", e.Error())
	case ErrorTypeToolNotFound, ErrorTypeNotFound:
		log.Printf("NOT FOUND: %s", e.Error())
	default:
		log.Printf("ERROR: %s", e.Error())
	}

	if e.StackTrace != "" {
		log.Printf("Stack trace: %s", e.StackTrace)
	}
}

// Wrap wraps a standard error as a ServerError
func Wrap(err error, errType ErrorType, message string) *ServerError {
	if err == nil {
		return nil
	}
	return NewError(errType, message, err.Error())
}

// WrapWithContext wraps a standard error as a ServerError with context
func WrapWithContext(ctx context.Context, err error, errType ErrorType, message string) *ServerError {
	if err == nil {
		return nil
	}
	return NewErrorWithContext(ctx, errType, message, err.Error())
}

// IsType checks if the error is of a specific type
func IsType(err error, errType ErrorType) bool {
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return serverErr.Type == errType
	}
	return false
}

// GetType returns the error type if it's a ServerError, otherwise returns ErrorTypeInternal
func GetType(err error) ErrorType {
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return serverErr.Type
	}
	return ErrorTypeInternal
}

// HTTPStatus maps an error type to the status code the HTTP surface reports.
func HTTPStatus(errType ErrorType) int {
	switch errType {
	case ErrorTypeToolNotFound, ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeMissingParameter, ErrorTypeValidation, ErrorTypeSchemaResolution:
		return http.StatusBadRequest
	case ErrorTypeAuth, ErrorTypeNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type contextKey string

const requestIDKey contextKey = "request_id"

// WithRequestID attaches a request id to the context for error reporting.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

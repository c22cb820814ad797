package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoHealthyServices is returned when service selection finds nothing healthy
	ErrNoHealthyServices = errors.New("no healthy AI services available")
	// ErrNoValidOCRResult is returned when no OCR provider clears the confidence floor
	ErrNoValidOCRResult = errors.New("no valid OCR result")
)

// ValidationError indicates malformed input to a registration or config call.
// It is never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError indicates an operation on an unknown user, service, template or test
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// NewNotFoundError creates a NotFoundError
func NewNotFoundError(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

// ServiceExecutionError wraps a failed call to a specific AI backend
type ServiceExecutionError struct {
	Service string
	Err     error
}

func (e *ServiceExecutionError) Error() string {
	return fmt.Sprintf("service %s execution failed: %v", e.Service, e.Err)
}

func (e *ServiceExecutionError) Unwrap() error {
	return e.Err
}

// ExtractionError describes an OCR or pattern extraction failure
type ExtractionError struct {
	Stage   string
	Message string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed at %s: %s", e.Stage, e.Message)
}

// AggregateFailure is returned when every service in a fallback chain failed
type AggregateFailure struct {
	Attempted   []string
	Errors      []error
	Recoverable bool
}

func (e *AggregateFailure) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("all services failed (attempted: %s): %s",
		strings.Join(e.Attempted, ", "), strings.Join(msgs, "; "))
}

func (e *AggregateFailure) Unwrap() []error {
	return e.Errors
}

// IsValidationError reports whether err is or wraps a ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFoundError reports whether err is or wraps a NotFoundError
func IsNotFoundError(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

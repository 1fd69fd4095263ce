package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Error kinds raised by the booking core. Callers match them with errors.Is.
var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	ErrGateway             = errors.New("payment gateway error")
	ErrRateLimited         = errors.New("rate limit exceeded")

	// ErrSlotUnavailable is returned when the requested interval is taken or blocked
	ErrSlotUnavailable = fmt.Errorf("%w: the selected time slot is not available", ErrConflict)

	// ErrInvalidTransition is returned when a booking cannot move to the requested status
	ErrInvalidTransition = fmt.Errorf("%w: invalid booking status transition", ErrConflict)
)

// ValidationError carries field-level messages for malformed input
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError creates a ValidationError for a single field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// Add records a message for a field
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = message
}

// HasErrors reports whether any field failed
func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Fields) > 0
}

// Error implements error
func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is makes errors.Is(err, ErrValidation) true for ValidationError
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NotFoundf builds a NotFound error for the named entity
func NotFoundf(entity string, id interface{}) error {
	return fmt.Errorf("%w: %s %v", ErrNotFound, entity, id)
}

// Conflictf builds a Conflict error with a human-readable reason
func Conflictf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// RateLimitError is returned when too many failed attempts were made
type RateLimitError struct {
	Message    string
	RetryAfter time.Time
	Type       string // "ip" or "organization"
}

func (e *RateLimitError) Error() string {
	return e.Message
}

// Is makes errors.Is(err, ErrRateLimited) true for RateLimitError
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

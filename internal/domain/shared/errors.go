// Package shared contains common domain types, errors, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// ErrNotFound - a required profile, user or item does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrValidation - out-of-range trait score, confidence outside [0,1],
	// malformed response value and similar input problems.
	ErrValidation = errors.New("validation error")

	// ErrConflict - duplicate active recommendation or a transition that the
	// current state does not allow.
	ErrConflict = errors.New("conflict")

	// ErrStorageUnavailable - the storage collaborator failed. Never retried
	// inside the engine.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "profile", "insight", "recommendation"
	Op      string // Operation that failed, e.g., "Upsert", "Respond"
	Kind    error  // Base error type for errors.Is() checking
	Field   string // Offending field for validation errors (optional)
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, msg, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, msg)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// NewValidationError creates a validation error naming the offending field.
func NewValidationError(domain, op, field, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    ErrValidation,
		Field:   field,
		Message: message,
	}
}

// StorageError wraps a collaborator failure as ErrStorageUnavailable.
func StorageError(domain, op string, err error) error {
	if err == nil {
		return nil
	}
	return WrapError(domain, op, ErrStorageUnavailable, "storage request failed", err)
}

// ValidationField returns the offending field of a validation error, if any.
func ValidationField(err error) string {
	var de *DomainError
	if errors.As(err, &de) && errors.Is(de.Kind, ErrValidation) {
		return de.Field
	}
	return ""
}

// Profile domain errors
var (
	ErrProfileNotFound = NewDomainError("profile", "Get", ErrNotFound, "trait profile not found")
)

// Insight domain errors
var (
	ErrInsightNotFound = NewDomainError("insight", "Find", ErrNotFound, "insight not found")
)

// Recommendation domain errors
var (
	ErrRecommendationNotFound = NewDomainError("recommendation", "Find", ErrNotFound, "recommendation not found")
	ErrDuplicateActive        = NewDomainError("recommendation", "Insert", ErrConflict, "active recommendation already exists")
)

// Lifecycle errors
var (
	ErrNotPresented = NewDomainError("lifecycle", "Respond", ErrConflict, "item was never presented")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsConflict checks if the error is a conflict error.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsStorageUnavailable checks if the error came from the storage boundary.
func IsStorageUnavailable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}

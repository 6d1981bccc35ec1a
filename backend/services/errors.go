package services

import (
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound      ErrorType = "not_found"
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeProvider      ErrorType = "provider"
	ErrorTypeSafetyBlocked ErrorType = "safety_blocked"
	ErrorTypeTruncated     ErrorType = "truncated"
	ErrorTypeInternal      ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables

var (
	// Not Found Errors
	ErrTemplateNotFound = NewDomainError(ErrorTypeNotFound, "beat template not found", nil)
	ErrRecordNotFound   = NewDomainError(ErrorTypeNotFound, "analysis record not found", nil)

	// Validation Errors
	ErrInvalidInput   = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrInvalidModel   = NewDomainError(ErrorTypeValidation, "invalid model specified", nil)
	ErrEmptyManuscript = NewDomainError(ErrorTypeValidation, "manuscript cannot be empty", nil)

	// Provider Errors
	ErrProviderFailure  = NewDomainError(ErrorTypeProvider, "provider request failed", nil)
	ErrSafetyBlocked    = NewDomainError(ErrorTypeSafetyBlocked, "analysis blocked by provider safety filter", nil)
	ErrResponseTruncated = NewDomainError(ErrorTypeTruncated, "analysis truncated by token limit", nil)

	// Internal Errors
	ErrInternal = NewDomainError(ErrorTypeInternal, "internal error", nil)
)

// Error constructors used by the analysis pipeline

// NewValidationError creates a validation error with details
func NewValidationError(message string, details map[string]interface{}) *DomainError {
	return &DomainError{
		Type:    ErrorTypeValidation,
		Message: message,
		Details: details,
	}
}

// NewProviderFailureError creates a provider error with details
func NewProviderFailureError(message string, err error, details map[string]interface{}) *DomainError {
	return &DomainError{
		Type:    ErrorTypeProvider,
		Message: message,
		Err:     err,
		Details: details,
	}
}

// NewSafetyBlockedError creates a safety-block error with details
func NewSafetyBlockedError(message string, details map[string]interface{}) *DomainError {
	return &DomainError{
		Type:    ErrorTypeSafetyBlocked,
		Message: message,
		Details: details,
	}
}

// NewInternalError creates an internal error with details
func NewInternalError(message string, details map[string]interface{}) *DomainError {
	return &DomainError{
		Type:    ErrorTypeInternal,
		Message: message,
		Details: details,
	}
}

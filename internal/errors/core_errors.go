package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies the failures the core can report.
type ErrorCategory string

const (
	// Hard-fatal at construction time only.
	ErrorCategoryConfiguration ErrorCategory = "CONFIG"

	// Terminal for the current iteration, loop continues on next tick.
	ErrorCategoryDataQuality ErrorCategory = "DATA_QUALITY"
	ErrorCategoryBreakerOpen ErrorCategory = "BREAKER_OPEN"
	ErrorCategoryRiskBlocked ErrorCategory = "RISK_BLOCKED"

	// Rejected at the boundary of the detecting component.
	ErrorCategoryInvariant ErrorCategory = "INVARIANT"

	// Failures of wrapped external operations.
	ErrorCategoryExternal ErrorCategory = "EXTERNAL"
)

// CoreError is a categorized error with component context, so the
// dashboard and notification layers can render severity without
// re-deriving it from the message text.
type CoreError struct {
	Category   ErrorCategory
	Component  string
	Operation  string
	Message    string
	Underlying error
	Context    map[string]interface{}
}

func (e *CoreError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Category, e.Component, e.Operation, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Category, e.Component, e.Operation, e.Message)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *CoreError) Unwrap() error {
	return e.Underlying
}

// IsExpected reports whether this error is intentional backpressure
// (breaker open, risk halt) rather than a fault.
func (e *CoreError) IsExpected() bool {
	return e.Category == ErrorCategoryBreakerOpen || e.Category == ErrorCategoryRiskBlocked
}

// IsFatal reports whether this error should stop construction/startup.
func (e *CoreError) IsFatal() bool {
	return e.Category == ErrorCategoryConfiguration
}

// New creates a categorized core error.
func New(category ErrorCategory, component, operation, message string) *CoreError {
	return &CoreError{
		Category:  category,
		Component: component,
		Operation: operation,
		Message:   message,
		Context:   make(map[string]interface{}),
	}
}

// Newf creates a categorized core error with a formatted message.
func Newf(category ErrorCategory, component, operation, format string, args ...interface{}) *CoreError {
	return New(category, component, operation, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with core error context.
func Wrap(err error, category ErrorCategory, component, operation string) *CoreError {
	if err == nil {
		return nil
	}
	return &CoreError{
		Category:   category,
		Component:  component,
		Operation:  operation,
		Message:    "operation failed",
		Underlying: err,
		Context:    make(map[string]interface{}),
	}
}

// WithContext attaches context information to the error.
func (e *CoreError) WithContext(key string, value interface{}) *CoreError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func hasCategory(err error, category ErrorCategory) bool {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Category == category
	}
	return false
}

// IsBreakerOpen reports whether err signals a short-circuited call on an
// open resilience breaker.
func IsBreakerOpen(err error) bool {
	return hasCategory(err, ErrorCategoryBreakerOpen)
}

// IsRiskBlocked reports whether err signals an intentional trading halt.
func IsRiskBlocked(err error) bool {
	return hasCategory(err, ErrorCategoryRiskBlocked)
}

// IsDataQuality reports whether err signals a rejected market batch.
func IsDataQuality(err error) bool {
	return hasCategory(err, ErrorCategoryDataQuality)
}

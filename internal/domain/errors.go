package domain

import (
	"fmt"
	"time"
)

// AuditError represents a setup failure that prevents a batch from running.
type AuditError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id,omitempty"`
	Err       error     `json:"-"`
}

// Error implements the error interface
func (e *AuditError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause.
func (e *AuditError) Unwrap() error {
	return e.Err
}

// Error codes for setup failures
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeIntegrity     = "INTEGRITY_ERROR"
	ErrCodeConfiguration = "CONFIGURATION_ERROR"
	ErrCodeRuleSource    = "RULE_SOURCE_ERROR"
	ErrCodeInternal      = "INTERNAL_ERROR"
)

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// DuplicateRuleIDError reports two rules sharing one rule_id.
type DuplicateRuleIDError struct {
	RuleID      string `json:"rule_id"`
	FirstIndex  int    `json:"first_index"`
	SecondIndex int    `json:"second_index"`
}

// Error implements the error interface
func (e *DuplicateRuleIDError) Error() string {
	return fmt.Sprintf("duplicate rule_id %q at positions %d and %d", e.RuleID, e.FirstIndex, e.SecondIndex)
}

// Is makes errors.Is(err, ErrDuplicateRuleID) hold.
func (e *DuplicateRuleIDError) Is(target error) bool {
	return target == ErrDuplicateRuleID
}

// NewAuditError creates a new AuditError with timestamp
func NewAuditError(code, message string, cause error, runID string) *AuditError {
	details := ""
	if cause != nil {
		details = cause.Error()
	}
	return &AuditError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RunID:     runID,
		Err:       cause,
	}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

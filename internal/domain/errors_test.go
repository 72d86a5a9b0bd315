package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestAuditError(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		message string
		cause   error
		runID   string
	}{
		{
			name:    "Integrity error",
			code:    ErrCodeIntegrity,
			message: "Rule index construction failed",
			cause:   &DuplicateRuleIDError{RuleID: "R1", FirstIndex: 0, SecondIndex: 3},
			runID:   "run-123",
		},
		{
			name:    "Configuration error",
			code:    ErrCodeConfiguration,
			message: "Invalid alias dictionary",
			cause:   ErrInvalidAliasDictionary,
			runID:   "run-456",
		},
		{
			name:    "No cause",
			code:    ErrCodeInvalidInput,
			message: "Empty batch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewAuditError(tt.code, tt.message, tt.cause, tt.runID)

			if err.Code != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, err.Code)
			}
			if err.RunID != tt.runID {
				t.Errorf("Expected runID %s, got %s", tt.runID, err.RunID)
			}
			if time.Since(err.Timestamp) > time.Minute {
				t.Errorf("Timestamp should be recent, got %v", err.Timestamp)
			}

			expectedError := tt.code + ": " + tt.message
			if err.Error() != expectedError {
				t.Errorf("Expected error string %s, got %s", expectedError, err.Error())
			}

			if tt.cause == nil {
				if err.Details != "" {
					t.Errorf("Expected empty details, got %s", err.Details)
				}
				return
			}
			if err.Details != tt.cause.Error() {
				t.Errorf("Expected details %s, got %s", tt.cause.Error(), err.Details)
			}
			if !errors.Is(err, tt.cause) {
				t.Errorf("Expected AuditError to wrap %v", tt.cause)
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		message string
		value   interface{}
	}{
		{
			name:    "String validation error",
			field:   "rule_id",
			message: "rule_id cannot be empty",
			value:   "",
		},
		{
			name:    "Float validation error",
			field:   "audit.match_threshold",
			message: "must be within [0,1]",
			value:   1.7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewValidationError(tt.field, tt.message, tt.value)

			if err.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, err.Field)
			}
			if err.Value != tt.value {
				t.Errorf("Expected value %v, got %v", tt.value, err.Value)
			}

			expectedError := "validation error for field '" + tt.field + "': " + tt.message
			if err.Error() != expectedError {
				t.Errorf("Expected error string %s, got %s", expectedError, err.Error())
			}
		})
	}
}

func TestDuplicateRuleIDError(t *testing.T) {
	err := fmt.Errorf("build index: %w", &DuplicateRuleIDError{RuleID: "CG-01", FirstIndex: 1, SecondIndex: 4})

	if !errors.Is(err, ErrDuplicateRuleID) {
		t.Error("Expected errors.Is to match ErrDuplicateRuleID")
	}

	var dup *DuplicateRuleIDError
	if !errors.As(err, &dup) {
		t.Fatal("Expected errors.As to find DuplicateRuleIDError")
	}
	if dup.RuleID != "CG-01" || dup.FirstIndex != 1 || dup.SecondIndex != 4 {
		t.Errorf("unexpected error fields: %+v", dup)
	}
	if dup.Error() != `duplicate rule_id "CG-01" at positions 1 and 4` {
		t.Errorf("unexpected message: %s", dup.Error())
	}
}

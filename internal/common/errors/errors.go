// Package errors provides standardized error handling for the chat pipeline
// and the dashboard endpoints.
package errors

import (
	"fmt"
	"net/http"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeMissingQuestion      ErrorCode = "MISSING_QUESTION"
	ErrCodeMissingField         ErrorCode = "MISSING_FIELD"
	ErrCodeLLMNotConfigured     ErrorCode = "LLM_NOT_CONFIGURED"
	ErrCodeLLMCallFailed        ErrorCode = "LLM_CALL_FAILED"
	ErrCodePlanParseFailed      ErrorCode = "PLAN_PARSE_FAILED"
	ErrCodeStoreExecutionFailed ErrorCode = "STORE_EXECUTION_FAILED"
	ErrCodeResultTooLarge       ErrorCode = "RESULT_TOO_LARGE"
	ErrCodeInternal             ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// Error Constructors
// ==========================

// NewMissingQuestionError rejects an empty or absent question before any
// downstream call is made.
func NewMissingQuestionError() *StandardError {
	return &StandardError{
		Code:      ErrCodeMissingQuestion,
		Message:   "Missing question",
		Details:   "request body must carry a non-empty question",
		Timestamp: time.Now().UTC(),
	}
}

// NewMissingFieldError rejects a metric request without the required field name.
func NewMissingFieldError(param string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMissingField,
		Message:   fmt.Sprintf("Missing %s parameter", param),
		Details:   fmt.Sprintf("query parameter %q is required", param),
		Timestamp: time.Now().UTC(),
	}
}

// NewLLMNotConfiguredError signals an absent completion-service credential.
func NewLLMNotConfiguredError() *StandardError {
	return &StandardError{
		Code:      ErrCodeLLMNotConfigured,
		Message:   "Completion service is not configured",
		Details:   "LLM API key is not set",
		Timestamp: time.Now().UTC(),
	}
}

// NewLLMCallFailedError wraps a network/auth/rate-limit failure on either
// completion call.
func NewLLMCallFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeLLMCallFailed,
		Message:   "AI API error",
		Details:   err.Error(),
		Timestamp: time.Now().UTC(),
	}
}

// NewPlanParseFailedError wraps a parser diagnostic for model output that
// could not be turned into a query plan.
func NewPlanParseFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePlanParseFailed,
		Message:   "Failed to parse aggregation pipeline from LLM response",
		Details:   err.Error(),
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreExecutionFailedError wraps a store-level rejection of the plan.
func NewStoreExecutionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreExecutionFailed,
		Message:   "Database error",
		Details:   err.Error(),
		Timestamp: time.Now().UTC(),
	}
}

// NewResultTooLargeError rejects a result set too big to serialize into the
// summarization call.
func NewResultTooLargeError(count, limit int) *StandardError {
	return &StandardError{
		Code:      ErrCodeResultTooLarge,
		Message:   "Result set too large to summarize",
		Details:   fmt.Sprintf("result has %d records, limit is %d", count, limit),
		Timestamp: time.Now().UTC(),
	}
}

// NewInternalError wraps any unclassified failure.
func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Server error",
		Details:   err.Error(),
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// Utility Functions
// ==========================

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr
	}
	return NewInternalError(err)
}

// HTTPStatus maps an error code to the response status of the API boundary.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeMissingQuestion, ErrCodeMissingField, ErrCodePlanParseFailed:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

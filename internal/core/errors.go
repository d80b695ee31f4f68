package core

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors for handling decisions.
type ErrorCategory string

const (
	ErrCatValidation ErrorCategory = "validation" // Invalid input
	ErrCatProtocol   ErrorCategory = "protocol"   // Handoff contract violation
	ErrCatBudget     ErrorCategory = "budget"     // Cost budget exceeded
	ErrCatExecution  ErrorCategory = "execution"  // Runtime failure
	ErrCatTimeout    ErrorCategory = "timeout"    // Operation timed out
	ErrCatRateLimit  ErrorCategory = "rate_limit" // Provider rate limited
	ErrCatState      ErrorCategory = "state"      // State corruption/conflict
	ErrCatNetwork    ErrorCategory = "network"    // Network connectivity
	ErrCatNotFound   ErrorCategory = "not_found"  // Resource not found
	ErrCatInternal   ErrorCategory = "internal"   // Unexpected internal error
)

// DomainError represents a structured error from the domain layer.
type DomainError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Retryable bool
	Cause     error
	Details   map[string]interface{}
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches a target.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}

// WithCause wraps an underlying error.
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// WithDetail adds contextual information.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ErrValidation creates a validation error.
func ErrValidation(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatValidation,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrProtocol creates a protocol violation error. Protocol violations are
// fatal to a run: retrying a malformed handoff cannot fix it.
func ErrProtocol(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatProtocol,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrExecution creates an execution error.
func ErrExecution(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatExecution,
		Code:      code,
		Message:   message,
		Retryable: true,
	}
}

// ErrTimeout creates a timeout error.
func ErrTimeout(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatTimeout,
		Code:      "TIMEOUT",
		Message:   message,
		Retryable: true,
	}
}

// ErrNetwork creates a network error.
func ErrNetwork(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatNetwork,
		Code:      "NETWORK",
		Message:   message,
		Retryable: true,
	}
}

// ErrRateLimit creates a rate limit error.
func ErrRateLimit(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatRateLimit,
		Code:      "RATE_LIMITED",
		Message:   message,
		Retryable: true,
	}
}

// ErrState creates a state error.
func ErrState(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatState,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrNotFound creates a not found error.
func ErrNotFound(resource, id string) *DomainError {
	return &DomainError{
		Category:  ErrCatNotFound,
		Code:      "NOT_FOUND",
		Message:   fmt.Sprintf("%s not found: %s", resource, id),
		Retryable: false,
	}
}

// ErrBudgetExceeded creates an error when the run budget is exhausted.
func ErrBudgetExceeded(incurred, limit float64) *DomainError {
	return &DomainError{
		Category:  ErrCatBudget,
		Code:      CodeBudgetExceeded,
		Message:   fmt.Sprintf("run cost $%.4f reached limit $%.2f", incurred, limit),
		Retryable: false,
		Details: map[string]interface{}{
			"cost_incurred": incurred,
			"budget_limit":  limit,
		},
	}
}

// ErrInvalidHandoff creates a protocol error for an illegal transition.
func ErrInvalidHandoff(from, to AgentID) *DomainError {
	return ErrProtocol(CodeInvalidHandoff,
		fmt.Sprintf("handoff %s -> %s is not a legal transition", from, to)).
		WithDetail("from", string(from)).
		WithDetail("to", string(to))
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Retryable
	}
	return false
}

// GetCategory extracts the error category.
func GetCategory(err error) ErrorCategory {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Category
	}
	return ErrCatInternal
}

// IsCategory checks if an error belongs to a category.
func IsCategory(err error, cat ErrorCategory) bool {
	return GetCategory(err) == cat
}

// Predefined error codes
const (
	CodeUnknownAgent      = "UNKNOWN_AGENT"
	CodeInvalidHandoff    = "INVALID_HANDOFF"
	CodeHandoffLoop       = "HANDOFF_LOOP"
	CodeBudgetExceeded    = "BUDGET_EXCEEDED"
	CodeMaxIterations     = "MAX_ITERATIONS"
	CodeMalformedResponse = "MALFORMED_RESPONSE"
	CodeAgentFailed       = "AGENT_FAILED"
	CodeAgentUnavailable  = "AGENT_UNAVAILABLE"
	CodeRunNotFound       = "RUN_NOT_FOUND"
	CodeInvalidConfig     = "INVALID_CONFIG"
	CodeInvalidRequest    = "INVALID_REQUEST"
)

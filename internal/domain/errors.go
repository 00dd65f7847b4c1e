package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Error codes surfaced to HTTP, WebSocket and MCP callers.
const (
	CodeSchema         = "SCHEMA_ERROR"
	CodeRange          = "RANGE_ERROR"
	CodeInference      = "INFERENCE_ERROR"
	CodeUnknownDomain  = "UNKNOWN_DOMAIN"
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeNotFound       = "NOT_FOUND"
	CodeRateLimit      = "RATE_LIMIT_EXCEEDED"
	CodeTimeout        = "EVALUATION_TIMEOUT"
	CodeInternal       = "INTERNAL_SERVER_ERROR"
)

// SchemaError reports a missing, unexpected or malformed input field.
type SchemaError struct {
	Domain  Domain `json:"domain"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error for %s field '%s': %s", e.Domain, e.Field, e.Message)
}

// RangeError reports a value outside the field's declared inclusive bounds.
type RangeError struct {
	Domain Domain  `json:"domain"`
	Field  string  `json:"field"`
	Value  float64 `json:"value"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Error implements the error interface
func (e *RangeError) Error() string {
	return fmt.Sprintf("range error for %s field '%s': %g is outside [%g, %g]", e.Domain, e.Field, e.Value, e.Min, e.Max)
}

// InferenceError wraps any fault raised while invoking a classifier. It is
// terminal for the evaluation that produced it and is never retried.
type InferenceError struct {
	Domain Domain `json:"domain"`
	Model  string `json:"model,omitempty"`
	Cause  error  `json:"-"`
}

// Error implements the error interface
func (e *InferenceError) Error() string {
	model := e.Model
	if model == "" {
		model = "<none>"
	}
	return fmt.Sprintf("inference error for %s (model %s): %v", e.Domain, model, e.Cause)
}

// Unwrap returns the underlying fault.
func (e *InferenceError) Unwrap() error {
	return e.Cause
}

// NewSchemaError creates a new SchemaError
func NewSchemaError(d Domain, field, message string) *SchemaError {
	return &SchemaError{Domain: d, Field: field, Message: message}
}

// NewRangeError creates a new RangeError
func NewRangeError(d Domain, field string, value, min, max float64) *RangeError {
	return &RangeError{Domain: d, Field: field, Value: value, Min: min, Max: max}
}

// NewInferenceError creates a new InferenceError
func NewInferenceError(d Domain, model string, cause error) *InferenceError {
	return &InferenceError{Domain: d, Model: model, Cause: cause}
}

// ErrorResponse is the wire representation of a failed request.
type ErrorResponse struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Field     string    `json:"field,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// Error implements the error interface
func (e *ErrorResponse) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewErrorResponse builds an ErrorResponse for err, deriving the code and the
// offending field from the error chain.
func NewErrorResponse(err error, requestID string) *ErrorResponse {
	resp := &ErrorResponse{
		Code:      CodeFor(err),
		Message:   err.Error(),
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}

	var schemaErr *SchemaError
	var rangeErr *RangeError
	switch {
	case errors.As(err, &schemaErr):
		resp.Field = schemaErr.Field
	case errors.As(err, &rangeErr):
		resp.Field = rangeErr.Field
	}
	return resp
}

// CodeFor maps an error to its wire code.
func CodeFor(err error) string {
	var schemaErr *SchemaError
	var rangeErr *RangeError
	var inferenceErr *InferenceError
	var resp *ErrorResponse

	switch {
	case err == nil:
		return ""
	case errors.As(err, &resp):
		return resp.Code
	case errors.Is(err, ErrEvaluationTimeout):
		return CodeTimeout
	case errors.As(err, &schemaErr):
		return CodeSchema
	case errors.As(err, &rangeErr):
		return CodeRange
	case errors.As(err, &inferenceErr):
		return CodeInference
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.Is(err, ErrUnknownDomain):
		return CodeUnknownDomain
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	default:
		return CodeInternal
	}
}

// IsEvaluationError reports whether err is one of the recoverable
// per-evaluation failures.
func IsEvaluationError(err error) bool {
	switch CodeFor(err) {
	case CodeSchema, CodeRange, CodeInference, CodeUnknownDomain, CodeTimeout:
		return true
	default:
		return false
	}
}

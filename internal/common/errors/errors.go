// Package errors provides the failure taxonomy shared by every pipeline stage.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeExtractionFailed     ErrorCode = "EXTRACTION_FAILED"
	ErrCodeValidationFailed     ErrorCode = "VALIDATION_FAILED"
	ErrCodeGeocodeFailed        ErrorCode = "GEOCODE_FAILED"
	ErrCodeUnknownStage         ErrorCode = "UNKNOWN_STAGE"
	ErrCodeSchedulingInfeasible ErrorCode = "SCHEDULING_INFEASIBLE"

	ErrCodeInferenceTimeout ErrorCode = "INFERENCE_TIMEOUT"
	ErrCodeInferenceFailed  ErrorCode = "INFERENCE_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// Sentinels raised by the inference backend client.
var (
	ErrInferenceTimeout = stderrors.New("INFERENCE_TIMEOUT")
	ErrInferenceFailed  = stderrors.New("INFERENCE_FAILED")
)

// StandardError is the normalized, loggable form of any stage failure.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Stage     string                 `json:"stage,omitempty"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("StandardError[%s/%s]: %s", e.Stage, e.Code, e.Message)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Taxonomy
// ==========================

// ExtractionError means no well-formed structured payload could be recovered
// from the backend text.
type ExtractionError struct {
	Stage   string
	Reason  string
	RawText string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s: extraction failed: %s", e.Stage, e.Reason)
}

// FieldProblem is one schema or invariant violation.
type FieldProblem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError means the payload parsed but broke the schema or a model
// invariant.
type ValidationError struct {
	Stage    string
	Problems []FieldProblem
	RawText  string
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = fmt.Sprintf("%s: %s", p.Field, p.Message)
	}
	return fmt.Sprintf("%s: validation failed: %s", e.Stage, strings.Join(msgs, "; "))
}

// NewValidationError builds a single-problem ValidationError.
func NewValidationError(stage, field, message, raw string) *ValidationError {
	return &ValidationError{
		Stage:    stage,
		Problems: []FieldProblem{{Field: field, Message: message}},
		RawText:  raw,
	}
}

// GeocodeError reports an address that could not be resolved.
type GeocodeError struct {
	Address string
	Cause   error
}

func (e *GeocodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("geocode %q: %v", e.Address, e.Cause)
	}
	return fmt.Sprintf("geocode %q: address unresolvable", e.Address)
}

func (e *GeocodeError) Unwrap() error { return e.Cause }

// UnknownStageError reports a dispatch to a stage id nobody registered.
type UnknownStageError struct {
	ReceiverID string
}

func (e *UnknownStageError) Error() string {
	return fmt.Sprintf("unknown stage %q", e.ReceiverID)
}

// SchedulingInfeasible is a report, not a failure: the scheduler returns it
// for inspection when no candidate could be placed.
type SchedulingInfeasible struct {
	Unscheduled []string
}

func (e *SchedulingInfeasible) Error() string {
	return fmt.Sprintf("no schedulable candidates (%d unscheduled)", len(e.Unscheduled))
}

// ==========================
// 3. Normalization
// ==========================

// Classify maps any error to a StandardError for logs and metrics.
func Classify(stage string, err error) *StandardError {
	if err == nil {
		return nil
	}

	var std *StandardError
	if stderrors.As(err, &std) {
		return std
	}

	out := &StandardError{
		Code:      ErrCodeInternal,
		Stage:     stage,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Timestamp: time.Now().UTC(),
	}

	var (
		extErr     *ExtractionError
		valErr     *ValidationError
		geoErr     *GeocodeError
		unknownErr *UnknownStageError
		infErr     *SchedulingInfeasible
	)
	switch {
	case stderrors.As(err, &unknownErr):
		out.Code = ErrCodeUnknownStage
		out.Message = "Dispatch to unknown stage"
		out.Metadata = map[string]interface{}{"receiverId": unknownErr.ReceiverID}
	case stderrors.As(err, &geoErr):
		out.Code = ErrCodeGeocodeFailed
		out.Message = "Address could not be geocoded"
		out.Metadata = map[string]interface{}{"address": geoErr.Address}
	case stderrors.As(err, &extErr):
		out.Code = ErrCodeExtractionFailed
		out.Message = "No structured payload in backend output"
		out.Metadata = map[string]interface{}{"rawText": extErr.RawText}
	case stderrors.As(err, &valErr):
		out.Code = ErrCodeValidationFailed
		out.Message = "Backend payload failed validation"
		out.Metadata = map[string]interface{}{"rawText": valErr.RawText}
	case stderrors.As(err, &infErr):
		out.Code = ErrCodeSchedulingInfeasible
		out.Message = "No schedulable candidates"
	case stderrors.Is(err, ErrInferenceTimeout):
		out.Code = ErrCodeInferenceTimeout
		out.Message = "Inference backend timeout"
		out.Retryable = true
	case stderrors.Is(err, ErrInferenceFailed):
		out.Code = ErrCodeInferenceFailed
		out.Message = "Inference backend error"
		out.Retryable = true
	}
	return out
}

// CodeOf is shorthand for Classify(...).Code, returning "" for nil.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	return Classify("", err).Code
}

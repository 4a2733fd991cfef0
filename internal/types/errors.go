package types

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Error code constants. Pipeline stages and handlers use these instead of
// hardcoded strings.
const (
	// Event pipeline
	ErrCodeEventParse       ErrorCode = "event_parse_failed"
	ErrCodeEventUnknownType ErrorCode = "event_unknown_type"

	// Validation (400)
	ErrCodeValidationEvent        ErrorCode = "validation_event_invalid"
	ErrCodeValidationInvalidQuery ErrorCode = "validation_invalid_query"
	ErrCodeValidationScenario     ErrorCode = "validation_unknown_scenario"

	// Not Found (404)
	ErrCodeNotFoundMessage ErrorCode = "not_found_message"
	ErrCodeNotFoundRoute   ErrorCode = "not_found_route"

	// Conflict (409)
	ErrCodeConflictDuplicateEvent ErrorCode = "conflict_duplicate_event"

	// Internal/Upstream (500/502/503)
	ErrCodeInternalStorage     ErrorCode = "internal_storage_error"
	ErrCodeInternalUnexpected  ErrorCode = "internal_unexpected_error"
	ErrCodeUpstreamQueue       ErrorCode = "upstream_queue_unavailable"
	ErrCodeUnavailableDisabled ErrorCode = "unavailable_feature_disabled"
)

// ErrDuplicateEvent is returned by event stores when an event with the same
// source:id key has already been recorded. It is a soft failure: the pipeline
// treats it as a successful no-op.
var ErrDuplicateEvent = &AppError{
	Code:    ErrCodeConflictDuplicateEvent,
	Message: "event has already been processed",
}

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Returns 500 for unrecognized error codes.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"), strings.HasPrefix(s, "event_"):
		return http.StatusBadRequest // 400
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound // 404
	case strings.HasPrefix(s, "conflict_"):
		return http.StatusConflict // 409
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway // 502
	case strings.HasPrefix(s, "unavailable_"):
		return http.StatusServiceUnavailable // 503
	case strings.HasPrefix(s, "internal_"):
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// AppError is the standard application error type. Pipeline stages, stores
// and handlers express their failures as AppError so that the consumer can log
// them consistently and the API can map them to HTTP responses.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an AppError with the same code. This lets
// callers match sentinel errors such as ErrDuplicateEvent through wrapping.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error. This is the standard constructor for domain errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewParseError reports a queue message body that could not be decoded into
// a canonical event.
func NewParseError(message string, err error) *AppError {
	return NewAppError(ErrCodeEventParse, message, err)
}

// NewUnknownEventTypeError reports an event type that matches no registered
// category.
func NewUnknownEventTypeError(eventType string) *AppError {
	return NewAppError(ErrCodeEventUnknownType, "Unknown event type: "+eventType, nil).
		WithDetails(map[string]any{"type": eventType})
}

// NewValidationError reports an event that failed schema validation. The
// message combines every violated rule.
func NewValidationError(message string, violations []string) *AppError {
	return NewAppError(ErrCodeValidationEvent, "Event is invalid, "+message, nil).
		WithDetails(map[string]any{"violations": violations})
}

// NewStorageError reports a persistence failure.
func NewStorageError(message string, err error) *AppError {
	return NewAppError(ErrCodeInternalStorage, message, err)
}

// CodeOf returns the ErrorCode carried by err, or an empty code when err is
// not (and does not wrap) an AppError.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

package domain

import (
	"errors"
	"fmt"
)

// Application error codes
const (
	EINVALID      = "invalid"      // Invalid input or validation failure
	EUNAUTHORIZED = "unauthorized" // Authentication required
	EFORBIDDEN    = "forbidden"    // Permission denied
	ENOTFOUND     = "not_found"    // Resource not found
	ECONFLICT     = "conflict"     // Resource conflict (e.g., duplicate)
	ERATELIMIT    = "rate_limit"   // Rate limit exceeded
	EINTERNAL     = "internal"     // Internal server error
	EUNAVAILABLE  = "unavailable"  // Upstream dependency failed
)

// Machine-readable messages returned to API clients.
const (
	MsgNotAuthenticated = "not_authenticated"
	MsgMissingTitle     = "missing_title"
	MsgMissingName      = "missing_name"
	MsgMissingQuestion  = "missing_question"
	MsgInvalidLanguage  = "invalid_language"
	MsgTopicNotFound    = "topic_not_found"
	MsgDBNotConfigured  = "db_not_configured"
	MsgInternal         = "internal_error"
	MsgValidationFailed = "validation_failed"
)

// ErrQuotaUnavailable is returned when no active cycle can be resolved
// because the service runs without a database.
var ErrQuotaUnavailable = &Error{
	Code:    EINTERNAL,
	Op:      "plan.ensure_cycle",
	Message: MsgDBNotConfigured,
}

// Error is the application error. Code picks the HTTP status, Message is
// what the client sees, and Err stays in the logs.
type Error struct {
	Code    string
	Op      string // e.g. "topic.create"
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode returns the code of the root error, or EINTERNAL if none.
// Rejections report the code their reason maps to.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var r *Rejection
	if errors.As(err, &r) {
		return r.Code()
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return EINVALID
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage returns the client-facing message of the error.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var r *Rejection
	if errors.As(err, &r) {
		return string(r.Reason)
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return MsgValidationFailed
	}
	var e *Error
	if errors.As(err, &e) {
		// Messages of wrapped internal failures stay in the logs
		if (e.Code == EINTERNAL || e.Code == EUNAVAILABLE) && e.Err != nil {
			return MsgInternal
		}
		return e.Message
	}
	return MsgInternal
}

// ErrorOp returns the operation of the root error, if any.
func ErrorOp(err error) string {
	if err == nil {
		return ""
	}
	var r *Rejection
	if errors.As(err, &r) {
		return r.Op
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}

func newError(code, op, message string, err error) *Error {
	return &Error{Code: code, Op: op, Message: message, Err: err}
}

func NotFound(op, message string) *Error  { return newError(ENOTFOUND, op, message, nil) }
func Invalid(op, message string) *Error   { return newError(EINVALID, op, message, nil) }
func Unauthorized(op string) *Error       { return newError(EUNAUTHORIZED, op, MsgNotAuthenticated, nil) }
func Forbidden(op, message string) *Error { return newError(EFORBIDDEN, op, message, nil) }
func RateLimit(op string) *Error          { return newError(ERATELIMIT, op, "rate_limited", nil) }

// Internal hides err from clients behind message.
func Internal(err error, op, message string) *Error {
	return newError(EINTERNAL, op, message, err)
}

// Unavailable wraps a failure of an upstream dependency such as the AI provider.
func Unavailable(err error, op, message string) *Error {
	return newError(EUNAVAILABLE, op, message, err)
}

// ValidationError represents field-level validation errors.
type ValidationError struct {
	Op     string
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: validation failed", e.Op)
}

func NewValidationError(op, field, message string) *ValidationError {
	return &ValidationError{Op: op, Fields: map[string]string{field: message}}
}

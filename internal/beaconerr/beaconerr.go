// Package beaconerr implements the single error taxonomy shared by every
// core component. Components never return bare errors across their public
// boundary; they return *Error so callers (including the daemon, which
// must serialize {code, message, details}) can branch on Code.
package beaconerr

import "fmt"

// Code identifies one of the error kinds enumerated in the spec's error
// handling design.
type Code string

const (
	NotInitialized            Code = "not_initialized"
	AlreadyInitialized        Code = "already_initialized"
	MultipleProjects          Code = "multiple_projects"
	ConfigurationError        Code = "configuration_error"
	InvalidIssueFile          Code = "invalid_issue_file"
	InvalidIssueData          Code = "invalid_issue_data"
	NotFound                  Code = "not_found"
	AmbiguousShortID          Code = "ambiguous_short_id"
	CommentAmbiguous           Code = "comment_ambiguous"
	DuplicateTitle            Code = "duplicate_title"
	InvalidTransition         Code = "invalid_transition"
	InvalidParentChild        Code = "invalid_parent_child"
	InvalidDependencyType     Code = "invalid_dependency_type"
	CycleDetected             Code = "cycle_detected"
	IDGenerationFailed        Code = "id_generation_failed"
	ProtocolVersionMismatch   Code = "protocol_version_mismatch"
	ProtocolVersionUnsupported Code = "protocol_version_unsupported"
	InvalidRequest            Code = "invalid_request"
	UnknownAction             Code = "unknown_action"
	IOError                   Code = "io_error"
)

// Error is the concrete error type returned by every core component.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	Cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an Error with no details and no wrapped cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an underlying error under the given code.
func Wrap(code Code, cause error) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Code: code, Message: cause.Error(), Cause: cause}
}

// WithDetails attaches structured details and returns the same error for chaining.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// Is reports whether err carries the given code, unwrapping as needed.
func Is(err error, code Code) bool {
	var be *Error
	for err != nil {
		if b, ok := err.(*Error); ok {
			be = b
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return be != nil && be.Code == code
}

// CodeOf returns the Code of err if it is (or wraps) a *Error, or "" otherwise.
func CodeOf(err error) Code {
	var be *Error
	if errorsAs(err, &be) {
		return be.Code
	}
	return ""
}

func errorsAs(err error, target **Error) bool {
	for err != nil {
		if b, ok := err.(*Error); ok {
			*target = b
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Package errors provides centralized error definitions and error handling
// utilities for bugrd. It defines domain-specific errors, semantic error
// types, error constructors with context wrapping, and classification
// helpers.
//
// # Error Types
//
// Domain-specific errors represent errors from specific subsystems:
//   - SessionError: errors related to capture session lifecycle
//   - ConsentError: errors related to the user-consent gate
//   - CollectorError: errors related to the diagnostic collector backend
//
// Semantic errors represent common error conditions:
//   - ValidationError: invalid input or state
//   - TimeoutError: operation timed out
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewSessionError("admission rejected", errors.ErrAlreadyActive)
//	err = err.WithSessionID("sess-42")
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrAlreadyActive) { ... }
//
//	var consentErr *errors.ConsentError
//	if errors.As(err, &consentErr) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Admission-time sentinel errors. These are returned synchronously from
// StartCapture and never delivered through the listener.
var (
	// ErrInvalidInput indicates a malformed capture request.
	ErrInvalidInput = New("invalid capture request")
	// ErrAlreadyActive indicates a capture session is already in flight.
	ErrAlreadyActive = New("a capture session is already active")
	// ErrPermissionDenied indicates the requester lacks capture privileges.
	ErrPermissionDenied = New("permission denied")
)

// Session-related sentinel errors
var (
	// ErrSessionTerminal indicates an operation against a session that has
	// already reached a terminal state.
	ErrSessionTerminal = New("session already terminal")
	// ErrStaleHandle indicates a handle that no longer refers to the active
	// session.
	ErrStaleHandle = New("stale session handle")
)

// Consent-related sentinel errors
var (
	// ErrDecided indicates a consent decision was already recorded.
	ErrDecided = New("consent already decided")
	// ErrUserDeniedConsent indicates the user declined to share the capture.
	ErrUserDeniedConsent = New("user denied consent")
	// ErrUserConsentTimedOut indicates no consent decision arrived in time.
	ErrUserConsentTimedOut = New("user consent timed out")
)

// Collector-related sentinel errors
var (
	// ErrCollectorFailed indicates the collector backend reported a failure.
	ErrCollectorFailed = New("collector failed")
	// ErrCollectorNotStarted indicates an operation requiring a started collector.
	ErrCollectorNotStarted = New("collector not started")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrNotFound indicates a resource could not be found.
	ErrNotFound = New("not found")
)

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// BugrdError is the base interface for all bugrd errors. It extends the
// standard error interface with classification methods.
type BugrdError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsUserFacing returns true if the error message is safe to surface to
	// the requesting caller.
	IsUserFacing() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsUserFacing returns whether the error is safe to show the caller.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// SessionError represents errors related to capture session lifecycle.
//
// Example:
//
//	err := errors.NewSessionError("admission rejected", errors.ErrAlreadyActive)
//	err = err.WithSessionID("sess-42")
type SessionError struct {
	baseError
	SessionID string
	State     string
}

// NewSessionError creates a new SessionError.
func NewSessionError(message string, cause error) *SessionError {
	return &SessionError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithSessionID adds a session ID to the error context.
func (e *SessionError) WithSessionID(id string) *SessionError {
	e.SessionID = id
	return e
}

// WithState adds the session state to the error context.
func (e *SessionError) WithState(state string) *SessionError {
	e.State = state
	return e
}

// WithSeverity sets the error severity.
func (e *SessionError) WithSeverity(s Severity) *SessionError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *SessionError) Error() string {
	var parts []string
	if e.SessionID != "" {
		parts = append(parts, fmt.Sprintf("session=%s", e.SessionID))
	}
	if e.State != "" {
		parts = append(parts, fmt.Sprintf("state=%s", e.State))
	}

	prefix := "session error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("session error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *SessionError) Is(target error) bool {
	if _, ok := target.(*SessionError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ConsentError represents errors related to the user-consent gate.
type ConsentError struct {
	baseError
	SessionID string
	Decision  string
}

// NewConsentError creates a new ConsentError.
func NewConsentError(message string, cause error) *ConsentError {
	return &ConsentError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityWarning,
			userFacing: true,
		},
	}
}

// WithSessionID adds a session ID to the error context.
func (e *ConsentError) WithSessionID(id string) *ConsentError {
	e.SessionID = id
	return e
}

// WithDecision adds the recorded consent decision to the error context.
func (e *ConsentError) WithDecision(decision string) *ConsentError {
	e.Decision = decision
	return e
}

// Error returns the formatted error message.
func (e *ConsentError) Error() string {
	var parts []string
	if e.SessionID != "" {
		parts = append(parts, fmt.Sprintf("session=%s", e.SessionID))
	}
	if e.Decision != "" {
		parts = append(parts, fmt.Sprintf("decision=%s", e.Decision))
	}

	prefix := "consent error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("consent error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ConsentError) Is(target error) bool {
	if _, ok := target.(*ConsentError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// CollectorError represents errors from the diagnostic collector backend.
type CollectorError struct {
	baseError
	SessionID string
	Command   string
	ExitCode  int
}

// NewCollectorError creates a new CollectorError.
func NewCollectorError(message string, cause error) *CollectorError {
	return &CollectorError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: false,
		},
		ExitCode: -1, // -1 indicates not set
	}
}

// WithSessionID adds a session ID to the error context.
func (e *CollectorError) WithSessionID(id string) *CollectorError {
	e.SessionID = id
	return e
}

// WithCommand adds the collector command to the error context.
func (e *CollectorError) WithCommand(command string) *CollectorError {
	e.Command = command
	return e
}

// WithExitCode adds the collector exit code to the error context.
func (e *CollectorError) WithExitCode(code int) *CollectorError {
	e.ExitCode = code
	return e
}

// Error returns the formatted error message.
func (e *CollectorError) Error() string {
	var parts []string
	if e.SessionID != "" {
		parts = append(parts, fmt.Sprintf("session=%s", e.SessionID))
	}
	if e.Command != "" {
		parts = append(parts, fmt.Sprintf("command=%s", e.Command))
	}
	if e.ExitCode >= 0 {
		parts = append(parts, fmt.Sprintf("exit_code=%d", e.ExitCode))
	}

	prefix := "collector error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("collector error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *CollectorError) Is(target error) bool {
	if _, ok := target.(*CollectorError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("report sink is required")
//	err = err.WithField("reportSink")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}

	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that timed out.
//
// Example:
//
//	err := errors.NewTimeoutError("waiting for consent decision", 30*time.Second)
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:    operation,
			severity:   SeverityWarning,
			userFacing: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if errors.Is(target, ErrTimeout) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsAdmissionError returns true for errors that are returned synchronously at
// admission time (before any session exists).
func IsAdmissionError(err error) bool {
	return Is(err, ErrInvalidInput) || Is(err, ErrAlreadyActive) || Is(err, ErrPermissionDenied)
}

// IsUserFacing returns true if the error message is safe to surface to the
// requesting caller.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var bugrdErr BugrdError
	if As(err, &bugrdErr) {
		return bugrdErr.IsUserFacing()
	}

	var validation *ValidationError
	var timeout *TimeoutError
	return As(err, &validation) || As(err, &timeout)
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement BugrdError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var bugrdErr BugrdError
	if As(err, &bugrdErr) {
		return bugrdErr.Severity()
	}
	return SeverityError
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

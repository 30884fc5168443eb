package types

import (
	"errors"
	"fmt"
)

// ErrorKind identifies one of the engine's recoverable failure signals.
// These are returned as structured results, never panics; the only fatal
// condition is ErrStorageUnavailable, which aborts the current operation
// without corrupting persisted state.
type ErrorKind string

const (
	ErrPhaseOutOfOrder     ErrorKind = "PhaseOutOfOrder"
	ErrArtifactNotApproved ErrorKind = "ArtifactNotApproved"
	ErrOpenQuestionsRemain ErrorKind = "OpenQuestionsRemain"
	ErrAnalysisNotPassing  ErrorKind = "AnalysisNotPassing"
	ErrStaleRevision       ErrorKind = "StaleRevision"
	ErrCoverageGap         ErrorKind = "CoverageGap"
	ErrDanglingReference   ErrorKind = "DanglingReference"
	ErrDuplicateID         ErrorKind = "DuplicateID"
	ErrCircularDependency  ErrorKind = "CircularDependency"
	ErrFeatureNotFound     ErrorKind = "FeatureNotFound"
	ErrFeatureExists       ErrorKind = "FeatureExists"
	ErrArtifactNotFound    ErrorKind = "ArtifactNotFound"
	ErrLockHeld            ErrorKind = "LockHeld"
	ErrStorageUnavailable  ErrorKind = "StorageUnavailable"
)

// EngineError is the structured failure signal returned by the phase state
// machine, artifact store, and analyzer. Hint is a one-line remediation
// suggestion surfaced to CLI users.
type EngineError struct {
	Kind    ErrorKind
	Message string
	Hint    string
	Err     error
}

// Error implements the error interface
func (e *EngineError) Error() string {
	if e.Message == "" && e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause, if any
func (e *EngineError) Unwrap() error {
	return e.Err
}

// NewError creates an EngineError with a formatted message.
func NewError(kind ErrorKind, format string, args ...interface{}) *EngineError {
	return &EngineError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithHint attaches a remediation hint and returns the error for chaining.
func (e *EngineError) WithHint(format string, args ...interface{}) *EngineError {
	e.Hint = fmt.Sprintf(format, args...)
	return e
}

// StorageError wraps a low-level storage failure as StorageUnavailable.
func StorageError(err error) *EngineError {
	return &EngineError{
		Kind: ErrStorageUnavailable,
		Err:  err,
		Hint: "check that the database file is reachable and writable",
	}
}

// KindOf extracts the ErrorKind from an error chain, or "" if the chain
// contains no EngineError.
func KindOf(err error) ErrorKind {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return ""
}

// IsKind reports whether the error chain contains an EngineError of the
// given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

package testbridge

import (
	"errors"
	"fmt"

	"github.com/editorkit/testbridge/exitcodes"
)

// RuntimeError marks operational failures: bad configuration, an unknown
// runner profile, a spawn error, an unreadable report directory. The CLI
// exits with exitcodes.RuntimeErr for these.
type RuntimeError struct {
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %v", e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// ExitCode returns the process exit code runtime errors map to.
func (e *RuntimeError) ExitCode() int {
	return exitcodes.RuntimeErr
}

// NewRuntimeError wraps err as a RuntimeError.
func NewRuntimeError(err error) *RuntimeError {
	return &RuntimeError{Err: err}
}

// IsRuntimeError reports whether err is or wraps a RuntimeError.
func IsRuntimeError(err error) bool {
	var runtimeErr *RuntimeError
	return err != nil && errors.As(err, &runtimeErr)
}

// TestFailureError marks a run that completed but in which at least one
// test position failed, including positions failed by the no-data policy.
// The CLI exits with exitcodes.TestFailure for these.
type TestFailureError struct {
	Message string
}

func (e *TestFailureError) Error() string {
	return fmt.Sprintf("test failure: %s", e.Message)
}

// ExitCode returns the process exit code test failures map to.
func (e *TestFailureError) ExitCode() int {
	return exitcodes.TestFailure
}

// NewTestFailureError creates a TestFailureError with the given summary.
func NewTestFailureError(message string) *TestFailureError {
	return &TestFailureError{Message: message}
}

// IsTestFailureError reports whether err is or wraps a TestFailureError.
func IsTestFailureError(err error) bool {
	var testErr *TestFailureError
	return err != nil && errors.As(err, &testErr)
}

// Package readiness decides when a spawned test-runner process is safe to
// attach to, either by probing a TCP port or by watching its output for a
// marker line.
package readiness

import (
	"context"
	"time"
)

const (
	// DefaultTimeout bounds a readiness wait overall.
	DefaultTimeout = 30 * time.Second
	// FastTimeout suits runners that come up quickly.
	FastTimeout = 10 * time.Second

	// initialPollInterval is the first backoff step between attempts.
	initialPollInterval = 100 * time.Millisecond
	// maxPollInterval caps the backoff so liveness checks keep interleaving.
	maxPollInterval = 500 * time.Millisecond
)

// Reason explains why a wait ended without readiness.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonTimeout       Reason = "timeout"
	ReasonProcessExited Reason = "processExited"
	ReasonCancelled     Reason = "cancelled"
)

// Result is the outcome of one readiness wait.
type Result struct {
	Ready  bool
	Reason Reason
}

// Detector waits until the supervised process is ready for attachment.
// Implementations observe process liveness concurrently: a process that
// exits before readiness fails the wait immediately rather than letting the
// full timeout elapse. A process that exits after readiness was observed is
// not a failure; short-lived runs are valid.
type Detector interface {
	// WaitReady blocks until readiness, process exit, the configured
	// timeout, or ctx cancellation, whichever comes first.
	WaitReady(ctx context.Context) Result
}

// nextInterval doubles the backoff up to the cap.
func nextInterval(current time.Duration) time.Duration {
	next := current * 2
	if next > maxPollInterval {
		return maxPollInterval
	}
	return next
}

// exited reports whether the process-exit channel has fired.
func exited(ch <-chan struct{}) bool {
	if ch == nil {
		return false
	}
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

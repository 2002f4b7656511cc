package orchestrator

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/editorkit/testbridge/forward"
	"github.com/editorkit/testbridge/readiness"
)

// Handle is the runtime state of one spawned process. It is owned by the
// orchestrator instance that created it; its fields are never mutated from
// outside its methods.
type Handle struct {
	id        string
	pid       int
	startedAt time.Time
	log       log.Logger

	mu       sync.Mutex
	state    State
	reason   TerminationReason
	exitCode *int
	cleaned  bool

	cmd        *exec.Cmd
	cancelProc context.CancelFunc
	exited     chan struct{}

	outputFile *os.File
	outputPath string
	scriptPath string
	forwarder  *forward.Forwarder
}

// ID returns the run-unique handle identifier.
func (h *Handle) ID() string { return h.id }

// PID returns the spawned process ID, 0 if spawning failed.
func (h *Handle) PID() int { return h.pid }

// StartedAt returns when the process was spawned.
func (h *Handle) StartedAt() time.Time { return h.startedAt }

// State returns the current lifecycle state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// TerminationReason returns why the handle terminated, if it has.
func (h *Handle) TerminationReason() TerminationReason {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reason
}

// ExitCode returns the process exit code once it has exited.
func (h *Handle) ExitCode() (int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.exitCode == nil {
		return 0, false
	}
	return *h.exitCode, true
}

// OutputPath is the combined stdout/stderr file the forwarder and the
// log-pattern detector tail. Empty once cleanup removed the file.
func (h *Handle) OutputPath() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.outputPath
}

// Exited is closed when the process has exited.
func (h *Handle) Exited() <-chan struct{} { return h.exited }

// AwaitReady blocks until the configured readiness condition holds. On
// timeout the process is killed as a side effect; on process exit before
// readiness the process is already dead and nothing is killed. Readiness is
// always observed before control returns to a caller that intends to attach
// a debugger.
func (h *Handle) AwaitReady(ctx context.Context, spec ReadinessSpec) readiness.Result {
	if spec.Strategy == ReadinessNone || spec.Strategy == "" {
		h.setState(StateReady)
		return readiness.Result{Ready: true}
	}

	var det readiness.Detector
	switch spec.Strategy {
	case ReadinessPort:
		det = readiness.NewPortDetector(spec.Host, spec.Port, spec.Timeout, h.exited, h.log)
	case ReadinessLogPattern:
		det = readiness.NewLogDetector(h.OutputPath(), spec.Marker, spec.Timeout, h.exited, h.log)
	default:
		h.log.Error("Unknown readiness strategy", "strategy", spec.Strategy)
		return readiness.Result{Reason: readiness.ReasonTimeout}
	}

	res := det.WaitReady(ctx)
	switch {
	case res.Ready:
		h.setState(StateReady)
	case res.Reason == readiness.ReasonProcessExited:
		// Already dead, no kill needed
		h.terminate(TerminationProcessExited)
	case res.Reason == readiness.ReasonCancelled:
		h.Cancel()
	default:
		h.log.Warn("Readiness timed out, killing test runner", "id", h.id, "pid", h.pid)
		h.kill()
		h.terminate(TerminationReadinessTimeout)
	}
	return res
}

// Attach wires the output consumer. Backlogged bytes flush immediately; the
// handle moves to StateStreaming.
func (h *Handle) Attach(w io.Writer) {
	h.forwarder.Attach(w)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == StateReady || h.state == StateAwaitingReadiness {
		h.state = StateStreaming
	}
}

// Wait blocks until the process exits or ctx is done. A ctx expiry cancels
// the run. The returned exit code is -1 when the process never exited
// cleanly.
func (h *Handle) Wait(ctx context.Context) (int, error) {
	if h.cmd == nil {
		return -1, errNotSpawned
	}
	select {
	case <-h.exited:
		if code, ok := h.ExitCode(); ok {
			return code, nil
		}
		return -1, nil
	case <-ctx.Done():
		h.Cancel()
		return -1, ctx.Err()
	}
}

// Cancel kills the process and releases every resource. It is available
// from every non-terminal state and runs exactly once even when racing a
// natural exit.
func (h *Handle) Cancel() {
	h.mu.Lock()
	if h.state == StateTerminated {
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	h.log.Debug("Cancelling test run", "id", h.id, "pid", h.pid)
	h.kill()
	h.terminate(TerminationCancelled)
	h.Cleanup()
}

// Cleanup stops the forwarder and removes temporary files. It is idempotent
// and merge-safe against a concurrent natural-exit callback; best-effort
// removal failures are logged, never escalated.
func (h *Handle) Cleanup() {
	h.mu.Lock()
	if h.cleaned {
		h.mu.Unlock()
		return
	}
	h.cleaned = true
	h.mu.Unlock()

	if h.forwarder != nil {
		h.forwarder.Stop()
	}
	h.removeTempFiles()
}

// reap waits for the process and records its exit.
func (h *Handle) reap() {
	err := h.cmd.Wait()

	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}

	h.mu.Lock()
	h.exitCode = &code
	if h.state == StateStreaming || h.state == StateReady {
		h.state = StateTerminated
		h.reason = TerminationCompleted
	}
	// Snapshot under the lock; a concurrent Cancel may be clearing the
	// field via removeTempFiles.
	outFile := h.outputFile
	h.mu.Unlock()

	if outFile != nil {
		_ = outFile.Sync()
	}
	close(h.exited)
	h.log.Debug("Test runner exited", "id", h.id, "pid", h.pid, "code", code, "err", err)
}

// kill tears the process down via its context; CommandContext guarantees
// the kill even when Wait has not been reached yet.
func (h *Handle) kill() {
	if h.cancelProc != nil {
		h.cancelProc()
	}
}

// setState advances to a non-terminal state unless already terminated.
func (h *Handle) setState(s State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == StateTerminated {
		return
	}
	h.state = s
}

// terminate enters the absorbing terminal state. The first reason wins;
// re-entering is a no-op.
func (h *Handle) terminate(reason TerminationReason) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == StateTerminated {
		return
	}
	h.state = StateTerminated
	h.reason = reason
}

// removeTempFiles closes and deletes the output file and wrapper script.
// Fields are cleared under h.mu so a racing reap or OutputPath read never
// sees a half-released file.
func (h *Handle) removeTempFiles() {
	h.mu.Lock()
	outFile, outputPath, scriptPath := h.outputFile, h.outputPath, h.scriptPath
	h.outputFile, h.outputPath, h.scriptPath = nil, "", ""
	h.mu.Unlock()

	if outFile != nil {
		_ = outFile.Close()
	}
	if outputPath != "" {
		if err := os.Remove(outputPath); err != nil && !os.IsNotExist(err) {
			h.log.Debug("Failed to remove output file", "path", outputPath, "err", err)
		}
	}
	if scriptPath != "" {
		if err := os.Remove(scriptPath); err != nil && !os.IsNotExist(err) {
			h.log.Debug("Failed to remove wrapper script", "path", scriptPath, "err", err)
		}
	}
}

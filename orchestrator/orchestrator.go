// Package orchestrator supervises exactly one externally spawned test-runner
// process per handle: spawn, readiness detection, output forwarding,
// cancellation and deterministic cleanup.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"

	"github.com/editorkit/testbridge/forward"
)

// State is the lifecycle phase of a supervised process.
type State string

const (
	StateSpawning          State = "spawning"
	StateAwaitingReadiness State = "awaiting_readiness"
	StateReady             State = "ready"
	StateStreaming         State = "streaming"
	StateTerminated        State = "terminated"
)

// TerminationReason records why a handle reached StateTerminated.
type TerminationReason string

const (
	TerminationNone             TerminationReason = ""
	TerminationSpawnFailure     TerminationReason = "spawn_failure"
	TerminationReadinessTimeout TerminationReason = "readiness_timeout"
	TerminationProcessExited    TerminationReason = "process_exited"
	TerminationCancelled        TerminationReason = "cancelled"
	TerminationCompleted        TerminationReason = "completed"
)

// ReadinessStrategy selects how readiness is detected before a debugger may
// attach.
type ReadinessStrategy string

const (
	ReadinessNone       ReadinessStrategy = "none"
	ReadinessPort       ReadinessStrategy = "port"
	ReadinessLogPattern ReadinessStrategy = "log"
)

// ReadinessSpec configures the detector for one run.
type ReadinessSpec struct {
	Strategy ReadinessStrategy
	Host     string
	Port     int
	Marker   string
	Timeout  time.Duration
}

// Command describes the external test-runner invocation.
type Command struct {
	Executable string
	Args       []string
	WorkDir    string
	Env        []string // appended to the inherited environment

	// WrapperScript, when non-empty, is written to a temporary file and
	// executed instead of Executable directly. Build tools that need an
	// init/wrapper script for the invocation use this.
	WrapperScript string
}

// Orchestrator spawns and supervises test-runner processes. Each Spawn
// yields an independent Handle; no state is shared between concurrent runs.
type Orchestrator struct {
	log        log.Logger
	maxBacklog int
}

// New creates an orchestrator. maxBacklog bounds the per-run output backlog;
// 0 selects the forward package default.
func New(logger log.Logger, maxBacklog int) *Orchestrator {
	if logger == nil {
		logger = log.Root()
	}
	return &Orchestrator{log: logger, maxBacklog: maxBacklog}
}

// Spawn starts the external process and begins tailing its combined output.
// On success the handle is in StateAwaitingReadiness. A creation error is
// fatal and surfaced immediately; nothing is left behind on disk.
func (o *Orchestrator) Spawn(ctx context.Context, command Command) (*Handle, error) {
	h := &Handle{
		id:        uuid.New().String(),
		state:     StateSpawning,
		log:       o.log,
		exited:    make(chan struct{}),
		startedAt: time.Now(),
	}

	outFile, err := os.CreateTemp("", "testbridge-output-*.log")
	if err != nil {
		h.terminate(TerminationSpawnFailure)
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	h.outputPath = outFile.Name()
	h.outputFile = outFile

	executable := command.Executable
	args := command.Args
	if command.WrapperScript != "" {
		scriptPath, err := writeWrapperScript(command.WrapperScript)
		if err != nil {
			h.removeTempFiles()
			h.terminate(TerminationSpawnFailure)
			return nil, err
		}
		h.scriptPath = scriptPath
		executable = scriptPath
		args = nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	h.cancelProc = cancel

	cmd := exec.CommandContext(runCtx, executable, args...)
	cmd.Dir = command.WorkDir
	cmd.Env = append(os.Environ(), command.Env...)
	cmd.Stdout = outFile
	cmd.Stderr = outFile
	cmd.WaitDelay = 5 * time.Second

	if err := cmd.Start(); err != nil {
		cancel()
		h.removeTempFiles()
		h.terminate(TerminationSpawnFailure)
		return nil, fmt.Errorf("failed to spawn %s: %w", executable, err)
	}
	h.cmd = cmd
	h.pid = cmd.Process.Pid
	h.setState(StateAwaitingReadiness)
	o.log.Debug("Spawned test runner", "id", h.id, "pid", h.pid, "executable", executable)

	h.forwarder = forward.New(h.outputPath, o.maxBacklog, o.log)
	if err := h.forwarder.Start(); err != nil {
		o.log.Warn("Failed to start output forwarder", "err", err)
	}

	go h.reap()
	return h, nil
}

// writeWrapperScript persists the wrapper to a private temp file.
func writeWrapperScript(contents string) (string, error) {
	f, err := os.CreateTemp("", "testbridge-wrapper-*.sh")
	if err != nil {
		return "", fmt.Errorf("failed to create wrapper script: %w", err)
	}
	path := f.Name()
	if _, err := f.WriteString(contents); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to write wrapper script: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to close wrapper script: %w", err)
	}
	if err := os.Chmod(path, 0o700); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to chmod wrapper script: %w", err)
	}
	return path, nil
}

var errNotSpawned = errors.New("process was never spawned")

// Package logging persists raw runner output and run summaries on disk,
// one directory per run.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/acarl005/stripansi"
)

const (
	// RunDirectoryPrefix is the standardized prefix for run directories.
	RunDirectoryPrefix = "testrun-"

	RunnerLogFilename = "runner.log"
	SummaryFilename   = "summary.log"
)

// FileLogger owns the log directory for one run.
type FileLogger struct {
	runID  string
	runDir string

	mu        sync.Mutex
	runnerLog *os.File
	closed    bool
}

// NewFileLogger creates <baseDir>/testrun-<runID>/ and opens the runner
// output log inside it.
func NewFileLogger(baseDir, runID string) (*FileLogger, error) {
	runDir := filepath.Join(baseDir, RunDirectoryPrefix+runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create run directory %s: %w", runDir, err)
	}
	f, err := os.Create(filepath.Join(runDir, RunnerLogFilename))
	if err != nil {
		return nil, fmt.Errorf("failed to create runner log: %w", err)
	}
	return &FileLogger{runID: runID, runDir: runDir, runnerLog: f}, nil
}

// RunID returns the run this logger belongs to.
func (l *FileLogger) RunID() string { return l.runID }

// RunDir returns the directory holding this run's files.
func (l *FileLogger) RunDir() string { return l.runDir }

// RunnerOutput returns the writer for the runner's combined output. Bytes
// are ANSI-stripped before they hit disk so the persisted log is greppable.
func (l *FileLogger) RunnerOutput() *RunnerLogWriter {
	return &RunnerLogWriter{logger: l}
}

// WriteSummary stores the rendered run summary next to the runner log.
func (l *FileLogger) WriteSummary(summary string) error {
	path := filepath.Join(l.runDir, SummaryFilename)
	if err := os.WriteFile(path, []byte(summary), 0o644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

// Close flushes and closes the runner log. Safe to call multiple times.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if l.runnerLog == nil {
		return nil
	}
	if err := l.runnerLog.Sync(); err != nil {
		_ = l.runnerLog.Close()
		return err
	}
	return l.runnerLog.Close()
}

func (l *FileLogger) write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || l.runnerLog == nil {
		return len(p), nil
	}
	if _, err := l.runnerLog.WriteString(stripansi.Strip(string(p))); err != nil {
		return 0, err
	}
	return len(p), nil
}

// RunnerLogWriter adapts the file logger to io.Writer for the forwarder.
type RunnerLogWriter struct {
	logger *FileLogger
}

func (w *RunnerLogWriter) Write(p []byte) (int, error) {
	return w.logger.write(p)
}

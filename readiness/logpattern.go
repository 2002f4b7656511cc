package readiness

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/ethereum/go-ethereum/log"
)

// windowSlack is how many bytes beyond the marker length the trailing
// window keeps, so a marker split across two reads is still seen.
const windowSlack = 4096

// LogDetector watches a growing output file for a readiness marker line.
type LogDetector struct {
	path        string
	marker      string
	timeout     time.Duration
	processExit <-chan struct{}
	log         log.Logger

	offset int64
	window []byte
}

// NewLogDetector creates a detector tailing the file at path for marker.
func NewLogDetector(path, marker string, timeout time.Duration, processExit <-chan struct{}, logger log.Logger) *LogDetector {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = log.Root()
	}
	return &LogDetector{
		path:        path,
		marker:      marker,
		timeout:     timeout,
		processExit: processExit,
		log:         logger,
	}
}

// WaitReady tails the output file and succeeds the instant the marker
// appears in the trailing window, regardless of remaining timeout.
func (d *LogDetector) WaitReady(ctx context.Context) Result {
	deadline := time.Now().Add(d.timeout)

	for {
		if d.scan() {
			d.log.Debug("Readiness marker observed", "marker", d.marker)
			return Result{Ready: true}
		}

		if exited(d.processExit) {
			// One more scan catches a marker written just before exit
			if d.scan() {
				return Result{Ready: true}
			}
			d.log.Debug("Process exited before marker appeared", "marker", d.marker)
			return Result{Reason: ReasonProcessExited}
		}

		if time.Now().After(deadline) {
			d.log.Debug("Timed out waiting for marker", "marker", d.marker, "timeout", d.timeout)
			return Result{Reason: ReasonTimeout}
		}

		select {
		case <-ctx.Done():
			return Result{Reason: ReasonCancelled}
		case <-d.processExit:
		case <-time.After(initialPollInterval):
		}
	}
}

// scan reads any new bytes into the trailing window and checks it for the
// marker. The window is ANSI-stripped before matching so colored runner
// output still hits plain-text markers.
func (d *LogDetector) scan() bool {
	f, err := os.Open(d.path)
	if err != nil {
		return false
	}
	defer f.Close()

	if _, err := f.Seek(d.offset, io.SeekStart); err != nil {
		return false
	}
	chunk, err := io.ReadAll(f)
	if err != nil && len(chunk) == 0 {
		return false
	}
	d.offset += int64(len(chunk))

	d.window = append(d.window, chunk...)
	max := len(d.marker) + windowSlack
	if len(d.window) > max {
		d.window = d.window[len(d.window)-max:]
	}

	return strings.Contains(stripansi.Strip(string(d.window)), d.marker)
}

package readiness

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// dialTimeout keeps each connect attempt short so liveness checks and
// cancellation are observed between attempts.
const dialTimeout = 250 * time.Millisecond

// PortDetector waits for a TCP port to accept connections.
type PortDetector struct {
	addr        string
	timeout     time.Duration
	processExit <-chan struct{}
	log         log.Logger
}

// NewPortDetector creates a detector probing host:port. processExit, when
// non-nil, is closed by the orchestrator once the supervised process exits.
func NewPortDetector(host string, port int, timeout time.Duration, processExit <-chan struct{}, logger log.Logger) *PortDetector {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = log.Root()
	}
	return &PortDetector{
		addr:        net.JoinHostPort(host, strconv.Itoa(port)),
		timeout:     timeout,
		processExit: processExit,
		log:         logger,
	}
}

// WaitReady probes the port with bounded increasing backoff until it opens,
// the process exits, the timeout elapses or ctx is cancelled.
func (d *PortDetector) WaitReady(ctx context.Context) Result {
	deadline := time.Now().Add(d.timeout)
	interval := initialPollInterval

	for {
		if exited(d.processExit) {
			d.log.Debug("Process exited before port opened", "addr", d.addr)
			return Result{Reason: ReasonProcessExited}
		}

		conn, err := net.DialTimeout("tcp", d.addr, dialTimeout)
		if err == nil {
			_ = conn.Close()
			d.log.Debug("Port is accepting connections", "addr", d.addr)
			return Result{Ready: true}
		}

		if time.Now().After(deadline) {
			d.log.Debug("Timed out waiting for port", "addr", d.addr, "timeout", d.timeout)
			return Result{Reason: ReasonTimeout}
		}

		select {
		case <-ctx.Done():
			return Result{Reason: ReasonCancelled}
		case <-d.processExit:
			// Loop once more; the exit check above does the final call
		case <-time.After(interval):
		}
		interval = nextInterval(interval)
	}
}

package readiness

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestPortDetectorReady(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	port := l.Addr().(*net.TCPAddr).Port

	d := NewPortDetector("127.0.0.1", port, time.Second, nil, log.New())
	res := d.WaitReady(context.Background())
	assert.True(t, res.Ready)
	assert.Equal(t, ReasonNone, res.Reason)
}

func TestPortDetectorOpensLate(t *testing.T) {
	port := freePort(t)

	go func() {
		time.Sleep(300 * time.Millisecond)
		l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err != nil {
			return
		}
		time.Sleep(2 * time.Second)
		l.Close()
	}()

	d := NewPortDetector("127.0.0.1", port, 5*time.Second, nil, log.New())
	res := d.WaitReady(context.Background())
	assert.True(t, res.Ready)
}

func TestPortDetectorTimeout(t *testing.T) {
	port := freePort(t)

	start := time.Now()
	d := NewPortDetector("127.0.0.1", port, 400*time.Millisecond, nil, log.New())
	res := d.WaitReady(context.Background())

	assert.False(t, res.Ready)
	assert.Equal(t, ReasonTimeout, res.Reason)
	// Never succeeds after the configured duration has elapsed
	assert.GreaterOrEqual(t, time.Since(start), 400*time.Millisecond)
}

func TestPortDetectorProcessExited(t *testing.T) {
	port := freePort(t)
	exitCh := make(chan struct{})
	close(exitCh)

	d := NewPortDetector("127.0.0.1", port, 10*time.Second, exitCh, log.New())
	start := time.Now()
	res := d.WaitReady(context.Background())

	assert.False(t, res.Ready)
	assert.Equal(t, ReasonProcessExited, res.Reason)
	// Fails immediately instead of waiting out the timeout
	assert.Less(t, time.Since(start), time.Second)
}

func TestPortDetectorCancelled(t *testing.T) {
	port := freePort(t)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	d := NewPortDetector("127.0.0.1", port, 10*time.Second, nil, log.New())
	res := d.WaitReady(ctx)
	assert.False(t, res.Ready)
	assert.Equal(t, ReasonCancelled, res.Reason)
}

func TestLogDetectorMarkerAppears(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runner.log")
	require.NoError(t, os.WriteFile(path, []byte("starting up\n"), 0o644))

	go func() {
		time.Sleep(200 * time.Millisecond)
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return
		}
		defer f.Close()
		_, _ = f.WriteString("Listening for transport dt_socket at address: 5005\n")
	}()

	d := NewLogDetector(path, "Listening for transport dt_socket", 5*time.Second, nil, log.New())
	res := d.WaitReady(context.Background())
	assert.True(t, res.Ready)
}

func TestLogDetectorStripsANSI(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runner.log")
	colored := "\x1b[32mListening for \x1b[1mtransport dt_socket\x1b[0m\n"
	require.NoError(t, os.WriteFile(path, []byte(colored), 0o644))

	d := NewLogDetector(path, "Listening for transport dt_socket", time.Second, nil, log.New())
	res := d.WaitReady(context.Background())
	assert.True(t, res.Ready)
}

func TestLogDetectorMarkerSplitAcrossWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runner.log")
	require.NoError(t, os.WriteFile(path, []byte("Listening for trans"), 0o644))

	go func() {
		time.Sleep(250 * time.Millisecond)
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return
		}
		defer f.Close()
		_, _ = f.WriteString("port dt_socket at address: 5005\n")
	}()

	d := NewLogDetector(path, "Listening for transport dt_socket", 5*time.Second, nil, log.New())
	res := d.WaitReady(context.Background())
	assert.True(t, res.Ready)
}

func TestLogDetectorTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runner.log")
	require.NoError(t, os.WriteFile(path, []byte("nothing interesting\n"), 0o644))

	d := NewLogDetector(path, "never appears", 400*time.Millisecond, nil, log.New())
	res := d.WaitReady(context.Background())
	assert.False(t, res.Ready)
	assert.Equal(t, ReasonTimeout, res.Reason)
}

func TestLogDetectorProcessExitFinalScan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runner.log")
	exitCh := make(chan struct{})

	d := NewLogDetector(path, "ready to roll", 10*time.Second, exitCh, log.New())

	go func() {
		time.Sleep(150 * time.Millisecond)
		// Marker lands right before the process exits
		_ = os.WriteFile(path, []byte("ready to roll\n"), 0o644)
		close(exitCh)
	}()

	res := d.WaitReady(context.Background())
	assert.True(t, res.Ready)
}

func TestLogDetectorProcessExitedWithoutMarker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runner.log")
	require.NoError(t, os.WriteFile(path, []byte("crashed early\n"), 0o644))
	exitCh := make(chan struct{})
	close(exitCh)

	d := NewLogDetector(path, "never appears", 10*time.Second, exitCh, log.New())
	start := time.Now()
	res := d.WaitReady(context.Background())

	assert.False(t, res.Ready)
	assert.Equal(t, ReasonProcessExited, res.Reason)
	assert.Less(t, time.Since(start), time.Second)
}

func TestNextInterval(t *testing.T) {
	assert.Equal(t, 200*time.Millisecond, nextInterval(100*time.Millisecond))
	assert.Equal(t, 400*time.Millisecond, nextInterval(200*time.Millisecond))
	assert.Equal(t, maxPollInterval, nextInterval(400*time.Millisecond))
	assert.Equal(t, maxPollInterval, nextInterval(maxPollInterval))
}

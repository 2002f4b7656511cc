package forward

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder captures every delivery separately so tests can assert on both
// content and batching.
type recorder struct {
	mu         sync.Mutex
	deliveries [][]byte
}

func (r *recorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]byte, len(p))
	copy(cp, p)
	r.deliveries = append(r.deliveries, cp)
	return len(p), nil
}

func (r *recorder) joined() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []byte
	for _, d := range r.deliveries {
		out = append(out, d...)
	}
	return string(out)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.deliveries)
}

func writeOutput(t *testing.T, path, s string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	defer f.Close()
	_, err = f.WriteString(s)
	require.NoError(t, err)
}

func TestForwarderBuffersUntilAttach(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	writeOutput(t, path, "early bytes\n")

	fw := New(path, 0, log.New())
	require.NoError(t, fw.Start())
	defer fw.Stop()

	// Give the tail loop time to pick up the pre-attach bytes
	time.Sleep(300 * time.Millisecond)

	rec := &recorder{}
	fw.Attach(rec)

	// Backlog arrives as a single delivery
	require.Equal(t, 1, rec.count())
	assert.Equal(t, "early bytes\n", rec.joined())
}

func TestForwarderOrderPreserved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	writeOutput(t, path, "one\n")

	fw := New(path, 0, log.New())
	require.NoError(t, fw.Start())

	time.Sleep(250 * time.Millisecond)
	rec := &recorder{}
	fw.Attach(rec)

	writeOutput(t, path, "two\n")
	time.Sleep(250 * time.Millisecond)
	writeOutput(t, path, "three\n")
	time.Sleep(250 * time.Millisecond)

	fw.Stop()
	assert.Equal(t, "one\ntwo\nthree\n", rec.joined())
}

func TestForwarderStopFlushesRemaining(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	fw := New(path, 0, log.New())
	writeOutput(t, path, "lingering")
	require.NoError(t, fw.Start())

	rec := &recorder{}
	fw.Attach(rec)
	// Stop must deliver bytes the poll loop has not seen yet
	fw.Stop()
	assert.Equal(t, "lingering", rec.joined())
}

func TestForwarderStopIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	writeOutput(t, path, "x")

	fw := New(path, 0, log.New())
	require.NoError(t, fw.Start())
	fw.Stop()
	fw.Stop()
	fw.Stop()
}

func TestForwarderStopWithoutStart(t *testing.T) {
	fw := New(filepath.Join(t.TempDir(), "never-created.log"), 0, log.New())
	// Start fails because the file does not exist; Stop must still be safe
	assert.Error(t, fw.Start())
	fw.Stop()
	fw.Stop()
}

func TestForwarderDetachBuffersAgain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	fw := New(path, 0, log.New())
	writeOutput(t, path, "a")
	require.NoError(t, fw.Start())

	rec := &recorder{}
	fw.Attach(rec)
	time.Sleep(250 * time.Millisecond)

	fw.Detach()
	writeOutput(t, path, "b")
	time.Sleep(250 * time.Millisecond)

	rec2 := &recorder{}
	fw.Attach(rec2)
	fw.Stop()
	assert.Equal(t, "a", rec.joined())
	assert.Equal(t, "b", rec2.joined())
}

func TestBacklogDropOldest(t *testing.T) {
	b := newBacklog(8)
	_, _ = b.Write([]byte("12345678"))
	assert.False(t, b.Truncated())

	_, _ = b.Write([]byte("ABCD"))
	assert.True(t, b.Truncated())
	// Oldest bytes dropped first, newest retained
	assert.Equal(t, "5678ABCD", string(b.Drain()))
	assert.Equal(t, 0, b.Len())
}

func TestBacklogDrainEmpty(t *testing.T) {
	b := newBacklog(8)
	assert.Nil(t, b.Drain())
}

// Package forward tails a growing byte source and delivers chunks to a
// consumer that may attach late. Bytes produced while no consumer is
// attached accumulate in a bounded backlog and are flushed as one delivery
// the instant a consumer attaches.
package forward

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

const pollInterval = 100 * time.Millisecond

// Forwarder tails one output file and forwards new bytes downstream.
// Delivery order always matches production order; backlog flushing batches
// bytes but never reorders them.
type Forwarder struct {
	path string
	log  log.Logger

	mu       sync.Mutex
	src      *os.File
	offset   int64
	consumer io.Writer
	backlog  *backlog
	started  bool
	stopped  bool
	done     chan struct{}
	wg       sync.WaitGroup
}

// New creates a forwarder for the file at path. maxBacklog <= 0 selects the
// default backlog bound.
func New(path string, maxBacklog int, logger log.Logger) *Forwarder {
	if logger == nil {
		logger = log.Root()
	}
	return &Forwarder{
		path:    path,
		log:     logger,
		backlog: newBacklog(maxBacklog),
		done:    make(chan struct{}),
	}
}

// Start opens the source and begins tailing it.
func (f *Forwarder) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started || f.stopped {
		return nil
	}

	src, err := os.Open(f.path)
	if err != nil {
		return err
	}
	f.src = src
	f.started = true

	f.wg.Add(1)
	go f.loop()
	return nil
}

// Attach sets the downstream consumer. Any backlog is flushed to it as a
// single delivery before new bytes flow through directly.
func (f *Forwarder) Attach(w io.Writer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.consumer = w
	f.flushBacklogLocked()
}

// Detach removes the consumer; subsequent bytes buffer in the backlog again.
func (f *Forwarder) Detach() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.consumer = nil
}

// Stop drains any remaining source bytes, flushes the backlog to an
// attached consumer and releases the source. It is idempotent and safe to
// call even when Start failed or never ran.
func (f *Forwarder) Stop() {
	f.mu.Lock()
	if f.stopped {
		f.mu.Unlock()
		return
	}
	f.stopped = true
	if f.started {
		close(f.done)
	}
	f.mu.Unlock()

	f.wg.Wait()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.src != nil {
		f.pumpLocked()
		f.flushBacklogLocked()
		_ = f.src.Close()
		f.src = nil
	}
}

func (f *Forwarder) loop() {
	defer f.wg.Done()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			f.mu.Lock()
			if f.src != nil {
				f.pumpLocked()
			}
			f.mu.Unlock()
		}
	}
}

// pumpLocked reads new source bytes and routes them to the consumer, or to
// the backlog when none is attached. Callers hold f.mu, which is what keeps
// delivery ordered.
func (f *Forwarder) pumpLocked() {
	if _, err := f.src.Seek(f.offset, io.SeekStart); err != nil {
		return
	}
	chunk, err := io.ReadAll(f.src)
	if err != nil && len(chunk) == 0 {
		return
	}
	if len(chunk) == 0 {
		return
	}
	f.offset += int64(len(chunk))

	if f.consumer == nil {
		_, _ = f.backlog.Write(chunk)
		return
	}
	if _, err := f.consumer.Write(chunk); err != nil {
		f.log.Warn("Output consumer rejected delivery", "err", err)
	}
}

func (f *Forwarder) flushBacklogLocked() {
	if f.consumer == nil {
		return
	}
	if f.backlog.Truncated() {
		f.log.Debug("Output backlog overflowed; oldest bytes were dropped")
	}
	if buffered := f.backlog.Drain(); len(buffered) > 0 {
		if _, err := f.consumer.Write(buffered); err != nil {
			f.log.Warn("Output consumer rejected backlog flush", "err", err)
		}
	}
}

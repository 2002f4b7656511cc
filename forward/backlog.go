package forward

import (
	"sync"
)

const defaultBacklogBytes = 1 * 1024 * 1024 // 1MB kept per run while no consumer is attached

// backlog keeps only the last N bytes written to it so output produced
// before a consumer attaches is retained without growing unbounded. Oldest
// bytes are dropped first on overflow.
type backlog struct {
	maxBytes int

	mu       sync.Mutex
	total    int64
	contents []byte
	overflow bool
}

func newBacklog(maxBytes int) *backlog {
	if maxBytes <= 0 {
		maxBytes = defaultBacklogBytes
	}
	return &backlog{
		maxBytes: maxBytes,
		contents: make([]byte, 0, maxBytes),
	}
}

func (b *backlog) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.total += int64(len(p))
	b.contents = append(b.contents, p...)
	if len(b.contents) > b.maxBytes {
		b.contents = b.contents[len(b.contents)-b.maxBytes:]
		b.overflow = true
	}
	return len(p), nil
}

// Drain returns the buffered bytes and resets the backlog. The returned
// slice preserves write order.
func (b *backlog) Drain() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.contents) == 0 {
		return nil
	}
	out := make([]byte, len(b.contents))
	copy(out, b.contents)
	b.contents = b.contents[:0]
	return out
}

func (b *backlog) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.contents)
}

// Truncated reports whether bytes were dropped due to overflow.
func (b *backlog) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.overflow
}

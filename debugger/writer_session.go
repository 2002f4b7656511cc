package debugger

import (
	"context"
	"io"

	"github.com/ethereum/go-ethereum/log"
)

// WriterSession is a minimal Session that records the descriptor and pipes
// runner output to a writer. The CLI uses it when no editor-side debugger
// is present; tests use it as a stand-in collaborator.
type WriterSession struct {
	W          io.Writer
	Log        log.Logger
	Descriptor Descriptor
	attached   bool
}

var _ Session = (*WriterSession)(nil)

// Attach records the descriptor.
func (s *WriterSession) Attach(_ context.Context, desc Descriptor) error {
	s.Descriptor = desc
	s.attached = true
	if s.Log != nil {
		s.Log.Info("Debugger may attach", "host", desc.Host, "port", desc.Port, "protocol", desc.Protocol)
	}
	return nil
}

// Output returns the configured writer; io.Discard when none was set.
func (s *WriterSession) Output() io.Writer {
	if s.W == nil {
		return io.Discard
	}
	return s.W
}

// Attached reports whether Attach has been called.
func (s *WriterSession) Attached() bool { return s.attached }

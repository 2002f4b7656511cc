// Package debugger defines the collaborator interface for the external
// debugger client. This module never implements a debug protocol; it only
// produces the connection descriptor a debugger needs to attach safely
// after readiness was observed.
package debugger

import (
	"context"
	"io"
)

// Descriptor is the connection handshake handed to the debugger once the
// runner is ready for attachment.
type Descriptor struct {
	Host     string
	Port     int
	Protocol string // e.g. "jdwp"
}

// Session is the externally provided debug session. It is injected per run
// so concurrent runs stay isolated; there is no process-wide session.
type Session interface {
	// Attach is called exactly once per run, after readiness.
	Attach(ctx context.Context, desc Descriptor) error

	// Output returns the consumer for the runner's forwarded output.
	// Delivery may begin before Attach returns.
	Output() io.Writer
}

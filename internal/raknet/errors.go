package raknet

import "github.com/pkg/errors"

// Sentinel errors surfaced by the reliability core, per the error
// handling design: Malformed and OutOfWindow are recovered from
// locally, the rest are session-fatal and propagate to the state
// machine above.
var (
	// ErrMalformed means a header could not be decoded: an
	// out-of-range reliability discriminant or a truncated buffer.
	ErrMalformed = errors.New("raknet: malformed packet")

	// ErrOutOfWindow means a datagram or frame duplicates or precedes
	// data already acknowledged; it is dropped silently by callers.
	ErrOutOfWindow = errors.New("raknet: duplicate or stale frame")

	// ErrBudgetExceeded means a session exceeded its per-second packet
	// budget. Reported upward; the host decides whether to disconnect.
	ErrBudgetExceeded = errors.New("raknet: packet budget exceeded")

	// ErrSessionTimeout means a session received no inbound datagram
	// within SessionTimeout.
	ErrSessionTimeout = errors.New("raknet: session timed out")

	// ErrSessionClosed means an operation was attempted on a session
	// that has already shut down.
	ErrSessionClosed = errors.New("raknet: session closed")
)

// malformed wraps ErrMalformed with additional context, preserving
// errors.Is(_, ErrMalformed).
func malformed(context string) error {
	return errors.Wrap(ErrMalformed, context)
}

package bedrock

import "github.com/pkg/errors"

// Sentinel errors surfaced by the game-packet pipeline and state
// machine, mirroring spec.md §7's error kinds for the layers above
// internal/raknet.
var (
	// ErrMalformed means a batch or packet header could not be decoded.
	ErrMalformed = errors.New("bedrock: malformed packet")

	// ErrEncryptionFailure means an AES-GCM tag mismatch or a
	// direction counter skew; fatal for the session.
	ErrEncryptionFailure = errors.New("bedrock: encryption failure")

	// ErrVersionMismatch means the client's RequestNetworkSettings
	// protocol version disagreed with the server's.
	ErrVersionMismatch = errors.New("bedrock: protocol version mismatch")

	// ErrEmptyDisconnectMessage means a Disconnect packet's message was
	// empty; per §7 the client drops such packets, so the core never
	// constructs one.
	ErrEmptyDisconnectMessage = errors.New("bedrock: disconnect message must not be empty")

	// ErrUnexpectedPacket means a packet arrived that isn't valid for
	// the session's current state-machine state.
	ErrUnexpectedPacket = errors.New("bedrock: unexpected packet for current state")
)

func malformed(context string) error {
	return errors.Wrap(ErrMalformed, context)
}

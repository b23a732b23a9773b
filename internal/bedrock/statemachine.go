package bedrock

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/voidworks/bedrockd/internal/raknet"
)

// State is one node of the per-session handshake state machine, per
// spec.md §4.4.
type State uint8

const (
	StateConnecting State = iota
	StateAwaitLogin
	StateAwaitEncryptionAck
	StateAwaitResourceResponse
	StateConnected
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "Connecting"
	case StateAwaitLogin:
		return "AwaitLogin"
	case StateAwaitEncryptionAck:
		return "AwaitEncryptionAck"
	case StateAwaitResourceResponse:
		return "AwaitResourceResponse"
	case StateConnected:
		return "Connected"
	case StateClosing:
		return "Closing"
	default:
		return "State(invalid)"
	}
}

// Authenticator parses a Login packet's identity chain and user data.
// The chain-of-trust/JWT verification itself is a crypto concern
// delegated outside this package, per spec.md §1's "consumed via
// narrow interfaces".
type Authenticator interface {
	Authenticate(loginBody []byte) (raknet.Identity, []byte, error)
}

// KeyExchange derives the session's shared secret from the client's
// public key (parsed by the Authenticator) and returns the server JWT
// to embed in ServerToClientHandshake plus the resulting Encryptor.
type KeyExchange interface {
	Handshake(clientPublicKeyDER []byte) (serverJWT string, enc Encryptor, err error)
}

// GameHandler dispatches packets once a session reaches StateConnected.
// The core only drives the handshake; gameplay packet handling (§9's
// design note) is this narrow interface, implemented outside the core.
type GameHandler interface {
	HandleGamePacket(session *raknet.Session, pk Packet) error
}

// Config is the immutable, by-reference server configuration a state
// machine is constructed with, per §9's "pass by reference through
// construction rather than as shared mutable global" design note.
type Config struct {
	ServerProtocolVersion int32
	Compression           CompressionAlgorithm
	CompressionThreshold  int
	ThrottleEnabled       bool
	ThrottleThreshold     byte
	ThrottleScalar        float32
}

// StateMachine drives one session's handshake and, once connected,
// dispatches game packets. It owns the session's Codec for batch
// framing.
type StateMachine struct {
	cfg     Config
	session *raknet.Session
	codec   *Codec
	auth    Authenticator
	kex     KeyExchange
	game    GameHandler
	log     *logrus.Entry

	state          State
	malformedCount int
}

// NewStateMachine constructs a state machine for session in the
// Connecting state.
func NewStateMachine(session *raknet.Session, cfg Config, auth Authenticator, kex KeyExchange, game GameHandler, log *logrus.Entry) *StateMachine {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &StateMachine{
		cfg:     cfg,
		session: session,
		codec:   &Codec{Compression: cfg.Compression, CompressionThreshold: cfg.CompressionThreshold},
		auth:    auth,
		kex:     kex,
		game:    game,
		state:   StateConnecting,
		log:     log.WithField("state", StateConnecting.String()),
	}
}

// State reports the machine's current state.
func (sm *StateMachine) State() State {
	return sm.state
}

func (sm *StateMachine) transition(to State) {
	sm.state = to
	sm.log = sm.log.WithField("state", to.String())
}

// HandleBatch decodes one inbound game-packet batch (already delivered
// in order by the reliability core) and dispatches its packets.
func (sm *StateMachine) HandleBatch(payload []byte) error {
	packets, err := sm.codec.DecodeBatch(payload)
	if err != nil {
		if isFatal(err) {
			sm.closeWith(err)
			return err
		}
		sm.malformedCount++
		sm.log.WithError(err).Debug("malformed game packet batch")
		return nil
	}
	for _, pk := range packets {
		if err := sm.HandlePacket(pk); err != nil {
			if isFatal(err) {
				sm.closeWith(err)
				return err
			}
			sm.malformedCount++
			sm.log.WithError(err).WithField("packetID", pk.Header.PacketID).Debug("packet handling error")
		}
	}
	return nil
}

// HandlePacket dispatches a single decoded packet according to the
// current state.
func (sm *StateMachine) HandlePacket(pk Packet) error {
	switch sm.state {
	case StateConnecting:
		return sm.handleConnecting(pk)
	case StateAwaitLogin:
		return sm.handleAwaitLogin(pk)
	case StateAwaitEncryptionAck:
		return sm.handleAwaitEncryptionAck(pk)
	case StateAwaitResourceResponse:
		return sm.handleAwaitResourceResponse(pk)
	case StateConnected:
		return sm.handleConnected(pk)
	default: // Closing
		return nil
	}
}

func isFatal(err error) bool {
	return errors.Is(err, ErrVersionMismatch) || errors.Is(err, ErrEncryptionFailure)
}

func (sm *StateMachine) sendBatch(packets ...Packet) error {
	payload, err := sm.codec.EncodeBatch(packets)
	if err != nil {
		return err
	}
	sm.session.Enqueue(payload, raknet.ReliableOrdered, raknet.PriorityMedium, 0)
	return nil
}

func (sm *StateMachine) handleConnecting(pk Packet) error {
	if pk.Header.PacketID != IDRequestNetworkSettings {
		return errors.Wrap(ErrUnexpectedPacket, "expected RequestNetworkSettings")
	}
	clientProtocol, err := decodeRequestNetworkSettings(pk.Body)
	if err != nil {
		return err
	}
	if clientProtocol != sm.cfg.ServerProtocolVersion {
		code := PlayStatusFailedClient
		if clientProtocol > sm.cfg.ServerProtocolVersion {
			code = PlayStatusFailedServer
		}
		_ = sm.sendBatch(Packet{Header: Header{PacketID: IDPlayStatus}, Body: encodePlayStatus(code)})
		sm.transition(StateClosing)
		return errors.Wrapf(ErrVersionMismatch, "client protocol %d, server %d", clientProtocol, sm.cfg.ServerProtocolVersion)
	}

	ns := networkSettings{
		CompressionThreshold: uint16(sm.cfg.CompressionThreshold),
		CompressionAlgorithm: uint16(sm.cfg.Compression),
		ClientThrottle:       sm.cfg.ThrottleEnabled,
		ThrottleThreshold:    sm.cfg.ThrottleThreshold,
		ThrottleScalar:       sm.cfg.ThrottleScalar,
	}
	if err := sm.sendBatch(Packet{Header: Header{PacketID: IDNetworkSettings}, Body: encodeNetworkSettings(ns)}); err != nil {
		return err
	}

	sm.codec.Compression = sm.cfg.Compression
	sm.codec.CompressionThreshold = sm.cfg.CompressionThreshold
	sm.transition(StateAwaitLogin)
	return nil
}

func (sm *StateMachine) handleAwaitLogin(pk Packet) error {
	if pk.Header.PacketID != IDLogin {
		return errors.Wrap(ErrUnexpectedPacket, "expected Login")
	}
	identity, clientPublicKey, err := sm.auth.Authenticate(pk.Body)
	if err != nil {
		return errors.Wrap(ErrMalformed, err.Error())
	}
	sm.session.Identity = identity

	serverJWT, enc, err := sm.kex.Handshake(clientPublicKey)
	if err != nil {
		return errors.Wrap(ErrEncryptionFailure, err.Error())
	}
	if err := sm.sendBatch(Packet{Header: Header{PacketID: IDServerToClientHandshake}, Body: encodeServerToClientHandshake(serverJWT)}); err != nil {
		return err
	}

	sm.codec.Encryptor = enc
	sm.session.SetEncryptor(enc)
	sm.transition(StateAwaitEncryptionAck)
	return nil
}

func (sm *StateMachine) handleAwaitEncryptionAck(pk Packet) error {
	if pk.Header.PacketID != IDClientToServerHandshake {
		return errors.Wrap(ErrUnexpectedPacket, "expected ClientToServerHandshake")
	}
	if err := sm.sendBatch(
		Packet{Header: Header{PacketID: IDPlayStatus}, Body: encodePlayStatus(PlayStatusLoginSuccess)},
		Packet{Header: Header{PacketID: IDResourcePacksInfo}, Body: encodeResourcePacksInfo()},
		Packet{Header: Header{PacketID: IDResourcePackStack}, Body: encodeResourcePackStack()},
	); err != nil {
		return err
	}
	sm.transition(StateAwaitResourceResponse)
	return nil
}

func (sm *StateMachine) handleAwaitResourceResponse(pk Packet) error {
	if pk.Header.PacketID != IDResourcePackClientResponse {
		return errors.Wrap(ErrUnexpectedPacket, "expected ResourcePackClientResponse")
	}
	status, err := decodeResourcePackClientResponse(pk.Body)
	if err != nil {
		return err
	}
	if status != ResourcePackResponseCompleted {
		// SendPacks/HaveAllPacks would normally drive further resource
		// pack transfer; that's the stated Non-goal placeholder, so any
		// non-Completed response is simply acknowledged by staying put.
		return nil
	}
	sm.transition(StateConnected)
	return nil
}

func (sm *StateMachine) handleConnected(pk Packet) error {
	if pk.Header.PacketID == IDDisconnect {
		sm.transition(StateClosing)
		return nil
	}
	if sm.game == nil {
		return nil
	}
	return sm.game.HandleGamePacket(sm.session, pk)
}

// Disconnect sends a typed Disconnect packet and moves the session to
// Closing. An empty message is rejected per §7: the client silently
// drops a disconnect packet with no message, so the core never emits one.
func (sm *StateMachine) Disconnect(message string, hideScreen bool) error {
	body, err := encodeDisconnect(message, hideScreen)
	if err != nil {
		return err
	}
	err = sm.sendBatch(Packet{Header: Header{PacketID: IDDisconnect}, Body: body})
	sm.transition(StateClosing)
	return err
}

func (sm *StateMachine) closeWith(cause error) {
	sm.log.WithError(cause).Warn("session closing on fatal protocol error")
	sm.transition(StateClosing)
	sm.session.Close(cause)
}

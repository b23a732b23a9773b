package bedrock

import (
	"encoding/binary"
	"net"
	"testing"

	"github.com/voidworks/bedrockd/internal/raknet"
)

type stubAuth struct {
	identity raknet.Identity
}

func (a stubAuth) Authenticate(body []byte) (raknet.Identity, []byte, error) {
	return a.identity, []byte("client-public-key"), nil
}

type stubKex struct{}

func (stubKex) Handshake(clientPublicKeyDER []byte) (string, Encryptor, error) {
	return "server.jwt.token", nil, nil
}

type recordingGameHandler struct {
	handled []uint32
}

func (h *recordingGameHandler) HandleGamePacket(_ *raknet.Session, pk Packet) error {
	h.handled = append(h.handled, pk.Header.PacketID)
	return nil
}

func testConfig() Config {
	return Config{ServerProtocolVersion: 700, Compression: CompressionDeflate, CompressionThreshold: 256}
}

func newTestSessionAndSM(t *testing.T, game GameHandler) (*raknet.Session, *StateMachine) {
	t.Helper()
	addr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 19132}
	session := raknet.NewSession(addr, 1, 1400, func(net.Addr, []byte) error { return nil }, nil)
	sm := NewStateMachine(session, testConfig(), stubAuth{identity: raknet.Identity{Name: "Steve"}}, stubKex{}, game, nil)
	return session, sm
}

func TestHandshakeHappyPath(t *testing.T) {
	game := &recordingGameHandler{}
	_, sm := newTestSessionAndSM(t, game)

	if sm.State() != StateConnecting {
		t.Fatalf("expected initial state Connecting, got %v", sm.State())
	}

	reqBody := make([]byte, 4)
	binary.BigEndian.PutUint32(reqBody, uint32(testConfig().ServerProtocolVersion))
	if err := sm.HandlePacket(Packet{Header: Header{PacketID: IDRequestNetworkSettings}, Body: reqBody}); err != nil {
		t.Fatalf("RequestNetworkSettings: %v", err)
	}
	if sm.State() != StateAwaitLogin {
		t.Fatalf("expected AwaitLogin, got %v", sm.State())
	}

	if err := sm.HandlePacket(Packet{Header: Header{PacketID: IDLogin}, Body: []byte("login-body")}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if sm.State() != StateAwaitEncryptionAck {
		t.Fatalf("expected AwaitEncryptionAck, got %v", sm.State())
	}

	if err := sm.HandlePacket(Packet{Header: Header{PacketID: IDClientToServerHandshake}}); err != nil {
		t.Fatalf("ClientToServerHandshake: %v", err)
	}
	if sm.State() != StateAwaitResourceResponse {
		t.Fatalf("expected AwaitResourceResponse, got %v", sm.State())
	}

	resp := []byte{byte(ResourcePackResponseCompleted)}
	if err := sm.HandlePacket(Packet{Header: Header{PacketID: IDResourcePackClientResponse}, Body: resp}); err != nil {
		t.Fatalf("ResourcePackClientResponse: %v", err)
	}
	if sm.State() != StateConnected {
		t.Fatalf("expected Connected, got %v", sm.State())
	}

	if err := sm.HandlePacket(Packet{Header: Header{PacketID: IDText}, Body: []byte("hi")}); err != nil {
		t.Fatalf("game packet: %v", err)
	}
	if len(game.handled) != 1 || game.handled[0] != IDText {
		t.Fatalf("expected game handler invoked with IDText, got %v", game.handled)
	}
}

// TestVersionMismatchClosesSession is scenario 4 from spec.md §8.
func TestVersionMismatchClosesSession(t *testing.T) {
	_, sm := newTestSessionAndSM(t, nil)

	wrongProtocol := testConfig().ServerProtocolVersion - 1
	body := make([]byte, 4)
	binary.BigEndian.PutUint32(body, uint32(wrongProtocol))

	err := sm.HandlePacket(Packet{Header: Header{PacketID: IDRequestNetworkSettings}, Body: body})
	if err == nil {
		t.Fatal("expected version mismatch error")
	}
	if sm.State() != StateClosing {
		t.Fatalf("expected state Closing after version mismatch, got %v", sm.State())
	}
}

func TestUnexpectedPacketRejected(t *testing.T) {
	_, sm := newTestSessionAndSM(t, nil)
	err := sm.HandlePacket(Packet{Header: Header{PacketID: IDLogin}})
	if err == nil {
		t.Fatal("expected error for Login arriving before RequestNetworkSettings")
	}
	if sm.State() != StateConnecting {
		t.Fatalf("state must not advance on rejected packet, got %v", sm.State())
	}
}

func TestDisconnectRejectsEmptyMessage(t *testing.T) {
	_, sm := newTestSessionAndSM(t, nil)
	if err := sm.Disconnect("", false); err == nil {
		t.Fatal("expected error for empty disconnect message")
	}
}

package server

import (
	"encoding/binary"
	"net"

	"github.com/google/uuid"

	"github.com/voidworks/bedrockd/internal/raknet"
)

// RakNet magic, written into the unconnected pong and open-connection
// replies; inbound requests are not checked against it. Per spec.md
// §6's "0x05…0x08: offline-mode handshake ... out of core scope": this
// project implements only the minimal subset needed to hand off a
// negotiated MTU/GUID to the reliability core.
var raknetMagic = [16]byte{0x00, 0xff, 0xff, 0x00, 0xfe, 0xfe, 0xfe, 0xfe, 0xfd, 0xfd, 0xfd, 0xfd, 0x12, 0x34, 0x56, 0x78}

const (
	idUnconnectedPing        byte = 0x01
	idUnconnectedPong        byte = 0x1c
	idOpenConnectionRequest1 byte = 0x05
	idOpenConnectionReply1   byte = 0x06
	idOpenConnectionRequest2 byte = 0x07
	idOpenConnectionReply2   byte = 0x08
)

// offlineHandler answers the unconnected handshake datagrams that
// precede a RakNet session, then invokes onOpen to spawn it.
type offlineHandler struct {
	serverGUID uint64
	motd       string
	onOpen     func(addr net.Addr, guid uint64, mtu int)
}

func newOfflineHandler(motd string, onOpen func(addr net.Addr, guid uint64, mtu int)) *offlineHandler {
	id := uuid.New()
	return &offlineHandler{serverGUID: binary.BigEndian.Uint64(id[:8]), motd: motd, onOpen: onOpen}
}

func (h *offlineHandler) IsOffline(b byte) bool {
	switch b {
	case idUnconnectedPing, idOpenConnectionRequest1, idOpenConnectionRequest2:
		return true
	default:
		return false
	}
}

func (h *offlineHandler) Handle(l *raknet.Listener, addr net.Addr, payload []byte) error {
	switch payload[0] {
	case idUnconnectedPing:
		return h.handlePing(l, addr)
	case idOpenConnectionRequest1:
		return h.handleRequest1(l, addr, payload)
	case idOpenConnectionRequest2:
		return h.handleRequest2(l, addr, payload)
	}
	return nil
}

func (h *offlineHandler) handlePing(l *raknet.Listener, addr net.Addr) error {
	buf := []byte{idUnconnectedPong}
	buf = append(buf, make([]byte, 8)...) // timestamp field, sent as zero rather than echoed
	buf = appendUint64(buf, h.serverGUID)
	buf = append(buf, raknetMagic[:]...)
	buf = appendUint16(buf, uint16(len(h.motd)))
	buf = append(buf, h.motd...)
	return l.Send(addr, buf)
}

func (h *offlineHandler) handleRequest1(l *raknet.Listener, addr net.Addr, payload []byte) error {
	mtu := clampMTU(len(payload) + 28)
	buf := []byte{idOpenConnectionReply1}
	buf = append(buf, raknetMagic[:]...)
	buf = appendUint64(buf, h.serverGUID)
	buf = append(buf, 0) // no security
	buf = appendUint16(buf, uint16(mtu))
	return l.Send(addr, buf)
}

func (h *offlineHandler) handleRequest2(l *raknet.Listener, addr net.Addr, payload []byte) error {
	mtu := clampMTU(readRequestedMTU(payload))
	var clientGUID uint64
	if len(payload) >= 8 {
		clientGUID = binary.BigEndian.Uint64(payload[len(payload)-8:])
	}

	buf := []byte{idOpenConnectionReply2}
	buf = append(buf, raknetMagic[:]...)
	buf = appendUint64(buf, h.serverGUID)
	buf = appendAddress(buf, addr)
	buf = appendUint16(buf, uint16(mtu))
	buf = append(buf, 0) // no encryption
	if err := l.Send(addr, buf); err != nil {
		return err
	}

	if h.onOpen != nil {
		h.onOpen(addr, clientGUID, mtu)
	}
	return nil
}

func clampMTU(n int) int {
	if n < raknet.MinMTU {
		return raknet.MinMTU
	}
	if n > raknet.MaxMTU {
		return raknet.MaxMTU
	}
	return n
}

// readRequestedMTU recovers the client's proposed MTU from an open
// connection request 2: after the id byte and magic(16) comes the
// server address (family byte plus 6 bytes for IPv4, 28 for IPv6),
// then the 2-byte big-endian MTU, then the 8-byte client GUID. A
// payload too short for the MTU, or with an unknown address family,
// yields MinMTU.
func readRequestedMTU(payload []byte) int {
	off := 1 + len(raknetMagic)
	if len(payload) <= off {
		return raknet.MinMTU
	}
	switch payload[off] {
	case 4:
		off += 7
	case 6:
		off += 29
	default:
		return raknet.MinMTU
	}
	if len(payload) < off+2 {
		return raknet.MinMTU
	}
	return int(binary.BigEndian.Uint16(payload[off:]))
}

func appendUint64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func appendUint16(buf []byte, v uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return append(buf, b[:]...)
}

// appendAddress encodes addr per spec.md §6: 1-byte family, then the
// address bytes, then a big-endian port. Only IPv4 is modeled; IPv6
// peers are encoded with a best-effort family byte since the full
// AF_INET6 layout is a host-networking concern outside the reliability
// core's scope.
func appendAddress(buf []byte, addr net.Addr) []byte {
	udpAddr, ok := addr.(*net.UDPAddr)
	if !ok || udpAddr.IP.To4() == nil {
		buf = append(buf, 6)
		var zero [16]byte
		buf = append(buf, zero[:]...)
		return appendUint16(buf, 0)
	}
	buf = append(buf, 4)
	buf = append(buf, udpAddr.IP.To4()...)
	return appendUint16(buf, uint16(udpAddr.Port))
}

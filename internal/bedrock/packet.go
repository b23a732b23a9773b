package bedrock

// Packet ids the core needs to drive the handshake and classify
// traffic, per §9's design note: dispatch is a switch over the
// decoded id rather than a type-driven registry, and the core only
// needs the ids below plus the ACK/NAK classifiers already handled by
// internal/raknet. Values follow the wire ids used by the modeled
// protocol (gophertunnel's packet package assigns the same numbers).
const (
	IDLogin                      uint32 = 1
	IDPlayStatus                 uint32 = 2
	IDServerToClientHandshake    uint32 = 3
	IDClientToServerHandshake    uint32 = 4
	IDDisconnect                 uint32 = 5
	IDResourcePacksInfo          uint32 = 6
	IDResourcePackStack          uint32 = 7
	IDResourcePackClientResponse uint32 = 8
	IDText                       uint32 = 9
	IDMovePlayer                 uint32 = 19
	IDInteract                   uint32 = 33
	IDCommandRequest             uint32 = 77
	IDModalFormResponse          uint32 = 101
	IDRequestNetworkSettings     uint32 = 193
	IDNetworkSettings            uint32 = 143
)

// subClientMask/subClientShift locate the sender/target subclient ids
// packed alongside the packet id in a game-packet header, matching the
// modeled protocol's header layout: 10 bits id, 2 bits sender, 2 bits
// target, packed into the low bits of a VarInt.
const (
	packetIDMask    uint32 = 0x3FF
	senderSubShift         = 10
	targetSubShift         = 12
	subClientMask   uint32 = 0x3
)

// Header is the decoded form of a game packet's VarInt header: the
// packet id plus its sender and target subclient ids (split-screen
// support; almost always zero).
type Header struct {
	PacketID        uint32
	SenderSubClient uint8
	TargetSubClient uint8
}

// Encode packs h into a VarInt and appends it to buf.
func (h Header) Encode(buf []byte) []byte {
	v := h.PacketID & packetIDMask
	v |= uint32(h.SenderSubClient&uint8(subClientMask)) << senderSubShift
	v |= uint32(h.TargetSubClient&uint8(subClientMask)) << targetSubShift
	return PutVarUint32(buf, v)
}

// DecodeHeader reads a VarInt header from buf at offset.
func DecodeHeader(buf []byte, offset int) (Header, int, error) {
	v, next, err := VarUint32(buf, offset)
	if err != nil {
		return Header{}, offset, err
	}
	h := Header{
		PacketID:        v & packetIDMask,
		SenderSubClient: uint8((v >> senderSubShift) & subClientMask),
		TargetSubClient: uint8((v >> targetSubShift) & subClientMask),
	}
	return h, next, nil
}

// Packet is one decoded game packet awaiting dispatch: its header plus
// the still-encoded body (VarInt/VarLong fields decoded lazily by the
// handler registered for its id).
type Packet struct {
	Header Header
	Body   []byte
}

// EncodePacket serializes a packet as VarInt length prefix, VarInt
// header, then body, appending it to buf.
func EncodePacket(buf []byte, p Packet) []byte {
	headerAndBody := p.Header.Encode(nil)
	headerAndBody = append(headerAndBody, p.Body...)
	buf = PutVarUint32(buf, uint32(len(headerAndBody)))
	return append(buf, headerAndBody...)
}

// DecodePackets splits a decompressed, decrypted batch body into its
// individual VarInt-length-prefixed packets.
func DecodePackets(buf []byte) ([]Packet, error) {
	var packets []Packet
	offset := 0
	for offset < len(buf) {
		length, next, err := VarUint32(buf, offset)
		if err != nil {
			return nil, malformed("packet length")
		}
		offset = next
		if offset+int(length) > len(buf) {
			return nil, malformed("truncated packet body")
		}
		body := buf[offset : offset+int(length)]
		offset += int(length)

		header, bodyOffset, err := DecodeHeader(body, 0)
		if err != nil {
			return nil, malformed("packet header")
		}
		packets = append(packets, Packet{Header: header, Body: body[bodyOffset:]})
	}
	return packets, nil
}

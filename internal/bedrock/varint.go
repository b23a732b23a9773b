// Package bedrock implements the game-packet pipeline and session
// state machine that sit on top of the RakNet reliability layer:
// batch framing, compression, encryption, and VarInt-based packet
// header decoding, dispatched by packet id per spec.md §4.4/§4.5.
package bedrock

import "github.com/pkg/errors"

// ErrVarIntOverflow is returned when a VarInt/VarLong's continuation
// bit keeps firing past the maximum number of bytes for its width.
var ErrVarIntOverflow = errors.New("bedrock: varint overflow")

// PutVarUint32 appends v to buf as an unsigned VarInt: 7 bits per
// byte, little-endian, continuation in the top bit.
func PutVarUint32(buf []byte, v uint32) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

// VarUint32 reads an unsigned VarInt from buf starting at offset,
// returning the value and the offset of the next field.
func VarUint32(buf []byte, offset int) (uint32, int, error) {
	var v uint32
	for i := 0; i < 5; i++ {
		if offset+i >= len(buf) {
			return 0, offset, errors.New("bedrock: truncated varint")
		}
		b := buf[offset+i]
		v |= uint32(b&0x7F) << (7 * i)
		if b&0x80 == 0 {
			return v, offset + i + 1, nil
		}
	}
	return 0, offset, ErrVarIntOverflow
}

// PutVarInt32 zigzag-encodes a signed value and writes it as a VarInt.
func PutVarInt32(buf []byte, v int32) []byte {
	return PutVarUint32(buf, zigzagEncode32(v))
}

// VarInt32 reads a zigzag-encoded signed VarInt.
func VarInt32(buf []byte, offset int) (int32, int, error) {
	u, next, err := VarUint32(buf, offset)
	if err != nil {
		return 0, offset, err
	}
	return zigzagDecode32(u), next, nil
}

func zigzagEncode32(v int32) uint32 {
	return uint32((v << 1) ^ (v >> 31))
}

func zigzagDecode32(v uint32) int32 {
	return int32(v>>1) ^ -int32(v&1)
}

// PutVarUint64 appends v to buf as an unsigned 64-bit VarInt.
func PutVarUint64(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

// VarUint64 reads an unsigned 64-bit VarInt.
func VarUint64(buf []byte, offset int) (uint64, int, error) {
	var v uint64
	for i := 0; i < 10; i++ {
		if offset+i >= len(buf) {
			return 0, offset, errors.New("bedrock: truncated varlong")
		}
		b := buf[offset+i]
		v |= uint64(b&0x7F) << (7 * i)
		if b&0x80 == 0 {
			return v, offset + i + 1, nil
		}
	}
	return 0, offset, ErrVarIntOverflow
}

// PutVarInt64 zigzag-encodes a signed 64-bit value as a VarLong.
func PutVarInt64(buf []byte, v int64) []byte {
	return PutVarUint64(buf, zigzagEncode64(v))
}

// VarInt64 reads a zigzag-encoded signed VarLong.
func VarInt64(buf []byte, offset int) (int64, int, error) {
	u, next, err := VarUint64(buf, offset)
	if err != nil {
		return 0, offset, err
	}
	return zigzagDecode64(u), next, nil
}

func zigzagEncode64(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

func zigzagDecode64(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}

// PutString appends a VarInt length prefix followed by the UTF-8 bytes
// of s.
func PutString(buf []byte, s string) []byte {
	buf = PutVarUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

// String reads a VarInt-length-prefixed UTF-8 string.
func String(buf []byte, offset int) (string, int, error) {
	n, next, err := VarUint32(buf, offset)
	if err != nil {
		return "", offset, err
	}
	if next+int(n) > len(buf) {
		return "", offset, errors.New("bedrock: truncated string")
	}
	return string(buf[next : next+int(n)]), next + int(n), nil
}

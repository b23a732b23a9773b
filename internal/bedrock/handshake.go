package bedrock

import (
	"encoding/binary"
	"math"
)

// PlayStatusCode is the status value carried by a PlayStatus packet.
type PlayStatusCode int32

const (
	PlayStatusLoginSuccess           PlayStatusCode = 0
	PlayStatusFailedClient           PlayStatusCode = 1
	PlayStatusFailedServer           PlayStatusCode = 2
	PlayStatusPlayerSpawn            PlayStatusCode = 3
	PlayStatusFailedInvalidTenant    PlayStatusCode = 4
	PlayStatusFailedVanillaEdu       PlayStatusCode = 5
	PlayStatusFailedIncompatiblePack PlayStatusCode = 8
)

func encodePlayStatus(code PlayStatusCode) []byte {
	body := make([]byte, 4)
	binary.BigEndian.PutUint32(body, uint32(code))
	return body
}

// ResourcePackResponseStatus is the status byte of a
// ResourcePackClientResponse packet.
type ResourcePackResponseStatus byte

const (
	ResourcePackResponseRefused ResourcePackResponseStatus = iota + 1
	ResourcePackResponseSendPacks
	ResourcePackResponseHaveAllPacks
	ResourcePackResponseCompleted
)

func decodeResourcePackClientResponse(body []byte) (ResourcePackResponseStatus, error) {
	if len(body) < 1 {
		return 0, malformed("empty resource pack response")
	}
	return ResourcePackResponseStatus(body[0]), nil
}

// networkSettings mirrors the fields spec.md §4.4 calls out:
// compression algorithm, compression threshold, and throttle settings.
type networkSettings struct {
	CompressionThreshold uint16
	CompressionAlgorithm uint16
	ClientThrottle       bool
	ThrottleThreshold    byte
	ThrottleScalar       float32
}

func encodeNetworkSettings(ns networkSettings) []byte {
	buf := make([]byte, 0, 10)
	buf = append(buf, byte(ns.CompressionThreshold), byte(ns.CompressionThreshold>>8))
	buf = append(buf, byte(ns.CompressionAlgorithm), byte(ns.CompressionAlgorithm>>8))
	throttle := byte(0)
	if ns.ClientThrottle {
		throttle = 1
	}
	buf = append(buf, throttle, ns.ThrottleThreshold)
	bits := math.Float32bits(ns.ThrottleScalar)
	buf = append(buf, byte(bits), byte(bits>>8), byte(bits>>16), byte(bits>>24))
	return buf
}

// decodeRequestNetworkSettings reads the single big-endian int32
// client protocol field.
func decodeRequestNetworkSettings(body []byte) (int32, error) {
	if len(body) < 4 {
		return 0, malformed("truncated request network settings")
	}
	return int32(binary.BigEndian.Uint32(body)), nil
}

func encodeServerToClientHandshake(jwt string) []byte {
	return PutString(nil, jwt)
}

// encodeResourcePacksInfo emits the minimal placeholder body spec.md
// §1 allows: no behavior/resource packs, no forced acceptance. Full
// resource-pack transfer semantics are a stated Non-goal.
func encodeResourcePacksInfo() []byte {
	buf := []byte{0} // must-accept = false
	buf = append(buf, 0, 0) // behavior pack count (uint16 LE)
	buf = append(buf, 0, 0) // resource pack count (uint16 LE)
	return buf
}

func encodeResourcePackStack() []byte {
	buf := []byte{0}       // must-accept = false
	buf = append(buf, 0)   // behavior pack count (VarInt)
	buf = append(buf, 0)   // resource pack count (VarInt)
	buf = PutString(buf, "*") // game version
	return buf
}

func encodeDisconnect(message string, hideScreen bool) ([]byte, error) {
	if message == "" {
		return nil, ErrEmptyDisconnectMessage
	}
	buf := []byte{0}
	if hideScreen {
		buf[0] = 1
	}
	return PutString(buf, message), nil
}

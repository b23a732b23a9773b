package bedrock

import (
	"bytes"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/flate"
	"github.com/pkg/errors"
)

// CompressionAlgorithm selects which codec compresses a game-packet
// batch above the negotiated threshold, per spec.md §4.5/§6.
type CompressionAlgorithm uint8

const (
	CompressionNone CompressionAlgorithm = iota
	CompressionDeflate
	CompressionSnappy
)

// batchPrefix is the byte that marks the start of a connected-mode
// payload as a game-packet batch, distinguishing it from any other use
// of the reliable channel (spec.md §6).
const batchPrefix byte = 0xFE

// Encryptor performs the AES-GCM encrypt/decrypt operations the batch
// codec calls once a session's handshake installs one. A direction's
// counter is threaded through explicitly so the codec — not the
// encryptor — owns counter bookkeeping and can detect skew per §4.5.
type Encryptor interface {
	Encrypt(counter uint64, plaintext []byte) ([]byte, error)
	Decrypt(counter uint64, ciphertext []byte) ([]byte, error)
}

// Codec encodes and decodes game-packet batches for one session,
// tracking independent send/receive AES-GCM counters and the
// negotiated compression algorithm/threshold.
type Codec struct {
	Compression          CompressionAlgorithm
	CompressionThreshold  int
	Encryptor             Encryptor

	sendCounter uint64
	recvCounter uint64
}

// EncodeBatch serializes packets into a single outbound payload: VarInt
// header + body for each packet, concatenated, optionally compressed
// above the threshold, prefixed with 0xFE, then optionally encrypted.
//
// Whether this particular batch ended up compressed depends on its
// uncompressed size against the threshold, so the decision can't be
// re-derived from the wire bytes on the receiving end — a one-byte
// algorithm marker is written right after the 0xFE prefix (CompressionNone
// when the batch stayed under threshold) so DecodeBatch never has to
// guess.
func (c *Codec) EncodeBatch(packets []Packet) ([]byte, error) {
	var body []byte
	for _, p := range packets {
		body = EncodePacket(body, p)
	}

	alg := CompressionNone
	if c.Compression != CompressionNone && len(body) >= c.CompressionThreshold {
		compressed, err := compress(c.Compression, body)
		if err != nil {
			return nil, errors.Wrap(err, "bedrock: compress batch")
		}
		body = compressed
		alg = c.Compression
	}

	out := make([]byte, 0, len(body)+2)
	out = append(out, batchPrefix, byte(alg))
	out = append(out, body...)

	if c.Encryptor != nil {
		ciphertext, err := c.Encryptor.Encrypt(c.sendCounter, out)
		if err != nil {
			return nil, errors.Wrap(err, "bedrock: encrypt batch")
		}
		c.sendCounter++
		return ciphertext, nil
	}
	return out, nil
}

// DecodeBatch reverses EncodeBatch: decrypt (if an encryptor is
// installed), strip the 0xFE prefix and compression marker, decompress
// per that marker, then split the body into individual packets.
func (c *Codec) DecodeBatch(payload []byte) ([]Packet, error) {
	if c.Encryptor != nil {
		plaintext, err := c.Encryptor.Decrypt(c.recvCounter, payload)
		if err != nil {
			return nil, errors.Wrap(ErrEncryptionFailure, err.Error())
		}
		c.recvCounter++
		payload = plaintext
	}

	if len(payload) < 2 || payload[0] != batchPrefix {
		return nil, malformed("missing batch prefix")
	}
	alg := CompressionAlgorithm(payload[1])
	body := payload[2:]

	if alg != CompressionNone {
		decompressed, err := decompress(alg, body)
		if err != nil {
			return nil, errors.Wrap(ErrMalformed, "decompress batch: "+err.Error())
		}
		body = decompressed
	}

	return DecodePackets(body)
}

func compress(alg CompressionAlgorithm, data []byte) ([]byte, error) {
	switch alg {
	case CompressionDeflate:
		var buf bytes.Buffer
		w, err := flate.NewWriter(&buf, flate.DefaultCompression)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CompressionSnappy:
		return snappy.Encode(nil, data), nil
	default:
		return data, nil
	}
}

func decompress(alg CompressionAlgorithm, data []byte) ([]byte, error) {
	switch alg {
	case CompressionDeflate:
		r := flate.NewReader(bytes.NewReader(data))
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		return out, nil
	case CompressionSnappy:
		return snappy.Decode(nil, data)
	default:
		return data, nil
	}
}

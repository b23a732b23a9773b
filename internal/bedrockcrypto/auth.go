package bedrockcrypto

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/voidworks/bedrockd/internal/bedrock"
	"github.com/voidworks/bedrockd/internal/raknet"
)

// ErrMalformedLogin is returned when a Login packet body doesn't carry
// the fields this narrow authenticator expects.
var ErrMalformedLogin = errors.New("bedrockcrypto: malformed login body")

// LoginAuthenticator implements internal/bedrock.Authenticator. Full
// identity-chain/JWT verification against Mojang's trust chain is a
// stated Non-goal (spec.md §1: crypto primitives "consumed via narrow
// interfaces"); this reads the three fields the rest of the handshake
// actually needs — display name, a stable identity UUID, and the
// client's ECDH public key — from a flat VarInt-string-framed body,
// the same shape gophertunnel's jwt-verified Login carries once its
// claims are parsed (see other_examples' minecraft-conn.go
// handleLogin, which extracts identity + public key from the verified
// chain before anything else happens).
type LoginAuthenticator struct{}

// Authenticate decodes (display name, identity uuid string, public
// key bytes) in sequence, each VarInt-length-prefixed, and returns the
// parsed Identity plus the raw public key for the key exchange.
func (LoginAuthenticator) Authenticate(loginBody []byte) (raknet.Identity, []byte, error) {
	name, offset, err := bedrock.String(loginBody, 0)
	if err != nil {
		return raknet.Identity{}, nil, errors.Wrap(ErrMalformedLogin, "display name")
	}
	idStr, offset, err := bedrock.String(loginBody, offset)
	if err != nil {
		return raknet.Identity{}, nil, errors.Wrap(ErrMalformedLogin, "identity uuid")
	}
	pubKeyLen, offset, err := bedrock.VarUint32(loginBody, offset)
	if err != nil {
		return raknet.Identity{}, nil, errors.Wrap(ErrMalformedLogin, "public key length")
	}
	if offset+int(pubKeyLen) > len(loginBody) {
		return raknet.Identity{}, nil, errors.Wrap(ErrMalformedLogin, "truncated public key")
	}
	pubKey := loginBody[offset : offset+int(pubKeyLen)]

	id, err := uuid.Parse(idStr)
	if err != nil {
		return raknet.Identity{}, nil, errors.Wrap(ErrMalformedLogin, "invalid identity uuid")
	}

	return raknet.Identity{UUID: id.String(), Name: name}, pubKey, nil
}

// SessionKeyExchange implements internal/bedrock.KeyExchange over one
// server-side ECDH handshake plus a JWT-free server token: full
// identity-chain JWT construction is out of scope for the same reason
// as LoginAuthenticator, so the handshake token is a bare UUID
// identifying this handshake rather than a signed claim chain.
type SessionKeyExchange struct {
	kex *KeyExchange
}

// NewSessionKeyExchange generates a fresh ephemeral key pair for one
// session.
func NewSessionKeyExchange() (*SessionKeyExchange, error) {
	kex, err := NewKeyExchange()
	if err != nil {
		return nil, err
	}
	return &SessionKeyExchange{kex: kex}, nil
}

// Handshake derives the shared AES key from the client's public key
// and returns a handshake token plus the resulting Encryptor.
func (s *SessionKeyExchange) Handshake(clientPublicKeyDER []byte) (string, bedrock.Encryptor, error) {
	enc, err := s.kex.DeriveSecret(clientPublicKeyDER)
	if err != nil {
		return "", nil, err
	}
	return uuid.NewString(), enc, nil
}

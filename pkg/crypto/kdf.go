// kdf.go derives the directional session keys from the KEM shared secret.
//
// The construction is HKDF (RFC 5869 extract-then-expand) instantiated over
// HMAC-SHA3-512. The salt is the fixed protocol label; the info parameter
// binds the derivation to the handshake transcript, so two sessions with the
// same shared secret but different transcripts produce independent keys.
//
// The 96-byte output splits into clientKey(32) || serverKey(32) || reserved(32).
// The client sends under clientKey and receives under serverKey; the server
// swaps the two, so each peer's outbound key is the other's inbound key.
// The reserved block is kept for a future per-session nonce base.
package crypto

import (
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"

	"github.com/qtc-project/pqnoise/internal/constants"
	qerrors "github.com/qtc-project/pqnoise/internal/errors"
)

// SessionKeys holds the two directional keys of one session. Ownership is
// exclusive to the session that derived them; Destroy must be called when the
// session ends.
type SessionKeys struct {
	ClientKey []byte // traffic client -> server
	ServerKey []byte // traffic server -> client
}

// DeriveSessionKeys derives both directional keys from the raw shared secret
// and the handshake transcript. The transcript must be byte-identical on both
// peers at the point of derivation.
//
// An output-length failure here is an initialization bug in the underlying
// hash, not a runtime condition; it is still returned as an error so the
// session can refuse to establish.
func DeriveSessionKeys(sharedSecret, transcript []byte) (*SessionKeys, error) {
	if len(sharedSecret) != constants.SharedSecretSize {
		return nil, qerrors.NewCryptoError("DeriveSessionKeys", qerrors.ErrInvalidKeySize)
	}

	info := make([]byte, 0, len(constants.KDFInfoPrefix)+len(transcript))
	info = append(info, constants.KDFInfoPrefix...)
	info = append(info, transcript...)

	r := hkdf.New(sha3.New512, sharedSecret, []byte(constants.KDFSalt), info)

	okm := make([]byte, constants.SessionKeyMaterialSize)
	if _, err := io.ReadFull(r, okm); err != nil {
		return nil, qerrors.NewCryptoError("DeriveSessionKeys", err)
	}

	keys := &SessionKeys{
		ClientKey: make([]byte, constants.SessionKeySize),
		ServerKey: make([]byte, constants.SessionKeySize),
	}
	copy(keys.ClientKey, okm[:constants.SessionKeySize])
	copy(keys.ServerKey, okm[constants.SessionKeySize:2*constants.SessionKeySize])
	Zeroize(okm)

	return keys, nil
}

// Destroy erases the key material.
func (k *SessionKeys) Destroy() {
	if k == nil {
		return
	}
	ZeroizeMultiple(k.ClientKey, k.ServerKey)
	k.ClientKey = nil
	k.ServerKey = nil
}

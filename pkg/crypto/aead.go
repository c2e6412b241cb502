// aead.go wraps ChaCha20-Poly1305 for the record layer.
//
// The wrapper carries no nonce state: nonce discipline belongs to the
// per-direction channel that owns the record counter. Nonce reuse under one
// key breaks the cipher entirely, so an AEAD must never be shared between
// directions or sessions.
package crypto

import (
	"crypto/cipher"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/qtc-project/pqnoise/internal/constants"
	qerrors "github.com/qtc-project/pqnoise/internal/errors"
)

// AEAD is a ChaCha20-Poly1305 cipher bound to one directional session key.
type AEAD struct {
	cipher cipher.AEAD
}

// NewAEAD creates an AEAD from a 32-byte session key.
func NewAEAD(key []byte) (*AEAD, error) {
	if len(key) != constants.AEADKeySize {
		return nil, qerrors.ErrInvalidKeySize
	}
	c, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, qerrors.NewCryptoError("NewAEAD", err)
	}
	return &AEAD{cipher: c}, nil
}

// Seal encrypts and authenticates plaintext under nonce, appending the result
// to dst. The caller guarantees nonce uniqueness.
func (a *AEAD) Seal(dst, nonce, plaintext, additionalData []byte) []byte {
	return a.cipher.Seal(dst, nonce, plaintext, additionalData)
}

// Open decrypts and verifies ciphertext under nonce. Authentication failure
// returns an error and no plaintext.
func (a *AEAD) Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error) {
	plaintext, err := a.cipher.Open(dst, nonce, ciphertext, additionalData)
	if err != nil {
		return nil, qerrors.ErrDecryptionFailed
	}
	return plaintext, nil
}

// Overhead returns the tag size added by Seal.
func (a *AEAD) Overhead() int {
	return a.cipher.Overhead()
}

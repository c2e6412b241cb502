// sign.go wraps Dilithium3 transcript signatures.
//
// Dilithium3 (NIST Category 3) authenticates the handshake: the server signs
// the exact transcript bytes and the client verifies against the server's
// published signature public key. Verify is deliberately a plain boolean with
// identical behavior for wrong and malformed signatures.
package crypto

import (
	"github.com/cloudflare/circl/sign/dilithium/mode3"

	"github.com/qtc-project/pqnoise/internal/constants"
	qerrors "github.com/qtc-project/pqnoise/internal/errors"
)

// SigPublicKey wraps a Dilithium3 public key.
type SigPublicKey struct {
	key *mode3.PublicKey
}

// SigSecretKey wraps a Dilithium3 secret key.
type SigSecretKey struct {
	key *mode3.PrivateKey
}

// SigKeyPair holds a Dilithium3 keypair.
type SigKeyPair struct {
	Public *SigPublicKey
	Secret *SigSecretKey
}

// GenerateSigKeyPair generates a fresh Dilithium3 keypair.
func GenerateSigKeyPair() (*SigKeyPair, error) {
	pk, sk, err := mode3.GenerateKey(Reader)
	if err != nil {
		return nil, qerrors.NewCryptoError("GenerateSigKeyPair", err)
	}
	return &SigKeyPair{
		Public: &SigPublicKey{key: pk},
		Secret: &SigSecretKey{key: sk},
	}, nil
}

// Sign signs message with the secret key and returns a detached signature.
func Sign(sk *SigSecretKey, message []byte) ([]byte, error) {
	if sk == nil || sk.key == nil {
		return nil, qerrors.ErrInvalidSecretKey
	}
	sig := make([]byte, mode3.SignatureSize)
	mode3.SignTo(sk.key, message, sig)
	return sig, nil
}

// Verify reports whether signature is a valid Dilithium3 signature of message
// under pk. Malformed input returns false the same way a wrong signature does.
func Verify(pk *SigPublicKey, message, signature []byte) bool {
	if pk == nil || pk.key == nil {
		return false
	}
	if len(signature) != mode3.SignatureSize {
		return false
	}
	return mode3.Verify(pk.key, message, signature)
}

// Bytes returns the packed public key.
func (pk *SigPublicKey) Bytes() []byte {
	if pk == nil || pk.key == nil {
		return nil
	}
	var buf [mode3.PublicKeySize]byte
	pk.key.Pack(&buf)
	return buf[:]
}

// ParseSigPublicKey unpacks a public key from its encoded form.
func ParseSigPublicKey(data []byte) (*SigPublicKey, error) {
	if len(data) != constants.SigPublicKeySize {
		return nil, qerrors.ErrInvalidPublicKey
	}
	var buf [mode3.PublicKeySize]byte
	copy(buf[:], data)
	pk := new(mode3.PublicKey)
	pk.Unpack(&buf)
	return &SigPublicKey{key: pk}, nil
}

// Bytes returns the packed secret key for persistence.
func (sk *SigSecretKey) Bytes() []byte {
	if sk == nil || sk.key == nil {
		return nil
	}
	var buf [mode3.PrivateKeySize]byte
	sk.key.Pack(&buf)
	return buf[:]
}

// ParseSigSecretKey unpacks a secret key from its encoded form.
func ParseSigSecretKey(data []byte) (*SigSecretKey, error) {
	if len(data) != constants.SigSecretKeySize {
		return nil, qerrors.ErrInvalidSecretKey
	}
	var buf [mode3.PrivateKeySize]byte
	copy(buf[:], data)
	sk := new(mode3.PrivateKey)
	sk.Unpack(&buf)
	return &SigSecretKey{key: sk}, nil
}

// Zeroize drops the secret key reference.
func (kp *SigKeyPair) Zeroize() {
	kp.Secret = nil
	kp.Public = nil
}

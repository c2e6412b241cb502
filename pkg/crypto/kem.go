// kem.go wraps the Kyber1024 key encapsulation mechanism.
//
// Kyber1024 is the NIST Category 5 parameter set of the Kyber lattice KEM.
// The wrapper hides circl's packed-array API behind typed keys with explicit
// length validation, so malformed or wrong-length input fails loudly instead
// of being decapsulated into garbage.
package crypto

import (
	"github.com/cloudflare/circl/kem/kyber/kyber1024"

	"github.com/qtc-project/pqnoise/internal/constants"
	qerrors "github.com/qtc-project/pqnoise/internal/errors"
)

// KEMPublicKey wraps a Kyber1024 public key.
type KEMPublicKey struct {
	key *kyber1024.PublicKey
}

// KEMSecretKey wraps a Kyber1024 secret key.
type KEMSecretKey struct {
	key *kyber1024.PrivateKey
}

// KEMKeyPair holds a Kyber1024 keypair.
type KEMKeyPair struct {
	Public *KEMPublicKey
	Secret *KEMSecretKey
}

// GenerateKEMKeyPair generates a fresh Kyber1024 keypair from the process
// random source.
func GenerateKEMKeyPair() (*KEMKeyPair, error) {
	pk, sk, err := kyber1024.GenerateKeyPair(Reader)
	if err != nil {
		return nil, qerrors.NewCryptoError("GenerateKEMKeyPair", err)
	}
	return &KEMKeyPair{
		Public: &KEMPublicKey{key: pk},
		Secret: &KEMSecretKey{key: sk},
	}, nil
}

// NewKEMKeyPairFromSeed deterministically derives a keypair from a 64-byte seed.
func NewKEMKeyPairFromSeed(seed []byte) (*KEMKeyPair, error) {
	if len(seed) != kyber1024.KeySeedSize {
		return nil, qerrors.ErrInvalidKeySize
	}
	pk, sk := kyber1024.NewKeyFromSeed(seed)
	return &KEMKeyPair{
		Public: &KEMPublicKey{key: pk},
		Secret: &KEMSecretKey{key: sk},
	}, nil
}

// Encapsulate produces a ciphertext for the peer and the shared secret it
// encapsulates.
func Encapsulate(pk *KEMPublicKey) (ciphertext, sharedSecret []byte, err error) {
	if pk == nil || pk.key == nil {
		return nil, nil, qerrors.ErrInvalidPublicKey
	}

	seed, err := SecureRandomBytes(kyber1024.EncapsulationSeedSize)
	if err != nil {
		return nil, nil, qerrors.NewCryptoError("Encapsulate", err)
	}

	ciphertext = make([]byte, kyber1024.CiphertextSize)
	sharedSecret = make([]byte, kyber1024.SharedKeySize)
	pk.key.EncapsulateTo(ciphertext, sharedSecret, seed)
	Zeroize(seed)

	return ciphertext, sharedSecret, nil
}

// Decapsulate recovers the shared secret from a ciphertext. A ciphertext of
// the wrong length is rejected outright; Kyber's implicit rejection means a
// well-formed ciphertext produced for a different key decapsulates to a
// pseudorandom secret that will fail at first use, not here.
func Decapsulate(sk *KEMSecretKey, ciphertext []byte) ([]byte, error) {
	if sk == nil || sk.key == nil {
		return nil, qerrors.ErrInvalidSecretKey
	}
	if len(ciphertext) != kyber1024.CiphertextSize {
		return nil, qerrors.ErrInvalidCiphertext
	}

	sharedSecret := make([]byte, kyber1024.SharedKeySize)
	sk.key.DecapsulateTo(sharedSecret, ciphertext)
	return sharedSecret, nil
}

// Bytes returns the packed public key.
func (pk *KEMPublicKey) Bytes() []byte {
	if pk == nil || pk.key == nil {
		return nil
	}
	buf := make([]byte, kyber1024.PublicKeySize)
	pk.key.Pack(buf)
	return buf
}

// ParseKEMPublicKey unpacks a public key from its encoded form.
func ParseKEMPublicKey(data []byte) (*KEMPublicKey, error) {
	if len(data) != constants.KEMPublicKeySize {
		return nil, qerrors.ErrInvalidPublicKey
	}
	pk := new(kyber1024.PublicKey)
	pk.Unpack(data)
	return &KEMPublicKey{key: pk}, nil
}

// Bytes returns the packed secret key for persistence.
func (sk *KEMSecretKey) Bytes() []byte {
	if sk == nil || sk.key == nil {
		return nil
	}
	buf := make([]byte, kyber1024.PrivateKeySize)
	sk.key.Pack(buf)
	return buf
}

// ParseKEMSecretKey unpacks a secret key from its encoded form.
func ParseKEMSecretKey(data []byte) (*KEMSecretKey, error) {
	if len(data) != constants.KEMSecretKeySize {
		return nil, qerrors.ErrInvalidSecretKey
	}
	sk := new(kyber1024.PrivateKey)
	sk.Unpack(data)
	return &KEMSecretKey{key: sk}, nil
}

// Zeroize drops the secret key reference. circl does not expose in-place
// erasure of the unpacked key schedule.
func (kp *KEMKeyPair) Zeroize() {
	kp.Secret = nil
	kp.Public = nil
}

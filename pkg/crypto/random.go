// Package crypto wraps the post-quantum and symmetric primitives used by the
// PQNoise transport: Kyber1024 key encapsulation, Dilithium3 signatures,
// HKDF-SHA3-512 key derivation, and ChaCha20-Poly1305 authenticated
// encryption. All randomness comes from crypto/rand.
package crypto

import (
	"crypto/rand"
	"io"

	qerrors "github.com/qtc-project/pqnoise/internal/errors"
)

// Reader is the process-wide secure random source. crypto/rand.Reader is
// safe for concurrent use.
var Reader = rand.Reader

// SecureRandom fills b with cryptographically secure random bytes.
// A failure means the OS CSPRNG is broken and should be treated as a
// critical system failure.
func SecureRandom(b []byte) error {
	if _, err := io.ReadFull(Reader, b); err != nil {
		return qerrors.NewCryptoError("SecureRandom", err)
	}
	return nil
}

// SecureRandomBytes returns n cryptographically secure random bytes.
func SecureRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if err := SecureRandom(b); err != nil {
		return nil, err
	}
	return b, nil
}

// MustSecureRandomBytes returns n random bytes and panics on CSPRNG failure.
// Use only where a failed random read is unrecoverable.
func MustSecureRandomBytes(n int) []byte {
	b := make([]byte, n)
	if err := SecureRandom(b); err != nil {
		panic("crypto: failed to read from CSPRNG: " + err.Error())
	}
	return b
}

// ConstantTimeCompare compares two byte slices in constant time for equal
// lengths. It returns false immediately on a length mismatch.
func ConstantTimeCompare(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}

// Zeroize overwrites sensitive data with zeros. The runtime may have copied
// the slice already; this is best effort, not a guarantee.
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ZeroizeMultiple zeroizes several byte slices.
func ZeroizeMultiple(slices ...[]byte) {
	for _, s := range slices {
		Zeroize(s)
	}
}

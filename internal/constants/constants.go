// Package constants defines security parameters and protocol constants for the
// PQNoise transport.
//
// Security Level: NIST Category 5 for the KEM (Kyber1024) and Category 3 for
// the signature (Dilithium3), matching the suite the network advertises.
package constants

import "time"

// Protocol identification
const (
	// HandshakeVersion is the wire version carried by both hello messages.
	HandshakeVersion uint16 = 0x0001

	// SuiteName identifies the negotiated primitive combination. It is
	// exposed read-only for diagnostics and never parsed.
	SuiteName = "NoisePQ_KYBER1024_DILITHIUM3_SHA3-512_CHACHA20-POLY1305"
)

// Kyber1024 parameters (matching circl's kem/kyber/kyber1024)
const (
	// KEMPublicKeySize is the size of a Kyber1024 public key in bytes.
	KEMPublicKeySize = 1568

	// KEMSecretKeySize is the size of a Kyber1024 secret key in bytes.
	KEMSecretKeySize = 3168

	// KEMCiphertextSize is the size of a Kyber1024 ciphertext in bytes.
	KEMCiphertextSize = 1568

	// SharedSecretSize is the size of the KEM shared secret in bytes.
	SharedSecretSize = 32
)

// Dilithium3 parameters (matching circl's sign/dilithium/mode3)
const (
	// SigPublicKeySize is the size of a Dilithium3 public key in bytes.
	SigPublicKeySize = 1952

	// SigSecretKeySize is the size of a Dilithium3 secret key in bytes.
	SigSecretKeySize = 4000

	// SignatureSize is the size of a Dilithium3 signature in bytes.
	SignatureSize = 3293
)

// Key derivation parameters (HKDF over HMAC-SHA3-512)
const (
	// SessionKeySize is the size of one directional session key in bytes.
	SessionKeySize = 32

	// SessionKeyMaterialSize is the total HKDF output: two directional
	// keys plus a reserved block kept for future nonce-base use.
	SessionKeyMaterialSize = 96

	// KDFSalt is the HKDF extract salt.
	KDFSalt = "PQNoise"

	// KDFInfoPrefix prefixes the transcript in the HKDF info parameter.
	KDFInfoPrefix = "Keys"
)

// Record layer parameters (ChaCha20-Poly1305)
const (
	// AEADKeySize is the ChaCha20-Poly1305 key size in bytes.
	AEADKeySize = 32

	// AEADNonceSize is the ChaCha20-Poly1305 nonce size in bytes.
	AEADNonceSize = 12

	// AEADTagSize is the Poly1305 authentication tag size in bytes.
	AEADTagSize = 16

	// RecordCounterSize is the size of the explicit record counter prefix.
	RecordCounterSize = 8

	// RecordOverhead is the fixed per-record expansion: counter plus tag.
	RecordOverhead = RecordCounterSize + AEADTagSize
)

// Handshake message layout
const (
	// ClientHelloHeaderSize is magic(4) + version(2) + ciphertext_len(2).
	ClientHelloHeaderSize = 8

	// ClientHelloPaddingSize is the trailing random padding appended to
	// every ClientHello to resist traffic analysis.
	ClientHelloPaddingSize = 32

	// ServerHelloHeaderSize is magic(4) + version(2) + status(1).
	ServerHelloHeaderSize = 7

	// MaxMessageSize bounds any single framed message on a connection.
	MaxMessageSize = 65536
)

// Rekey policy defaults
const (
	// DefaultRekeyBytes is the outbound byte volume after which the
	// session must be replaced by a fresh handshake.
	DefaultRekeyBytes = 32 << 20 // 32 MiB

	// DefaultRekeyInterval is the session age after which the session
	// must be replaced by a fresh handshake.
	DefaultRekeyInterval = 30 * time.Minute
)

// Static identity rotation schedule
const (
	// KEMRotationInterval is how often the static KEM keypair rotates.
	KEMRotationInterval = 24 * time.Hour

	// KEMRotationOverlap is how long the immediately previous KEM keypair
	// stays available for decapsulating in-flight handshakes.
	KEMRotationOverlap = 15 * time.Minute

	// SigRotationInterval is how often the signature keypair rotates.
	SigRotationInterval = 365 * 24 * time.Hour
)

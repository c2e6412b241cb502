// Package errors defines the error taxonomy for the PQNoise transport.
// Sentinel errors carry a subsystem prefix in their message; wrapper types
// add operation context without leaking key material into error text.
package errors

import (
	"errors"
	"fmt"
)

// Configuration errors: required key material missing before the handshake
// starts. Fatal for the session; the caller must not proceed.
var (
	// ErrMissingKEMPublicKey indicates the peer's static KEM public key was not configured.
	ErrMissingKEMPublicKey = errors.New("config: missing peer KEM public key")

	// ErrMissingKEMSecretKey indicates the server has no static KEM secret key.
	ErrMissingKEMSecretKey = errors.New("config: missing KEM secret key")

	// ErrMissingSigSecretKey indicates the server has no signature secret key.
	ErrMissingSigSecretKey = errors.New("config: missing signature secret key")

	// ErrMissingSigPublicKey indicates the client has no expected peer signature public key.
	ErrMissingSigPublicKey = errors.New("config: missing peer signature public key")
)

// Cryptographic operation failures.
var (
	// ErrInvalidKeySize indicates key material has an incorrect length.
	ErrInvalidKeySize = errors.New("crypto: invalid key size")

	// ErrInvalidPublicKey indicates a public key could not be parsed.
	ErrInvalidPublicKey = errors.New("crypto: invalid public key")

	// ErrInvalidSecretKey indicates a secret key could not be parsed.
	ErrInvalidSecretKey = errors.New("crypto: invalid secret key")

	// ErrInvalidCiphertext indicates a KEM ciphertext is malformed or has the wrong length.
	ErrInvalidCiphertext = errors.New("crypto: invalid KEM ciphertext")

	// ErrEncapsulationFailed indicates KEM encapsulation failed.
	ErrEncapsulationFailed = errors.New("crypto: encapsulation failed")

	// ErrDecapsulationFailed indicates KEM decapsulation failed for every configured key.
	ErrDecapsulationFailed = errors.New("crypto: decapsulation failed")

	// ErrSignFailed indicates transcript signing failed.
	ErrSignFailed = errors.New("crypto: signing failed")
)

// Protocol errors: malformed wire data. The session moves to the error state
// and the connection must be dropped.
var (
	// ErrBadMagic indicates a handshake message did not start with the expected magic.
	ErrBadMagic = errors.New("protocol: invalid magic")

	// ErrUnsupportedVersion indicates an unknown handshake version.
	ErrUnsupportedVersion = errors.New("protocol: unsupported version")

	// ErrMessageTooShort indicates a handshake message is shorter than its fixed header.
	ErrMessageTooShort = errors.New("protocol: message too short")

	// ErrMessageTooLarge indicates a framed message exceeds the maximum size.
	ErrMessageTooLarge = errors.New("protocol: message too large")

	// ErrCiphertextTruncated indicates the declared KEM ciphertext length
	// exceeds the bytes actually present.
	ErrCiphertextTruncated = errors.New("protocol: ciphertext truncated")

	// ErrSignatureTruncated indicates a ServerHello too short to carry a full signature.
	ErrSignatureTruncated = errors.New("protocol: signature truncated")

	// ErrInvalidState indicates a handshake message arrived in the wrong state.
	ErrInvalidState = errors.New("protocol: invalid state")
)

// Handshake outcome errors.
var (
	// ErrHandshakeRejected indicates the server answered with a nonzero status byte.
	ErrHandshakeRejected = errors.New("handshake: server rejected handshake")

	// ErrAuthenticationFailed indicates the server signature did not verify.
	// Treated as a potential active man-in-the-middle indicator.
	ErrAuthenticationFailed = errors.New("handshake: invalid server signature, possible MitM")
)

// Record layer errors.
var (
	// ErrNotEstablished indicates Seal or Open was called before the handshake completed.
	ErrNotEstablished = errors.New("channel: session not established")

	// ErrRecordTooShort indicates a record shorter than counter plus tag.
	ErrRecordTooShort = errors.New("channel: record too short")

	// ErrReplayOrDesync indicates a record counter that is not the next
	// expected value: a replay, reordering, or stream desynchronization.
	ErrReplayOrDesync = errors.New("channel: record counter mismatch")

	// ErrDecryptionFailed indicates AEAD authentication failed on Open.
	ErrDecryptionFailed = errors.New("channel: decryption failed")
)

// Connection errors.
var (
	// ErrConnClosed indicates the connection has been closed.
	ErrConnClosed = errors.New("conn: connection closed")
)

// CryptoError wraps a cryptographic failure with the operation that produced it.
type CryptoError struct {
	Op  string
	Err error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error {
	return e.Err
}

// NewCryptoError creates a CryptoError.
func NewCryptoError(op string, err error) *CryptoError {
	return &CryptoError{Op: op, Err: err}
}

// ProtocolError wraps a protocol failure with the handshake phase it occurred in.
type ProtocolError struct {
	Phase string
	Err   error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol %s: %v", e.Phase, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// NewProtocolError creates a ProtocolError.
func NewProtocolError(phase string, err error) *ProtocolError {
	return &ProtocolError{Phase: phase, Err: err}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

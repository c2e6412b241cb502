package protocol

import (
	"github.com/qtc-project/pqnoise/internal/constants"
	qerrors "github.com/qtc-project/pqnoise/internal/errors"
)

// Handshake status byte values carried by ServerHello.
const (
	// StatusOK indicates the server accepted the handshake.
	StatusOK byte = 0x00
	// StatusRejected indicates a generic server-side rejection.
	StatusRejected byte = 0x01
)

// ClientHello carries the KEM ciphertext the client encapsulated to the
// server's static public key, plus random padding against traffic analysis.
type ClientHello struct {
	// Ciphertext is the KEM ciphertext (length-prefixed on the wire).
	Ciphertext []byte

	// Padding is 32 bytes of random data, ignored by the receiver.
	Padding []byte
}

// Validate checks the message is encodable.
func (m *ClientHello) Validate() error {
	if len(m.Ciphertext) == 0 || len(m.Ciphertext) > 0xFFFF {
		return qerrors.ErrInvalidCiphertext
	}
	if len(m.Padding) != constants.ClientHelloPaddingSize {
		return qerrors.NewProtocolError("clienthello", qerrors.ErrMessageTooShort)
	}
	return nil
}

// ServerHello carries the server's status byte and, on success, the
// Dilithium3 signature over the exact ClientHello bytes it received.
type ServerHello struct {
	// Status is zero on success; any nonzero value aborts the handshake.
	Status byte

	// Signature is the transcript signature. Empty when Status is nonzero.
	Signature []byte
}

// Validate checks the message is encodable.
func (m *ServerHello) Validate() error {
	if m.Status == StatusOK && len(m.Signature) != constants.SignatureSize {
		return qerrors.ErrSignatureTruncated
	}
	return nil
}

// codec.go serializes and parses the two handshake messages.
//
// Decoding never reads past the declared lengths: a ClientHello whose
// ciphertext length field exceeds the remaining buffer is rejected as
// truncated, deterministically, before any slice indexing.
package protocol

import (
	"encoding/binary"

	"github.com/qtc-project/pqnoise/internal/constants"
	qerrors "github.com/qtc-project/pqnoise/internal/errors"
)

// Codec encodes and decodes handshake messages.
type Codec struct{}

// NewCodec creates a protocol codec.
func NewCodec() *Codec {
	return &Codec{}
}

// EncodeClientHello serializes a ClientHello.
func (c *Codec) EncodeClientHello(m *ClientHello) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	buf := make([]byte, 0, constants.ClientHelloHeaderSize+len(m.Ciphertext)+len(m.Padding))
	buf = append(buf, Magic[:]...)
	buf = binary.BigEndian.AppendUint16(buf, Version)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(m.Ciphertext)))
	buf = append(buf, m.Ciphertext...)
	buf = append(buf, m.Padding...)
	return buf, nil
}

// DecodeClientHello parses a ClientHello. Trailing padding is accepted and
// discarded regardless of its length.
func (c *Codec) DecodeClientHello(data []byte) (*ClientHello, error) {
	if len(data) < constants.ClientHelloHeaderSize {
		return nil, qerrors.NewProtocolError("clienthello", qerrors.ErrMessageTooShort)
	}
	if !hasMagic(data) {
		return nil, qerrors.NewProtocolError("clienthello", qerrors.ErrBadMagic)
	}
	if binary.BigEndian.Uint16(data[4:6]) != Version {
		return nil, qerrors.NewProtocolError("clienthello", qerrors.ErrUnsupportedVersion)
	}

	ctLen := int(binary.BigEndian.Uint16(data[6:8]))
	if len(data) < constants.ClientHelloHeaderSize+ctLen {
		return nil, qerrors.NewProtocolError("clienthello", qerrors.ErrCiphertextTruncated)
	}

	m := &ClientHello{
		Ciphertext: make([]byte, ctLen),
	}
	copy(m.Ciphertext, data[constants.ClientHelloHeaderSize:constants.ClientHelloHeaderSize+ctLen])
	return m, nil
}

// EncodeServerHello serializes a ServerHello.
func (c *Codec) EncodeServerHello(m *ServerHello) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	buf := make([]byte, 0, constants.ServerHelloHeaderSize+len(m.Signature))
	buf = append(buf, Magic[:]...)
	buf = binary.BigEndian.AppendUint16(buf, Version)
	buf = append(buf, m.Status)
	buf = append(buf, m.Signature...)
	return buf, nil
}

// DecodeServerHello parses a ServerHello. A success status requires a full
// signature; a rejection is valid without one.
func (c *Codec) DecodeServerHello(data []byte) (*ServerHello, error) {
	if len(data) < constants.ServerHelloHeaderSize {
		return nil, qerrors.NewProtocolError("serverhello", qerrors.ErrMessageTooShort)
	}
	if !hasMagic(data) {
		return nil, qerrors.NewProtocolError("serverhello", qerrors.ErrBadMagic)
	}
	if binary.BigEndian.Uint16(data[4:6]) != Version {
		return nil, qerrors.NewProtocolError("serverhello", qerrors.ErrUnsupportedVersion)
	}

	m := &ServerHello{Status: data[6]}
	if m.Status != StatusOK {
		return m, nil
	}

	if len(data) < constants.ServerHelloHeaderSize+constants.SignatureSize {
		return nil, qerrors.NewProtocolError("serverhello", qerrors.ErrSignatureTruncated)
	}
	m.Signature = make([]byte, constants.SignatureSize)
	copy(m.Signature, data[constants.ServerHelloHeaderSize:constants.ServerHelloHeaderSize+constants.SignatureSize])
	return m, nil
}

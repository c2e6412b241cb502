// Package protocol defines the bit-exact wire format of the PQNoise
// handshake.
//
// Both handshake messages start with the network magic and a 2-byte version:
//
//	ClientHello:
//	+-------+---------+--------+----------------+---------+
//	| Magic | Version | CTLen  | KEM ciphertext | Padding |
//	| 4B    | 2B      | 2B BE  | CTLen bytes    | 32B     |
//	+-------+---------+--------+----------------+---------+
//
//	ServerHello:
//	+-------+---------+--------+--------------------------+
//	| Magic | Version | Status | Dilithium3 signature     |
//	| 4B    | 2B      | 1B     | 3293B                    |
//	+-------+---------+--------+--------------------------+
//
// The ciphertext length is an explicit big-endian uint16 so the framing stays
// agnostic to the concrete KEM parameter set. The padding is random and
// ignored by the receiver. A nonzero status byte aborts the handshake.
package protocol

import "github.com/qtc-project/pqnoise/internal/constants"

// Magic is the 4-byte network magic opening every handshake message.
var Magic = [4]byte{0xF9, 0xBE, 0xB4, 0xD9}

// Version is the current handshake version.
const Version = constants.HandshakeVersion

// hasMagic reports whether data starts with the network magic.
func hasMagic(data []byte) bool {
	return len(data) >= 4 &&
		data[0] == Magic[0] && data[1] == Magic[1] &&
		data[2] == Magic[2] && data[3] == Magic[3]
}

// IsHandshakeMessage reports whether a framed payload looks like a handshake
// message rather than an application record. Application records begin with a
// little-endian 64-bit counter; the rekey thresholds replace a session long
// before its counter could collide with the magic prefix.
func IsHandshakeMessage(data []byte) bool {
	return hasMagic(data)
}

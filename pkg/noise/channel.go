// channel.go implements the per-direction authenticated record channel.
//
// Record format:
//
//	+---------------+------------------+-----------+
//	| Counter       | Ciphertext       | Tag       |
//	| 8B LE         | len(plaintext)   | 16B       |
//	+---------------+------------------+-----------+
//
// Each direction owns a 64-bit counter starting at zero. The counter doubles
// as the explicit record prefix and as the AEAD nonce (little-endian in the
// first 8 of 12 nonce bytes). Open requires an exact counter match before any
// decryption is attempted: replayed, reordered, or desynchronized records are
// rejected without touching the cipher. This trades tolerance of lossy
// transports for maximal replay resistance; a bounded replay window would be
// an explicit extension, not a default.
//
// A Channel performs no internal locking. The two directions of a session are
// independent and may be driven from different goroutines, but a single
// direction's Seal/Open sequence must be serialized by its owner.
package noise

import (
	"encoding/binary"

	"github.com/qtc-project/pqnoise/internal/constants"
	qerrors "github.com/qtc-project/pqnoise/internal/errors"
	"github.com/qtc-project/pqnoise/pkg/crypto"
)

// Channel seals or opens application records for one direction of an
// established session.
type Channel struct {
	aead    *crypto.AEAD
	counter uint64
}

// newChannel creates a channel bound to one directional session key.
func newChannel(key []byte) (*Channel, error) {
	aead, err := crypto.NewAEAD(key)
	if err != nil {
		return nil, err
	}
	return &Channel{aead: aead}, nil
}

// Seal encrypts plaintext into a record. The counter increments only after a
// successful encryption, so a failed call never burns a nonce.
func (c *Channel) Seal(plaintext []byte) ([]byte, error) {
	frame := make([]byte, constants.RecordCounterSize, constants.RecordCounterSize+len(plaintext)+constants.AEADTagSize)
	binary.LittleEndian.PutUint64(frame, c.counter)

	var nonce [constants.AEADNonceSize]byte
	copy(nonce[:constants.RecordCounterSize], frame)

	frame = c.aead.Seal(frame, nonce[:], plaintext, nil)
	c.counter++
	return frame, nil
}

// Open authenticates and decrypts a record. The embedded counter must equal
// the next expected value exactly; on any mismatch the record is rejected
// with no decryption attempted. The expected counter advances only after the
// tag verifies.
func (c *Channel) Open(frame []byte) ([]byte, error) {
	if len(frame) < constants.RecordOverhead {
		return nil, qerrors.ErrRecordTooShort
	}

	if binary.LittleEndian.Uint64(frame[:constants.RecordCounterSize]) != c.counter {
		return nil, qerrors.ErrReplayOrDesync
	}

	var nonce [constants.AEADNonceSize]byte
	copy(nonce[:constants.RecordCounterSize], frame)

	plaintext, err := c.aead.Open(nil, nonce[:], frame[constants.RecordCounterSize:], nil)
	if err != nil {
		return nil, err
	}
	c.counter++
	return plaintext, nil
}

// Counter returns the next counter value for this direction: records sealed
// so far on the outbound side, records accepted on the inbound side.
func (c *Channel) Counter() uint64 {
	return c.counter
}

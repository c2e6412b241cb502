package noise

import (
	"time"

	"github.com/qtc-project/pqnoise/internal/constants"
)

// RekeyPolicy decides when a session has carried enough traffic, or lived
// long enough, that its keys should be replaced by a fresh handshake. The
// policy only advises; enforcement belongs to the connection layer, which
// runs a new handshake and swaps sessions atomically.
type RekeyPolicy struct {
	// ByteThreshold is the number of plaintext bytes sent under one key
	// before a rekey is due. Zero disables the byte trigger.
	ByteThreshold uint64

	// TimeThreshold is how long a key may stay in use. Zero disables the
	// time trigger.
	TimeThreshold time.Duration
}

// DefaultRekeyPolicy returns the standard thresholds: 32 MiB of plaintext
// or 30 minutes of key lifetime, whichever comes first.
func DefaultRekeyPolicy() RekeyPolicy {
	return RekeyPolicy{
		ByteThreshold: constants.DefaultRekeyBytes,
		TimeThreshold: constants.DefaultRekeyInterval,
	}
}

// ShouldRekey reports whether either threshold has been reached. Thresholds
// trigger at their exact value, not only above it.
func (p RekeyPolicy) ShouldRekey(bytesSent uint64, elapsed time.Duration) bool {
	if p.ByteThreshold > 0 && bytesSent >= p.ByteThreshold {
		return true
	}
	if p.TimeThreshold > 0 && elapsed >= p.TimeThreshold {
		return true
	}
	return false
}

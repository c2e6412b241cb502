// Package metrics provides observability for the pqnoise library: an
// atomic-counter collector, Prometheus export, structured logging via zap,
// and optional OpenTelemetry tracing behind the otel build tag.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector aggregates counters from sessions and connections. All methods
// are safe for concurrent use.
type Collector struct {
	handshakesAttempted atomic.Uint64
	handshakesSucceeded atomic.Uint64
	handshakesFailed    atomic.Uint64
	handshakeLatency    *Histogram

	bytesEncrypted atomic.Uint64
	bytesDecrypted atomic.Uint64
	recordsSealed  atomic.Uint64
	recordsOpened  atomic.Uint64

	replaysBlocked  atomic.Uint64
	authFailures    atomic.Uint64
	rekeysPerformed atomic.Uint64

	sessionsActive atomic.Uint64
	sessionsTotal  atomic.Uint64

	createdAt time.Time
}

// HandshakeLatencyBuckets are the default histogram bounds for handshake
// duration, in milliseconds. The upper range accounts for slow links: a
// Kyber1024 ciphertext plus a Dilithium3 signature is ~5 KB of handshake
// traffic.
var HandshakeLatencyBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		handshakeLatency: NewHistogram(HandshakeLatencyBuckets),
		createdAt:        time.Now(),
	}
}

// HandshakeAttempted increments the handshake attempt counter.
func (c *Collector) HandshakeAttempted() { c.handshakesAttempted.Add(1) }

// HandshakeSucceeded increments the successful handshake counter.
func (c *Collector) HandshakeSucceeded() { c.handshakesSucceeded.Add(1) }

// HandshakeFailed increments the failed handshake counter.
func (c *Collector) HandshakeFailed() { c.handshakesFailed.Add(1) }

// ObserveHandshakeLatency records a handshake duration.
func (c *Collector) ObserveHandshakeLatency(d time.Duration) {
	c.handshakeLatency.Observe(float64(d.Milliseconds()))
}

// AddBytesEncrypted adds plaintext bytes sealed and counts the record.
func (c *Collector) AddBytesEncrypted(n uint64) {
	c.bytesEncrypted.Add(n)
	c.recordsSealed.Add(1)
}

// AddBytesDecrypted adds plaintext bytes opened and counts the record.
func (c *Collector) AddBytesDecrypted(n uint64) {
	c.bytesDecrypted.Add(n)
	c.recordsOpened.Add(1)
}

// ReplayBlocked increments the replay/desync counter.
func (c *Collector) ReplayBlocked() { c.replaysBlocked.Add(1) }

// AuthFailed increments the authentication failure counter.
func (c *Collector) AuthFailed() { c.authFailures.Add(1) }

// RekeyPerformed increments the rekey counter.
func (c *Collector) RekeyPerformed() { c.rekeysPerformed.Add(1) }

// SessionStarted increments the active gauge and the lifetime total.
func (c *Collector) SessionStarted() {
	c.sessionsActive.Add(1)
	c.sessionsTotal.Add(1)
}

// SessionEnded decrements the active gauge, saturating at zero.
func (c *Collector) SessionEnded() {
	for {
		cur := c.sessionsActive.Load()
		if cur == 0 {
			return
		}
		if c.sessionsActive.CompareAndSwap(cur, cur-1) {
			return
		}
	}
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Timestamp time.Time
	Uptime    time.Duration

	HandshakesAttempted uint64
	HandshakesSucceeded uint64
	HandshakesFailed    uint64
	HandshakeLatency    HistogramSummary

	BytesEncrypted uint64
	BytesDecrypted uint64
	RecordsSealed  uint64
	RecordsOpened  uint64

	ReplaysBlocked  uint64
	AuthFailures    uint64
	RekeysPerformed uint64

	SessionsActive uint64
	SessionsTotal  uint64
}

// Snapshot returns a consistent-enough copy of the counters. Individual
// loads are atomic; the set as a whole is not taken under one lock.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		Timestamp:           time.Now(),
		Uptime:              time.Since(c.createdAt),
		HandshakesAttempted: c.handshakesAttempted.Load(),
		HandshakesSucceeded: c.handshakesSucceeded.Load(),
		HandshakesFailed:    c.handshakesFailed.Load(),
		HandshakeLatency:    c.handshakeLatency.Summary(),
		BytesEncrypted:      c.bytesEncrypted.Load(),
		BytesDecrypted:      c.bytesDecrypted.Load(),
		RecordsSealed:       c.recordsSealed.Load(),
		RecordsOpened:       c.recordsOpened.Load(),
		ReplaysBlocked:      c.replaysBlocked.Load(),
		AuthFailures:        c.authFailures.Load(),
		RekeysPerformed:     c.rekeysPerformed.Load(),
		SessionsActive:      c.sessionsActive.Load(),
		SessionsTotal:       c.sessionsTotal.Load(),
	}
}

// Reset zeroes all counters. Intended for tests.
func (c *Collector) Reset() {
	c.handshakesAttempted.Store(0)
	c.handshakesSucceeded.Store(0)
	c.handshakesFailed.Store(0)
	c.handshakeLatency.Reset()
	c.bytesEncrypted.Store(0)
	c.bytesDecrypted.Store(0)
	c.recordsSealed.Store(0)
	c.recordsOpened.Store(0)
	c.replaysBlocked.Store(0)
	c.authFailures.Store(0)
	c.rekeysPerformed.Store(0)
	c.sessionsActive.Store(0)
	c.sessionsTotal.Store(0)
	c.createdAt = time.Now()
}

var (
	globalCollector     *Collector
	globalCollectorOnce sync.Once
)

// Global returns the process-wide collector, creating it on first use.
func Global() *Collector {
	globalCollectorOnce.Do(func() {
		globalCollector = NewCollector()
	})
	return globalCollector
}

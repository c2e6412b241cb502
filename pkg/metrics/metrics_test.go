package metrics_test

import (
	"sync"
	"testing"
	"time"

	"github.com/qtc-project/pqnoise/pkg/metrics"
)

func TestCollectorCounters(t *testing.T) {
	c := metrics.NewCollector()

	c.HandshakeAttempted()
	c.HandshakeAttempted()
	c.HandshakeSucceeded()
	c.HandshakeFailed()
	c.AddBytesEncrypted(100)
	c.AddBytesEncrypted(50)
	c.AddBytesDecrypted(75)
	c.ReplayBlocked()
	c.AuthFailed()
	c.RekeyPerformed()

	snap := c.Snapshot()
	if snap.HandshakesAttempted != 2 {
		t.Errorf("attempted: got %d, want 2", snap.HandshakesAttempted)
	}
	if snap.HandshakesSucceeded != 1 {
		t.Errorf("succeeded: got %d, want 1", snap.HandshakesSucceeded)
	}
	if snap.HandshakesFailed != 1 {
		t.Errorf("failed: got %d, want 1", snap.HandshakesFailed)
	}
	if snap.BytesEncrypted != 150 {
		t.Errorf("bytes encrypted: got %d, want 150", snap.BytesEncrypted)
	}
	if snap.RecordsSealed != 2 {
		t.Errorf("records sealed: got %d, want 2", snap.RecordsSealed)
	}
	if snap.BytesDecrypted != 75 {
		t.Errorf("bytes decrypted: got %d, want 75", snap.BytesDecrypted)
	}
	if snap.ReplaysBlocked != 1 || snap.AuthFailures != 1 || snap.RekeysPerformed != 1 {
		t.Error("security counters wrong")
	}
}

func TestCollectorSessionGauge(t *testing.T) {
	c := metrics.NewCollector()

	c.SessionStarted()
	c.SessionStarted()
	c.SessionEnded()

	snap := c.Snapshot()
	if snap.SessionsActive != 1 {
		t.Errorf("active: got %d, want 1", snap.SessionsActive)
	}
	if snap.SessionsTotal != 2 {
		t.Errorf("total: got %d, want 2", snap.SessionsTotal)
	}

	// The gauge saturates at zero instead of wrapping.
	c.SessionEnded()
	c.SessionEnded()
	if got := c.Snapshot().SessionsActive; got != 0 {
		t.Errorf("saturated gauge: got %d, want 0", got)
	}
}

func TestCollectorHandshakeLatency(t *testing.T) {
	c := metrics.NewCollector()
	c.ObserveHandshakeLatency(10 * time.Millisecond)
	c.ObserveHandshakeLatency(30 * time.Millisecond)

	summary := c.Snapshot().HandshakeLatency
	if summary.Count != 2 {
		t.Errorf("latency observations: got %d, want 2", summary.Count)
	}
	if summary.Sum != 40 {
		t.Errorf("latency sum: got %v, want 40", summary.Sum)
	}
}

func TestCollectorConcurrentUse(t *testing.T) {
	c := metrics.NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.AddBytesEncrypted(1)
				c.SessionStarted()
				c.SessionEnded()
			}
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	if snap.BytesEncrypted != 8000 {
		t.Errorf("bytes encrypted: got %d, want 8000", snap.BytesEncrypted)
	}
	if snap.SessionsActive != 0 {
		t.Errorf("active sessions: got %d, want 0", snap.SessionsActive)
	}
}

func TestCollectorReset(t *testing.T) {
	c := metrics.NewCollector()
	c.HandshakeAttempted()
	c.AddBytesEncrypted(10)
	c.Reset()

	snap := c.Snapshot()
	if snap.HandshakesAttempted != 0 || snap.BytesEncrypted != 0 {
		t.Error("Reset left counters nonzero")
	}
}

func TestGlobalCollectorSingleton(t *testing.T) {
	if metrics.Global() != metrics.Global() {
		t.Error("Global returned different collectors")
	}
}

package metrics

import (
	"math"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Algorithm label values for the per-suite metrics.
const (
	labelKEM  = "kyber1024"
	labelAEAD = "chacha20poly1305"
)

// PrometheusBridge exposes a Collector's counters as Prometheus metrics.
// It reads the atomic counters at scrape time, so there is no double
// bookkeeping between the in-process collector and the exporter.
type PrometheusBridge struct {
	collector *Collector

	handshakesAttempted *prometheus.Desc
	handshakesSucceeded *prometheus.Desc
	handshakesFailed    *prometheus.Desc
	handshakeLatency    *prometheus.Desc
	bytesEncrypted      *prometheus.Desc
	bytesDecrypted      *prometheus.Desc
	recordsSealed       *prometheus.Desc
	recordsOpened       *prometheus.Desc
	replaysBlocked      *prometheus.Desc
	authFailures        *prometheus.Desc
	rekeysPerformed     *prometheus.Desc
	sessionsActive      *prometheus.Desc
	sessionsTotal       *prometheus.Desc
	suiteHandshakes     *prometheus.Desc
	suiteSessions       *prometheus.Desc
}

// NewPrometheusBridge creates a bridge for c. The namespace is prepended to
// every metric name, e.g. "pqnoise".
func NewPrometheusBridge(c *Collector, namespace string) *PrometheusBridge {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, nil)
	}
	return &PrometheusBridge{
		collector:           c,
		handshakesAttempted: desc("handshakes_attempted_total", "Handshakes started"),
		handshakesSucceeded: desc("handshakes_succeeded_total", "Handshakes that reached the established state"),
		handshakesFailed:    desc("handshakes_failed_total", "Handshakes that ended in an error"),
		handshakeLatency:    desc("handshake_duration_milliseconds", "Handshake duration"),
		bytesEncrypted:      desc("bytes_encrypted_total", "Plaintext bytes sealed"),
		bytesDecrypted:      desc("bytes_decrypted_total", "Plaintext bytes opened"),
		recordsSealed:       desc("records_sealed_total", "Records sealed"),
		recordsOpened:       desc("records_opened_total", "Records opened"),
		replaysBlocked:      desc("replays_blocked_total", "Records rejected by the counter check"),
		authFailures:        desc("auth_failures_total", "Signature verification failures"),
		rekeysPerformed:     desc("rekeys_performed_total", "Session swaps driven by the rekey policy"),
		sessionsActive:      desc("sessions_active", "Sessions currently alive"),
		sessionsTotal:       desc("sessions_total", "Sessions created since start"),
		suiteHandshakes: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "suite_handshakes_total"),
			"Completed handshakes broken out by KEM", []string{"kem"}, nil),
		suiteSessions: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "suite_sessions_total"),
			"Sessions broken out by AEAD cipher", []string{"aead"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (b *PrometheusBridge) Describe(ch chan<- *prometheus.Desc) {
	ch <- b.handshakesAttempted
	ch <- b.handshakesSucceeded
	ch <- b.handshakesFailed
	ch <- b.handshakeLatency
	ch <- b.bytesEncrypted
	ch <- b.bytesDecrypted
	ch <- b.recordsSealed
	ch <- b.recordsOpened
	ch <- b.replaysBlocked
	ch <- b.authFailures
	ch <- b.rekeysPerformed
	ch <- b.sessionsActive
	ch <- b.sessionsTotal
	ch <- b.suiteHandshakes
	ch <- b.suiteSessions
}

// Collect implements prometheus.Collector.
func (b *PrometheusBridge) Collect(ch chan<- prometheus.Metric) {
	snap := b.collector.Snapshot()

	counter := func(d *prometheus.Desc, v uint64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}
	counter(b.handshakesAttempted, snap.HandshakesAttempted)
	counter(b.handshakesSucceeded, snap.HandshakesSucceeded)
	counter(b.handshakesFailed, snap.HandshakesFailed)
	counter(b.bytesEncrypted, snap.BytesEncrypted)
	counter(b.bytesDecrypted, snap.BytesDecrypted)
	counter(b.recordsSealed, snap.RecordsSealed)
	counter(b.recordsOpened, snap.RecordsOpened)
	counter(b.replaysBlocked, snap.ReplaysBlocked)
	counter(b.authFailures, snap.AuthFailures)
	counter(b.rekeysPerformed, snap.RekeysPerformed)
	ch <- prometheus.MustNewConstMetric(b.sessionsActive, prometheus.GaugeValue, float64(snap.SessionsActive))
	counter(b.sessionsTotal, snap.SessionsTotal)

	// The suite is fixed, so these mirror the totals under algorithm labels.
	ch <- prometheus.MustNewConstMetric(b.suiteHandshakes, prometheus.CounterValue,
		float64(snap.HandshakesSucceeded), labelKEM)
	ch <- prometheus.MustNewConstMetric(b.suiteSessions, prometheus.CounterValue,
		float64(snap.SessionsTotal), labelAEAD)

	buckets := make(map[float64]uint64, len(snap.HandshakeLatency.Buckets))
	for _, bc := range snap.HandshakeLatency.Buckets {
		if !math.IsInf(bc.UpperBound, 1) {
			buckets[bc.UpperBound] = bc.Count
		}
	}
	ch <- prometheus.MustNewConstHistogram(
		b.handshakeLatency,
		snap.HandshakeLatency.Count,
		snap.HandshakeLatency.Sum,
		buckets,
	)
}

// Handler returns an HTTP handler serving this bridge on a dedicated
// registry, so pqnoise metrics do not collide with the default registry.
func (b *PrometheusBridge) Handler() http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(b)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

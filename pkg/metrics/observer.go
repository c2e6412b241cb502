package metrics

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	pqerrors "github.com/qtc-project/pqnoise/internal/errors"
)

// SessionObserver fans session events out to a Collector, a zap logger, and
// a tracer. It satisfies the session layer's metrics sink interface
// structurally, so this package never imports the protocol packages.
//
// One observer serves one session; the handshake timer is not reusable
// across concurrent handshakes.
type SessionObserver struct {
	collector *Collector
	logger    *zap.Logger
	tracer    Tracer
	role      string

	mu             sync.Mutex
	handshakeStart time.Time
	endSpan        SpanEnder
}

// ObserverConfig configures a SessionObserver. Nil fields get defaults: the
// global collector, a no-op logger, and a no-op tracer.
type ObserverConfig struct {
	Collector *Collector
	Logger    *zap.Logger
	Tracer    Tracer
	Role      string // "client" or "server", used only for log context
}

// NewSessionObserver creates an observer from cfg.
func NewSessionObserver(cfg ObserverConfig) *SessionObserver {
	if cfg.Collector == nil {
		cfg.Collector = Global()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = NoOpTracer{}
	}
	return &SessionObserver{
		collector: cfg.Collector,
		logger:    cfg.Logger.Named("pqnoise").With(zap.String("role", cfg.Role)),
		tracer:    cfg.Tracer,
		role:      cfg.Role,
	}
}

// HandshakeAttempt starts the handshake timer and span.
func (o *SessionObserver) HandshakeAttempt() {
	o.collector.HandshakeAttempted()

	spanName := SpanHandshakeClient
	if o.role == "server" {
		spanName = SpanHandshakeServer
	}
	_, end := o.tracer.StartSpan(context.Background(), spanName)

	o.mu.Lock()
	o.handshakeStart = time.Now()
	o.endSpan = end
	o.mu.Unlock()

	o.logger.Debug("handshake started")
}

// HandshakeSuccess records latency and closes the handshake span.
func (o *SessionObserver) HandshakeSuccess() {
	o.collector.HandshakeSucceeded()
	d := o.finishHandshake(nil)
	o.logger.Info("handshake completed", zap.Duration("duration", d))
}

// HandshakeFailure records the failure and closes the handshake span.
func (o *SessionObserver) HandshakeFailure(reason string) {
	o.collector.HandshakeFailed()
	o.finishHandshake(errText(reason))
	o.logger.Warn("handshake failed", zap.String("reason", reason))
}

func (o *SessionObserver) finishHandshake(err error) time.Duration {
	o.mu.Lock()
	start := o.handshakeStart
	end := o.endSpan
	o.endSpan = nil
	o.mu.Unlock()

	var d time.Duration
	if !start.IsZero() {
		d = time.Since(start)
		o.collector.ObserveHandshakeLatency(d)
	}
	if end != nil {
		end(err)
	}
	return d
}

// BytesEncrypted counts sealed plaintext bytes.
func (o *SessionObserver) BytesEncrypted(n int) {
	o.collector.AddBytesEncrypted(uint64(n))
}

// BytesDecrypted counts opened plaintext bytes.
func (o *SessionObserver) BytesDecrypted(n int) {
	o.collector.AddBytesDecrypted(uint64(n))
}

// RekeyPerformed counts a session swap.
func (o *SessionObserver) RekeyPerformed() {
	o.collector.RekeyPerformed()
	o.logger.Info("rekey completed")
}

// SessionStarted updates the active session gauge.
func (o *SessionObserver) SessionStarted() {
	o.collector.SessionStarted()
}

// SessionEnded updates the active session gauge.
func (o *SessionObserver) SessionEnded() {
	o.collector.SessionEnded()
	o.logger.Debug("session ended")
}

// Event logs a diagnostic event and maps security-relevant stages onto
// counters: a signature verification failure counts as an auth failure, and
// a record rejected by the counter check counts as a blocked replay.
func (o *SessionObserver) Event(stage, detail string) {
	switch {
	case stage == "verify":
		o.collector.AuthFailed()
	case stage == "open" && detail == pqerrors.ErrReplayOrDesync.Error():
		o.collector.ReplayBlocked()
	}
	o.logger.Debug("session event", zap.String("stage", stage), zap.String("detail", detail))
}

// errText wraps a reason string as an error for span reporting.
type reasonError string

func (e reasonError) Error() string { return string(e) }

func errText(reason string) error {
	if reason == "" {
		return nil
	}
	return reasonError(reason)
}

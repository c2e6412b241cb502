package metrics

import (
	"context"
	"sync"
	"time"
)

// Tracer abstracts span creation so callers can plug in OpenTelemetry (see
// the otel build tag) or a test recorder without importing either.
type Tracer interface {
	// StartSpan opens a span; the returned SpanEnder closes it. Pass a nil
	// error for success.
	StartSpan(ctx context.Context, name string) (context.Context, SpanEnder)
}

// SpanEnder finishes a span.
type SpanEnder func(err error)

// Standard span names.
const (
	SpanHandshakeClient = "pqnoise.handshake.client"
	SpanHandshakeServer = "pqnoise.handshake.server"
	SpanSeal            = "pqnoise.seal"
	SpanOpen            = "pqnoise.open"
	SpanRekey           = "pqnoise.rekey"
)

// NoOpTracer discards all spans. The default when tracing is not configured.
type NoOpTracer struct{}

// StartSpan returns the context unchanged and a no-op ender.
func (NoOpTracer) StartSpan(ctx context.Context, name string) (context.Context, SpanEnder) {
	return ctx, func(error) {}
}

// RecordedSpan is one completed span captured by SimpleTracer.
type RecordedSpan struct {
	Name     string
	Start    time.Time
	Duration time.Duration
	Err      error
}

// SimpleTracer records spans in memory, for tests and debugging.
type SimpleTracer struct {
	mu    sync.Mutex
	spans []RecordedSpan
}

// NewSimpleTracer creates an empty in-memory tracer.
func NewSimpleTracer() *SimpleTracer {
	return &SimpleTracer{}
}

// StartSpan opens a span that is recorded when its ender runs.
func (t *SimpleTracer) StartSpan(ctx context.Context, name string) (context.Context, SpanEnder) {
	start := time.Now()
	return ctx, func(err error) {
		t.mu.Lock()
		t.spans = append(t.spans, RecordedSpan{
			Name:     name,
			Start:    start,
			Duration: time.Since(start),
			Err:      err,
		})
		t.mu.Unlock()
	}
}

// Spans returns a copy of all recorded spans.
func (t *SimpleTracer) Spans() []RecordedSpan {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]RecordedSpan, len(t.spans))
	copy(out, t.spans)
	return out
}

package noise

// MetricsSink receives counters and structured diagnostic events from a
// session. A sink is injected per session rather than read from global state,
// so sessions stay independently testable. Implementations must be safe for
// concurrent use; counter updates should be increment-only atomics.
type MetricsSink interface {
	// HandshakeAttempt is recorded when StartHandshake is called.
	HandshakeAttempt()
	// HandshakeSuccess is recorded when a session reaches Established.
	HandshakeSuccess()
	// HandshakeFailure is recorded with the failure reason when a session
	// enters the error state.
	HandshakeFailure(reason string)

	// BytesEncrypted and BytesDecrypted count application plaintext bytes.
	BytesEncrypted(n int)
	BytesDecrypted(n int)

	// RekeyPerformed is recorded when a connection swaps in a fresh session.
	RekeyPerformed()

	// SessionStarted and SessionEnded track the active session gauge.
	SessionStarted()
	SessionEnded()

	// Event receives a structured diagnostic event: a stage name plus
	// detail text (error message, negotiated suite, byte counts).
	Event(stage, detail string)
}

// NopSink discards everything. It is the default when no sink is configured.
type NopSink struct{}

func (NopSink) HandshakeAttempt()             {}
func (NopSink) HandshakeSuccess()             {}
func (NopSink) HandshakeFailure(string)       {}
func (NopSink) BytesEncrypted(int)            {}
func (NopSink) BytesDecrypted(int)            {}
func (NopSink) RekeyPerformed()               {}
func (NopSink) SessionStarted()               {}
func (NopSink) SessionEnded()                 {}
func (NopSink) Event(stage, detail string)    {}

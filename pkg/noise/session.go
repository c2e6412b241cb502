// Package noise implements the PQNoise handshake state machine and the
// authenticated session layer above it.
//
// Handshake protocol (two messages, client encapsulates first):
//
//	Client                                 Server
//	    |                                      |
//	    | -------- ClientHello --------------> |
//	    |   - KEM ciphertext to the server's   |
//	    |     static Kyber1024 public key      |
//	    |   - 32 bytes random padding          |
//	    |                                      |
//	    |        [Both derive directional      |
//	    |         keys from the transcript]    |
//	    |                                      |
//	    | <------- ServerHello --------------- |
//	    |   - status byte                      |
//	    |   - Dilithium3 signature over the    |
//	    |     exact ClientHello bytes          |
//	    |                                      |
//	    |    === Session Established ===       |
//
// The server proves possession of its signature key by signing the transcript;
// the client verifies against the server's published signature public key.
// Client authentication is not part of this handshake.
//
// Handshake operations are synchronous functions over caller-supplied byte
// buffers: no I/O, no internal goroutines. Every failure sets a retrievable
// error message and moves the session to the error state; nothing panics
// across the package boundary.
package noise

import (
	"bytes"
	"sync"
	"sync/atomic"

	"github.com/qtc-project/pqnoise/internal/constants"
	qerrors "github.com/qtc-project/pqnoise/internal/errors"
	"github.com/qtc-project/pqnoise/pkg/crypto"
	"github.com/qtc-project/pqnoise/pkg/protocol"
)

// Role fixes which side of the handshake a session plays. It never changes
// after construction.
type Role int

// Session roles.
const (
	RoleClient Role = iota
	RoleServer
)

// String returns a human-readable role name.
func (r Role) String() string {
	switch r {
	case RoleClient:
		return "Client"
	case RoleServer:
		return "Server"
	default:
		return "Unknown"
	}
}

// State is the handshake state. Established and Error are terminal.
type State int32

// Handshake states.
const (
	StateInit State = iota
	StateSentClientHello
	StateAwaitingClientHello
	StateEstablished
	StateError
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateSentClientHello:
		return "SentClientHello"
	case StateAwaitingClientHello:
		return "AwaitingClientHello"
	case StateEstablished:
		return "Established"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Config holds the key material a session needs. It is built per connection
// attempt from the long-lived static identity.
type Config struct {
	// PeerKEMPublicKey is the server's static KEM public key.
	// Required for the client role.
	PeerKEMPublicKey *crypto.KEMPublicKey

	// PeerSigPublicKey is the server's signature public key the client
	// verifies the transcript signature against. Required for the client.
	PeerSigPublicKey *crypto.SigPublicKey

	// StaticKEMKeys are the server's static KEM keypairs, most recent
	// first. At most two entries: the current key and, inside the rotation
	// overlap window, the immediately previous one. Required for the server.
	StaticKEMKeys []*crypto.KEMKeyPair

	// SigningKey is the server's signature secret key. Required for the server.
	SigningKey *crypto.SigSecretKey

	// Metrics receives counters and diagnostic events. Optional.
	Metrics MetricsSink
}

// Session drives one handshake to an authenticated shared-key session and
// then seals and opens application records. A session is created per
// connection and never reused across a rekey boundary.
type Session struct {
	role  Role
	state atomic.Int32
	cfg   Config
	sink  MetricsSink
	codec *protocol.Codec

	// transcript accumulates the exact handshake bytes sent or received,
	// in protocol order. Identical on both peers by construction.
	transcript bytes.Buffer

	// pendingKeys holds the client's derived keys between StartHandshake
	// and signature verification.
	pendingKeys *crypto.SessionKeys

	sendCh *Channel
	recvCh *Channel

	errMu   sync.Mutex
	lastErr string
}

// NewSession creates a session with a fixed role. Key material is validated
// at StartHandshake, not here.
func NewSession(role Role, cfg Config) *Session {
	sink := cfg.Metrics
	if sink == nil {
		sink = NopSink{}
	}
	s := &Session{
		role:  role,
		cfg:   cfg,
		sink:  sink,
		codec: protocol.NewCodec(),
	}
	s.state.Store(int32(StateInit))
	sink.SessionStarted()
	return s
}

// StartHandshake begins the handshake. The client returns the ClientHello
// bytes to hand to the transport; the server returns nil and waits for the
// peer. Missing key material fails with a configuration error before any
// transcript mutation.
func (s *Session) StartHandshake() ([]byte, error) {
	if s.State() != StateInit {
		return nil, s.fail("start", qerrors.ErrInvalidState)
	}

	s.sink.HandshakeAttempt()
	s.sink.Event("handshake_start", s.role.String())

	if s.role == RoleServer {
		if err := s.checkServerConfig(); err != nil {
			return nil, s.fail("config", err)
		}
		s.state.Store(int32(StateAwaitingClientHello))
		return nil, nil
	}

	if s.cfg.PeerKEMPublicKey == nil {
		return nil, s.fail("config", qerrors.ErrMissingKEMPublicKey)
	}
	if s.cfg.PeerSigPublicKey == nil {
		return nil, s.fail("config", qerrors.ErrMissingSigPublicKey)
	}
	return s.clientStart()
}

// OnHandshakeMessage feeds a received handshake message into the state
// machine. The server consumes a ClientHello and returns the ServerHello
// bytes; the client consumes a ServerHello and returns nil. After a nil
// error on the client side, or a non-nil output on the server side, the
// session is established.
func (s *Session) OnHandshakeMessage(msg []byte) ([]byte, error) {
	switch s.State() {
	case StateAwaitingClientHello:
		if s.role != RoleServer {
			return nil, s.fail("dispatch", qerrors.ErrInvalidState)
		}
		return s.serverRespond(msg)
	case StateSentClientHello:
		if s.role != RoleClient {
			return nil, s.fail("dispatch", qerrors.ErrInvalidState)
		}
		return nil, s.clientFinish(msg)
	case StateInit:
		// A server that skipped StartHandshake still accepts the hello
		// after a late config check.
		if s.role != RoleServer {
			return nil, s.fail("dispatch", qerrors.ErrInvalidState)
		}
		if err := s.checkServerConfig(); err != nil {
			return nil, s.fail("config", err)
		}
		return s.serverRespond(msg)
	default:
		return nil, s.fail("dispatch", qerrors.ErrInvalidState)
	}
}

func (s *Session) checkServerConfig() error {
	if len(s.cfg.StaticKEMKeys) == 0 {
		return qerrors.ErrMissingKEMSecretKey
	}
	for _, kp := range s.cfg.StaticKEMKeys {
		if kp == nil || kp.Secret == nil {
			return qerrors.ErrMissingKEMSecretKey
		}
	}
	if s.cfg.SigningKey == nil {
		return qerrors.ErrMissingSigSecretKey
	}
	return nil
}

// clientStart encapsulates to the server's static key, assembles the
// ClientHello, and derives the directional keys from the transcript.
func (s *Session) clientStart() ([]byte, error) {
	ciphertext, sharedSecret, err := crypto.Encapsulate(s.cfg.PeerKEMPublicKey)
	if err != nil {
		return nil, s.fail("encapsulate", qerrors.ErrEncapsulationFailed)
	}
	defer crypto.Zeroize(sharedSecret)

	padding, err := crypto.SecureRandomBytes(constants.ClientHelloPaddingSize)
	if err != nil {
		return nil, s.fail("encapsulate", err)
	}

	out, err := s.codec.EncodeClientHello(&protocol.ClientHello{
		Ciphertext: ciphertext,
		Padding:    padding,
	})
	if err != nil {
		return nil, s.fail("clienthello", err)
	}

	s.transcript.Write(out)

	keys, err := crypto.DeriveSessionKeys(sharedSecret, s.transcript.Bytes())
	if err != nil {
		return nil, s.fail("derive", err)
	}
	s.pendingKeys = keys

	s.state.Store(int32(StateSentClientHello))
	s.sink.Event("clienthello_sent", "")
	return out, nil
}

// serverRespond processes the ClientHello: decapsulate, derive, sign, reply.
func (s *Session) serverRespond(msg []byte) ([]byte, error) {
	hello, err := s.codec.DecodeClientHello(msg)
	if err != nil {
		return nil, s.fail("clienthello", err)
	}

	// Try the current static key first, then the previous one if rotation
	// is inside its overlap window.
	var sharedSecret []byte
	decapErr := qerrors.ErrDecapsulationFailed
	for _, kp := range s.cfg.StaticKEMKeys {
		sharedSecret, decapErr = crypto.Decapsulate(kp.Secret, hello.Ciphertext)
		if decapErr == nil {
			break
		}
	}
	if decapErr != nil {
		return nil, s.fail("decapsulate", decapErr)
	}
	defer crypto.Zeroize(sharedSecret)

	s.transcript.Write(msg)

	keys, err := crypto.DeriveSessionKeys(sharedSecret, s.transcript.Bytes())
	if err != nil {
		return nil, s.fail("derive", err)
	}
	defer keys.Destroy()

	signature, err := crypto.Sign(s.cfg.SigningKey, s.transcript.Bytes())
	if err != nil {
		return nil, s.fail("sign", qerrors.ErrSignFailed)
	}

	out, err := s.codec.EncodeServerHello(&protocol.ServerHello{
		Status:    protocol.StatusOK,
		Signature: signature,
	})
	if err != nil {
		return nil, s.fail("serverhello", err)
	}

	if err := s.installChannels(keys); err != nil {
		return nil, s.fail("channels", err)
	}

	s.state.Store(int32(StateEstablished))
	s.sink.HandshakeSuccess()
	s.sink.Event("established", constants.SuiteName)
	return out, nil
}

// clientFinish verifies the server's transcript signature and activates the
// keys derived at clientStart.
func (s *Session) clientFinish(msg []byte) error {
	sh, err := s.codec.DecodeServerHello(msg)
	if err != nil {
		return s.fail("serverhello", err)
	}

	if sh.Status != protocol.StatusOK {
		return s.fail("serverhello", qerrors.ErrHandshakeRejected)
	}

	// The signature must cover exactly the ClientHello bytes this client
	// sent; the transcript holds nothing else.
	if !crypto.Verify(s.cfg.PeerSigPublicKey, s.transcript.Bytes(), sh.Signature) {
		return s.fail("verify", qerrors.ErrAuthenticationFailed)
	}

	keys := s.pendingKeys
	s.pendingKeys = nil
	defer keys.Destroy()

	if err := s.installChannels(keys); err != nil {
		return s.fail("channels", err)
	}

	s.state.Store(int32(StateEstablished))
	s.sink.HandshakeSuccess()
	s.sink.Event("established", constants.SuiteName)
	return nil
}

// installChannels builds the two directional channels, swapping the key
// halves by role so one peer's outbound key is the other's inbound key.
func (s *Session) installChannels(keys *crypto.SessionKeys) error {
	sendKey, recvKey := keys.ClientKey, keys.ServerKey
	if s.role == RoleServer {
		sendKey, recvKey = keys.ServerKey, keys.ClientKey
	}

	var err error
	if s.sendCh, err = newChannel(sendKey); err != nil {
		return err
	}
	if s.recvCh, err = newChannel(recvKey); err != nil {
		return err
	}
	return nil
}

// Seal encrypts an application record on the outbound channel. Valid only
// after the session is established.
func (s *Session) Seal(plaintext []byte) ([]byte, error) {
	if s.State() != StateEstablished || s.sendCh == nil {
		return nil, qerrors.ErrNotEstablished
	}
	frame, err := s.sendCh.Seal(plaintext)
	if err != nil {
		return nil, err
	}
	s.sink.BytesEncrypted(len(plaintext))
	return frame, nil
}

// Open decrypts an application record on the inbound channel. A counter
// mismatch or tag failure is a per-record error: the session stays
// established, but repeated failures should be treated as suspicious by the
// owning connection layer. Every rejection is reported to the sink.
func (s *Session) Open(frame []byte) ([]byte, error) {
	if s.State() != StateEstablished || s.recvCh == nil {
		return nil, qerrors.ErrNotEstablished
	}
	plaintext, err := s.recvCh.Open(frame)
	if err != nil {
		s.sink.Event("open", err.Error())
		return nil, err
	}
	s.sink.BytesDecrypted(len(plaintext))
	return plaintext, nil
}

// Established reports whether the handshake completed successfully.
func (s *Session) Established() bool {
	return s.State() == StateEstablished
}

// State returns the current handshake state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Role returns the session's fixed role.
func (s *Session) Role() Role {
	return s.role
}

// LastError returns the most recent failure message, or "" if none.
func (s *Session) LastError() string {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.lastErr
}

// Suite returns the negotiated suite identifier for diagnostics.
func (s *Session) Suite() string {
	return constants.SuiteName
}

// SendCounter returns the number of records sealed so far.
func (s *Session) SendCounter() uint64 {
	if s.sendCh == nil {
		return 0
	}
	return s.sendCh.Counter()
}

// Close erases key material and marks the session ended. The session cannot
// be used afterwards.
func (s *Session) Close() {
	if s.pendingKeys != nil {
		s.pendingKeys.Destroy()
		s.pendingKeys = nil
	}
	s.sendCh = nil
	s.recvCh = nil
	if s.State() != StateError {
		s.state.Store(int32(StateError))
	}
	s.sink.SessionEnded()
}

// fail records the error, moves the session to the error state, and emits
// the failure to the sink. It returns err for convenient chaining.
func (s *Session) fail(stage string, err error) error {
	s.errMu.Lock()
	s.lastErr = err.Error()
	s.errMu.Unlock()
	s.state.Store(int32(StateError))
	s.sink.HandshakeFailure(err.Error())
	s.sink.Event(stage, err.Error())
	return err
}

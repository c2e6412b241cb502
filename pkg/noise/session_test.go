package noise_test

import (
	"bytes"
	"sync"
	"sync/atomic"
	"testing"

	qerrors "github.com/qtc-project/pqnoise/internal/errors"
	"github.com/qtc-project/pqnoise/pkg/crypto"
	"github.com/qtc-project/pqnoise/pkg/noise"
	"github.com/qtc-project/pqnoise/pkg/protocol"
)

// testIdentity is a server identity shared by the handshake tests.
type testIdentity struct {
	kem *crypto.KEMKeyPair
	sig *crypto.SigKeyPair
}

func newTestIdentity(t *testing.T) *testIdentity {
	t.Helper()
	kem, err := crypto.GenerateKEMKeyPair()
	if err != nil {
		t.Fatalf("GenerateKEMKeyPair failed: %v", err)
	}
	sig, err := crypto.GenerateSigKeyPair()
	if err != nil {
		t.Fatalf("GenerateSigKeyPair failed: %v", err)
	}
	return &testIdentity{kem: kem, sig: sig}
}

func (id *testIdentity) clientConfig() noise.Config {
	return noise.Config{
		PeerKEMPublicKey: id.kem.Public,
		PeerSigPublicKey: id.sig.Public,
	}
}

func (id *testIdentity) serverConfig() noise.Config {
	return noise.Config{
		StaticKEMKeys: []*crypto.KEMKeyPair{id.kem},
		SigningKey:    id.sig.Secret,
	}
}

// handshake drives both sessions to the established state.
func handshake(t *testing.T, client, server *noise.Session) {
	t.Helper()

	hello, err := client.StartHandshake()
	if err != nil {
		t.Fatalf("client StartHandshake failed: %v", err)
	}
	if out, err := server.StartHandshake(); err != nil || out != nil {
		t.Fatalf("server StartHandshake: got (%v, %v), want (nil, nil)", out, err)
	}

	reply, err := server.OnHandshakeMessage(hello)
	if err != nil {
		t.Fatalf("server OnHandshakeMessage failed: %v", err)
	}
	if _, err := client.OnHandshakeMessage(reply); err != nil {
		t.Fatalf("client OnHandshakeMessage failed: %v", err)
	}
}

func TestHandshakeEstablishes(t *testing.T) {
	id := newTestIdentity(t)
	client := noise.NewSession(noise.RoleClient, id.clientConfig())
	server := noise.NewSession(noise.RoleServer, id.serverConfig())

	handshake(t, client, server)

	if !client.Established() || !server.Established() {
		t.Fatalf("states after handshake: client %v, server %v", client.State(), server.State())
	}
	if client.Suite() != server.Suite() {
		t.Error("suite mismatch")
	}
	if client.LastError() != "" {
		t.Errorf("client LastError: %q", client.LastError())
	}
}

func TestSealOpenBothDirections(t *testing.T) {
	id := newTestIdentity(t)
	client := noise.NewSession(noise.RoleClient, id.clientConfig())
	server := noise.NewSession(noise.RoleServer, id.serverConfig())
	handshake(t, client, server)

	for i := 0; i < 3; i++ {
		frame, err := client.Seal([]byte("from client"))
		if err != nil {
			t.Fatalf("client Seal failed: %v", err)
		}
		opened, err := server.Open(frame)
		if err != nil {
			t.Fatalf("server Open failed: %v", err)
		}
		if !bytes.Equal(opened, []byte("from client")) {
			t.Error("client->server payload mismatch")
		}

		frame, err = server.Seal([]byte("from server"))
		if err != nil {
			t.Fatalf("server Seal failed: %v", err)
		}
		opened, err = client.Open(frame)
		if err != nil {
			t.Fatalf("client Open failed: %v", err)
		}
		if !bytes.Equal(opened, []byte("from server")) {
			t.Error("server->client payload mismatch")
		}
	}
}

func TestDirectionsUseDistinctKeys(t *testing.T) {
	id := newTestIdentity(t)
	client := noise.NewSession(noise.RoleClient, id.clientConfig())
	server := noise.NewSession(noise.RoleServer, id.serverConfig())
	handshake(t, client, server)

	// A client frame must not open on the client's own inbound channel.
	frame, err := client.Seal([]byte("loop"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if _, err := client.Open(frame); err == nil {
		t.Error("client opened its own outbound frame")
	}
}

func TestClientConfigValidation(t *testing.T) {
	id := newTestIdentity(t)

	cases := []struct {
		name string
		cfg  noise.Config
		want error
	}{
		{"missing KEM public key", noise.Config{PeerSigPublicKey: id.sig.Public}, qerrors.ErrMissingKEMPublicKey},
		{"missing sig public key", noise.Config{PeerKEMPublicKey: id.kem.Public}, qerrors.ErrMissingSigPublicKey},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := noise.NewSession(noise.RoleClient, tc.cfg)
			if _, err := s.StartHandshake(); !qerrors.Is(err, tc.want) {
				t.Errorf("got %v, want %v", err, tc.want)
			}
			if s.State() != noise.StateError {
				t.Errorf("state after config error: %v", s.State())
			}
			if s.LastError() == "" {
				t.Error("LastError empty after failure")
			}
		})
	}
}

func TestServerConfigValidation(t *testing.T) {
	id := newTestIdentity(t)

	cases := []struct {
		name string
		cfg  noise.Config
		want error
	}{
		{"no KEM keys", noise.Config{SigningKey: id.sig.Secret}, qerrors.ErrMissingKEMSecretKey},
		{"no signing key", noise.Config{StaticKEMKeys: []*crypto.KEMKeyPair{id.kem}}, qerrors.ErrMissingSigSecretKey},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := noise.NewSession(noise.RoleServer, tc.cfg)
			if _, err := s.StartHandshake(); !qerrors.Is(err, tc.want) {
				t.Errorf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestServerRejectsMalformedHello(t *testing.T) {
	id := newTestIdentity(t)
	server := noise.NewSession(noise.RoleServer, id.serverConfig())
	if _, err := server.StartHandshake(); err != nil {
		t.Fatalf("server StartHandshake failed: %v", err)
	}

	if _, err := server.OnHandshakeMessage([]byte("not a handshake")); !qerrors.Is(err, qerrors.ErrBadMagic) {
		t.Errorf("garbage hello: got %v, want %v", err, qerrors.ErrBadMagic)
	}
	if server.State() != noise.StateError {
		t.Errorf("server state after malformed hello: %v", server.State())
	}
}

func TestClientAbortsOnRejection(t *testing.T) {
	id := newTestIdentity(t)
	client := noise.NewSession(noise.RoleClient, id.clientConfig())
	if _, err := client.StartHandshake(); err != nil {
		t.Fatalf("StartHandshake failed: %v", err)
	}

	rejection, err := protocol.NewCodec().EncodeServerHello(&protocol.ServerHello{
		Status: protocol.StatusRejected,
	})
	if err != nil {
		t.Fatalf("EncodeServerHello failed: %v", err)
	}

	if _, err := client.OnHandshakeMessage(rejection); !qerrors.Is(err, qerrors.ErrHandshakeRejected) {
		t.Errorf("rejection: got %v, want %v", err, qerrors.ErrHandshakeRejected)
	}
	if client.Established() {
		t.Error("client established after a rejection")
	}
}

func TestClientDetectsForgedSignature(t *testing.T) {
	id := newTestIdentity(t)
	impostor := newTestIdentity(t)

	// The server signs with a key the client does not trust. Same KEM key,
	// so everything up to signature verification succeeds.
	client := noise.NewSession(noise.RoleClient, id.clientConfig())
	server := noise.NewSession(noise.RoleServer, noise.Config{
		StaticKEMKeys: []*crypto.KEMKeyPair{id.kem},
		SigningKey:    impostor.sig.Secret,
	})

	hello, err := client.StartHandshake()
	if err != nil {
		t.Fatalf("StartHandshake failed: %v", err)
	}
	if _, err := server.StartHandshake(); err != nil {
		t.Fatalf("server StartHandshake failed: %v", err)
	}
	reply, err := server.OnHandshakeMessage(hello)
	if err != nil {
		t.Fatalf("server OnHandshakeMessage failed: %v", err)
	}

	if _, err := client.OnHandshakeMessage(reply); !qerrors.Is(err, qerrors.ErrAuthenticationFailed) {
		t.Errorf("forged signature: got %v, want %v", err, qerrors.ErrAuthenticationFailed)
	}
	if client.State() != noise.StateError {
		t.Errorf("client state after auth failure: %v", client.State())
	}
}

func TestSealOpenBeforeEstablished(t *testing.T) {
	id := newTestIdentity(t)
	client := noise.NewSession(noise.RoleClient, id.clientConfig())

	if _, err := client.Seal([]byte("early")); err != qerrors.ErrNotEstablished {
		t.Errorf("Seal before handshake: got %v, want %v", err, qerrors.ErrNotEstablished)
	}
	if _, err := client.Open(make([]byte, 64)); err != qerrors.ErrNotEstablished {
		t.Errorf("Open before handshake: got %v, want %v", err, qerrors.ErrNotEstablished)
	}
}

func TestHandshakeMessageInWrongState(t *testing.T) {
	id := newTestIdentity(t)

	// Client that never started.
	client := noise.NewSession(noise.RoleClient, id.clientConfig())
	if _, err := client.OnHandshakeMessage([]byte("x")); !qerrors.Is(err, qerrors.ErrInvalidState) {
		t.Errorf("client in Init: got %v, want %v", err, qerrors.ErrInvalidState)
	}

	// Established sessions accept no further handshake messages.
	client2 := noise.NewSession(noise.RoleClient, id.clientConfig())
	server := noise.NewSession(noise.RoleServer, id.serverConfig())
	handshake(t, client2, server)
	if _, err := server.OnHandshakeMessage([]byte("x")); !qerrors.Is(err, qerrors.ErrInvalidState) {
		t.Errorf("established server: got %v, want %v", err, qerrors.ErrInvalidState)
	}
}

func TestServerAcceptsHelloWithoutExplicitStart(t *testing.T) {
	id := newTestIdentity(t)
	client := noise.NewSession(noise.RoleClient, id.clientConfig())
	server := noise.NewSession(noise.RoleServer, id.serverConfig())

	hello, err := client.StartHandshake()
	if err != nil {
		t.Fatalf("StartHandshake failed: %v", err)
	}
	// No server.StartHandshake: the hello lands in the Init state.
	reply, err := server.OnHandshakeMessage(hello)
	if err != nil {
		t.Fatalf("OnHandshakeMessage in Init failed: %v", err)
	}
	if _, err := client.OnHandshakeMessage(reply); err != nil {
		t.Fatalf("client completion failed: %v", err)
	}
	if !server.Established() {
		t.Error("server not established")
	}
}

func TestServerRotationKeyList(t *testing.T) {
	current := newTestIdentity(t)
	previous, err := crypto.GenerateKEMKeyPair()
	if err != nil {
		t.Fatalf("GenerateKEMKeyPair failed: %v", err)
	}

	// Server accepts both keys, most recent first; the client holds the
	// current public key.
	client := noise.NewSession(noise.RoleClient, current.clientConfig())
	server := noise.NewSession(noise.RoleServer, noise.Config{
		StaticKEMKeys: []*crypto.KEMKeyPair{current.kem, {Public: previous.Public, Secret: previous.Secret}},
		SigningKey:    current.sig.Secret,
	})

	handshake(t, client, server)

	frame, err := client.Seal([]byte("rotated"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if _, err := server.Open(frame); err != nil {
		t.Fatalf("Open failed under multi-key config: %v", err)
	}
}

// countingSink records sink callbacks for assertions.
type countingSink struct {
	attempts  atomic.Int64
	successes atomic.Int64
	failures  atomic.Int64
	encrypted atomic.Int64
	decrypted atomic.Int64
	rekeys    atomic.Int64
	started   atomic.Int64
	ended     atomic.Int64
	events    atomic.Int64
}

func (s *countingSink) HandshakeAttempt()       { s.attempts.Add(1) }
func (s *countingSink) HandshakeSuccess()       { s.successes.Add(1) }
func (s *countingSink) HandshakeFailure(string) { s.failures.Add(1) }
func (s *countingSink) BytesEncrypted(n int)    { s.encrypted.Add(int64(n)) }
func (s *countingSink) BytesDecrypted(n int)    { s.decrypted.Add(int64(n)) }
func (s *countingSink) RekeyPerformed()         { s.rekeys.Add(1) }
func (s *countingSink) SessionStarted()         { s.started.Add(1) }
func (s *countingSink) SessionEnded()           { s.ended.Add(1) }
func (s *countingSink) Event(string, string)    { s.events.Add(1) }

func TestSinkReceivesCounters(t *testing.T) {
	id := newTestIdentity(t)
	sink := &countingSink{}

	cfg := id.clientConfig()
	cfg.Metrics = sink
	client := noise.NewSession(noise.RoleClient, cfg)
	server := noise.NewSession(noise.RoleServer, id.serverConfig())
	handshake(t, client, server)

	frame, err := client.Seal([]byte("count me"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	reply, err := server.Seal([]byte("and me"))
	if err != nil {
		t.Fatalf("server Seal failed: %v", err)
	}
	if _, err := server.Open(frame); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := client.Open(reply); err != nil {
		t.Fatalf("client Open failed: %v", err)
	}

	if got := sink.attempts.Load(); got != 1 {
		t.Errorf("attempts: got %d, want 1", got)
	}
	if got := sink.successes.Load(); got != 1 {
		t.Errorf("successes: got %d, want 1", got)
	}
	if got := sink.encrypted.Load(); got != int64(len("count me")) {
		t.Errorf("bytes encrypted: got %d, want %d", got, len("count me"))
	}
	if got := sink.decrypted.Load(); got != int64(len("and me")) {
		t.Errorf("bytes decrypted: got %d, want %d", got, len("and me"))
	}
	if got := sink.started.Load(); got != 1 {
		t.Errorf("sessions started: got %d, want 1", got)
	}

	client.Close()
	if got := sink.ended.Load(); got != 1 {
		t.Errorf("sessions ended: got %d, want 1", got)
	}
}

func TestSinkRecordsFailure(t *testing.T) {
	sink := &countingSink{}
	s := noise.NewSession(noise.RoleClient, noise.Config{Metrics: sink})
	if _, err := s.StartHandshake(); err == nil {
		t.Fatal("empty config accepted")
	}
	if got := sink.failures.Load(); got != 1 {
		t.Errorf("failures: got %d, want 1", got)
	}
}

// eventSink records every diagnostic event it receives.
type eventSink struct {
	noise.NopSink
	mu     sync.Mutex
	stages []string
	detail []string
}

func (s *eventSink) Event(stage, detail string) {
	s.mu.Lock()
	s.stages = append(s.stages, stage)
	s.detail = append(s.detail, detail)
	s.mu.Unlock()
}

func (s *eventSink) has(stage, detail string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.stages {
		if s.stages[i] == stage && s.detail[i] == detail {
			return true
		}
	}
	return false
}

func TestSinkSeesRecordRejections(t *testing.T) {
	id := newTestIdentity(t)
	sink := &eventSink{}

	serverCfg := id.serverConfig()
	serverCfg.Metrics = sink

	client := noise.NewSession(noise.RoleClient, id.clientConfig())
	server := noise.NewSession(noise.RoleServer, serverCfg)
	handshake(t, client, server)

	frame, err := client.Seal([]byte("once"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if _, err := server.Open(frame); err != nil {
		t.Fatalf("first Open failed: %v", err)
	}

	// Replaying the frame must surface as an "open" event carrying the
	// counter-mismatch message.
	if _, err := server.Open(frame); !qerrors.Is(err, qerrors.ErrReplayOrDesync) {
		t.Fatalf("replay: got %v, want ErrReplayOrDesync", err)
	}
	if !sink.has("open", qerrors.ErrReplayOrDesync.Error()) {
		t.Errorf("sink missing replay rejection event; saw stages %v", sink.stages)
	}

	// A tampered record must surface the same way with the decryption error.
	frame, err = client.Seal([]byte("twice"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	frame[len(frame)-1] ^= 0x01
	if _, err := server.Open(frame); !qerrors.Is(err, qerrors.ErrDecryptionFailed) {
		t.Fatalf("tampered record: got %v, want ErrDecryptionFailed", err)
	}
	if !sink.has("open", qerrors.ErrDecryptionFailed.Error()) {
		t.Errorf("sink missing decryption failure event; saw stages %v", sink.stages)
	}
}

package noise

import (
	"encoding/binary"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/qtc-project/pqnoise/internal/constants"
	qerrors "github.com/qtc-project/pqnoise/internal/errors"
	"github.com/qtc-project/pqnoise/pkg/protocol"
)

// frame layout on the wire: 4-byte big-endian length, then the body. The
// body is either a handshake message (starts with the protocol magic) or an
// encrypted record (starts with the little-endian send counter). A counter
// value whose first bytes collide with the magic would need about 10^12
// records on one key, far past any sane rekey threshold, so the prefix test
// is unambiguous in practice.
const maxFrameSize = constants.MaxMessageSize + constants.RecordOverhead

// Conn runs a secure session over a byte stream, framing records, tracking
// rekey thresholds, and replacing the session with a fresh handshake when a
// threshold is reached. The client initiates rekeys; the server recognizes
// an inline ClientHello and swaps sessions before continuing to read.
type Conn struct {
	rw    io.ReadWriter
	cfg   Config
	sink  MetricsSink
	codec *protocol.Codec

	policy   RekeyPolicy
	policyMu sync.Mutex

	// sessMu guards the session pointer and the per-key accounting across
	// a rekey swap. Send and Receive each additionally serialize their own
	// direction.
	sessMu    sync.RWMutex
	session   *Session
	keyEpoch  time.Time
	bytesSent uint64

	writeMu sync.Mutex
	readMu  sync.Mutex

	// rekeyPending flags an in-flight client rekey so a concurrent Receive
	// hands the arriving ServerHello to maybeRekey instead of rejecting it.
	// rekeyReply carries that handoff; rekeySwapped releases the Receive
	// goroutine once the session swap is finished.
	rekeyPending atomic.Bool
	rekeyReply   chan []byte
	rekeySwapped chan struct{}

	// queued holds records decrypted while a rekey drained the stream
	// directly. Accessed only under readMu.
	queued [][]byte

	closed atomic.Bool

	// now is swappable for tests.
	now func() time.Time
}

// Client performs the handshake over rw as the client and returns the
// established connection. The config must carry the server's KEM and
// signature public keys.
func Client(rw io.ReadWriter, cfg Config) (*Conn, error) {
	c := newConn(rw, cfg)
	session := NewSession(RoleClient, cfg)

	hello, err := session.StartHandshake()
	if err != nil {
		session.Close()
		return nil, err
	}
	if err := c.writeFrame(hello); err != nil {
		session.Close()
		return nil, err
	}

	reply, err := c.readFrame()
	if err != nil {
		session.Close()
		return nil, err
	}
	if _, err := session.OnHandshakeMessage(reply); err != nil {
		session.Close()
		return nil, err
	}

	c.installSession(session)
	return c, nil
}

// Server performs the handshake over rw as the server and returns the
// established connection. The config must carry the static KEM keypairs and
// the signing key. On handshake failure a rejection ServerHello is written
// best effort before the error is returned.
func Server(rw io.ReadWriter, cfg Config) (*Conn, error) {
	c := newConn(rw, cfg)
	session := NewSession(RoleServer, cfg)

	if _, err := session.StartHandshake(); err != nil {
		session.Close()
		return nil, err
	}

	hello, err := c.readFrame()
	if err != nil {
		session.Close()
		return nil, err
	}

	reply, err := session.OnHandshakeMessage(hello)
	if err != nil {
		c.writeRejection()
		session.Close()
		return nil, err
	}
	if err := c.writeFrame(reply); err != nil {
		session.Close()
		return nil, err
	}

	c.installSession(session)
	return c, nil
}

func newConn(rw io.ReadWriter, cfg Config) *Conn {
	sink := cfg.Metrics
	if sink == nil {
		sink = NopSink{}
	}
	return &Conn{
		rw:           rw,
		cfg:          cfg,
		sink:         sink,
		codec:        protocol.NewCodec(),
		policy:       DefaultRekeyPolicy(),
		rekeyReply:   make(chan []byte, 1),
		rekeySwapped: make(chan struct{}, 1),
		now:          time.Now,
	}
}

func (c *Conn) installSession(s *Session) {
	c.sessMu.Lock()
	if c.session != nil {
		c.session.Close()
	}
	c.session = s
	c.keyEpoch = c.now()
	c.bytesSent = 0
	c.sessMu.Unlock()
}

// SetRekeyPolicy replaces the rekey thresholds. The zero policy disables
// automatic rekeying.
func (c *Conn) SetRekeyPolicy(p RekeyPolicy) {
	c.policyMu.Lock()
	c.policy = p
	c.policyMu.Unlock()
}

// Send encrypts data and writes it as one frame. On the client it first
// checks the rekey policy and, when due, runs a fresh handshake inline
// before sealing under the new keys.
func (c *Conn) Send(data []byte) error {
	if c.closed.Load() {
		return qerrors.ErrConnClosed
	}
	if len(data) > constants.MaxMessageSize {
		return qerrors.ErrMessageTooLarge
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.maybeRekey(); err != nil {
		return qerrors.NewProtocolError("rekey", err)
	}

	c.sessMu.RLock()
	session := c.session
	c.sessMu.RUnlock()

	frame, err := session.Seal(data)
	if err != nil {
		return err
	}
	if err := c.writeFrame(frame); err != nil {
		return err
	}

	c.sessMu.Lock()
	c.bytesSent += uint64(len(data))
	c.sessMu.Unlock()
	return nil
}

// Receive reads the next frame and decrypts it. Frames carrying the
// handshake magic are serviced inline: a server answers the rekey ClientHello
// and swaps sessions; a client hands the ServerHello to the Send goroutine
// waiting in maybeRekey, then blocks until the swap is done. Either way the
// read continues with the next frame.
func (c *Conn) Receive() ([]byte, error) {
	if c.closed.Load() {
		return nil, qerrors.ErrConnClosed
	}

	c.readMu.Lock()
	defer c.readMu.Unlock()

	for {
		if len(c.queued) > 0 {
			out := c.queued[0]
			c.queued = c.queued[1:]
			return out, nil
		}

		frame, err := c.readFrame()
		if err != nil {
			if err == io.EOF {
				return nil, qerrors.ErrConnClosed
			}
			return nil, err
		}

		if protocol.IsHandshakeMessage(frame) {
			c.sessMu.RLock()
			role := c.session.Role()
			c.sessMu.RUnlock()

			if role == RoleServer {
				if err := c.acceptRekey(frame); err != nil {
					return nil, qerrors.NewProtocolError("rekey", err)
				}
				continue
			}
			if !c.rekeyPending.Load() {
				return nil, qerrors.NewProtocolError("rekey", qerrors.ErrInvalidState)
			}
			c.rekeyReply <- frame
			<-c.rekeySwapped
			continue
		}

		c.sessMu.RLock()
		session := c.session
		c.sessMu.RUnlock()
		return session.Open(frame)
	}
}

// maybeRekey runs a client-initiated rekey when the policy says the current
// key is spent. Called with writeMu held. The ServerHello reply arrives
// either by reading the stream directly (no Receive in flight) or handed
// over by a concurrent Receive goroutine, so full-duplex callers never
// deadlock against their own read loop.
func (c *Conn) maybeRekey() error {
	c.sessMu.RLock()
	role := c.session.Role()
	sent := c.bytesSent
	elapsed := c.now().Sub(c.keyEpoch)
	c.sessMu.RUnlock()

	if role != RoleClient {
		return nil
	}
	c.policyMu.Lock()
	due := c.policy.ShouldRekey(sent, elapsed)
	c.policyMu.Unlock()
	if !due {
		return nil
	}

	fresh := NewSession(RoleClient, c.cfg)
	hello, err := fresh.StartHandshake()
	if err != nil {
		fresh.Close()
		return err
	}

	c.rekeyPending.Store(true)
	if err := c.writeFrame(hello); err != nil {
		c.rekeyPending.Store(false)
		fresh.Close()
		return err
	}

	reply, handoff, err := c.awaitRekeyReply()
	if err != nil {
		c.rekeyPending.Store(false)
		fresh.Close()
		return err
	}

	_, err = fresh.OnHandshakeMessage(reply)
	if err == nil {
		c.installSession(fresh)
		c.sink.RekeyPerformed()
	} else {
		fresh.Close()
	}
	c.rekeyPending.Store(false)
	if handoff {
		c.rekeySwapped <- struct{}{}
	}
	return err
}

// awaitRekeyReply obtains the ServerHello answering a rekey ClientHello.
// When the read side is idle it takes readMu and reads the stream itself,
// decrypting and queueing any records still sealed under the old keys.
// Otherwise the Receive goroutine owns the stream and hands the reply over
// on rekeyReply; handoff reports which path ran, so the caller knows whether
// a Receive goroutine is waiting on rekeySwapped.
func (c *Conn) awaitRekeyReply() (reply []byte, handoff bool, err error) {
	if !c.readMu.TryLock() {
		return <-c.rekeyReply, true, nil
	}
	defer c.readMu.Unlock()

	for {
		frame, err := c.readFrame()
		if err != nil {
			return nil, false, err
		}
		if protocol.IsHandshakeMessage(frame) {
			return frame, false, nil
		}

		c.sessMu.RLock()
		session := c.session
		c.sessMu.RUnlock()
		plaintext, err := session.Open(frame)
		if err != nil {
			return nil, false, err
		}
		c.queued = append(c.queued, plaintext)
	}
}

// acceptRekey handles an inline ClientHello on the server side.
func (c *Conn) acceptRekey(hello []byte) error {
	c.sessMu.RLock()
	role := c.session.Role()
	c.sessMu.RUnlock()
	if role != RoleServer {
		return qerrors.ErrInvalidState
	}

	fresh := NewSession(RoleServer, c.cfg)
	if _, err := fresh.StartHandshake(); err != nil {
		fresh.Close()
		return err
	}

	reply, err := fresh.OnHandshakeMessage(hello)
	if err != nil {
		fresh.Close()
		return err
	}

	c.writeMu.Lock()
	err = c.writeFrame(reply)
	c.writeMu.Unlock()
	if err != nil {
		fresh.Close()
		return err
	}

	c.installSession(fresh)
	c.sink.RekeyPerformed()
	return nil
}

// Session returns the current session. The pointer changes across rekeys.
func (c *Conn) Session() *Session {
	c.sessMu.RLock()
	defer c.sessMu.RUnlock()
	return c.session
}

// Close erases the session keys and marks the connection closed. The
// underlying stream is closed too when it implements io.Closer.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.sessMu.Lock()
	if c.session != nil {
		c.session.Close()
	}
	c.sessMu.Unlock()
	if closer, ok := c.rw.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (c *Conn) writeFrame(body []byte) error {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(body)))
	if _, err := c.rw.Write(hdr[:]); err != nil {
		return err
	}
	_, err := c.rw.Write(body)
	return err
}

func (c *Conn) readFrame() ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(c.rw, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n == 0 || n > maxFrameSize {
		return nil, qerrors.ErrMessageTooLarge
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(c.rw, body); err != nil {
		return nil, err
	}
	return body, nil
}

// writeRejection sends a ServerHello with a nonzero status, best effort.
func (c *Conn) writeRejection() {
	reply, err := c.codec.EncodeServerHello(&protocol.ServerHello{
		Status: protocol.StatusRejected,
	})
	if err != nil {
		return
	}
	_ = c.writeFrame(reply)
}

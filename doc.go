// Package pqnoise provides a post-quantum secure transport for peer-to-peer
// connections.
//
// The protocol establishes an authenticated, encrypted session in two
// messages using Kyber1024 key encapsulation and Dilithium3 signatures, then
// carries application records under per-direction ChaCha20-Poly1305 keys
// with strict in-order counters.
//
// # Quick Start
//
// For a full connection over any byte stream:
//
//	import "github.com/qtc-project/pqnoise/pkg/noise"
//
//	// Server
//	conn, _ := noise.Server(stream, noise.Config{
//	    StaticKEMKeys: []*crypto.KEMKeyPair{serverKEM},
//	    SigningKey:    serverSig.Secret,
//	})
//	data, _ := conn.Receive()
//
//	// Client
//	conn, _ := noise.Client(stream, noise.Config{
//	    PeerKEMPublicKey: serverKEM.Public,
//	    PeerSigPublicKey: serverSig.Public,
//	})
//	conn.Send([]byte("hello"))
//
// For handshake-level control, drive a noise.Session directly with
// StartHandshake and OnHandshakeMessage over your own transport.
//
// # Package Structure
//
//   - pkg/noise: handshake state machine, record channels, rekey policy,
//     and the framed connection wrapper
//   - pkg/crypto: Kyber1024, Dilithium3, HKDF-SHA3-512, and
//     ChaCha20-Poly1305 wrappers
//   - pkg/protocol: wire message definitions and encoding
//   - pkg/identity: static key storage and rotation schedules
//   - pkg/metrics: counters, Prometheus export, logging, and tracing
//   - internal/constants: protocol parameters and sizes
//   - internal/errors: error taxonomy shared across packages
//
// # Security Properties
//
//   - Post-quantum confidentiality: Kyber1024 (NIST Category 5)
//   - Server authentication: Dilithium3 signature over the handshake
//     transcript, verified against a pre-distributed public key
//   - Directional keys: each direction encrypts under its own key, derived
//     by HKDF-SHA3-512 from the shared secret and transcript
//   - Replay and reorder rejection: records carry a strict per-direction
//     counter checked before decryption
//   - Key hygiene: rekey thresholds bound key usage; rotation schedules
//     bound static key lifetimes
//
// Client authentication and multi-suite negotiation are out of scope; the
// suite is fixed to Kyber1024/Dilithium3/SHA3-512/ChaCha20-Poly1305.
package pqnoise

package identity

import (
	"sync"
	"time"

	"github.com/qtc-project/pqnoise/internal/constants"
	"github.com/qtc-project/pqnoise/pkg/crypto"
)

// kemEntry pairs a KEM keypair with its creation time.
type kemEntry struct {
	pair    *crypto.KEMKeyPair
	created time.Time
}

// sigEntry pairs a signature keypair with its creation time.
type sigEntry struct {
	pair    *crypto.SigKeyPair
	created time.Time
}

// Manager owns the identity keys and their rotation schedule. KEM keys
// rotate daily and the previous key remains accepted for a short overlap;
// signature keys rotate yearly, with no overlap, because a signature key
// change must be coordinated with clients out of band anyway.
//
// All accessors rotate lazily: the first call after a deadline passes
// generates the replacement. A Manager with a nil store keeps keys in
// memory only.
type Manager struct {
	mu    sync.Mutex
	store *Store

	kemCurrent  *kemEntry
	kemPrevious *kemEntry
	sig         *sigEntry

	// now is swappable for tests.
	now func() time.Time
}

// NewManager loads identity keys from store, or starts empty when the store
// holds none. Keys are generated lazily on first use.
func NewManager(store *Store) (*Manager, error) {
	m := &Manager{store: store, now: time.Now}
	if store == nil {
		return m, nil
	}

	if rec, ok, err := store.get(kemCurrentKey); err != nil {
		return nil, err
	} else if ok {
		entry, err := kemEntryFromRecord(rec)
		if err != nil {
			return nil, err
		}
		m.kemCurrent = entry
	}

	if rec, ok, err := store.get(kemPreviousKey); err != nil {
		return nil, err
	} else if ok {
		entry, err := kemEntryFromRecord(rec)
		if err != nil {
			return nil, err
		}
		m.kemPrevious = entry
	}

	if rec, ok, err := store.get(sigCurrentKey); err != nil {
		return nil, err
	} else if ok {
		entry, err := sigEntryFromRecord(rec)
		if err != nil {
			return nil, err
		}
		m.sig = entry
	}

	return m, nil
}

// NewEphemeralManager returns an in-memory manager with no persistence.
func NewEphemeralManager() *Manager {
	return &Manager{now: time.Now}
}

func kemEntryFromRecord(rec *keyRecord) (*kemEntry, error) {
	pub, err := crypto.ParseKEMPublicKey(rec.Public)
	if err != nil {
		return nil, err
	}
	sec, err := crypto.ParseKEMSecretKey(rec.Secret)
	if err != nil {
		return nil, err
	}
	return &kemEntry{
		pair:    &crypto.KEMKeyPair{Public: pub, Secret: sec},
		created: rec.CreatedAt,
	}, nil
}

func sigEntryFromRecord(rec *keyRecord) (*sigEntry, error) {
	pub, err := crypto.ParseSigPublicKey(rec.Public)
	if err != nil {
		return nil, err
	}
	sec, err := crypto.ParseSigSecretKey(rec.Secret)
	if err != nil {
		return nil, err
	}
	return &sigEntry{
		pair:    &crypto.SigKeyPair{Public: pub, Secret: sec},
		created: rec.CreatedAt,
	}, nil
}

// KEMKeys returns the keypairs a server should accept, most recent first:
// the current key, plus the previous key while it is inside the rotation
// overlap window. Rotation happens here when the current key has expired.
func (m *Manager) KEMKeys() ([]*crypto.KEMKeyPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureKEM(); err != nil {
		return nil, err
	}

	keys := []*crypto.KEMKeyPair{m.kemCurrent.pair}
	if m.kemPrevious != nil {
		keys = append(keys, m.kemPrevious.pair)
	}
	return keys, nil
}

// KEMPublicKey returns the current KEM public key to publish to clients.
func (m *Manager) KEMPublicKey() (*crypto.KEMPublicKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureKEM(); err != nil {
		return nil, err
	}
	return m.kemCurrent.pair.Public, nil
}

// SigningKey returns the signature secret key for ServerHello signatures.
func (m *Manager) SigningKey() (*crypto.SigSecretKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureSig(); err != nil {
		return nil, err
	}
	return m.sig.pair.Secret, nil
}

// SigPublicKey returns the signature public key clients verify against.
func (m *Manager) SigPublicKey() (*crypto.SigPublicKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureSig(); err != nil {
		return nil, err
	}
	return m.sig.pair.Public, nil
}

// RotateKEM forces an immediate KEM rotation: the current key moves into the
// overlap slot and a fresh keypair becomes current.
func (m *Manager) RotateKEM() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureKEM(); err != nil {
		return err
	}
	return m.rotateKEMLocked()
}

// RotateSig forces an immediate signature key rotation.
func (m *Manager) RotateSig() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureSig(); err != nil {
		return err
	}
	return m.rotateSigLocked()
}

// ensureKEM creates the first KEM key, rotates an expired one, and expires
// a previous key past its overlap window. Caller holds mu.
func (m *Manager) ensureKEM() error {
	now := m.now()

	if m.kemCurrent == nil {
		pair, err := crypto.GenerateKEMKeyPair()
		if err != nil {
			return err
		}
		m.kemCurrent = &kemEntry{pair: pair, created: now}
		if err := m.persistKEMLocked(); err != nil {
			return err
		}
	}

	if now.Sub(m.kemCurrent.created) >= constants.KEMRotationInterval {
		if err := m.rotateKEMLocked(); err != nil {
			return err
		}
	}

	if m.kemPrevious != nil && m.now().Sub(m.kemCurrent.created) >= constants.KEMRotationOverlap {
		m.kemPrevious.pair.Zeroize()
		m.kemPrevious = nil
		if m.store != nil {
			if err := m.store.delete(kemPreviousKey); err != nil {
				return err
			}
		}
	}

	return nil
}

// rotateKEMLocked replaces the current key and keeps the old one for the
// overlap window. Caller holds mu.
func (m *Manager) rotateKEMLocked() error {
	pair, err := crypto.GenerateKEMKeyPair()
	if err != nil {
		return err
	}
	if m.kemPrevious != nil {
		m.kemPrevious.pair.Zeroize()
	}
	m.kemPrevious = m.kemCurrent
	m.kemCurrent = &kemEntry{pair: pair, created: m.now()}
	return m.persistKEMLocked()
}

func (m *Manager) ensureSig() error {
	now := m.now()

	if m.sig == nil {
		pair, err := crypto.GenerateSigKeyPair()
		if err != nil {
			return err
		}
		m.sig = &sigEntry{pair: pair, created: now}
		return m.persistSigLocked()
	}

	if now.Sub(m.sig.created) >= constants.SigRotationInterval {
		return m.rotateSigLocked()
	}
	return nil
}

func (m *Manager) rotateSigLocked() error {
	pair, err := crypto.GenerateSigKeyPair()
	if err != nil {
		return err
	}
	m.sig = &sigEntry{pair: pair, created: m.now()}
	return m.persistSigLocked()
}

func (m *Manager) persistKEMLocked() error {
	if m.store == nil {
		return nil
	}
	cur := &keyRecord{
		Public:    m.kemCurrent.pair.Public.Bytes(),
		Secret:    m.kemCurrent.pair.Secret.Bytes(),
		CreatedAt: m.kemCurrent.created,
	}
	if err := m.store.put(kemCurrentKey, cur); err != nil {
		return err
	}
	if m.kemPrevious == nil {
		return m.store.delete(kemPreviousKey)
	}
	prev := &keyRecord{
		Public:    m.kemPrevious.pair.Public.Bytes(),
		Secret:    m.kemPrevious.pair.Secret.Bytes(),
		CreatedAt: m.kemPrevious.created,
	}
	return m.store.put(kemPreviousKey, prev)
}

func (m *Manager) persistSigLocked() error {
	if m.store == nil {
		return nil
	}
	return m.store.put(sigCurrentKey, &keyRecord{
		Public:    m.sig.pair.Public.Bytes(),
		Secret:    m.sig.pair.Secret.Bytes(),
		CreatedAt: m.sig.created,
	})
}

// Package identity manages the server's long-lived key material: the static
// KEM keypair clients encapsulate to and the signature keypair the server
// authenticates with. Keys rotate on fixed schedules, and a rotated-out KEM
// key stays usable for a short overlap window so clients holding the old
// public key can still connect.
package identity

import (
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
)

// Store record keys.
const (
	kemCurrentKey  = "kem/current"
	kemPreviousKey = "kem/previous"
	sigCurrentKey  = "sig/current"
)

// keyRecord is the on-disk form of one keypair.
type keyRecord struct {
	Public    []byte    `json:"public"`
	Secret    []byte    `json:"secret"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists identity keypairs in a LevelDB database under dir.
// Secret keys are stored unencrypted; protect the directory with filesystem
// permissions.
type Store struct {
	db *leveldb.DB
}

// OpenStore opens (creating if needed) the identity database under dir.
func OpenStore(dir string) (*Store, error) {
	db, err := leveldb.OpenFile(filepath.Join(dir, "identity"), nil)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) put(key string, rec *keyRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Put([]byte(key), data, nil)
}

// get returns the record under key, or (nil, false, nil) when absent.
func (s *Store) get(key string) (*keyRecord, bool, error) {
	data, err := s.db.Get([]byte(key), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var rec keyRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false, err
	}
	return &rec, true, nil
}

func (s *Store) delete(key string) error {
	return s.db.Delete([]byte(key), nil)
}

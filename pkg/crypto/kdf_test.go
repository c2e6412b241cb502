package crypto_test

import (
	"bytes"
	"testing"

	"github.com/qtc-project/pqnoise/internal/constants"
	"github.com/qtc-project/pqnoise/pkg/crypto"
)

func testSecret() []byte {
	ss := make([]byte, constants.SharedSecretSize)
	for i := range ss {
		ss[i] = byte(i + 1)
	}
	return ss
}

func TestDeriveSessionKeysDeterministic(t *testing.T) {
	transcript := []byte("clienthello bytes")

	k1, err := crypto.DeriveSessionKeys(testSecret(), transcript)
	if err != nil {
		t.Fatalf("DeriveSessionKeys failed: %v", err)
	}
	k2, err := crypto.DeriveSessionKeys(testSecret(), transcript)
	if err != nil {
		t.Fatalf("DeriveSessionKeys failed: %v", err)
	}

	if !bytes.Equal(k1.ClientKey, k2.ClientKey) || !bytes.Equal(k1.ServerKey, k2.ServerKey) {
		t.Error("same inputs produced different keys")
	}
}

func TestDeriveSessionKeysSizes(t *testing.T) {
	keys, err := crypto.DeriveSessionKeys(testSecret(), []byte("transcript"))
	if err != nil {
		t.Fatalf("DeriveSessionKeys failed: %v", err)
	}
	if len(keys.ClientKey) != constants.SessionKeySize {
		t.Errorf("client key size: got %d, want %d", len(keys.ClientKey), constants.SessionKeySize)
	}
	if len(keys.ServerKey) != constants.SessionKeySize {
		t.Errorf("server key size: got %d, want %d", len(keys.ServerKey), constants.SessionKeySize)
	}
}

func TestDeriveSessionKeysDirectionsIndependent(t *testing.T) {
	keys, err := crypto.DeriveSessionKeys(testSecret(), []byte("transcript"))
	if err != nil {
		t.Fatalf("DeriveSessionKeys failed: %v", err)
	}
	if bytes.Equal(keys.ClientKey, keys.ServerKey) {
		t.Error("directional keys are identical")
	}
}

func TestDeriveSessionKeysTranscriptBinding(t *testing.T) {
	k1, err := crypto.DeriveSessionKeys(testSecret(), []byte("transcript A"))
	if err != nil {
		t.Fatalf("DeriveSessionKeys failed: %v", err)
	}
	k2, err := crypto.DeriveSessionKeys(testSecret(), []byte("transcript B"))
	if err != nil {
		t.Fatalf("DeriveSessionKeys failed: %v", err)
	}
	if bytes.Equal(k1.ClientKey, k2.ClientKey) {
		t.Error("different transcripts produced the same client key")
	}
	if bytes.Equal(k1.ServerKey, k2.ServerKey) {
		t.Error("different transcripts produced the same server key")
	}
}

func TestDeriveSessionKeysRejectsBadSecret(t *testing.T) {
	if _, err := crypto.DeriveSessionKeys(make([]byte, 16), []byte("transcript")); err == nil {
		t.Error("short shared secret accepted")
	}
}

func TestSessionKeysDestroy(t *testing.T) {
	keys, err := crypto.DeriveSessionKeys(testSecret(), []byte("transcript"))
	if err != nil {
		t.Fatalf("DeriveSessionKeys failed: %v", err)
	}
	keys.Destroy()
	if keys.ClientKey != nil || keys.ServerKey != nil {
		t.Error("Destroy did not release key material")
	}
	// Destroy must be idempotent, including on nil.
	keys.Destroy()
	var nilKeys *crypto.SessionKeys
	nilKeys.Destroy()
}

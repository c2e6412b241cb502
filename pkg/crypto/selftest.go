// selftest.go runs one-time consistency checks over the wrapped primitives.
//
// Unlike fixed known-answer tests, these are pairwise consistency checks:
// they verify that each primitive round-trips against itself (encapsulate/
// decapsulate, sign/verify, seal/open) and that tampering is rejected. They
// catch a corrupted build or a miswired dependency before any session keys
// are derived from it.
package crypto

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/qtc-project/pqnoise/internal/constants"
)

// SelfTestResult reports the outcome of the primitive consistency checks.
type SelfTestResult struct {
	Passed bool
	Errors []string
}

var (
	selfTestResult *SelfTestResult
	selfTestOnce   sync.Once
)

// RunSelfTest executes the consistency checks. Safe to call repeatedly; the
// checks run once per process.
func RunSelfTest() *SelfTestResult {
	selfTestOnce.Do(func() {
		selfTestResult = &SelfTestResult{Passed: true}
		for _, check := range []struct {
			name string
			fn   func() error
		}{
			{"kem", selfTestKEM},
			{"sign", selfTestSign},
			{"kdf", selfTestKDF},
			{"aead", selfTestAEAD},
		} {
			if err := check.fn(); err != nil {
				selfTestResult.Passed = false
				selfTestResult.Errors = append(selfTestResult.Errors,
					fmt.Sprintf("%s: %v", check.name, err))
			}
		}
	})
	return selfTestResult
}

func selfTestKEM() error {
	kp, err := GenerateKEMKeyPair()
	if err != nil {
		return err
	}
	ct, ss1, err := Encapsulate(kp.Public)
	if err != nil {
		return err
	}
	if len(ct) != constants.KEMCiphertextSize || len(ss1) != constants.SharedSecretSize {
		return fmt.Errorf("unexpected sizes: ct %d, ss %d", len(ct), len(ss1))
	}
	ss2, err := Decapsulate(kp.Secret, ct)
	if err != nil {
		return err
	}
	if !bytes.Equal(ss1, ss2) {
		return fmt.Errorf("shared secret mismatch after decapsulation")
	}
	// A flipped ciphertext must implicitly reject into a different secret.
	ct[0] ^= 0x01
	ss3, err := Decapsulate(kp.Secret, ct)
	if err != nil {
		return err
	}
	if bytes.Equal(ss1, ss3) {
		return fmt.Errorf("tampered ciphertext decapsulated to the original secret")
	}
	return nil
}

func selfTestSign() error {
	kp, err := GenerateSigKeyPair()
	if err != nil {
		return err
	}
	msg := []byte("pqnoise self test message")
	sig, err := Sign(kp.Secret, msg)
	if err != nil {
		return err
	}
	if len(sig) != constants.SignatureSize {
		return fmt.Errorf("unexpected signature size %d", len(sig))
	}
	if !Verify(kp.Public, msg, sig) {
		return fmt.Errorf("valid signature did not verify")
	}
	sig[0] ^= 0x01
	if Verify(kp.Public, msg, sig) {
		return fmt.Errorf("tampered signature verified")
	}
	return nil
}

func selfTestKDF() error {
	secret := make([]byte, constants.SharedSecretSize)
	k1, err := DeriveSessionKeys(secret, []byte("transcript-a"))
	if err != nil {
		return err
	}
	k2, err := DeriveSessionKeys(secret, []byte("transcript-a"))
	if err != nil {
		return err
	}
	if !bytes.Equal(k1.ClientKey, k2.ClientKey) || !bytes.Equal(k1.ServerKey, k2.ServerKey) {
		return fmt.Errorf("derivation is not deterministic")
	}
	k3, err := DeriveSessionKeys(secret, []byte("transcript-b"))
	if err != nil {
		return err
	}
	if bytes.Equal(k1.ClientKey, k3.ClientKey) {
		return fmt.Errorf("transcript does not influence derived keys")
	}
	if bytes.Equal(k1.ClientKey, k1.ServerKey) {
		return fmt.Errorf("directional keys are not independent")
	}
	return nil
}

func selfTestAEAD() error {
	key := make([]byte, constants.AEADKeySize)
	a, err := NewAEAD(key)
	if err != nil {
		return err
	}
	nonce := make([]byte, constants.AEADNonceSize)
	plaintext := []byte("pqnoise aead check")
	sealed := a.Seal(nil, nonce, plaintext, nil)
	opened, err := a.Open(nil, nonce, sealed, nil)
	if err != nil {
		return err
	}
	if !bytes.Equal(opened, plaintext) {
		return fmt.Errorf("seal/open round trip mismatch")
	}
	sealed[len(sealed)-1] ^= 0x01
	if _, err := a.Open(nil, nonce, sealed, nil); err == nil {
		return fmt.Errorf("tampered record opened")
	}
	return nil
}

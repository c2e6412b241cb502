package crypto_test

import (
	"testing"

	"github.com/qtc-project/pqnoise/internal/constants"
	qerrors "github.com/qtc-project/pqnoise/internal/errors"
	"github.com/qtc-project/pqnoise/pkg/crypto"
)

func TestSignVerify(t *testing.T) {
	kp, err := crypto.GenerateSigKeyPair()
	if err != nil {
		t.Fatalf("GenerateSigKeyPair failed: %v", err)
	}

	msg := []byte("handshake transcript bytes")
	sig, err := crypto.Sign(kp.Secret, msg)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if len(sig) != constants.SignatureSize {
		t.Errorf("signature size: got %d, want %d", len(sig), constants.SignatureSize)
	}

	if !crypto.Verify(kp.Public, msg, sig) {
		t.Error("valid signature did not verify")
	}
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	kp, err := crypto.GenerateSigKeyPair()
	if err != nil {
		t.Fatalf("GenerateSigKeyPair failed: %v", err)
	}

	msg := []byte("original message")
	sig, err := crypto.Sign(kp.Secret, msg)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	tampered := append([]byte(nil), msg...)
	tampered[0] ^= 0x01
	if crypto.Verify(kp.Public, tampered, sig) {
		t.Error("signature verified over a tampered message")
	}
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	kp, err := crypto.GenerateSigKeyPair()
	if err != nil {
		t.Fatalf("GenerateSigKeyPair failed: %v", err)
	}

	msg := []byte("message")
	sig, err := crypto.Sign(kp.Secret, msg)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	sig[100] ^= 0x01
	if crypto.Verify(kp.Public, msg, sig) {
		t.Error("tampered signature verified")
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	kp1, _ := crypto.GenerateSigKeyPair()
	kp2, _ := crypto.GenerateSigKeyPair()

	msg := []byte("message")
	sig, err := crypto.Sign(kp1.Secret, msg)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if crypto.Verify(kp2.Public, msg, sig) {
		t.Error("signature verified under the wrong public key")
	}
}

func TestVerifyRejectsShortSignature(t *testing.T) {
	kp, _ := crypto.GenerateSigKeyPair()
	if crypto.Verify(kp.Public, []byte("message"), make([]byte, 100)) {
		t.Error("short signature verified")
	}
}

func TestSigKeySerialization(t *testing.T) {
	kp, err := crypto.GenerateSigKeyPair()
	if err != nil {
		t.Fatalf("GenerateSigKeyPair failed: %v", err)
	}

	pub, err := crypto.ParseSigPublicKey(kp.Public.Bytes())
	if err != nil {
		t.Fatalf("ParseSigPublicKey failed: %v", err)
	}
	sec, err := crypto.ParseSigSecretKey(kp.Secret.Bytes())
	if err != nil {
		t.Fatalf("ParseSigSecretKey failed: %v", err)
	}

	msg := []byte("persisted identity")
	sig, err := crypto.Sign(sec, msg)
	if err != nil {
		t.Fatalf("Sign with parsed key failed: %v", err)
	}
	if !crypto.Verify(pub, msg, sig) {
		t.Error("signature from parsed secret key did not verify under parsed public key")
	}
}

func TestSigParseErrors(t *testing.T) {
	if _, err := crypto.ParseSigPublicKey(make([]byte, 10)); err != qerrors.ErrInvalidPublicKey {
		t.Errorf("short public key: got %v, want %v", err, qerrors.ErrInvalidPublicKey)
	}
	if _, err := crypto.ParseSigSecretKey(make([]byte, 10)); err != qerrors.ErrInvalidSecretKey {
		t.Errorf("short secret key: got %v, want %v", err, qerrors.ErrInvalidSecretKey)
	}
}

package crypto

import (
	"bytes"
	"testing"
)

func TestSignRecover_RoundTrip(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	digest := Hash([]byte("registration payload"))
	sig, err := key.Sign(digest[:])
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if len(sig) != SignatureSize {
		t.Fatalf("signature length = %d, want %d", len(sig), SignatureSize)
	}

	pub, err := RecoverPubKey(digest[:], sig)
	if err != nil {
		t.Fatalf("RecoverPubKey: %v", err)
	}
	if !bytes.Equal(pub, key.PublicKey()) {
		t.Error("recovered pubkey does not match signer")
	}

	addr, err := RecoverAddress(digest[:], sig)
	if err != nil {
		t.Fatalf("RecoverAddress: %v", err)
	}
	if addr != key.Address() {
		t.Error("recovered address does not match signer")
	}
}

func TestVerifySignature(t *testing.T) {
	key, _ := GenerateKey()
	other, _ := GenerateKey()

	digest := Hash([]byte("payload"))
	sig, err := key.Sign(digest[:])
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if !VerifySignature(digest[:], sig, key.Address()) {
		t.Error("valid signature rejected")
	}
	if VerifySignature(digest[:], sig, other.Address()) {
		t.Error("signature verified against wrong address")
	}

	tampered := Hash([]byte("tampered"))
	if VerifySignature(tampered[:], sig, key.Address()) {
		t.Error("signature verified against wrong digest")
	}
}

func TestSign_RejectsBadHashLength(t *testing.T) {
	key, _ := GenerateKey()
	if _, err := key.Sign([]byte("short")); err == nil {
		t.Error("expected error for non-32-byte hash")
	}
}

func TestRecover_RejectsBadSignature(t *testing.T) {
	digest := Hash([]byte("x"))
	if _, err := RecoverAddress(digest[:], make([]byte, 10)); err == nil {
		t.Error("expected error for truncated signature")
	}
	if _, err := RecoverAddress(digest[:], make([]byte, SignatureSize)); err == nil {
		t.Error("expected error for zero signature")
	}
}

func TestPrivateKeyFromBytes(t *testing.T) {
	key, _ := GenerateKey()
	restored, err := PrivateKeyFromBytes(key.Serialize())
	if err != nil {
		t.Fatalf("PrivateKeyFromBytes: %v", err)
	}
	if !bytes.Equal(restored.PublicKey(), key.PublicKey()) {
		t.Error("restored key has different pubkey")
	}

	if _, err := PrivateKeyFromBytes([]byte{0x01}); err == nil {
		t.Error("expected error for short key")
	}
}

package mldsa

import (
	"errors"
	"testing"

	"quantapay/internal/domain"
)

func TestSignVerify_RoundTrip(t *testing.T) {
	signer, err := NewSigner(Level2)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	pub, sec, err := signer.GenerateKeypair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	msg := []byte("TXN-1|2026-03-14T09:26:53Z|m|c|9999|USD|")
	sig, err := signer.Sign(msg, sec)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	ok, err := signer.Verify(msg, sig, pub)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatalf("expected valid signature")
	}
}

func TestVerify_BitFlipFails(t *testing.T) {
	signer, _ := NewSigner(Level2)
	pub, sec, err := signer.GenerateKeypair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	msg := []byte("payload")
	sig, err := signer.Sign(msg, sec)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	for _, idx := range []int{0, len(sig) / 2, len(sig) - 1} {
		flipped := append([]byte{}, sig...)
		flipped[idx] ^= 0x01
		ok, err := signer.Verify(msg, flipped, pub)
		if err != nil {
			t.Fatalf("verify flipped byte %d: %v", idx, err)
		}
		if ok {
			t.Fatalf("flipped signature at byte %d verified", idx)
		}
	}
}

func TestVerify_TruncatedSignatureIsFalseNotError(t *testing.T) {
	signer, _ := NewSigner(Level2)
	pub, sec, err := signer.GenerateKeypair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	sig, err := signer.Sign([]byte("payload"), sec)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	ok, err := signer.Verify([]byte("payload"), sig[:len(sig)-1], pub)
	if err != nil {
		t.Fatalf("truncated signature must not error: %v", err)
	}
	if ok {
		t.Fatalf("truncated signature verified")
	}
	ok, err = signer.Verify([]byte("payload"), nil, pub)
	if err != nil || ok {
		t.Fatalf("nil signature: ok=%v err=%v", ok, err)
	}
}

func TestVerify_WrongKeypairFails(t *testing.T) {
	signer, _ := NewSigner(Level2)
	_, sec, err := signer.GenerateKeypair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	otherPub, _, err := signer.GenerateKeypair()
	if err != nil {
		t.Fatalf("generate second keypair: %v", err)
	}
	sig, err := signer.Sign([]byte("payload"), sec)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	ok, err := signer.Verify([]byte("payload"), sig, otherPub)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatalf("signature verified under wrong public key")
	}
}

func TestVerify_MalformedKeyMaterial(t *testing.T) {
	signer, _ := NewSigner(Level2)
	if _, err := signer.Sign([]byte("m"), []byte("short")); !errors.Is(err, domain.ErrInvalidKeyMaterial) {
		t.Fatalf("expected invalid key material, got %v", err)
	}
	if _, err := signer.Verify([]byte("m"), nil, []byte("short")); !errors.Is(err, domain.ErrInvalidKeyMaterial) {
		t.Fatalf("expected invalid key material, got %v", err)
	}
}

func TestForAlgorithm_ResolvesEveryLevel(t *testing.T) {
	for _, level := range []SecurityLevel{Level2, Level3, Level5} {
		signer, err := NewSigner(level)
		if err != nil {
			t.Fatalf("level %d: %v", level, err)
		}
		resolved, err := ForAlgorithm(signer.Algorithm())
		if err != nil {
			t.Fatalf("resolve %s: %v", signer.Algorithm(), err)
		}
		if resolved.Algorithm() != signer.Algorithm() {
			t.Fatalf("resolved %s, want %s", resolved.Algorithm(), signer.Algorithm())
		}
	}
	if _, err := ForAlgorithm("ed25519"); err == nil {
		t.Fatalf("expected error for unsupported algorithm")
	}
}

func TestTestSigner_DeterministicAndKeyBound(t *testing.T) {
	signer := NewTestSigner()
	pub, sec, err := signer.GenerateKeypair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	sigA, err := signer.Sign([]byte("m"), sec)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	sigB, _ := signer.Sign([]byte("m"), sec)
	if string(sigA) != string(sigB) {
		t.Fatalf("test signer is not deterministic")
	}
	ok, err := signer.Verify([]byte("m"), sigA, pub)
	if err != nil || !ok {
		t.Fatalf("test signature did not verify: ok=%v err=%v", ok, err)
	}
	otherPub, _, _ := signer.GenerateKeypair()
	ok, _ = signer.Verify([]byte("m"), sigA, otherPub)
	if ok {
		t.Fatalf("test signature verified under wrong key")
	}
}

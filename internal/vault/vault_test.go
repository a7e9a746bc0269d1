package vault

import (
	"context"
	"errors"
	"testing"
	"time"

	"quantapay/internal/crypto/mldsa"
	"quantapay/internal/domain"
	"quantapay/internal/infra/memstore"
)

const testPassphrase = "unit-test-passphrase"

func newTestVault(t *testing.T, clock Clock) (*Vault, *memstore.KeyStore) {
	t.Helper()
	store := memstore.NewKeyStore()
	v, err := New(store, mldsa.NewTestSigner(), testPassphrase, clock)
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	return v, store
}

func TestGenerate_DemotesPriorActive(t *testing.T) {
	ctx := context.Background()
	v, _ := newTestVault(t, nil)

	first, _, err := v.GenerateSigningKeypair(ctx, "merchant-7", domain.KeyPurposeTransaction)
	if err != nil {
		t.Fatalf("first generate: %v", err)
	}
	second, _, err := v.GenerateSigningKeypair(ctx, "merchant-7", domain.KeyPurposeTransaction)
	if err != nil {
		t.Fatalf("second generate: %v", err)
	}

	active, err := v.ListActiveKeys(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected exactly one active key, got %d", len(active))
	}
	if _, ok := active[second]; !ok {
		t.Fatalf("newest key %s is not the active one", second)
	}
	meta, err := v.LoadPublicKey(ctx, first)
	if err != nil {
		t.Fatalf("load rotated public key: %v", err)
	}
	if meta.Status != domain.KeyStatusRotated {
		t.Fatalf("prior key status = %s, want rotated", meta.Status)
	}
}

func TestRotateThreeTimes_AllPriorKeysLoadable(t *testing.T) {
	ctx := context.Background()
	v, _ := newTestVault(t, nil)

	ids := make([]string, 0, 4)
	for i := 0; i < 4; i++ {
		id, _, err := v.GenerateSigningKeypair(ctx, "merchant-7", domain.KeyPurposeTransaction)
		if err != nil {
			t.Fatalf("generate %d: %v", i, err)
		}
		ids = append(ids, id)
	}
	active, err := v.ListActiveKeys(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected exactly one active key, got %d", len(active))
	}
	for _, id := range ids[:3] {
		meta, err := v.LoadPublicKey(ctx, id)
		if err != nil {
			t.Fatalf("rotated key %s not loadable: %v", id, err)
		}
		if meta.Status != domain.KeyStatusRotated {
			t.Fatalf("key %s status = %s, want rotated", id, meta.Status)
		}
		if len(meta.PublicKey) == 0 {
			t.Fatalf("rotated key %s has no public key bytes", id)
		}
	}
}

func TestRotatedKeySignaturesStillVerify(t *testing.T) {
	ctx := context.Background()
	v, _ := newTestVault(t, nil)
	signer := mldsa.NewTestSigner()

	keyID, pub, err := v.GenerateSigningKeypair(ctx, "merchant-7", domain.KeyPurposeTransaction)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	sig, err := v.Sign(ctx, keyID, []byte("historical payload"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, _, err := v.GenerateSigningKeypair(ctx, "merchant-7", domain.KeyPurposeTransaction); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	ok, err := signer.Verify([]byte("historical payload"), sig, pub)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatalf("signature from rotated key no longer verifies")
	}
}

func TestRevoke_TerminalAndIdempotent(t *testing.T) {
	ctx := context.Background()
	v, _ := newTestVault(t, nil)

	keyID, _, err := v.GenerateSigningKeypair(ctx, "merchant-7", domain.KeyPurposeTransaction)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if err := v.Revoke(ctx, keyID, "compromise suspected"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := v.Revoke(ctx, keyID, "again"); err != nil {
		t.Fatalf("second revoke should be a no-op: %v", err)
	}

	if _, err := v.LoadSecretKey(ctx, keyID); !errors.Is(err, domain.ErrKeyRevoked) {
		t.Fatalf("load secret of revoked key: got %v, want ErrKeyRevoked", err)
	}
	if _, err := v.Sign(ctx, keyID, []byte("x")); !errors.Is(err, domain.ErrKeyRevoked) {
		t.Fatalf("sign with revoked key: got %v, want ErrKeyRevoked", err)
	}
	meta, err := v.LoadPublicKey(ctx, keyID)
	if err != nil {
		t.Fatalf("public key of revoked key must stay loadable: %v", err)
	}
	if meta.Status != domain.KeyStatusRevoked || meta.Reason != "compromise suspected" {
		t.Fatalf("revoked metadata = %+v", meta)
	}
}

func TestLoadSecretKey_RoundTrip(t *testing.T) {
	ctx := context.Background()
	v, _ := newTestVault(t, nil)

	keyID, pub, err := v.GenerateSigningKeypair(ctx, "merchant-7", domain.KeyPurposeTransaction)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	sec, err := v.LoadSecretKey(ctx, keyID)
	if err != nil {
		t.Fatalf("load secret: %v", err)
	}
	signer := mldsa.NewTestSigner()
	sig, err := signer.Sign([]byte("payload"), sec)
	if err != nil {
		t.Fatalf("sign with loaded secret: %v", err)
	}
	ok, err := signer.Verify([]byte("payload"), sig, pub)
	if err != nil || !ok {
		t.Fatalf("loaded secret does not match public key: ok=%v err=%v", ok, err)
	}
}

func TestLoadSecretKey_Unknown(t *testing.T) {
	v, _ := newTestVault(t, nil)
	if _, err := v.LoadSecretKey(context.Background(), "no-such-key"); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Fatalf("got %v, want ErrKeyNotFound", err)
	}
}

func TestRotateIfExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	v, _ := newTestVault(t, func() time.Time { return now })

	rotated, first, err := v.RotateIfExpired(ctx, "merchant-7", domain.KeyPurposeTransaction, 24*time.Hour)
	if err != nil {
		t.Fatalf("initial rotate: %v", err)
	}
	if !rotated {
		t.Fatalf("expected rotation when no key exists")
	}

	rotated, same, err := v.RotateIfExpired(ctx, "merchant-7", domain.KeyPurposeTransaction, 24*time.Hour)
	if err != nil {
		t.Fatalf("rotate before expiry: %v", err)
	}
	if rotated || same != first {
		t.Fatalf("unexpected rotation before expiry: rotated=%v key=%s", rotated, same)
	}

	now = now.Add(25 * time.Hour)
	rotated, next, err := v.RotateIfExpired(ctx, "merchant-7", domain.KeyPurposeTransaction, 24*time.Hour)
	if err != nil {
		t.Fatalf("rotate after expiry: %v", err)
	}
	if !rotated || next == first {
		t.Fatalf("expected rotation after expiry: rotated=%v key=%s", rotated, next)
	}
}

func TestOwnersDoNotInterfere(t *testing.T) {
	ctx := context.Background()
	v, _ := newTestVault(t, nil)

	a, _, err := v.GenerateSigningKeypair(ctx, "merchant-a", domain.KeyPurposeTransaction)
	if err != nil {
		t.Fatalf("generate a: %v", err)
	}
	b, _, err := v.GenerateSigningKeypair(ctx, "merchant-b", domain.KeyPurposeTransaction)
	if err != nil {
		t.Fatalf("generate b: %v", err)
	}
	active, err := v.ListActiveKeys(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected two active keys across owners, got %d", len(active))
	}
	if _, ok := active[a]; !ok {
		t.Fatalf("merchant-a key missing from active set")
	}
	if _, ok := active[b]; !ok {
		t.Fatalf("merchant-b key missing from active set")
	}
}

func TestEnvelope_RoundTripAndWrongPassphrase(t *testing.T) {
	sealed, err := sealSecret("right", []byte("secret key bytes"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	opened, err := openSecret("right", sealed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if string(opened) != "secret key bytes" {
		t.Fatalf("round trip mismatch: %q", opened)
	}
	if _, err := openSecret("wrong", sealed); err == nil {
		t.Fatalf("expected auth failure with wrong passphrase")
	}
	if _, err := openSecret("right", []byte("not an envelope")); err == nil {
		t.Fatalf("expected invalid envelope error")
	}
}

// Package vault is the sole authority over signing-key material and its
// lifecycle. Secret keys are envelope-encrypted before they reach the
// backing store and never leave the vault boundary in plaintext except
// through LoadSecretKey. Mutations on one (owner, purpose) pair are
// serialized; reads and mutations of unrelated pairs never block on them.
package vault

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"quantapay/internal/crypto/mldsa"
	"quantapay/internal/domain"
)

type Clock func() time.Time

type Vault struct {
	store      domain.KeyStore
	signer     mldsa.Signer
	passphrase string
	clock      Clock

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(store domain.KeyStore, signer mldsa.Signer, passphrase string, clock Clock) (*Vault, error) {
	if store == nil {
		return nil, errors.New("key store is required")
	}
	if signer == nil {
		return nil, errors.New("signer is required")
	}
	if passphrase == "" {
		return nil, errors.New("vault passphrase is required")
	}
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Vault{
		store:      store,
		signer:     signer,
		passphrase: passphrase,
		clock:      clock,
		locks:      make(map[string]*sync.Mutex),
	}, nil
}

// GenerateSigningKeypair creates a new keypair for (owner, purpose), marks
// it active, and demotes the previously active key to rotated. The secret
// key is sealed before it is handed to the store.
func (v *Vault) GenerateSigningKeypair(ctx context.Context, owner string, purpose domain.KeyPurpose) (string, []byte, error) {
	if owner == "" || purpose == "" {
		return "", nil, fmt.Errorf("%w: owner and purpose are required", domain.ErrKeyGenerationFailure)
	}
	lock := v.lockFor(owner, purpose)
	lock.Lock()
	defer lock.Unlock()
	return v.generateLocked(ctx, owner, purpose)
}

func (v *Vault) generateLocked(ctx context.Context, owner string, purpose domain.KeyPurpose) (string, []byte, error) {
	prior, err := v.activeKey(ctx, owner, purpose)
	if err != nil && !errors.Is(err, domain.ErrKeyNotFound) {
		return "", nil, err
	}

	pub, sec, err := v.signer.GenerateKeypair()
	if err != nil {
		return "", nil, err
	}
	defer zeroBytes(sec)

	sealed, err := sealSecret(v.passphrase, sec)
	if err != nil {
		return "", nil, fmt.Errorf("%w: seal secret: %v", domain.ErrKeyGenerationFailure, err)
	}
	keyID := KeyIDFromPublicKey(pub)
	rec := domain.KeyRecord{
		Metadata: domain.KeyMetadata{
			KeyID:     keyID,
			Owner:     owner,
			Purpose:   purpose,
			Algorithm: v.signer.Algorithm(),
			PublicKey: append([]byte{}, pub...),
			Status:    domain.KeyStatusActive,
			CreatedAt: v.clock().UTC(),
		},
		EncryptedSecret: sealed,
	}
	if err := v.store.Put(ctx, rec); err != nil {
		return "", nil, fmt.Errorf("%w: persist key: %v", domain.ErrKeyGenerationFailure, err)
	}
	if prior != nil {
		if err := v.store.MarkStatus(ctx, prior.KeyID, domain.KeyStatusRotated, ""); err != nil {
			// Keep the single-active invariant: back out the new key.
			_ = v.store.MarkStatus(ctx, keyID, domain.KeyStatusRevoked, "rotation rollback")
			return "", nil, fmt.Errorf("%w: demote prior key: %v", domain.ErrKeyGenerationFailure, err)
		}
	}
	return keyID, rec.Metadata.PublicKey, nil
}

// LoadSecretKey opens the sealed secret for a key id. Revoked keys fail
// with ErrKeyRevoked.
func (v *Vault) LoadSecretKey(ctx context.Context, keyID string) ([]byte, error) {
	rec, err := v.store.Get(ctx, keyID)
	if err != nil {
		return nil, err
	}
	if rec.Metadata.Status == domain.KeyStatusRevoked {
		return nil, fmt.Errorf("%w: %s", domain.ErrKeyRevoked, keyID)
	}
	sec, err := openSecret(v.passphrase, rec.EncryptedSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidKeyMaterial, err)
	}
	return sec, nil
}

// LoadPublicKey resolves key metadata, including the public key, for any
// lifecycle state. Revoked keys still resolve so historical signatures can
// be re-verified; callers read Status to decide how to report that.
func (v *Vault) LoadPublicKey(ctx context.Context, keyID string) (domain.KeyMetadata, error) {
	rec, err := v.store.Get(ctx, keyID)
	if err != nil {
		return domain.KeyMetadata{}, err
	}
	return rec.Metadata, nil
}

// ListActiveKeys maps key id to metadata for every active key.
func (v *Vault) ListActiveKeys(ctx context.Context) (map[string]domain.KeyMetadata, error) {
	metas, err := v.store.List(ctx, "", "")
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.KeyMetadata)
	for _, meta := range metas {
		if meta.Status == domain.KeyStatusActive {
			out[meta.KeyID] = meta
		}
	}
	return out, nil
}

// ActiveKey returns the single active key for (owner, purpose).
func (v *Vault) ActiveKey(ctx context.Context, owner string, purpose domain.KeyPurpose) (domain.KeyMetadata, error) {
	meta, err := v.activeKey(ctx, owner, purpose)
	if err != nil {
		return domain.KeyMetadata{}, err
	}
	return *meta, nil
}

// Revoke is terminal and idempotent. Signing and secret-key loads fail
// afterwards; public-key loads keep working.
func (v *Vault) Revoke(ctx context.Context, keyID, reason string) error {
	rec, err := v.store.Get(ctx, keyID)
	if err != nil {
		return err
	}
	if rec.Metadata.Status == domain.KeyStatusRevoked {
		return nil
	}
	lock := v.lockFor(rec.Metadata.Owner, rec.Metadata.Purpose)
	lock.Lock()
	defer lock.Unlock()
	return v.store.MarkStatus(ctx, keyID, domain.KeyStatusRevoked, reason)
}

// RotateIfExpired rotates the active key for (owner, purpose) when it is
// older than maxAge, or creates one when none exists. Meant to be driven
// by an external scheduler.
func (v *Vault) RotateIfExpired(ctx context.Context, owner string, purpose domain.KeyPurpose, maxAge time.Duration) (bool, string, error) {
	if owner == "" || purpose == "" {
		return false, "", fmt.Errorf("%w: owner and purpose are required", domain.ErrKeyGenerationFailure)
	}
	lock := v.lockFor(owner, purpose)
	lock.Lock()
	defer lock.Unlock()

	active, err := v.activeKey(ctx, owner, purpose)
	if err != nil && !errors.Is(err, domain.ErrKeyNotFound) {
		return false, "", err
	}
	if active != nil && maxAge > 0 && v.clock().Sub(active.CreatedAt) < maxAge {
		return false, active.KeyID, nil
	}
	if active != nil && maxAge <= 0 {
		return false, active.KeyID, nil
	}
	keyID, _, err := v.generateLocked(ctx, owner, purpose)
	if err != nil {
		return false, "", err
	}
	return true, keyID, nil
}

// Sign signs a message with the named key without exposing the secret to
// the caller.
func (v *Vault) Sign(ctx context.Context, keyID string, message []byte) ([]byte, error) {
	rec, err := v.store.Get(ctx, keyID)
	if err != nil {
		return nil, err
	}
	if rec.Metadata.Status == domain.KeyStatusRevoked {
		return nil, fmt.Errorf("%w: %s", domain.ErrKeyRevoked, keyID)
	}
	signer, err := mldsa.ForAlgorithm(rec.Metadata.Algorithm)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidKeyMaterial, err)
	}
	sec, err := openSecret(v.passphrase, rec.EncryptedSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidKeyMaterial, err)
	}
	defer zeroBytes(sec)
	return signer.Sign(message, sec)
}

func (v *Vault) activeKey(ctx context.Context, owner string, purpose domain.KeyPurpose) (*domain.KeyMetadata, error) {
	metas, err := v.store.List(ctx, owner, purpose)
	if err != nil {
		return nil, err
	}
	for i := range metas {
		if metas[i].Status == domain.KeyStatusActive {
			return &metas[i], nil
		}
	}
	return nil, fmt.Errorf("%w: no active key for %s/%s", domain.ErrKeyNotFound, owner, purpose)
}

func (v *Vault) lockFor(owner string, purpose domain.KeyPurpose) *sync.Mutex {
	key := owner + "|" + string(purpose)
	v.mu.Lock()
	defer v.mu.Unlock()
	lock, ok := v.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		v.locks[key] = lock
	}
	return lock
}

// KeyIDFromPublicKey derives the stable key id used across the store, the
// API, and stored transactions.
func KeyIDFromPublicKey(pub []byte) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:16])
}

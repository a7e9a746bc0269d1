package usecase

import (
	"context"
	"errors"
	"sort"
	"time"

	"quantapay/internal/domain"
)

// KeyAdmin backs the administrative key endpoints. All mutations go through
// the vault so its rotation and revocation invariants hold.
type KeyAdmin struct {
	Vault KeyVault
}

func (uc *KeyAdmin) Rotate(ctx context.Context, owner string, purpose domain.KeyPurpose) (string, []byte, error) {
	if uc.Vault == nil {
		return "", nil, errors.New("vault is required")
	}
	return uc.Vault.GenerateSigningKeypair(ctx, owner, purpose)
}

func (uc *KeyAdmin) Revoke(ctx context.Context, keyID, reason string) error {
	if uc.Vault == nil {
		return errors.New("vault is required")
	}
	if reason == "" {
		reason = "revoked by operator"
	}
	return uc.Vault.Revoke(ctx, keyID, reason)
}

func (uc *KeyAdmin) ActiveKeys(ctx context.Context) ([]domain.KeyMetadata, error) {
	if uc.Vault == nil {
		return nil, errors.New("vault is required")
	}
	byID, err := uc.Vault.ListActiveKeys(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]domain.KeyMetadata, 0, len(byID))
	for _, meta := range byID {
		keys = append(keys, meta)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].KeyID < keys[j].KeyID })
	return keys, nil
}

// RotateExpired is the scheduler entrypoint: rotate every listed owner's
// key when it has outlived maxAge. Returns the key ids that were rotated.
func (uc *KeyAdmin) RotateExpired(ctx context.Context, owners []string, purpose domain.KeyPurpose, maxAge time.Duration) ([]string, error) {
	if uc.Vault == nil {
		return nil, errors.New("vault is required")
	}
	var rotated []string
	for _, owner := range owners {
		did, keyID, err := uc.Vault.RotateIfExpired(ctx, owner, purpose, maxAge)
		if err != nil {
			return rotated, err
		}
		if did {
			rotated = append(rotated, keyID)
		}
	}
	return rotated, nil
}

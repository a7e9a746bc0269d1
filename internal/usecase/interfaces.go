package usecase

import (
	"context"
	"time"

	"quantapay/internal/domain"
)

// KeyVault is the lifecycle authority for signing keys. Secret key bytes
// never cross this interface; signing happens behind it.
type KeyVault interface {
	GenerateSigningKeypair(ctx context.Context, owner string, purpose domain.KeyPurpose) (keyID string, publicKey []byte, err error)
	ActiveKey(ctx context.Context, owner string, purpose domain.KeyPurpose) (domain.KeyMetadata, error)
	LoadPublicKey(ctx context.Context, keyID string) (domain.KeyMetadata, error)
	ListActiveKeys(ctx context.Context) (map[string]domain.KeyMetadata, error)
	Sign(ctx context.Context, keyID string, message []byte) ([]byte, error)
	Revoke(ctx context.Context, keyID, reason string) error
	RotateIfExpired(ctx context.Context, owner string, purpose domain.KeyPurpose, maxAge time.Duration) (bool, string, error)
}

// ReceiptCipher seals a confirmation payload so that only the named
// recipient can open it.
type ReceiptCipher interface {
	Encrypt(plaintext []byte, identity string) (domain.EncryptedPayload, error)
}

type PolicyEngine interface {
	Evaluate(ctx context.Context, input domain.PolicyInput) (domain.PolicyEvaluation, error)
}

type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

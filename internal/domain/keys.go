package domain

import (
	"context"
	"time"
)

type KeyStatus string

const (
	KeyStatusActive  KeyStatus = "active"
	KeyStatusRotated KeyStatus = "rotated"
	KeyStatusRevoked KeyStatus = "revoked"
)

type KeyPurpose string

const (
	KeyPurposeTransaction KeyPurpose = "transaction-signing"
	KeyPurposeReceipt     KeyPurpose = "receipt-signing"
)

type KeyMetadata struct {
	KeyID     string
	Owner     string
	Purpose   KeyPurpose
	Algorithm string
	PublicKey []byte
	Status    KeyStatus
	Reason    string
	CreatedAt time.Time
	ExpiresAt *time.Time
}

// KeyRecord pairs key metadata with the envelope-encrypted secret key.
// Plaintext secret bytes never cross the store boundary.
type KeyRecord struct {
	Metadata        KeyMetadata
	EncryptedSecret []byte
}

// KeyStore persists key records. Get returns ErrKeyNotFound for unknown
// ids; it returns revoked and rotated records so that historical
// signatures stay verifiable. List with empty owner or purpose matches
// all values of that field.
type KeyStore interface {
	Put(ctx context.Context, rec KeyRecord) error
	Get(ctx context.Context, keyID string) (*KeyRecord, error)
	List(ctx context.Context, owner string, purpose KeyPurpose) ([]KeyMetadata, error)
	MarkStatus(ctx context.Context, keyID string, status KeyStatus, reason string) error
}

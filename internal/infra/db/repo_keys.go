package db

import (
	"context"
	"errors"
	"fmt"

	"quantapay/internal/domain"

	"gorm.io/gorm"
)

var errDBUnavailable = errors.New("db unavailable")

type KeyRepository struct {
	db *gorm.DB
}

func NewKeyRepository(db *gorm.DB) *KeyRepository {
	return &KeyRepository{db: db}
}

func (r *KeyRepository) Put(ctx context.Context, record domain.KeyRecord) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if record.Metadata.KeyID == "" {
		return errors.New("key_id is required")
	}
	model := keyModelFromRecord(record)
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *KeyRepository) Get(ctx context.Context, keyID string) (*domain.KeyRecord, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model SigningKeyModel
	err := r.db.WithContext(ctx).First(&model, "key_id = ?", keyID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrKeyNotFound, keyID)
		}
		return nil, err
	}
	record := recordFromKeyModel(model)
	return &record, nil
}

func (r *KeyRepository) List(ctx context.Context, owner string, purpose domain.KeyPurpose) ([]domain.KeyMetadata, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	query := r.db.WithContext(ctx).Model(&SigningKeyModel{})
	if owner != "" {
		query = query.Where("owner = ?", owner)
	}
	if purpose != "" {
		query = query.Where("purpose = ?", string(purpose))
	}
	var models []SigningKeyModel
	if err := query.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.KeyMetadata, 0, len(models))
	for _, model := range models {
		out = append(out, metadataFromKeyModel(model))
	}
	return out, nil
}

func (r *KeyRepository) MarkStatus(ctx context.Context, keyID string, status domain.KeyStatus, reason string) error {
	if r.db == nil {
		return errDBUnavailable
	}
	result := r.db.WithContext(ctx).
		Model(&SigningKeyModel{}).
		Where("key_id = ?", keyID).
		Updates(map[string]any{"status": string(status), "reason": reason})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrKeyNotFound, keyID)
	}
	return nil
}

func keyModelFromRecord(record domain.KeyRecord) SigningKeyModel {
	meta := record.Metadata
	return SigningKeyModel{
		KeyID:           meta.KeyID,
		Owner:           meta.Owner,
		Purpose:         string(meta.Purpose),
		Algorithm:       meta.Algorithm,
		PublicKey:       copyBytes(meta.PublicKey),
		EncryptedSecret: copyBytes(record.EncryptedSecret),
		Status:          string(meta.Status),
		Reason:          meta.Reason,
		CreatedAt:       meta.CreatedAt.UTC(),
		ExpiresAt:       meta.ExpiresAt,
	}
}

func recordFromKeyModel(model SigningKeyModel) domain.KeyRecord {
	return domain.KeyRecord{
		Metadata:        metadataFromKeyModel(model),
		EncryptedSecret: copyBytes(model.EncryptedSecret),
	}
}

func metadataFromKeyModel(model SigningKeyModel) domain.KeyMetadata {
	return domain.KeyMetadata{
		KeyID:     model.KeyID,
		Owner:     model.Owner,
		Purpose:   domain.KeyPurpose(model.Purpose),
		Algorithm: model.Algorithm,
		PublicKey: copyBytes(model.PublicKey),
		Status:    domain.KeyStatus(model.Status),
		Reason:    model.Reason,
		CreatedAt: model.CreatedAt,
		ExpiresAt: model.ExpiresAt,
	}
}

func copyBytes(in []byte) []byte {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

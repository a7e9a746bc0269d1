package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"quantapay/internal/domain"

	"gorm.io/gorm"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Put(ctx context.Context, tx domain.SignedTransaction) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if tx.TransactionID == "" {
		return errors.New("transaction_id is required")
	}
	items, err := json.Marshal(tx.Items)
	if err != nil {
		return fmt.Errorf("encode line items: %w", err)
	}
	model := TransactionModel{
		TransactionID:    tx.TransactionID,
		Schema:           tx.Schema,
		Timestamp:        tx.Timestamp.UTC(),
		MerchantID:       tx.MerchantID,
		CustomerID:       tx.CustomerID,
		AmountMinorUnits: tx.AmountMinorUnits,
		Currency:         tx.Currency,
		ItemsJSON:        items,
		Signature:        copyBytes(tx.Signature),
		Algorithm:        tx.Algorithm,
		PublicKeyID:      tx.PublicKeyID,
		CreatedAt:        time.Now().UTC(),
	}
	// Records are append-only; a duplicate id is a primary key conflict.
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *TransactionRepository) Get(ctx context.Context, transactionID string) (*domain.SignedTransaction, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model TransactionModel
	err := r.db.WithContext(ctx).First(&model, "transaction_id = ?", transactionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: transaction %s", domain.ErrNotFound, transactionID)
		}
		return nil, err
	}
	return signedFromModel(model)
}

// ListByMerchant supports the reporting endpoint; newest first.
func (r *TransactionRepository) ListByMerchant(ctx context.Context, merchantID string, limit int) ([]domain.SignedTransaction, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var models []TransactionModel
	err := r.db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.SignedTransaction, 0, len(models))
	for _, model := range models {
		tx, err := signedFromModel(model)
		if err != nil {
			return nil, err
		}
		out = append(out, *tx)
	}
	return out, nil
}

func signedFromModel(model TransactionModel) (*domain.SignedTransaction, error) {
	var items []domain.LineItem
	if err := json.Unmarshal(model.ItemsJSON, &items); err != nil {
		return nil, fmt.Errorf("decode line items: %w", err)
	}
	return &domain.SignedTransaction{
		Transaction: domain.Transaction{
			Schema:           model.Schema,
			TransactionID:    model.TransactionID,
			Timestamp:        model.Timestamp,
			MerchantID:       model.MerchantID,
			CustomerID:       model.CustomerID,
			AmountMinorUnits: model.AmountMinorUnits,
			Currency:         model.Currency,
			Items:            items,
		},
		Signature:   copyBytes(model.Signature),
		Algorithm:   model.Algorithm,
		PublicKeyID: model.PublicKeyID,
	}, nil
}

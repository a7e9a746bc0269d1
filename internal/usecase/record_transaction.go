package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"quantapay/internal/crypto/canonical"
	"quantapay/internal/domain"
)

type RecordTransactionRequest struct {
	Transaction domain.Transaction
	// EncryptReceipt asks for a confirmation payload sealed to the
	// customer identity. Requires a ReceiptCipher on the usecase.
	EncryptReceipt bool
}

type RecordTransactionResult struct {
	Signed  domain.SignedTransaction
	Receipt *domain.EncryptedPayload
}

// RecordTransaction signs a transaction with the merchant's active key and
// persists the signed record. The stored record is immutable; re-submitting
// the same transaction id fails.
type RecordTransaction struct {
	Vault    KeyVault
	Store    domain.TransactionStore
	Receipts ReceiptCipher
	Metrics  domain.MetricsSink
	Clock    Clock
}

func (uc *RecordTransaction) Execute(ctx context.Context, req RecordTransactionRequest) (*RecordTransactionResult, error) {
	if uc.Vault == nil || uc.Store == nil {
		return nil, errors.New("vault and transaction store are required")
	}
	metrics := uc.Metrics
	if metrics == nil {
		metrics = domain.NopMetrics{}
	}

	tx := req.Transaction
	if tx.Schema == "" {
		tx.Schema = domain.TransactionSchema
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = uc.now()
	}
	tx.Timestamp = tx.Timestamp.UTC()

	payload, err := canonical.Encode(tx)
	if err != nil {
		return nil, err
	}

	key, err := uc.Vault.ActiveKey(ctx, tx.MerchantID, domain.KeyPurposeTransaction)
	if err != nil {
		return nil, err
	}
	sig, err := uc.Vault.Sign(ctx, key.KeyID, payload)
	if err != nil {
		metrics.Observe(domain.OperationSign, domain.StatusFailure, key.Algorithm)
		return nil, err
	}
	metrics.Observe(domain.OperationSign, domain.StatusSuccess, key.Algorithm)

	signed := domain.SignedTransaction{
		Transaction: tx,
		Signature:   sig,
		Algorithm:   key.Algorithm,
		PublicKeyID: key.KeyID,
	}
	if err := uc.Store.Put(ctx, signed); err != nil {
		return nil, err
	}

	result := &RecordTransactionResult{Signed: signed}
	if req.EncryptReceipt {
		if uc.Receipts == nil {
			return nil, errors.New("receipt encryption requested but no cipher configured")
		}
		receipt, err := uc.sealReceipt(signed)
		if err != nil {
			metrics.Observe(domain.OperationEncrypt, domain.StatusFailure, key.Algorithm)
			return nil, err
		}
		metrics.Observe(domain.OperationEncrypt, domain.StatusSuccess, receipt.Algorithm)
		result.Receipt = &receipt
	}
	return result, nil
}

func (uc *RecordTransaction) sealReceipt(signed domain.SignedTransaction) (domain.EncryptedPayload, error) {
	if signed.CustomerID == "" {
		return domain.EncryptedPayload{}, errors.New("transaction has no customer identity for the receipt")
	}
	plain, err := json.Marshal(signed)
	if err != nil {
		return domain.EncryptedPayload{}, fmt.Errorf("encode receipt: %w", err)
	}
	return uc.Receipts.Encrypt(plain, signed.CustomerID)
}

func (uc *RecordTransaction) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock()
	}
	return systemClock()
}

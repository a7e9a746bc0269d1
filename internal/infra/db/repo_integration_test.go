//go:build integration
// +build integration

package db

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"quantapay/internal/domain"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("QUANTAPAY_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("QUANTAPAY_TEST_POSTGRES_DSN not set")
	}
	store, err := NewStore(dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := store.DB.Exec("TRUNCATE signing_keys, transactions").Error; err != nil {
		t.Fatalf("reset: %v", err)
	}
	return store
}

func TestKeyRepository_Lifecycle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	record := domain.KeyRecord{
		Metadata: domain.KeyMetadata{
			KeyID:     "itest-key-1",
			Owner:     "merchant-7",
			Purpose:   domain.KeyPurposeTransaction,
			Algorithm: "ML-DSA-44",
			PublicKey: []byte("public"),
			Status:    domain.KeyStatusActive,
			CreatedAt: time.Now().UTC(),
		},
		EncryptedSecret: []byte("sealed"),
	}
	if err := store.Keys.Put(ctx, record); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.Keys.Get(ctx, "itest-key-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Metadata.Owner != "merchant-7" || string(got.EncryptedSecret) != "sealed" {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	if err := store.Keys.MarkStatus(ctx, "itest-key-1", domain.KeyStatusRevoked, "test"); err != nil {
		t.Fatalf("mark status: %v", err)
	}
	got, err = store.Keys.Get(ctx, "itest-key-1")
	if err != nil {
		t.Fatalf("get after revoke: %v", err)
	}
	if got.Metadata.Status != domain.KeyStatusRevoked || got.Metadata.Reason != "test" {
		t.Fatalf("status not updated: %+v", got.Metadata)
	}

	metas, err := store.Keys.List(ctx, "merchant-7", domain.KeyPurposeTransaction)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(metas) != 1 {
		t.Fatalf("expected 1 key, got %d", len(metas))
	}

	if _, err := store.Keys.Get(ctx, "absent"); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Fatalf("got %v, want ErrKeyNotFound", err)
	}
}

func TestTransactionRepository_PutGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	signed := domain.SignedTransaction{
		Transaction: domain.Transaction{
			Schema:           domain.TransactionSchema,
			TransactionID:    "itest-txn-1",
			Timestamp:        time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
			MerchantID:       "merchant-7",
			CustomerID:       "alice@example.com",
			AmountMinorUnits: 9999,
			Currency:         "USD",
			Items: []domain.LineItem{
				{ID: "sku-1", Name: "gadget", PriceMinorUnits: 9999, Quantity: 1},
			},
		},
		Signature:   []byte("sig"),
		Algorithm:   "ML-DSA-44",
		PublicKeyID: "itest-key-1",
	}
	if err := store.Transactions.Put(ctx, signed); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Transactions.Put(ctx, signed); err == nil {
		t.Fatalf("expected duplicate id to be rejected")
	}

	got, err := store.Transactions.Get(ctx, "itest-txn-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.AmountMinorUnits != 9999 || len(got.Items) != 1 || got.Items[0].ID != "sku-1" {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	if _, err := store.Transactions.Get(ctx, "absent"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}

	list, err := store.Transactions.ListByMerchant(ctx, "merchant-7", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(list))
	}
}

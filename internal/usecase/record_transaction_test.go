package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"quantapay/internal/crypto/ibe"
	"quantapay/internal/domain"
)

func TestRecord_SignsAndStores(t *testing.T) {
	ctx := context.Background()
	record, _, txs := newVerifierFixture(t)

	keyID, _, err := record.Vault.GenerateSigningKeypair(ctx, "merchant-7", domain.KeyPurposeTransaction)
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	result, err := record.Execute(ctx, RecordTransactionRequest{Transaction: fixtureTransaction("TXN-10")})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if result.Signed.PublicKeyID != keyID {
		t.Fatalf("signed with %s, want active key %s", result.Signed.PublicKeyID, keyID)
	}
	if len(result.Signed.Signature) == 0 || result.Signed.Algorithm == "" {
		t.Fatalf("signature envelope incomplete: %+v", result.Signed)
	}
	if result.Signed.Schema != domain.TransactionSchema {
		t.Fatalf("schema = %q", result.Signed.Schema)
	}

	stored, err := txs.Get(ctx, "TXN-10")
	if err != nil {
		t.Fatalf("stored record missing: %v", err)
	}
	if stored.PublicKeyID != keyID {
		t.Fatalf("stored record signed with %s", stored.PublicKeyID)
	}
}

func TestRecord_DuplicateIDRejected(t *testing.T) {
	ctx := context.Background()
	record, _, _ := newVerifierFixture(t)

	if _, _, err := record.Vault.GenerateSigningKeypair(ctx, "merchant-7", domain.KeyPurposeTransaction); err != nil {
		t.Fatalf("keygen: %v", err)
	}
	if _, err := record.Execute(ctx, RecordTransactionRequest{Transaction: fixtureTransaction("TXN-11")}); err != nil {
		t.Fatalf("first record: %v", err)
	}
	if _, err := record.Execute(ctx, RecordTransactionRequest{Transaction: fixtureTransaction("TXN-11")}); err == nil {
		t.Fatalf("expected duplicate transaction id to be rejected")
	}
}

func TestRecord_NoActiveKey(t *testing.T) {
	record, _, _ := newVerifierFixture(t)
	_, err := record.Execute(context.Background(), RecordTransactionRequest{Transaction: fixtureTransaction("TXN-12")})
	if !errors.Is(err, domain.ErrKeyNotFound) {
		t.Fatalf("got %v, want ErrKeyNotFound", err)
	}
}

func TestRecord_MalformedTransactionRejected(t *testing.T) {
	ctx := context.Background()
	record, _, _ := newVerifierFixture(t)

	if _, _, err := record.Vault.GenerateSigningKeypair(ctx, "merchant-7", domain.KeyPurposeTransaction); err != nil {
		t.Fatalf("keygen: %v", err)
	}
	tx := fixtureTransaction("TXN|13")
	if _, err := record.Execute(ctx, RecordTransactionRequest{Transaction: tx}); !errors.Is(err, domain.ErrSerialization) {
		t.Fatalf("got %v, want ErrSerialization", err)
	}
}

func TestRecord_EncryptedReceipt(t *testing.T) {
	ctx := context.Background()
	record, _, _ := newVerifierFixture(t)

	cipher := ibe.New()
	if _, err := cipher.Setup(); err != nil {
		t.Fatalf("ibe setup: %v", err)
	}
	record.Receipts = cipher

	if _, _, err := record.Vault.GenerateSigningKeypair(ctx, "merchant-7", domain.KeyPurposeTransaction); err != nil {
		t.Fatalf("keygen: %v", err)
	}
	result, err := record.Execute(ctx, RecordTransactionRequest{
		Transaction:    fixtureTransaction("TXN-14"),
		EncryptReceipt: true,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if result.Receipt == nil {
		t.Fatalf("expected an encrypted receipt")
	}
	if result.Receipt.Identity != "alice@example.com" {
		t.Fatalf("receipt sealed to %q", result.Receipt.Identity)
	}

	plain, err := cipher.Decrypt(*result.Receipt, "alice@example.com")
	if err != nil {
		t.Fatalf("decrypt receipt: %v", err)
	}
	var signed domain.SignedTransaction
	if err := json.Unmarshal(plain, &signed); err != nil {
		t.Fatalf("decode receipt: %v", err)
	}
	if signed.TransactionID != "TXN-14" {
		t.Fatalf("receipt is for %q", signed.TransactionID)
	}

	if _, err := cipher.Decrypt(*result.Receipt, "mallory@example.com"); !errors.Is(err, domain.ErrDecryptionFailure) {
		t.Fatalf("wrong identity opened the receipt: %v", err)
	}
}

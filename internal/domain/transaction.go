package domain

import (
	"context"
	"time"
)

// TransactionSchema is the record version carried on stored transactions.
// The canonical signing input is fixed independently of this value; bumping
// the schema never silently changes signature bytes for existing records.
const TransactionSchema = "txn/v1"

type LineItem struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	PriceMinorUnits int64  `json:"price_minor_units"`
	Quantity        int64  `json:"qty"`
}

// Transaction is the signable payment record. Amounts are integer minor
// units throughout; floating point never appears on the signing path.
type Transaction struct {
	Schema           string     `json:"schema"`
	TransactionID    string     `json:"transaction_id"`
	Timestamp        time.Time  `json:"timestamp"`
	MerchantID       string     `json:"merchant_id"`
	CustomerID       string     `json:"customer_id"`
	AmountMinorUnits int64      `json:"amount_minor_units"`
	Currency         string     `json:"currency"`
	Items            []LineItem `json:"items"`
}

// SignedTransaction is a transaction plus its signature envelope. Records
// are immutable once stored.
type SignedTransaction struct {
	Transaction
	Signature   []byte `json:"signature"`
	Algorithm   string `json:"algorithm"`
	PublicKeyID string `json:"public_key_id"`
}

// TransactionStore persists signed transactions. Get returns ErrNotFound
// when no record exists for the id.
type TransactionStore interface {
	Put(ctx context.Context, tx SignedTransaction) error
	Get(ctx context.Context, transactionID string) (*SignedTransaction, error)
}

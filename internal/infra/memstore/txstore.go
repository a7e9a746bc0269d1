package memstore

import (
	"context"
	"fmt"
	"sync"

	"quantapay/internal/domain"
)

type TransactionStore struct {
	mu  sync.RWMutex
	txs map[string]domain.SignedTransaction
}

func NewTransactionStore() *TransactionStore {
	return &TransactionStore{txs: make(map[string]domain.SignedTransaction)}
}

func (s *TransactionStore) Put(_ context.Context, tx domain.SignedTransaction) error {
	if tx.TransactionID == "" {
		return fmt.Errorf("transaction_id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.txs[tx.TransactionID]; exists {
		return fmt.Errorf("transaction %s already stored", tx.TransactionID)
	}
	s.txs[tx.TransactionID] = cloneTransaction(tx)
	return nil
}

func (s *TransactionStore) Get(_ context.Context, transactionID string) (*domain.SignedTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.txs[transactionID]
	if !ok {
		return nil, fmt.Errorf("%w: transaction %s", domain.ErrNotFound, transactionID)
	}
	out := cloneTransaction(tx)
	return &out, nil
}

func cloneTransaction(tx domain.SignedTransaction) domain.SignedTransaction {
	out := tx
	out.Signature = append([]byte{}, tx.Signature...)
	out.Items = append([]domain.LineItem{}, tx.Items...)
	return out
}

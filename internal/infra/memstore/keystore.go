// Package memstore provides in-memory collaborator implementations for
// development mode and tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"quantapay/internal/domain"
)

type KeyStore struct {
	mu   sync.RWMutex
	keys map[string]domain.KeyRecord
}

func NewKeyStore() *KeyStore {
	return &KeyStore{keys: make(map[string]domain.KeyRecord)}
}

func (s *KeyStore) Put(_ context.Context, rec domain.KeyRecord) error {
	if rec.Metadata.KeyID == "" {
		return fmt.Errorf("key_id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[rec.Metadata.KeyID] = cloneRecord(rec)
	return nil
}

func (s *KeyStore) Get(_ context.Context, keyID string) (*domain.KeyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.keys[keyID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrKeyNotFound, keyID)
	}
	out := cloneRecord(rec)
	return &out, nil
}

func (s *KeyStore) List(_ context.Context, owner string, purpose domain.KeyPurpose) ([]domain.KeyMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.KeyMetadata, 0, len(s.keys))
	for _, rec := range s.keys {
		if owner != "" && rec.Metadata.Owner != owner {
			continue
		}
		if purpose != "" && rec.Metadata.Purpose != purpose {
			continue
		}
		out = append(out, cloneRecord(rec).Metadata)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *KeyStore) MarkStatus(_ context.Context, keyID string, status domain.KeyStatus, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.keys[keyID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrKeyNotFound, keyID)
	}
	rec.Metadata.Status = status
	if reason != "" {
		rec.Metadata.Reason = reason
	}
	s.keys[keyID] = rec
	return nil
}

func cloneRecord(rec domain.KeyRecord) domain.KeyRecord {
	out := rec
	out.Metadata.PublicKey = append([]byte{}, rec.Metadata.PublicKey...)
	out.EncryptedSecret = append([]byte{}, rec.EncryptedSecret...)
	return out
}

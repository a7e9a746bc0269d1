package http

import (
	"context"
	"log"
	"sort"
	"time"

	"quantapay/internal/domain"
)

// StartRotationLoop rotates signing keys older than KEY_ROTATION_DAYS in
// the background until ctx is cancelled. It is a no-op when rotation is
// disabled or key administration is not wired.
func (s *Server) StartRotationLoop(ctx context.Context, interval time.Duration) {
	if s.keyAdmin == nil || s.cfg.KeyRotationDays <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.rotateExpiredOnce(ctx)
			}
		}
	}()
}

func (s *Server) rotateExpiredOnce(ctx context.Context) {
	keys, err := s.keyAdmin.ActiveKeys(ctx)
	if err != nil {
		log.Printf("key rotation: list active keys: %v", err)
		return
	}
	rotated, err := s.keyAdmin.RotateExpired(ctx, activeOwners(keys), domain.KeyPurposeTransaction, s.cfg.KeyRotationInterval())
	if err != nil {
		log.Printf("key rotation: %v", err)
		return
	}
	for _, keyID := range rotated {
		log.Printf("key rotation: new active key %s", keyID)
	}
}

func activeOwners(keys []domain.KeyMetadata) []string {
	seen := make(map[string]bool, len(keys))
	owners := make([]string, 0, len(keys))
	for _, key := range keys {
		if !seen[key.Owner] {
			seen[key.Owner] = true
			owners = append(owners, key.Owner)
		}
	}
	sort.Strings(owners)
	return owners
}

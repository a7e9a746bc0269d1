// Package db is the postgres persistence layer. Both repositories satisfy
// the corresponding domain store interfaces, so the rest of the system
// cannot tell postgres from the in-memory stores.
package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Store struct {
	DB           *gorm.DB
	Keys         *KeyRepository
	Transactions *TransactionRepository
}

func NewStore(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{
		DB:           gdb,
		Keys:         NewKeyRepository(gdb),
		Transactions: NewTransactionRepository(gdb),
	}, nil
}

// Migrate creates or updates the schema. Intended for development and
// tests; production deployments run migrations out of band.
func (s *Store) Migrate() error {
	return s.DB.AutoMigrate(&SigningKeyModel{}, &TransactionModel{})
}

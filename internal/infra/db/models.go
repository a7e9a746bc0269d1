package db

import "time"

type SigningKeyModel struct {
	KeyID           string `gorm:"primaryKey"`
	Owner           string `gorm:"index:idx_owner_purpose;not null"`
	Purpose         string `gorm:"index:idx_owner_purpose;not null"`
	Algorithm       string `gorm:"not null"`
	PublicKey       []byte `gorm:"type:bytea;not null"`
	EncryptedSecret []byte `gorm:"type:bytea;not null"`
	Status          string `gorm:"index;not null"`
	Reason          string
	CreatedAt       time.Time `gorm:"not null"`
	ExpiresAt       *time.Time
}

func (SigningKeyModel) TableName() string { return "signing_keys" }

type TransactionModel struct {
	TransactionID    string    `gorm:"primaryKey"`
	Schema           string    `gorm:"not null"`
	Timestamp        time.Time `gorm:"not null"`
	MerchantID       string    `gorm:"index;not null"`
	CustomerID       string    `gorm:"index;not null"`
	AmountMinorUnits int64     `gorm:"not null"`
	Currency         string    `gorm:"not null"`
	ItemsJSON        []byte    `gorm:"type:jsonb;not null"`
	Signature        []byte    `gorm:"type:bytea;not null"`
	Algorithm        string    `gorm:"not null"`
	PublicKeyID      string    `gorm:"index;not null"`
	CreatedAt        time.Time `gorm:"not null"`
}

func (TransactionModel) TableName() string { return "transactions" }

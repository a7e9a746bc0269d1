package domain

import "time"

type VerificationDetails struct {
	SignatureLength int  `json:"signature_length"`
	TimestampValid  bool `json:"timestamp_valid"`
	AmountValid     bool `json:"amount_valid"`
}

// VerificationReport is the outcome of re-verifying a stored transaction.
// It is produced per call and never persisted by the core; two calls on the
// same stored record agree on every field except VerificationID/VerifiedAt.
type VerificationReport struct {
	VerificationID string              `json:"verification_id"`
	VerifiedAt     time.Time           `json:"verified_at"`
	TransactionID  string              `json:"transaction_id"`
	IsValid        bool                `json:"is_valid"`
	Message        string              `json:"message"`
	Algorithm      string              `json:"algorithm"`
	PublicKeyID    string              `json:"public_key_id"`
	KeyStatus      KeyStatus           `json:"key_status"`
	Details        VerificationDetails `json:"details"`
}

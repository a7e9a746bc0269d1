package domain

import "time"

// PolicyInput is the document handed to the business-invariant policy after
// the cryptographic checks have run.
type PolicyInput struct {
	TransactionID    string             `json:"transaction_id"`
	Timestamp        time.Time          `json:"timestamp"`
	MerchantID       string             `json:"merchant_id"`
	AmountMinorUnits int64              `json:"amount_minor_units"`
	Currency         string             `json:"currency"`
	Verification     PolicyVerification `json:"verification"`
}

type PolicyVerification struct {
	SignatureValid bool   `json:"signature_valid"`
	KeyStatus      string `json:"key_status"`
}

type PolicyDeny struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type PolicyResult struct {
	Allow bool         `json:"allow"`
	Deny  []PolicyDeny `json:"deny,omitempty"`
}

type PolicyEvaluation struct {
	BundleID   string       `json:"bundle_id,omitempty"`
	BundleHash string       `json:"bundle_hash"`
	Result     PolicyResult `json:"result"`
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"quantapay/internal/crypto/canonical"
	"quantapay/internal/crypto/mldsa"
	"quantapay/internal/domain"
)

const defaultClockSkew = 5 * time.Minute

// VerifyTransaction re-verifies a stored transaction against its recorded
// signature. Verification failures of any kind come back as a report with
// IsValid=false; an error return means the verifier itself could not run
// (record missing, store unavailable).
type VerifyTransaction struct {
	Store   domain.TransactionStore
	Vault   KeyVault
	Metrics domain.MetricsSink
	Clock   Clock

	// MaxClockSkew bounds how far in the future a transaction timestamp
	// may sit before the report flags it. Zero means the default.
	MaxClockSkew time.Duration

	// SupportedCurrencies overrides the accepted ISO 4217 set. Nil means
	// the default set.
	SupportedCurrencies []string
}

var defaultCurrencies = []string{"USD", "EUR", "GBP", "JPY", "CHF"}

func (uc *VerifyTransaction) Execute(ctx context.Context, transactionID string) (*domain.VerificationReport, error) {
	if uc.Store == nil || uc.Vault == nil {
		return nil, errors.New("transaction store and vault are required")
	}
	signed, err := uc.Store.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	return uc.verify(ctx, *signed)
}

// ExecuteSigned verifies a signed record directly, without a store lookup.
func (uc *VerifyTransaction) ExecuteSigned(ctx context.Context, signed domain.SignedTransaction) (*domain.VerificationReport, error) {
	if uc.Vault == nil {
		return nil, errors.New("vault is required")
	}
	return uc.verify(ctx, signed)
}

func (uc *VerifyTransaction) verify(ctx context.Context, signed domain.SignedTransaction) (*domain.VerificationReport, error) {
	metrics := uc.Metrics
	if metrics == nil {
		metrics = domain.NopMetrics{}
	}
	report := &domain.VerificationReport{
		VerificationID: uuid.NewString(),
		VerifiedAt:     uc.now(),
		TransactionID:  signed.TransactionID,
		Algorithm:      signed.Algorithm,
		PublicKeyID:    signed.PublicKeyID,
		Details: domain.VerificationDetails{
			SignatureLength: len(signed.Signature),
		},
	}
	fail := func(msg string) (*domain.VerificationReport, error) {
		report.IsValid = false
		report.Message = msg
		metrics.Observe(domain.OperationVerify, domain.StatusFailure, signed.Algorithm)
		return report, nil
	}

	key, err := uc.Vault.LoadPublicKey(ctx, signed.PublicKeyID)
	if err != nil {
		if errors.Is(err, domain.ErrKeyNotFound) {
			return fail(fmt.Sprintf("unknown signing key %s", signed.PublicKeyID))
		}
		return nil, err
	}
	report.KeyStatus = key.Status

	signer, err := mldsa.ForAlgorithm(signed.Algorithm)
	if err != nil {
		return fail(fmt.Sprintf("unsupported signature algorithm %q", signed.Algorithm))
	}
	if want, fixed := mldsa.SignatureSize(signer); fixed && len(signed.Signature) != want {
		return fail(fmt.Sprintf("signature format invalid: expected %d bytes, got %d", want, len(signed.Signature)))
	}

	payload, err := canonical.Encode(signed.Transaction)
	if err != nil {
		return fail(fmt.Sprintf("transaction not canonicalizable: %v", err))
	}
	ok, err := signer.Verify(payload, signed.Signature, key.PublicKey)
	if err != nil {
		return fail(fmt.Sprintf("verification failed: %v", err))
	}
	if !ok {
		return fail("signature mismatch")
	}

	report.Details.TimestampValid = uc.timestampValid(signed.Timestamp, report.VerifiedAt)
	report.Details.AmountValid = signed.AmountMinorUnits > 0
	switch {
	case !report.Details.TimestampValid:
		return fail("transaction timestamp outside the accepted window")
	case !report.Details.AmountValid:
		return fail("transaction amount must be positive")
	case !uc.currencySupported(signed.Currency):
		return fail(fmt.Sprintf("unsupported currency %q", signed.Currency))
	}

	report.IsValid = true
	report.Message = "signature verified"
	if key.Status != domain.KeyStatusActive {
		report.Message = fmt.Sprintf("signature verified (key %s)", key.Status)
	}
	metrics.Observe(domain.OperationVerify, domain.StatusSuccess, signed.Algorithm)
	return report, nil
}

func (uc *VerifyTransaction) currencySupported(currency string) bool {
	set := uc.SupportedCurrencies
	if set == nil {
		set = defaultCurrencies
	}
	for _, c := range set {
		if c == currency {
			return true
		}
	}
	return false
}

func (uc *VerifyTransaction) timestampValid(ts, now time.Time) bool {
	if ts.IsZero() {
		return false
	}
	skew := uc.MaxClockSkew
	if skew <= 0 {
		skew = defaultClockSkew
	}
	return ts.Before(now.Add(skew))
}

func (uc *VerifyTransaction) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock()
	}
	return systemClock()
}

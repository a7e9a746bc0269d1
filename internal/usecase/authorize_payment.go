package usecase

import (
	"context"
	"errors"

	"quantapay/internal/domain"
)

type AuthorizePaymentResult struct {
	Report *domain.VerificationReport
	Policy domain.PolicyEvaluation
	// Authorized is true only when the signature verified and the policy
	// allowed the payment.
	Authorized bool
}

// AuthorizePayment runs the full decision for a stored transaction:
// cryptographic verification first, then the business policy over the
// verified fields. The policy sees the verification outcome and may still
// deny a cryptographically valid payment.
type AuthorizePayment struct {
	Verifier *VerifyTransaction
	Policy   PolicyEngine
}

func (uc *AuthorizePayment) Execute(ctx context.Context, transactionID string) (*AuthorizePaymentResult, error) {
	if uc.Verifier == nil || uc.Policy == nil {
		return nil, errors.New("verifier and policy engine are required")
	}
	report, err := uc.Verifier.Execute(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	signed, err := uc.Verifier.Store.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	eval, err := uc.Policy.Evaluate(ctx, domain.PolicyInput{
		TransactionID:    signed.TransactionID,
		Timestamp:        signed.Timestamp,
		MerchantID:       signed.MerchantID,
		AmountMinorUnits: signed.AmountMinorUnits,
		Currency:         signed.Currency,
		Verification: domain.PolicyVerification{
			SignatureValid: report.IsValid,
			KeyStatus:      string(report.KeyStatus),
		},
	})
	if err != nil {
		return nil, err
	}

	return &AuthorizePaymentResult{
		Report:     report,
		Policy:     eval,
		Authorized: report.IsValid && eval.Result.Allow,
	}, nil
}

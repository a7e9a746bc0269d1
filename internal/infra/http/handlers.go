package http

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"quantapay/internal/domain"
	"quantapay/internal/infra/cachemem"
	"quantapay/internal/usecase"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const identityKeyTTL = 10 * time.Minute

func identityKeyFromCache(cache *cachemem.Cache, identity string, generation uint32) (domain.IdentityPrivateKey, bool) {
	cached, ok := cache.Get(identity, generation)
	if !ok {
		return domain.IdentityPrivateKey{}, false
	}
	return *cached, true
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type lineItemInput struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	PriceMinorUnits int64  `json:"price_minor_units"`
	Quantity        int64  `json:"qty"`
}

type recordTransactionRequest struct {
	TransactionID    string          `json:"transaction_id,omitempty"`
	Timestamp        string          `json:"timestamp,omitempty"`
	MerchantID       string          `json:"merchant_id"`
	CustomerID       string          `json:"customer_id"`
	AmountMinorUnits int64           `json:"amount_minor_units"`
	Currency         string          `json:"currency"`
	Items            []lineItemInput `json:"items,omitempty"`
	EncryptReceipt   bool            `json:"encrypt_receipt,omitempty"`
}

type signedTransactionResponse struct {
	TransactionID    string          `json:"transaction_id"`
	Timestamp        string          `json:"timestamp"`
	MerchantID       string          `json:"merchant_id"`
	CustomerID       string          `json:"customer_id"`
	AmountMinorUnits int64           `json:"amount_minor_units"`
	Currency         string          `json:"currency"`
	Items            []lineItemInput `json:"items,omitempty"`
	Signature        string          `json:"signature"`
	Algorithm        string          `json:"algorithm"`
	PublicKeyID      string          `json:"public_key_id"`
}

type recordTransactionResponse struct {
	Transaction signedTransactionResponse `json:"transaction"`
	Receipt     *encryptedPayloadResponse `json:"receipt,omitempty"`
}

type encryptedPayloadResponse struct {
	Identity   string `json:"identity"`
	Algorithm  string `json:"algorithm"`
	Generation uint32 `json:"generation"`
	Ephemeral  string `json:"ephemeral"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

type verificationResponse struct {
	VerificationID string `json:"verification_id"`
	VerifiedAt     string `json:"verified_at"`
	TransactionID  string `json:"transaction_id"`
	IsValid        bool   `json:"is_valid"`
	Message        string `json:"message"`
	Algorithm      string `json:"algorithm"`
	PublicKeyID    string `json:"public_key_id"`
	KeyStatus      string `json:"key_status"`
	Details        struct {
		SignatureLength int  `json:"signature_length"`
		TimestampValid  bool `json:"timestamp_valid"`
		AmountValid     bool `json:"amount_valid"`
	} `json:"details"`
}

type authorizeResponse struct {
	Authorized   bool                    `json:"authorized"`
	Verification verificationResponse    `json:"verification"`
	Policy       domain.PolicyEvaluation `json:"policy"`
}

type ibeParamsResponse struct {
	Algorithm  string `json:"algorithm"`
	GroupID    string `json:"group_id"`
	Generation uint32 `json:"generation"`
	Public     string `json:"public"`
}

type deriveIdentityKeyRequest struct {
	Identity string `json:"identity"`
}

type identityKeyResponse struct {
	Identity   string `json:"identity"`
	Generation uint32 `json:"generation"`
	Key        string `json:"key"`
}

type keyMetadataResponse struct {
	KeyID     string `json:"key_id"`
	Owner     string `json:"owner"`
	Purpose   string `json:"purpose"`
	Algorithm string `json:"algorithm"`
	PublicKey string `json:"public_key"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
	CreatedAt string `json:"created_at"`
}

type rotateKeyRequest struct {
	Owner   string `json:"owner"`
	Purpose string `json:"purpose,omitempty"`
}

type revokeKeyRequest struct {
	Reason string `json:"reason,omitempty"`
}

func (s *Server) handleRecordTransaction(c *gin.Context) {
	if s.record == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "UNAVAILABLE", "transaction recording is not configured")
		return
	}
	var req recordTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	if !s.enforceRateLimit(c, "transactions:record", req.MerchantID) {
		return
	}

	tx := domain.Transaction{
		TransactionID:    req.TransactionID,
		MerchantID:       req.MerchantID,
		CustomerID:       req.CustomerID,
		AmountMinorUnits: req.AmountMinorUnits,
		Currency:         req.Currency,
		Items:            itemsFromInput(req.Items),
	}
	if tx.TransactionID == "" {
		tx.TransactionID = uuid.NewString()
	}
	if req.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_TIMESTAMP", "timestamp must be RFC 3339")
			return
		}
		tx.Timestamp = ts
	}

	result, err := s.record.Execute(c.Request.Context(), usecase.RecordTransactionRequest{
		Transaction:    tx,
		EncryptReceipt: req.EncryptReceipt,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	out := recordTransactionResponse{
		Transaction: buildSignedTransactionResponse(result.Signed),
	}
	if result.Receipt != nil {
		receipt := buildEncryptedPayloadResponse(*result.Receipt)
		out.Receipt = &receipt
	}
	c.JSON(http.StatusCreated, out)
}

func (s *Server) handleGetTransaction(c *gin.Context) {
	if s.verify == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "UNAVAILABLE", "transaction store is not configured")
		return
	}
	signed, err := s.verify.Store.Get(c.Request.Context(), c.Param("transaction_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildSignedTransactionResponse(*signed))
}

func (s *Server) handleVerifyTransaction(c *gin.Context) {
	if s.verify == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "UNAVAILABLE", "verification is not configured")
		return
	}
	if !s.enforceRateLimit(c, "transactions:verify", c.Param("transaction_id")) {
		return
	}
	report, err := s.verify.Execute(c.Request.Context(), c.Param("transaction_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildVerificationResponse(*report))
}

func (s *Server) handleAuthorizeTransaction(c *gin.Context) {
	if s.authorize == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "UNAVAILABLE", "no policy bundle configured")
		return
	}
	if !s.enforceRateLimit(c, "transactions:authorize", c.Param("transaction_id")) {
		return
	}
	result, err := s.authorize.Execute(c.Request.Context(), c.Param("transaction_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, authorizeResponse{
		Authorized:   result.Authorized,
		Verification: buildVerificationResponse(*result.Report),
		Policy:       result.Policy,
	})
}

func (s *Server) handleIBEParams(c *gin.Context) {
	if s.identity == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "UNAVAILABLE", "identity encryption is not configured")
		return
	}
	params, err := s.identity.Params()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ibeParamsResponse{
		Algorithm:  params.Algorithm,
		GroupID:    params.GroupID,
		Generation: params.Generation,
		Public:     base64.StdEncoding.EncodeToString(params.Public),
	})
}

// Identity private keys are escrowed by the master secret holder, so
// handing one out is an administrative action.
func (s *Server) handleDeriveIdentityKey(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	if s.identity == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "UNAVAILABLE", "identity encryption is not configured")
		return
	}
	var req deriveIdentityKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Identity == "" {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "identity is required")
		return
	}
	params, err := s.identity.Params()
	if err != nil {
		writeError(c, err)
		return
	}
	key, ok := identityKeyFromCache(s.identityKeys, req.Identity, params.Generation)
	if !ok {
		derived, err := s.identity.DeriveIdentityKey(req.Identity)
		if err != nil {
			writeError(c, err)
			return
		}
		key = derived
		s.identityKeys.Put(derived, identityKeyTTL)
	}
	c.JSON(http.StatusOK, identityKeyResponse{
		Identity:   key.Identity,
		Generation: key.Generation,
		Key:        base64.StdEncoding.EncodeToString(key.Key),
	})
}

func (s *Server) handleListActiveKeys(c *gin.Context) {
	if s.keyAdmin == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "UNAVAILABLE", "key administration is not configured")
		return
	}
	keys, err := s.keyAdmin.ActiveKeys(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	purpose := c.Query("purpose")
	out := make([]keyMetadataResponse, 0, len(keys))
	for _, key := range keys {
		if purpose != "" && string(key.Purpose) != purpose {
			continue
		}
		out = append(out, buildKeyMetadataResponse(key))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleRotateExpiredKeys(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	if s.keyAdmin == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "UNAVAILABLE", "key administration is not configured")
		return
	}
	keys, err := s.keyAdmin.ActiveKeys(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	rotated, err := s.keyAdmin.RotateExpired(c.Request.Context(), activeOwners(keys), domain.KeyPurposeTransaction, s.cfg.KeyRotationInterval())
	if err != nil {
		writeError(c, err)
		return
	}
	if rotated == nil {
		rotated = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"rotated": rotated})
}

func (s *Server) handleRotateKey(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	if s.keyAdmin == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "UNAVAILABLE", "key administration is not configured")
		return
	}
	var req rotateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Owner == "" {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "owner is required")
		return
	}
	purpose := domain.KeyPurpose(req.Purpose)
	if purpose == "" {
		purpose = domain.KeyPurposeTransaction
	}
	keyID, pub, err := s.keyAdmin.Rotate(c.Request.Context(), req.Owner, purpose)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"key_id":     keyID,
		"public_key": base64.StdEncoding.EncodeToString(pub),
	})
}

func (s *Server) handleRevokeKey(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	if s.keyAdmin == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "UNAVAILABLE", "key administration is not configured")
		return
	}
	var req revokeKeyRequest
	_ = c.ShouldBindJSON(&req)
	if err := s.keyAdmin.Revoke(c.Request.Context(), c.Param("key_id"), req.Reason); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revoked": true})
}

func (s *Server) requireAdmin(c *gin.Context) bool {
	if s.adminAPIKey == "" {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "admin key required")
		return false
	}
	key := c.GetHeader("X-Admin-Key")
	if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.adminAPIKey)) != 1 {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid admin key")
		return false
	}
	return true
}

func itemsFromInput(in []lineItemInput) []domain.LineItem {
	if len(in) == 0 {
		return nil
	}
	out := make([]domain.LineItem, 0, len(in))
	for _, item := range in {
		out = append(out, domain.LineItem{
			ID:              item.ID,
			Name:            item.Name,
			PriceMinorUnits: item.PriceMinorUnits,
			Quantity:        item.Quantity,
		})
	}
	return out
}

func buildSignedTransactionResponse(signed domain.SignedTransaction) signedTransactionResponse {
	items := make([]lineItemInput, 0, len(signed.Items))
	for _, item := range signed.Items {
		items = append(items, lineItemInput{
			ID:              item.ID,
			Name:            item.Name,
			PriceMinorUnits: item.PriceMinorUnits,
			Quantity:        item.Quantity,
		})
	}
	return signedTransactionResponse{
		TransactionID:    signed.TransactionID,
		Timestamp:        signed.Timestamp.UTC().Format(time.RFC3339),
		MerchantID:       signed.MerchantID,
		CustomerID:       signed.CustomerID,
		AmountMinorUnits: signed.AmountMinorUnits,
		Currency:         signed.Currency,
		Items:            items,
		Signature:        base64.StdEncoding.EncodeToString(signed.Signature),
		Algorithm:        signed.Algorithm,
		PublicKeyID:      signed.PublicKeyID,
	}
}

func buildEncryptedPayloadResponse(payload domain.EncryptedPayload) encryptedPayloadResponse {
	return encryptedPayloadResponse{
		Identity:   payload.Identity,
		Algorithm:  payload.Algorithm,
		Generation: payload.Generation,
		Ephemeral:  base64.StdEncoding.EncodeToString(payload.Ephemeral),
		Nonce:      base64.StdEncoding.EncodeToString(payload.Nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(payload.Ciphertext),
	}
}

func buildVerificationResponse(report domain.VerificationReport) verificationResponse {
	out := verificationResponse{
		VerificationID: report.VerificationID,
		VerifiedAt:     report.VerifiedAt.UTC().Format(time.RFC3339),
		TransactionID:  report.TransactionID,
		IsValid:        report.IsValid,
		Message:        report.Message,
		Algorithm:      report.Algorithm,
		PublicKeyID:    report.PublicKeyID,
		KeyStatus:      string(report.KeyStatus),
	}
	out.Details.SignatureLength = report.Details.SignatureLength
	out.Details.TimestampValid = report.Details.TimestampValid
	out.Details.AmountValid = report.Details.AmountValid
	return out
}

func buildKeyMetadataResponse(meta domain.KeyMetadata) keyMetadataResponse {
	return keyMetadataResponse{
		KeyID:     meta.KeyID,
		Owner:     meta.Owner,
		Purpose:   string(meta.Purpose),
		Algorithm: meta.Algorithm,
		PublicKey: base64.StdEncoding.EncodeToString(meta.PublicKey),
		Status:    string(meta.Status),
		Reason:    meta.Reason,
		CreatedAt: meta.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrSerialization):
		status, code = http.StatusBadRequest, "INVALID_TRANSACTION"
	case errors.Is(err, domain.ErrKeyRevoked):
		status, code = http.StatusConflict, "KEY_REVOKED"
	case errors.Is(err, domain.ErrKeyNotFound):
		status, code = http.StatusNotFound, "KEY_NOT_FOUND"
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrInvalidKeyMaterial):
		status, code = http.StatusBadRequest, "INVALID_KEY_MATERIAL"
	case errors.Is(err, domain.ErrDecryptionFailure):
		status, code = http.StatusBadRequest, "DECRYPTION_FAILED"
	case errors.Is(err, domain.ErrKeyGenerationFailure):
		status, code = http.StatusBadRequest, "KEY_GENERATION_FAILED"
	}
	writeErrorCode(c, status, code, err.Error())
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{
		Code:    code,
		Message: message,
	})
}

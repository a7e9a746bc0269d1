// Package ibe implements identity-based encryption in the Boneh–Franklin
// style over the BN254 pairing group. An identity string is the recipient's
// public key; the sender needs only the master public parameters. The raw
// pairing output keys an XChaCha20-Poly1305 wrapper, so every payload is
// integrity-protected and fresh randomness is injected per call.
package ibe

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"math/big"
	"sync"

	bn254 "github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"quantapay/internal/domain"
)

const (
	Algorithm = "bf-ibe-bn254-xchacha20poly1305"
	GroupID   = "bn254"

	// MasterSecretSize is the byte length of a serialized master secret.
	MasterSecretSize = fr.Bytes

	hashToG1DST = "QUANTAPAY-IBE-BN254-SHA256-SVDW-RO_"
	kdfInfo     = "quantapay/ibe/v1"
)

// Service holds the master secret and derives identity keys from it.
// Construct once at startup and share; all methods are safe for concurrent
// use.
type Service struct {
	mu      sync.RWMutex
	master  fr.Element
	params  *domain.MasterParameters
	cache   map[string]domain.IdentityPrivateKey
	revoked map[string]bool
}

func New() *Service {
	return &Service{
		cache:   make(map[string]domain.IdentityPrivateKey),
		revoked: make(map[string]bool),
	}
}

// NewFromMasterSecret restores a service from a persisted master secret,
// e.g. one fetched from the secret store at bootstrap.
func NewFromMasterSecret(secret []byte, generation uint32) (*Service, error) {
	if len(secret) != fr.Bytes {
		return nil, fmt.Errorf("%w: master secret must be %d bytes", domain.ErrInvalidKeyMaterial, fr.Bytes)
	}
	s := New()
	s.master.SetBytes(secret)
	if s.master.IsZero() {
		return nil, fmt.Errorf("%w: master secret is zero", domain.ErrInvalidKeyMaterial)
	}
	params, err := publicParams(&s.master, generation)
	if err != nil {
		return nil, err
	}
	s.params = &params
	return s, nil
}

// Setup generates the master secret and public parameters once. Calling it
// again returns the existing parameters unchanged.
func (s *Service) Setup() (domain.MasterParameters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.params != nil {
		return *s.params, nil
	}
	return s.rotateLocked(1)
}

// RotateMaster replaces the master secret and bumps the parameter
// generation. Previously derived identity keys and payloads of older
// generations stop decrypting.
func (s *Service) RotateMaster() (domain.MasterParameters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gen := uint32(1)
	if s.params != nil {
		gen = s.params.Generation + 1
	}
	return s.rotateLocked(gen)
}

func (s *Service) rotateLocked(generation uint32) (domain.MasterParameters, error) {
	if _, err := s.master.SetRandom(); err != nil {
		return domain.MasterParameters{}, fmt.Errorf("%w: %v", domain.ErrKeyGenerationFailure, err)
	}
	params, err := publicParams(&s.master, generation)
	if err != nil {
		return domain.MasterParameters{}, err
	}
	s.params = &params
	s.cache = make(map[string]domain.IdentityPrivateKey)
	return params, nil
}

// Params returns the current public parameters.
func (s *Service) Params() (domain.MasterParameters, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.params == nil {
		return domain.MasterParameters{}, fmt.Errorf("%w: identity encryption not initialized", domain.ErrKeyNotFound)
	}
	return *s.params, nil
}

// MasterSecret exposes the raw secret for persistence at bootstrap time.
func (s *Service) MasterSecret() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.params == nil {
		return nil, fmt.Errorf("%w: identity encryption not initialized", domain.ErrKeyNotFound)
	}
	b := s.master.Bytes()
	return b[:], nil
}

// DeriveIdentityKey computes the private key for an identity. The result
// is a pure function of the master secret, the identity, and the parameter
// generation, and is cached per generation.
func (s *Service) DeriveIdentityKey(identity string) (domain.IdentityPrivateKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.params == nil {
		return domain.IdentityPrivateKey{}, fmt.Errorf("%w: identity encryption not initialized", domain.ErrKeyNotFound)
	}
	if s.revoked[identity] {
		return domain.IdentityPrivateKey{}, fmt.Errorf("%w: identity %q", domain.ErrKeyRevoked, identity)
	}
	if cached, ok := s.cache[identity]; ok && cached.Generation == s.params.Generation {
		return cached, nil
	}

	q, err := bn254.HashToG1([]byte(identity), []byte(hashToG1DST))
	if err != nil {
		return domain.IdentityPrivateKey{}, fmt.Errorf("%w: %v", domain.ErrKeyGenerationFailure, err)
	}
	var sBig big.Int
	s.master.BigInt(&sBig)
	var d bn254.G1Affine
	d.ScalarMultiplication(&q, &sBig)
	raw := d.Bytes()

	key := domain.IdentityPrivateKey{
		Identity:   identity,
		Generation: s.params.Generation,
		Key:        append([]byte{}, raw[:]...),
	}
	s.cache[identity] = key
	return key, nil
}

// RevokeIdentity blocks further key derivation and decryption for an
// identity. Idempotent.
func (s *Service) RevokeIdentity(identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[identity] = true
	delete(s.cache, identity)
}

// Encrypt seals plaintext for an identity using only the public
// parameters. Identical inputs yield different ciphertexts on every call.
func (s *Service) Encrypt(plaintext []byte, identity string) (domain.EncryptedPayload, error) {
	params, err := s.Params()
	if err != nil {
		return domain.EncryptedPayload{}, err
	}
	return Encrypt(params, plaintext, identity)
}

// Encrypt is the sender side of the scheme: it needs the public parameters
// and the recipient identity, nothing secret.
func Encrypt(params domain.MasterParameters, plaintext []byte, identity string) (domain.EncryptedPayload, error) {
	var ppub bn254.G2Affine
	if _, err := ppub.SetBytes(params.Public); err != nil {
		return domain.EncryptedPayload{}, fmt.Errorf("%w: bad public parameters: %v", domain.ErrInvalidKeyMaterial, err)
	}
	q, err := bn254.HashToG1([]byte(identity), []byte(hashToG1DST))
	if err != nil {
		return domain.EncryptedPayload{}, fmt.Errorf("%w: %v", domain.ErrSerialization, err)
	}

	var r fr.Element
	if _, err := r.SetRandom(); err != nil {
		return domain.EncryptedPayload{}, fmt.Errorf("%w: %v", domain.ErrKeyGenerationFailure, err)
	}
	var rBig big.Int
	r.BigInt(&rBig)

	_, _, _, g2 := bn254.Generators()
	var ephemeral bn254.G2Affine
	ephemeral.ScalarMultiplication(&g2, &rBig)

	// e(Q_id, Ppub)^r, computed as e(Q_id, r*Ppub).
	var rp bn254.G2Affine
	rp.ScalarMultiplication(&ppub, &rBig)
	shared, err := bn254.Pair([]bn254.G1Affine{q}, []bn254.G2Affine{rp})
	if err != nil {
		return domain.EncryptedPayload{}, fmt.Errorf("%w: %v", domain.ErrKeyGenerationFailure, err)
	}

	ephBytes := ephemeral.Bytes()
	key, err := sessionKey(shared, identity, params.Generation)
	if err != nil {
		return domain.EncryptedPayload{}, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return domain.EncryptedPayload{}, fmt.Errorf("%w: %v", domain.ErrKeyGenerationFailure, err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return domain.EncryptedPayload{}, fmt.Errorf("%w: %v", domain.ErrKeyGenerationFailure, err)
	}
	ad := associatedData(identity, ephBytes[:], params.Generation)
	ciphertext := aead.Seal(nil, nonce, plaintext, ad)

	return domain.EncryptedPayload{
		Identity:   identity,
		Algorithm:  Algorithm,
		Generation: params.Generation,
		Ephemeral:  append([]byte{}, ephBytes[:]...),
		Nonce:      nonce,
		Ciphertext: ciphertext,
	}, nil
}

// Decrypt opens a payload for the given identity. Any mismatch, whether a
// wrong identity, a stale generation, or a tampered payload,
// surfaces as ErrDecryptionFailure without further detail.
func (s *Service) Decrypt(payload domain.EncryptedPayload, identity string) ([]byte, error) {
	params, err := s.Params()
	if err != nil {
		return nil, err
	}
	if payload.Algorithm != "" && payload.Algorithm != Algorithm {
		return nil, fmt.Errorf("%w: unsupported algorithm", domain.ErrDecryptionFailure)
	}
	if payload.Generation != params.Generation {
		return nil, fmt.Errorf("%w: parameter generation mismatch", domain.ErrDecryptionFailure)
	}

	idKey, err := s.DeriveIdentityKey(identity)
	if err != nil {
		return nil, fmt.Errorf("%w: identity key unavailable", domain.ErrDecryptionFailure)
	}
	var d bn254.G1Affine
	if _, err := d.SetBytes(idKey.Key); err != nil {
		return nil, fmt.Errorf("%w: identity key corrupt", domain.ErrDecryptionFailure)
	}
	var ephemeral bn254.G2Affine
	if _, err := ephemeral.SetBytes(payload.Ephemeral); err != nil {
		return nil, fmt.Errorf("%w: bad ephemeral element", domain.ErrDecryptionFailure)
	}

	// e(d_id, U) = e(Q_id, Ppub)^r for the honest recipient.
	shared, err := bn254.Pair([]bn254.G1Affine{d}, []bn254.G2Affine{ephemeral})
	if err != nil {
		return nil, fmt.Errorf("%w: pairing failed", domain.ErrDecryptionFailure)
	}
	key, err := sessionKey(shared, identity, payload.Generation)
	if err != nil {
		return nil, fmt.Errorf("%w: key derivation failed", domain.ErrDecryptionFailure)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecryptionFailure, err)
	}
	if len(payload.Nonce) != chacha20poly1305.NonceSizeX {
		return nil, fmt.Errorf("%w: bad nonce length", domain.ErrDecryptionFailure)
	}
	ad := associatedData(identity, payload.Ephemeral, payload.Generation)
	plaintext, err := aead.Open(nil, payload.Nonce, payload.Ciphertext, ad)
	if err != nil {
		return nil, fmt.Errorf("%w: integrity check failed", domain.ErrDecryptionFailure)
	}
	return plaintext, nil
}

func publicParams(master *fr.Element, generation uint32) (domain.MasterParameters, error) {
	var sBig big.Int
	master.BigInt(&sBig)
	_, _, _, g2 := bn254.Generators()
	var ppub bn254.G2Affine
	ppub.ScalarMultiplication(&g2, &sBig)
	raw := ppub.Bytes()
	return domain.MasterParameters{
		Algorithm:  Algorithm,
		GroupID:    GroupID,
		Generation: generation,
		Public:     append([]byte{}, raw[:]...),
	}, nil
}

func sessionKey(shared bn254.GT, identity string, generation uint32) ([]byte, error) {
	raw := shared.Bytes()
	info := fmt.Sprintf("%s|%s|%d", kdfInfo, identity, generation)
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, raw[:], nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrKeyGenerationFailure, err)
	}
	return key, nil
}

func associatedData(identity string, ephemeral []byte, generation uint32) []byte {
	ad := make([]byte, 0, len(identity)+len(ephemeral)+4)
	ad = append(ad, identity...)
	ad = append(ad, ephemeral...)
	ad = append(ad, byte(generation>>24), byte(generation>>16), byte(generation>>8), byte(generation))
	return ad
}

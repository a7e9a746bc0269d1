// Package mldsa provides the lattice-based signature backend. Production
// signing uses the ML-DSA parameter sets from cloudflare/circl; a
// deterministic test variant exists for fixtures and is selected by
// configuration, never detected at runtime.
package mldsa

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"github.com/cloudflare/circl/sign"
	"github.com/cloudflare/circl/sign/mldsa/mldsa44"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	"github.com/cloudflare/circl/sign/mldsa/mldsa87"

	"quantapay/internal/domain"
)

type SecurityLevel int

const (
	Level2 SecurityLevel = 2
	Level3 SecurityLevel = 3
	Level5 SecurityLevel = 5
)

// Signer is the capability set shared by the production and test backends.
// Verify is total: malformed or truncated signatures yield false, never an
// error; only malformed key material is an error.
type Signer interface {
	Algorithm() string
	GenerateKeypair() (publicKey, secretKey []byte, err error)
	Sign(message, secretKey []byte) ([]byte, error)
	Verify(message, signature, publicKey []byte) (bool, error)
}

type schemeSigner struct {
	scheme sign.Scheme
}

// NewSigner returns the production ML-DSA signer for a NIST security level.
func NewSigner(level SecurityLevel) (Signer, error) {
	switch level {
	case Level2:
		return &schemeSigner{scheme: mldsa44.Scheme()}, nil
	case Level3:
		return &schemeSigner{scheme: mldsa65.Scheme()}, nil
	case Level5:
		return &schemeSigner{scheme: mldsa87.Scheme()}, nil
	default:
		return nil, fmt.Errorf("unsupported security level %d", level)
	}
}

// ForAlgorithm resolves a signer by stored algorithm name so historical
// signatures verify with the parameter set they were made under.
func ForAlgorithm(name string) (Signer, error) {
	switch name {
	case mldsa44.Scheme().Name():
		return &schemeSigner{scheme: mldsa44.Scheme()}, nil
	case mldsa65.Scheme().Name():
		return &schemeSigner{scheme: mldsa65.Scheme()}, nil
	case mldsa87.Scheme().Name():
		return &schemeSigner{scheme: mldsa87.Scheme()}, nil
	case testAlgorithm:
		return NewTestSigner(), nil
	default:
		return nil, fmt.Errorf("unsupported signature algorithm %q", name)
	}
}

func (s *schemeSigner) Algorithm() string {
	return s.scheme.Name()
}

func (s *schemeSigner) GenerateKeypair() ([]byte, []byte, error) {
	pub, priv, err := s.scheme.GenerateKey()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrKeyGenerationFailure, err)
	}
	pubBytes, err := pub.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrKeyGenerationFailure, err)
	}
	privBytes, err := priv.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrKeyGenerationFailure, err)
	}
	return pubBytes, privBytes, nil
}

func (s *schemeSigner) Sign(message, secretKey []byte) ([]byte, error) {
	priv, err := s.scheme.UnmarshalBinaryPrivateKey(secretKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidKeyMaterial, err)
	}
	return s.scheme.Sign(priv, message, nil), nil
}

func (s *schemeSigner) Verify(message, signature, publicKey []byte) (bool, error) {
	pub, err := s.scheme.UnmarshalBinaryPublicKey(publicKey)
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrInvalidKeyMaterial, err)
	}
	if len(signature) != s.scheme.SignatureSize() {
		return false, nil
	}
	return s.scheme.Verify(pub, message, signature, nil), nil
}

// PublicFromSecret recovers the public key bytes embedded in a secret key.
func PublicFromSecret(s Signer, secretKey []byte) ([]byte, error) {
	switch ss := s.(type) {
	case *schemeSigner:
		priv, err := ss.scheme.UnmarshalBinaryPrivateKey(secretKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidKeyMaterial, err)
		}
		pub, ok := priv.Public().(sign.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: secret key has no public half", domain.ErrInvalidKeyMaterial)
		}
		return pub.MarshalBinary()
	case *testSigner:
		if len(secretKey) != testSecretKeySize {
			return nil, fmt.Errorf("%w: bad test secret key length %d", domain.ErrInvalidKeyMaterial, len(secretKey))
		}
		return append([]byte{}, secretKey[testSeedSize:]...), nil
	}
	return nil, fmt.Errorf("%w: unknown signer backend", domain.ErrInvalidKeyMaterial)
}

// SignatureSize reports the fixed signature length of a signer when known.
func SignatureSize(s Signer) (int, bool) {
	if ss, ok := s.(*schemeSigner); ok {
		return ss.scheme.SignatureSize(), true
	}
	if _, ok := s.(*testSigner); ok {
		return sha256.Size, true
	}
	return 0, false
}

const (
	testAlgorithm      = "test-hmac-sha256"
	testSeedSize       = 32
	testPublicKeySize  = sha256.Size
	testSecretKeySize  = testSeedSize + testPublicKeySize
	testKeyDerivSuffix = "quantapay/test-signer"
)

type testSigner struct{}

// NewTestSigner returns the deterministic test backend. Signatures are an
// HMAC over the message keyed by the public key, so key mismatch and
// bit-flip properties hold, but the scheme has no cryptographic strength.
func NewTestSigner() Signer {
	return &testSigner{}
}

func (t *testSigner) Algorithm() string { return testAlgorithm }

func (t *testSigner) GenerateKeypair() ([]byte, []byte, error) {
	seed := make([]byte, testSeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrKeyGenerationFailure, err)
	}
	pub := testPublicFromSeed(seed)
	sec := append(append([]byte{}, seed...), pub...)
	return pub, sec, nil
}

func (t *testSigner) Sign(message, secretKey []byte) ([]byte, error) {
	if len(secretKey) != testSecretKeySize {
		return nil, fmt.Errorf("%w: bad test secret key length %d", domain.ErrInvalidKeyMaterial, len(secretKey))
	}
	pub := secretKey[testSeedSize:]
	mac := hmac.New(sha256.New, pub)
	mac.Write(message)
	return mac.Sum(nil), nil
}

func (t *testSigner) Verify(message, signature, publicKey []byte) (bool, error) {
	if len(publicKey) != testPublicKeySize {
		return false, fmt.Errorf("%w: bad test public key length %d", domain.ErrInvalidKeyMaterial, len(publicKey))
	}
	if len(signature) != sha256.Size {
		return false, nil
	}
	mac := hmac.New(sha256.New, publicKey)
	mac.Write(message)
	return hmac.Equal(mac.Sum(nil), signature), nil
}

func testPublicFromSeed(seed []byte) []byte {
	sum := sha256.Sum256(append(append([]byte{}, seed...), []byte(testKeyDerivSuffix)...))
	return sum[:]
}

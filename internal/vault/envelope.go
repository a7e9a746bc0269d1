package vault

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Secret keys rest inside an argon2id + XChaCha20-Poly1305 envelope keyed
// by the vault passphrase.

const (
	envelopeVersion = 1
	envelopeSalt    = 16
	envelopePrefix  = "QPENC1\n"
)

var (
	errEnvelopeAuth    = errors.New("secret envelope authentication failed")
	errEnvelopeInvalid = errors.New("secret envelope is invalid")
)

type envelope struct {
	Version     uint32 `json:"version"`
	KDF         string `json:"kdf"`
	KDFTime     uint32 `json:"kdf_time"`
	KDFMemoryKB uint32 `json:"kdf_memory_kb"`
	KDFThreads  uint8  `json:"kdf_threads"`
	Salt        []byte `json:"salt"`
	Nonce       []byte `json:"nonce"`
	Ciphertext  []byte `json:"ciphertext"`
}

func sealSecret(passphrase string, plaintext []byte) ([]byte, error) {
	salt := make([]byte, envelopeSalt)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	key := deriveEnvelopeKey(passphrase, salt)
	defer zeroBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	env := envelope{
		Version:     envelopeVersion,
		KDF:         "argon2id",
		KDFTime:     2,
		KDFMemoryKB: 64 * 1024,
		KDFThreads:  1,
		Salt:        salt,
		Nonce:       nonce,
		Ciphertext:  aead.Seal(nil, nonce, plaintext, nil),
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	return append([]byte(envelopePrefix), raw...), nil
}

func openSecret(passphrase string, data []byte) ([]byte, error) {
	if !strings.HasPrefix(string(data), envelopePrefix) {
		return nil, errEnvelopeInvalid
	}
	var env envelope
	if err := json.Unmarshal(data[len(envelopePrefix):], &env); err != nil {
		return nil, errEnvelopeInvalid
	}
	if env.Version != envelopeVersion || env.KDF != "argon2id" {
		return nil, errEnvelopeInvalid
	}
	if len(env.Salt) != envelopeSalt || len(env.Nonce) != chacha20poly1305.NonceSizeX {
		return nil, errEnvelopeInvalid
	}
	key := argon2.IDKey([]byte(passphrase), env.Salt, env.KDFTime, env.KDFMemoryKB, env.KDFThreads, chacha20poly1305.KeySize)
	defer zeroBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, env.Nonce, env.Ciphertext, nil)
	if err != nil {
		return nil, errEnvelopeAuth
	}
	return plaintext, nil
}

func deriveEnvelopeKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 2, 64*1024, 1, chacha20poly1305.KeySize)
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

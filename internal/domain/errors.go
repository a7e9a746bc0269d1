package domain

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrKeyNotFound          = errors.New("key not found")
	ErrKeyRevoked           = errors.New("key revoked")
	ErrKeyGenerationFailure = errors.New("key generation failure")
	ErrInvalidKeyMaterial   = errors.New("invalid key material")
	ErrDecryptionFailure    = errors.New("decryption failure")
	ErrSerialization        = errors.New("serialization error")
)

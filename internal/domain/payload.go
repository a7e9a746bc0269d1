package domain

// MasterParameters are the public half of the identity-encryption setup.
// The master secret itself stays inside the encryption service.
type MasterParameters struct {
	Algorithm  string `json:"algorithm"`
	GroupID    string `json:"group_id"`
	Generation uint32 `json:"generation"`
	Public     []byte `json:"public_params"`
}

type IdentityPrivateKey struct {
	Identity   string
	Generation uint32
	Key        []byte
}

// EncryptedPayload is one identity-encrypted message. Ephemeral carries the
// sender's per-call group element; the same plaintext and identity produce
// different Ephemeral/Nonce/Ciphertext on every call.
type EncryptedPayload struct {
	Identity   string `json:"identity"`
	Algorithm  string `json:"algorithm"`
	Generation uint32 `json:"generation"`
	Ephemeral  []byte `json:"ephemeral"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

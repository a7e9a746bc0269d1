package vaultclient

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

// BootstrapSecrets are the process-level secrets read at startup. The hex
// master secret feeds identity encryption; the passphrase seals signing
// keys at rest.
type BootstrapSecrets struct {
	VaultPassphrase    string `json:"vault_passphrase"`
	IBEMasterSecretHex string `json:"ibe_master_secret"`
	IBEGeneration      uint32 `json:"ibe_generation"`
}

func (s BootstrapSecrets) MasterSecret() ([]byte, error) {
	if s.IBEMasterSecretHex == "" {
		return nil, errors.New("bootstrap is missing the master secret")
	}
	return hex.DecodeString(s.IBEMasterSecretHex)
}

// LoadOrInitBootstrap reads the bootstrap secrets, creating and persisting
// a fresh set on first start. secretLen is the master secret size in bytes.
func LoadOrInitBootstrap(ctx context.Context, client *Client, path string, secretLen int) (BootstrapSecrets, error) {
	var secrets BootstrapSecrets
	err := client.ReadKV(ctx, path, &secrets)
	if err == nil {
		if secrets.VaultPassphrase == "" || secrets.IBEMasterSecretHex == "" {
			return BootstrapSecrets{}, errors.New("bootstrap secret is incomplete")
		}
		return secrets, nil
	}
	if !errors.Is(err, ErrSecretNotFound) {
		return BootstrapSecrets{}, err
	}

	secrets, err = newBootstrapSecrets(secretLen)
	if err != nil {
		return BootstrapSecrets{}, err
	}
	if err := client.WriteKV(ctx, path, secrets); err != nil {
		return BootstrapSecrets{}, fmt.Errorf("persist bootstrap secrets: %w", err)
	}
	return secrets, nil
}

func newBootstrapSecrets(secretLen int) (BootstrapSecrets, error) {
	if secretLen <= 0 {
		return BootstrapSecrets{}, errors.New("secret length must be positive")
	}
	master := make([]byte, secretLen)
	if _, err := rand.Read(master); err != nil {
		return BootstrapSecrets{}, err
	}
	passphrase := make([]byte, 32)
	if _, err := rand.Read(passphrase); err != nil {
		return BootstrapSecrets{}, err
	}
	return BootstrapSecrets{
		VaultPassphrase:    hex.EncodeToString(passphrase),
		IBEMasterSecretHex: hex.EncodeToString(master),
		IBEGeneration:      1,
	}, nil
}

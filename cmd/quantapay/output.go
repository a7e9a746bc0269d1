package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"quantapay/internal/crypto/mldsa"
)

func writeOutput(path string, payload []byte) error {
	if path == "" {
		if _, err := os.Stdout.Write(payload); err != nil {
			return err
		}
		_, err := fmt.Fprintln(os.Stdout)
		return err
	}
	return os.WriteFile(path, payload, 0o644)
}

// Key files hold a single base64 line so they survive copy-paste.
func writeKeyFile(path string, key []byte) error {
	encoded := base64.StdEncoding.EncodeToString(key) + "\n"
	return os.WriteFile(path, []byte(encoded), 0o600)
}

func readKeyFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(string(raw)))
}

func signerForLevel(level string) (mldsa.Signer, error) {
	switch level {
	case "test":
		return mldsa.NewTestSigner(), nil
	case "2", "":
		return mldsa.NewSigner(mldsa.Level2)
	case "3":
		return mldsa.NewSigner(mldsa.Level3)
	case "5":
		return mldsa.NewSigner(mldsa.Level5)
	default:
		return nil, fmt.Errorf("unknown level %q", level)
	}
}

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"quantapay/internal/crypto/canonical"
	"quantapay/internal/crypto/mldsa"
	"quantapay/internal/domain"
	"quantapay/internal/vault"
)

func runVerify(args []string) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var inPath string
	var pubPath string

	fs.StringVar(&inPath, "in", "", "signed transaction JSON path")
	fs.StringVar(&pubPath, "pub", "", "public key file")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if inPath == "" || pubPath == "" {
		fmt.Fprintln(os.Stderr, "verify requires --in and --pub")
		return 1
	}

	raw, err := os.ReadFile(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read signed transaction: %v\n", err)
		return 1
	}
	var signed domain.SignedTransaction
	if err := json.Unmarshal(raw, &signed); err != nil {
		fmt.Fprintf(os.Stderr, "decode signed transaction: %v\n", err)
		return 1
	}

	pub, err := readKeyFile(pubPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read public key: %v\n", err)
		return 1
	}
	if keyID := vault.KeyIDFromPublicKey(pub); signed.PublicKeyID != "" && signed.PublicKeyID != keyID {
		fmt.Fprintf(os.Stderr, "verify: public key id mismatch: record says %s, key file is %s\n", signed.PublicKeyID, keyID)
		return 1
	}

	signer, err := mldsa.ForAlgorithm(signed.Algorithm)
	if err != nil {
		fmt.Fprintf(os.Stderr, "verify: %v\n", err)
		return 1
	}
	message, err := canonical.Encode(signed.Transaction)
	if err != nil {
		fmt.Fprintf(os.Stderr, "canonicalize transaction: %v\n", err)
		return 1
	}
	ok, err := signer.Verify(message, signed.Signature, pub)
	if err != nil {
		fmt.Fprintf(os.Stderr, "verify: %v\n", err)
		return 1
	}
	if !ok {
		fmt.Fprintln(os.Stdout, "signature: INVALID")
		return 1
	}
	fmt.Fprintln(os.Stdout, "signature: OK")
	return 0
}

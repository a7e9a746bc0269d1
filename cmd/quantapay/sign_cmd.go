package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"quantapay/internal/crypto/canonical"
	"quantapay/internal/crypto/mldsa"
	"quantapay/internal/domain"
	"quantapay/internal/vault"
)

func runSign(args []string) int {
	fs := flag.NewFlagSet("sign", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var inPath string
	var secPath string
	var level string
	var outPath string

	fs.StringVar(&inPath, "in", "", "transaction JSON path")
	fs.StringVar(&secPath, "sec", "", "secret key file")
	fs.StringVar(&level, "level", "2", "security level (2, 3, 5, or test)")
	fs.StringVar(&outPath, "out", "", "output signed transaction path (default stdout)")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if inPath == "" || secPath == "" {
		fmt.Fprintln(os.Stderr, "sign requires --in and --sec")
		return 1
	}

	raw, err := os.ReadFile(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read transaction: %v\n", err)
		return 1
	}
	var tx domain.Transaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		fmt.Fprintf(os.Stderr, "decode transaction: %v\n", err)
		return 1
	}
	if tx.Schema == "" {
		tx.Schema = domain.TransactionSchema
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.Now().UTC()
	}

	sec, err := readKeyFile(secPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read secret key: %v\n", err)
		return 1
	}
	signer, err := signerForLevel(level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign: %v\n", err)
		return 1
	}

	message, err := canonical.Encode(tx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "canonicalize transaction: %v\n", err)
		return 1
	}
	signature, err := signer.Sign(message, sec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign transaction: %v\n", err)
		return 1
	}

	pub, err := mldsa.PublicFromSecret(signer, sec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "derive key id: %v\n", err)
		return 1
	}

	signed := domain.SignedTransaction{
		Transaction: tx,
		Signature:   signature,
		Algorithm:   signer.Algorithm(),
		PublicKeyID: vault.KeyIDFromPublicKey(pub),
	}
	payload, err := json.MarshalIndent(signed, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal signed transaction: %v\n", err)
		return 1
	}
	if err := writeOutput(outPath, payload); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		return 1
	}
	return 0
}

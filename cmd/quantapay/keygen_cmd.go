package main

import (
	"flag"
	"fmt"
	"os"

	"quantapay/internal/vault"
)

func runKeygen(args []string) int {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var level string
	var outPub string
	var outSec string

	fs.StringVar(&level, "level", "2", "security level (2, 3, 5, or test)")
	fs.StringVar(&outPub, "out-pub", "", "public key output path")
	fs.StringVar(&outSec, "out-sec", "", "secret key output path")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if outPub == "" || outSec == "" {
		fmt.Fprintln(os.Stderr, "keygen requires --out-pub and --out-sec")
		return 1
	}

	signer, err := signerForLevel(level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "keygen: %v\n", err)
		return 1
	}
	pub, sec, err := signer.GenerateKeypair()
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate keypair: %v\n", err)
		return 1
	}
	if err := writeKeyFile(outPub, pub); err != nil {
		fmt.Fprintf(os.Stderr, "write public key: %v\n", err)
		return 1
	}
	if err := writeKeyFile(outSec, sec); err != nil {
		fmt.Fprintf(os.Stderr, "write secret key: %v\n", err)
		return 1
	}

	fmt.Fprintf(os.Stdout, "algorithm: %s\n", signer.Algorithm())
	fmt.Fprintf(os.Stdout, "key_id: %s\n", vault.KeyIDFromPublicKey(pub))
	return 0
}

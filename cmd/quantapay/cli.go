package main

import (
	"fmt"
	"os"
	"path/filepath"
)

func run(args []string) int {
	if len(args) < 2 {
		usage(args)
		return 1
	}

	switch args[1] {
	case "keygen":
		return runKeygen(args[2:])
	case "sign":
		return runSign(args[2:])
	case "verify":
		return runVerify(args[2:])
	}

	usage(args)
	return 1
}

func usage(args []string) {
	name := "quantapay"
	if len(args) > 0 && args[0] != "" {
		name = filepath.Base(args[0])
	}
	fmt.Fprintf(os.Stderr, "usage:\n")
	fmt.Fprintf(os.Stderr, "  %s keygen [--level 2|3|5|test] --out-pub <file> --out-sec <file>\n", name)
	fmt.Fprintf(os.Stderr, "  %s sign --in <transaction.json> --sec <keyfile> [--level 2|3|5|test] [--out <file>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s verify --in <signed.json> --pub <keyfile>\n", name)
}

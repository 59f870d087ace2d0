// Command keygen derives a JWT signing secret from an operator passphrase,
// for deployments that would rather not generate and distribute a raw
// random secret by hand.
package main

import (
	"encoding/base64"
	"flag"
	"fmt"
	"os"

	"github.com/ledgerflow/twopc/pkg/auth"
)

func main() {
	passphrase := flag.String("passphrase", "", "operator passphrase to derive the signing secret from (required)")
	saltB64 := flag.String("salt", "", "base64-encoded salt to re-derive a previously issued secret; omit to mint a new one")
	flag.Parse()

	if *passphrase == "" {
		fmt.Fprintln(os.Stderr, "keygen: -passphrase is required")
		os.Exit(1)
	}

	if *saltB64 != "" {
		salt, err := base64.StdEncoding.DecodeString(*saltB64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "keygen: invalid -salt: %v\n", err)
			os.Exit(1)
		}
		secret := auth.DeriveSecretWithSalt(*passphrase, salt)
		fmt.Printf("JWT_SECRET=%s\n", secret)
		return
	}

	secret, salt, err := auth.DeriveSecret(*passphrase)
	if err != nil {
		fmt.Fprintf(os.Stderr, "keygen: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("JWT_SECRET=%s\n", secret)
	fmt.Printf("SALT=%s\n", base64.StdEncoding.EncodeToString(salt))
}

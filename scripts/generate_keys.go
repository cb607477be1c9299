//go:build ignore

package main

import (
	"crypto/ed25519"
	"encoding/base64"
	"flag"
	"fmt"
	"log"
)

func main() {
	var format string
	flag.StringVar(&format, "format", "yaml", "Output format: yaml, env")
	flag.Parse()

	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		log.Fatalf("Failed to generate key pair: %v", err)
	}

	privB64 := base64.StdEncoding.EncodeToString(priv)
	pubB64 := base64.StdEncoding.EncodeToString(pub)

	switch format {
	case "yaml":
		fmt.Printf("response_signing_private_key: %q\n", privB64)
		fmt.Printf("response_signing_public_key: %q\n", pubB64)
	case "env":
		fmt.Printf("RESPONSE_SIGNING_PRIVATE_KEY=%s\n", privB64)
		fmt.Printf("RESPONSE_SIGNING_PUBLIC_KEY=%s\n", pubB64)
	default:
		log.Fatalf("Unknown format %q", format)
	}

	// The desktop app pins this key to verify X-MacMan-Signature and validation tokens.
	fmt.Printf("\n# client public key: %s\n", pubB64)
}

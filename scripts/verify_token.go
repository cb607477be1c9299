//go:build ignore

package main

import (
	"crypto/ed25519"
	"encoding/base64"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"macman/internal/service"
)

func main() {
	var publicKeyB64, tokenString, machineID string

	flag.StringVar(&publicKeyB64, "pubkey", "", "Base64 encoded public key (from config.yaml)")
	flag.StringVar(&tokenString, "token", "", "JWT token (from a /api/license/validate response)")
	flag.StringVar(&machineID, "machine", "", "Expected machine id (optional)")
	flag.Parse()

	if publicKeyB64 == "" || tokenString == "" {
		fmt.Println("Usage: go run scripts/verify_token.go -pubkey <...> -token <...> [-machine <...>]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	pubKeyBytes, err := base64.StdEncoding.DecodeString(publicKeyB64)
	if err != nil {
		fmt.Printf("Error decoding public key: %v\n", err)
		os.Exit(1)
	}
	if len(pubKeyBytes) != ed25519.PublicKeySize {
		fmt.Printf("Invalid public key size: %d\n", len(pubKeyBytes))
		os.Exit(1)
	}
	pubKey := ed25519.PublicKey(pubKeyBytes)

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return pubKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}), jwt.WithIssuer(service.TokenIssuer))
	if err != nil {
		fmt.Printf("❌ Token validation failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("✅ Token is VALID and AUTHENTIC.")
	fmt.Println("\nLicense Details:")
	fmt.Printf("- Key: %s\n", claims["sub"])
	fmt.Printf("- Plan: %v\n", claims["plan"])
	fmt.Printf("- Devices: %v of %v\n", claims["device_count"], claims["max_devices"])
	fmt.Printf("- Machine: %v\n", claims["machine_id"])

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		fmt.Printf("- Expires: %s\n", exp.Time.Format(time.RFC3339))
	} else {
		fmt.Println("- Expires: Never (Perpetual)")
	}

	if machineID != "" && claims["machine_id"] != machineID {
		fmt.Println("❌ Token was issued to a different machine")
		os.Exit(1)
	}
}

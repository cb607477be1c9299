package service

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"macman/internal/models"
)

const TokenIssuer = "macman"

// SignValidation generates a JWT the desktop client can verify offline
// with the published response signing public key.
func SignValidation(privateKeyBase64 string, machineID string, data *models.ValidationData, expiresAt *time.Time) (string, error) {
	if privateKeyBase64 == "" {
		return "", fmt.Errorf("private key is empty")
	}
	if data == nil {
		return "", fmt.Errorf("validation data is empty")
	}

	privateKeyBytes, err := base64.StdEncoding.DecodeString(privateKeyBase64)
	if err != nil {
		return "", fmt.Errorf("failed to decode private key: %w", err)
	}

	if len(privateKeyBytes) != ed25519.PrivateKeySize {
		return "", fmt.Errorf("invalid private key size: %d", len(privateKeyBytes))
	}

	privateKey := ed25519.PrivateKey(privateKeyBytes)

	claims := jwt.MapClaims{
		"sub":          data.LicenseKey,
		"iss":          TokenIssuer,
		"iat":          time.Now().Unix(),
		"machine_id":   machineID,
		"plan":         string(data.Plan),
		"max_devices":  data.MaxDevices,
		"device_count": data.DeviceCount,
		"valid":        true,
	}

	if expiresAt != nil {
		claims["exp"] = expiresAt.Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(privateKey)
}

package middleware

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	SignatureHeader = "X-MacMan-Signature"
	TimestampHeader = "X-MacMan-Timestamp"
)

// bufferedBodyWriter holds the body back until it has been signed, since
// headers cannot change once bytes reach the client.
type bufferedBodyWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *bufferedBodyWriter) Write(b []byte) (int, error) {
	return w.body.Write(b)
}

func (w *bufferedBodyWriter) WriteString(s string) (int, error) {
	return w.body.WriteString(s)
}

// ResponseSigningMiddleware signs "<timestamp>.<body>" with Ed25519. An
// unusable key disables signing instead of failing requests.
func ResponseSigningMiddleware(privateKeyBase64 string) gin.HandlerFunc {
	privateKey, err := decodeSigningKey(privateKeyBase64)
	if err != nil {
		slog.Error("Response signing disabled", "error", err)
	}

	return func(c *gin.Context) {
		if privateKey == nil {
			c.Next()
			return
		}

		original := c.Writer
		w := &bufferedBodyWriter{body: &bytes.Buffer{}, ResponseWriter: original}
		c.Writer = w

		c.Next()

		c.Writer = original
		body := w.body.Bytes()

		timestamp := time.Now().UTC().Format(time.RFC3339)
		payload := fmt.Sprintf("%s.%s", timestamp, string(body))
		signature := ed25519.Sign(privateKey, []byte(payload))

		original.Header().Set(SignatureHeader, base64.StdEncoding.EncodeToString(signature))
		original.Header().Set(TimestampHeader, timestamp)

		if len(body) == 0 {
			original.WriteHeaderNow()
			return
		}
		if _, err := original.Write(body); err != nil {
			slog.Error("Failed to write signed response", "error", err)
		}
	}
}

func decodeSigningKey(privateKeyBase64 string) (ed25519.PrivateKey, error) {
	if privateKeyBase64 == "" {
		return nil, nil
	}
	privateKeyBytes, err := base64.StdEncoding.DecodeString(privateKeyBase64)
	if err != nil {
		return nil, fmt.Errorf("invalid response signing key: %w", err)
	}
	if len(privateKeyBytes) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid response signing key size %d, expected %d", len(privateKeyBytes), ed25519.PrivateKeySize)
	}
	return ed25519.PrivateKey(privateKeyBytes), nil
}

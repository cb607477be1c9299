package service

import (
	"crypto/rand"
	"math/big"
	"regexp"
	"strings"
)

const (
	LicenseKeyPrefix = "MACMAN"

	keyCharset     = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	keySegments    = 3
	keySegmentSize = 5
)

var licenseKeyPattern = regexp.MustCompile(`^MACMAN-[A-Z0-9]{5}-[A-Z0-9]{5}-[A-Z0-9]{5}$`)

// IsValidLicenseKeyFormat reports whether key has the MACMAN-XXXXX-XXXXX-XXXXX shape.
func IsValidLicenseKeyFormat(key string) bool {
	return licenseKeyPattern.MatchString(key)
}

// GenerateLicenseKey draws three random segments from crypto/rand.
// Uniqueness is enforced by storage; callers retry on collision.
func GenerateLicenseKey() (string, error) {
	max := big.NewInt(int64(len(keyCharset)))
	segments := make([]string, 0, keySegments+1)
	segments = append(segments, LicenseKeyPrefix)

	for i := 0; i < keySegments; i++ {
		b := make([]byte, keySegmentSize)
		for j := range b {
			num, err := rand.Int(rand.Reader, max)
			if err != nil {
				return "", err
			}
			b[j] = keyCharset[num.Int64()]
		}
		segments = append(segments, string(b))
	}

	return strings.Join(segments, "-"), nil
}

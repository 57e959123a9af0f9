package services

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
)

// randomString returns a URL-safe, unpadded base64 string over n random
// bytes. 24 bytes gives 192 bits of entropy.
func randomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return strings.TrimRight(base64.URLEncoding.EncodeToString(b), "="), nil
}

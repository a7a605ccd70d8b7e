package common

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// MakeRandHexString returns size random bytes encoded as a hex string
// (2*size characters).
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NormalizeIdentity trims and lower-cases usernames and emails before they are
// stored or compared.
func NormalizeIdentity(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

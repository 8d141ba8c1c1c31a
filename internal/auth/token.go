package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// UnsubscribeTokenBytes is the entropy of an unsubscribe token: 128 bits,
// encoded as 32 lowercase hex characters.
const UnsubscribeTokenBytes = 16

// UnsubscribeTokenLength is the encoded length of an unsubscribe token.
const UnsubscribeTokenLength = UnsubscribeTokenBytes * 2

// NewUnsubscribeToken returns a fresh random unsubscribe token.
func NewUnsubscribeToken() (string, error) {
	b := make([]byte, UnsubscribeTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("auth: reading random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// IsWellFormedUnsubscribeToken reports whether s has the shape of an issued
// token. Anything else cannot match a stored row.
func IsWellFormedUnsubscribeToken(s string) bool {
	if len(s) != UnsubscribeTokenLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

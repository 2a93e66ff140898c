package uid

import (
	"crypto/rand"
	"encoding/hex"
)

// SecureToken generates unguessable hex tokens from crypto/rand.
// Unlike time-ordered ids it leaks nothing about when or where it was minted.
type SecureToken struct {
	size int
}

// NewSecureToken returns a generator producing tokens of size random bytes
// (hex encoded, so twice as many characters). Sizes below 16 are raised to 16.
func NewSecureToken(size int) *SecureToken {
	if size < 16 {
		size = 16
	}
	return &SecureToken{size: size}
}

// Generate returns a new token.
func (g *SecureToken) Generate() string {
	buf := make([]byte, g.size)
	// crypto/rand.Read never returns an error; it aborts the program instead.
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

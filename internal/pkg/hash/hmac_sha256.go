package hash

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrEmptySecret is returned when an HMAC key is missing.
var ErrEmptySecret = errors.New("hash: hmac secret must not be empty")

// HMACSHA256 implements Hash with a keyed SHA-256 MAC, hex encoded.
//
// It is meant for short-lived, high-entropy-per-attempt secrets such as one-time
// codes and tickets, where a slow KDF buys nothing but latency.
type HMACSHA256 struct {
	secret []byte
}

// NewHMACSHA256 creates a new hasher keyed with secret.
func NewHMACSHA256(secret string) (*HMACSHA256, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &HMACSHA256{secret: []byte(secret)}, nil
}

// Hash returns the hex encoded HMAC-SHA256 of str.
func (s *HMACSHA256) Hash(str string) ([]byte, error) {
	return s.sum(str), nil
}

// Verify checks whether str matches the hex encoded digest in constant time.
func (s *HMACSHA256) Verify(hashed, str string) bool {
	return hmac.Equal([]byte(hashed), s.sum(str))
}

func (s *HMACSHA256) sum(str string) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(str))
	raw := mac.Sum(nil)

	out := make([]byte, hex.EncodedLen(len(raw)))
	hex.Encode(out, raw)
	return out
}

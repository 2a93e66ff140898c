package otp

import (
	"crypto/rand"
	"errors"
	"io"
)

const (
	// DefaultLength is used when the generator is built with a length out of range.
	DefaultLength = 6
	minLength     = 4
	maxLength     = 10
)

// ErrEntropy is returned when the random source fails.
var ErrEntropy = errors.New("otp: random source failed")

// Generator produces numeric codes.
type Generator interface {
	Generate() (string, error)
	Length() int
}

// Numeric generates fixed-length decimal codes.
type Numeric struct {
	length int
	rand   io.Reader
}

// NewNumeric returns a generator for codes of the given length. Lengths
// outside 4..10 fall back to DefaultLength.
func NewNumeric(length int) *Numeric {
	if length < minLength || length > maxLength {
		length = DefaultLength
	}
	return &Numeric{length: length, rand: rand.Reader}
}

// Length reports the number of digits in generated codes.
func (n *Numeric) Length() int {
	return n.length
}

// Generate returns a new code. Leading zeros are kept.
func (n *Numeric) Generate() (string, error) {
	code := make([]byte, 0, n.length)
	buf := make([]byte, n.length)

	for len(code) < n.length {
		if _, err := io.ReadFull(n.rand, buf); err != nil {
			return "", errors.Join(ErrEntropy, err)
		}
		for _, b := range buf {
			// 250 is the largest multiple of 10 that fits in a byte
			if b >= 250 {
				continue
			}
			code = append(code, '0'+b%10)
			if len(code) == n.length {
				break
			}
		}
	}

	return string(code), nil
}

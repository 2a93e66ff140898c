package hash

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownAlgorithm is returned by NewPassword for an unsupported algorithm name.
var ErrUnknownAlgorithm = errors.New("hash: unknown algorithm")

const (
	// AlgorithmBcrypt selects Bcrypt for password hashing.
	AlgorithmBcrypt = "bcrypt"
	// AlgorithmArgon2id selects Argon2id for password hashing.
	AlgorithmArgon2id = "argon2id"
)

// Hash produces and checks one-way digests of secrets.
type Hash interface {
	// Hash returns the encoded digest of str.
	Hash(str string) ([]byte, error)
	// Verify reports whether str matches hashed. Implementations compare in constant time.
	Verify(hashed, str string) bool
}

// PasswordOptions configures NewPassword.
type PasswordOptions struct {
	Algorithm  string
	BcryptCost int
	Pepper     string
}

// NewPassword returns the password hasher named by opts.Algorithm.
// An empty algorithm selects bcrypt.
func NewPassword(opts PasswordOptions) (Hash, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Algorithm)) {
	case "", AlgorithmBcrypt:
		return NewBcrypt(opts.BcryptCost, opts.Pepper), nil
	case AlgorithmArgon2id:
		return NewArgon2id(opts.Pepper), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, opts.Algorithm)
	}
}

package entity

import (
	"time"

	"github.com/shandysiswandi/otpguard/internal/pkg/valueobject"
)

// Token is one issued single-use code, stored only as a digest.
type Token struct {
	ID         int64
	Subject    string
	Purpose    Purpose
	CodeDigest string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	UsedAt     *time.Time
	RevokedAt  *time.Time
	Origin     string
	Metadata   valueobject.JSONMap
}

// IsExpired reports whether now is past the validity window.
func (t *Token) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// IsUsed reports whether the token was already consumed.
func (t *Token) IsUsed() bool {
	return t.UsedAt != nil
}

// NewToken is what ReplaceToken writes.
type NewToken struct {
	ID         int64
	Subject    string
	Purpose    Purpose
	CodeDigest string
	ExpiresAt  time.Time
	Origin     string
	Metadata   valueobject.JSONMap
}

// Consumption is the outcome of spending a token for an account.
// At most one of Consumed and LockedUntil is set; neither means the token
// was no longer live when the store got to it.
type Consumption struct {
	Consumed bool
	// LockedUntil is set when the account was locked; the token is untouched.
	LockedUntil *time.Time
}

// RetryAfter is how long until the lock that blocked this consumption ends.
func (c Consumption) RetryAfter(now time.Time) time.Duration {
	acc := Account{LockedUntil: c.LockedUntil}
	return acc.RetryAfter(now)
}

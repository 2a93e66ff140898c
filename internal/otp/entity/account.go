package entity

import "time"

// Account is a principal identified by email plus its security counters.
type Account struct {
	ID             int64
	Email          string
	PasswordHash   string
	Verified       bool
	FailedAttempts int
	LockedUntil    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsLocked reports whether the lock window is still open at now.
func (a *Account) IsLocked(now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}

// LockElapsed reports whether a lock is set but no longer in force.
func (a *Account) LockElapsed(now time.Time) bool {
	return a.LockedUntil != nil && !now.Before(*a.LockedUntil)
}

// RetryAfter is how long until the lock ends, rounded up to whole seconds.
func (a *Account) RetryAfter(now time.Time) time.Duration {
	if !a.IsLocked(now) {
		return 0
	}
	d := a.LockedUntil.Sub(now)
	return (d + time.Second - 1) / time.Second * time.Second
}

// HasPassword reports whether the account can log in with a password.
func (a *Account) HasPassword() bool {
	return a.PasswordHash != ""
}

// NewAccount is the data needed to create an account on first sight.
type NewAccount struct {
	ID    int64
	Email string
}

// LockState is the account counter state after a registered failure.
type LockState struct {
	FailedAttempts int
	LockedUntil    *time.Time
	// Locked is true when this failure applied the lock.
	Locked bool
}

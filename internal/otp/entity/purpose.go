package entity

import "strings"

// Purpose is the reason a token was issued. It decides what a successful
// verification does to the account.
type Purpose int16

const (
	PurposeUnknown       Purpose = 0
	PurposeRegistration  Purpose = 1
	PurposeLogin         Purpose = 2
	PurposePasswordReset Purpose = 3
	// PurposePasswordChange is the ticket opened by a password_reset success.
	// Callers cannot issue it directly.
	PurposePasswordChange Purpose = 4
)

func (p Purpose) String() string {
	switch p {
	case PurposeRegistration:
		return "registration"
	case PurposeLogin:
		return "login"
	case PurposePasswordReset:
		return "password_reset"
	case PurposePasswordChange:
		return "password_change"
	default:
		return "unknown"
	}
}

// Ensure folds any out-of-range value into PurposeUnknown.
func (p Purpose) Ensure() Purpose {
	switch p {
	case PurposeRegistration, PurposeLogin, PurposePasswordReset, PurposePasswordChange:
		return p
	default:
		return PurposeUnknown
	}
}

// Issuable reports whether callers may request a code for p.
func (p Purpose) Issuable() bool {
	switch p {
	case PurposeRegistration, PurposeLogin, PurposePasswordReset:
		return true
	default:
		return false
	}
}

// ParsePurpose maps the wire name to a Purpose. Unknown names give PurposeUnknown.
func ParsePurpose(s string) Purpose {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "registration":
		return PurposeRegistration
	case "login":
		return PurposeLogin
	case "password_reset":
		return PurposePasswordReset
	case "password_change":
		return PurposePasswordChange
	default:
		return PurposeUnknown
	}
}

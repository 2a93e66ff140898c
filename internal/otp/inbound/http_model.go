package inbound

import "time"

type IssueRequest struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose" example:"login"`
}

type IssueResponse struct {
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	generic   bool
}

func (r IssueResponse) Message() string {
	if r.generic {
		return "If an account with that email exists, a code has been sent."
	}
	return "Verification code sent."
}

type VerifyRequest struct {
	Email    string `json:"email"`
	Purpose  string `json:"purpose" example:"registration"`
	Code     string `json:"code" example:"482913"`
	Password string `json:"password,omitempty"`
}

type VerifyResponse struct {
	AccessToken     string     `json:"access_token,omitempty"`
	TokenType       string     `json:"token_type,omitempty"`
	ExpiresIn       int64      `json:"expires_in,omitempty"`
	ResetTicket     string     `json:"reset_ticket,omitempty"`
	TicketExpiresAt *time.Time `json:"ticket_expires_at,omitempty"`
	message         string
}

func (r VerifyResponse) Message() string {
	return r.message
}

type PasswordLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type PasswordLoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (PasswordLoginResponse) Message() string {
	return "Signed in."
}

type PasswordResetRequest struct {
	Email       string `json:"email"`
	Ticket      string `json:"ticket"`
	NewPassword string `json:"new_password"`
}

type PasswordResetResponse struct{}

func (PasswordResetResponse) Message() string {
	return "Password has been changed."
}

type AccountStatusResponse struct {
	ID                int64      `json:"id,string"`
	Email             string     `json:"email"`
	Verified          bool       `json:"verified"`
	HasPassword       bool       `json:"has_password"`
	FailedAttempts    int        `json:"failed_attempts"`
	Locked            bool       `json:"locked"`
	LockedUntil       *time.Time `json:"locked_until,omitempty"`
	RetryAfterSeconds int64      `json:"retry_after_seconds,omitempty"`
}

type UnlockAccountResponse struct{}

func (UnlockAccountResponse) Message() string {
	return "Account unlocked."
}

type SweepResponse struct {
	TokensRemoved int64 `json:"tokens_removed"`
	LocksCleared  int64 `json:"locks_cleared"`
	Archived      int64 `json:"archived"`
}

func (SweepResponse) Message() string {
	return "Sweep finished."
}

package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shandysiswandi/otpguard/internal/otp/entity"
	"github.com/shandysiswandi/otpguard/internal/pkg/goerror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssue_Registration(t *testing.T) {
	// Arrange
	h := newHarness(t)
	now := h.clock.Now()

	// Act
	out, err := h.uc.Issue(context.Background(), IssueInput{
		Email:     "  Alice@Example.com ",
		Purpose:   "registration",
		Origin:    "203.0.113.7",
		UserAgent: "curl/8",
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, entity.ResultSuccess, out.Result)
	assert.Equal(t, now.Add(15*time.Minute), out.ExpiresAt)
	assert.Len(t, out.Code, 6)

	sent := h.delivery.last()
	assert.Equal(t, "alice@example.com", sent.to)
	assert.Equal(t, out.Code, sent.code)
	assert.Equal(t, entity.PurposeRegistration, sent.purpose)

	acc := h.store.account("alice@example.com")
	assert.False(t, acc.Verified)

	tok, err := h.store.GetCurrentToken(context.Background(), "alice@example.com", entity.PurposeRegistration)
	require.NoError(t, err)
	assert.NotContains(t, tok.CodeDigest, out.Code)
	assert.Equal(t, "curl/8", tok.Metadata.GetString("user_agent"))
	assert.Equal(t, "203.0.113.7", tok.Origin)
}

func TestIssue_Validation(t *testing.T) {
	tests := []struct {
		name string
		in   IssueInput
	}{
		{name: "missing email", in: IssueInput{Purpose: "login"}},
		{name: "bad email", in: IssueInput{Email: "not-an-email", Purpose: "login"}},
		{name: "unknown purpose", in: IssueInput{Email: "a@b.co", Purpose: "sudo"}},
		{name: "internal purpose", in: IssueInput{Email: "a@b.co", Purpose: "password_change"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)

			_, err := h.uc.Issue(context.Background(), tt.in)

			var gerr *goerror.Error
			require.ErrorAs(t, err, &gerr)
			assert.Equal(t, goerror.TypeValidation, gerr.Type())
			assert.Empty(t, h.delivery.sent)
		})
	}
}

func TestIssue_UnknownEmailIsAccepted(t *testing.T) {
	for _, p := range []entity.Purpose{entity.PurposeLogin, entity.PurposePasswordReset} {
		t.Run(p.String(), func(t *testing.T) {
			// Arrange
			h := newHarness(t)

			// Act
			out := h.issue(t, "nobody@example.com", p)

			// Assert
			assert.Equal(t, entity.ResultAccepted, out.Result)
			assert.Zero(t, out.TokenID)
			assert.Empty(t, h.delivery.sent)
			assert.Empty(t, h.store.tokens)
		})
	}
}

func TestIssue_AlreadyVerified(t *testing.T) {
	h := newHarness(t)
	h.registered(t, "bob@example.com", "")

	_, err := h.uc.Issue(context.Background(), IssueInput{Email: "bob@example.com", Purpose: "registration"})

	var gerr *goerror.Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, goerror.CodeConflict, gerr.Code())
}

func TestIssue_Cooldown(t *testing.T) {
	// Arrange
	h := newHarness(t)
	h.registered(t, "carol@example.com", "")
	h.issue(t, "carol@example.com", entity.PurposeLogin)
	h.clock.Advance(20 * time.Second)

	// Act
	_, err := h.uc.Issue(context.Background(), IssueInput{Email: "carol@example.com", Purpose: "login"})

	// Assert
	var gerr *goerror.Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, goerror.CodeTooManyRequest, gerr.Code())
	assert.Equal(t, "40", gerr.Fields()["retry_after_seconds"])

	h.clock.Advance(41 * time.Second)
	out := h.issue(t, "carol@example.com", entity.PurposeLogin)
	assert.Equal(t, entity.ResultSuccess, out.Result)
}

func TestIssue_ReissueInvalidatesPrevious(t *testing.T) {
	// Arrange
	h := newHarness(t)
	h.registered(t, "dave@example.com", "")
	first := h.issue(t, "dave@example.com", entity.PurposeLogin)
	h.clock.Advance(time.Minute)
	second := h.issue(t, "dave@example.com", entity.PurposeLogin)

	// Act
	stale := h.verify(t, "dave@example.com", entity.PurposeLogin, first.Code)
	fresh := h.verify(t, "dave@example.com", entity.PurposeLogin, second.Code)

	// Assert
	assert.Equal(t, entity.ResultInvalidCode, stale.Result)
	assert.Equal(t, entity.ResultSuccess, fresh.Result)
	assert.NotEmpty(t, fresh.AccessToken)

	live := 0
	for _, tok := range h.store.tokens {
		if tok.Purpose == entity.PurposeLogin && tok.UsedAt == nil && tok.RevokedAt == nil {
			live++
		}
	}
	assert.Zero(t, live)
}

func TestIssue_DeliveryFailedKeepsToken(t *testing.T) {
	// Arrange
	h := newHarness(t)
	h.delivery.err = errors.New("smtp: 421 try later")

	// Act
	out := h.issue(t, "erin@example.com", entity.PurposeRegistration)

	// Assert
	assert.Equal(t, entity.ResultDeliveryFailed, out.Result)
	assert.NotZero(t, out.TokenID)
	assert.Empty(t, out.Code)
	assert.Len(t, h.store.tokens, 1)

	_, err := h.uc.Issue(context.Background(), IssueInput{Email: "erin@example.com", Purpose: "registration"})
	var gerr *goerror.Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, goerror.CodeTooManyRequest, gerr.Code())
}

func TestIssue_StoreUnavailableReleasesCooldown(t *testing.T) {
	// Arrange
	h := newHarness(t)
	h.store.fail(errors.New("dial tcp: connection refused"))

	// Act
	_, err := h.uc.Issue(context.Background(), IssueInput{Email: "frank@example.com", Purpose: "registration"})

	// Assert
	var gerr *goerror.Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, goerror.CodeUnavailable, gerr.Code())
	assert.Empty(t, h.tracker.keys)

	h.store.fail(nil)
	out := h.issue(t, "frank@example.com", entity.PurposeRegistration)
	assert.Equal(t, entity.ResultSuccess, out.Result)
}

func TestIssue_TrackerUnavailable(t *testing.T) {
	h := newHarness(t)
	h.tracker.err = errors.New("redis: connection pool timeout")

	_, err := h.uc.Issue(context.Background(), IssueInput{Email: "gina@example.com", Purpose: "registration"})

	var gerr *goerror.Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, goerror.CodeUnavailable, gerr.Code())
}

func TestIssue_LockedAccount(t *testing.T) {
	// Arrange
	h := newHarness(t)
	h.registered(t, "hank@example.com", "")
	h.issue(t, "hank@example.com", entity.PurposeLogin)
	for range 5 {
		h.verify(t, "hank@example.com", entity.PurposeLogin, "000000")
	}
	h.clock.Advance(2 * time.Minute)

	// Act
	out := h.issue(t, "hank@example.com", entity.PurposeLogin)

	// Assert
	assert.Equal(t, entity.ResultLockedOut, out.Result)
	assert.Equal(t, 58*time.Minute, out.RetryAfter)
}

package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/shandysiswandi/otpguard/internal/otp/entity"
	"github.com/shandysiswandi/otpguard/internal/pkg/goerror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountStatusAndUnlock(t *testing.T) {
	// Arrange
	h := newHarness(t)
	h.registered(t, "zoe@example.com", "s3cret pass")
	h.issue(t, "zoe@example.com", entity.PurposeLogin)
	for range 5 {
		h.verify(t, "zoe@example.com", entity.PurposeLogin, "999999")
	}
	h.clock.Advance(10 * time.Minute)

	// Act
	before, err := h.uc.AccountStatus(context.Background(), AccountStatusInput{Email: "zoe@example.com"})
	require.NoError(t, err)
	require.NoError(t, h.uc.UnlockAccount(context.Background(), UnlockAccountInput{Email: "zoe@example.com", ActorEmail: "admin@example.com"}))
	after, err := h.uc.AccountStatus(context.Background(), AccountStatusInput{Email: "zoe@example.com"})
	require.NoError(t, err)

	// Assert
	assert.True(t, before.Locked)
	assert.True(t, before.Verified)
	assert.True(t, before.HasPassword)
	assert.Equal(t, 5, before.FailedAttempts)
	assert.Equal(t, 50*time.Minute, before.RetryAfter)

	assert.False(t, after.Locked)
	assert.Zero(t, after.FailedAttempts)
	assert.Nil(t, after.LockedUntil)
}

func TestAccountStatus_NotFound(t *testing.T) {
	h := newHarness(t)

	_, err := h.uc.AccountStatus(context.Background(), AccountStatusInput{Email: "none@example.com"})

	var gerr *goerror.Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, goerror.CodeNotFound, gerr.Code())
}

func TestUnlockAccount_NotFound(t *testing.T) {
	h := newHarness(t)

	err := h.uc.UnlockAccount(context.Background(), UnlockAccountInput{Email: "none@example.com"})

	var gerr *goerror.Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, goerror.CodeNotFound, gerr.Code())
}

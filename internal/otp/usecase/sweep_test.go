package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shandysiswandi/otpguard/internal/otp/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweep(t *testing.T) {
	// Arrange
	h := newHarness(t)
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com", "d@example.com", "e@example.com"} {
		h.issue(t, email, entity.PurposeRegistration)
	}
	h.clock.Advance(15*time.Minute + time.Hour + time.Second)
	fresh := h.issue(t, "f@example.com", entity.PurposeRegistration)

	// Act
	first, err := h.uc.Sweep(context.Background())
	require.NoError(t, err)
	second, err := h.uc.Sweep(context.Background())
	require.NoError(t, err)

	// Assert
	assert.Equal(t, int64(5), first.TokensRemoved)
	assert.Equal(t, int64(5), first.Archived)
	assert.Len(t, h.archive.batches, 3)
	for _, batch := range h.archive.batches {
		for _, tok := range batch {
			assert.Empty(t, tok.CodeDigest)
		}
	}

	assert.Zero(t, second.TokensRemoved)
	require.Len(t, h.store.tokens, 1)
	assert.Equal(t, fresh.TokenID, h.store.tokens[0].ID)
}

func TestSweep_KeepsTokensInsideGrace(t *testing.T) {
	h := newHarness(t)
	h.issue(t, "a@example.com", entity.PurposeRegistration)
	h.clock.Advance(30 * time.Minute)

	out, err := h.uc.Sweep(context.Background())

	require.NoError(t, err)
	assert.Zero(t, out.TokensRemoved)
	assert.Len(t, h.store.tokens, 1)
}

func TestSweep_ClearsElapsedLocks(t *testing.T) {
	// Arrange
	h := newHarness(t)
	h.registered(t, "lock@example.com", "")
	h.issue(t, "lock@example.com", entity.PurposeLogin)
	for range 5 {
		h.verify(t, "lock@example.com", entity.PurposeLogin, "999999")
	}
	h.clock.Advance(61 * time.Minute)

	// Act
	out, err := h.uc.Sweep(context.Background())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.LocksCleared)
	acc := h.store.account("lock@example.com")
	assert.Nil(t, acc.LockedUntil)
	assert.Zero(t, acc.FailedAttempts)
}

func TestSweep_ArchiveFailureDoesNotAbort(t *testing.T) {
	h := newHarness(t)
	h.issue(t, "a@example.com", entity.PurposeRegistration)
	h.clock.Advance(2 * time.Hour)
	h.archive.err = errors.New("s3: access denied")

	out, err := h.uc.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(1), out.TokensRemoved)
	assert.Zero(t, out.Archived)
}

func TestSweep_Canceled(t *testing.T) {
	h := newHarness(t)
	h.issue(t, "a@example.com", entity.PurposeRegistration)
	h.clock.Advance(2 * time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := h.uc.Sweep(ctx)

	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, out.TokensRemoved)
	assert.Len(t, h.store.tokens, 1)
}

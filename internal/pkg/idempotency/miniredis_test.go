package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniTracker(t *testing.T) (*StateTracker, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return New(client), mr
}

func TestStateTracker_CooldownExpires(t *testing.T) {
	// Arrange
	tracker, mr := newMiniTracker(t)
	ctx := context.Background()
	key := "otp:issue:registration:alice@example.com"

	first, err := tracker.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	require.Equal(t, StateNone, first)

	// Act
	mr.FastForward(30 * time.Second)
	during, err := tracker.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	left, err := tracker.Remaining(ctx, key)
	require.NoError(t, err)

	mr.FastForward(31 * time.Second)
	after, err := tracker.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)

	// Assert
	assert.Equal(t, StateInProgress, during)
	assert.InDelta(t, 30*time.Second, left, float64(time.Second))
	assert.Equal(t, StateNone, after)
	assert.True(t, mr.Exists("idempotency:"+key))
}

func TestStateTracker_RemainingMissingKey(t *testing.T) {
	tracker, _ := newMiniTracker(t)

	left, err := tracker.Remaining(context.Background(), "otp:issue:login:nobody@example.com")

	require.NoError(t, err)
	assert.Zero(t, left)
}

func TestStateTracker_ServerDown(t *testing.T) {
	tracker, mr := newMiniTracker(t)
	mr.Close()

	state, err := tracker.Acquire(context.Background(), "otp:issue:login:bob@example.com", time.Minute)

	assert.Error(t, err)
	assert.Equal(t, StateError, state)
}

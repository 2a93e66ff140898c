// Package idempotency tracks short-lived per-key state in redis so repeated
// requests inside a window can be detected across replicas.
package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrInvalidState is returned when a key vanished and could not be re-acquired.
var ErrInvalidState = errors.New("invalid state")

// State is the observed state of a key.
type State string

const (
	StateNone       State = "none"        // caller acquired the key
	StateInProgress State = "in_progress" // someone else holds the key
	StateCompleted  State = "completed"   // the keyed operation already finished
	StateError      State = "error"       // tracker could not answer
)

func (s State) String() string {
	return string(s)
}

// Tracker acquires, completes and releases keys.
type Tracker interface {
	// Acquire claims key for ttl. StateNone means the caller owns it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (State, error)
	// Complete marks key as done and keeps it for ttl.
	Complete(ctx context.Context, key string, ttl time.Duration) error
	// Release forgets key so it can be acquired again immediately.
	Release(ctx context.Context, key string) error
	// Remaining reports how long key will still be held.
	Remaining(ctx context.Context, key string) (time.Duration, error)
}

// StateTracker is a redis-backed Tracker.
type StateTracker struct {
	client redis.UniversalClient
	prefix string
}

// New builds a StateTracker storing keys under "idempotency:".
func New(client redis.UniversalClient) *StateTracker {
	return &StateTracker{client: client, prefix: "idempotency:"}
}

func (s *StateTracker) Acquire(ctx context.Context, key string, ttl time.Duration) (State, error) {
	fk := s.prefix + key

	for range 2 {
		ok, err := s.client.SetNX(ctx, fk, StateInProgress.String(), ttl).Result()
		if err != nil {
			return StateError, err
		}
		if ok {
			return StateNone, nil
		}

		val, err := s.client.Get(ctx, fk).Result()
		if errors.Is(err, redis.Nil) {
			// expired between SETNX and GET
			continue
		}
		if err != nil {
			return StateError, err
		}

		if val == StateCompleted.String() {
			return StateCompleted, nil
		}
		return StateInProgress, nil
	}

	return StateError, ErrInvalidState
}

func (s *StateTracker) Complete(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+key, StateCompleted.String(), ttl).Err()
}

func (s *StateTracker) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

func (s *StateTracker) Remaining(ctx context.Context, key string) (time.Duration, error) {
	d, err := s.client.PTTL(ctx, s.prefix+key).Result()
	if err != nil {
		return 0, err
	}
	// -2 missing, -1 no expiry
	return max(d, 0), nil
}

package inbound

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/otpguard/internal/notification/usecase"
	"github.com/shandysiswandi/otpguard/internal/pkg/config"
	"github.com/shandysiswandi/otpguard/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpguard/internal/pkg/instrument"
	"github.com/shandysiswandi/otpguard/internal/pkg/messaging"
	"github.com/shandysiswandi/otpguard/internal/shared/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedID string

func (f fixedID) Generate() string { return string(f) }

type fakeUC struct {
	verified []usecase.ConsumeAccountVerifiedInput
	locked   []usecase.ConsumeAccountLockedInput
	cIDs     []string
	err      error
}

func (f *fakeUC) ConsumeAccountVerified(ctx context.Context, in usecase.ConsumeAccountVerifiedInput) error {
	f.verified = append(f.verified, in)
	f.cIDs = append(f.cIDs, instrument.GetCorrelationID(ctx))
	return f.err
}

func (f *fakeUC) ConsumeAccountLocked(ctx context.Context, in usecase.ConsumeAccountLockedInput) error {
	f.locked = append(f.locked, in)
	f.cIDs = append(f.cIDs, instrument.GetCorrelationID(ctx))
	return f.err
}

func newHandler(uc *fakeUC) *MQHandler {
	return &MQHandler{uc: uc, uuid: fixedID("generated"), ins: instrument.NewNoop()}
}

func TestAccountVerifiedNotification(t *testing.T) {
	// Arrange
	uc := &fakeUC{}
	h := newHandler(uc)
	body, err := json.Marshal(event.AccountVerifiedMessage{AccountID: 42, Email: "alice@example.com", VerifiedAt: time.Now()})
	require.NoError(t, err)

	// Act
	err = h.AccountVerifiedNotification(context.Background(), messaging.Message{
		ID:      "m1",
		Body:    body,
		Headers: map[string]string{keyOfCorrelationID: "abc"},
		Attempt: 1,
	})

	// Assert
	require.NoError(t, err)
	require.Len(t, uc.verified, 1)
	assert.Equal(t, usecase.ConsumeAccountVerifiedInput{AccountID: 42, Email: "alice@example.com"}, uc.verified[0])
	assert.Equal(t, []string{"abc"}, uc.cIDs)
}

func TestAccountLockedNotification(t *testing.T) {
	uc := &fakeUC{}
	h := newHandler(uc)
	until := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	body, err := json.Marshal(event.AccountLockedMessage{AccountID: 9, Email: "bob@example.com", FailedAttempts: 5, LockedUntil: until, Origin: "203.0.113.9"})
	require.NoError(t, err)

	err = h.AccountLockedNotification(context.Background(), messaging.Message{ID: "m2", Body: body})

	require.NoError(t, err)
	require.Len(t, uc.locked, 1)
	assert.True(t, until.Equal(uc.locked[0].LockedUntil))
	assert.Equal(t, "203.0.113.9", uc.locked[0].Origin)
	assert.Equal(t, []string{"generated"}, uc.cIDs)
}

func TestHandler_MalformedBodyIsAcked(t *testing.T) {
	uc := &fakeUC{}
	h := newHandler(uc)

	err := h.AccountLockedNotification(context.Background(), messaging.Message{Body: []byte("{not json")})

	assert.NoError(t, err)
	assert.Empty(t, uc.locked)
}

func TestHandler_UsecaseErrorRequeues(t *testing.T) {
	uc := &fakeUC{err: errors.New("smtp down")}
	h := newHandler(uc)

	err := h.AccountVerifiedNotification(context.Background(), messaging.Message{Body: []byte(`{"account_id":"1","email":"a@example.com"}`)})

	assert.EqualError(t, err, "smtp down")
}

type fakeConsumer struct {
	mu     sync.Mutex
	groups map[string]string
}

func (f *fakeConsumer) Consume(ctx context.Context, topic string, _ messaging.Handler, opts ...messaging.ConsumeOption) error {
	f.mu.Lock()
	f.groups[topic] = "consuming"
	f.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

func TestRegisterMQConsumer_OnlyEnabled(t *testing.T) {
	// Arrange
	cfg, err := config.NewViperFromBytes("yaml", []byte(`
modules:
  notification:
    consumer_names: [otp_account_locked_notification]
`))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	routine := goroutine.NewManager(4)
	consumer := &fakeConsumer{groups: map[string]string{}}

	// Act
	started := RegisterMQConsumer(ctx, cfg, routine, consumer, fixedID("x"), &fakeUC{}, instrument.NewNoop())
	cancel()

	// Assert
	assert.Equal(t, 1, started)
	require.NoError(t, routine.Wait())
	assert.NotContains(t, consumer.groups, event.AccountVerifiedDestination)
}

package mq

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shandysiswandi/otpguard/internal/otp/usecase"
	"github.com/shandysiswandi/otpguard/internal/pkg/instrument"
	"github.com/shandysiswandi/otpguard/internal/pkg/messaging"
	"github.com/shandysiswandi/otpguard/internal/shared/event"
	"go.opentelemetry.io/otel/codes"
)

const keyOfCorrelationID string = "cID"

type Messaging struct {
	client  messaging.Publisher
	ins     instrument.Instrumentation
	backoff func() retry.Backoff
}

func NewMessaging(client messaging.Publisher, ins instrument.Instrumentation) *Messaging {
	return &Messaging{client: client, ins: ins, backoff: defaultBackoff}
}

func defaultBackoff() retry.Backoff {
	b := retry.NewFibonacci(100 * time.Millisecond)
	b = retry.WithMaxRetries(4, b)
	return retry.WithCappedDuration(2*time.Second, b)
}

func (m *Messaging) PublishAccountVerified(ctx context.Context, msg usecase.AccountVerifiedEvent) error {
	return m.publish(ctx, "PublishAccountVerified", event.AccountVerifiedDestination, msg.AccountID, event.AccountVerifiedMessage{
		AccountID:  msg.AccountID,
		Email:      msg.Email,
		VerifiedAt: msg.VerifiedAt,
	})
}

func (m *Messaging) PublishAccountLocked(ctx context.Context, msg usecase.AccountLockedEvent) error {
	return m.publish(ctx, "PublishAccountLocked", event.AccountLockedDestination, msg.AccountID, event.AccountLockedMessage{
		AccountID:      msg.AccountID,
		Email:          msg.Email,
		FailedAttempts: msg.FailedAttempts,
		LockedUntil:    msg.LockedUntil,
		Origin:         msg.Origin,
	})
}

func (m *Messaging) publish(ctx context.Context, name, topic string, accountID int64, payload any) error {
	ctx, span := m.ins.Tracer("otp.outbound.mq").Start(ctx, name)
	defer span.End()

	body, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	out := messaging.Outgoing{
		Key:     strconv.FormatInt(accountID, 10),
		Body:    body,
		Headers: map[string]string{keyOfCorrelationID: instrument.GetCorrelationID(ctx)},
	}

	// brokers drop connections on failover, a short retry covers most of it
	if err := retry.Do(ctx, m.backoff(), func(ctx context.Context) error {
		if err := m.client.Publish(ctx, topic, out); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

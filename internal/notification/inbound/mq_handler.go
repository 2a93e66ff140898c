package inbound

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/shandysiswandi/otpguard/internal/notification/usecase"
	"github.com/shandysiswandi/otpguard/internal/pkg/instrument"
	"github.com/shandysiswandi/otpguard/internal/pkg/messaging"
	"github.com/shandysiswandi/otpguard/internal/pkg/uid"
	"github.com/shandysiswandi/otpguard/internal/shared/event"
	"go.opentelemetry.io/otel/attribute"
)

const keyOfCorrelationID string = "cID"

type MQHandler struct {
	uc   uc
	uuid uid.StringID
	ins  instrument.Instrumentation
}

func (h *MQHandler) ensureCorrelationID(ctx context.Context, headers map[string]string) context.Context {
	if cID := headers[keyOfCorrelationID]; cID != "" {
		return instrument.SetCorrelationID(ctx, cID)
	}
	return instrument.SetCorrelationID(ctx, h.uuid.Generate())
}

// Malformed bodies are acked and logged; redelivery would not fix them.
func (h *MQHandler) AccountVerifiedNotification(ctx context.Context, msg messaging.Message) error {
	ctx = h.ensureCorrelationID(ctx, msg.Headers)

	ctx, span := h.ins.Tracer("notification.inbound.mq").Start(ctx, "AccountVerifiedNotification")
	defer span.End()
	span.SetAttributes(attribute.String("messaging.message.id", msg.ID), attribute.Int("messaging.attempt", msg.Attempt))

	slog.InfoContext(ctx, "consume: account verified notification", "msg_id", msg.ID, "attempt", msg.Attempt)

	var payload event.AccountVerifiedMessage
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		slog.ErrorContext(ctx, "failed to parse message body of account verified notification", "msg_body", string(msg.Body), "error", err)
		return nil
	}

	if err := h.uc.ConsumeAccountVerified(ctx, usecase.ConsumeAccountVerifiedInput{
		AccountID: payload.AccountID,
		Email:     payload.Email,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to consume account verified", "account_id", payload.AccountID, "error", err)
		return err
	}

	return nil
}

func (h *MQHandler) AccountLockedNotification(ctx context.Context, msg messaging.Message) error {
	ctx = h.ensureCorrelationID(ctx, msg.Headers)

	ctx, span := h.ins.Tracer("notification.inbound.mq").Start(ctx, "AccountLockedNotification")
	defer span.End()
	span.SetAttributes(attribute.String("messaging.message.id", msg.ID), attribute.Int("messaging.attempt", msg.Attempt))

	slog.InfoContext(ctx, "consume: account locked notification", "msg_id", msg.ID, "attempt", msg.Attempt)

	var payload event.AccountLockedMessage
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		slog.ErrorContext(ctx, "failed to parse message body of account locked notification", "msg_body", string(msg.Body), "error", err)
		return nil
	}

	if err := h.uc.ConsumeAccountLocked(ctx, usecase.ConsumeAccountLockedInput{
		AccountID:      payload.AccountID,
		Email:          payload.Email,
		FailedAttempts: payload.FailedAttempts,
		LockedUntil:    payload.LockedUntil,
		Origin:         payload.Origin,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to consume account locked", "account_id", payload.AccountID, "error", err)
		return err
	}

	return nil
}

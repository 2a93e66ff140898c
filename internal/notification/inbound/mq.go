package inbound

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/shandysiswandi/otpguard/internal/pkg/config"
	"github.com/shandysiswandi/otpguard/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpguard/internal/pkg/instrument"
	"github.com/shandysiswandi/otpguard/internal/pkg/messaging"
	"github.com/shandysiswandi/otpguard/internal/pkg/uid"
	"github.com/shandysiswandi/otpguard/internal/shared/event"
)

const defaultConsumerConcurrency = 4

type consumer struct {
	name    string // consumer group on every driver
	topic   string // destination the otp module publishes to
	handler messaging.Handler
}

func consumers(h *MQHandler) []consumer {
	return []consumer{
		{
			name:    event.AccountVerifiedConsumerNotification,
			topic:   event.AccountVerifiedDestination,
			handler: h.AccountVerifiedNotification,
		},
		{
			name:    event.AccountLockedConsumerNotification,
			topic:   event.AccountLockedDestination,
			handler: h.AccountLockedNotification,
		},
	}
}

// RegisterMQConsumer starts the consumers listed in
// modules.notification.consumer_names. An empty list starts none.
func RegisterMQConsumer(
	ctx context.Context,
	cfg config.Config,
	routine *goroutine.Manager,
	messenger messaging.Consumer,
	uuid uid.StringID,
	uc uc,
	ins instrument.Instrumentation,
) int {
	h := &MQHandler{uc: uc, uuid: uuid, ins: ins}

	enabled := cfg.GetArray("modules.notification.consumer_names")
	concurrency := cfg.GetInt("modules.notification.consumer_concurrency")
	if concurrency < 1 {
		concurrency = defaultConsumerConcurrency
	}

	started := 0
	for _, c := range consumers(h) {
		if !slices.Contains(enabled, c.name) {
			continue
		}

		ok := routine.Go(ctx, func(pCtx context.Context) error {
			slog.InfoContext(pCtx, "Running job for handling consumer", "consumer", c.name, "topic", c.topic)
			err := messenger.Consume(pCtx, c.topic, c.handler,
				messaging.WithGroup(c.name),
				messaging.WithConcurrency(concurrency),
			)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
		if ok {
			started++
		}
	}

	return started
}

package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/shandysiswandi/otpguard/internal/notification/entity"
)

type ConsumeAccountLockedInput struct {
	AccountID      int64     `validate:"required,gt=0"`
	Email          string    `validate:"required,email"`
	FailedAttempts int       `validate:"gte=0"`
	LockedUntil    time.Time `validate:"required"`
	Origin         string
}

// ConsumeAccountLocked warns the owner that sign-in is locked. Alerts for a
// lock that already ended are dropped.
func (s *Usecase) ConsumeAccountLocked(ctx context.Context, in ConsumeAccountLockedInput) error {
	ctx, span := s.startSpan(ctx, "ConsumeAccountLocked")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		slog.ErrorContext(ctx, "Validation failed", "error", err)
		return nil
	}

	if !s.clock.Now().Before(in.LockedUntil) {
		slog.InfoContext(ctx, "skip alert for elapsed lock", "account_id", in.AccountID)
		return nil
	}

	return s.sendEmailNotification(ctx, emailNotificationInput{
		AccountID:  in.AccountID,
		Email:      in.Email,
		TriggerKey: entity.TriggerKeyAccountLocked,
		TemplateData: map[string]any{
			"email":           in.Email,
			"failed_attempts": in.FailedAttempts,
			"locked_until":    in.LockedUntil.UTC().Format("2006-01-02 15:04 MST"),
			"origin":          in.Origin,
		},
	})
}

package usecase

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/otpguard/internal/notification/entity"
)

type ConsumeAccountVerifiedInput struct {
	AccountID int64  `validate:"required,gt=0"`
	Email     string `validate:"required,email"`
}

// ConsumeAccountVerified sends the welcome email after registration.
func (s *Usecase) ConsumeAccountVerified(ctx context.Context, in ConsumeAccountVerifiedInput) error {
	ctx, span := s.startSpan(ctx, "ConsumeAccountVerified")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		slog.ErrorContext(ctx, "Validation failed", "error", err)
		return nil
	}

	return s.sendEmailNotification(ctx, emailNotificationInput{
		AccountID:    in.AccountID,
		Email:        in.Email,
		TriggerKey:   entity.TriggerKeyWelcome,
		TemplateData: map[string]any{"email": in.Email},
	})
}

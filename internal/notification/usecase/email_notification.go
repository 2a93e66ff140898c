package usecase

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/otpguard/internal/notification/entity"
	"github.com/shandysiswandi/otpguard/internal/pkg/mail"
)

type emailNotificationInput struct {
	AccountID    int64
	Email        string
	TriggerKey   entity.TriggerKey
	TemplateData map[string]any
}

// sendEmailNotification renders the trigger template and mails it. A send
// error is returned so the broker can redeliver.
func (s *Usecase) sendEmailNotification(ctx context.Context, in emailNotificationInput) error {
	log := slog.With("account_id", in.AccountID, "trigger_key", in.TriggerKey.String())

	tpl, ok, err := s.compile(in.TriggerKey)
	if !ok {
		log.WarnContext(ctx, "notification template not found")
		return nil
	}
	if err != nil {
		log.ErrorContext(ctx, "failed to parse notification template", "error", err)
		return nil
	}

	subject, body, err := tpl.render(s.templateData(in.TemplateData))
	if err != nil {
		log.ErrorContext(ctx, "failed to render notification template", "error", err)
		return nil
	}

	if err := s.repoMail.Send(ctx, mail.Message{
		To:       []string{in.Email},
		Subject:  subject,
		HTMLBody: body,
	}); err != nil {
		log.ErrorContext(ctx, "failed to send notification email", "error", err)
		return err
	}

	log.InfoContext(ctx, "notification email sent")
	return nil
}

package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/shandysiswandi/otpguard/internal/otp/entity"
	"github.com/shandysiswandi/otpguard/internal/pkg/goerror"
)

// dispatch runs the purpose side effect of a consumed code.
func (s *Usecase) dispatch(ctx context.Context, acc *entity.Account, in VerifyInput, purpose entity.Purpose, now time.Time) (*VerifyOutput, error) {
	switch purpose {
	case entity.PurposeRegistration:
		return s.completeRegistration(ctx, acc, in, now)
	case entity.PurposeLogin:
		return s.completeLogin(ctx, acc, in.Email)
	case entity.PurposePasswordReset:
		return s.openPasswordChange(ctx, acc, in, now)
	default:
		return nil, goerror.NewInvalidInput(nil, "purpose", "purpose is not verifiable")
	}
}

func (s *Usecase) completeRegistration(ctx context.Context, acc *entity.Account, in VerifyInput, now time.Time) (*VerifyOutput, error) {
	if acc == nil {
		// the account was removed after the code was issued
		var err error
		acc, err = s.repoDB.EnsureAccount(ctx, entity.NewAccount{ID: s.uid.Generate(), Email: in.Email}, now)
		if err != nil {
			slog.ErrorContext(ctx, "failed to repo ensure account", "error", err)
			return nil, goerror.NewUnavailable(err)
		}
	}

	applied, err := s.repoDB.MarkVerified(ctx, acc.ID, now)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo mark verified", "account_id", acc.ID, "error", err)
		return nil, goerror.NewUnavailable(err)
	}

	if applied && in.Password != "" {
		hashed, err := s.password.Hash(in.Password)
		if err != nil {
			slog.ErrorContext(ctx, "failed to hash password", "error", err)
			return nil, goerror.NewServer(err)
		}
		if err := s.repoDB.UpdatePassword(ctx, acc.ID, string(hashed), now); err != nil {
			slog.ErrorContext(ctx, "failed to repo update password", "account_id", acc.ID, "error", err)
			return nil, goerror.NewUnavailable(err)
		}
	}

	if applied {
		ev := AccountVerifiedEvent{AccountID: acc.ID, Email: acc.Email, VerifiedAt: now}
		s.background(ctx, "publish account verified", func(ctx context.Context) error {
			return s.repoMessaging.PublishAccountVerified(ctx, ev)
		})
	}

	return &VerifyOutput{Result: entity.ResultSuccess, AccountID: acc.ID}, nil
}

func (s *Usecase) completeLogin(ctx context.Context, acc *entity.Account, email string) (*VerifyOutput, error) {
	if acc == nil {
		return &VerifyOutput{Result: entity.ResultInvalidCode}, nil
	}

	token, err := s.jwt.Generate(acc.ID, email)
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate access token", "account_id", acc.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	return &VerifyOutput{
		Result:      entity.ResultSuccess,
		AccountID:   acc.ID,
		AccessToken: token,
		ExpiresIn:   s.jwt.TTL(),
	}, nil
}

// openPasswordChange trades a reset code for a single-use ticket that
// authorizes one password change.
func (s *Usecase) openPasswordChange(ctx context.Context, acc *entity.Account, in VerifyInput, now time.Time) (*VerifyOutput, error) {
	if acc == nil {
		return &VerifyOutput{Result: entity.ResultInvalidCode}, nil
	}

	ticket := s.ticket.Generate()
	digest, err := s.hmac.Hash(digestInput(entity.PurposePasswordChange, in.Email, ticket))
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash password change ticket", "error", err)
		return nil, goerror.NewServer(err)
	}

	tok := entity.NewToken{
		ID:         s.uid.Generate(),
		Subject:    in.Email,
		Purpose:    entity.PurposePasswordChange,
		CodeDigest: string(digest),
		ExpiresAt:  now.Add(s.expiry(entity.PurposePasswordChange)),
		Origin:     in.Origin,
	}
	if err := s.repoDB.ReplaceToken(ctx, tok, now); err != nil {
		slog.ErrorContext(ctx, "failed to repo replace password change ticket", "account_id", acc.ID, "error", err)
		return nil, goerror.NewUnavailable(err)
	}

	return &VerifyOutput{
		Result:          entity.ResultSuccess,
		AccountID:       acc.ID,
		ResetTicket:     ticket,
		TicketExpiresAt: tok.ExpiresAt,
	}, nil
}

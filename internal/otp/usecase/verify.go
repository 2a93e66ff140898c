package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/shandysiswandi/otpguard/internal/otp/entity"
	"github.com/shandysiswandi/otpguard/internal/pkg/goerror"
)

type VerifyInput struct {
	Email    string `validate:"required,email,max=254"`
	Purpose  string `validate:"required,oneof=registration login password_reset"`
	Code     string `validate:"required,numeric,min=4,max=10"`
	Password string `validate:"omitempty,password"`
	Origin   string
}

type VerifyOutput struct {
	Result     entity.Result
	RetryAfter time.Duration
	AccountID  int64

	// login
	AccessToken string
	ExpiresIn   time.Duration

	// password_reset
	ResetTicket     string
	TicketExpiresAt time.Time
}

func (s *Usecase) Verify(ctx context.Context, in VerifyInput) (*VerifyOutput, error) {
	ctx, span := s.startSpan(ctx, "Verify")
	defer span.End()

	in.Email = normalizeEmail(in.Email)
	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}
	purpose := entity.ParsePurpose(in.Purpose)

	out, err := s.verify(ctx, in, purpose)
	if err != nil {
		return nil, err
	}

	s.record(ctx, purpose, out.Result)
	slog.InfoContext(ctx, "otp verify attempt", "purpose", purpose.String(), "result", out.Result.String(), "origin", in.Origin)
	return out, nil
}

func (s *Usecase) verify(ctx context.Context, in VerifyInput, purpose entity.Purpose) (*VerifyOutput, error) {
	now := s.clock.Now()

	acc, v, err := s.guardEntry(ctx, in.Email, now)
	if err != nil {
		return nil, err
	}
	if v.result == entity.ResultLockedOut {
		return &VerifyOutput{Result: v.result, RetryAfter: v.retryAfter}, nil
	}

	v, err = s.consume(ctx, acc, in.Email, purpose, in.Code, in.Origin, now)
	if err != nil {
		return nil, err
	}
	if v.result != entity.ResultSuccess {
		return &VerifyOutput{Result: v.result, RetryAfter: v.retryAfter}, nil
	}

	return s.dispatch(ctx, acc, in, purpose, now)
}

package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/shandysiswandi/otpguard/internal/otp/entity"
	"github.com/shandysiswandi/otpguard/internal/pkg/goerror"
)

type ResetPasswordInput struct {
	Email       string `validate:"required,email,max=254"`
	Ticket      string `validate:"required,hexadecimal,len=64"`
	NewPassword string `validate:"required,password"`
	Origin      string
}

type ResetPasswordOutput struct {
	Result     entity.Result
	RetryAfter time.Duration
}

// ResetPassword spends a password change ticket obtained from a verified
// password_reset code.
func (s *Usecase) ResetPassword(ctx context.Context, in ResetPasswordInput) (*ResetPasswordOutput, error) {
	ctx, span := s.startSpan(ctx, "ResetPassword")
	defer span.End()

	in.Email = normalizeEmail(in.Email)
	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	now := s.clock.Now()
	acc, v, err := s.guardEntry(ctx, in.Email, now)
	if err != nil {
		return nil, err
	}
	if v.result != entity.ResultLockedOut {
		v, err = s.consume(ctx, acc, in.Email, entity.PurposePasswordChange, in.Ticket, in.Origin, now)
		if err != nil {
			return nil, err
		}
	}
	if v.result == entity.ResultSuccess && acc == nil {
		v = verdict{result: entity.ResultInvalidCode}
	}

	s.record(ctx, entity.PurposePasswordChange, v.result)
	if v.result != entity.ResultSuccess {
		return &ResetPasswordOutput{Result: v.result, RetryAfter: v.retryAfter}, nil
	}

	hashed, err := s.password.Hash(in.NewPassword)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash password", "error", err)
		return nil, goerror.NewServer(err)
	}
	if err := s.repoDB.UpdatePassword(ctx, acc.ID, string(hashed), now); err != nil {
		slog.ErrorContext(ctx, "failed to repo update password", "account_id", acc.ID, "error", err)
		return nil, goerror.NewUnavailable(err)
	}

	slog.InfoContext(ctx, "password changed", "account_id", acc.ID, "origin", in.Origin)
	return &ResetPasswordOutput{Result: entity.ResultSuccess}, nil
}

type LoginPasswordInput struct {
	Email    string `validate:"required,email,max=254"`
	Password string `validate:"required,max=72"`
	Origin   string
}

type LoginPasswordOutput struct {
	Result      entity.Result
	RetryAfter  time.Duration
	AccountID   int64
	AccessToken string
	ExpiresIn   time.Duration
}

// LoginPassword authenticates with a stored password under the same lockout
// rules as code verification.
func (s *Usecase) LoginPassword(ctx context.Context, in LoginPasswordInput) (*LoginPasswordOutput, error) {
	ctx, span := s.startSpan(ctx, "LoginPassword")
	defer span.End()

	in.Email = normalizeEmail(in.Email)
	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	out, err := s.loginPassword(ctx, in)
	if err != nil {
		return nil, err
	}

	s.record(ctx, entity.PurposeLogin, out.Result)
	slog.InfoContext(ctx, "password login attempt", "result", out.Result.String(), "origin", in.Origin)
	return out, nil
}

func (s *Usecase) loginPassword(ctx context.Context, in LoginPasswordInput) (*LoginPasswordOutput, error) {
	now := s.clock.Now()

	acc, v, err := s.guardEntry(ctx, in.Email, now)
	if err != nil {
		return nil, err
	}
	if v.result == entity.ResultLockedOut {
		return &LoginPasswordOutput{Result: v.result, RetryAfter: v.retryAfter}, nil
	}
	if acc == nil {
		return &LoginPasswordOutput{Result: entity.ResultInvalidCode}, nil
	}

	if !acc.HasPassword() || !s.password.Verify(acc.PasswordHash, in.Password) {
		v, err := s.failure(ctx, acc, in.Origin, now)
		if err != nil {
			return nil, err
		}
		return &LoginPasswordOutput{Result: v.result, RetryAfter: v.retryAfter}, nil
	}

	if !acc.Verified {
		return nil, goerror.NewBusiness("Email not verified", goerror.CodeForbidden)
	}

	open, err := s.repoDB.ResetFailuresIfOpen(ctx, acc.ID, now)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo reset failures", "account_id", acc.ID, "error", err)
		return nil, goerror.NewUnavailable(err)
	}
	if !open {
		// locked by a concurrent failure after the entry check
		return &LoginPasswordOutput{Result: entity.ResultLockedOut, RetryAfter: s.currentRetryAfter(ctx, acc.Email, now)}, nil
	}

	token, err := s.jwt.Generate(acc.ID, acc.Email)
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate access token", "account_id", acc.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	return &LoginPasswordOutput{
		Result:      entity.ResultSuccess,
		AccountID:   acc.ID,
		AccessToken: token,
		ExpiresIn:   s.jwt.TTL(),
	}, nil
}

package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shandysiswandi/otpguard/internal/pkg/goerror"
)

type AccountStatusInput struct {
	Email string `validate:"required,email,max=254"`
}

type AccountStatusOutput struct {
	ID             int64
	Email          string
	Verified       bool
	HasPassword    bool
	FailedAttempts int
	Locked         bool
	LockedUntil    *time.Time
	RetryAfter     time.Duration
}

func (s *Usecase) AccountStatus(ctx context.Context, in AccountStatusInput) (*AccountStatusOutput, error) {
	ctx, span := s.startSpan(ctx, "AccountStatus")
	defer span.End()

	in.Email = normalizeEmail(in.Email)
	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	acc, err := s.repoDB.GetAccountByEmail(ctx, in.Email)
	if errors.Is(err, goerror.ErrNotFound) {
		return nil, goerror.NewBusiness("Account not found", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get account by email", "error", err)
		return nil, goerror.NewUnavailable(err)
	}

	now := s.clock.Now()
	return &AccountStatusOutput{
		ID:             acc.ID,
		Email:          acc.Email,
		Verified:       acc.Verified,
		HasPassword:    acc.HasPassword(),
		FailedAttempts: acc.FailedAttempts,
		Locked:         acc.IsLocked(now),
		LockedUntil:    acc.LockedUntil,
		RetryAfter:     acc.RetryAfter(now),
	}, nil
}

type UnlockAccountInput struct {
	Email string `validate:"required,email,max=254"`
	// ActorEmail is the administrator performing the unlock.
	ActorEmail string
}

// UnlockAccount clears the counters and any lock, as the account management
// collaborator does after an out-of-band identity check.
func (s *Usecase) UnlockAccount(ctx context.Context, in UnlockAccountInput) error {
	ctx, span := s.startSpan(ctx, "UnlockAccount")
	defer span.End()

	in.Email = normalizeEmail(in.Email)
	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	acc, err := s.repoDB.GetAccountByEmail(ctx, in.Email)
	if errors.Is(err, goerror.ErrNotFound) {
		return goerror.NewBusiness("Account not found", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get account by email", "error", err)
		return goerror.NewUnavailable(err)
	}

	if err := s.repoDB.ResetFailures(ctx, acc.ID, s.clock.Now()); err != nil {
		slog.ErrorContext(ctx, "failed to repo reset failures", "account_id", acc.ID, "error", err)
		return goerror.NewUnavailable(err)
	}

	slog.InfoContext(ctx, "account unlocked manually", "account_id", acc.ID, "actor", in.ActorEmail)
	return nil
}

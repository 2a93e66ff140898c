package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/shandysiswandi/otpguard/internal/otp/entity"
	"github.com/shandysiswandi/otpguard/internal/pkg/goerror"
	"github.com/shandysiswandi/otpguard/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpguard/internal/pkg/valueobject"
)

type IssueInput struct {
	Email     string `validate:"required,email,max=254"`
	Purpose   string `validate:"required,oneof=registration login password_reset"`
	Origin    string
	UserAgent string
}

type IssueOutput struct {
	Result     entity.Result
	TokenID    int64
	ExpiresAt  time.Time
	RetryAfter time.Duration
	// Code is the plaintext just delivered. It never leaves the process.
	Code string
}

func (s *Usecase) Issue(ctx context.Context, in IssueInput) (*IssueOutput, error) {
	ctx, span := s.startSpan(ctx, "Issue")
	defer span.End()

	in.Email = normalizeEmail(in.Email)
	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}
	purpose := entity.ParsePurpose(in.Purpose)

	key := "otp:issue:" + purpose.String() + ":" + in.Email
	if err := s.acquireCooldown(ctx, key); err != nil {
		return nil, err
	}

	out, stored, err := s.issue(ctx, in, purpose)
	if err != nil && !stored {
		// nothing was sent, let the caller retry right away
		if rerr := s.idemp.Release(ctx, key); rerr != nil {
			slog.WarnContext(ctx, "failed to release issue cooldown", "key", key, "error", rerr)
		}
	}
	return out, err
}

func (s *Usecase) acquireCooldown(ctx context.Context, key string) error {
	cooldown := s.resendCooldown()
	if cooldown <= 0 {
		return nil
	}

	state, err := s.idemp.Acquire(ctx, key, cooldown)
	if err != nil {
		slog.ErrorContext(ctx, "failed to acquire issue cooldown", "key", key, "error", err)
		return goerror.NewUnavailable(err)
	}
	if state == idempotency.StateNone {
		return nil
	}

	remaining, err := s.idemp.Remaining(ctx, key)
	if err != nil || remaining <= 0 {
		remaining = cooldown
	}
	secs := int64((remaining + time.Second - 1) / time.Second)

	return goerror.NewBusinessWithFields("A code was sent recently, please wait before requesting another",
		goerror.CodeTooManyRequest, "retry_after_seconds", strconv.FormatInt(secs, 10))
}

// issue reports stored=true once a token is persisted, after which the
// cooldown must hold even if delivery fails.
func (s *Usecase) issue(ctx context.Context, in IssueInput, purpose entity.Purpose) (_ *IssueOutput, stored bool, _ error) {
	now := s.clock.Now()

	acc, err := s.resolveIssueAccount(ctx, in.Email, purpose, now)
	if err != nil {
		return nil, false, err
	}
	if acc == nil {
		slog.InfoContext(ctx, "issue for unknown account accepted", "purpose", purpose.String())
		return &IssueOutput{Result: entity.ResultAccepted}, false, nil
	}

	if acc.LockElapsed(now) {
		s.unlockExpired(ctx, acc, now)
	}
	if acc.IsLocked(now) {
		return &IssueOutput{Result: entity.ResultLockedOut, RetryAfter: acc.RetryAfter(now)}, false, nil
	}

	code, err := s.code.Generate()
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate otp code", "error", err)
		return nil, false, goerror.NewServer(err)
	}

	digest, err := s.hmac.Hash(digestInput(purpose, in.Email, code))
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash otp code", "error", err)
		return nil, false, goerror.NewServer(err)
	}

	tok := entity.NewToken{
		ID:         s.uid.Generate(),
		Subject:    in.Email,
		Purpose:    purpose,
		CodeDigest: string(digest),
		ExpiresAt:  now.Add(s.expiry(purpose)),
		Origin:     in.Origin,
		Metadata:   valueobject.JSONMap{"user_agent": in.UserAgent},
	}
	if err := s.repoDB.ReplaceToken(ctx, tok, now); err != nil {
		slog.ErrorContext(ctx, "failed to repo replace token", "purpose", purpose.String(), "error", err)
		return nil, false, goerror.NewUnavailable(err)
	}

	out := &IssueOutput{
		Result:    entity.ResultSuccess,
		TokenID:   tok.ID,
		ExpiresAt: tok.ExpiresAt,
		Code:      code,
	}

	if err := s.delivery.Send(ctx, in.Email, code, purpose); err != nil {
		slog.ErrorContext(ctx, "failed to deliver otp code", "token_id", tok.ID, "purpose", purpose.String(), "error", err)
		out.Result = entity.ResultDeliveryFailed
		out.Code = ""
		return out, true, nil
	}

	slog.InfoContext(ctx, "otp issued", "token_id", tok.ID, "purpose", purpose.String(), "expires_at", tok.ExpiresAt)
	return out, true, nil
}

// resolveIssueAccount returns nil without error when a login or reset code is
// requested for an unknown email.
func (s *Usecase) resolveIssueAccount(ctx context.Context, email string, purpose entity.Purpose, now time.Time) (*entity.Account, error) {
	if purpose == entity.PurposeRegistration {
		acc, err := s.repoDB.EnsureAccount(ctx, entity.NewAccount{ID: s.uid.Generate(), Email: email}, now)
		if err != nil {
			slog.ErrorContext(ctx, "failed to repo ensure account", "error", err)
			return nil, goerror.NewUnavailable(err)
		}
		if acc.Verified {
			return nil, goerror.NewBusiness("Account already verified", goerror.CodeConflict)
		}
		return acc, nil
	}

	acc, err := s.repoDB.GetAccountByEmail(ctx, email)
	if errors.Is(err, goerror.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get account by email", "error", err)
		return nil, goerror.NewUnavailable(err)
	}
	return acc, nil
}

func (s *Usecase) unlockExpired(ctx context.Context, acc *entity.Account, now time.Time) {
	ok, err := s.repoDB.UnlockExpired(ctx, acc.ID, now)
	if err != nil {
		// the lock has elapsed either way, the sweep clears it later
		slog.WarnContext(ctx, "failed to repo unlock expired account", "account_id", acc.ID, "error", err)
	}
	if ok {
		slog.InfoContext(ctx, "account lock elapsed", "account_id", acc.ID)
	}
	acc.FailedAttempts = 0
	acc.LockedUntil = nil
}

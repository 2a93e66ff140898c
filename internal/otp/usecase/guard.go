package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shandysiswandi/otpguard/internal/otp/entity"
	"github.com/shandysiswandi/otpguard/internal/pkg/goerror"
)

// verdict is the outcome of a guarded attempt before purpose dispatch.
type verdict struct {
	result     entity.Result
	retryAfter time.Duration
}

// guardEntry loads the account behind email. A nil account with a zero
// verdict means the email is unknown and attempts are not counted.
func (s *Usecase) guardEntry(ctx context.Context, email string, now time.Time) (*entity.Account, verdict, error) {
	acc, err := s.repoDB.GetAccountByEmail(ctx, email)
	if errors.Is(err, goerror.ErrNotFound) {
		return nil, verdict{}, nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get account by email", "error", err)
		return nil, verdict{}, goerror.NewUnavailable(err)
	}

	if acc.LockElapsed(now) {
		s.unlockExpired(ctx, acc, now)
	}
	if acc.IsLocked(now) {
		return acc, verdict{result: entity.ResultLockedOut, retryAfter: acc.RetryAfter(now)}, nil
	}
	return acc, verdict{}, nil
}

// failure counts one bad attempt against acc. The attempt that reaches the
// threshold still reports InvalidCode; the lock shows from the next one.
func (s *Usecase) failure(ctx context.Context, acc *entity.Account, origin string, now time.Time) (verdict, error) {
	if acc == nil {
		return verdict{result: entity.ResultInvalidCode}, nil
	}

	lockUntil := now.Add(s.lockoutDuration())
	state, counted, err := s.repoDB.RegisterFailure(ctx, acc.ID, now, s.threshold(), lockUntil)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo register failure", "account_id", acc.ID, "error", err)
		return verdict{}, goerror.NewUnavailable(err)
	}

	if !counted {
		// a concurrent attempt locked the account first
		return verdict{result: entity.ResultLockedOut, retryAfter: s.currentRetryAfter(ctx, acc.Email, now)}, nil
	}

	if state.Locked {
		s.locked(ctx, acc, state, origin)
	}
	return verdict{result: entity.ResultInvalidCode}, nil
}

// currentRetryAfter re-reads a lock that appeared after the entry check. A
// failed read falls back to a full lockout window.
func (s *Usecase) currentRetryAfter(ctx context.Context, email string, now time.Time) time.Duration {
	if cur, err := s.repoDB.GetAccountByEmail(ctx, email); err == nil && cur.IsLocked(now) {
		return cur.RetryAfter(now)
	}
	return s.lockoutDuration()
}

func (s *Usecase) locked(ctx context.Context, acc *entity.Account, state *entity.LockState, origin string) {
	slog.WarnContext(ctx, "account locked after repeated failures",
		"account_id", acc.ID,
		"failed_attempts", state.FailedAttempts,
		"locked_until", state.LockedUntil,
		"origin", origin,
	)
	if s.lockouts != nil {
		s.lockouts.Add(ctx, 1)
	}

	ev := AccountLockedEvent{
		AccountID:      acc.ID,
		Email:          acc.Email,
		FailedAttempts: state.FailedAttempts,
		Origin:         origin,
	}
	if state.LockedUntil != nil {
		ev.LockedUntil = *state.LockedUntil
	}
	s.background(ctx, "publish account locked", func(ctx context.Context) error {
		return s.repoMessaging.PublishAccountLocked(ctx, ev)
	})
}

// consume checks secret against the current token for (subject, purpose) and
// spends it. Only a Success verdict has consumed the token. The final lock
// check, the consumption and the counter reset are one store operation, so a
// lock applied by a concurrent failure always wins.
func (s *Usecase) consume(ctx context.Context, acc *entity.Account, subject string, purpose entity.Purpose, secret, origin string, now time.Time) (verdict, error) {
	tok, err := s.repoDB.GetCurrentToken(ctx, subject, purpose)
	if errors.Is(err, goerror.ErrNotFound) {
		return s.failure(ctx, acc, origin, now)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get current token", "purpose", purpose.String(), "error", err)
		return verdict{}, goerror.NewUnavailable(err)
	}

	if !s.hmac.Verify(tok.CodeDigest, digestInput(purpose, subject, secret)) {
		return s.failure(ctx, acc, origin, now)
	}
	if tok.IsExpired(now) {
		return verdict{result: entity.ResultExpired}, nil
	}
	if tok.IsUsed() {
		return verdict{result: entity.ResultAlreadyUsed}, nil
	}

	var accountID int64
	if acc != nil {
		accountID = acc.ID
	}

	c, err := s.repoDB.ConsumeToken(ctx, tok.ID, accountID, now)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo consume token", "token_id", tok.ID, "error", err)
		return verdict{}, goerror.NewUnavailable(err)
	}
	switch {
	case c.LockedUntil != nil:
		return verdict{result: entity.ResultLockedOut, retryAfter: c.RetryAfter(now)}, nil
	case !c.Consumed:
		return s.lostRace(ctx, tok.ID, subject, purpose, now)
	}
	return verdict{result: entity.ResultSuccess}, nil
}

// lostRace classifies a token that changed between read and consume.
func (s *Usecase) lostRace(ctx context.Context, id int64, subject string, purpose entity.Purpose, now time.Time) (verdict, error) {
	cur, err := s.repoDB.GetCurrentToken(ctx, subject, purpose)
	if err != nil && !errors.Is(err, goerror.ErrNotFound) {
		slog.ErrorContext(ctx, "failed to repo get current token", "purpose", purpose.String(), "error", err)
		return verdict{}, goerror.NewUnavailable(err)
	}

	switch {
	case err != nil || cur.ID != id:
		// reissued meanwhile, the code no longer matches anything live
		return verdict{result: entity.ResultInvalidCode}, nil
	case cur.IsExpired(now):
		return verdict{result: entity.ResultExpired}, nil
	default:
		return verdict{result: entity.ResultAlreadyUsed}, nil
	}
}

package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shandysiswandi/otpguard/internal/otp/entity"
)

func scanAccount(row pgx.Row) (*entity.Account, error) {
	var (
		acc  entity.Account
		hash pgtype.Text
	)
	if err := row.Scan(
		&acc.ID,
		&acc.Email,
		&hash,
		&acc.Verified,
		&acc.FailedAttempts,
		&acc.LockedUntil,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	); err != nil {
		return nil, err
	}
	acc.PasswordHash = hash.String
	return &acc, nil
}

func (s *DB) GetAccountByEmail(ctx context.Context, email string) (_ *entity.Account, err error) {
	ctx, span := s.startSpan(ctx, "GetAccountByEmail")
	defer func() { s.endSpan(span, err) }()

	acc, err := scanAccount(s.conn.QueryRow(ctx, getAccountByEmail, email))
	if err != nil {
		return nil, s.mapError(err)
	}
	return acc, nil
}

// EnsureAccount creates the account when the email is new and returns the
// stored row either way. in.ID is ignored when the email already exists.
func (s *DB) EnsureAccount(ctx context.Context, in entity.NewAccount, now time.Time) (_ *entity.Account, err error) {
	ctx, span := s.startSpan(ctx, "EnsureAccount")
	defer func() { s.endSpan(span, err) }()

	if _, err = s.conn.Exec(ctx, insertAccountIfMissing, in.ID, in.Email, now); err != nil {
		return nil, s.mapError(err)
	}

	acc, err := scanAccount(s.conn.QueryRow(ctx, getAccountByEmail, in.Email))
	if err != nil {
		return nil, s.mapError(err)
	}
	return acc, nil
}

// UnlockExpired clears a lock whose window has elapsed and resets the counter.
func (s *DB) UnlockExpired(ctx context.Context, id int64, now time.Time) (_ bool, err error) {
	ctx, span := s.startSpan(ctx, "UnlockExpired")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, unlockExpired, id, now)
	if err != nil {
		return false, s.mapError(err)
	}
	return tag.RowsAffected() == 1, nil
}

// RegisterFailure counts one failed attempt and locks the account until
// lockUntil when the count reaches threshold. It reports false, with a nil
// state, when the account is locked and nothing was counted.
func (s *DB) RegisterFailure(ctx context.Context, id int64, now time.Time, threshold int, lockUntil time.Time) (_ *entity.LockState, _ bool, err error) {
	ctx, span := s.startSpan(ctx, "RegisterFailure")
	defer func() { s.endSpan(span, err) }()

	var st entity.LockState
	err = s.conn.QueryRow(ctx, registerFailure, id, now, threshold, lockUntil).Scan(&st.FailedAttempts, &st.LockedUntil)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, s.mapError(err)
	}

	st.Locked = st.LockedUntil != nil
	return &st, true, nil
}

// ResetFailures returns the account to Open with a zero counter, lock or not.
func (s *DB) ResetFailures(ctx context.Context, id int64, now time.Time) (err error) {
	ctx, span := s.startSpan(ctx, "ResetFailures")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, resetFailures, id, now)
	return s.mapError(err)
}

// ResetFailuresIfOpen resets the counter unless the account is locked at now.
// It reports false when a lock is in force and nothing changed.
func (s *DB) ResetFailuresIfOpen(ctx context.Context, id int64, now time.Time) (_ bool, err error) {
	ctx, span := s.startSpan(ctx, "ResetFailuresIfOpen")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, resetFailuresIfOpen, id, now)
	if err != nil {
		return false, s.mapError(err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkVerified flips verified once; it reports whether this call did it.
func (s *DB) MarkVerified(ctx context.Context, id int64, now time.Time) (_ bool, err error) {
	ctx, span := s.startSpan(ctx, "MarkVerified")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, markVerified, id, now)
	if err != nil {
		return false, s.mapError(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *DB) UpdatePassword(ctx context.Context, id int64, hash string, now time.Time) (err error) {
	ctx, span := s.startSpan(ctx, "UpdatePassword")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, updatePassword, id, hash, now)
	return s.mapError(err)
}

func (s *DB) ClearExpiredLocks(ctx context.Context, now time.Time) (_ int64, err error) {
	ctx, span := s.startSpan(ctx, "ClearExpiredLocks")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, clearExpiredLocks, now)
	if err != nil {
		return 0, s.mapError(err)
	}
	return tag.RowsAffected(), nil
}

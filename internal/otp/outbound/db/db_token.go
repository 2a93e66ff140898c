package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shandysiswandi/otpguard/internal/otp/entity"
	"github.com/shandysiswandi/otpguard/internal/pkg/valueobject"
)

func scanToken(row pgx.Row) (*entity.Token, error) {
	var tok entity.Token
	if err := row.Scan(
		&tok.ID,
		&tok.Subject,
		&tok.Purpose,
		&tok.CodeDigest,
		&tok.CreatedAt,
		&tok.ExpiresAt,
		&tok.UsedAt,
		&tok.RevokedAt,
		&tok.Origin,
		&tok.Metadata,
	); err != nil {
		return nil, err
	}
	return &tok, nil
}

// ReplaceToken revokes every live token of (subject, purpose) and inserts in
// in one transaction, so the old code is dead before the new one is visible.
func (s *DB) ReplaceToken(ctx context.Context, in entity.NewToken, now time.Time) (err error) {
	ctx, span := s.startSpan(ctx, "ReplaceToken")
	defer func() { s.endSpan(span, err) }()

	tx, err := s.conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer s.rollback(ctx, tx)

	if _, err = tx.Exec(ctx, lockSubjectPurpose, in.Subject, in.Purpose.String()); err != nil {
		return s.mapError(err)
	}

	if _, err = tx.Exec(ctx, revokeLiveTokens, in.Subject, int16(in.Purpose), now); err != nil {
		return s.mapError(err)
	}

	meta := in.Metadata
	if meta == nil {
		meta = valueobject.JSONMap{}
	}

	if _, err = tx.Exec(ctx, insertToken,
		in.ID,
		in.Subject,
		int16(in.Purpose),
		in.CodeDigest,
		now,
		in.ExpiresAt,
		in.Origin,
		meta,
	); err != nil {
		return s.mapError(err)
	}

	if err = tx.Commit(ctx); err != nil {
		return s.mapError(err)
	}

	return nil
}

func (s *DB) GetCurrentToken(ctx context.Context, subject string, p entity.Purpose) (_ *entity.Token, err error) {
	ctx, span := s.startSpan(ctx, "GetCurrentToken")
	defer func() { s.endSpan(span, err) }()

	tok, err := scanToken(s.conn.QueryRow(ctx, getCurrentToken, subject, int16(p)))
	if err != nil {
		return nil, s.mapError(err)
	}
	return tok, nil
}

// ConsumeToken spends token tokenID for accountID in one transaction. The
// account row is locked first: an account locked at now leaves the token
// untouched. Otherwise the token is marked used only if it is still unused,
// unrevoked and unexpired, and a consumed token resets the account counter.
// accountID 0 consumes without an account.
func (s *DB) ConsumeToken(ctx context.Context, tokenID, accountID int64, now time.Time) (_ entity.Consumption, err error) {
	ctx, span := s.startSpan(ctx, "ConsumeToken")
	defer func() { s.endSpan(span, err) }()

	tx, err := s.conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return entity.Consumption{}, s.mapError(err)
	}
	defer s.rollback(ctx, tx)

	if accountID != 0 {
		var lockedUntil *time.Time
		err = tx.QueryRow(ctx, lockAccountForConsume, accountID).Scan(&lockedUntil)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return entity.Consumption{}, s.mapError(err)
		}
		if lockedUntil != nil && now.Before(*lockedUntil) {
			return entity.Consumption{LockedUntil: lockedUntil}, nil
		}
	}

	tag, err := tx.Exec(ctx, markTokenUsed, tokenID, now)
	if err != nil {
		return entity.Consumption{}, s.mapError(err)
	}
	if tag.RowsAffected() != 1 {
		return entity.Consumption{}, nil
	}

	if accountID != 0 {
		if _, err = tx.Exec(ctx, resetFailures, accountID, now); err != nil {
			return entity.Consumption{}, s.mapError(err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return entity.Consumption{}, s.mapError(err)
	}
	return entity.Consumption{Consumed: true}, nil
}

// DeleteExpiredTokens removes at most limit tokens that expired before cutoff
// and returns them without their digests.
func (s *DB) DeleteExpiredTokens(ctx context.Context, cutoff time.Time, limit int) (_ []entity.Token, err error) {
	ctx, span := s.startSpan(ctx, "DeleteExpiredTokens")
	defer func() { s.endSpan(span, err) }()

	rows, err := s.conn.Query(ctx, deleteExpiredTokens, cutoff, limit)
	if err != nil {
		return nil, s.mapError(err)
	}
	defer rows.Close()

	out := make([]entity.Token, 0, limit)
	for rows.Next() {
		tok, err := scanToken(rows)
		if err != nil {
			return nil, s.mapError(err)
		}
		out = append(out, *tok)
	}
	if err = rows.Err(); err != nil {
		return nil, s.mapError(err)
	}

	return out, nil
}

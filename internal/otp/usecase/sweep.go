package usecase

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/otpguard/internal/pkg/goerror"
)

type SweepOutput struct {
	TokensRemoved int64
	LocksCleared  int64
	Archived      int64
}

// Sweep deletes tokens expired for longer than the retention grace, in
// batches, then clears elapsed account locks. Running it twice in a row
// removes nothing the second time.
func (s *Usecase) Sweep(ctx context.Context) (*SweepOutput, error) {
	ctx, span := s.startSpan(ctx, "Sweep")
	defer span.End()

	now := s.clock.Now()
	cutoff := now.Add(-s.retentionGrace())
	batch := s.sweepBatchSize()
	out := &SweepOutput{}

	for {
		if err := ctx.Err(); err != nil {
			slog.WarnContext(ctx, "sweep interrupted", "tokens_removed", out.TokensRemoved, "error", err)
			return out, err
		}

		removed, err := s.repoDB.DeleteExpiredTokens(ctx, cutoff, batch)
		if err != nil {
			slog.ErrorContext(ctx, "failed to repo delete expired tokens", "error", err)
			return out, goerror.NewUnavailable(err)
		}
		out.TokensRemoved += int64(len(removed))

		if s.archive != nil && len(removed) > 0 {
			if err := s.archive.Archive(ctx, removed, now); err != nil {
				// rows are already gone, a missing archive chunk is not worth failing for
				slog.ErrorContext(ctx, "failed to archive swept tokens", "count", len(removed), "error", err)
			} else {
				out.Archived += int64(len(removed))
			}
		}

		if len(removed) < batch {
			break
		}
	}

	cleared, err := s.repoDB.ClearExpiredLocks(ctx, now)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo clear expired locks", "error", err)
		return out, goerror.NewUnavailable(err)
	}
	out.LocksCleared = cleared

	slog.InfoContext(ctx, "sweep finished",
		"tokens_removed", out.TokensRemoved,
		"locks_cleared", out.LocksCleared,
		"archived", out.Archived,
	)
	return out, nil
}

package inbound

import (
	"context"
	"log/slog"
	"time"

	"github.com/shandysiswandi/otpguard/internal/otp/usecase"
	"github.com/shandysiswandi/otpguard/internal/pkg/config"
	"github.com/shandysiswandi/otpguard/internal/pkg/goerror"
	"github.com/shandysiswandi/otpguard/internal/pkg/goroutine"
	"go.uber.org/atomic"
)

type sweeper interface {
	Sweep(ctx context.Context) (*usecase.SweepOutput, error)
}

// Reaper serializes sweeps from the ticker and the admin endpoint and keeps
// the stats of the last completed run.
type Reaper struct {
	uc      sweeper
	running *atomic.Bool

	lastRunAt   *atomic.Time
	lastRemoved *atomic.Int64
	lastCleared *atomic.Int64
}

func NewReaper(uc sweeper) *Reaper {
	return &Reaper{
		uc:          uc,
		running:     atomic.NewBool(false),
		lastRunAt:   atomic.NewTime(time.Time{}),
		lastRemoved: atomic.NewInt64(0),
		lastCleared: atomic.NewInt64(0),
	}
}

// Run sweeps once. It fails with a conflict while another sweep is running.
func (r *Reaper) Run(ctx context.Context) (*usecase.SweepOutput, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, goerror.NewBusiness("Sweep already running", goerror.CodeConflict)
	}
	defer r.running.Store(false)

	out, err := r.uc.Sweep(ctx)
	if err != nil {
		return nil, err
	}

	r.lastRunAt.Store(time.Now())
	r.lastRemoved.Store(out.TokensRemoved)
	r.lastCleared.Store(out.LocksCleared)
	return out, nil
}

// Last returns when the last sweep finished and what it removed.
func (r *Reaper) Last() (at time.Time, removed, cleared int64) {
	return r.lastRunAt.Load(), r.lastRemoved.Load(), r.lastCleared.Load()
}

// RegisterReaperJob sweeps on modules.otp.reaper.interval_seconds until ctx
// is done. A zero interval or modules.otp.reaper.enabled=false disables the job.
func RegisterReaperJob(ctx context.Context, cfg config.Config, routine *goroutine.Manager, reaper *Reaper) {
	interval := cfg.GetSecond("modules.otp.reaper.interval_seconds")
	if interval <= 0 || (cfg.IsSet("modules.otp.reaper.enabled") && !cfg.GetBool("modules.otp.reaper.enabled")) {
		slog.InfoContext(ctx, "otp reaper job disabled")
		return
	}

	routine.Go(ctx, func(ctx context.Context) error {
		slog.InfoContext(ctx, "Running job for otp reaper", "interval", interval.String())

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if _, err := reaper.Run(ctx); err != nil && ctx.Err() == nil {
					slog.ErrorContext(ctx, "otp reaper run failed", "error", err)
				}
			}
		}
	})
}

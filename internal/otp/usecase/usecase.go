package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shandysiswandi/otpguard/internal/otp/entity"
	"github.com/shandysiswandi/otpguard/internal/pkg/clock"
	"github.com/shandysiswandi/otpguard/internal/pkg/config"
	"github.com/shandysiswandi/otpguard/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpguard/internal/pkg/hash"
	"github.com/shandysiswandi/otpguard/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpguard/internal/pkg/instrument"
	"github.com/shandysiswandi/otpguard/internal/pkg/jwt"
	"github.com/shandysiswandi/otpguard/internal/pkg/otp"
	"github.com/shandysiswandi/otpguard/internal/pkg/uid"
	"github.com/shandysiswandi/otpguard/internal/pkg/validator"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type AccountVerifiedEvent struct {
	AccountID  int64
	Email      string
	VerifiedAt time.Time
}

type AccountLockedEvent struct {
	AccountID      int64
	Email          string
	FailedAttempts int
	LockedUntil    time.Time
	Origin         string
}

type repoMessaging interface {
	PublishAccountVerified(ctx context.Context, msg AccountVerifiedEvent) error
	PublishAccountLocked(ctx context.Context, msg AccountLockedEvent) error
}

type repoDB interface {
	ReplaceToken(ctx context.Context, in entity.NewToken, now time.Time) error
	GetCurrentToken(ctx context.Context, subject string, p entity.Purpose) (*entity.Token, error)
	ConsumeToken(ctx context.Context, tokenID, accountID int64, now time.Time) (entity.Consumption, error)
	DeleteExpiredTokens(ctx context.Context, cutoff time.Time, limit int) ([]entity.Token, error)

	GetAccountByEmail(ctx context.Context, email string) (*entity.Account, error)
	EnsureAccount(ctx context.Context, in entity.NewAccount, now time.Time) (*entity.Account, error)
	UnlockExpired(ctx context.Context, id int64, now time.Time) (bool, error)
	RegisterFailure(ctx context.Context, id int64, now time.Time, threshold int, lockUntil time.Time) (*entity.LockState, bool, error)
	ResetFailures(ctx context.Context, id int64, now time.Time) error
	ResetFailuresIfOpen(ctx context.Context, id int64, now time.Time) (bool, error)
	MarkVerified(ctx context.Context, id int64, now time.Time) (bool, error)
	UpdatePassword(ctx context.Context, id int64, hash string, now time.Time) error
	ClearExpiredLocks(ctx context.Context, now time.Time) (int64, error)
}

// delivery ships a plaintext code to its destination.
type delivery interface {
	Send(ctx context.Context, destination, code string, p entity.Purpose) error
}

// archive keeps a copy of swept tokens outside the database.
type archive interface {
	Archive(ctx context.Context, tokens []entity.Token, sweptAt time.Time) error
}

type Usecase struct {
	repoDB        repoDB
	repoMessaging repoMessaging
	delivery      delivery
	archive       archive
	idemp         idempotency.Tracker
	validator     validator.Validator
	cfg           config.Config
	hmac          hash.Hash
	password      hash.Hash
	code          otp.Generator
	ticket        uid.StringID
	uid           uid.NumberID
	clock         clock.Clocker
	jwt           jwt.JWT
	ins           instrument.Instrumentation
	goroutine     *goroutine.Manager

	verifyResults metric.Int64Counter
	lockouts      metric.Int64Counter
}

type Dependency struct {
	RepoDB        repoDB
	RepoMessaging repoMessaging
	Delivery      delivery
	// Archive is optional; nil disables archiving swept tokens.
	Archive     archive
	Idempotency idempotency.Tracker
	Validator   validator.Validator
	Config      config.Config
	HMAC        hash.Hash
	Password    hash.Hash
	Code        otp.Generator
	Ticket      uid.StringID
	UID         uid.NumberID
	Clock       clock.Clocker
	JWT         jwt.JWT
	Instrument  instrument.Instrumentation
	Goroutine   *goroutine.Manager
}

func New(dep Dependency) *Usecase {
	uc := &Usecase{
		repoDB:        dep.RepoDB,
		repoMessaging: dep.RepoMessaging,
		delivery:      dep.Delivery,
		archive:       dep.Archive,
		idemp:         dep.Idempotency,
		validator:     dep.Validator,
		cfg:           dep.Config,
		hmac:          dep.HMAC,
		password:      dep.Password,
		code:          dep.Code,
		ticket:        dep.Ticket,
		uid:           dep.UID,
		clock:         dep.Clock,
		jwt:           dep.JWT,
		ins:           dep.Instrument,
		goroutine:     dep.Goroutine,
	}

	meter := uc.ins.Meter("otp.usecase")

	var err error
	uc.verifyResults, err = meter.Int64Counter("otp.verify.results",
		metric.WithDescription("Guarded attempts by purpose and result"))
	if err != nil {
		slog.Error("failed to create otp verify counter", "error", err)
	}
	uc.lockouts, err = meter.Int64Counter("otp.lockouts",
		metric.WithDescription("Accounts moved to the locked state"))
	if err != nil {
		slog.Error("failed to create otp lockout counter", "error", err)
	}

	return uc
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("otp.usecase").Start(ctx, name)
}

func (s *Usecase) record(ctx context.Context, p entity.Purpose, r entity.Result) {
	if s.verifyResults == nil {
		return
	}
	s.verifyResults.Add(ctx, 1, metric.WithAttributes(
		attribute.String("purpose", p.String()),
		attribute.String("result", r.String()),
	))
}

// background runs f on the goroutine manager with a context that outlives the
// request. Without a manager f runs inline.
func (s *Usecase) background(ctx context.Context, name string, f func(ctx context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	run := func(ctx context.Context) error {
		if err := f(ctx); err != nil {
			slog.ErrorContext(ctx, "background task failed", "task", name, "error", err)
		}
		return nil
	}

	if s.goroutine == nil {
		_ = run(ctx)
		return
	}
	if !s.goroutine.Go(ctx, run) {
		slog.WarnContext(ctx, "background task dropped", "task", name)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// digestInput binds a secret to its subject and purpose so a digest can never
// be replayed under another purpose or account.
func digestInput(p entity.Purpose, subject, secret string) string {
	return p.String() + ":" + subject + ":" + secret
}

// Tunables are read on every call and follow config reloads.

func (s *Usecase) expiry(p entity.Purpose) time.Duration {
	return CodeExpiry(s.cfg, p)
}

// CodeExpiry is the lifetime of a token issued for p.
func CodeExpiry(cfg config.Config, p entity.Purpose) time.Duration {
	if p == entity.PurposePasswordChange {
		if d := cfg.GetMinute("modules.otp.password_change_minutes"); d > 0 {
			return d
		}
		return 15 * time.Minute
	}
	if d := cfg.GetMinute("modules.otp.expiry_minutes." + p.String()); d > 0 {
		return d
	}
	if d := cfg.GetMinute("modules.otp.expiry_minutes.default"); d > 0 {
		return d
	}
	if p == entity.PurposeLogin {
		return 10 * time.Minute
	}
	return 15 * time.Minute
}

func (s *Usecase) threshold() int {
	if n := s.cfg.GetInt("modules.otp.max_failed_attempts"); n > 0 {
		return n
	}
	return 5
}

func (s *Usecase) lockoutDuration() time.Duration {
	if d := s.cfg.GetMinute("modules.otp.lockout_minutes"); d > 0 {
		return d
	}
	return time.Hour
}

func (s *Usecase) retentionGrace() time.Duration {
	if s.cfg.IsSet("modules.otp.retention_grace_minutes") {
		return max(s.cfg.GetMinute("modules.otp.retention_grace_minutes"), 0)
	}
	return time.Hour
}

func (s *Usecase) resendCooldown() time.Duration {
	if s.cfg.IsSet("modules.otp.resend_cooldown_seconds") {
		return max(s.cfg.GetSecond("modules.otp.resend_cooldown_seconds"), 0)
	}
	return time.Minute
}

func (s *Usecase) sweepBatchSize() int {
	if n := s.cfg.GetInt("modules.otp.reaper.batch_size"); n > 0 {
		return n
	}
	return 1000
}

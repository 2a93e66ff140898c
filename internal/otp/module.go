package otp

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shandysiswandi/otpguard/internal/otp/entity"
	"github.com/shandysiswandi/otpguard/internal/otp/inbound"
	"github.com/shandysiswandi/otpguard/internal/otp/outbound/archive"
	"github.com/shandysiswandi/otpguard/internal/otp/outbound/db"
	"github.com/shandysiswandi/otpguard/internal/otp/outbound/email"
	"github.com/shandysiswandi/otpguard/internal/otp/outbound/mq"
	"github.com/shandysiswandi/otpguard/internal/otp/usecase"
	"github.com/shandysiswandi/otpguard/internal/pkg/clock"
	"github.com/shandysiswandi/otpguard/internal/pkg/config"
	"github.com/shandysiswandi/otpguard/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpguard/internal/pkg/hash"
	"github.com/shandysiswandi/otpguard/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpguard/internal/pkg/instrument"
	"github.com/shandysiswandi/otpguard/internal/pkg/jwt"
	"github.com/shandysiswandi/otpguard/internal/pkg/mail"
	"github.com/shandysiswandi/otpguard/internal/pkg/messaging"
	"github.com/shandysiswandi/otpguard/internal/pkg/otp"
	"github.com/shandysiswandi/otpguard/internal/pkg/router"
	"github.com/shandysiswandi/otpguard/internal/pkg/storage"
	"github.com/shandysiswandi/otpguard/internal/pkg/uid"
	"github.com/shandysiswandi/otpguard/internal/pkg/validator"
)

type Dependency struct {
	Ctx         context.Context            `validate:"required"`
	DBConn      *pgxpool.Pool              `validate:"required"`
	Goroutine   *goroutine.Manager         `validate:"required"`
	Enforcer    router.Enforcer            `validate:"required"`
	Router      *router.Router             `validate:"required"`
	Idempotency idempotency.Tracker        `validate:"required"`
	Messaging   messaging.Messaging        `validate:"required"`
	Mail        mail.Mail                  `validate:"required"`
	Config      config.Config              `validate:"required"`
	Instrument  instrument.Instrumentation `validate:"required"`
	UID         uid.NumberID               `validate:"required"`
	Ticket      uid.StringID               `validate:"required"`
	HMAC        hash.Hash                  `validate:"required"`
	Password    hash.Hash                  `validate:"required"`
	Code        otp.Generator              `validate:"required"`
	Clock       clock.Clocker              `validate:"required"`
	Validator   validator.Validator        `validate:"required"`
	JWT         jwt.JWT                    `validate:"required"`
	// Storage is optional; without it swept tokens are not archived.
	Storage storage.Storage
}

func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	dbOTP := db.NewDB(dep.DBConn, dep.Instrument)
	repoMsg := mq.NewMessaging(dep.Messaging, dep.Instrument)
	mailer := email.New(dep.Mail, dep.Instrument, func(p entity.Purpose) time.Duration {
		return usecase.CodeExpiry(dep.Config, p)
	})

	ucDep := usecase.Dependency{
		RepoDB:        dbOTP,
		RepoMessaging: repoMsg,
		Delivery:      mailer,
		Idempotency:   dep.Idempotency,
		Validator:     dep.Validator,
		Config:        dep.Config,
		HMAC:          dep.HMAC,
		Password:      dep.Password,
		Code:          dep.Code,
		Ticket:        dep.Ticket,
		UID:           dep.UID,
		Clock:         dep.Clock,
		JWT:           dep.JWT,
		Instrument:    dep.Instrument,
		Goroutine:     dep.Goroutine,
	}
	if dep.Storage != nil && dep.Config.GetBool("modules.otp.archive.enabled") {
		ucDep.Archive = archive.New(dep.Storage, dep.Instrument,
			dep.Config.GetString("modules.otp.archive.bucket"),
			dep.Config.GetString("modules.otp.archive.prefix"),
		)
	}

	uc := usecase.New(ucDep)
	reaper := inbound.NewReaper(uc)

	inbound.RegisterHTTPEndpoint(dep.Router, uc, reaper, dep.Enforcer)
	inbound.RegisterReaperJob(dep.Ctx, dep.Config, dep.Goroutine, reaper)

	return nil
}

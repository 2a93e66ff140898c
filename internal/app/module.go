package app

import (
	"log/slog"
	"os"

	"github.com/shandysiswandi/otpguard/internal/notification"
	"github.com/shandysiswandi/otpguard/internal/otp"
)

func (a *App) initModules() {
	if a.config.GetBool("modules.otp.enabled") {
		if err := otp.New(otp.Dependency{
			Ctx:         a.ctx,
			DBConn:      a.dbConn,
			Goroutine:   a.goroutine,
			Enforcer:    a.casbin,
			Router:      a.router,
			Idempotency: a.idemp,
			Messaging:   a.messaging,
			Mail:        a.mail,
			Config:      a.config,
			Instrument:  a.ins,
			UID:         a.uid,
			Ticket:      a.ticket,
			HMAC:        a.hmac,
			Password:    a.password,
			Code:        a.code,
			Clock:       a.clock,
			Validator:   a.validator,
			JWT:         a.jwt,
			Storage:     a.storage,
		}); err != nil {
			slog.Error("failed to init module otp", "error", err)
			os.Exit(1)
		}
	}

	if a.config.GetBool("modules.notification.enabled") {
		if err := notification.New(notification.Dependency{
			Ctx:        a.ctx,
			Messaging:  a.messaging,
			Config:     a.config,
			Instrument: a.ins,
			UUID:       a.uuid,
			Clock:      a.clock,
			Goroutine:  a.goroutine,
			Validator:  a.validator,
			Mail:       a.mail,
		}); err != nil {
			slog.Error("failed to init module notification", "error", err)
			os.Exit(1)
		}
	}
}

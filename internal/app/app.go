package app

import (
	"context"
	"net/http"

	"github.com/casbin/casbin/v3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
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

// closer releases one resource during Stop.
type closer struct {
	name string
	fn   func(context.Context) error
}

// App owns every long-lived resource of the otpguard process.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	config config.Config
	ins    instrument.Instrumentation

	// shared helpers handed to modules
	goroutine *goroutine.Manager
	validator validator.Validator
	clock     clock.Clocker
	hmac      hash.Hash // code and ticket digests
	password  hash.Hash
	uid       uid.NumberID
	uuid      uid.StringID
	ticket    uid.StringID
	code      otp.Generator
	jwt       jwt.JWT

	// external systems
	dbConn    *pgxpool.Pool
	cacheConn *redis.Client
	idemp     idempotency.Tracker
	mail      mail.Mail
	messaging messaging.Messaging
	storage   storage.Storage // nil when archiving is off
	casbin    *casbin.Enforcer

	router     *router.Router
	httpServer *http.Server

	closers []closer
}

// New builds the App. Any failing step logs and exits the process, so a
// returned App is fully wired.
func New() *App {
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{ctx: ctx, cancel: cancel}

	steps := []func(){
		a.initConfig,
		a.initInstrument,
		a.initLibraries,
		a.initJWT,
		a.initDatabase,
		a.initCache,
		a.initMail,
		a.initStorage,
		a.initMessaging,
		a.initCasbin,
		a.initHTTPServer,
		a.initModules,
		a.initClosers,
	}
	for _, step := range steps {
		step()
	}

	return a
}

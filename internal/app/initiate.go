package app

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/casbin/casbin/v3"
	"github.com/casbin/casbin/v3/model"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/segmentio/kafka-go"
	"github.com/shandysiswandi/otpguard/database"
	"github.com/shandysiswandi/otpguard/internal/pkg/clock"
	"github.com/shandysiswandi/otpguard/internal/pkg/config"
	"github.com/shandysiswandi/otpguard/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpguard/internal/pkg/hash"
	"github.com/shandysiswandi/otpguard/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpguard/internal/pkg/instrument"
	"github.com/shandysiswandi/otpguard/internal/pkg/jwt"
	"github.com/shandysiswandi/otpguard/internal/pkg/mail"
	"github.com/shandysiswandi/otpguard/internal/pkg/messaging"
	"github.com/shandysiswandi/otpguard/internal/pkg/migration"
	"github.com/shandysiswandi/otpguard/internal/pkg/otp"
	"github.com/shandysiswandi/otpguard/internal/pkg/router"
	"github.com/shandysiswandi/otpguard/internal/pkg/storage"
	"github.com/shandysiswandi/otpguard/internal/pkg/uid"
	"github.com/shandysiswandi/otpguard/internal/pkg/validator"
	"google.golang.org/api/option"
)

// ticketBytes is the entropy of a password change ticket, hex encoded to 64 chars.
const ticketBytes = 32

func (a *App) initConfig() {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "/config/config.yaml"
		if os.Getenv("LOCAL") == "true" {
			path = "./config/config.yaml"
		}
	}

	cfg, err := config.NewViper(path)
	if err != nil {
		slog.Error("failed to init config", "error", err)
		os.Exit(1)
	}

	//nolint:errcheck,gosec // ignore error
	os.Setenv("TZ", cfg.GetString("app.tz"))

	a.config = cfg
}

func (a *App) initInstrument() {
	ins, err := instrument.New(context.Background(), &instrument.Config{
		Enabled:          a.config.GetBool("instrument.enabled"),
		ServiceName:      a.config.GetString("instrument.service_name"),
		ServiceVersion:   a.config.GetString("instrument.service_version"),
		Environment:      a.config.GetString("instrument.env"),
		OTLPEndpoint:     a.config.GetString("instrument.otlp_endpoint"),
		OTLPSecure:       a.config.GetBool("instrument.otlp_secure"),
		TraceSampleRatio: a.config.GetFloat64("instrument.trace_sample_ratio"),
		MetricsInterval:  a.config.GetSecond("instrument.metric_interval_seconds"),
		MaskFields:       a.config.GetArray("instrument.log_mask_fields"),
	})
	if err != nil {
		slog.Error("failed to init instrumentation", "error", err)
		os.Exit(1)
	}
	a.ins = ins
}

func (a *App) initLibraries() {
	a.clock = clock.New()
	a.uuid = uid.NewUUID()
	a.ticket = uid.NewSecureToken(ticketBytes)
	a.code = otp.NewNumeric(a.config.GetInt("modules.otp.code_length"))
	a.goroutine = goroutine.NewManager(a.config.GetInt("app.server.max_goroutine"))

	hmac, err := hash.NewHMACSHA256(a.config.GetString("hash.hmac.secret"))
	if err != nil {
		slog.Error("failed to init hmac", "error", err)
		os.Exit(1)
	}
	a.hmac = hmac

	password, err := hash.NewPassword(hash.PasswordOptions{
		Algorithm:  a.config.GetString("hash.password.algorithm"),
		BcryptCost: a.config.GetInt("hash.password.bcrypt_cost"),
		Pepper:     a.config.GetString("hash.password.pepper"),
	})
	if err != nil {
		slog.Error("failed to init password hasher", "error", err)
		os.Exit(1)
	}
	a.password = password

	validator, err := validator.NewV10Validator()
	if err != nil {
		slog.Error("failed to init validation v10 validator", "error", err)
		os.Exit(1)
	}
	a.validator = validator

	snow, err := uid.NewSnowflake()
	if err != nil {
		slog.Error("failed to init uid number snowflake", "error", err)
		os.Exit(1)
	}
	a.uid = snow
}

func (a *App) initJWT() {
	defaultJWT, err := jwt.NewHS512(jwt.Config{
		Secret:    []byte(a.config.GetString("jwt.secret")),
		Issuer:    a.config.GetString("jwt.issuer"),
		Audiences: a.config.GetArray("jwt.audiences"),
		TTL:       a.config.GetMinute("jwt.ttl_minutes"),
		Clock:     a.clock,
		UUID:      a.uuid,
	})
	if err != nil {
		slog.Error("failed to init jwt token", "error", err)
		os.Exit(1)
	}
	a.jwt = defaultJWT
}

func (a *App) initDatabase() {
	config, err := pgxpool.ParseConfig(a.config.GetString("database.url"))
	if err != nil {
		slog.Error("failed to parse DB connection string.", "error", err)
		os.Exit(1)
	}

	limits := a.section("database.pool")
	config.MaxConns = a.config.GetInt32("database.pool.max_conns")
	config.MinConns = a.config.GetInt32("database.pool.min_conns")
	config.MaxConnLifetime = limits.seconds("max_conn_lifetime_seconds")
	config.MaxConnIdleTime = limits.seconds("max_conn_idle_seconds")
	config.HealthCheckPeriod = limits.seconds("health_check_period_seconds")

	pool, err := pgxpool.NewWithConfig(a.ctx, config)
	if err != nil {
		slog.Error("failed to create DB connection pool", "error", err)
		os.Exit(1)
	}

	pingCtx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		slog.Error("failed to ping DB", "error", err)
		os.Exit(1)
	}

	if a.config.GetBool("database.migrate") {
		if err := migration.Up(a.ctx, pool, database.Migrations, database.MigrationsDir); err != nil {
			slog.Error("failed to migrate DB", "error", err)
			os.Exit(1)
		}
	}

	a.dbConn = pool
}

func (a *App) initCache() {
	opt, err := redis.ParseURL(a.config.GetString("redis.url"))
	if err != nil {
		slog.Error("failed to parse redis url", "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		slog.Error("failed to init redis", "error", err)
		os.Exit(1)
	}

	a.cacheConn = rdb
	a.idemp = idempotency.New(a.cacheConn)
}

func (a *App) initMail() {
	mail, err := mail.NewSMTP(mail.SMTPConfig{
		Host:          a.config.GetString("mail.host"),
		Port:          a.config.GetInt("mail.port"),
		Username:      a.config.GetString("mail.username"),
		Password:      a.config.GetString("mail.password"),
		From:          a.config.GetString("mail.from"),
		SkipTLSVerify: a.config.GetBool("mail.skip_tls_verify"),
	})
	if err != nil {
		slog.Error("failed to init mail", "error", err)
		os.Exit(1)
	}

	a.mail = mail
}

// section reads keys under one config prefix, trimming string values.
type section struct {
	cfg    config.Config
	prefix string
}

func (a *App) section(prefix string) section {
	return section{cfg: a.config, prefix: prefix + "."}
}

func (s section) str(key string) string            { return strings.TrimSpace(s.cfg.GetString(s.prefix + key)) }
func (s section) flag(key string) bool             { return s.cfg.GetBool(s.prefix + key) }
func (s section) list(key string) []string         { return s.cfg.GetArray(s.prefix + key) }
func (s section) seconds(key string) time.Duration { return s.cfg.GetSecond(s.prefix + key) }

// initStorage is skipped when no driver is configured; swept tokens are
// then deleted without an archive copy.
func (a *App) initStorage() {
	driver := a.section("storage").str("driver")
	if driver == "" {
		slog.Info("storage driver not configured, archive disabled")
		return
	}

	s3, gcs, minio := a.section("storage.s3"), a.section("storage.gcs"), a.section("storage.minio")
	stg, err := storage.NewFromDriver(a.ctx, driver, storage.FactoryOptions{
		S3: storage.S3Options{
			Region:       s3.str("region"),
			Endpoint:     s3.str("endpoint"),
			AccessKey:    s3.str("access_key"),
			SecretKey:    s3.str("secret_key"),
			SessionToken: s3.str("session_token"),
			UsePathStyle: s3.flag("use_path_style"),
		},
		GCS: storage.GCSOptions{
			CredentialsJSON: a.config.GetBinary("storage.gcs.credentials_json"),
			Endpoint:        gcs.str("endpoint"),
			UserAgent:       gcs.str("user_agent"),
			WithoutAuth:     gcs.flag("without_auth"),
		},
		MinIO: storage.MinIOOptions{
			Region:       minio.str("region"),
			Endpoint:     minio.str("endpoint"),
			AccessKey:    minio.str("access_key"),
			SecretKey:    minio.str("secret_key"),
			SessionToken: minio.str("session_token"),
			UseSSL:       minio.flag("use_ssl"),
		},
	})
	if err != nil {
		slog.Error("failed to init storage", "driver", driver, "error", err)
		os.Exit(1)
	}

	a.storage = stg
}

func (a *App) initMessaging() {
	driver := a.section("messaging").str("driver")
	nsqCfg, kafkaCfg, natsCfg, psCfg := a.section("messaging.nsq"), a.section("messaging.kafka"), a.section("messaging.nats"), a.section("messaging.pubsub")

	var psOpts []option.ClientOption
	if ep := psCfg.str("endpoint"); ep != "" {
		// emulator
		psOpts = append(psOpts, option.WithEndpoint(ep), option.WithoutAuthentication())
	}

	client, err := messaging.NewFromDriver(a.ctx, driver, messaging.FactoryOptions{
		NSQ: messaging.NSQConfig{
			ProducerAddr: nsqCfg.str("producer_addr"),
			NSQDAddrs:    nsqCfg.list("nsqd_addrs"),
			LookupdAddrs: nsqCfg.list("lookupd_addrs"),
			MaxAttempts:  a.config.GetUint16("messaging.nsq.max_attempts"),
			RequeueDelay: nsqCfg.seconds("requeue_delay_seconds"),
		},
		Kafka: messaging.KafkaConfig{
			Brokers: kafkaCfg.list("brokers"),
			Dialer: &kafka.Dialer{
				ClientID:  kafkaCfg.str("client_id"),
				Timeout:   kafkaCfg.seconds("dial_timeout_seconds"),
				DualStack: true,
			},
		},
		NATS: messaging.NATSConfig{
			URL: natsCfg.str("url"),
			Options: []nats.Option{
				nats.Name(natsCfg.str("name")),
				nats.MaxReconnects(a.config.GetInt("messaging.nats.max_reconnects")),
				nats.Timeout(natsCfg.seconds("timeout_seconds")),
				nats.ReconnectWait(natsCfg.seconds("reconnect_wait_seconds")),
				nats.RetryOnFailedConnect(natsCfg.flag("retry_on_failed_connect")),
			},
		},
		PubSub: messaging.PubSubConfig{
			ProjectID:     psCfg.str("project_id"),
			ClientOptions: psOpts,
		},
	})
	if err != nil {
		slog.Error("failed to init messaging", "driver", driver, "error", err)
		os.Exit(1)
	}

	a.messaging = client
}

// rbacModel grants a subject (an email or a role) access to admin route
// patterns. Objects support keyMatch2 wildcards, e.g. /api/v1/otp/admin/*.
const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch2(r.obj, p.obj) && (p.act == "*" || r.act == p.act)
`

// initCasbin loads policies from authorization.policies ("sub;obj;act")
// and role grants from authorization.roles ("email;role").
func (a *App) initCasbin() {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		slog.Error("failed to create model casbin", "error", err)
		os.Exit(1)
	}

	e, err := casbin.NewEnforcer(m)
	if err != nil {
		slog.Error("failed to init casbin", "error", err)
		os.Exit(1)
	}

	var policies, grants [][]string
	for _, p := range a.config.GetArray("authorization.policies") {
		if rule := splitRule(p, 3); rule != nil {
			policies = append(policies, rule)
		}
	}
	for _, g := range a.config.GetArray("authorization.roles") {
		if rule := splitRule(g, 2); rule != nil {
			grants = append(grants, rule)
		}
	}

	if len(policies) > 0 {
		if _, err := e.AddPolicies(policies); err != nil {
			slog.Error("failed to load casbin policies", "error", err)
			os.Exit(1)
		}
	}
	if len(grants) > 0 {
		if _, err := e.AddGroupingPolicies(grants); err != nil {
			slog.Error("failed to load casbin roles", "error", err)
			os.Exit(1)
		}
	}

	a.casbin = e
}

func splitRule(raw string, n int) []string {
	parts := strings.Split(raw, ";")
	if len(parts) != n {
		slog.Warn("skip malformed authorization rule", "rule", raw)
		return nil
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func (a *App) initHTTPServer() {
	a.router = router.NewRouter(router.Config{
		Config:     a.config,
		UUID:       a.uuid,
		JWT:        a.jwt,
		Instrument: a.ins,
	})
	a.registerHealth()

	routerWithCORS := cors.New(cors.Options{
		AllowedOrigins: a.config.GetArray("app.server.cors"),
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(a.router)

	a.httpServer = &http.Server{
		Addr:              a.config.GetString("app.server.http.address"),
		Handler:           routerWithCORS,
		ReadTimeout:       a.config.GetSecond("app.server.http.read_timeout_seconds"),
		ReadHeaderTimeout: a.config.GetSecond("app.server.http.read_header_timeout_seconds"),
		WriteTimeout:      a.config.GetSecond("app.server.http.write_timeout_seconds"),
		IdleTimeout:       a.config.GetSecond("app.server.http.idle_timeout_seconds"),
	}
}

// initClosers orders shutdown: telemetry flushes first, then the producers
// and stores the modules used, config watcher last.
func (a *App) initClosers() {
	a.closers = []closer{
		{name: "instrument", fn: a.ins.Shutdown},
		{name: "messaging", fn: func(context.Context) error { return a.messaging.Close() }},
		{name: "mail", fn: func(context.Context) error { return a.mail.Close() }},
		{name: "redis", fn: func(context.Context) error { return a.cacheConn.Close() }},
		{name: "postgres", fn: func(context.Context) error {
			a.dbConn.Close()
			return nil
		}},
		{name: "storage", fn: func(context.Context) error {
			if a.storage == nil {
				return nil
			}
			return a.storage.Close()
		}},
		{name: "config", fn: func(context.Context) error { return a.config.Close() }},
	}
}

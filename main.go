package main

import (
	"context"
	"os"
	"time"

	"github.com/shandysiswandi/otpguard/internal/app"
)

// @title           otpguard API
// @version         1.0
// @description     otpguard issues and verifies one-time email codes with per-account brute-force lockout.
// @termsOfService  https://otpguard.dev/terms
// @contact.name    Contact Support
// @contact.url     https://otpguard.dev/contact
// @contact.email   support@otpguard.dev
// @license.name    MIT
// @license.url     https://mit-license.org/
// @server          http://localhost:8080
// @server          https://localhost:8080
// @securityDefinitions.apikey  BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT.
func main() {
	svc := app.New()
	<-svc.Start()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace())
	defer cancel()

	svc.Stop(ctx)
}

// shutdownGrace bounds Stop; in-flight deliveries and a running sweep get this
// long to finish. SHUTDOWN_GRACE accepts a time.Duration string.
func shutdownGrace() time.Duration {
	if d, err := time.ParseDuration(os.Getenv("SHUTDOWN_GRACE")); err == nil && d > 0 {
		return d
	}
	return 15 * time.Second
}

package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/shandysiswandi/otpguard/internal/pkg/goerror"
	"github.com/shandysiswandi/otpguard/internal/pkg/router"
)

type healthResponse struct {
	Database string `json:"database"`
	Redis    string `json:"redis"`
}

func (a *App) registerHealth() {
	a.router.Public(http.MethodGet, "/health")
	a.router.GET("/health", a.health)
}

// health pings postgres and redis. Either one down answers 503.
func (a *App) health(r *router.Request) (any, error) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.dbConn.Ping(ctx); err != nil {
		slog.ErrorContext(ctx, "health: database ping failed", "error", err)
		return nil, goerror.NewUnavailable(err)
	}
	if err := a.cacheConn.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "health: redis ping failed", "error", err)
		return nil, goerror.NewUnavailable(err)
	}

	return healthResponse{Database: "ok", Redis: "ok"}, nil
}

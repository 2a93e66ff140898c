package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

// Start serves HTTP in the background. The returned channel closes once a
// termination signal arrives; the app context is cancelled at that point so
// consumers and the reaper begin to drain.
func (a *App) Start() <-chan struct{} {
	done := make(chan struct{})

	go func() {
		slog.Info("http server listening", "address", a.httpServer.Addr)
		err := a.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server stopped unexpectedly", "error", err)
			os.Exit(1)
		}
	}()

	go func() {
		sigCtx, stop := signal.NotifyContext(a.ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
		defer stop()

		<-sigCtx.Done()
		a.cancel()

		slog.Info("termination requested, shutting down")
		close(done)
	}()

	return done
}

// Stop drains the HTTP server, then the background goroutines, then closes
// resources in order. Goroutines still running when ctx expires are abandoned.
func (a *App) Stop(ctx context.Context) {
	a.cancel()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "http server shutdown", "error", err)
	}

	drained := make(chan error, 1)
	go func() { drained <- a.goroutine.Wait() }()

	select {
	case err := <-drained:
		if err != nil {
			slog.ErrorContext(ctx, "background goroutines returned errors", "error", err)
		}
	case <-ctx.Done():
		slog.WarnContext(ctx, "shutdown deadline reached before background goroutines finished")
	}

	for _, c := range a.closers {
		if err := c.fn(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to close resource", "name", c.name, "error", err)
		}
	}
	slog.InfoContext(ctx, "application stopped")
}

// Package migration applies embedded goose migrations to a pgx pool.
package migration

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// goose keeps its dialect, base FS and logger in package globals.
var mu sync.Mutex

// Up opens a database/sql handle over pool and migrates to the latest version
// found in dir of fsys.
func Up(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS, dir string) error {
	mu.Lock()
	defer mu.Unlock()

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(slogLogger{})

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("migration: set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("migration: up: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("migration: read version: %w", err)
	}
	slog.InfoContext(ctx, "database migrated", "version", version)

	return nil
}

type slogLogger struct{}

func (slogLogger) Printf(format string, v ...any) {
	slog.Info("goose: " + fmt.Sprintf(format, v...))
}

func (slogLogger) Fatalf(format string, v ...any) {
	// goose only calls Fatalf from its CLI helpers, never from UpContext.
	slog.Error("goose: " + fmt.Sprintf(format, v...))
}

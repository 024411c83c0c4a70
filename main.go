// Command userstore serves CRUD over user_table.
//
// Configuration comes from the environment (optionally seeded from .env):
// DB_DRIVER, DATABASE_URL or DB_HOST/DB_PORT/DB_USER/DB_PASSWORD/DB_NAME,
// HTTP_ADDR, LOG_LEVEL, MIGRATE_ON_START. See config.Load for the rest.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Skryldev/userstore/config"
	"github.com/Skryldev/userstore/db"
	"github.com/Skryldev/userstore/handlers"
	"github.com/Skryldev/userstore/migrations"
	"github.com/Skryldev/userstore/repo"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fatalf("load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Level(),
	}))
	slog.SetDefault(logger)

	if cfg.Database.MigrateOnStart {
		dsn, err := cfg.Database.DSN()
		if err != nil {
			fatalf("migrate: %v", err)
		}
		if err := migrations.Up(cfg.Database.Dialect(), dsn, logger); err != nil {
			fatalf("migrate: %v", err)
		}
		slog.Info("migrations applied")
	}

	// The pool is created once here, shared by every request, and closed
	// only after the HTTP server has drained.
	stats := &db.QueryStats{}
	database, err := cfg.Database.Open(
		db.NewLogHook(db.LogHookConfig{
			Logger:             logger,
			SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
			LogArgs:            cfg.Database.LogArgs,
		}),
		db.NewMetricsHook(stats),
	)
	if err != nil {
		fatalf("open database: %v", err)
	}
	defer database.Close()

	slog.Info("database connected", "driver", database.Driver().Name())

	users := repo.NewUserRepo(database)
	e := handlers.NewRouter(users, database, stats, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server stopped", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown", "err", err)
	}
}

func fatalf(format string, args ...any) {
	slog.Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}

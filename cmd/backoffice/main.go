// Package main is the entry point for the escrowgate back-office admin server.
// Runs on port 8081 and exposes read-only escrow, payment and AML views to
// staff roles.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tradeloop/escrowgate/internal/audit"
	"github.com/tradeloop/escrowgate/internal/backoffice"
	"github.com/tradeloop/escrowgate/internal/config"
	"github.com/tradeloop/escrowgate/internal/repository"
	"github.com/tradeloop/escrowgate/internal/service"
)

func main() {
	// ── Logger ────────────────────────────────────────────────────────────────
	cfg := config.MustLoad()

	var logHandler slog.Handler
	if cfg.IsProd() {
		logHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	logger.Info("starting escrowgate backoffice server",
		"env", cfg.Server.Env, "port", cfg.Server.BackofficePort)

	// The back office reads what the API server wrote, so it needs the
	// shared database.
	if cfg.UsesMemoryStore() {
		logger.Error("backoffice requires STORAGE_DRIVER=postgres")
		os.Exit(1)
	}

	// ── Database ──────────────────────────────────────────────────────────────
	db, err := repository.OpenPostgres(context.Background(), cfg.DB)
	if err != nil {
		logger.Error("database connection failed", "err", err)
		os.Exit(1)
	}
	logger.Info("database connected")

	// ── Services ──────────────────────────────────────────────────────────────
	store := repository.NewSQLStore(db)
	authSvc := service.NewAuthService(cfg)
	amlSvc := service.NewAMLService(store, cfg.AML.Thresholds, logger)
	ledgerSvc := service.NewLedgerService(store, cfg.Settlement, audit.NewLogPublisher(logger), logger)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Router ────────────────────────────────────────────────────────────────
	router := backoffice.SetupBackofficeRouter(backoffice.BackofficeDeps{
		AuthSvc:   authSvc,
		LedgerSvc: ledgerSvc,
		AMLSvc:    amlSvc,
		Cfg:       cfg,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.BackofficePort,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// ── Start ─────────────────────────────────────────────────────────────────
	go func() {
		logger.Info("backoffice http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("backoffice server error", "err", err)
			stop()
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err = srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("backoffice shutdown error", "err", err)
	}

	db.Close()
	logger.Info("backoffice server stopped cleanly")
}

// Package main is the entry point for the escrow and compliance gate API
// server. It wires storage, the AML evaluator, the ledger and the settlement
// orchestrator and serves them over HTTP.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/tradeloop/escrowgate/internal/api"
	"github.com/tradeloop/escrowgate/internal/audit"
	"github.com/tradeloop/escrowgate/internal/config"
	"github.com/tradeloop/escrowgate/internal/repository"
	"github.com/tradeloop/escrowgate/internal/service"
)

func main() {
	// ── 1. Logger ─────────────────────────────────────────────────────────────
	cfg := config.MustLoad()

	var logHandler slog.Handler
	if cfg.IsProd() {
		logHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	logger.Info("starting escrowgate server",
		"env", cfg.Server.Env, "port", cfg.Server.Port, "storage", cfg.Storage.Driver)

	// ── 2. Storage ────────────────────────────────────────────────────────────
	var (
		store repository.Store
		db    *sqlx.DB
	)
	if cfg.UsesMemoryStore() {
		store = repository.NewMemoryStore()
		logger.Warn("using in-memory store; data is lost on restart")
	} else {
		var err error
		db, err = repository.OpenPostgres(context.Background(), cfg.DB)
		if err != nil {
			logger.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		logger.Info("database connected")

		// ── 3. Migrations ─────────────────────────────────────────────────────
		if err = repository.Migrate(context.Background(), db, cfg.Storage.MigrationsDir); err != nil {
			logger.Error("migrations failed", "err", err)
			os.Exit(1)
		}

		store = repository.NewSQLStore(db)
	}

	// ── 4. Audit publisher ────────────────────────────────────────────────────
	publisher := audit.New(cfg.Kafka, logger)

	// ── 5. Services ───────────────────────────────────────────────────────────
	authSvc := service.NewAuthService(cfg)
	amlSvc := service.NewAMLService(store, cfg.AML.Thresholds, logger)
	ledgerSvc := service.NewLedgerService(store, cfg.Settlement, publisher, logger)
	settlementSvc := service.NewSettlementService(store, ledgerSvc, amlSvc, publisher, cfg.Settlement, logger)

	// ── 6. Root context + signal handling ─────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 7. HTTP Router ────────────────────────────────────────────────────────
	router := api.SetupRouter(api.RouterDeps{
		AuthSvc:       authSvc,
		LedgerSvc:     ledgerSvc,
		SettlementSvc: settlementSvc,
		AMLSvc:        amlSvc,
		Cfg:           cfg,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// ── 8. Start server ───────────────────────────────────────────────────────
	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
			stop() // trigger graceful shutdown
		}
	}()

	// ── 9. Graceful shutdown ──────────────────────────────────────────────────
	<-ctx.Done()
	logger.Info("shutdown signal received, draining connections…")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "err", err)
	}
	if err := publisher.Close(); err != nil {
		logger.Error("audit publisher close error", "err", err)
	}
	if db != nil {
		db.Close()
	}
	logger.Info("server stopped cleanly")
}

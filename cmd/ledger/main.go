package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"libraledger/internal/config"
	"libraledger/internal/httpx"
	"libraledger/internal/inventory"
	"libraledger/internal/ledger"
	"libraledger/internal/lending"
	"libraledger/internal/query"
	"libraledger/pkg/clock"
	"libraledger/pkg/logger"
	"libraledger/pkg/tracing"
)

func main() {
	cfg := config.Load()

	log, err := logger.New("libraledger", cfg.LogLevel)
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()

	shutdownTracing, err := tracing.Init(ctx, "libraledger", cfg.OTLPEndpoint)
	if err != nil {
		log.Fatal("failed to init tracing", zap.Error(err))
	}
	defer shutdownTracing(ctx)

	clk := clock.System{}

	var (
		invStore    inventory.Store
		ledgerStore ledger.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		inv := inventory.NewPostgresStore(db, clk)
		led := ledger.NewPostgresStore(db)
		if err := inv.Migrate(ctx); err != nil {
			log.Fatal("migration failed", zap.Error(err))
		}
		if err := led.Migrate(ctx); err != nil {
			log.Fatal("migration failed", zap.Error(err))
		}
		invStore, ledgerStore = inv, led
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		invStore, ledgerStore = inventory.NewMemoryStore(clk), ledger.NewMemoryStore()
	}

	policy := lending.NewPolicy(cfg.LoanPeriodDays)
	lendingSvc := lending.NewService(invStore, ledgerStore, policy, clk, lending.Config{
		LockWaitTimeout: cfg.LockWaitTimeout,
		RetryAttempts:   cfg.RetryAttempts,
		RetryBaseDelay:  cfg.RetryBaseDelay,
	}, log)
	queries := query.NewEngine(ledgerStore, invStore, policy.LoanPeriodDays)

	lendingHandler := lending.NewHandler(lendingSvc, queries, log)
	bookHandler := inventory.NewHandler(invStore, lendingSvc, cfg.AdminMutationsPerMinute, log)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(httpx.Identity)
	router.Route("/api/borrow", lendingHandler.Routes)
	router.Route("/api/books", bookHandler.Routes)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Info("lending ledger listening", zap.String("addr", cfg.ListenAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}

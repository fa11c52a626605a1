/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the compensation engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load TOML configuration over defaults
  3. Initialize SQLite store
  4. Wire ledger, directory, calculators, runners, settlement
  5. Configure HTTP router, start scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port       HTTP server port (default: 8080)
  -db         SQLite database path (default: comp.db)
              Use ":memory:" for an in-memory database
  -config     TOML config path (optional, defaults apply when empty)
  -scheduler  Enable the automatic daily settlement scheduler

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler and notification dispatcher
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration schema and defaults
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/vertex/comp-engine/api"
	"github.com/vertex/comp-engine/config"
	"github.com/vertex/comp-engine/engine"
	"github.com/vertex/comp-engine/ledger"
	"github.com/vertex/comp-engine/network"
	"github.com/vertex/comp-engine/store/sqlite"
	"github.com/vertex/comp-engine/wallet"
)

func main() {
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "comp.db", "SQLite database path")
	cfgPath := flag.String("config", "", "TOML config path (defaults apply when empty)")
	withScheduler := flag.Bool("scheduler", true, "enable the automatic daily settlement scheduler")
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal("config load failed", zap.Error(err))
	}

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatal("database init failed", zap.Error(err))
	}
	defer store.Close()

	// Domain wiring
	led := ledger.New(store)
	dir := network.NewDirectory(cfg.PackageParams(), cfg.SponsorMatrix(), cfg.Ladder(), store)
	calc := cfg.Calculator(dir, led)

	dispatcher := engine.NewDispatcher(&engine.LogBackend{Log: log},
		cfg.Engine.NotificationQueue, log)
	defer dispatcher.Close()

	daily := &engine.DailyRunner{
		Runs:      store,
		Bonuses:   store,
		Calc:      calc,
		Directory: dir,
		Notifier:  dispatcher,
		ChunkSize: cfg.Engine.ChunkSize,
		Log:       log,
	}
	monthly := &engine.MonthlyRunner{
		Runs:      store,
		Bonuses:   store,
		Calc:      calc,
		Directory: dir,
		ChunkSize: cfg.Engine.ChunkSize,
		Log:       log,
	}
	settlement := wallet.NewSettlementService(store, log)

	handler := &api.Handler{
		Ledger:     led,
		Directory:  dir,
		Bonuses:    store,
		Wallets:    store,
		Settlement: settlement,
		Daily:      daily,
		Monthly:    monthly,
		Calc:       calc,
		Notifier:   dispatcher,
		Log:        log,
	}

	scheduler := api.NewSettlementScheduler(daily, log)
	scheduler.Enabled = *withScheduler
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server starting", zap.Int("port", *port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("forced shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

// Package main is the entry point for the Helm portfolio automation and
// risk engine. It wires the databases, external clients and modules, then
// runs the HTTP API and the background scheduler until shutdown.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/helmfi/helm/internal/clients/ledger"
	"github.com/helmfi/helm/internal/clients/prices"
	"github.com/helmfi/helm/internal/clients/protocols"
	"github.com/helmfi/helm/internal/config"
	"github.com/helmfi/helm/internal/database"
	"github.com/helmfi/helm/internal/modules/automation"
	"github.com/helmfi/helm/internal/modules/calculations"
	"github.com/helmfi/helm/internal/modules/market"
	"github.com/helmfi/helm/internal/modules/performance"
	"github.com/helmfi/helm/internal/modules/rebalancing"
	"github.com/helmfi/helm/internal/modules/risk"
	"github.com/helmfi/helm/internal/modules/stress"
	"github.com/helmfi/helm/internal/reliability"
	"github.com/helmfi/helm/internal/scheduler"
	"github.com/helmfi/helm/internal/server"
	"github.com/helmfi/helm/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})

	log.Info().Msg("Starting Helm")

	// Databases. Engine state is durable; the calculations cache is
	// ephemeral and rebuilt on demand.
	engineDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "engine.db"),
		Profile: database.ProfileStore,
		Name:    "engine",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open engine database")
	}
	defer engineDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	// Market data: static reference stats, daily close history and the
	// live price cache.
	historyDB, err := market.NewHistoryDB(filepath.Join(cfg.DataDir, "history.db"), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open market history database")
	}
	defer historyDB.Close()

	priceCache := market.NewPriceCache()
	marketSvc := market.NewService(priceCache, historyDB, log)

	// External collaborators.
	ledgerClient := ledger.NewClient(cfg.LedgerURL, log)
	protocolDirectory := protocols.NewClient(cfg.ProtocolDirectoryURL, log)

	calcCache, err := calculations.NewCache(cacheDB.Conn(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize calculations cache")
	}

	// Analysis modules.
	assessor := risk.NewAssessor(marketSvc, protocolDirectory, risk.NewCache(calcCache), log)
	advisor := rebalancing.NewAdvisor(assessor, log)
	tester := stress.NewTester(log)
	analyzer := performance.NewAnalyzer(marketSvc, log)

	// Automation engine.
	store, err := automation.NewSQLiteStore(engineDB.Conn())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize automation store")
	}

	executor := automation.NewExecutor(log,
		automation.NewDepositHandler(ledgerClient),
		automation.NewStrategyExecutionHandler(ledgerClient, assessor),
		automation.NewRebalancingHandler(ledgerClient, advisor),
		automation.NewTakeProfitHandler(ledgerClient),
		automation.NewStopLossHandler(ledgerClient),
		automation.NewYieldHarvestHandler(ledgerClient),
	)
	automationScheduler := automation.NewScheduler(store, executor, log)

	// Optional live price feed.
	var priceFeed server.PriceFeed
	var priceStream *prices.Stream
	if cfg.PriceStreamURL != "" {
		priceStream = prices.NewStream(cfg.PriceStreamURL, market.TrackedAssets(), priceCache, log)
		if err := priceStream.Start(); err != nil {
			log.Warn().Err(err).Msg("Price stream unavailable at startup")
		}
		priceFeed = priceStream
	}

	// Optional object-store backups.
	var backups *reliability.BackupService
	if cfg.Backup.Enabled() {
		s3Client, err := reliability.NewS3Client(cfg.Backup, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize backup storage client")
		}
		backups = reliability.NewBackupService(
			s3Client,
			map[string]*database.DB{"engine": engineDB, "cache": cacheDB},
			cfg.DataDir,
			cfg.Backup.Keep,
			log,
		)
		log.Info().Str("bucket", cfg.Backup.Bucket).Msg("Backups enabled")
	}

	// Background jobs.
	cron := scheduler.New(log)
	registerJobs(cron, cfg, automationScheduler, calcCache, backups, engineDB, cacheDB, log)

	srv := server.New(server.Config{
		Log:       log,
		Config:    cfg,
		EngineDB:  engineDB,
		CacheDB:   cacheDB,
		Ledger:    ledgerClient,
		Scheduler: automationScheduler,
		Assessor:  assessor,
		Advisor:   advisor,
		Tester:    tester,
		Analyzer:  analyzer,
		Backups:   backups,
		PriceFeed: priceFeed,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	cron.Start()

	// Wait for interrupt signal.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	cron.Stop()

	if priceStream != nil {
		if err := priceStream.Stop(); err != nil {
			log.Error().Err(err).Msg("Error stopping price stream")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

// registerJobs wires the background jobs onto their cron schedules.
func registerJobs(
	cron *scheduler.Scheduler,
	cfg *config.Config,
	automationScheduler *automation.Scheduler,
	calcCache *calculations.Cache,
	backups *reliability.BackupService,
	engineDB, cacheDB *database.DB,
	log zerolog.Logger,
) {
	tickSchedule := fmt.Sprintf("@every %s", cfg.TickInterval)
	if err := cron.AddJob(tickSchedule, scheduler.NewTickJob(automationScheduler, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register automation tick job")
	}

	if err := cron.AddJob("@every 10m", scheduler.NewCacheCleanupJob(calcCache)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register cache cleanup job")
	}

	maintenance := reliability.NewMaintenanceJob(map[string]*database.DB{
		"engine": engineDB,
		"cache":  cacheDB,
	}, log)
	if err := cron.AddJob("0 0 3 * * *", maintenance); err != nil {
		log.Fatal().Err(err).Msg("Failed to register maintenance job")
	}

	if backups != nil {
		if err := cron.AddJob("0 0 2 * * *", scheduler.NewBackupJob(backups)); err != nil {
			log.Fatal().Err(err).Msg("Failed to register backup job")
		}
	}
}

// Package main is the entry point for the TriggerGrain scenario engine.
// The application models grain-marketing scenarios, records virtual sales
// against them, and evaluates marketing performance against real market data.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ericscottllc/triggergrain/internal/clients/quotes"
	"github.com/ericscottllc/triggergrain/internal/config"
	"github.com/ericscottllc/triggergrain/internal/database"
	"github.com/ericscottllc/triggergrain/internal/events"
	"github.com/ericscottllc/triggergrain/internal/modules/evaluation"
	"github.com/ericscottllc/triggergrain/internal/modules/ledger"
	"github.com/ericscottllc/triggergrain/internal/modules/marketdata"
	"github.com/ericscottllc/triggergrain/internal/modules/scenario"
	"github.com/ericscottllc/triggergrain/internal/modules/timeline"
	"github.com/ericscottllc/triggergrain/internal/reliability"
	"github.com/ericscottllc/triggergrain/internal/scheduler"
	"github.com/ericscottllc/triggergrain/internal/server"
	"github.com/ericscottllc/triggergrain/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting TriggerGrain")

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatal().Err(err).Msg("Failed to create data directory")
	}

	// Scenario state is the write-heavy ledger; market data is read-mostly
	scenarioDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "scenario.db"),
		Profile: database.ProfileLedger,
		Name:    "scenario",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open scenario database")
	}
	defer scenarioDB.Close()

	marketDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "market.db"),
		Profile: database.ProfileStandard,
		Name:    "market",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open market database")
	}
	defer marketDB.Close()

	for _, db := range []*database.DB{scenarioDB, marketDB} {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("database", db.Name()).Msg("Migration failed")
		}
	}

	eventBus := events.NewBus(log)

	scenarioRepo := scenario.NewRepository(scenarioDB.Conn(), log)
	saleRepo := ledger.NewSaleRepository(scenarioDB.Conn(), log)
	recRepo := timeline.NewRecommendationRepository(scenarioDB.Conn(), log)
	evalRepo := evaluation.NewRepository(scenarioDB.Conn(), log)
	marketRepo := marketdata.NewRepository(marketDB.Conn(), log)

	quoteClient := quotes.NewClient(cfg.QuoteFeedURL, log)
	if cfg.QuoteFeedURL != "" {
		_ = quoteClient.Start()
		defer quoteClient.Stop()
	}

	scenarioService := scenario.NewService(
		scenarioRepo,
		saleRepo,
		recRepo,
		marketRepo,
		quoteClient,
		evalRepo,
		eventBus,
		cfg.Evaluation,
		log,
	)

	evalEngine := evaluation.NewEngine(
		scenarioRepo,
		saleRepo,
		recRepo,
		marketRepo,
		evalRepo,
		eventBus,
		cfg.Evaluation,
		log,
	)

	sched := scheduler.New(log)
	if cfg.AutoEvalSpec != "" {
		autoEval := scheduler.NewAutoEvaluateJob(scenarioRepo, evalEngine, log)
		if err := sched.AddJob(cfg.AutoEvalSpec, autoEval); err != nil {
			log.Fatal().Err(err).Msg("Failed to register auto-evaluation job")
		}
	} else {
		log.Info().Msg("Auto-evaluation job disabled")
	}

	backupSvc, err := reliability.NewBackupService(
		map[string]*database.DB{"scenario": scenarioDB, "market": marketDB},
		cfg.DataDir,
		cfg.Backup,
		log,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize backup service")
	}
	if err := sched.AddJob("@daily", backupSvc); err != nil {
		log.Fatal().Err(err).Msg("Failed to register backup job")
	}

	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Config{
		Log:             log,
		Config:          cfg,
		ScenarioDB:      scenarioDB,
		MarketDB:        marketDB,
		ScenarioService: scenarioService,
		SaleRepo:        saleRepo,
		RecRepo:         recRepo,
		MarketRepo:      marketRepo,
		EvalEngine:      evalEngine,
		EvalRepo:        evalRepo,
		EventBus:        eventBus,
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatal().Err(err).Msg("HTTP server failed")
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Shutdown complete")
}

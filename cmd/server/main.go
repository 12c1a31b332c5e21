package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tasoulis/riskbench/internal/config"
	"github.com/tasoulis/riskbench/internal/database"
	"github.com/tasoulis/riskbench/internal/modules/risk"
	riskhandlers "github.com/tasoulis/riskbench/internal/modules/risk/handlers"
	"github.com/tasoulis/riskbench/internal/scheduler"
	"github.com/tasoulis/riskbench/internal/server"
	"github.com/tasoulis/riskbench/internal/store"
	"github.com/tasoulis/riskbench/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New(logger.Config{Level: "info"})
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	log.Info().Msg("Starting riskbench")

	portfolio, err := config.LoadPortfolio(cfg.PortfolioPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load portfolio definition")
	}

	pricesDB, err := database.New(database.Config{
		Path:    cfg.PricesDBPath,
		Profile: database.ProfileStandard,
		Name:    "prices",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open prices database")
	}
	defer pricesDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    cfg.CacheDBPath,
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	priceStore := store.NewPriceStore(pricesDB, log)
	if err := priceStore.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate prices database")
	}
	resultCache := store.NewResultCache(cacheDB)
	if err := resultCache.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate cache database")
	}

	riskSvc, err := risk.NewService(priceStore, resultCache, risk.Params{
		Weights:        portfolio.Weights,
		Classes:        portfolio.Classes,
		Lambda:         cfg.Lambda,
		NumSims:        cfg.NumSims,
		Seed:           cfg.Seed,
		Notional:       cfg.Notional,
		LookbackDays:   cfg.LookbackDays,
		BacktestWindow: cfg.BacktestWindow,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create risk service")
	}

	// Scheduler
	sched := scheduler.New(log)
	refreshJob := scheduler.NewRiskRefreshJob(riskSvc)
	if err := sched.AddJob(cfg.RefreshSchedule, refreshJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register refresh job")
	}
	sched.Start()
	defer sched.Stop()

	// First snapshot in the background so the server comes up immediately;
	// endpoints answer 503 until it lands.
	go func() {
		if err := sched.RunNow(refreshJob); err != nil {
			log.Error().Err(err).Msg("Initial risk refresh failed")
		}
	}()

	srv := server.New(server.Config{
		Port:     cfg.Port,
		Log:      log,
		PricesDB: pricesDB,
		CacheDB:  cacheDB,
		Risk:     riskhandlers.NewHandler(riskSvc, log),
		DevMode:  cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server stopped")
}

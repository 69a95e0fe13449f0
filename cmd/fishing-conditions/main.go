package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/nhlakes/fishing-conditions/internal/api/http"
	"github.com/nhlakes/fishing-conditions/internal/config"
	"github.com/nhlakes/fishing-conditions/internal/fishing"
	"github.com/nhlakes/fishing-conditions/internal/fishing/providers"
	"github.com/nhlakes/fishing-conditions/internal/metrics"
	"github.com/nhlakes/fishing-conditions/internal/scheduler"
	"github.com/nhlakes/fishing-conditions/internal/store"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.RequireOpenWeatherKey(); err != nil {
		log.Fatalf("configuration: %v", err)
	}

	metrics.Init()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open store at %s: %v", cfg.DBPath, err)
	}
	defer st.Close()

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: 15 * time.Second,
	}

	forecasts := providers.NewOpenWeatherProvider(httpClient, cfg.OpenWeatherAPIKey, "")
	water := []fishing.WaterTempSource{
		providers.NewUSGSWaterSource(httpClient, ""),
		providers.NewNDBCWaterSource(httpClient, ""),
	}
	estimator := providers.NewSeasonalEstimator()
	stocking := providers.NewNHStockingProvider(httpClient, nil, "")

	eng := fishing.NewEngine(st, forecasts, water, estimator, stocking, fishing.EngineConfig{
		Locations:             cfg.Locations,
		Thresholds:            cfg.Thresholds,
		ForecastDays:          cfg.ForecastDays,
		RetentionDays:         cfg.RetentionDays,
		SnapshotPath:          cfg.SnapshotPath,
		SnapshotLimit:         cfg.SnapshotLimit,
		SampleStockingOnEmpty: cfg.SampleStockingOnEmpty,
	})

	// Scheduler that periodically sweeps every configured location.
	sched := scheduler.New(eng, cfg.FetchInterval)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	app := httpapi.NewApp(st, cfg.Locations)

	go func() {
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}

package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nhlakes/fishing-conditions/internal/config"
	"github.com/nhlakes/fishing-conditions/internal/fishing"
	"github.com/nhlakes/fishing-conditions/internal/fishing/providers"
	"github.com/nhlakes/fishing-conditions/internal/store"
)

func main() {
	once := flag.Bool("once", false, "run a single sweep and exit")
	flag.Parse()

	log.SetOutput(os.Stdout)
	log.SetFlags(log.Ldate | log.Ltime)
	log.Println("Starting fishing conditions ingest...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.RequireOpenWeatherKey(); err != nil {
		log.Fatalf("configuration: %v", err)
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open store at %s: %v", cfg.DBPath, err)
	}
	defer st.Close()

	httpClient := &http.Client{
		Timeout: 15 * time.Second,
	}

	eng := fishing.NewEngine(
		st,
		providers.NewOpenWeatherProvider(httpClient, cfg.OpenWeatherAPIKey, ""),
		[]fishing.WaterTempSource{
			providers.NewUSGSWaterSource(httpClient, ""),
			providers.NewNDBCWaterSource(httpClient, ""),
		},
		providers.NewSeasonalEstimator(),
		providers.NewNHStockingProvider(httpClient, nil, ""),
		fishing.EngineConfig{
			Locations:             cfg.Locations,
			Thresholds:            cfg.Thresholds,
			ForecastDays:          cfg.ForecastDays,
			RetentionDays:         cfg.RetentionDays,
			SnapshotPath:          cfg.SnapshotPath,
			SnapshotLimit:         cfg.SnapshotLimit,
			SampleStockingOnEmpty: cfg.SampleStockingOnEmpty,
		},
	)

	sweep := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
		defer cancel()

		sum, err := eng.RunSweep(ctx)
		if err != nil {
			return err
		}
		log.Printf("sweep %s: weather=%d water=%d stocking=%d failures=%d",
			sum.RunID, sum.WeatherWritten, sum.WaterTempsWritten, sum.StockingWritten, len(sum.Failures))
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *once {
		if err := sweep(ctx); err != nil {
			log.Fatalf("sweep failed: %v", err)
		}
		return
	}

	// Run immediately on startup; cron keeps the data fresh afterwards.
	if err := sweep(ctx); err != nil {
		log.Printf("initial sweep failed: %v", err)
	}

	c := cron.New()
	_, err = c.AddFunc(cfg.IngestCron, func() {
		if err := sweep(context.Background()); err != nil {
			log.Printf("scheduled sweep failed: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("failed to set up cron job: %v", err)
	}

	log.Printf("ingest scheduled with cron spec %q", cfg.IngestCron)
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	log.Println("ingest stopped")
}

package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/nhlakes/fishing-conditions/internal/fishing"
	"github.com/nhlakes/fishing-conditions/internal/metrics"
)

// Sweeper is the slice of the ingestion engine the scheduler drives.
type Sweeper interface {
	RunSweep(ctx context.Context) (fishing.RunSummary, error)
}

// Scheduler periodically runs ingestion sweeps.
type Scheduler struct {
	scheduler *gocron.Scheduler
	engine    Sweeper
	interval  time.Duration
	timeout   time.Duration
}

// New creates a Scheduler sweeping at the given interval.
func New(engine Sweeper, interval time.Duration) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		engine:    engine,
		interval:  interval,
		timeout:   10 * time.Minute,
	}
}

// Start schedules the periodic sweep and starts the underlying scheduler.
// The first sweep runs immediately; a tick that lands while a sweep is
// still running is skipped.
func (s *Scheduler) Start() error {
	interval := s.interval
	if interval <= 0 {
		interval = time.Hour
	}

	_, err := s.scheduler.Every(interval).SingletonMode().StartImmediately().Do(s.runOnce)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func (s *Scheduler) runOnce() {
	log.Println("scheduler: running ingestion sweep")

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	sum, err := s.engine.RunSweep(ctx)

	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
		log.Printf("scheduler: sweep failed: %v", err)
	}
	metrics.ObserveSweep(result, time.Since(start))
	metrics.AddRecordsWritten(metrics.FamilyWeather, sum.WeatherWritten)
	metrics.AddRecordsWritten(metrics.FamilyWaterTemp, sum.WaterTempsWritten)
	metrics.AddRecordsWritten(metrics.FamilyStocking, sum.StockingWritten)
	for _, f := range sum.Failures {
		metrics.IncSweepFailure(f.Stage)
	}

	log.Printf("scheduler: sweep %s finished: weather=%d water=%d stocking=%d failures=%d",
		sum.RunID, sum.WeatherWritten, sum.WaterTempsWritten, sum.StockingWritten, len(sum.Failures))
}

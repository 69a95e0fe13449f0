package fishing

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EngineConfig carries the sweep-level settings the engine needs beyond its
// collaborators.
type EngineConfig struct {
	Locations     []Location
	Thresholds    Thresholds
	ForecastDays  int
	RetentionDays int
	SnapshotPath  string
	SnapshotLimit int

	// SampleStockingOnEmpty seeds known sample events when the feed and its
	// HTML fallback both come back empty, so the stocking API stays useful
	// during authority outages.
	SampleStockingOnEmpty bool
}

// Engine runs ingestion sweeps: fetch, normalize, score, upsert, prune and
// snapshot. It is the only writer to the store.
type Engine struct {
	store        Store
	forecasts    ForecastProvider
	waterSources []WaterTempSource
	estimator    TemperatureEstimator
	stocking     StockingProvider
	cfg          EngineConfig

	now func() time.Time

	mu      sync.Mutex
	running bool
}

// NewEngine wires an engine. The forecast provider is mandatory; water
// temperature sources, the estimator and the stocking provider may each be
// absent, disabling that part of the sweep.
func NewEngine(store Store, forecasts ForecastProvider, water []WaterTempSource, estimator TemperatureEstimator, stocking StockingProvider, cfg EngineConfig) *Engine {
	if cfg.ForecastDays <= 0 {
		cfg.ForecastDays = 8
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	if cfg.SnapshotLimit <= 0 {
		cfg.SnapshotLimit = 50
	}
	return &Engine{
		store:        store,
		forecasts:    forecasts,
		waterSources: water,
		estimator:    estimator,
		stocking:     stocking,
		cfg:          cfg,
		now:          time.Now,
	}
}

// locationResult is what one location's fetch goroutine hands back.
type locationResult struct {
	observations []WeatherObservation
	waterTemps   []WaterTemperatureRecord
	failures     []LocationFailure
}

// RunSweep executes one best-effort sweep over every configured location.
// A single location's failure never aborts the rest; the sweep fails only
// when configuration is missing or no location produced a weather write.
func (e *Engine) RunSweep(ctx context.Context) (RunSummary, error) {
	sum := RunSummary{
		RunID:     uuid.NewString(),
		StartedAt: e.now().UTC(),
	}

	if e.forecasts == nil {
		return sum, fmt.Errorf("%w: no forecast provider configured", ErrConfigurationMissing)
	}
	if len(e.cfg.Locations) == 0 {
		return sum, fmt.Errorf("%w: no locations configured", ErrConfigurationMissing)
	}

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return sum, fmt.Errorf("sweep already in progress")
	}
	e.running = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	log.Printf("[engine] sweep %s starting over %d locations", sum.RunID, len(e.cfg.Locations))

	// Fetch and score in parallel; all store writes happen afterwards on
	// this goroutine so natural-key writes stay serialized.
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []locationResult
	)
	for _, loc := range e.cfg.Locations {
		loc := loc
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := e.fetchLocation(ctx, loc)
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		}()
	}
	wg.Wait()

	ingestedAt := e.now().UTC()
	for _, r := range results {
		sum.Failures = append(sum.Failures, r.failures...)

		if len(r.observations) > 0 {
			n, err := e.store.UpsertWeather(ctx, r.observations)
			if err != nil {
				log.Printf("[engine] weather upsert failed for %s: %v", r.observations[0].Location, err)
				sum.Failures = append(sum.Failures, LocationFailure{
					Location: r.observations[0].Location, Stage: "store", Err: err.Error(),
				})
			} else {
				sum.WeatherWritten += n
			}
		}
		if len(r.waterTemps) > 0 {
			n, err := e.store.AppendWaterTemps(ctx, r.waterTemps)
			if err != nil {
				log.Printf("[engine] water temp append failed for %s: %v", r.waterTemps[0].LakeName, err)
			} else {
				sum.WaterTempsWritten += n
			}
		}
	}

	sum.StockingWritten = e.ingestStockings(ctx, &sum)

	cutoff := ingestedAt.AddDate(0, 0, -e.cfg.RetentionDays)
	if pruned, err := e.store.PruneWeather(ctx, cutoff); err != nil {
		log.Printf("[engine] prune failed: %v", err)
	} else if pruned > 0 {
		log.Printf("[engine] pruned %d weather rows older than %s", pruned, cutoff.Format("2006-01-02"))
	}

	if e.cfg.SnapshotPath != "" {
		if err := e.exportSnapshot(ctx); err != nil {
			log.Printf("[engine] snapshot export failed: %v", err)
		}
	}

	sum.FinishedAt = e.now().UTC()
	if err := e.store.RecordRun(ctx, sum); err != nil {
		log.Printf("[engine] run log write failed: %v", err)
	}

	log.Printf("[engine] sweep %s done: weather=%d water=%d stocking=%d failures=%d",
		sum.RunID, sum.WeatherWritten, sum.WaterTempsWritten, sum.StockingWritten, len(sum.Failures))

	if sum.WeatherWritten == 0 {
		return sum, fmt.Errorf("%w: no location produced weather data", ErrUpstreamUnavailable)
	}
	return sum, nil
}

// fetchLocation pulls one location's forecast and water temperature. Errors
// are collected, never propagated; the sweep is a best-effort pass.
func (e *Engine) fetchLocation(ctx context.Context, loc Location) locationResult {
	var r locationResult

	days, err := e.forecasts.FetchForecast(ctx, loc, e.cfg.ForecastDays)
	if err != nil {
		log.Printf("[engine] forecast fetch failed for %s: %v", loc.Name, err)
		r.failures = append(r.failures, LocationFailure{Location: loc.Name, Stage: "weather", Err: err.Error()})
	}

	ingestedAt := e.now().UTC()
	airTempC := 25.0 // fallback when the forecast gave us nothing to go on
	for i, day := range days {
		m, err := NormalizeForecastDay(day)
		if err != nil {
			// One bad record skips that record, never the location.
			log.Printf("[engine] skipping malformed forecast day for %s: %v", loc.Name, err)
			continue
		}
		if i == 0 {
			airTempC = FahrenheitToCelsius(m.TempF)
		}
		a := Score(m, e.cfg.Thresholds)

		sunrise := "N/A"
		if !day.Sunrise.IsZero() {
			sunrise = day.Sunrise.UTC().Format(SunriseLayout)
		}
		r.observations = append(r.observations, WeatherObservation{
			Location:      loc.Name,
			DateTS:        DayKey(day.Timestamp),
			DateStr:       day.Timestamp.UTC().Format(DateStrLayout),
			Sunrise:       sunrise,
			Summary:       day.Summary,
			TempDay:       m.TempF,
			Pressure:      m.Pressure,
			WindSpeed:     m.WindSpeed,
			WindGust:      m.WindGust,
			FishingBase:   a.Base,
			Fishing:       a.Label(),
			FishingRating: string(a.Rating),
			CreatedAt:     ingestedAt.Unix(),
		})
	}

	if rec, ok := e.fetchWaterTemp(ctx, loc, airTempC); ok {
		r.waterTemps = append(r.waterTemps, rec)
	}

	return r
}

// fetchWaterTemp tries the measured sources in priority order and falls back
// to the estimation model.
func (e *Engine) fetchWaterTemp(ctx context.Context, loc Location, airTempC float64) (WaterTemperatureRecord, bool) {
	ingestedAt := e.now().UTC()

	for _, src := range e.waterSources {
		reading, err := src.FetchWaterTemp(ctx, loc)
		if err != nil {
			if ctx.Err() != nil {
				return WaterTemperatureRecord{}, false
			}
			log.Printf("[engine] %s water temp unavailable for %s: %v", src.Name(), loc.Name, err)
			continue
		}
		return reading.Record(loc.Name, ingestedAt), true
	}

	if e.estimator == nil {
		return WaterTemperatureRecord{}, false
	}
	reading := e.estimator.Estimate(loc, airTempC, ingestedAt)
	return reading.Record(loc.Name, ingestedAt), true
}

// ingestStockings pulls the authority feed once per sweep and stores the
// deduplicated events.
func (e *Engine) ingestStockings(ctx context.Context, sum *RunSummary) int {
	if e.stocking == nil {
		return 0
	}

	events, err := e.stocking.FetchStockings(ctx)
	if err != nil {
		log.Printf("[engine] stocking fetch failed: %v", err)
		sum.Failures = append(sum.Failures, LocationFailure{Location: "stocking feed", Stage: "stocking", Err: err.Error()})
		return 0
	}
	if len(events) == 0 && e.cfg.SampleStockingOnEmpty {
		log.Printf("[engine] stocking feed empty, seeding sample events")
		events = SampleStockingEvents(e.now().UTC())
	}
	if len(events) == 0 {
		return 0
	}

	ingestedAt := e.now().UTC().Unix()
	recs := make([]StockingRecord, 0, len(events))
	for _, ev := range events {
		if ev.LakeName == "" || ev.Species == "" || ev.Date.IsZero() {
			continue
		}
		recs = append(recs, StockingRecord{
			LakeName:     ev.LakeName,
			Species:      ev.Species,
			StockingDate: ev.Date.UTC().Format("2006-01-02"),
			FishSize:     ev.FishSize,
			Quantity:     ev.Quantity,
			Latitude:     ev.Latitude,
			Longitude:    ev.Longitude,
			Notes:        ev.Notes,
			Source:       ev.Source,
			CreatedAt:    ingestedAt,
		})
	}

	n, err := e.store.UpsertStockings(ctx, recs)
	if err != nil {
		log.Printf("[engine] stocking store failed: %v", err)
		sum.Failures = append(sum.Failures, LocationFailure{Location: "stocking feed", Stage: "store", Err: err.Error()})
		return 0
	}
	return n
}

// exportSnapshot writes the freshest observations to the static snapshot
// file clients use as their last fallback tier. The write goes through a
// temp file and a rename so readers never see a torn snapshot.
func (e *Engine) exportSnapshot(ctx context.Context) error {
	obs, err := e.store.WeatherLatest(ctx, "", e.cfg.SnapshotLimit)
	if err != nil {
		return fmt.Errorf("read latest for snapshot: %w", err)
	}

	data, err := json.Marshal(obs)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(e.cfg.SnapshotPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "weather_data-*.json")
	if err != nil {
		return fmt.Errorf("snapshot temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close snapshot: %w", err)
	}
	return os.Rename(tmp.Name(), e.cfg.SnapshotPath)
}

// SampleStockingEvents returns the well-known seed events used when the
// authority feed has nothing to offer. Dates are relative to now so the
// records look current.
func SampleStockingEvents(now time.Time) []StockingEvent {
	coords := func(lat, lon float64) (*float64, *float64) { return &lat, &lon }

	type seed struct {
		lake     string
		species  string
		daysAgo  int
		size     string
		quantity int
		lat, lon float64
		notes    string
	}
	seeds := []seed{
		{"Winnipesaukee", "Rainbow Trout", 5, "8-10 inches", 500, 43.6406, -72.1440, "Stocked in Alton Bay area"},
		{"Newfound", "Lake Trout", 10, "12-14 inches", 300, 43.7528, -71.7999, "Deep water stocking"},
		{"Squam", "Brook Trout", 7, "6-8 inches", 400, 43.8280, -71.5503, "Shoreline stocking"},
		{"Champlain", "Brown Trout", 15, "10-12 inches", 600, 44.4896, -73.3582, "Multiple locations"},
		{"Mascoma", "Rainbow Trout", 3, "8-10 inches", 250, 43.6587, -72.3200, "Recent stocking"},
		{"Sunapee", "Lake Trout", 12, "12-14 inches", 350, 43.3770, -72.0850, "Deep water areas"},
		{"First Connecticut", "Brook Trout", 1, "6-8 inches", 200, 45.0926, -71.2478, "River stocking"},
	}

	events := make([]StockingEvent, 0, len(seeds))
	for _, s := range seeds {
		lat, lon := coords(s.lat, s.lon)
		events = append(events, StockingEvent{
			LakeName:  s.lake,
			Species:   s.species,
			Date:      now.AddDate(0, 0, -s.daysAgo),
			FishSize:  s.size,
			Quantity:  s.quantity,
			Latitude:  lat,
			Longitude: lon,
			Notes:     s.notes,
			Source:    "Sample Data",
		})
	}
	return events
}

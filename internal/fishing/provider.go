package fishing

import (
	"context"
	"errors"
	"time"
)

// ErrNoSource means a water temperature source has no station or buoy mapped
// for the requested location. The engine moves on to the next tier.
var ErrNoSource = errors.New("no source for location")

// ForecastProvider fetches the fixed-horizon daily forecast for a location.
type ForecastProvider interface {
	Name() string
	FetchForecast(ctx context.Context, loc Location, days int) ([]ForecastDay, error)
}

// WaterTempReading is a raw measured (or estimated) water temperature before
// it is persisted.
type WaterTempReading struct {
	TempC     float64
	Timestamp time.Time
	Source    string
	Latitude  *float64
	Longitude *float64
	Depth     *float64
	Notes     string
}

// Record converts the reading into a persistable row, deriving Fahrenheit
// from Celsius so the two stay mutually consistent.
func (r WaterTempReading) Record(lake string, ingestedAt time.Time) WaterTemperatureRecord {
	return WaterTemperatureRecord{
		LakeName:  lake,
		TempC:     Round2(r.TempC),
		TempF:     Round2(CelsiusToFahrenheit(r.TempC)),
		Timestamp: r.Timestamp.UTC().Unix(),
		Source:    r.Source,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Depth:     r.Depth,
		Notes:     r.Notes,
		CreatedAt: ingestedAt.UTC().Unix(),
	}
}

// WaterTempSource fetches a measured water temperature for a location.
// Sources are consulted in priority order; any error moves the engine to the
// next tier.
type WaterTempSource interface {
	Name() string
	FetchWaterTemp(ctx context.Context, loc Location) (WaterTempReading, error)
}

// TemperatureEstimator produces a best-effort reading when no measured
// source delivered one. Estimation never fails; its output is clearly
// labeled as modeled rather than measured.
type TemperatureEstimator interface {
	Estimate(loc Location, airTempC float64, day time.Time) WaterTempReading
}

// StockingEvent is one event parsed from the authority feed.
type StockingEvent struct {
	LakeName  string
	Species   string
	Date      time.Time
	FishSize  string
	Quantity  int
	Latitude  *float64
	Longitude *float64
	Notes     string
	Source    string
}

// StockingProvider fetches the stocking report feed. It is consulted once
// per sweep, not per location.
type StockingProvider interface {
	Name() string
	FetchStockings(ctx context.Context) ([]StockingEvent, error)
}

// Store is the persistence contract the ingestion engine writes through.
// The SQLite implementation in internal/store satisfies it.
type Store interface {
	UpsertWeather(ctx context.Context, obs []WeatherObservation) (int, error)
	AppendWaterTemps(ctx context.Context, recs []WaterTemperatureRecord) (int, error)
	UpsertStockings(ctx context.Context, recs []StockingRecord) (int, error)
	PruneWeather(ctx context.Context, olderThan time.Time) (int64, error)
	WeatherLatest(ctx context.Context, location string, limit int) ([]WeatherObservation, error)
	RecordRun(ctx context.Context, sum RunSummary) error
}

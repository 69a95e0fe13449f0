package fishing

import (
	"time"
)

// Location is a configured water body we track. The list is fixed at
// startup and never mutated afterwards.
type Location struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`

	// USGSSite and NDBCBuoy identify optional measured water temperature
	// sources for this location. Empty means the source is unavailable.
	USGSSite string `json:"-"`
	NDBCBuoy string `json:"-"`
}

// WeatherObservation is one scored forecast row. Exactly one row exists per
// (location, forecast date); a later ingestion for the same pair replaces it.
type WeatherObservation struct {
	Location      string  `json:"location"`
	DateTS        int64   `json:"date_ts"`
	DateStr       string  `json:"date_str"`
	Sunrise       string  `json:"sunrise"`
	Summary       string  `json:"summary"`
	TempDay       float64 `json:"temp_day"`
	Pressure      float64 `json:"pressure"`
	WindSpeed     float64 `json:"wind_speed"`
	WindGust      float64 `json:"wind_gust"`
	FishingBase   string  `json:"fishing_base"`
	Fishing       string  `json:"fishing"`
	FishingRating string  `json:"fishing_rating"`
	CreatedAt     int64   `json:"created_at"`
}

// DateStrLayout renders the forecast day the way the site always has.
const DateStrLayout = "Monday 01-02-2006"

// SunriseLayout renders sunrise as wall-clock hours and minutes.
const SunriseLayout = "15:04"

// DayKey truncates t to its calendar day in UTC. The result is the canonical
// date_ts value for that day, so two fetches of the same forecast day always
// collide on the natural key.
func DayKey(t time.Time) int64 {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).Unix()
}

// WaterTemperatureRecord is a single water temperature reading. Rows are
// append-only; history is never pruned.
type WaterTemperatureRecord struct {
	LakeName  string   `json:"lake_name"`
	TempC     float64  `json:"temperature_celsius"`
	TempF     float64  `json:"temperature_fahrenheit"`
	Timestamp int64    `json:"timestamp"`
	Source    string   `json:"source"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Depth     *float64 `json:"depth,omitempty"`
	Notes     string   `json:"notes,omitempty"`
	CreatedAt int64    `json:"created_at"`
}

// Water temperature source identifiers.
const (
	SourceUSGS     = "USGS"
	SourceNOAABuoy = "NOAA Buoy"
	SourceEstimate = "Estimation Model"
)

// StockingRecord is one fish stocking event reported by the authority feed.
// StockingDate is an ISO calendar date (2006-01-02); duplicates are
// suppressed by the (lake, date, species) natural key.
type StockingRecord struct {
	LakeName     string   `json:"lake_name"`
	Species      string   `json:"species"`
	StockingDate string   `json:"stocking_date"`
	FishSize     string   `json:"fish_size"`
	Quantity     int      `json:"quantity"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	Notes        string   `json:"notes,omitempty"`
	Source       string   `json:"source"`
	CreatedAt    int64    `json:"created_at"`
}

// RunSummary reports what a single ingestion sweep accomplished.
type RunSummary struct {
	RunID             string            `json:"run_id"`
	WeatherWritten    int               `json:"weather_written"`
	WaterTempsWritten int               `json:"water_temps_written"`
	StockingWritten   int               `json:"stocking_written"`
	Failures          []LocationFailure `json:"failures,omitempty"`
	StartedAt         time.Time         `json:"started_at"`
	FinishedAt        time.Time         `json:"finished_at"`
}

// LocationFailure records a per-location fetch problem. Failures never abort
// the rest of the sweep.
type LocationFailure struct {
	Location string `json:"location"`
	Stage    string `json:"stage"`
	Err      string `json:"error"`
}

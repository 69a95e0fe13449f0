package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelvins/geocoder"

	"github.com/nhlakes/fishing-conditions/internal/fishing"
)

// AppConfig carries everything the binaries need: upstream credentials,
// storage paths, sweep pacing, thresholds, and the tracked locations.
type AppConfig struct {
	OpenWeatherAPIKey string

	// HTTPAddr is the API listen address; AltPort is the well-known
	// alternate port clients try when the primary address is down.
	HTTPAddr string
	AltPort  string

	DBPath        string
	SnapshotPath  string
	SnapshotLimit int

	// FetchInterval drives the in-process scheduler; IngestCron drives the
	// standalone ingest daemon.
	FetchInterval time.Duration
	IngestCron    string
	RetentionDays int
	ForecastDays  int

	Locations  []fishing.Location
	Thresholds fishing.Thresholds

	SampleStockingOnEmpty bool
}

// DefaultLocations returns the NH and VT waters tracked out of the box,
// each with its USGS gauging site and, for Champlain, the NDBC buoy.
func DefaultLocations() []fishing.Location {
	return []fishing.Location{
		{Name: "Winnipesaukee", Lat: 43.6406, Lon: -72.1440, USGSSite: "01034500"},
		{Name: "Newfound", Lat: 43.7528, Lon: -71.7999, USGSSite: "01076500"},
		{Name: "Squam", Lat: 43.8280, Lon: -71.5503, USGSSite: "01077500"},
		{Name: "Champlain", Lat: 44.4896, Lon: -73.3582, USGSSite: "04295000", NDBCBuoy: "45012"},
		{Name: "Mascoma", Lat: 43.6587, Lon: -72.3200, USGSSite: "01158000"},
		{Name: "Sunapee", Lat: 43.3770, Lon: -72.0850, USGSSite: "01078000"},
		{Name: "First Connecticut", Lat: 45.0926, Lon: -71.2478, USGSSite: "01144000"},
	}
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")

	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", ":8080")
	cfg.AltPort = getenvDefault("ALT_PORT", "5000")

	cfg.DBPath = getenvDefault("DB_PATH", "sqlite_db/fishing_conditions.db")
	cfg.SnapshotPath = getenvDefault("SNAPSHOT_PATH", "static/weather_data.json")
	cfg.SnapshotLimit = getenvInt("SNAPSHOT_LIMIT", 50)

	intervalStr := getenvDefault("FETCH_INTERVAL", "1h")
	interval, err := time.ParseDuration(intervalStr)
	if err != nil {
		return nil, fmt.Errorf("invalid FETCH_INTERVAL: %w", err)
	}
	cfg.FetchInterval = interval

	cfg.IngestCron = getenvDefault("INGEST_CRON", "0 * * * *")
	cfg.RetentionDays = getenvInt("RETENTION_DAYS", 30)
	cfg.ForecastDays = getenvInt("FORECAST_DAYS", 8)
	cfg.SampleStockingOnEmpty = getenvBool("SAMPLE_STOCKING", true)

	cfg.Thresholds = loadThresholds()

	locs, err := loadLocations()
	if err != nil {
		return nil, err
	}
	if err := fillCoordinates(locs); err != nil {
		return nil, err
	}
	cfg.Locations = locs

	return cfg, nil
}

// RequireOpenWeatherKey reports a configuration error when the forecast
// credential is absent. Binaries that run sweeps check this up front rather
// than failing on the first fetch.
func (c *AppConfig) RequireOpenWeatherKey() error {
	if c.OpenWeatherAPIKey == "" {
		return fmt.Errorf("%w: OPENWEATHER_API_KEY is not set", fishing.ErrConfigurationMissing)
	}
	return nil
}

func loadThresholds() fishing.Thresholds {
	t := fishing.DefaultThresholds()
	t.WindExcellentMax = getenvFloat("WIND_EXCELLENT_MAX", t.WindExcellentMax)
	t.WindGoodMax = getenvFloat("WIND_GOOD_MAX", t.WindGoodMax)
	t.WindFairMax = getenvFloat("WIND_FAIR_MAX", t.WindFairMax)
	t.WindToughMax = getenvFloat("WIND_TOUGH_MAX", t.WindToughMax)
	t.GustGusty = getenvFloat("GUST_GUSTY", t.GustGusty)
	t.TempColdMax = getenvFloat("TEMP_COLD_MAX", t.TempColdMax)
	t.TempHotMin = getenvFloat("TEMP_HOT_MIN", t.TempHotMin)
	t.PressureLow = getenvFloat("PRESSURE_LOW", t.PressureLow)
	return t
}

// loadLocations parses the LOCATIONS override. Entries are separated by
// semicolons, fields by pipes: Name|lat|lon|usgsSite|ndbcBuoy. Trailing
// fields may be omitted; blank coordinates are filled by geocoding.
func loadLocations() ([]fishing.Location, error) {
	raw := strings.TrimSpace(os.Getenv("LOCATIONS"))
	if raw == "" {
		return DefaultLocations(), nil
	}

	var locs []fishing.Location
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		fields := strings.Split(entry, "|")

		loc := fishing.Location{Name: strings.TrimSpace(fields[0])}
		if loc.Name == "" {
			return nil, fmt.Errorf("LOCATIONS entry %q has no name", entry)
		}
		if len(fields) > 1 && strings.TrimSpace(fields[1]) != "" {
			lat, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
			if err != nil {
				return nil, fmt.Errorf("LOCATIONS entry %q: bad latitude: %w", entry, err)
			}
			loc.Lat = lat
		}
		if len(fields) > 2 && strings.TrimSpace(fields[2]) != "" {
			lon, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
			if err != nil {
				return nil, fmt.Errorf("LOCATIONS entry %q: bad longitude: %w", entry, err)
			}
			loc.Lon = lon
		}
		if len(fields) > 3 {
			loc.USGSSite = strings.TrimSpace(fields[3])
		}
		if len(fields) > 4 {
			loc.NDBCBuoy = strings.TrimSpace(fields[4])
		}
		locs = append(locs, loc)
	}
	if len(locs) == 0 {
		return nil, fmt.Errorf("LOCATIONS is set but holds no entries")
	}
	return locs, nil
}

// fillCoordinates geocodes locations configured without coordinates. A
// location the forecast provider cannot place is useless, so an entry with
// neither coordinates nor a usable geocoding key fails configuration.
func fillCoordinates(locs []fishing.Location) error {
	apiKey := os.Getenv("GOOGLE_GEOCODING_API_KEY")
	for i := range locs {
		if locs[i].Lat != 0 || locs[i].Lon != 0 {
			continue
		}
		if apiKey == "" {
			return fmt.Errorf("%w: location %q has no coordinates and GOOGLE_GEOCODING_API_KEY is not set",
				fishing.ErrConfigurationMissing, locs[i].Name)
		}

		geocoder.ApiKey = apiKey
		coords, err := geocoder.Geocoding(geocoder.Address{
			City:    locs[i].Name,
			Country: "United States",
		})
		if err != nil {
			return fmt.Errorf("geocode %q: %w", locs[i].Name, err)
		}
		locs[i].Lat = coords.Latitude
		locs[i].Lon = coords.Longitude
		log.Printf("INFO: geocoded %s to %.4f, %.4f", locs[i].Name, coords.Latitude, coords.Longitude)
	}
	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

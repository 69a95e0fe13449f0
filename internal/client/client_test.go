package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nhlakes/fishing-conditions/internal/fishing"
)

func sampleObservations() []fishing.WeatherObservation {
	return []fishing.WeatherObservation{
		{Location: "Winnipesaukee", DateTS: 1749513600, FishingBase: "Lite Wind", FishingRating: "Excellent", CreatedAt: 3000},
		{Location: "Squam", DateTS: 1749513600, FishingBase: "Moderate Wind", FishingRating: "Fair", CreatedAt: 2000},
	}
}

// serveJSON returns a test server answering every GET with the given value,
// plus counters for the requests it saw.
func serveJSON(t *testing.T, v any) (*httptest.Server, *[]*url.URL) {
	t.Helper()
	var seen []*url.URL
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.URL)
		if err := json.NewEncoder(w).Encode(v); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func portOf(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	return u.Port()
}

func writeSnapshot(t *testing.T, obs []fishing.WeatherObservation) string {
	t.Helper()
	data, err := json.Marshal(obs)
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	path := filepath.Join(t.TempDir(), "weather_data.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}
	return path
}

func TestWeatherFromPrimary(t *testing.T) {
	srv, seen := serveJSON(t, sampleObservations())
	c := New(srv.URL, Options{})

	obs, err := c.Weather(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("Weather: %v", err)
	}
	if len(obs) != 2 || obs[0].Location != "Winnipesaukee" {
		t.Fatalf("unexpected observations: %+v", obs)
	}
	if len(*seen) != 1 || (*seen)[0].Path != "/api/v1/weather" {
		t.Fatalf("unexpected requests: %v", *seen)
	}
}

func TestWeatherFallsBackToAlternatePort(t *testing.T) {
	srv, seen := serveJSON(t, sampleObservations())

	c := New("http://127.0.0.1:1", Options{
		AltPort: portOf(t, srv),
		Timeout: 2 * time.Second,
	})
	obs, err := c.Weather(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("Weather: %v", err)
	}
	if len(obs) != 2 {
		t.Fatalf("expected 2 observations from fallback, got %d", len(obs))
	}
	if len(*seen) != 1 {
		t.Fatalf("expected exactly one fallback request, got %d", len(*seen))
	}
}

func TestWeatherFallsBackToSnapshot(t *testing.T) {
	snapshot := writeSnapshot(t, sampleObservations())

	c := New("http://127.0.0.1:1", Options{
		AltPort:      "2",
		SnapshotPath: snapshot,
		Timeout:      2 * time.Second,
	})
	obs, err := c.Weather(context.Background(), "Squam", 0)
	if err != nil {
		t.Fatalf("Weather: %v", err)
	}
	if len(obs) != 1 || obs[0].Location != "Squam" {
		t.Fatalf("expected filtered snapshot observations, got %+v", obs)
	}
}

func TestWeatherExhaustedCarriesSnapshotError(t *testing.T) {
	c := New("http://127.0.0.1:1", Options{
		AltPort:      "2",
		SnapshotPath: filepath.Join(t.TempDir(), "missing.json"),
		Timeout:      2 * time.Second,
	})
	_, err := c.Weather(context.Background(), "", 0)
	if !errors.Is(err, ErrFetchExhausted) {
		t.Fatalf("expected ErrFetchExhausted, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected the snapshot error in the chain, got %v", err)
	}
}

func TestStockingsHaveNoSnapshotTier(t *testing.T) {
	c := New("http://127.0.0.1:1", Options{
		AltPort:      "2",
		SnapshotPath: writeSnapshot(t, sampleObservations()),
		Timeout:      2 * time.Second,
	})
	_, err := c.Stockings(context.Background(), "", 0)
	if !errors.Is(err, ErrFetchExhausted) {
		t.Fatalf("expected ErrFetchExhausted, got %v", err)
	}
}

func TestForecastSendsWindowQuery(t *testing.T) {
	srv, seen := serveJSON(t, sampleObservations())
	c := New(srv.URL, Options{})

	if _, err := c.Forecast(context.Background(), 3, 10); err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if len(*seen) != 1 {
		t.Fatalf("expected 1 request, got %d", len(*seen))
	}
	got := (*seen)[0]
	if got.Path != "/api/v1/forecast" {
		t.Errorf("unexpected path %q", got.Path)
	}
	q := got.Query()
	if q.Get("days") != "3" || q.Get("limit") != "10" {
		t.Errorf("unexpected query %q", got.RawQuery)
	}
}

func TestWaterTempLatest(t *testing.T) {
	srv, _ := serveJSON(t, map[string]fishing.WaterTemperatureRecord{
		"Squam": {LakeName: "Squam", TempC: 18.5, TempF: 65.3, Timestamp: 200, Source: fishing.SourceUSGS},
	})
	c := New(srv.URL, Options{})

	latest, err := c.WaterTempLatest(context.Background())
	if err != nil {
		t.Fatalf("WaterTempLatest: %v", err)
	}
	if len(latest) != 1 || latest["Squam"].TempC != 18.5 {
		t.Fatalf("unexpected latest map: %+v", latest)
	}
}

func TestClientHonoursContext(t *testing.T) {
	srv, _ := serveJSON(t, sampleObservations())
	c := New(srv.URL, Options{SnapshotPath: writeSnapshot(t, sampleObservations())})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Weather(ctx, "", 0)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, ErrFetchExhausted) {
		t.Fatalf("context errors must not be wrapped as exhaustion: %v", err)
	}
}

func TestAlternateBaseRewritesPort(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"http://lakes.example.com:8080", "http://lakes.example.com:5000"},
		{"https://lakes.example.com", "https://lakes.example.com:5000"},
		{"http://127.0.0.1:9999", "http://127.0.0.1:5000"},
	}
	for _, tc := range cases {
		got, err := alternateBase(tc.base, "5000")
		if err != nil {
			t.Errorf("alternateBase(%q): %v", tc.base, err)
			continue
		}
		if got != tc.want {
			t.Errorf("alternateBase(%q) = %q, want %q", tc.base, got, tc.want)
		}
	}

	if _, err := alternateBase("://not a url", "5000"); err == nil {
		t.Error("expected error for unparseable base")
	}
}

func TestColorMapping(t *testing.T) {
	cases := map[string]string{
		"Excellent":  "green",
		"Good":       "gold",
		"Fair":       "gold",
		"Tough":      "orange",
		"No Fishing": "red",
		"Unknown":    "gray",
		"":           "gray",
	}
	for rating, want := range cases {
		if got := Color(rating); got != want {
			t.Errorf("Color(%q) = %q, want %q", rating, got, want)
		}
	}
}

func TestExplanationDegradesRating(t *testing.T) {
	if got := Explanation("Excellent"); got != "Favorable conditions" {
		t.Errorf("unexpected explanation for Excellent: %q", got)
	}
	if got := Explanation("No Fishing"); got != "Challenging conditions" {
		t.Errorf("unexpected explanation for No Fishing: %q", got)
	}
	if got := Explanation("Unknown"); got != "Moderate conditions" {
		t.Errorf("unexpected explanation for Unknown: %q", got)
	}
}

package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nhlakes/fishing-conditions/internal/fishing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "fishing.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testObservation(location string, date time.Time, createdAt int64) fishing.WeatherObservation {
	return fishing.WeatherObservation{
		Location:      location,
		DateTS:        fishing.DayKey(date),
		DateStr:       date.UTC().Format(fishing.DateStrLayout),
		Sunrise:       "05:42",
		Summary:       "Partly cloudy",
		TempDay:       68.5,
		Pressure:      30.01,
		WindSpeed:     3.2,
		WindGust:      7.8,
		FishingBase:   "Lite Wind",
		Fishing:       "Lite Wind (Comfortable Temp, High Pressure)",
		FishingRating: "Excellent",
		CreatedAt:     createdAt,
	}
}

// TestUpsertWeatherIdempotent verifies that re-ingesting the same location
// and forecast date replaces the existing row instead of duplicating it.
func TestUpsertWeatherIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	day := time.Date(2025, 6, 10, 14, 30, 0, 0, time.UTC)

	first := testObservation("Lake Winnipesaukee", day, 1000)
	if _, err := s.UpsertWeather(ctx, []fishing.WeatherObservation{first}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	second := first
	second.Summary = "Heavy rain"
	second.FishingRating = "Tough"
	second.CreatedAt = 2000
	if _, err := s.UpsertWeather(ctx, []fishing.WeatherObservation{second}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := s.WeatherLatest(ctx, "Lake Winnipesaukee", 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 row after re-ingest, got %d", len(got))
	}
	if got[0].Summary != "Heavy rain" {
		t.Errorf("expected refreshed summary %q, got %q", "Heavy rain", got[0].Summary)
	}
	if got[0].FishingRating != "Tough" {
		t.Errorf("expected refreshed rating %q, got %q", "Tough", got[0].FishingRating)
	}
	if got[0].CreatedAt != 2000 {
		t.Errorf("expected refreshed created_at 2000, got %d", got[0].CreatedAt)
	}
}

// TestUpsertWeatherDistinctDays verifies that the same location on different
// days, and different locations on the same day, produce separate rows.
func TestUpsertWeatherDistinctDays(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	day := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	obs := []fishing.WeatherObservation{
		testObservation("Lake Winnipesaukee", day, 1000),
		testObservation("Lake Winnipesaukee", day.AddDate(0, 0, 1), 1000),
		testObservation("Squam Lake", day, 1000),
	}
	n, err := s.UpsertWeather(ctx, obs)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 writes, got %d", n)
	}

	got, err := s.WeatherLatest(ctx, "", 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(got))
	}
}

// TestWeatherLatestOrdering verifies newest-first ordering by ingestion time
// with forecast date as tie-break, and that the limit applies after ordering.
func TestWeatherLatestOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	day := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	obs := []fishing.WeatherObservation{
		testObservation("Squam Lake", day, 1000),
		testObservation("Squam Lake", day.AddDate(0, 0, 1), 1000),
		testObservation("Squam Lake", day.AddDate(0, 0, 2), 3000),
	}
	if _, err := s.UpsertWeather(ctx, obs); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.WeatherLatest(ctx, "Squam Lake", 2)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected limit to cap at 2 rows, got %d", len(got))
	}
	if got[0].CreatedAt != 3000 {
		t.Errorf("expected most recent ingest first, got created_at %d", got[0].CreatedAt)
	}
	if got[1].DateTS != fishing.DayKey(day.AddDate(0, 0, 1)) {
		t.Errorf("expected created_at tie broken by later forecast date, got date_ts %d", got[1].DateTS)
	}
}

// TestPruneWeatherBoundary verifies that a 30 day cutoff removes a 31 day
// old observation and keeps a 29 day old one.
func TestPruneWeatherBoundary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

	obs := []fishing.WeatherObservation{
		testObservation("Newfound Lake", now.AddDate(0, 0, -31), 1000),
		testObservation("Newfound Lake", now.AddDate(0, 0, -29), 1000),
		testObservation("Newfound Lake", now, 1000),
	}
	if _, err := s.UpsertWeather(ctx, obs); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	pruned, err := s.PruneWeather(ctx, now.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("expected 1 pruned row, got %d", pruned)
	}

	got, err := s.WeatherLatest(ctx, "Newfound Lake", 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 surviving rows, got %d", len(got))
	}
	for _, o := range got {
		if o.DateTS < fishing.DayKey(now.AddDate(0, 0, -30)) {
			t.Errorf("row dated %d should have been pruned", o.DateTS)
		}
	}
}

// TestWeatherForecastWindow verifies the dated window filter.
func TestWeatherForecastWindow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)

	obs := []fishing.WeatherObservation{
		testObservation("Lake Sunapee", now.AddDate(0, 0, -1), 1000),
		testObservation("Lake Sunapee", now, 1000),
		testObservation("Lake Sunapee", now.AddDate(0, 0, 3), 1000),
		testObservation("Lake Sunapee", now.AddDate(0, 0, 9), 1000),
	}
	if _, err := s.UpsertWeather(ctx, obs); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.WeatherForecast(ctx, now, 7, 50)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows inside the 7 day window, got %d", len(got))
	}
	for _, o := range got {
		if o.DateTS < fishing.DayKey(now) || o.DateTS >= fishing.DayKey(now.AddDate(0, 0, 7)) {
			t.Errorf("row dated %d falls outside window", o.DateTS)
		}
	}
}

// TestWaterTempAppendOnly verifies that identical readings accumulate rather
// than replace each other.
func TestWaterTempAppendOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := fishing.WaterTemperatureRecord{
		LakeName:  "Lake Winnipesaukee",
		TempC:     18.5,
		TempF:     65.3,
		Timestamp: 1750000000,
		Source:    fishing.SourceUSGS,
		CreatedAt: 1750000100,
	}
	for i := 0; i < 2; i++ {
		if _, err := s.AppendWaterTemps(ctx, []fishing.WaterTemperatureRecord{rec}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	got, err := s.WaterTempsRecent(ctx, "Lake Winnipesaukee", 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, append is not deduplicated, got %d", len(got))
	}
}

// TestLatestWaterTempByLake verifies one reading per lake with the maximum
// timestamp, and that equal timestamps resolve to the most recent insert.
func TestLatestWaterTempByLake(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	recs := []fishing.WaterTemperatureRecord{
		{LakeName: "Squam Lake", TempC: 15.0, TempF: 59.0, Timestamp: 100, Source: fishing.SourceUSGS, CreatedAt: 100},
		{LakeName: "Squam Lake", TempC: 17.0, TempF: 62.6, Timestamp: 200, Source: fishing.SourceUSGS, CreatedAt: 200},
		{LakeName: "Lake Champlain", TempC: 11.0, TempF: 51.8, Timestamp: 300, Source: fishing.SourceNOAABuoy, CreatedAt: 300},
		{LakeName: "Lake Champlain", TempC: 12.0, TempF: 53.6, Timestamp: 300, Source: fishing.SourceEstimate, CreatedAt: 310},
	}
	if _, err := s.AppendWaterTemps(ctx, recs); err != nil {
		t.Fatalf("append: %v", err)
	}

	latest, err := s.LatestWaterTempByLake(ctx)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("expected 2 lakes, got %d", len(latest))
	}
	if got := latest["Squam Lake"].TempC; got != 17.0 {
		t.Errorf("expected newest Squam reading 17.0, got %v", got)
	}
	if got := latest["Lake Champlain"].TempC; got != 12.0 {
		t.Errorf("expected timestamp tie resolved to latest insert 12.0, got %v", got)
	}
}

// TestStockingDedup verifies that a re-reported event refreshes the stored
// row instead of duplicating it, and that a different species on the same
// day is a distinct event.
func TestStockingDedup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := fishing.StockingRecord{
		LakeName:     "Newfound Lake",
		Species:      "Rainbow Trout",
		StockingDate: "2025-05-01",
		FishSize:     "10-12 inches",
		Quantity:     500,
		Source:       "NH Fish and Game",
		CreatedAt:    1000,
	}
	if _, err := s.UpsertStockings(ctx, []fishing.StockingRecord{base}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	updated := base
	updated.Quantity = 750
	other := base
	other.Species = "Brook Trout"
	if _, err := s.UpsertStockings(ctx, []fishing.StockingRecord{updated, other}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := s.StockingsRecent(ctx, "Newfound Lake", 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	for _, r := range got {
		if r.Species == "Rainbow Trout" && r.Quantity != 750 {
			t.Errorf("expected refreshed quantity 750, got %d", r.Quantity)
		}
	}
}

// TestEmptyResults verifies that queries against a fresh database return
// empty, non-nil slices so the API serializes them as [] rather than null.
func TestEmptyResults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	weather, err := s.WeatherLatest(ctx, "", 10)
	if err != nil {
		t.Fatalf("weather query: %v", err)
	}
	if weather == nil || len(weather) != 0 {
		t.Errorf("expected empty non-nil weather slice, got %#v", weather)
	}

	temps, err := s.WaterTempsRecent(ctx, "", 10)
	if err != nil {
		t.Fatalf("water temp query: %v", err)
	}
	if temps == nil || len(temps) != 0 {
		t.Errorf("expected empty non-nil water temp slice, got %#v", temps)
	}

	stockings, err := s.StockingsRecent(ctx, "", 10)
	if err != nil {
		t.Fatalf("stocking query: %v", err)
	}
	if stockings == nil || len(stockings) != 0 {
		t.Errorf("expected empty non-nil stocking slice, got %#v", stockings)
	}
}

// TestRunLog verifies the sweep summary round trip and the not-found
// sentinel on an empty log.
func TestRunLog(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.LastRun(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty log, got %v", err)
	}

	started := time.Date(2025, 6, 10, 6, 0, 0, 0, time.UTC)
	sum := fishing.RunSummary{
		RunID:             "run-abc",
		WeatherWritten:    14,
		WaterTempsWritten: 7,
		StockingWritten:   3,
		Failures: []fishing.LocationFailure{
			{Location: "Lake Champlain", Stage: "weather", Err: "timeout"},
		},
		StartedAt:  started,
		FinishedAt: started.Add(42 * time.Second),
	}
	if err := s.RecordRun(ctx, sum); err != nil {
		t.Fatalf("record run: %v", err)
	}

	got, err := s.LastRun(ctx)
	if err != nil {
		t.Fatalf("last run: %v", err)
	}
	if got.RunID != "run-abc" {
		t.Errorf("expected run id %q, got %q", "run-abc", got.RunID)
	}
	if got.WeatherWritten != 14 || got.WaterTempsWritten != 7 || got.StockingWritten != 3 {
		t.Errorf("unexpected counters: %+v", got)
	}
	if got.Failures != 1 || got.ErrorMessage != "timeout" {
		t.Errorf("unexpected failure summary: %+v", got)
	}
	if got.FinishedAt-got.StartedAt != 42 {
		t.Errorf("expected 42s duration, got %d", got.FinishedAt-got.StartedAt)
	}
}

// TestStats verifies the row counters.
func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	day := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	if _, err := s.UpsertWeather(ctx, []fishing.WeatherObservation{
		testObservation("Squam Lake", day, 1000),
		testObservation("Squam Lake", day.AddDate(0, 0, 1), 1000),
	}); err != nil {
		t.Fatalf("upsert weather: %v", err)
	}
	if _, err := s.AppendWaterTemps(ctx, []fishing.WaterTemperatureRecord{
		{LakeName: "Squam Lake", TempC: 15, TempF: 59, Timestamp: 100, Source: fishing.SourceUSGS, CreatedAt: 100},
	}); err != nil {
		t.Fatalf("append temps: %v", err)
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.WeatherRows != 2 || st.WaterTempRows != 1 || st.StockingRows != 0 {
		t.Errorf("unexpected counts: %+v", st)
	}
	if st.WeatherOldestTS != fishing.DayKey(day) || st.WeatherNewestTS != fishing.DayKey(day.AddDate(0, 0, 1)) {
		t.Errorf("unexpected date range: %+v", st)
	}
}

package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nhlakes/fishing-conditions/internal/fishing"
)

const realtime2Fixture = `#YY  MM DD hh mm WDIR WSPD GST  WVHT   DPD   APD MWD   PRES  ATMP  WTMP  DEWP  VIS PTDY  TIDE
#yr  mo dy hr mn degT m/s  m/s     m   sec   sec degT   hPa  degC  degC  degC  nmi  hPa    ft
2025 06 10 15 50 230  4.0  6.0   0.5     4   3.4 999 1013.2  22.1    MM  15.0 99.0 +0.2 99.00
2025 06 10 14 50 220  3.5  5.1   0.4     4   3.2 999 1013.5  21.8  18.6  14.8 99.0 +0.1 99.00
2025 06 10 13 50 210  3.1  4.4   0.4     4   3.1 999 1013.9  21.2  18.4  14.5 99.0 -0.1 99.00
`

// TestNDBCFetchSkipsMissingValues verifies that the newest row with a real
// WTMP value wins, with the column located from the header rather than a
// fixed offset.
func TestNDBCFetchSkipsMissingValues(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/45012.txt") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		fmt.Fprint(w, realtime2Fixture)
	}))
	defer server.Close()

	s := NewNDBCWaterSource(server.Client(), server.URL)
	loc := fishing.Location{Name: "Champlain", NDBCBuoy: "45012"}

	reading, err := s.FetchWaterTemp(context.Background(), loc)
	if err != nil {
		t.Fatalf("fetch water temp: %v", err)
	}

	if reading.TempC != 18.6 {
		t.Errorf("expected first usable WTMP 18.6, got %v", reading.TempC)
	}
	wantTS := time.Date(2025, 6, 10, 14, 50, 0, 0, time.UTC)
	if !reading.Timestamp.Equal(wantTS) {
		t.Errorf("expected timestamp %v, got %v", wantTS, reading.Timestamp)
	}
	if reading.Source != fishing.SourceNOAABuoy {
		t.Errorf("expected source %q, got %q", fishing.SourceNOAABuoy, reading.Source)
	}
	if reading.Notes != "Buoy 45012" {
		t.Errorf("unexpected notes %q", reading.Notes)
	}
}

// TestNDBCFetchWithoutBuoy verifies that lakes with no buoy are skipped
// without touching the network.
func TestNDBCFetchWithoutBuoy(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer server.Close()

	s := NewNDBCWaterSource(server.Client(), server.URL)
	_, err := s.FetchWaterTemp(context.Background(), fishing.Location{Name: "Winnipesaukee"})
	if !errors.Is(err, fishing.ErrNoSource) {
		t.Fatalf("expected ErrNoSource, got %v", err)
	}
	if hits != 0 {
		t.Errorf("expected no requests, got %d", hits)
	}
}

// TestNDBCFetchAllMissing verifies that a feed with only MM placeholders
// reports no source.
func TestNDBCFetchAllMissing(t *testing.T) {
	feed := `#YY  MM DD hh mm WDIR WSPD GST  WVHT   DPD   APD MWD   PRES  ATMP  WTMP  DEWP  VIS PTDY  TIDE
#yr  mo dy hr mn degT m/s  m/s     m   sec   sec degT   hPa  degC  degC  degC  nmi  hPa    ft
2025 06 10 15 50 230  4.0  6.0   0.5     4   3.4 999 1013.2  22.1    MM  15.0 99.0 +0.2 99.00
`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feed)
	}))
	defer server.Close()

	s := NewNDBCWaterSource(server.Client(), server.URL)
	_, err := s.FetchWaterTemp(context.Background(), fishing.Location{Name: "Champlain", NDBCBuoy: "45012"})
	if !errors.Is(err, fishing.ErrNoSource) {
		t.Fatalf("expected ErrNoSource, got %v", err)
	}
}

// TestNDBCFetchNoWTMPColumn verifies that a feed without a water
// temperature column is reported as malformed.
func TestNDBCFetchNoWTMPColumn(t *testing.T) {
	feed := `#YY  MM DD hh mm WDIR WSPD GST
#yr  mo dy hr mn degT m/s  m/s
2025 06 10 15 50 230  4.0  6.0
`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feed)
	}))
	defer server.Close()

	s := NewNDBCWaterSource(server.Client(), server.URL)
	_, err := s.FetchWaterTemp(context.Background(), fishing.Location{Name: "Champlain", NDBCBuoy: "45012"})
	if !errors.Is(err, fishing.ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput, got %v", err)
	}
}

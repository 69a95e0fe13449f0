package providers

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/nhlakes/fishing-conditions/internal/fishing"
)

const ndbcBaseURL = "https://www.ndbc.noaa.gov/data/realtime2"

// ndbcMissing marks an absent value in realtime2 feeds.
const ndbcMissing = "MM"

// NDBCWaterSource reads the most recent water temperature from a NOAA NDBC
// buoy's realtime2 text feed for locations with a buoy.
type NDBCWaterSource struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

// NewNDBCWaterSource builds the source. An empty baseURL selects the
// production endpoint.
func NewNDBCWaterSource(client *http.Client, baseURL string) *NDBCWaterSource {
	if baseURL == "" {
		baseURL = ndbcBaseURL
	}
	return &NDBCWaterSource{
		name:    "ndbc",
		baseURL: baseURL,
		httpCfg: defaultHTTPConfig(client),
		circuit: newCircuit("ndbc"),
	}
}

func (s *NDBCWaterSource) Name() string {
	return s.name
}

func (s *NDBCWaterSource) FetchWaterTemp(ctx context.Context, loc fishing.Location) (fishing.WaterTempReading, error) {
	if loc.NDBCBuoy == "" {
		return fishing.WaterTempReading{}, fishing.ErrNoSource
	}

	buildRequest := func() (*http.Request, error) {
		u := fmt.Sprintf("%s/%s.txt", s.baseURL, loc.NDBCBuoy)
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, s.httpCfg, s.circuit, buildRequest)
	if err != nil {
		return fishing.WaterTempReading{}, err
	}
	defer resp.Body.Close()

	reading, err := parseRealtime2(resp.Body)
	if err != nil {
		return fishing.WaterTempReading{}, err
	}
	reading.Notes = fmt.Sprintf("Buoy %s", loc.NDBCBuoy)
	return reading, nil
}

// parseRealtime2 scans a realtime2 feed for the newest usable water
// temperature. The first line names the columns, the second carries units,
// and data lines follow newest first with "MM" for missing values. The
// column set varies by buoy, so WTMP is located by name rather than by a
// fixed offset.
func parseRealtime2(r io.Reader) (fishing.WaterTempReading, error) {
	scanner := bufio.NewScanner(r)
	wtmpIdx := -1

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "#") {
			if wtmpIdx >= 0 {
				continue
			}
			for i, field := range strings.Fields(strings.TrimPrefix(line, "#")) {
				if field == "WTMP" {
					wtmpIdx = i
					break
				}
			}
			continue
		}

		if wtmpIdx < 0 {
			return fishing.WaterTempReading{}, fmt.Errorf("%w: buoy feed has no WTMP column", fishing.ErrMalformedInput)
		}

		parts := strings.Fields(line)
		if len(parts) <= wtmpIdx || parts[wtmpIdx] == ndbcMissing {
			continue
		}
		tempC, err := strconv.ParseFloat(parts[wtmpIdx], 64)
		if err != nil {
			continue
		}

		ts, err := parseBuoyTimestamp(parts)
		if err != nil {
			ts = time.Now().UTC()
		}

		return fishing.WaterTempReading{
			TempC:     tempC,
			Timestamp: ts,
			Source:    fishing.SourceNOAABuoy,
		}, nil
	}
	if err := scanner.Err(); err != nil {
		return fishing.WaterTempReading{}, fmt.Errorf("read buoy feed: %w", err)
	}
	return fishing.WaterTempReading{}, fishing.ErrNoSource
}

// parseBuoyTimestamp reads the leading YY MM DD hh mm columns, which NDBC
// reports in UTC.
func parseBuoyTimestamp(parts []string) (time.Time, error) {
	if len(parts) < 5 {
		return time.Time{}, fmt.Errorf("short data line")
	}
	nums := make([]int, 5)
	for i := 0; i < 5; i++ {
		n, err := strconv.Atoi(parts[i])
		if err != nil {
			return time.Time{}, fmt.Errorf("parse timestamp field %q: %w", parts[i], err)
		}
		nums[i] = n
	}
	return time.Date(nums[0], time.Month(nums[1]), nums[2], nums[3], nums[4], 0, 0, time.UTC), nil
}

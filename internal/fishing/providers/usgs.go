package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/nhlakes/fishing-conditions/internal/fishing"
)

const usgsBaseURL = "https://waterservices.usgs.gov/nwis/iv/"

// usgsMissingValue marks an unavailable reading in USGS payloads.
const usgsMissingValue = "-999999"

// USGSWaterSource reads the latest instantaneous water temperature
// (parameter 00010) from the USGS water services API for locations with a
// gauging site.
type USGSWaterSource struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

// NewUSGSWaterSource builds the source. An empty baseURL selects the
// production endpoint.
func NewUSGSWaterSource(client *http.Client, baseURL string) *USGSWaterSource {
	if baseURL == "" {
		baseURL = usgsBaseURL
	}
	return &USGSWaterSource{
		name:    "usgs",
		baseURL: baseURL,
		httpCfg: defaultHTTPConfig(client),
		circuit: newCircuit("usgs"),
	}
}

func (s *USGSWaterSource) Name() string {
	return s.name
}

func (s *USGSWaterSource) FetchWaterTemp(ctx context.Context, loc fishing.Location) (fishing.WaterTempReading, error) {
	if loc.USGSSite == "" {
		return fishing.WaterTempReading{}, fishing.ErrNoSource
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("format", "json")
		values.Set("sites", loc.USGSSite)
		values.Set("parameterCd", "00010")

		u := fmt.Sprintf("%s?%s", s.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, s.httpCfg, s.circuit, buildRequest)
	if err != nil {
		return fishing.WaterTempReading{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Value struct {
			TimeSeries []struct {
				SourceInfo struct {
					GeoLocation struct {
						GeogLocation struct {
							Latitude  *float64 `json:"latitude"`
							Longitude *float64 `json:"longitude"`
						} `json:"geogLocation"`
					} `json:"geoLocation"`
				} `json:"sourceInfo"`
				Values []struct {
					Value []struct {
						Value    string `json:"value"`
						DateTime string `json:"dateTime"`
					} `json:"value"`
				} `json:"values"`
			} `json:"timeSeries"`
		} `json:"value"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fishing.WaterTempReading{}, fmt.Errorf("%w: decode usgs payload: %v", fishing.ErrMalformedInput, err)
	}

	if len(payload.Value.TimeSeries) == 0 {
		return fishing.WaterTempReading{}, fishing.ErrNoSource
	}
	series := payload.Value.TimeSeries[0]
	if len(series.Values) == 0 || len(series.Values[0].Value) == 0 {
		return fishing.WaterTempReading{}, fishing.ErrNoSource
	}

	latest := series.Values[0].Value[0]
	if latest.Value == "" || latest.Value == usgsMissingValue {
		return fishing.WaterTempReading{}, fishing.ErrNoSource
	}

	tempC, err := strconv.ParseFloat(latest.Value, 64)
	if err != nil {
		return fishing.WaterTempReading{}, fmt.Errorf("%w: parse usgs value %q: %v", fishing.ErrMalformedInput, latest.Value, err)
	}

	ts, err := time.Parse(time.RFC3339, latest.DateTime)
	if err != nil {
		ts = time.Now()
	}

	geo := series.SourceInfo.GeoLocation.GeogLocation
	return fishing.WaterTempReading{
		TempC:     tempC,
		Timestamp: ts.UTC(),
		Source:    fishing.SourceUSGS,
		Latitude:  geo.Latitude,
		Longitude: geo.Longitude,
		Notes:     fmt.Sprintf("Site %s", loc.USGSSite),
	}, nil
}

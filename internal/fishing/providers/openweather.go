package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/nhlakes/fishing-conditions/internal/common"
	"github.com/nhlakes/fishing-conditions/internal/fishing"
)

const openWeatherBaseURL = "https://api.openweathermap.org/data/3.0/onecall"

// OpenWeatherProvider fetches the daily forecast from the OpenWeatherMap
// One Call API in imperial units, which is what the condition rules expect.
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

// NewOpenWeatherProvider builds the provider. An empty baseURL selects the
// production endpoint.
func NewOpenWeatherProvider(client *http.Client, apiKey, baseURL string) *OpenWeatherProvider {
	if baseURL == "" {
		baseURL = openWeatherBaseURL
	}
	return &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  apiKey,
		baseURL: baseURL,
		httpCfg: defaultHTTPConfig(client),
		circuit: newCircuit("openweather"),
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

// FetchForecast returns up to days daily entries for the location. Sunrise
// instants are shifted by the payload's timezone offset so formatting them
// as wall clock times reads local to the lake.
func (p *OpenWeatherProvider) FetchForecast(ctx context.Context, loc fishing.Location, days int) ([]fishing.ForecastDay, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("%w: openweather api key", fishing.ErrConfigurationMissing)
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("lat", fmt.Sprintf("%.4f", loc.Lat))
		values.Set("lon", fmt.Sprintf("%.4f", loc.Lon))
		values.Set("exclude", "current,minutely,hourly,alerts")
		values.Set("units", "imperial")
		values.Set("appid", p.apiKey)

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		TimezoneOffset int64 `json:"timezone_offset"`
		Daily          []struct {
			Dt      int64  `json:"dt"`
			Sunrise int64  `json:"sunrise"`
			Summary string `json:"summary"`
			Temp    struct {
				Day *float64 `json:"day"`
			} `json:"temp"`
			Pressure  *float64 `json:"pressure"`
			WindSpeed *float64 `json:"wind_speed"`
			WindGust  *float64 `json:"wind_gust"`
			Weather   []struct {
				Description string `json:"description"`
			} `json:"weather"`
		} `json:"daily"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode onecall payload: %v", fishing.ErrMalformedInput, err)
	}

	out := make([]fishing.ForecastDay, 0, len(payload.Daily))
	for i, d := range payload.Daily {
		if days > 0 && i >= days {
			break
		}

		day := fishing.ForecastDay{
			TempDayF:     d.Temp.Day,
			PressureHPa:  d.Pressure,
			WindSpeedMph: d.WindSpeed,
			WindGustMph:  d.WindGust,
		}
		if d.Dt > 0 {
			day.Timestamp = time.Unix(d.Dt, 0).UTC()
		}
		if d.Sunrise > 0 {
			day.Sunrise = time.Unix(d.Sunrise+payload.TimezoneOffset, 0).UTC()
		}

		desc := ""
		if len(d.Weather) > 0 {
			desc = d.Weather[0].Description
		}
		day.Summary = common.FirstNonEmpty(d.Summary, desc)

		out = append(out, day)
	}
	return out, nil
}

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/nhlakes/fishing-conditions/internal/fishing"
)

// ErrFetchExhausted reports that every fetch tier failed. It wraps the last
// tier's error.
var ErrFetchExhausted = errors.New("all fetch tiers exhausted")

// Options tune a Client beyond its primary base URL.
type Options struct {
	// AltPort is the well-known port tried on the same hostname when the
	// primary address fails. Defaults to 5000.
	AltPort string
	// SnapshotPath points at the exported weather snapshot used as the last
	// tier for weather fetches. Empty disables the tier.
	SnapshotPath string
	// Timeout bounds each network attempt. Defaults to 10s.
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client fetches fishing conditions with tiered fallback: the primary URL,
// then the same hostname on the alternate port, and for weather finally the
// local snapshot file. It holds no cached state; every call decodes fresh.
type Client struct {
	baseURL      string
	altPort      string
	snapshotPath string
	timeout      time.Duration
	httpc        *http.Client
}

// New builds a Client for the given primary base URL, e.g.
// "http://lakes.example.com:8080".
func New(baseURL string, opts Options) *Client {
	if opts.AltPort == "" {
		opts.AltPort = "5000"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	return &Client{
		baseURL:      baseURL,
		altPort:      opts.AltPort,
		snapshotPath: opts.SnapshotPath,
		timeout:      opts.Timeout,
		httpc:        opts.HTTPClient,
	}
}

// Weather returns stored observations, newest first. When both network tiers
// fail it falls back to the exported snapshot file.
func (c *Client) Weather(ctx context.Context, location string, limit int) ([]fishing.WeatherObservation, error) {
	q := url.Values{}
	if location != "" {
		q.Set("location", location)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var obs []fishing.WeatherObservation
	err := c.fetchTiers(ctx, "/api/v1/weather", q, &obs)
	if err == nil {
		return obs, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	if c.snapshotPath == "" {
		return nil, fmt.Errorf("%w: %w", ErrFetchExhausted, err)
	}

	log.Printf("client: live tiers failed (%v), reading snapshot %s", err, c.snapshotPath)
	snap, serr := c.readSnapshot()
	if serr != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchExhausted, serr)
	}
	return filterWeather(snap, location, limit), nil
}

// Forecast returns upcoming observations, optionally bounded to the next
// days days.
func (c *Client) Forecast(ctx context.Context, days, limit int) ([]fishing.WeatherObservation, error) {
	q := url.Values{}
	if days > 0 {
		q.Set("days", strconv.Itoa(days))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var obs []fishing.WeatherObservation
	if err := c.fetchTiers(ctx, "/api/v1/forecast", q, &obs); err != nil {
		return nil, wrapExhausted(ctx, err)
	}
	return obs, nil
}

// WaterTempLatest returns the freshest temperature record per lake.
func (c *Client) WaterTempLatest(ctx context.Context) (map[string]fishing.WaterTemperatureRecord, error) {
	var latest map[string]fishing.WaterTemperatureRecord
	if err := c.fetchTiers(ctx, "/api/v1/water-temperature/latest", nil, &latest); err != nil {
		return nil, wrapExhausted(ctx, err)
	}
	return latest, nil
}

// Stockings returns stocking events, newest first, optionally filtered by
// lake.
func (c *Client) Stockings(ctx context.Context, lake string, limit int) ([]fishing.StockingRecord, error) {
	q := url.Values{}
	if lake != "" {
		q.Set("lake", lake)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var recs []fishing.StockingRecord
	if err := c.fetchTiers(ctx, "/api/v1/stocking", q, &recs); err != nil {
		return nil, wrapExhausted(ctx, err)
	}
	return recs, nil
}

// Locations returns the tracked locations.
func (c *Client) Locations(ctx context.Context) ([]fishing.Location, error) {
	var locs []fishing.Location
	if err := c.fetchTiers(ctx, "/api/v1/locations", nil, &locs); err != nil {
		return nil, wrapExhausted(ctx, err)
	}
	return locs, nil
}

// fetchTiers tries the primary URL once, then the alternate port once. It
// returns the error of the last tier attempted.
func (c *Client) fetchTiers(ctx context.Context, path string, q url.Values, out any) error {
	perr := c.getOnce(ctx, buildURL(c.baseURL, path, q), out)
	if perr == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	alt, err := alternateBase(c.baseURL, c.altPort)
	if err != nil {
		return perr
	}
	log.Printf("client: primary fetch failed (%v), trying %s", perr, alt)

	aerr := c.getOnce(ctx, buildURL(alt, path, q), out)
	if aerr == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return aerr
}

// getOnce performs a single bounded GET and decodes the JSON body into out.
func (c *Client) getOnce(ctx context.Context, rawURL string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, rawURL)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", fishing.ErrMalformedInput, rawURL, err)
	}
	return nil
}

func (c *Client) readSnapshot() ([]fishing.WeatherObservation, error) {
	data, err := os.ReadFile(c.snapshotPath)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var obs []fishing.WeatherObservation
	if err := json.Unmarshal(data, &obs); err != nil {
		return nil, fmt.Errorf("%w: snapshot %s: %v", fishing.ErrMalformedInput, c.snapshotPath, err)
	}
	return obs, nil
}

// filterWeather applies the query the API would have served: location match
// first, then the limit. Snapshot order is already newest first.
func filterWeather(obs []fishing.WeatherObservation, location string, limit int) []fishing.WeatherObservation {
	out := make([]fishing.WeatherObservation, 0, len(obs))
	for _, o := range obs {
		if location != "" && o.Location != location {
			continue
		}
		out = append(out, o)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// wrapExhausted marks a terminal fetch failure, letting context errors pass
// through untouched.
func wrapExhausted(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return err
	}
	return fmt.Errorf("%w: %w", ErrFetchExhausted, err)
}

// buildURL joins the base, path and query into a request URL.
func buildURL(base, path string, q url.Values) string {
	u := base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// alternateBase rewrites the base URL to the same hostname on the alternate
// port.
func alternateBase(base, altPort string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("base url %q has no hostname", base)
	}
	u.Host = u.Hostname() + ":" + altPort
	return u.String(), nil
}

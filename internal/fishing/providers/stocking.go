package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sony/gobreaker"

	"github.com/nhlakes/fishing-conditions/internal/fishing"
)

const stockingSource = "NH Fish & Game"

var defaultStockingQueryURLs = []string{
	"https://nhfg.maps.arcgis.com/rest/services/Stocking_Report/MapServer/0/query?where=1%3D1&outFields=*&f=json",
	"https://services1.arcgis.com/RbMX0mRVOFNTdLzd/arcgis/rest/services/Stocking_Report/FeatureServer/0/query?where=1%3D1&outFields=*&f=json",
}

const defaultStockingPageURL = "https://www.wildlife.nh.gov/fishing-new-hampshire/fish-stocking-report"

var stockingDateLayouts = []string{"2006-01-02", "01/02/2006", "2006/01/02"}

// NHStockingProvider pulls stocking reports from the NH Fish and Game ArcGIS
// services. When neither service yields records it scrapes the published
// report page instead.
type NHStockingProvider struct {
	name      string
	queryURLs []string
	pageURL   string
	httpCfg   HTTPClientConfig
	circuit   *gobreaker.CircuitBreaker
}

// NewNHStockingProvider builds the provider. Empty queryURLs or pageURL
// select the production endpoints.
func NewNHStockingProvider(client *http.Client, queryURLs []string, pageURL string) *NHStockingProvider {
	if len(queryURLs) == 0 {
		queryURLs = defaultStockingQueryURLs
	}
	if pageURL == "" {
		pageURL = defaultStockingPageURL
	}
	return &NHStockingProvider{
		name:      "nh-fish-and-game",
		queryURLs: queryURLs,
		pageURL:   pageURL,
		httpCfg:   defaultHTTPConfig(client),
		circuit:   newCircuit("stocking"),
	}
}

func (p *NHStockingProvider) Name() string {
	return p.name
}

func (p *NHStockingProvider) FetchStockings(ctx context.Context) ([]fishing.StockingEvent, error) {
	var lastErr error
	for _, u := range p.queryURLs {
		events, err := p.fetchArcGIS(ctx, u)
		if err != nil {
			lastErr = err
			log.Printf("WARN: stocking service %s failed: %v", u, err)
			continue
		}
		if len(events) > 0 {
			return events, nil
		}
	}

	log.Printf("INFO: no stocking records from ArcGIS services, scraping report page")
	events, err := p.scrapeReportPage(ctx)
	if err != nil {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, err
	}
	return events, nil
}

func (p *NHStockingProvider) fetchArcGIS(ctx context.Context, queryURL string) ([]fishing.StockingEvent, error) {
	buildRequest := func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, queryURL, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// ArcGIS reports failures inside a 200 response.
	var payload struct {
		Features []struct {
			Attributes map[string]any `json:"attributes"`
			Geometry   struct {
				X *float64 `json:"x"`
				Y *float64 `json:"y"`
			} `json:"geometry"`
		} `json:"features"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode arcgis payload: %v", fishing.ErrMalformedInput, err)
	}
	if payload.Error != nil {
		return nil, fmt.Errorf("%w: arcgis error: %s", fishing.ErrUpstreamUnavailable, payload.Error.Message)
	}

	events := make([]fishing.StockingEvent, 0, len(payload.Features))
	for _, f := range payload.Features {
		lake := attrString(f.Attributes, "WATERBODY", "LAKE_NAME")
		species := attrString(f.Attributes, "SPECIES", "FISH_TYPE")
		date, dateOK := attrDate(f.Attributes, "STOCKING_DATE", "DATE")
		if lake == "" || species == "" || !dateOK {
			continue
		}

		ev := fishing.StockingEvent{
			LakeName: lake,
			Species:  species,
			Date:     date,
			FishSize: attrString(f.Attributes, "SIZE", "FISH_SIZE"),
			Quantity: attrInt(f.Attributes, "QUANTITY", "NUMBER"),
			Notes:    attrString(f.Attributes, "NOTES"),
			Source:   stockingSource,
		}
		if ev.FishSize == "" {
			ev.FishSize = "Unknown"
		}
		// ArcGIS geometry is x=longitude, y=latitude.
		ev.Longitude = f.Geometry.X
		ev.Latitude = f.Geometry.Y

		events = append(events, ev)
	}
	return events, nil
}

// scrapeReportPage extracts stocking rows from the HTML report table. The
// header row is located by its Date column, then each data row reads as
// date, waterbody, species, size, quantity.
func (p *NHStockingProvider) scrapeReportPage(ctx context.Context) ([]fishing.StockingEvent, error) {
	buildRequest := func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, p.pageURL, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: parse stocking page: %v", fishing.ErrMalformedInput, err)
	}

	events := make([]fishing.StockingEvent, 0)
	doc.Find("table tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}

		date, ok := parseStockingDate(strings.TrimSpace(cells.Eq(0).Text()))
		if !ok {
			return
		}
		lake := strings.TrimSpace(cells.Eq(1).Text())
		species := strings.TrimSpace(cells.Eq(2).Text())
		if lake == "" || species == "" {
			return
		}

		ev := fishing.StockingEvent{
			LakeName: lake,
			Species:  species,
			Date:     date,
			FishSize: "Unknown",
			Source:   stockingSource,
		}
		if cells.Length() > 3 {
			if size := strings.TrimSpace(cells.Eq(3).Text()); size != "" {
				ev.FishSize = size
			}
		}
		if cells.Length() > 4 {
			raw := strings.ReplaceAll(strings.TrimSpace(cells.Eq(4).Text()), ",", "")
			if qty, err := strconv.Atoi(raw); err == nil {
				ev.Quantity = qty
			}
		}

		events = append(events, ev)
	})

	log.Printf("INFO: scraped %d stocking rows from report page", len(events))
	return events, nil
}

func attrString(attrs map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := attrs[k]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

func attrInt(attrs map[string]any, keys ...string) int {
	for _, k := range keys {
		if v, ok := attrs[k]; ok {
			switch n := v.(type) {
			case float64:
				return int(n)
			case string:
				if parsed, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
					return parsed
				}
			}
		}
	}
	return 0
}

// attrDate accepts either an epoch in milliseconds, which the FeatureServer
// emits, or one of the date string formats seen in older MapServer layers.
func attrDate(attrs map[string]any, keys ...string) (time.Time, bool) {
	for _, k := range keys {
		v, ok := attrs[k]
		if !ok {
			continue
		}
		switch d := v.(type) {
		case float64:
			if d > 0 {
				return time.UnixMilli(int64(d)).UTC(), true
			}
		case string:
			if t, ok := parseStockingDate(d); ok {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func parseStockingDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range stockingDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

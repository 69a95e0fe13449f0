package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/nhlakes/fishing-conditions/internal/client"
)

func main() {
	var (
		baseURL  = flag.String("url", "http://127.0.0.1:8080", "primary API base URL")
		altPort  = flag.String("alt-port", "5000", "fallback port tried on the same host")
		snapshot = flag.String("snapshot", "static/weather_data.json", "weather snapshot file, the last fallback tier")
		name     = flag.String("name", "", "filter by location or lake name")
		limit    = flag.Int("limit", 10, "maximum rows")
		days     = flag.Int("days", 0, "forecast window in days, 0 for everything upcoming")
		timeout  = flag.Duration("timeout", 10*time.Second, "per-attempt timeout")
	)
	flag.Usage = usage
	flag.Parse()

	cmd := flag.Arg(0)
	if cmd == "" {
		usage()
		os.Exit(2)
	}

	c := client.New(*baseURL, client.Options{
		AltPort:      *altPort,
		SnapshotPath: *snapshot,
		Timeout:      *timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var err error
	switch cmd {
	case "weather":
		err = showWeather(ctx, c, *name, *limit)
	case "forecast":
		err = showForecast(ctx, c, *days, *limit)
	case "watertemp":
		err = showWaterTemps(ctx, c)
	case "stocking":
		err = showStockings(ctx, c, *name, *limit)
	case "locations":
		err = showLocations(ctx, c)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "fishingctl: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `usage: fishingctl [flags] <command>

Commands:
  weather     stored conditions, newest first
  forecast    upcoming conditions
  watertemp   latest water temperature per lake
  stocking    stocking events, newest first
  locations   tracked locations

Flags:
`)
	flag.PrintDefaults()
}

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
}

func showWeather(ctx context.Context, c *client.Client, name string, limit int) error {
	obs, err := c.Weather(ctx, name, limit)
	if err != nil {
		return err
	}

	w := newTable()
	fmt.Fprintln(w, "LOCATION\tDATE\tRATING\tCOLOR\tCONDITIONS")
	for _, o := range obs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			o.Location, o.DateStr, o.FishingRating, client.Color(o.FishingRating), o.Fishing)
	}
	return w.Flush()
}

func showForecast(ctx context.Context, c *client.Client, days, limit int) error {
	obs, err := c.Forecast(ctx, days, limit)
	if err != nil {
		return err
	}

	w := newTable()
	fmt.Fprintln(w, "LOCATION\tDATE\tWIND\tTEMP\tRATING\tOUTLOOK")
	for _, o := range obs {
		fmt.Fprintf(w, "%s\t%s\t%.1f mph\t%.0f F\t%s\t%s\n",
			o.Location, o.DateStr, o.WindSpeed, o.TempDay,
			o.FishingRating, client.Explanation(o.FishingRating))
	}
	return w.Flush()
}

func showWaterTemps(ctx context.Context, c *client.Client) error {
	latest, err := c.WaterTempLatest(ctx)
	if err != nil {
		return err
	}

	lakes := make([]string, 0, len(latest))
	for lake := range latest {
		lakes = append(lakes, lake)
	}
	sort.Strings(lakes)

	w := newTable()
	fmt.Fprintln(w, "LAKE\tTEMP F\tTEMP C\tSOURCE\tMEASURED")
	for _, lake := range lakes {
		rec := latest[lake]
		fmt.Fprintf(w, "%s\t%.1f\t%.1f\t%s\t%s\n",
			rec.LakeName, rec.TempF, rec.TempC, rec.Source,
			time.Unix(rec.Timestamp, 0).UTC().Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func showStockings(ctx context.Context, c *client.Client, name string, limit int) error {
	recs, err := c.Stockings(ctx, name, limit)
	if err != nil {
		return err
	}

	w := newTable()
	fmt.Fprintln(w, "LAKE\tSPECIES\tDATE\tSIZE\tQUANTITY\tSOURCE")
	for _, r := range recs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			r.LakeName, r.Species, r.StockingDate, r.FishSize, r.Quantity, r.Source)
	}
	return w.Flush()
}

func showLocations(ctx context.Context, c *client.Client) error {
	locs, err := c.Locations(ctx)
	if err != nil {
		return err
	}

	w := newTable()
	fmt.Fprintln(w, "NAME\tLATITUDE\tLONGITUDE")
	for _, l := range locs {
		fmt.Fprintf(w, "%s\t%.4f\t%.4f\n", l.Name, l.Lat, l.Lon)
	}
	return w.Flush()
}

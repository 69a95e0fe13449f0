package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "fishing_"

	resultSuccess = "success"
	resultError   = "error"

	familyWeather   = "weather"
	familyWaterTemp = "water_temperature"
	familyStocking  = "stocking"
)

var (
	registerOnce sync.Once

	sweepRuns    *prometheus.CounterVec
	sweepLatency *prometheus.HistogramVec
	sweepWrites  *prometheus.CounterVec
	sweepFails   *prometheus.CounterVec
	lastSweepAt  prometheus.Gauge

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
)

// Init registers the collectors exactly once. Safe to call from every
// binary that imports the package.
func Init() {
	registerOnce.Do(func() {
		sweepRuns = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "sweep_runs_total",
				Help: "Total ingestion sweeps by result",
			},
			[]string{"result"},
		)
		sweepLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "sweep_latency_seconds",
				Help:    "Ingestion sweep latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		sweepWrites = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "sweep_records_written_total",
				Help: "Records written per sweep by family",
			},
			[]string{"family"},
		)
		sweepFails = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "sweep_failures_total",
				Help: "Per-location sweep failures by stage",
			},
			[]string{"stage"},
		)
		lastSweepAt = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "last_sweep_timestamp_seconds",
				Help: "Unix time of the last completed sweep",
			},
		)

		httpRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_requests_total",
				Help: "API requests by route and status",
			},
			[]string{"route", "status"},
		)
		httpLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "http_request_latency_seconds",
				Help:    "API request latency in seconds by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		)

		prometheus.MustRegister(
			sweepRuns,
			sweepLatency,
			sweepWrites,
			sweepFails,
			lastSweepAt,
			httpRequests,
			httpLatency,
		)
	})
}

// ObserveSweep records one sweep run with its duration and result.
func ObserveSweep(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if sweepRuns != nil {
		sweepRuns.WithLabelValues(result).Inc()
	}
	if sweepLatency != nil {
		sweepLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
	if lastSweepAt != nil {
		lastSweepAt.SetToCurrentTime()
	}
}

// AddRecordsWritten counts stored records for one data family.
func AddRecordsWritten(family string, count int) {
	if count <= 0 {
		return
	}
	if family == "" {
		family = "unknown"
	}
	if sweepWrites != nil {
		sweepWrites.WithLabelValues(family).Add(float64(count))
	}
}

// IncSweepFailure counts a per-location failure by pipeline stage.
func IncSweepFailure(stage string) {
	if stage == "" {
		stage = "unknown"
	}
	if sweepFails != nil {
		sweepFails.WithLabelValues(stage).Inc()
	}
}

// ObserveHTTPRequest records one served API request.
func ObserveHTTPRequest(route string, status int, duration time.Duration) {
	if route == "" {
		route = "unknown"
	}
	if httpRequests != nil {
		httpRequests.WithLabelValues(route, statusText(status)).Inc()
	}
	if httpLatency != nil {
		httpLatency.WithLabelValues(route).Observe(duration.Seconds())
	}
}

func statusText(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	FamilyWeather   = familyWeather
	FamilyWaterTemp = familyWaterTemp
	FamilyStocking  = familyStocking
)

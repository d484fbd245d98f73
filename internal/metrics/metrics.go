package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Scan cycle metrics
	CyclesRun = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sharpwatch_cycles_total",
			Help: "Total number of scan cycles",
		},
		[]string{"status"}, // completed, aborted, skipped
	)

	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sharpwatch_cycle_duration_seconds",
			Help:    "Duration of full scan cycles",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sharpwatch_stage_duration_seconds",
			Help:    "Duration of individual cycle stages",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"stage"}, // refresh_wallets, ingest_markets, dispatch
	)

	// Profile refresh metrics
	ProfilesRefreshed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sharpwatch_profiles_refreshed_total",
			Help: "Total number of bettor profile refreshes",
		},
		[]string{"status"}, // success, missing, error
	)

	SharpWallets = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sharpwatch_sharp_wallets",
			Help: "Number of wallets currently classified as sharp",
		},
	)

	// Market ingestion metrics
	MarketsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sharpwatch_markets_ingested_total",
			Help: "Total number of markets scanned for holders",
		},
		[]string{"category", "status"}, // mlb/nfl/..., success/error
	)

	SightingsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sharpwatch_sightings_recorded_total",
			Help: "Total number of whale sightings written",
		},
		[]string{"status"}, // new, replay
	)

	// Alert metrics
	AlertsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sharpwatch_alerts_dispatched_total",
			Help: "Total number of sharp bettor alerts dispatched",
		},
		[]string{"status"}, // success, error
	)

	AlertsSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sharpwatch_alerts_suppressed_total",
			Help: "Total number of alerts suppressed as already sent",
		},
	)

	// API metrics
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sharpwatch_api_requests_total",
			Help: "Total number of Polymarket API requests",
		},
		[]string{"api", "endpoint", "status"}, // gamma/data, /markets, success/error
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sharpwatch_api_request_duration_seconds",
			Help:    "Duration of Polymarket API requests",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"api", "endpoint"},
	)

	// Database metrics
	DatabaseQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sharpwatch_database_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"}, // get/upsert/select, success/error
	)

	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sharpwatch_database_query_duration_seconds",
			Help:    "Duration of database queries",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	// System health
	HealthChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sharpwatch_health_checks_total",
			Help: "Total number of health check requests",
		},
		[]string{"status"}, // healthy/unhealthy
	)
)

// RecordCycle records the outcome and duration of one scan cycle
func RecordCycle(status string, duration time.Duration) {
	CyclesRun.WithLabelValues(status).Inc()
	if status != "skipped" {
		CycleDuration.Observe(duration.Seconds())
	}
}

// RecordStage records the duration of a single cycle stage
func RecordStage(stage string, duration time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordAPIRequest records API request metrics
func RecordAPIRequest(api, endpoint string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	APIRequests.WithLabelValues(api, endpoint, status).Inc()
	APIRequestDuration.WithLabelValues(api, endpoint).Observe(duration.Seconds())
}

// RecordDatabaseQuery records database query metrics
func RecordDatabaseQuery(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DatabaseQueries.WithLabelValues(operation, status).Inc()
	DatabaseQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordHealthCheck records health check status
func RecordHealthCheck(healthy bool) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}
	HealthChecks.WithLabelValues(status).Inc()
}

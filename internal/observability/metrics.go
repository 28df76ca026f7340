// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Forecast cycle metrics
	CyclesTotal       *prometheus.CounterVec
	CycleDuration     prometheus.Histogram
	TrialsSimulated   prometheus.Counter
	FallbackForecasts prometheus.Counter

	// Signal metrics
	SignalsTotal *prometheus.CounterVec

	// Monitor metrics
	SlotEventsTotal   *prometheus.CounterVec
	SlotEventsDropped prometheus.Counter
	SessionsResolved  *prometheus.CounterVec

	// Market data metrics
	APIRequestLatency *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulCycle prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "market_forecast_lab"
	}

	return &Metrics{
		CyclesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "forecast",
			Name:      "cycles_total",
			Help:      "Total number of forecast cycles by status",
		}, []string{"status"}),
		CycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "forecast",
			Name:      "cycle_duration_seconds",
			Help:      "Forecast cycle execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}),
		TrialsSimulated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "forecast",
			Name:      "trials_simulated_total",
			Help:      "Total number of ensemble trials simulated",
		}),
		FallbackForecasts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "forecast",
			Name:      "fallback_forecasts_total",
			Help:      "Total number of cycles that fell back to a jittered estimate",
		}),

		SignalsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signal",
			Name:      "signals_total",
			Help:      "Total number of blended signals by action",
		}, []string{"action"}),

		SlotEventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "slot_events_total",
			Help:      "Total number of slot events by type",
		}, []string{"type"}),
		SlotEventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "slot_events_dropped_total",
			Help:      "Total number of slot events dropped on a full channel",
		}),
		SessionsResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "sessions_resolved_total",
			Help:      "Total number of session outcomes by result",
		}, []string{"result"}),

		APIRequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "api_request_latency_seconds",
			Help:      "Market data API request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		LastSuccessfulCycle: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_cycle_timestamp",
			Help:      "Unix timestamp of the last successful forecast cycle",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordCycle records a completed forecast cycle.
func RecordCycle(status string, durationSeconds float64) {
	DefaultMetrics.CyclesTotal.WithLabelValues(status).Inc()
	DefaultMetrics.CycleDuration.Observe(durationSeconds)
	if status == "success" {
		DefaultMetrics.LastSuccessfulCycle.SetToCurrentTime()
	}
}

// RecordTrials adds to the simulated trial counter.
func RecordTrials(n int) {
	DefaultMetrics.TrialsSimulated.Add(float64(n))
}

// RecordFallback increments the fallback forecast counter.
func RecordFallback() {
	DefaultMetrics.FallbackForecasts.Inc()
}

// RecordSignal increments the signal counter for an action.
func RecordSignal(action string) {
	DefaultMetrics.SignalsTotal.WithLabelValues(action).Inc()
}

// RecordSlotEvent increments the slot event counter for an event type.
func RecordSlotEvent(eventType string) {
	DefaultMetrics.SlotEventsTotal.WithLabelValues(eventType).Inc()
}

// RecordSlotEventDropped increments the dropped slot event counter.
func RecordSlotEventDropped() {
	DefaultMetrics.SlotEventsDropped.Inc()
}

// RecordSessionResolved increments the session outcome counter for a result.
func RecordSessionResolved(result string) {
	DefaultMetrics.SessionsResolved.WithLabelValues(result).Inc()
}

// RecordAPILatency records market data API request latency.
func RecordAPILatency(endpoint string, seconds float64) {
	DefaultMetrics.APIRequestLatency.WithLabelValues(endpoint).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Store
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "calsync_db_query_duration_seconds",
			Help:    "Duration of store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calsync_db_query_errors_total",
			Help: "Total number of failed store operations",
		},
		[]string{"operation", "table", "error_type"},
	)

	DBTxRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calsync_db_tx_retries_total",
			Help: "Transactions retried after a write-write conflict",
		},
		[]string{"operation"},
	)

	BulkReplaceRows = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "calsync_bulk_replace_rows",
			Help:    "Rows inserted per month replacement after deduplication",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	BulkDuplicatesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "calsync_bulk_duplicates_dropped_total",
			Help: "Submitted events discarded as duplicates during month replacement",
		},
	)

	StoreRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "calsync_store_rows",
			Help: "Row count per table, refreshed by the maintenance job",
		},
		[]string{"table"},
	)

	// HTTP API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calsync_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "calsync_api_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "calsync_api_active_requests",
			Help: "Requests currently being served",
		},
	)

	// Realtime
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "calsync_websocket_connections",
			Help: "Current number of open websocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calsync_websocket_messages_sent_total",
			Help: "Notifications queued to websocket clients",
		},
		[]string{"type"},
	)

	WSClientsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calsync_websocket_clients_dropped_total",
			Help: "Clients removed by the hub",
		},
		[]string{"reason"}, // buffer_full, write_error, read_error
	)

	FeedPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calsync_changefeed_published_total",
			Help: "Change notifications published to the changefeed",
		},
		[]string{"result"}, // ok, error, rejected
	)

	FeedForwarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "calsync_changefeed_forwarded_total",
			Help: "Changefeed messages forwarded to the local hub",
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "calsync_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	MaintenanceRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calsync_maintenance_runs_total",
			Help: "Maintenance job executions",
		},
		[]string{"job", "result"},
	)

	ViewCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calsync_view_cache_lookups_total",
			Help: "Derived month view cache lookups by result (hit, miss)",
		},
		[]string{"result"},
	)
)

// ErrorTyper is implemented by errors that want a stable metric label.
type ErrorTyper interface {
	ErrorType() string
}

// RecordDBQuery records one store operation.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table, errorType(err)).Inc()
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordBreakerState maps a gobreaker state string onto the gauge.
func RecordBreakerState(name, state string) {
	v := 0.0
	switch state {
	case "half-open":
		v = 1
	case "open":
		v = 2
	}
	CircuitBreakerState.WithLabelValues(name).Set(v)
}

// errorType keeps label cardinality bounded: driver messages are free text.
func errorType(err error) string {
	var typer ErrorTyper
	if errors.As(err, &typer) {
		return typer.ErrorType()
	}
	return "other"
}

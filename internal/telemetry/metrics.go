// Package telemetry provides application-level observability for the OpenRide backend.
//
// All metrics are registered against the default Prometheus registry and are
// served on the side-channel HTTP server started by main.go:
//
//	GET http://<host>:<RIDE_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090. The endpoint is not served by the Gin router so it stays
// off the public ingress and outside the rate-limiting middleware.
//
// HTTP metrics use c.FullPath() (route template such as /api/v1/admin/users/:id)
// rather than the raw request URL to prevent unbounded label cardinality from
// user-supplied path segments.
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics — labelled by method, route template, and status code.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Audit metrics.
//
// AuditRecordsTotal counts every audit record written through the recorder,
// by action and severity. Because records are append-only, this counter
// mirrors the growth of the audit_logs table and can be alerted on when a
// high/critical action rate spikes.
//
// AuditWriteFailuresTotal counts failed audit inserts. A non-zero rate means
// either the database is unhealthy or a fail-closed admin mutation was
// aborted by its audit write.
var (
	AuditRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_records_total",
			Help: "Total number of audit records written, by action and severity.",
		},
		[]string{"action", "severity"},
	)

	AuditWriteFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_write_failures_total",
			Help: "Total number of audit record writes that failed.",
		},
	)
)

// Admin CRUD metrics — one counter per entity type so dashboards can show
// which entities admins touch most.
var AdminUpdatesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "admin_updates_total",
		Help: "Total number of admin entity updates applied, by entity type.",
	},
	[]string{"entity_type"},
)

// Database connection pool gauges, polled every 30 seconds by
// StartDBStatsCollector.
var (
	dbOpenConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Number of established connections both in use and idle.",
	})
	dbInUseConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "db_in_use_connections",
		Help: "Number of connections currently in use.",
	})
	dbWaitCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "db_wait_count_total",
		Help: "Cumulative number of connections waited for.",
	})
)

// StartDBStatsCollector begins exporting database/sql pool statistics to
// Prometheus. It polls db.Stats() every 30 seconds in a background goroutine
// for the lifetime of the process.
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			stats := db.Stats()
			dbOpenConnections.Set(float64(stats.OpenConnections))
			dbInUseConnections.Set(float64(stats.InUse))
			dbWaitCount.Set(float64(stats.WaitCount))
		}
	}()
	slog.Info("database pool stats collector started", "interval", "30s")
}

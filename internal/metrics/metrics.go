// Package metrics exposes Prometheus HTTP metrics for the clinic API.
package metrics

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinic_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clinic_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	HTTPActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clinic_http_active_requests",
			Help: "Number of in-flight HTTP requests",
		},
	)

	// UploadedFileSize is observed once per stored file.
	UploadedFileSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "clinic_uploaded_file_size_bytes",
			Help:    "Size of stored patient files",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		},
	)
)

// RecordHTTPRequest records metrics for an HTTP request
func RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	status := strconv.Itoa(statusCode)

	HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

func RecordUploadedFile(size int64) {
	UploadedFileSize.Observe(float64(size))
}

// RegisterDBStats exports connection pool statistics of db.
// Registering the same pool twice is not an error.
func RegisterDBStats(db *sql.DB) error {
	err := prometheus.Register(collectors.NewDBStatsCollector(db, "clinic"))
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		return nil
	}
	return err
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

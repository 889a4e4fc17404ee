package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "screengrab"

	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusSkipped = "skipped"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
		},
		[]string{"method", "route"},
	)

	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "videos",
			Name:      "uploads_total",
			Help:      "Total video byte uploads",
		},
		[]string{"content_type", "status"},
	)

	UploadBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "videos",
			Name:      "upload_bytes_total",
			Help:      "Total video bytes uploaded",
		},
		[]string{"content_type"},
	)

	// StreamsTotal counts successful stream deliveries; it tracks the persisted view counter.
	StreamsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "videos",
			Name:      "streams_total",
			Help:      "Total successful video streams",
		},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "emails_total",
			Help:      "Notification emails by kind and outcome",
		},
		[]string{"kind", "status"},
	)

	SweepVideosTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "videos_total",
			Help:      "Videos touched by the expiration sweep",
		},
		[]string{"action"},
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "duration_seconds",
			Help:      "Expiration sweep duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 30, 120},
		},
	)
)

// RecordRequest records an HTTP request.
func RecordRequest(method, route, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, route, status).Inc()
	RequestDuration.WithLabelValues(method, route).Observe(durationSec)
}

// RecordUpload records a video byte upload.
func RecordUpload(contentType, status string, bytes int64) {
	UploadsTotal.WithLabelValues(contentType, status).Inc()
	if status == StatusSuccess {
		UploadBytesTotal.WithLabelValues(contentType).Add(float64(bytes))
	}
}

// RecordStream records a counted stream delivery.
func RecordStream() {
	StreamsTotal.Inc()
}

// RecordNotification records an email attempt.
func RecordNotification(kind, status string) {
	NotificationsTotal.WithLabelValues(kind, status).Inc()
}

// RecordSweep records the outcome of one sweep pass.
func RecordSweep(expired, purged, blobFailures int, durationSec float64) {
	SweepVideosTotal.WithLabelValues("expired").Add(float64(expired))
	SweepVideosTotal.WithLabelValues("purged").Add(float64(purged))
	SweepVideosTotal.WithLabelValues("blob_delete_failed").Add(float64(blobFailures))
	SweepDuration.Observe(durationSec)
}

package metrics

import (
	"strconv"
	"time"

	"github.com/marmos91/bucketfs/pkg/filesystem"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// filesystemMetrics is the Prometheus implementation of filesystem.Metrics.
type filesystemMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesTotal        *prometheus.CounterVec
	listingConflicts  prometheus.Counter
}

var _ filesystem.Metrics = (*filesystemMetrics)(nil)

// NewFilesystemMetrics returns the Prometheus-backed filesystem.Metrics,
// or nil (no-op) when metrics are disabled.
func NewFilesystemMetrics() filesystem.Metrics {
	if !IsEnabled() {
		return nil
	}
	return newFilesystemMetrics(GetRegistry())
}

func newFilesystemMetrics(reg prometheus.Registerer) *filesystemMetrics {
	return &filesystemMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of filesystem operations by operation, status and errno",
			},
			[]string{"operation", "status", "errno"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of filesystem operations in seconds",
				Buckets: []float64{
					0.001, // 1ms
					0.005, // 5ms
					0.01,  // 10ms
					0.05,  // 50ms
					0.1,   // 100ms
					0.5,   // 500ms
					1.0,   // 1s
					5.0,   // 5s
				},
			},
			[]string{"operation"},
		),
		bytesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bytes_total",
				Help:      "Total payload bytes moved by read and write",
			},
			[]string{"operation"},
		),
		listingConflicts: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "listing_conflicts_total",
				Help:      "Conditional directory listing writes that lost a race and were retried",
			},
		),
	}
}

func (m *filesystemMetrics) ObserveOperation(op string, duration time.Duration, errno int) {
	status := "success"
	if errno != 0 {
		status = "error"
	}
	m.operationsTotal.WithLabelValues(op, status, strconv.Itoa(errno)).Inc()
	m.operationDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func (m *filesystemMetrics) RecordBytes(op string, bytes int64) {
	if bytes > 0 {
		m.bytesTotal.WithLabelValues(op).Add(float64(bytes))
	}
}

func (m *filesystemMetrics) RecordListingConflict() {
	m.listingConflicts.Inc()
}

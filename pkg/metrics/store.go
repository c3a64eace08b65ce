package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/marmos91/bucketfs/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// StoreMetrics counts and times object store calls per backend.
//
// A nil *StoreMetrics is valid and instruments nothing.
type StoreMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	inFlight          *prometheus.GaugeVec
}

// NewStoreMetrics returns the Prometheus store collectors, or nil when
// metrics are disabled.
func NewStoreMetrics() *StoreMetrics {
	if !IsEnabled() {
		return nil
	}
	return newStoreMetrics(GetRegistry())
}

func newStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	return &StoreMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_operations_total",
				Help:      "Total number of object store calls by backend, operation and status",
			},
			[]string{"backend", "operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_operation_duration_seconds",
				Help:      "Duration of object store calls in seconds",
				Buckets: []float64{
					0.001, // 1ms
					0.01,  // 10ms
					0.025, // 25ms
					0.05,  // 50ms
					0.1,   // 100ms
					0.25,  // 250ms
					0.5,   // 500ms
					1.0,   // 1s
					2.5,   // 2.5s
					10.0,  // 10s
				},
			},
			[]string{"backend", "operation"},
		),
		inFlight: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "store_operations_in_flight",
				Help:      "Object store calls currently in progress",
			},
			[]string{"backend"},
		),
	}
}

// Instrument wraps s so every call is recorded under backend. The wrapper
// keeps the optional capabilities of s.
func (m *StoreMetrics) Instrument(s store.ObjectStore, backend string) store.ObjectStore {
	if m == nil {
		return s
	}

	inFlight := m.inFlight.WithLabelValues(backend)
	return store.Intercept(s, func(ctx context.Context, op, key string, call func(context.Context) error) error {
		inFlight.Inc()
		start := time.Now()
		err := call(ctx)
		inFlight.Dec()

		m.operationsTotal.WithLabelValues(backend, op, storeStatus(err)).Inc()
		m.operationDuration.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
		return err
	})
}

// storeStatus classifies a store call outcome for the status label.
func storeStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, store.ErrObjectNotFound):
		return "not_found"
	case errors.Is(err, store.ErrPreconditionFailed):
		return "conflict"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}

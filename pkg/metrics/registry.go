// Package metrics provides Prometheus metrics for bucketfs.
//
// All metrics are optional. Until InitRegistry is called the constructors
// return nil, which the filesystem and the store decorators treat as
// "metrics disabled" at no cost.
//
// Usage:
//
//	metrics.InitRegistry()
//
//	objects = metrics.NewStoreMetrics().Instrument(objects, "s3")
//	cfg.Metrics = metrics.NewFilesystemMetrics()
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// namespace prefixes every metric name.
const namespace = "bucketfs"

var (
	// registry is written once by InitRegistry and read many times.
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry creates the global Prometheus registry. Later calls are
// ignored.
//
// The registry also carries the Go runtime and process collectors.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			prometheus.NewGoCollector(),
			prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		)
	})
}

// GetRegistry returns the global registry, or nil when metrics are
// disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}

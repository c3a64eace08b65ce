package filesystem

import "time"

// Metrics provides observability for namespace operations.
//
// This is optional: with no implementation configured, collection is
// skipped. pkg/metrics provides the Prometheus implementation.
type Metrics interface {
	// ObserveOperation records one namespace operation (mkdir, write, ...)
	// with its duration and errno outcome (0 on success)
	ObserveOperation(op string, duration time.Duration, errno int)

	// RecordBytes records payload bytes moved by read or write
	RecordBytes(op string, bytes int64)

	// RecordListingConflict records a conditional listing write that lost
	// a race and was retried
	RecordListingConflict()
}

// noopMetrics is the default no-op implementation
type noopMetrics struct{}

func (noopMetrics) ObserveOperation(op string, duration time.Duration, errno int) {}
func (noopMetrics) RecordBytes(op string, bytes int64)                             {}
func (noopMetrics) RecordListingConflict()                                         {}

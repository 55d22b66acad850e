package s3

import "time"

// Metrics provides observability for S3 requests.
//
// pkg/metrics supplies a Prometheus implementation; when none is configured
// observations are discarded.
type Metrics interface {
	// ObserveOperation records one S3 API call with its duration and outcome
	ObserveOperation(operation string, duration time.Duration, err error)

	// RecordBytes records bytes transferred; direction is "read" or "write"
	RecordBytes(direction string, bytes int64)
}

type noopMetrics struct{}

func (noopMetrics) ObserveOperation(string, time.Duration, error) {}
func (noopMetrics) RecordBytes(string, int64)                     {}

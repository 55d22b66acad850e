package metrics

import "time"

// FSMetrics provides observability for file system operations.
//
// One instance is bound to one workspace. The interface is optional: a
// file system created without metrics uses a no-op implementation.
//
// Example usage:
//
//	// With metrics enabled
//	fs := vfs.New(meta, blobs, vfs.Options{Metrics: prometheus.NewFSMetrics("main")})
//
//	// Without metrics (no-op)
//	fs := vfs.New(meta, blobs, vfs.Options{})
type FSMetrics interface {
	// ObserveOperation records a completed file system operation.
	//
	// Parameters:
	//   - operation: Operation name (e.g., "stat", "write_file", "rename")
	//   - duration: Time taken by the operation
	//   - err: Error if the operation failed, nil if successful
	ObserveOperation(operation string, duration time.Duration, err error)

	// RecordBytesWritten adds n bytes of file content written.
	RecordBytesWritten(n int64)

	// RecordWatchEvent counts one dispatched watch event of the given kind.
	RecordWatchEvent(kind string)
}

type noopFSMetrics struct{}

// NewNoopFSMetrics returns an FSMetrics that discards everything.
func NewNoopFSMetrics() FSMetrics {
	return noopFSMetrics{}
}

func (noopFSMetrics) ObserveOperation(string, time.Duration, error) {}
func (noopFSMetrics) RecordBytesWritten(int64)                      {}
func (noopFSMetrics) RecordWatchEvent(string)                       {}

package prometheus

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/esm-dev/modern-monaco-sub001/pkg/metrics"
)

// fsVectors are the metric families shared by every workspace. They are
// registered once; each workspace gets a view bound to its label value.
type fsVectors struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	watchEventsTotal  *prometheus.CounterVec
	bytesWritten      *prometheus.CounterVec
}

var (
	fsOnce sync.Once
	fsVecs *fsVectors
)

func sharedFSVectors(reg prometheus.Registerer) *fsVectors {
	fsOnce.Do(func() {
		fsVecs = &fsVectors{
			operationsTotal: promauto.With(reg).NewCounterVec(
				prometheus.CounterOpts{
					Name: "vfs_operations_total",
					Help: "Total number of file system operations by workspace, operation and status",
				},
				[]string{"workspace", "operation", "status"},
			),
			operationDuration: promauto.With(reg).NewHistogramVec(
				prometheus.HistogramOpts{
					Name: "vfs_operation_duration_milliseconds",
					Help: "Duration of file system operations in milliseconds",
					Buckets: []float64{
						0.1,  // 100us
						1,    // 1ms
						10,   // 10ms
						100,  // 100ms
						1000, // 1s
					},
				},
				[]string{"workspace", "operation"},
			),
			watchEventsTotal: promauto.With(reg).NewCounterVec(
				prometheus.CounterOpts{
					Name: "vfs_watch_events_total",
					Help: "Total number of watch events dispatched by workspace and kind",
				},
				[]string{"workspace", "kind"},
			),
			bytesWritten: promauto.With(reg).NewCounterVec(
				prometheus.CounterOpts{
					Name: "vfs_bytes_written_total",
					Help: "Total bytes of file content written",
				},
				[]string{"workspace"},
			),
		}
	})
	return fsVecs
}

// fsMetrics is the Prometheus implementation of metrics.FSMetrics.
type fsMetrics struct {
	workspace string
	vecs      *fsVectors
}

// NewFSMetrics creates a Prometheus-backed FSMetrics for one workspace.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry not called).
func NewFSMetrics(workspace string) metrics.FSMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopFSMetrics()
	}

	return &fsMetrics{
		workspace: workspace,
		vecs:      sharedFSVectors(metrics.GetRegistry()),
	}
}

func (m *fsMetrics) ObserveOperation(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	m.vecs.operationsTotal.WithLabelValues(m.workspace, operation, status).Inc()
	m.vecs.operationDuration.WithLabelValues(m.workspace, operation).Observe(float64(duration.Microseconds()) / 1000)
}

func (m *fsMetrics) RecordBytesWritten(n int64) {
	m.vecs.bytesWritten.WithLabelValues(m.workspace).Add(float64(n))
}

func (m *fsMetrics) RecordWatchEvent(kind string) {
	m.vecs.watchEventsTotal.WithLabelValues(m.workspace, kind).Inc()
}

package prometheus

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/esm-dev/modern-monaco-sub001/pkg/metrics"
	"github.com/esm-dev/modern-monaco-sub001/pkg/store/blob/s3"
)

type s3Vectors struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesTransferred  *prometheus.CounterVec
}

var (
	s3Once sync.Once
	s3Vecs *s3Vectors
)

func sharedS3Vectors(reg prometheus.Registerer) *s3Vectors {
	s3Once.Do(func() {
		s3Vecs = &s3Vectors{
			operationsTotal: promauto.With(reg).NewCounterVec(
				prometheus.CounterOpts{
					Name: "vfs_s3_operations_total",
					Help: "Total number of S3 operations by blob store, operation type and status",
				},
				[]string{"store", "operation", "status"},
			),
			operationDuration: promauto.With(reg).NewHistogramVec(
				prometheus.HistogramOpts{
					Name: "vfs_s3_operation_duration_seconds",
					Help: "Duration of S3 operations in seconds",
					Buckets: []float64{
						0.01,  // 10ms
						0.05,  // 50ms
						0.1,   // 100ms
						0.5,   // 500ms
						1.0,   // 1s
						5.0,   // 5s
						30.0,  // 30s
					},
				},
				[]string{"store", "operation"},
			),
			bytesTransferred: promauto.With(reg).NewCounterVec(
				prometheus.CounterOpts{
					Name: "vfs_s3_bytes_transferred_total",
					Help: "Total bytes transferred in S3 operations",
				},
				[]string{"store", "direction"},
			),
		}
	})
	return s3Vecs
}

// s3Metrics is the Prometheus implementation of s3.Metrics.
type s3Metrics struct {
	store string
	vecs  *s3Vectors
}

// NewS3Metrics creates a Prometheus-backed s3.Metrics for the named blob store.
//
// Returns nil if metrics are not enabled, which makes the S3 blob store use
// its built-in no-op implementation.
func NewS3Metrics(store string) s3.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	return &s3Metrics{
		store: store,
		vecs:  sharedS3Vectors(metrics.GetRegistry()),
	}
}

func (m *s3Metrics) ObserveOperation(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.vecs.operationsTotal.WithLabelValues(m.store, operation, status).Inc()
	m.vecs.operationDuration.WithLabelValues(m.store, operation).Observe(duration.Seconds())
}

func (m *s3Metrics) RecordBytes(direction string, bytes int64) {
	m.vecs.bytesTransferred.WithLabelValues(m.store, direction).Add(float64(bytes))
}

package prometheus

import (
	"errors"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esm-dev/modern-monaco-sub001/pkg/metrics"
)

func findMetric(t *testing.T, name string, labels map[string]string) *dto.Metric {
	t.Helper()

	families, err := metrics.GetRegistry().Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	next:
		for _, m := range family.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue next
				}
			}
			return m
		}
	}
	return nil
}

func TestFSMetrics(t *testing.T) {
	metrics.InitRegistry()

	m := NewFSMetrics("metrics-test")
	m.ObserveOperation("write_file", 3*time.Millisecond, nil)
	m.ObserveOperation("write_file", time.Millisecond, errors.New("boom"))
	m.RecordBytesWritten(14)
	m.RecordWatchEvent("create")

	// A second workspace shares the registered vectors without panicking
	other := NewFSMetrics("metrics-test-other")
	other.RecordBytesWritten(1)

	ok := findMetric(t, "vfs_operations_total", map[string]string{"workspace": "metrics-test", "operation": "write_file", "status": "success"})
	require.NotNil(t, ok)
	assert.Equal(t, 1.0, ok.GetCounter().GetValue())

	failed := findMetric(t, "vfs_operations_total", map[string]string{"workspace": "metrics-test", "status": "error"})
	require.NotNil(t, failed)
	assert.Equal(t, 1.0, failed.GetCounter().GetValue())

	written := findMetric(t, "vfs_bytes_written_total", map[string]string{"workspace": "metrics-test"})
	require.NotNil(t, written)
	assert.Equal(t, 14.0, written.GetCounter().GetValue())

	events := findMetric(t, "vfs_watch_events_total", map[string]string{"workspace": "metrics-test", "kind": "create"})
	require.NotNil(t, events)
	assert.Equal(t, 1.0, events.GetCounter().GetValue())
}

func TestS3Metrics(t *testing.T) {
	metrics.InitRegistry()

	m := NewS3Metrics("blobs")
	require.NotNil(t, m)
	m.ObserveOperation("PutObject", 20*time.Millisecond, nil)
	m.RecordBytes("write", 100)

	bytes := findMetric(t, "vfs_s3_bytes_transferred_total", map[string]string{"store": "blobs", "direction": "write"})
	require.NotNil(t, bytes)
	assert.Equal(t, 100.0, bytes.GetCounter().GetValue())
}

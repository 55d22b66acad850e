package config

import (
	"context"

	"github.com/esm-dev/modern-monaco-sub001/pkg/metrics"
	"github.com/esm-dev/modern-monaco-sub001/pkg/registry"
)

// InitializeMetrics prepares metric collection based on configuration.
//
// If metrics are enabled, the global Prometheus registry is initialized and
// a metrics HTTP server (not yet started) is returned. Otherwise it returns
// nil and every component falls back to no-op metrics.
//
// Call it before InitializeRouter so the workspace file systems pick up the
// Prometheus implementation.
func InitializeMetrics(cfg *Config) *metrics.Server {
	if !cfg.Metrics.Enabled {
		return nil
	}

	metrics.InitRegistry()

	return metrics.NewServer(metrics.ServerConfig{
		Port: cfg.Metrics.Port,
	})
}

// healthChecker is implemented by stores that can report their own health,
// such as the BadgerDB metadata store.
type healthChecker interface {
	Healthcheck(ctx context.Context) error
}

// RegisterHealthChecks adds a /healthz check for every store in reg that can
// report its health. Checks are named "metadata/<store>" and "blob/<store>".
func RegisterHealthChecks(server *metrics.Server, reg *registry.Registry) {
	for _, name := range reg.ListMetadataStores() {
		store, err := reg.GetMetadataStore(name)
		if err != nil {
			continue
		}
		if hc, ok := store.(healthChecker); ok {
			server.AddCheck("metadata/"+name, hc.Healthcheck)
		}
	}
	for _, name := range reg.ListBlobStores() {
		store, err := reg.GetBlobStore(name)
		if err != nil {
			continue
		}
		if hc, ok := store.(healthChecker); ok {
			server.AddCheck("blob/"+name, hc.Healthcheck)
		}
	}
}

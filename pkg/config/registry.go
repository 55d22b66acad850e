package config

import (
	"context"
	"fmt"
	"slices"

	"github.com/esm-dev/modern-monaco-sub001/internal/logger"
	"github.com/esm-dev/modern-monaco-sub001/pkg/gc"
	promMetrics "github.com/esm-dev/modern-monaco-sub001/pkg/metrics/prometheus"
	"github.com/esm-dev/modern-monaco-sub001/pkg/registry"
	"github.com/esm-dev/modern-monaco-sub001/pkg/vfs"
	"github.com/esm-dev/modern-monaco-sub001/pkg/workspace"
)

// InitializeRegistry creates a Registry holding every configured store, with
// each workspace bound to its stores.
//
// On error, stores opened so far are closed before returning.
//
// Example:
//
//	cfg, _ := config.Load("config.yaml")
//	reg, err := config.InitializeRegistry(ctx, cfg)
//	if err != nil {
//	    log.Fatalf("Failed to initialize registry: %v", err)
//	}
//	defer reg.Close()
func InitializeRegistry(ctx context.Context, cfg *Config) (*registry.Registry, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is nil")
	}

	logger.Debug("Initializing registry from configuration")
	reg := registry.NewRegistry()

	if err := registerStores(ctx, reg, cfg); err != nil {
		_ = reg.Close()
		return nil, err
	}
	logger.Debug("Registered %d metadata store(s) and %d blob store(s)", reg.CountMetadataStores(), reg.CountBlobStores())

	for _, ws := range cfg.Workspaces {
		_, err := reg.Bind(registry.BindingConfig{
			Workspace:     ws.Name,
			MetadataStore: ws.MetadataStore,
			BlobStore:     ws.BlobStore,
		})
		if err != nil {
			_ = reg.Close()
			return nil, fmt.Errorf("failed to bind workspace %q: %w", ws.Name, err)
		}
	}

	return reg, nil
}

// registerStores opens and registers every configured store in name order.
// Metadata stores come first so blob stores can share their databases.
func registerStores(ctx context.Context, reg *registry.Registry, cfg *Config) error {
	shared := make(badgerDBs)

	for _, name := range sortedNames(cfg.Metadata.Stores) {
		storeCfg := cfg.Metadata.Stores[name]
		logger.Debug("Creating metadata store %q (type: %s)", name, storeCfg.Type)

		store, err := createMetadataStore(ctx, storeCfg)
		if err != nil {
			return fmt.Errorf("failed to create metadata store %q: %w", name, err)
		}
		if err := reg.RegisterMetadataStore(name, store); err != nil {
			_ = store.Close()
			return fmt.Errorf("failed to register metadata store %q: %w", name, err)
		}
		shared.add(store)
	}

	for _, name := range sortedNames(cfg.Blob.Stores) {
		storeCfg := cfg.Blob.Stores[name]
		logger.Debug("Creating blob store %q (type: %s)", name, storeCfg.Type)

		store, err := createBlobStore(ctx, name, storeCfg, shared)
		if err != nil {
			return fmt.Errorf("failed to create blob store %q: %w", name, err)
		}
		if err := reg.RegisterBlobStore(name, store); err != nil {
			_ = store.Close()
			return fmt.Errorf("failed to register blob store %q: %w", name, err)
		}
	}

	return nil
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// InitializeRouter builds the registry, one file system and workspace per
// configured workspace, and a router with the first workspace as default.
//
// The caller owns the returned registry and must Close it to release the
// stores. Metrics must be initialized beforehand for the file systems to
// record them.
func InitializeRouter(ctx context.Context, cfg *Config) (*workspace.Router, *registry.Registry, error) {
	reg, err := InitializeRegistry(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	router := workspace.NewRouter()
	for _, wsCfg := range cfg.Workspaces {
		meta, blobs, err := reg.StoresForWorkspace(wsCfg.Name)
		if err != nil {
			_ = reg.Close()
			return nil, nil, err
		}

		fs := vfs.New(meta, blobs, vfs.Options{
			Name:    wsCfg.Name,
			Metrics: promMetrics.NewFSMetrics(wsCfg.Name),
		})

		ws, err := workspace.New(ctx, workspace.Options{
			Name:         wsCfg.Name,
			FS:           fs,
			InitialFiles: wsCfg.InitialFileMap(),
		})
		if err != nil {
			_ = reg.Close()
			return nil, nil, fmt.Errorf("failed to create workspace %q: %w", wsCfg.Name, err)
		}

		if err := router.Register(ws); err != nil {
			_ = reg.Close()
			return nil, nil, err
		}
		logger.Info("Workspace %q ready (metadata: %s, blobs: %s)", wsCfg.Name, wsCfg.MetadataStore, wsCfg.BlobStore)
	}

	return router, reg, nil
}

// InitializeCollectors creates one orphaned blob collector per configured
// workspace. Each collector locks out the writes of its workspace's file
// system in router while it deletes.
func InitializeCollectors(cfg *Config, reg *registry.Registry, router *workspace.Router) ([]*gc.Collector, error) {
	collectors := make([]*gc.Collector, 0, len(cfg.Workspaces))
	for _, wsCfg := range cfg.Workspaces {
		meta, blobs, err := reg.StoresForWorkspace(wsCfg.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to create collector for workspace %q: %w", wsCfg.Name, err)
		}
		ws, ok := router.Workspace(wsCfg.Name)
		if !ok {
			return nil, fmt.Errorf("failed to create collector: workspace %q is not routed", wsCfg.Name)
		}
		writes, ok := ws.FS().(gc.WriteLocker)
		if !ok {
			return nil, fmt.Errorf("failed to create collector: file system of workspace %q cannot lock writes", wsCfg.Name)
		}

		collectors = append(collectors, gc.NewCollector(wsCfg.Name, meta, blobs, gc.Config{
			Enabled:  cfg.GC.Enabled,
			Interval: cfg.GC.Interval,
			DryRun:   cfg.GC.DryRun,
			Writes:   writes,
		}))
	}
	return collectors, nil
}

// Package gc removes orphaned blobs.
//
// A blob is orphaned when no regular file in the metadata store owns its
// key. The file system writes the blob before the metadata and deletes the
// metadata before the blob, so a crash between the two calls (or a failed
// rollback) leaves a blob behind. Orphans are harmless to readers but waste
// space.
//
// A blob that is merely between its own write and its metadata write looks
// the same, so candidates are re-checked while the file system's write lock
// is held (see Config.Writes).
package gc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/esm-dev/modern-monaco-sub001/internal/logger"
	"github.com/esm-dev/modern-monaco-sub001/pkg/store/blob"
	"github.com/esm-dev/modern-monaco-sub001/pkg/store/metadata"
)

// DefaultInterval is the time between background runs when Config.Interval
// is zero.
const DefaultInterval = time.Hour

// valueLogDiscardRatio is passed to stores that reclaim space after deletes.
const valueLogDiscardRatio = 0.5

// WriteLocker is implemented by file systems that can pause their
// blob-then-metadata writes. *vfs.FileSystem implements it.
type WriteLocker interface {
	LockWrites() (unlock func())
}

// spaceReclaimer is implemented by blob stores that free disk space lazily,
// such as the BadgerDB store.
type spaceReclaimer interface {
	RunGC(ctx context.Context, discardRatio float64) (int, error)
}

// Collector periodically deletes orphaned blobs of one workspace.
//
// Thread Safety: Safe for concurrent use.
type Collector struct {
	name   string
	meta   metadata.MetadataStore
	blobs  blob.BlobStore
	config Config

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// Config contains configuration for the garbage collector.
type Config struct {
	// Enabled controls whether Start launches the background worker
	Enabled bool

	// Interval is how often to run garbage collection (default: 1h)
	Interval time.Duration

	// BatchSize is how many orphans to delete per DeleteBatch call
	// (default: blob.DefaultMaxBatchSize)
	BatchSize int

	// DryRun logs what would be deleted without deleting it
	DryRun bool

	// Writes is the file system writing to the stores. When set, the final
	// ownership check and the deletes run with its writes locked out.
	Writes WriteLocker
}

// NewCollector creates a collector over the stores of one workspace. The
// collector does not own the stores. Call Start to begin background
// collection.
//
// Parameters:
//   - name: Workspace name, used in logs
//   - meta: Metadata store whose file entries own blobs
//   - blobs: Blob store to scan and clean up
//   - config: Garbage collection configuration
func NewCollector(name string, meta metadata.MetadataStore, blobs blob.BlobStore, config Config) *Collector {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = blob.DefaultMaxBatchSize
	}

	return &Collector{
		name:   name,
		meta:   meta,
		blobs:  blobs,
		config: config,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Name returns the workspace name the collector was created with.
func (c *Collector) Name() string {
	return c.name
}

// Start begins background garbage collection. It is a no-op when the
// collector is disabled.
func (c *Collector) Start() {
	if !c.config.Enabled {
		logger.Debug("gc[%s]: disabled", c.name)
		return
	}

	logger.Info("gc[%s]: starting (interval=%s batch_size=%d dry_run=%v)",
		c.name, c.config.Interval, c.config.BatchSize, c.config.DryRun)

	go c.worker()
}

// Stop stops the background worker and waits for an in-progress run to
// finish, or for ctx to expire. Start must have been called when the
// collector is enabled.
func (c *Collector) Stop(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	c.stopOnce.Do(func() { close(c.stopCh) })

	select {
	case <-c.doneCh:
		logger.Debug("gc[%s]: stopped", c.name)
		return nil
	case <-ctx.Done():
		logger.Warn("gc[%s]: shutdown timeout", c.name)
		return ctx.Err()
	}
}

// RunNow runs one collection synchronously, regardless of Enabled.
func (c *Collector) RunNow(ctx context.Context) (*Stats, error) {
	return c.collect(ctx, c.config.DryRun)
}

// DryRun runs one collection that only reports orphans.
func (c *Collector) DryRun(ctx context.Context) (*Stats, error) {
	return c.collect(ctx, true)
}

func (c *Collector) worker() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			stats, err := c.collect(ctx, c.config.DryRun)
			cancel()

			if err != nil {
				logger.Error("gc[%s]: collection failed: %v", c.name, err)
			} else {
				logger.Info("gc[%s]: %s", c.name, stats.Summary())
			}

		case <-c.stopCh:
			return
		}
	}
}

// collect performs a single run:
//  1. Collect every regular file path from the metadata store
//  2. Collect every blob key
//  3. Lock out writes, re-check each candidate against the metadata store
//     and delete the ones that are still unowned, in batches
//  4. Let the blob store reclaim the freed space
func (c *Collector) collect(ctx context.Context, dryRun bool) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}

	files := make(map[string]struct{})
	err := c.meta.Range(ctx, "", func(path string, stat *metadata.FileStat) error {
		if stat.IsFile() {
			files[path] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("failed to list files: %w", err)
	}
	stats.FileCount = uint64(len(files))

	var candidates []string
	err = c.blobs.Keys(ctx, "", func(path string) error {
		stats.BlobCount++
		if _, owned := files[path]; !owned {
			candidates = append(candidates, path)
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("failed to list blobs: %w", err)
	}

	if dryRun {
		orphaned, err := c.unowned(ctx, candidates)
		if err != nil {
			return stats, err
		}
		stats.OrphanedCount = uint64(len(orphaned))
		for i, path := range orphaned {
			if i == 10 {
				logger.Info("gc[%s]: ... and %d more", c.name, len(orphaned)-10)
				break
			}
			logger.Info("gc[%s]: dry run, would delete %s", c.name, path)
		}
		stats.EndTime = time.Now()
		return stats, nil
	}

	if err := c.sweep(ctx, candidates, stats); err != nil {
		stats.EndTime = time.Now()
		return stats, err
	}

	if reclaimer, ok := c.blobs.(spaceReclaimer); ok && stats.DeletedCount > 0 {
		if _, err := reclaimer.RunGC(ctx, valueLogDiscardRatio); err != nil {
			logger.Warn("gc[%s]: reclaiming blob store space failed: %v", c.name, err)
		}
	}

	stats.EndTime = time.Now()
	logger.Debug("gc[%s]: deleted %d orphaned blob(s), %d failed", c.name, stats.DeletedCount, stats.FailedCount)
	return stats, nil
}

// sweep deletes the candidates that are still unowned, with writes locked
// out so no file can claim one of them mid-way.
func (c *Collector) sweep(ctx context.Context, candidates []string, stats *Stats) error {
	if len(candidates) == 0 {
		return nil
	}
	if c.config.Writes != nil {
		unlock := c.config.Writes.LockWrites()
		defer unlock()
	}

	orphaned, err := c.unowned(ctx, candidates)
	if err != nil {
		return err
	}
	stats.OrphanedCount = uint64(len(orphaned))

	for i := 0; i < len(orphaned); i += c.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch := orphaned[i:min(i+c.config.BatchSize, len(orphaned))]
		if err := c.blobs.DeleteBatch(ctx, batch); err != nil {
			logger.Warn("gc[%s]: batch delete failed: %v", c.name, err)
			stats.FailedCount += uint64(len(batch))
			continue
		}
		stats.DeletedCount += uint64(len(batch))
	}
	return nil
}

// unowned re-reads each candidate's metadata; a file written since the scans
// owns its blob by now.
func (c *Collector) unowned(ctx context.Context, candidates []string) ([]string, error) {
	var orphaned []string
	for _, path := range candidates {
		stat, err := c.meta.Get(ctx, path)
		if err == nil && stat.IsFile() {
			continue
		}
		if err != nil && !errors.Is(err, metadata.ErrNotFound) {
			return nil, fmt.Errorf("failed to re-check %s: %w", path, err)
		}
		orphaned = append(orphaned, path)
	}
	return orphaned, nil
}

// Stats contains statistics from a garbage collection run.
type Stats struct {
	StartTime     time.Time
	EndTime       time.Time
	FileCount     uint64 // regular files in the metadata store
	BlobCount     uint64 // blobs in the blob store
	OrphanedCount uint64 // blobs with no owning file
	DeletedCount  uint64
	FailedCount   uint64
}

// Duration returns the total collection duration.
func (s *Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Summary returns a human-readable summary of the collection.
func (s *Stats) Summary() string {
	return fmt.Sprintf("files=%d blobs=%d orphaned=%d deleted=%d failed=%d duration=%s",
		s.FileCount, s.BlobCount, s.OrphanedCount, s.DeletedCount, s.FailedCount, s.Duration())
}

// Package gc removes orphaned objects: objects that no directory listing
// reaches any more.
//
// Orphans are left behind when:
//   - The process dies between the steps of a multi-object operation
//     (a rename copies objects to their new keys before switching entries)
//   - Deleting the old keys after a rename fails
//   - Another process sharing the bucket crashes mid-operation
//
// An object is only deleted once two consecutive runs found it
// unreachable with the same fingerprint (its store version, or a content
// hash when the store has no versions). Objects written by an operation
// still in flight, whose listing entry is not committed yet, are therefore
// left alone as long as runs are at least one operation apart, even when
// their key held an orphan before.
package gc

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/marmos91/bucketfs/internal/logger"
	"github.com/marmos91/bucketfs/pkg/filesystem"
	"github.com/marmos91/bucketfs/pkg/store"
)

// Defaults for Config.
const (
	DefaultInterval    = time.Hour
	DefaultConcurrency = 8
)

// Collector performs periodic garbage collection on an object store.
//
// Thread Safety: Safe for concurrent use. Runs are serialized.
type Collector struct {
	fsys      *filesystem.FileSystem
	objects   store.ObjectStore
	versioned store.VersionedStore
	config    Config

	// mu serializes runs and guards suspects (key → fingerprint)
	mu       sync.Mutex
	suspects map[string]string

	started  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// Config contains configuration for the garbage collector.
type Config struct {
	// Enabled controls whether background collection runs (default: false)
	Enabled bool

	// Interval is the time between runs (default: 1h)
	Interval time.Duration

	// Concurrency bounds parallel deletes (default: 8)
	Concurrency int

	// DryRun logs what would be deleted without deleting
	DryRun bool
}

// NewCollector creates a collector for the objects of fsys, stored in
// objects. Call Start to begin background collection.
func NewCollector(fsys *filesystem.FileSystem, objects store.ObjectStore, config Config) *Collector {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultConcurrency
	}

	c := &Collector{
		fsys:     fsys,
		objects:  objects,
		config:   config,
		suspects: make(map[string]string),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	if v, ok := objects.(store.VersionedStore); ok {
		c.versioned = v
	}
	return c
}

// Start begins background garbage collection. Safe to call multiple times.
func (c *Collector) Start() {
	if !c.config.Enabled {
		logger.Info("Garbage collection disabled")
		return
	}

	if !c.started.CompareAndSwap(false, true) {
		return
	}

	logger.Info("Starting garbage collector: interval=%s concurrency=%d dry_run=%v",
		c.config.Interval, c.config.Concurrency, c.config.DryRun)
	go c.worker()
}

// Stop stops the garbage collector and waits for a run in progress to
// finish, or for ctx to expire. Safe to call multiple times.
func (c *Collector) Stop(ctx context.Context) error {
	if !c.started.Load() {
		return nil
	}

	c.stopOnce.Do(func() { close(c.stopCh) })

	select {
	case <-c.doneCh:
		logger.Info("Garbage collector stopped")
		return nil
	case <-ctx.Done():
		logger.Warn("Garbage collector shutdown timeout")
		return ctx.Err()
	}
}

// RunNow performs one collection run and returns its statistics.
//
// Orphans found for the first time are only remembered; they are deleted
// by a later run if still unreachable.
func (c *Collector) RunNow(ctx context.Context) (*Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.collect(ctx)
}

func (c *Collector) worker() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-c.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		select {
		case <-ticker.C:
			stats, err := c.RunNow(ctx)
			if err != nil {
				logger.Error("Garbage collection failed: %v", err)
			} else {
				logger.Info("Garbage collection completed: %s", stats.Summary())
			}
		case <-c.stopCh:
			return
		}
	}
}

// collect performs a single run:
//  1. List every key in the store
//  2. Walk the tree for every reachable key
//  3. Orphans = listed - reachable
//  4. Delete orphans that were already suspects; the rest become suspects
//
// Listing before walking means an object created during the run is either
// absent from the listing or reachable by the time of the walk.
func (c *Collector) collect(ctx context.Context) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	defer func() { stats.EndTime = time.Now() }()

	existing, err := c.objects.List(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list objects: %w", err)
	}
	stats.ExistingCount = uint64(len(existing))

	reachable, err := c.fsys.ReachableKeys(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to walk directory tree: %w", err)
	}
	stats.ReachableCount = uint64(len(reachable))

	reachableSet := make(map[string]struct{}, len(reachable))
	for _, k := range reachable {
		reachableSet[k] = struct{}{}
	}

	var confirmed []string
	suspects := make(map[string]string)
	prints := make(map[string]string)
	for _, k := range existing {
		if _, ok := reachableSet[k]; ok {
			continue
		}
		fp, err := c.fingerprint(ctx, k)
		switch {
		case errors.Is(err, store.ErrObjectNotFound):
			continue
		case err != nil:
			return stats, fmt.Errorf("failed to read orphan %s: %w", k, err)
		}

		stats.OrphanedCount++
		prints[k] = fp
		if prev, seen := c.suspects[k]; seen && prev == fp {
			confirmed = append(confirmed, k)
		} else {
			suspects[k] = fp
		}
	}
	stats.PendingCount = uint64(len(suspects))

	if c.config.DryRun {
		for _, k := range confirmed {
			logger.Info("GC: DRY RUN - would delete %s", k)
			suspects[k] = prints[k]
		}
		c.suspects = suspects
		return stats, nil
	}

	var (
		deleted atomic.Uint64
		failMu  sync.Mutex
		failed  []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.Concurrency)
	for _, k := range confirmed {
		g.Go(func() error {
			err := c.objects.Delete(gctx, k)
			switch {
			case err == nil, errors.Is(err, store.ErrObjectNotFound):
				deleted.Add(1)
			case gctx.Err() != nil:
				return gctx.Err()
			default:
				logger.Debug("GC: Failed to delete %s: %v", k, err)
				failMu.Lock()
				failed = append(failed, k)
				failMu.Unlock()
			}
			return nil
		})
	}
	err = g.Wait()

	// failed deletes are retried by the next run
	for _, k := range failed {
		suspects[k] = prints[k]
	}
	stats.DeletedCount = deleted.Load()
	stats.FailedCount = uint64(len(failed))
	c.suspects = suspects
	return stats, err
}

// fingerprint identifies the object currently stored at key.
func (c *Collector) fingerprint(ctx context.Context, key string) (string, error) {
	if c.versioned != nil {
		_, ver, err := c.versioned.GetVersioned(ctx, key)
		return string(ver), err
	}

	data, err := c.objects.Get(ctx, key)
	if err != nil {
		return "", err
	}
	return strconv.Itoa(len(data)) + ":" + strconv.FormatUint(xxhash.Sum64(data), 16), nil
}

// Stats contains statistics from a garbage collection run.
type Stats struct {
	StartTime      time.Time // When collection started
	EndTime        time.Time // When collection ended
	ReachableCount uint64    // Keys reachable from the root
	ExistingCount  uint64    // Keys present in the store
	OrphanedCount  uint64    // Unreachable keys found by this run
	PendingCount   uint64    // Orphans seen for the first time, kept for now
	DeletedCount   uint64    // Orphans deleted
	FailedCount    uint64    // Orphans that failed to delete
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
	return fmt.Sprintf("reachable=%d existing=%d orphaned=%d pending=%d deleted=%d failed=%d duration=%s",
		s.ReachableCount, s.ExistingCount, s.OrphanedCount, s.PendingCount,
		s.DeletedCount, s.FailedCount, s.Duration())
}

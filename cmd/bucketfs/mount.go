package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/marmos91/bucketfs/internal/fusefs"
	"github.com/marmos91/bucketfs/internal/logger"
	"github.com/marmos91/bucketfs/pkg/config"
	"github.com/marmos91/bucketfs/pkg/filesystem"
	"github.com/marmos91/bucketfs/pkg/gc"
	"github.com/marmos91/bucketfs/pkg/metrics"
)

const (
	// defaultEnvFile is loaded when present and no --env-file is given.
	defaultEnvFile = ".env"

	gcStopTimeout = 30 * time.Second
)

// runMount prepares the store, mounts it and serves until a signal or an
// external unmount.
func runMount(opts *options) error {
	if os.Geteuid() == 0 {
		return errors.New("refusing to run as root")
	}

	if err := loadEnv(opts.envFile); err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = strings.ToUpper(opts.logLevel)
	}
	if opts.mountPoint != "" {
		cfg.Mount.MountPoint = opts.mountPoint
	}
	if cfg.Mount.MountPoint == "" {
		return errors.New("no mount point: pass --mount or set mount.mount_point")
	}

	if err := logger.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	logger.With("session", uuid.NewString())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}

	objects, closeStore, err := config.CreateObjectStore(ctx, &cfg.Store, metrics.NewStoreMetrics())
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Error("Failed to close store: %v", err)
		}
	}()
	logger.Info("Using %s object store", cfg.Store.Type)

	if cfg.Filesystem.ClearOnStart {
		logger.Info("Clearing store")
		if err := objects.Clear(ctx); err != nil {
			return fmt.Errorf("failed to clear store: %w", err)
		}
	}

	fsys := filesystem.New(objects, filesystem.Config{
		CaseInsensitive: cfg.Filesystem.CaseInsensitive,
		ListingRetries:  cfg.Filesystem.ListingRetries,
		UID:             uint32(os.Getuid()),
		GID:             uint32(os.Getgid()),
		Metrics:         metrics.NewFilesystemMetrics(),
	})
	if err := fsys.Init(ctx); err != nil {
		return fmt.Errorf("failed to create root directory: %w", err)
	}

	collector := gc.NewCollector(fsys, objects, gc.Config{
		Enabled:  cfg.GC.Enabled,
		Interval: cfg.GC.Interval,
		DryRun:   cfg.GC.DryRun,
	})
	collector.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), gcStopTimeout)
		defer cancel()
		_ = collector.Stop(stopCtx)
	}()

	server, err := fusefs.Mount(fsys, fusefs.MountOptions{
		MountPoint: cfg.Mount.MountPoint,
		FsName:     cfg.Mount.FsName,
		AllowOther: cfg.Mount.AllowOther,
		Debug:      cfg.Mount.Debug,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(metrics.ServerConfig{Listen: cfg.Metrics.Listen})
		g.Go(func() error { return metricsServer.Start(gctx) })
	}

	served := make(chan struct{})
	go func() {
		server.Wait()
		close(served)
	}()

	g.Go(func() error {
		defer stop()

		select {
		case <-gctx.Done():
			logger.Info("Unmounting %s", cfg.Mount.MountPoint)
			if err := server.Unmount(); err != nil {
				return fmt.Errorf("failed to unmount %s: %w", cfg.Mount.MountPoint, err)
			}
			<-served
		case <-served:
			logger.Info("%s was unmounted", cfg.Mount.MountPoint)
		}
		return nil
	})

	logger.Info("bucketfs is running. Press Ctrl+C to unmount.")
	return g.Wait()
}

// loadEnv loads path into the environment without overriding variables
// that are already set. An empty path loads .env when it exists.
func loadEnv(path string) error {
	if path == "" {
		if _, err := os.Stat(defaultEnvFile); err != nil {
			return nil
		}
		path = defaultEnvFile
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"rtranslator/internal/analytics"
	"rtranslator/internal/archive"
	"rtranslator/internal/cache"
	"rtranslator/internal/config"
	"rtranslator/internal/filesystem"
	"rtranslator/internal/integrations"
	"rtranslator/internal/integrations/modrinth"
	"rtranslator/internal/logger"
	"rtranslator/internal/network"
	"rtranslator/internal/storage"

	"github.com/gofrs/flock"
)

var _ archive.Stats = (*analytics.StatsManager)(nil)

// App holds the process-wide components.
type App struct {
	cfg       config.Config
	logger    *slog.Logger
	logFile   io.Closer
	lock      *flock.Flock
	store     *storage.Storage
	settings  *config.ConfigManager
	cache     cache.Cache
	stats     *analytics.StatsManager
	bandwidth *network.BandwidthManager
	archives  *archive.Service
}

// appOptions selects how NewApp sets up process-level resources.
type appOptions struct {
	// Exclusive holds a lock on the data directory for the app's lifetime.
	Exclusive bool
	// FileLog also writes JSON records into the data directory.
	FileLog bool
	Console io.Writer
}

func NewApp(ctx context.Context, cfg config.Config, opts appOptions) (app *App, err error) {
	a := &App{cfg: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	if opts.Exclusive {
		a.lock = flock.New(filepath.Join(cfg.DataDir, "rtranslator.lock"))
		ok, err := a.lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquire lock: %w", err)
		}
		if !ok {
			a.lock = nil
			return nil, errors.New("another rtranslator instance is using " + cfg.DataDir)
		}
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	level := logger.ParseLevel(cfg.LogLevel)
	if opts.FileLog {
		a.logger, a.logFile, err = logger.New(cfg.DataDir, level, console)
		if err != nil {
			return nil, err
		}
	} else {
		a.logger = logger.NewConsole(level, console)
	}

	a.store, err = storage.NewStorage(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	a.settings = config.NewConfigManager(a.store, cfg)

	a.cache = cache.NewMemoryCache()
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			a.logger.Warn("redis unavailable, using in-memory cache", "error", err)
		} else {
			a.cache = rc
		}
	}

	a.stats = analytics.NewStatsManager(a.store, cfg.StagingDir, a.logger)
	a.bandwidth = network.NewBandwidthManager()
	a.bandwidth.SetLimit(a.settings.GetBandwidthLimit())

	api := integrations.NewClient(integrations.Options{
		Cache:     a.cache,
		CacheTTL:  cfg.CacheTTL,
		RateLimit: cfg.ProviderRateLimit,
		UserAgent: cfg.UserAgent,
	})

	a.archives = archive.NewService(archive.ServiceOptions{
		Sources: archive.Sources{
			Modrinth: archive.NewModrinthSource(modrinth.NewClient(api, cfg.ModrinthURL)),
		},
		Planner: archive.NewPlanner(filesystem.NewStaging(cfg.StagingDir)),
		Downloader: archive.NewDownloader(archive.DownloaderOptions{
			Bandwidth: a.bandwidth,
			Timeout:   cfg.DownloadTimeout,
			UserAgent: cfg.UserAgent,
			Logger:    a.logger,
		}),
		Store:       a.store,
		Stats:       a.stats,
		Concurrency: a.settings.GetMaxSimultaneousDownloads,
		Logger:      a.logger,
	})

	return a, nil
}

// Close waits for running ingestions and releases every resource.
func (a *App) Close() error {
	var errs []error
	if a.archives != nil {
		a.archives.Wait()
	}
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.store != nil {
		if err := a.store.Checkpoint(); err != nil && a.logger != nil {
			a.logger.Debug("wal checkpoint skipped", "error", err)
		}
		errs = append(errs, a.store.Close())
	}
	if a.logFile != nil {
		errs = append(errs, a.logFile.Close())
	}
	if a.lock != nil {
		errs = append(errs, a.lock.Unlock())
	}
	return errors.Join(errs...)
}

package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/memquery/internal/adapters/driven/cache/memory"
	rediscache "github.com/custodia-labs/memquery/internal/adapters/driven/cache/redis"
	"github.com/custodia-labs/memquery/internal/adapters/driven/config/env"
	"github.com/custodia-labs/memquery/internal/adapters/driven/config/file"
	"github.com/custodia-labs/memquery/internal/adapters/driven/sources"
	memstore "github.com/custodia-labs/memquery/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/memquery/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/memquery/internal/adapters/driven/telemetry"
	"github.com/custodia-labs/memquery/internal/core/domain"
	"github.com/custodia-labs/memquery/internal/core/ports/driven"
	"github.com/custodia-labs/memquery/internal/core/services"
	"github.com/custodia-labs/memquery/internal/logger"
)

// appOptions selects how the in-process service is built.
type appOptions struct {
	// ConfigDir overrides ~/.memquery.
	ConfigDir string

	// NoConfig skips the config file and uses defaults plus environment.
	NoConfig bool
}

// App is the in-process service used by serve and mcp serve.
type App struct {
	Settings     *domain.AppSettings
	SettingsSvc  *services.SettingsService
	Orchestrator *services.QueryOrchestrator
	Scheduler    *services.Scheduler

	configFile *file.ConfigStore
	telemetry  *telemetry.Provider
	closers    []func() error
}

// newApp loads settings and builds every component. On error, anything
// already built is released.
func newApp(ctx context.Context, opts appOptions) (_ *App, err error) {
	app := &App{}
	defer func() {
		if err != nil {
			_ = app.Close(ctx)
		}
	}()

	var base driven.ConfigStore
	if opts.NoConfig {
		base = memstore.NewConfigStore()
	} else {
		app.configFile, err = file.NewConfigStore(opts.ConfigDir)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		base = app.configFile
	}

	app.SettingsSvc = services.NewSettingsService(env.New(base))
	if err := app.SettingsSvc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	app.Settings, err = app.SettingsSvc.Get()
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	applyLogSettings(app.Settings.Service)

	app.telemetry, err = telemetry.New(ctx, app.Settings.Telemetry, app.Settings.Service.Name, version)
	if err != nil {
		return nil, fmt.Errorf("start telemetry: %w", err)
	}

	schedulerStore, memoryStore, err := app.openStorage(app.Settings.Storage)
	if err != nil {
		return nil, err
	}

	backend, err := openCache(ctx, app.Settings.Cache)
	if err != nil {
		return nil, err
	}

	registry := sources.NewDefaultRegistry(sources.Dependencies{MemoryStore: memoryStore})
	app.Orchestrator = services.NewQueryOrchestrator(
		services.OrchestratorConfigFrom(*app.Settings, version),
		registry,
		services.NewResultCache(backend, app.Settings.Cache.TTL),
	)
	if err := app.Orchestrator.Initialize(ctx); err != nil {
		_ = backend.Close()
		app.Orchestrator = nil
		return nil, fmt.Errorf("initialize sources: %w", err)
	}

	app.Scheduler = services.NewScheduler(app.Settings.Scheduler, schedulerStore, app.Orchestrator)
	return app, nil
}

// applyLogSettings honours log.level and log.json unless --verbose won.
func applyLogSettings(s domain.ServiceSettings) {
	logger.SetJSON(s.LogJSON)
	if verbose || s.LogLevel == "" {
		return
	}
	if err := logger.SetLevel(s.LogLevel); err != nil {
		logger.Warn("ignoring log level: %v", err)
	}
}

func (a *App) openStorage(s domain.StorageSettings) (driven.SchedulerStore, driven.MemoryStore, error) {
	if s.Backend == domain.StorageBackendMemory {
		logger.Debug("storage: in-memory")
		return memstore.NewSchedulerStore(), memstore.NewMemoryStore(), nil
	}

	store, err := sqlite.NewStore(s.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}
	a.closers = append(a.closers, store.Close)
	logger.Debug("storage: sqlite at %s", store.Path())
	return store.SchedulerStore(), store.MemoryStore(), nil
}

// openCache builds the configured backend. An unreachable Redis falls
// back to the in-memory LRU so queries keep working.
func openCache(ctx context.Context, s domain.CacheSettings) (driven.CacheBackend, error) {
	if s.Backend == domain.CacheBackendRedis {
		c, err := rediscache.New(ctx, s.RedisURL, s.KeyPrefix, s.MaxSize)
		if err == nil {
			logger.Info("cache: redis")
			return c, nil
		}
		logger.Warn("cache: redis unavailable, using memory: %v", err)
	}

	c, err := memory.New(s.MaxSize)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	return c, nil
}

// WatchConfig applies ranking weights and the source table whenever the
// config file changes. It returns when ctx ends. Without a config file
// it returns immediately.
func (a *App) WatchConfig(ctx context.Context) {
	if a.configFile == nil {
		return
	}

	changes, err := a.configFile.Watch(ctx)
	if err != nil {
		logger.Warn("config watch disabled: %v", err)
		return
	}
	for range changes {
		a.reload(ctx)
	}
}

func (a *App) reload(ctx context.Context) {
	settings, err := a.SettingsSvc.Get()
	if err != nil {
		logger.Warn("config reload: %v", err)
		return
	}
	if err := a.Orchestrator.SetRankingWeights(settings.Ranking); err != nil {
		logger.Warn("config reload: %v", err)
	}
	a.Orchestrator.ApplySources(ctx, settings.Sources)
	logger.Info("config reloaded")
}

// Close stops the scheduler, shuts the sources down and flushes
// telemetry.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Scheduler != nil {
		errs = append(errs, a.Scheduler.Stop())
	}
	if a.Orchestrator != nil {
		errs = append(errs, a.Orchestrator.Shutdown(ctx))
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	if a.telemetry != nil {
		errs = append(errs, a.telemetry.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

package cli

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/toolbox/internal/catalog"
	"github.com/roach88/toolbox/internal/config"
	"github.com/roach88/toolbox/internal/engine"
	"github.com/roach88/toolbox/internal/kv"
	"github.com/roach88/toolbox/internal/store"
)

// app is the wired cart stack a command operates on.
type app struct {
	config   config.Config
	backend  kv.Backend
	store    *store.Store
	engine   *engine.Engine
	registry *prometheus.Registry
	logger   *slog.Logger
}

// loadConfig reads --config (if given) over the defaults and applies the
// storage and catalog flag overrides.
func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg := config.Default()
	if o.ConfigPath != "" {
		loaded, err := config.Load(o.ConfigPath)
		if err != nil {
			return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
		}
		cfg = loaded
	}

	if o.Database != "" {
		cfg.Storage.Path = o.Database
	}
	if o.Backend != "" {
		cfg.Storage.Backend = o.Backend
	}
	if o.Catalog != "" {
		cfg.Catalog.Path = o.Catalog
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	return cfg, nil
}

// openApp loads configuration, opens storage and builds the store and
// engine. Callers must Close the app.
func openApp(opts *RootOptions, cmd *cobra.Command) (*app, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}

	logger := opts.logger(cmd)
	logger.Debug("opening storage", "backend", cfg.Kind(), "path", cfg.Storage.Path)
	backend, err := kv.Open(cfg.Kind(), cfg.Storage.Path, logger)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open storage", err)
	}

	registry := prometheus.NewRegistry()
	st := store.New(backend, append(cfg.StoreOptions(), store.WithLogger(logger))...)
	eng := engine.New(st,
		engine.WithQuantityPolicy(cfg.Policy()),
		engine.WithMetrics(engine.NewMetrics(registry)),
		engine.WithLogger(logger),
	)

	return &app{
		config:   cfg,
		backend:  backend,
		store:    st,
		engine:   eng,
		registry: registry,
		logger:   logger,
	}, nil
}

// Close releases the storage backend.
func (a *app) Close() error {
	if err := a.backend.Close(); err != nil {
		a.logger.Error("error closing storage", "error", err)
		return err
	}
	return nil
}

// catalog loads the configured catalog file.
func (a *app) catalog() (*catalog.File, error) {
	return loadCatalog(a.config.Catalog.Path)
}

func loadCatalog(path string) (*catalog.File, error) {
	if path == "" {
		return nil, NewExitError(ExitCommandError, "no catalog configured: pass --catalog or set catalog.path")
	}
	file, err := catalog.LoadFile(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load catalog", err)
	}
	return file, nil
}

// withApp opens the app, runs fn and closes the app, keeping fn's error.
func withApp(opts *RootOptions, cmd *cobra.Command, fn func(*app) error) (err error) {
	a, err := openApp(opts, cmd)
	if err != nil {
		if opts.Format == "json" {
			_ = opts.formatter(cmd).Error(ErrCodeConfig, err.Error(), nil)
		}
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil && err == nil {
			err = WrapExitError(ExitCommandError, "failed to close storage", closeErr)
		}
	}()
	return fn(a)
}

// resultError reports a failed engine result in the configured format and
// converts it to an ExitFailure.
func resultError(f *OutputFormatter, r engine.Result) error {
	code := ErrCodeRejected
	if r.Error == engine.MsgStorageUnavailable {
		code = ErrCodeStorage
	}
	if f.Format == "json" {
		if err := f.Error(code, r.Error, nil); err != nil {
			return err
		}
	}
	return NewExitError(ExitFailure, r.Error)
}

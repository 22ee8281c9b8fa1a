package launcher

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/afero"

	"github.com/loykin/launchr/internal/config"
	"github.com/loykin/launchr/internal/env"
	"github.com/loykin/launchr/internal/history"
	"github.com/loykin/launchr/internal/history/factory"
	"github.com/loykin/launchr/internal/install"
	"github.com/loykin/launchr/internal/javaruntime"
	"github.com/loykin/launchr/internal/layout"
	"github.com/loykin/launchr/internal/manager"
	"github.com/loykin/launchr/internal/settings"
	"github.com/loykin/launchr/internal/store"
)

// Open wires a Service against the real filesystem from cfg: it provisions the
// home layout, opens the version catalog and history sinks, and prepares the
// installer. Close releases all of it.
func Open(cfg *config.Config, log *slog.Logger) (*Service, error) {
	if log == nil {
		log = slog.Default()
	}
	fs := afero.NewOsFs()
	l := layout.New(cfg.Home)
	if err := l.Provision(fs); err != nil {
		return nil, err
	}

	catalog, err := store.Open(cfg.Catalog.DSN)
	if err != nil {
		return nil, fmt.Errorf("open version catalog: %w", err)
	}
	sinks, err := factory.NewSinks(cfg.History.Sinks)
	if err != nil {
		_ = catalog.Close()
		return nil, fmt.Errorf("open history sinks: %w", err)
	}
	rec := history.NewRecorder(log, sinks...)

	gameEnv, err := env.Load(fs, cfg.Game.EnvFiles, cfg.Game.Env)
	if err != nil {
		_ = rec.Close()
		_ = catalog.Close()
		return nil, err
	}

	resolver := javaruntime.New(fs, l, nil)
	client := resty.New().
		SetTimeout(cfg.Install.Timeout).
		SetHeader("User-Agent", cfg.Brand)
	manifest := install.NewManifestSource(client, cfg.Install.ManifestURL)
	mgr := manager.New(manager.Options{Logger: log, History: rec, Output: cfg.Log})
	pipeline := install.New(fs, l, install.Options{
		Source:      install.CatalogSource{Catalog: catalog, Next: manifest},
		Client:      client,
		Runtime:     resolver,
		Catalog:     catalog,
		History:     rec,
		Logger:      log,
		Concurrency: cfg.Install.Concurrency,
		RuntimeURL:  cfg.Install.RuntimeURL,
		RuntimeSHA1: cfg.Install.RuntimeSHA1,
	})

	s := New(Options{
		Fs:          fs,
		Layout:      l,
		Brand:       cfg.Brand,
		Runtime:     resolver,
		Settings:    settings.NewStore(fs, l.SettingsFile()),
		Manager:     mgr,
		Installer:   pipeline,
		Catalog:     catalog,
		Manifest:    manifest,
		GameEnv:     gameEnv,
		StopTimeout: cfg.Game.StopTimeout,
		Logger:      log,
	})
	s.closers = append(s.closers,
		func() error { mgr.Shutdown(cfg.Game.StopTimeout); return nil },
		rec.Close,
		catalog.Close,
	)
	return s, nil
}

// Close terminates running games and releases the catalog and history sinks.
func (s *Service) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

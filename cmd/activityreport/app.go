package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/viper"

	githubadapter "github.com/ericfisherdev/activityreport/internal/adapter/driven/github"
	gitlabadapter "github.com/ericfisherdev/activityreport/internal/adapter/driven/gitlab"
	"github.com/ericfisherdev/activityreport/internal/adapter/driven/jsonfile"
	sqliteadapter "github.com/ericfisherdev/activityreport/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/activityreport/internal/application"
	"github.com/ericfisherdev/activityreport/internal/config"
	"github.com/ericfisherdev/activityreport/internal/domain/model"
	"github.com/ericfisherdev/activityreport/internal/domain/port/driven"
)

// app holds the wired adapters and services shared by every command.
type app struct {
	cfg     *config.Config
	client  driven.ActivityClient
	cache   *application.ResponseCache
	reports *application.ReportService
	closers []func() error
}

// newApp loads and validates configuration, then wires the remote client,
// the cache backend and the report pipeline.
func newApp(ctx context.Context, v *viper.Viper) (*app, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	slog.Debug("config loaded",
		"provider", cfg.Provider,
		"base_url", cfg.BaseURL,
		"cache_backend", cfg.CacheBackend,
		"cache_path", cfg.CachePath,
		"cache_duration", cfg.CacheDuration,
	)

	a := &app{cfg: cfg}

	a.client, err = newActivityClient(cfg)
	if err != nil {
		return nil, err
	}

	a.cache = application.NewResponseCache(a.newCacheBackend(ctx), cfg.Token, cfg.CacheDuration)
	a.cache.Init(ctx)
	a.reports = application.NewReportService(a.client, a.cache, cfg.LookupConcurrency, slog.Default())
	return a, nil
}

func newActivityClient(cfg *config.Config) (driven.ActivityClient, error) {
	switch cfg.Provider {
	case config.ProviderGitHub:
		c, err := githubadapter.NewClient(cfg.Token, cfg.BaseURL, cfg.RequestTimeout)
		if err != nil {
			return nil, fmt.Errorf("create github client: %w", err)
		}
		return c, nil
	default:
		c, err := gitlabadapter.NewClient(cfg.Token, cfg.BaseURL, cfg.RequestTimeout)
		if err != nil {
			return nil, fmt.Errorf("create gitlab client: %w", err)
		}
		return c, nil
	}
}

// newCacheBackend opens the configured store. A SQLite store that cannot be
// opened is replaced by unavailableBackend so commands still run uncached.
func (a *app) newCacheBackend(ctx context.Context) driven.CacheBackend {
	if a.cfg.CacheBackend == config.BackendSQLite {
		db, err := sqliteadapter.NewDB(ctx, a.cfg.CachePath)
		if err != nil {
			slog.Warn("cache database unavailable, running without cache", "path", a.cfg.CachePath, "error", err)
			return unavailableBackend{err: err}
		}
		a.closers = append(a.closers, db.Close)
		return sqliteadapter.NewCacheStore(db)
	}
	return jsonfile.NewStore(a.cfg.CachePath)
}

// unavailableBackend stands in for a cache store that failed to open. Every
// call fails with the open error, so the response cache reports misses and
// drops writes.
type unavailableBackend struct {
	err error
}

func (b unavailableBackend) Load(context.Context) (model.CacheSnapshot, error) {
	return model.CacheSnapshot{}, b.err
}

func (b unavailableBackend) Save(context.Context, model.CacheSnapshot) error {
	return b.err
}

// Close releases the cache backend.
func (a *app) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

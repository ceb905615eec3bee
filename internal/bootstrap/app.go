// Package bootstrap wires configuration into running components.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/Meltveit/qrydex/infrastructure/logger"
	"github.com/Meltveit/qrydex/internal/config"
	"github.com/Meltveit/qrydex/internal/crawler"
	"github.com/Meltveit/qrydex/internal/domain"
	"github.com/Meltveit/qrydex/internal/extractor"
	"github.com/Meltveit/qrydex/internal/fetcher"
	"github.com/Meltveit/qrydex/internal/intelligence"
	"github.com/Meltveit/qrydex/internal/metrics"
	"github.com/Meltveit/qrydex/internal/orchestrator"
	"github.com/Meltveit/qrydex/internal/pipeline"
	"github.com/Meltveit/qrydex/internal/registry"
	"github.com/Meltveit/qrydex/internal/state"
	"github.com/Meltveit/qrydex/internal/store"
	"github.com/Meltveit/qrydex/internal/trust"
)

// Indexer publishes records to search.
type Indexer interface {
	Index(ctx context.Context, rec *domain.BusinessRecord) error
}

// App holds every wired component. Optional backends are nil when not
// configured.
type App struct {
	Config *config.Config
	Log    logger.Logger

	Metrics *metrics.Metrics
	Store   store.Store
	Cursors *state.Cursors
	Indexer Indexer

	Fetcher      *fetcher.Fetcher
	Crawler      *crawler.Crawler
	Extractor    *extractor.Extractor
	Enricher     *intelligence.Adapter
	Registry     *registry.Verifier
	Trust        *trust.Engine
	Processor    *pipeline.Processor
	Orchestrator *orchestrator.Orchestrator

	db    *sqlx.DB
	redis *redis.Client
	es    *es.Client
}

// New connects the configured backends and builds the component graph.
// Close releases whatever New opened, also on error.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (app *App, err error) {
	app = &App{
		Config:  cfg,
		Log:     log,
		Metrics: metrics.New(nil),
	}
	defer func() {
		if err != nil {
			app.Close()
			app = nil
		}
	}()

	if err = app.setupStorage(ctx); err != nil {
		return nil, err
	}
	if err = app.setupSearch(ctx); err != nil {
		return nil, err
	}
	if err = app.setupState(); err != nil {
		return nil, err
	}
	if err = app.setupServices(); err != nil {
		return nil, err
	}

	log.Info("Application wired",
		logger.Bool("postgres", app.db != nil),
		logger.Bool("redis", app.redis != nil),
		logger.Bool("elasticsearch", app.es != nil),
		logger.Bool("text_intelligence", app.Enricher.Enabled()),
		logger.String("state_backend", cfg.State.Backend),
	)
	return app, nil
}

// Close releases the backend connections.
func (a *App) Close() {
	var errs []error
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if err := errors.Join(errs...); err != nil {
		a.Log.Warn("Failed to close connections", logger.Error(err))
	}
}

func wrapSetup(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("setup %s: %w", what, err)
}

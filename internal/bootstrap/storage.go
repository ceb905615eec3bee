package bootstrap

import (
	"context"
	"errors"

	infraes "github.com/Meltveit/qrydex/infrastructure/elasticsearch"
	"github.com/Meltveit/qrydex/infrastructure/logger"
	infraredis "github.com/Meltveit/qrydex/infrastructure/redis"
	"github.com/Meltveit/qrydex/internal/config"
	"github.com/Meltveit/qrydex/internal/search"
	"github.com/Meltveit/qrydex/internal/state"
	"github.com/Meltveit/qrydex/internal/store"
)

var errRedisRequired = errors.New("redis state backend needs redis.address")

func (a *App) setupStorage(ctx context.Context) error {
	cfg := a.Config

	if cfg.Database.Host == "" {
		a.Log.Warn("No database host configured, records are kept in memory")
		a.Store = store.NewMemory()
	} else {
		db, err := store.Connect(ctx, cfg.Database)
		if err != nil {
			return wrapSetup("database", err)
		}
		a.db = db

		pg := store.NewPostgres(db)
		if err = pg.Migrate(ctx); err != nil {
			return wrapSetup("database schema", err)
		}
		a.Store = pg
		a.Log.Info("Database connection established",
			logger.String("host", cfg.Database.Host),
			logger.String("database", cfg.Database.Database),
		)
	}

	if cfg.Redis.Address != "" {
		client, err := infraredis.NewClient(ctx, infraredis.Config{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return wrapSetup("redis", err)
		}
		a.redis = client
	}
	return nil
}

func (a *App) setupSearch(ctx context.Context) error {
	cfg := a.Config.Elasticsearch
	if cfg.URL == "" {
		a.Log.Info("Search indexing disabled")
		return nil
	}

	client, err := infraes.NewClient(ctx, infraes.Config{
		URL:         cfg.URL,
		Username:    cfg.Username,
		Password:    cfg.Password,
		MaxRetries:  cfg.MaxRetries,
		PingTimeout: cfg.Timeout,
	}, a.Log)
	if err != nil {
		return wrapSetup("elasticsearch", err)
	}
	a.es = client

	idx := search.NewIndexer(client, cfg.Index, a.Log)
	if err = idx.EnsureIndex(ctx); err != nil {
		return wrapSetup("search index", err)
	}
	a.Indexer = idx
	return nil
}

func (a *App) setupState() error {
	cfg := a.Config.State

	var backend state.Store
	switch cfg.Backend {
	case config.StateBackendRedis:
		if a.redis == nil {
			return wrapSetup("state", errRedisRequired)
		}
		backend = state.NewRedisStore(a.redis, cfg.RedisKey)
	default:
		backend = state.NewFileStore(cfg.Path)
	}
	a.Cursors = state.NewCursors(backend)
	return nil
}

package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/LJTian/NewsLens/internal/cache"
	"github.com/LJTian/NewsLens/internal/collector"
	"github.com/LJTian/NewsLens/internal/config"
	"github.com/LJTian/NewsLens/internal/pipeline"
	"github.com/LJTian/NewsLens/internal/processor"
	"github.com/LJTian/NewsLens/internal/storage"
)

const (
	listCacheTTL = 5 * time.Minute
	runTokenTTL  = 30 * time.Minute
)

type Options struct {
	// NoPersist skips Postgres entirely; scraped articles are only returned.
	NoPersist bool
}

// App holds the wired components shared by the binaries.
type App struct {
	Config  *config.Config
	Log     *zap.Logger
	Store   *storage.Store
	Service *pipeline.Service

	redis *redis.Client
}

func New(ctx context.Context, cfg *config.Config, log *zap.Logger, opts Options) (*App, error) {
	sites := cfg.Sites()
	if len(sites) == 0 {
		return nil, errors.New("no enabled sources")
	}
	registry, err := collector.DefaultRegistry(sites)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Log: log}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := cache.Ping(pctx, rdb)
		cancel()
		if err != nil {
			log.Warn("redis unavailable, using in-process cache and run guard", zap.String("addr", cfg.RedisAddr), zap.Error(err))
			_ = rdb.Close()
		} else {
			a.redis = rdb
		}
	}

	var (
		listCache cache.Cache       = cache.NewMemoryCache(listCacheTTL)
		guard     pipeline.RunGuard = pipeline.NewLocalRunGuard()
	)
	if a.redis != nil {
		listCache = cache.NewRedisCache(a.redis)
		guard = pipeline.NewRedisRunGuard(a.redis, runTokenTTL)
	}

	var (
		persister pipeline.Persister
		recorder  pipeline.RunRecorder
	)
	if !opts.NoPersist {
		db, err := storage.Open(cfg.PostgresDSN)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init store: %w", err)
		}
		a.Store = storage.NewStore(db, listCache, log)
		persister = a.Store
		recorder = a.Store
	}

	var enricher pipeline.Enricher
	if cfg.OpenAI.APIKey != "" {
		analyzer, err := processor.NewOpenAIAnalyzer(processor.OpenAIConfig{
			APIKey:  cfg.OpenAI.APIKey,
			Model:   cfg.OpenAI.Model,
			BaseURL: cfg.OpenAI.BaseURL,
			Timeout: cfg.OpenAI.Timeout,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		enricher = processor.NewEnricher(analyzer, collector.DefaultWorkers, log)
	} else {
		log.Warn("openai api key not set, articles will not be enriched")
	}

	transport := collector.NewCollyTransport(cfg.RequestTimeout, cfg.UserAgent)
	details := collector.NewDetailCollector(collector.NewDetailFetcher(transport, registry, sites), log)
	source := pipeline.NewSourcePipeline(collector.NewListFetcher(transport, sites), registry, details, enricher, persister, log)
	orchestrator := pipeline.NewOrchestrator(source, guard, log)
	a.Service = pipeline.NewService(sites, orchestrator, recorder, log)
	return a, nil
}

func (a *App) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.Store != nil {
		if sqlDB, err := a.Store.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ovbagirov/berkat-crawler/internal/advert"
	"github.com/ovbagirov/berkat-crawler/internal/aigateway"
	"github.com/ovbagirov/berkat-crawler/internal/clock/system"
	"github.com/ovbagirov/berkat-crawler/internal/config"
	"github.com/ovbagirov/berkat-crawler/internal/discover"
	"github.com/ovbagirov/berkat-crawler/internal/extract"
	"github.com/ovbagirov/berkat-crawler/internal/fetcher"
	"github.com/ovbagirov/berkat-crawler/internal/logging"
	"github.com/ovbagirov/berkat-crawler/internal/media"
	"github.com/ovbagirov/berkat-crawler/internal/metrics"
	"github.com/ovbagirov/berkat-crawler/internal/scheduler"
	"github.com/ovbagirov/berkat-crawler/internal/storage/postgres"
)

// services holds everything a command needs after wiring.
type services struct {
	cfg       config.Config
	logger    *zap.Logger
	pool      *pgxpool.Pool
	queue     advert.LinkQueue
	products  advert.ProductStore
	scheduler *scheduler.Scheduler
}

// buildServices loads config and wires the whole pipeline.
func buildServices(ctx context.Context) (*services, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, err
	}

	pool, err := postgres.Connect(ctx, postgres.Config{
		DSN:      cfg.DB.DSN,
		MaxConns: cfg.DB.MaxConns,
		MinConns: cfg.DB.MinConns,
	})
	if err != nil {
		return nil, err
	}
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	queue, err := postgres.NewLinkQueue(pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	products, err := postgres.NewProductStore(pool)
	if err != nil {
		pool.Close()
		return nil, err
	}

	f := fetcher.New(fetcher.Config{
		UserAgent: cfg.Source.UserAgent,
		Timeout:   cfg.FetchTimeout(),
		Retry:     advert.NewRetryPolicy(cfg.HTTP.MaxRetries, cfg.RetryDelay()),
	}, logger)

	discoverer := discover.New(f, discover.Config{
		Origin:    cfg.Source.Origin,
		Blacklist: cfg.Source.Blacklist,
	}, logger)

	extractor := extract.New(cfg.Source.Origin)

	gateway := aigateway.New(aigateway.Config{
		BaseURL: cfg.AI.BaseURL,
		Model:   cfg.AI.Model,
		APIKey:  cfg.AI.APIKey,
		Timeout: cfg.AITimeout(),
	}, logger)

	uploader, err := media.New(media.Config{
		Dir:          cfg.Media.Dir,
		PublicPrefix: cfg.Media.PublicPrefix,
	}, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init media uploader: %w", err)
	}

	metrics.Init()

	categories := make([]scheduler.CategoryJob, 0, len(cfg.Source.Categories))
	for _, cat := range cfg.Source.Categories {
		categories = append(categories, scheduler.CategoryJob{
			Path:            cat.Path,
			FilterBlacklist: cat.FilterBlacklist,
		})
	}

	sched := scheduler.New(
		queue,
		products,
		f,
		discoverer,
		extractor,
		gateway,
		uploader,
		system.Clock{},
		scheduler.Config{
			Categories:     categories,
			RefillInterval: cfg.RefillInterval(),
			DrainInterval:  cfg.DrainInterval(),
			BatchSize:      cfg.Scheduler.BatchSize,
		},
		logger,
	)

	return &services{
		cfg:       cfg,
		logger:    logger,
		pool:      pool,
		queue:     queue,
		products:  products,
		scheduler: sched,
	}, nil
}

// Close releases held resources.
func (s *services) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.logger != nil {
		_ = s.logger.Sync()
	}
}

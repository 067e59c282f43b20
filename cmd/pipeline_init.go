package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/salvageiq/auctionmind/internal/pipeline"
	"github.com/salvageiq/auctionmind/internal/resilience"
	"github.com/salvageiq/auctionmind/internal/resolver"
	"github.com/salvageiq/auctionmind/internal/similar"
	"github.com/salvageiq/auctionmind/internal/store"
	"github.com/salvageiq/auctionmind/pkg/inventory"
	"github.com/salvageiq/auctionmind/pkg/research"
	"github.com/salvageiq/auctionmind/pkg/vision"
)

// pipelineEnv holds the initialized store, clients and pipeline used by the
// serve and analyze commands.
type pipelineEnv struct {
	Store     store.Store
	Inventory inventory.Client
	Finder    *similar.Finder
	Pipeline  *pipeline.Pipeline
}

// Close releases resources held by the environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline sets up the store and all clients and builds the Pipeline.
// Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	if cfg.Inventory.BaseURL == "" {
		_ = st.Close()
		return nil, eris.New("inventory base URL is required (AUCTIONMIND_INVENTORY_BASE_URL)")
	}

	inv := inventory.NewClient(cfg.Inventory.BaseURL, cfg.Inventory.Key,
		inventory.WithRateLimit(cfg.Inventory.RatePerSec, cfg.Inventory.RateBurst),
		inventory.WithMaxAttempts(cfg.Inventory.MaxAttempts),
	)

	visionClient := vision.NewClient(cfg.Vision.Key,
		vision.WithModel(cfg.Vision.Model),
		vision.WithTimeout(time.Duration(cfg.Vision.TimeoutSecs)*time.Second),
		vision.WithMaxImages(cfg.Vision.MaxImages),
	)

	researchClient := research.NewClient(cfg.Research.Key,
		research.WithBaseURL(cfg.Research.BaseURL),
		research.WithModel(cfg.Research.Model),
		research.WithTimeout(time.Duration(cfg.Research.TimeoutSecs)*time.Second),
	)

	res := resolver.New(inv, st)
	finder := similar.NewFinder(inv)

	p := pipeline.New(
		pipeline.Config{
			OuterTimeout:    time.Duration(cfg.Pipeline.OuterTimeoutSecs) * time.Second,
			VisionTimeout:   time.Duration(cfg.Vision.TimeoutSecs) * time.Second,
			ResearchTimeout: time.Duration(cfg.Research.TimeoutSecs) * time.Second,
			CacheTTL:        time.Duration(cfg.Pipeline.CacheTTLMins) * time.Minute,
			HistoryRetry: resilience.RetryConfig{
				MaxAttempts: cfg.Pipeline.HistoryAttempts,
				OnRetry:     resilience.RetryLogger("store", "sales_by_vin"),
			},
		},
		res, st, visionClient, researchClient, finder,
	)

	return &pipelineEnv{
		Store:     st,
		Inventory: inv,
		Finder:    finder,
		Pipeline:  p,
	}, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.SQLitePath
		if dsn == "" {
			dsn = "auctionmind.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

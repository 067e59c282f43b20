// Package pipeline orchestrates a full vehicle analysis: resolve the lot,
// fan out to the history, vision and research sources, join them through the
// consensus engine, rank comparables, and record an audit trail. Concurrent
// identical requests share one execution through the flight group.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/salvageiq/auctionmind/internal/consensus"
	"github.com/salvageiq/auctionmind/internal/flight"
	"github.com/salvageiq/auctionmind/internal/model"
	"github.com/salvageiq/auctionmind/internal/resilience"
	"github.com/salvageiq/auctionmind/internal/resolver"
	"github.com/salvageiq/auctionmind/internal/similar"
	"github.com/salvageiq/auctionmind/internal/store"
	"github.com/salvageiq/auctionmind/pkg/research"
	"github.com/salvageiq/auctionmind/pkg/vision"
)

// Config bounds a single pipeline execution.
type Config struct {
	// OuterTimeout caps the whole fan-out; sources still pending when it
	// fires degrade instead of failing the request. Default: 30s.
	OuterTimeout time.Duration

	// VisionTimeout bounds the image assessment call. Default: 20s.
	VisionTimeout time.Duration

	// ResearchTimeout bounds the market research call. Default: 15s.
	ResearchTimeout time.Duration

	// CacheTTL is how long completed results are served from cache.
	// Default: flight.DefaultTTL.
	CacheTTL time.Duration

	// HistoryRetry controls retries against the sales-history store.
	HistoryRetry resilience.RetryConfig
}

func (c Config) withDefaults() Config {
	if c.OuterTimeout <= 0 {
		c.OuterTimeout = 30 * time.Second
	}
	if c.VisionTimeout <= 0 {
		c.VisionTimeout = 20 * time.Second
	}
	if c.ResearchTimeout <= 0 {
		c.ResearchTimeout = 15 * time.Second
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = flight.DefaultTTL
	}
	return c
}

// Pipeline runs vehicle analyses.
type Pipeline struct {
	cfg      Config
	resolver *resolver.Resolver
	store    store.Store
	vision   vision.Client
	research research.Client
	finder   *similar.Finder
	flights  *flight.Group[model.AnalysisResult]
}

// New creates a Pipeline with all collaborators.
func New(
	cfg Config,
	res *resolver.Resolver,
	st store.Store,
	visionClient vision.Client,
	researchClient research.Client,
	finder *similar.Finder,
) *Pipeline {
	cfg = cfg.withDefaults()
	return &Pipeline{
		cfg:      cfg,
		resolver: res,
		store:    st,
		vision:   visionClient,
		research: researchClient,
		finder:   finder,
		flights:  flight.NewGroup[model.AnalysisResult](flight.WithTTL[model.AnalysisResult](cfg.CacheTTL)),
	}
}

// AnalyzeVIN runs the full pipeline for a VIN, keyed by the VIN itself.
func (p *Pipeline) AnalyzeVIN(ctx context.Context, rawVIN string) (model.AnalysisResult, error) {
	id, err := model.VINIdentifier(rawVIN)
	if err != nil {
		return model.AnalysisResult{}, err
	}

	result, fromCache, err := p.flights.Do(ctx, id.Key(), func(ctx context.Context) (model.AnalysisResult, error) {
		lot, resolveErr := p.resolver.Resolve(ctx, id)
		if resolveErr != nil {
			return model.AnalysisResult{}, resolveErr
		}
		return p.execute(ctx, *lot), nil
	})
	if err != nil {
		return model.AnalysisResult{}, err
	}
	result.Cached = fromCache
	return result, nil
}

// AnalyzeLot runs the full pipeline for a lot id and site. The lot is
// resolved first so the execution can be keyed by its VIN when one is
// known, letting lot and VIN requests for the same vehicle share a cache
// entry. Lots without a VIN key on "lotID:site".
func (p *Pipeline) AnalyzeLot(ctx context.Context, lotID int64, site model.Site) (model.AnalysisResult, error) {
	id, err := model.LotIdentifier(lotID, site)
	if err != nil {
		return model.AnalysisResult{}, err
	}

	lot, err := p.resolver.Resolve(ctx, id)
	if err != nil {
		return model.AnalysisResult{}, err
	}

	// Inventory feeds are not trusted on VIN casing; normalize so this
	// execution shares a cache key with the AnalyzeVIN path.
	key := id.Key()
	if lot.VIN != "" {
		if vin, vinErr := model.NormalizeVIN(lot.VIN); vinErr == nil {
			lot.VIN = vin
			key = vin
		}
	}

	result, fromCache, err := p.flights.Do(ctx, key, func(ctx context.Context) (model.AnalysisResult, error) {
		return p.execute(ctx, *lot), nil
	})
	if err != nil {
		return model.AnalysisResult{}, err
	}
	result.Cached = fromCache
	return result, nil
}

// execute fans out to every source for an already-resolved lot and joins
// the signals. It never fails: sources that error or outlive the outer
// timeout degrade into the result.
func (p *Pipeline) execute(ctx context.Context, lot model.LotRecord) model.AnalysisResult {
	start := time.Now()
	log := zap.L().With(zap.String("vin", lot.VIN), zap.Int64("lot_id", lot.LotID))
	log.Info("pipeline: starting analysis")

	ctx, cancel := context.WithTimeout(ctx, p.cfg.OuterTimeout)
	defer cancel()

	var (
		history         []model.HistoricalSaleRecord
		stats           *model.PriceStats
		historyDegraded bool
		visionResult    vision.Assessment
		marketResult    research.Insight
		comparables     []model.LotRecord
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if lot.VIN == "" {
			return nil
		}
		sales, err := resilience.DoVal(gCtx, p.cfg.HistoryRetry, func(ctx context.Context) ([]model.HistoricalSaleRecord, error) {
			return p.store.SalesByVIN(ctx, lot.VIN)
		})
		if err != nil {
			historyDegraded = true
			log.Warn("pipeline: history degraded", zap.Error(err))
			return nil
		}
		history = sales
		stats = store.ComputeStats(sales)
		return nil
	})

	g.Go(func() error {
		vCtx, vCancel := context.WithTimeout(gCtx, p.cfg.VisionTimeout)
		defer vCancel()
		visionResult = p.vision.Assess(vCtx, vision.Request{
			VIN:             lot.VIN,
			Year:            lot.Year,
			Make:            lot.Make,
			Model:           lot.Model,
			Series:          lot.Series,
			Mileage:         lot.Mileage,
			DamagePrimary:   lot.DamagePrimary,
			DamageSecondary: lot.DamageSecondary,
			ImageURLs:       lot.ImageURLs,
		})
		return nil
	})

	g.Go(func() error {
		rCtx, rCancel := context.WithTimeout(gCtx, p.cfg.ResearchTimeout)
		defer rCancel()
		marketResult = p.research.Lookup(rCtx, research.Request{
			Year:    lot.Year,
			Make:    lot.Make,
			Model:   lot.Model,
			Series:  lot.Series,
			Mileage: lot.Mileage,
			Damage:  lot.DamagePrimary,
		})
		return nil
	})

	g.Go(func() error {
		if lot.Make == "" || lot.Model == "" {
			return nil
		}
		comps, err := p.finder.ForLot(gCtx, lot)
		if err != nil {
			log.Warn("pipeline: comparable search degraded", zap.Error(err))
			return nil
		}
		comparables = comps
		return nil
	})

	// Source goroutines degrade instead of returning errors, so this only
	// waits for the join.
	_ = g.Wait()

	verdict := consensus.Evaluate(consensus.Inputs{
		Stats:           stats,
		HistoryDegraded: historyDegraded,
		Vision:          visionResult,
		Market:          marketResult,
	})

	result := model.AnalysisResult{
		Lot:         lot,
		History:     history,
		PriceStats:  stats,
		Vision:      visionResult,
		Market:      marketResult,
		Consensus:   verdict,
		Comparables: comparables,
		AnalyzedAt:  time.Now().UTC(),
	}

	duration := time.Since(start)
	p.recordAudit(lot, verdict, duration)

	log.Info("pipeline: analysis complete",
		zap.String("recommendation", string(verdict.Recommendation)),
		zap.Float64("confidence", verdict.Confidence),
		zap.Duration("duration", duration),
	)
	return result
}

// recordAudit persists the run record. Failures are logged, never surfaced:
// the analysis already succeeded from the caller's point of view. A fresh
// context is used because the request context may already be exhausted.
func (p *Pipeline) recordAudit(lot model.LotRecord, verdict model.ConsensusResult, duration time.Duration) {
	var degraded []string
	for _, src := range verdict.Sources {
		if src.State == model.SourceDegraded {
			degraded = append(degraded, src.Name)
		}
	}

	id := model.VehicleIdentifier{VIN: lot.VIN, LotID: lot.LotID, Site: lot.Site}
	audit := model.AnalysisAudit{
		Key:            id.Key(),
		VIN:            lot.VIN,
		LotID:          lot.LotID,
		Site:           lot.Site,
		Recommendation: verdict.Recommendation,
		Confidence:     verdict.Confidence,
		Degraded:       degraded,
		DurationMS:     duration.Milliseconds(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.store.RecordAnalysis(ctx, audit); err != nil {
		zap.L().Warn("pipeline: audit record failed", zap.String("key", audit.Key), zap.Error(err))
	}
}

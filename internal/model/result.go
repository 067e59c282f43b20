package model

import (
	"time"

	"github.com/salvageiq/auctionmind/pkg/research"
	"github.com/salvageiq/auctionmind/pkg/vision"
)

// Recommendation is the consensus verdict on a vehicle.
type Recommendation string

const (
	RecommendBuy     Recommendation = "BUY"
	RecommendCaution Recommendation = "CAUTION"
)

// SourceState records how a single signal source fared during a pipeline run.
type SourceState string

const (
	// SourceContributed means the source returned a usable signal.
	SourceContributed SourceState = "contributed"
	// SourceEmpty means the source responded but had nothing for this
	// vehicle (e.g. zero historical sales). Not a failure.
	SourceEmpty SourceState = "empty"
	// SourceDegraded means the source failed or timed out.
	SourceDegraded SourceState = "degraded"
	// SourceSkipped means the source was never called (no images, no VIN).
	SourceSkipped SourceState = "skipped"
)

// SourceReport names a source and how it ended up.
type SourceReport struct {
	Name   string      `json:"name"`
	State  SourceState `json:"state"`
	Detail string      `json:"detail,omitempty"`
}

// ConsensusResult is the merged recommendation across all sources.
type ConsensusResult struct {
	Recommendation Recommendation `json:"recommendation"`
	Confidence     float64        `json:"confidence"`
	Reasoning      string         `json:"reasoning"`
	Sources        []SourceReport `json:"sources"`
}

// AnalysisResult aggregates everything the pipeline produced for one vehicle.
// Once stored by the coordinator it is treated as immutable; the Cached flag
// is set only on the copy served to a caller.
type AnalysisResult struct {
	Lot         LotRecord              `json:"lot"`
	History     []HistoricalSaleRecord `json:"history"`
	PriceStats  *PriceStats            `json:"price_stats,omitempty"`
	Vision      vision.Assessment      `json:"vision"`
	Market      research.Insight       `json:"market"`
	Consensus   ConsensusResult        `json:"consensus"`
	Comparables []LotRecord            `json:"comparables"`
	AnalyzedAt  time.Time              `json:"analyzed_at"`
	Cached      bool                   `json:"cached"`
}

// AnalysisAudit is the persisted trail of one completed pipeline run.
type AnalysisAudit struct {
	ID             string         `json:"id"`
	Key            string         `json:"key"`
	VIN            string         `json:"vin,omitempty"`
	LotID          int64          `json:"lot_id,omitempty"`
	Site           Site           `json:"site,omitempty"`
	Recommendation Recommendation `json:"recommendation"`
	Confidence     float64        `json:"confidence"`
	Degraded       []string       `json:"degraded,omitempty"`
	DurationMS     int64          `json:"duration_ms"`
	CreatedAt      time.Time      `json:"created_at"`
}

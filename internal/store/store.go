package store

import (
	"context"

	"github.com/salvageiq/auctionmind/internal/model"
)

// Store is the persistence interface for cross-platform sales history and
// the analysis audit trail.
type Store interface {
	// SalesByVIN returns every known completed sale for a VIN, ordered by
	// sale date ascending. An empty slice is a valid result, not an error.
	SalesByVIN(ctx context.Context, vin string) ([]model.HistoricalSaleRecord, error)

	// RecordAnalysis persists the audit trail of one completed pipeline run.
	RecordAnalysis(ctx context.Context, audit model.AnalysisAudit) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Package resolver turns a VehicleIdentifier into a normalized LotRecord.
// It is stateless and safe for concurrent use.
package resolver

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/salvageiq/auctionmind/internal/model"
	"github.com/salvageiq/auctionmind/internal/store"
	"github.com/salvageiq/auctionmind/pkg/inventory"
)

// Resolver looks up lots against the live inventory, falling back to sales
// history when a VIN has no active listing.
type Resolver struct {
	inv     inventory.Client
	history store.Store
}

// New creates a Resolver.
func New(inv inventory.Client, history store.Store) *Resolver {
	return &Resolver{inv: inv, history: history}
}

// Resolve returns the LotRecord for an identifier.
//
// Lot identifiers query the live inventory for that site. VIN identifiers
// first try the active inventory; a VIN with no live listing but with sales
// history resolves to a minimal record synthesized from the most recent
// sale. A VIN known nowhere returns model.ErrNotFound.
func (r *Resolver) Resolve(ctx context.Context, id model.VehicleIdentifier) (*model.LotRecord, error) {
	if id.HasVIN() {
		return r.resolveVIN(ctx, id.VIN)
	}
	if id.LotID <= 0 {
		return nil, eris.Wrap(model.ErrInvalidInput, "resolver: identifier has neither vin nor lot id")
	}

	lot, err := r.inv.LiveLot(ctx, id.Site, id.LotID)
	if err != nil {
		return nil, err
	}
	return lot, nil
}

func (r *Resolver) resolveVIN(ctx context.Context, raw string) (*model.LotRecord, error) {
	vin, err := model.NormalizeVIN(raw)
	if err != nil {
		return nil, err
	}

	lot, err := r.inv.FindByVIN(ctx, vin)
	switch {
	case err == nil:
		return lot, nil
	case !errors.Is(err, model.ErrNotFound):
		return nil, err
	}

	// No active listing. A VIN with prior sales still supports analysis.
	sales, err := r.history.SalesByVIN(ctx, vin)
	if err != nil {
		return nil, eris.Wrap(err, "resolver: history fallback")
	}
	if len(sales) == 0 {
		return nil, eris.Wrapf(model.ErrNotFound, "resolver: vin %s", vin)
	}

	last := sales[len(sales)-1]
	for _, s := range sales {
		if s.SaleDate.After(last.SaleDate) {
			last = s
		}
	}

	zap.L().Info("resolver: synthesized lot from sales history",
		zap.String("vin", vin),
		zap.String("platform", last.Platform),
		zap.Int64("lot_id", last.LotID),
	)

	return &model.LotRecord{
		LotID:         last.LotID,
		Site:          siteFromPlatform(last.Platform),
		VIN:           vin,
		DamagePrimary: last.Damage,
	}, nil
}

func siteFromPlatform(platform string) model.Site {
	switch strings.ToLower(strings.TrimSpace(platform)) {
	case "copart":
		return model.SiteCopart
	case "iaai":
		return model.SiteIAAI
	default:
		return 0
	}
}

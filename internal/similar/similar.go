// Package similar finds and ranks active auction lots comparable to a
// reference vehicle. Ranking is pure and deterministic; the inventory
// search is the only I/O.
package similar

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/salvageiq/auctionmind/internal/model"
	"github.com/salvageiq/auctionmind/pkg/inventory"
)

const (
	// DefaultYearWindow widens the reference year by this much on each side.
	DefaultYearWindow = 2
	// DefaultMileageWindow widens the reference mileage on each side.
	DefaultMileageWindow = 30000
	// DefaultLimit caps the ranked result set.
	DefaultLimit = 20

	// yearWeight converts a one-year gap into mileage-equivalent distance,
	// so a year apart outranks any plausible mileage gap inside the window.
	yearWeight = 30000
)

// Criteria describes the comparable search. Make and Model are required.
// Callers either give explicit inclusive bounds (YearFrom/YearTo,
// MileageMin/MileageMax, honored exactly, equal bounds included) or just a
// reference Year/Mileage, which widens by the default windows. The reference
// point anchors the distance ranking; when only bounds are given it is
// derived from their midpoint.
type Criteria struct {
	Make       string
	Model      string
	Year       int
	Mileage    int64
	YearFrom   int
	YearTo     int
	MileageMin int64
	MileageMax int64
	DamageType string
	Limit      int
}

func (c *Criteria) normalize() error {
	c.Make = strings.TrimSpace(c.Make)
	c.Model = strings.TrimSpace(c.Model)
	if c.Make == "" || c.Model == "" {
		return eris.Wrap(model.ErrInvalidInput, "similar: make and model are required")
	}

	if c.YearFrom == 0 && c.YearTo == 0 && c.Year > 0 {
		c.YearFrom = c.Year - DefaultYearWindow
		c.YearTo = c.Year + DefaultYearWindow
	}
	if c.YearFrom > 0 && c.YearTo > 0 && c.YearTo < c.YearFrom {
		return eris.Wrapf(model.ErrInvalidInput, "similar: year range %d..%d is inverted", c.YearFrom, c.YearTo)
	}
	if c.Year == 0 {
		switch {
		case c.YearFrom > 0 && c.YearTo > 0:
			c.Year = (c.YearFrom + c.YearTo) / 2
		case c.YearFrom > 0:
			c.Year = c.YearFrom
		case c.YearTo > 0:
			c.Year = c.YearTo
		}
	}

	if c.MileageMin == 0 && c.MileageMax == 0 && c.Mileage > 0 {
		c.MileageMin = c.Mileage - DefaultMileageWindow
		c.MileageMax = c.Mileage + DefaultMileageWindow
	}
	if c.MileageMin < 0 {
		c.MileageMin = 0
	}
	if c.MileageMax > 0 && c.MileageMax < c.MileageMin {
		return eris.Wrapf(model.ErrInvalidInput, "similar: mileage range %d..%d is inverted", c.MileageMin, c.MileageMax)
	}
	if c.Mileage == 0 {
		switch {
		case c.MileageMax > 0:
			c.Mileage = (c.MileageMin + c.MileageMax) / 2
		case c.MileageMin > 0:
			c.Mileage = c.MileageMin
		}
	}

	if c.Limit <= 0 || c.Limit > DefaultLimit {
		c.Limit = DefaultLimit
	}
	return nil
}

// Finder ranks live inventory against a reference vehicle.
type Finder struct {
	inv inventory.Client
}

// NewFinder creates a Finder backed by the given inventory client.
func NewFinder(inv inventory.Client) *Finder {
	return &Finder{inv: inv}
}

// ForLot finds comparables for a resolved lot, excluding the lot itself.
func (f *Finder) ForLot(ctx context.Context, lot model.LotRecord) ([]model.LotRecord, error) {
	crit := Criteria{
		Make:       lot.Make,
		Model:      lot.Model,
		Year:       lot.Year,
		Mileage:    lot.Mileage,
		DamageType: lot.DamagePrimary,
	}
	return f.Find(ctx, crit, &lot)
}

// Find searches the live inventory and returns lots ranked by similarity.
// exclude, when non-nil, removes that listing from the results.
func (f *Finder) Find(ctx context.Context, crit Criteria, exclude *model.LotRecord) ([]model.LotRecord, error) {
	if err := crit.normalize(); err != nil {
		return nil, err
	}

	q := inventory.SearchQuery{
		Make:       crit.Make,
		Model:      crit.Model,
		YearFrom:   crit.YearFrom,
		YearTo:     crit.YearTo,
		MileageMin: crit.MileageMin,
		MileageMax: crit.MileageMax,
		DamageType: crit.DamageType,
		// Over-fetch so ranking has room to drop mismatches.
		Limit: crit.Limit * 3,
	}

	lots, err := f.inv.Search(ctx, q)
	if err != nil {
		return nil, eris.Wrap(err, "similar: inventory search")
	}

	ranked := Rank(crit, lots, exclude)
	zap.L().Debug("similar: ranked comparables",
		zap.String("make", crit.Make),
		zap.String("model", crit.Model),
		zap.Int("candidates", len(lots)),
		zap.Int("kept", len(ranked)),
	)
	return ranked, nil
}

// Rank filters candidates to exact make/model matches inside the inclusive
// bounds and orders them by distance to the reference, nearest first. Ties
// break on ascending lot id so repeated calls return identical orderings.
func Rank(crit Criteria, candidates []model.LotRecord, exclude *model.LotRecord) []model.LotRecord {
	wantMake := normalizeName(crit.Make)
	wantModel := normalizeName(crit.Model)

	kept := make([]model.LotRecord, 0, len(candidates))
	for _, c := range candidates {
		if exclude != nil && c.SameLot(*exclude) {
			continue
		}
		if normalizeName(c.Make) != wantMake || normalizeName(c.Model) != wantModel {
			continue
		}
		if crit.YearFrom > 0 && c.Year < crit.YearFrom {
			continue
		}
		if crit.YearTo > 0 && c.Year > crit.YearTo {
			continue
		}
		if crit.MileageMin > 0 && c.Mileage < crit.MileageMin {
			continue
		}
		if crit.MileageMax > 0 && c.Mileage > crit.MileageMax {
			continue
		}
		kept = append(kept, c)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		di, dj := distance(crit, kept[i]), distance(crit, kept[j])
		if di != dj {
			return di < dj
		}
		return kept[i].LotID < kept[j].LotID
	})

	if len(kept) > crit.Limit {
		kept = kept[:crit.Limit]
	}
	return kept
}

func distance(crit Criteria, lot model.LotRecord) int64 {
	var d int64
	if crit.Year > 0 {
		d += int64(absInt(lot.Year-crit.Year)) * yearWeight
	}
	if crit.Mileage > 0 {
		d += absInt64(lot.Mileage - crit.Mileage)
	}
	return d
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

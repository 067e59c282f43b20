package store

import (
	"math"

	"github.com/salvageiq/auctionmind/internal/model"
)

// ComputeStats summarizes sale prices over a record sequence. It is a pure
// function; for an empty sequence it returns nil so callers never mistake
// "no data" for a zero average.
func ComputeStats(records []model.HistoricalSaleRecord) *model.PriceStats {
	if len(records) == 0 {
		return nil
	}

	stats := &model.PriceStats{
		Count: len(records),
		Min:   records[0].Price,
		Max:   records[0].Price,
	}

	var sum float64
	for _, r := range records {
		sum += r.Price
		if r.Price < stats.Min {
			stats.Min = r.Price
		}
		if r.Price > stats.Max {
			stats.Max = r.Price
		}
		if r.SaleDate.After(stats.LastSale) || stats.LastSale.IsZero() {
			stats.LastSale = r.SaleDate
			stats.MostRecent = r.Price
		}
	}
	stats.Average = sum / float64(len(records))

	var sqSum float64
	for _, r := range records {
		d := r.Price - stats.Average
		sqSum += d * d
	}
	stats.StdDev = math.Sqrt(sqSum / float64(len(records)))

	return stats
}

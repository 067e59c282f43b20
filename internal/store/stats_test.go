package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salvageiq/auctionmind/internal/model"
)

func day(d int) time.Time {
	return time.Date(2025, time.March, d, 0, 0, 0, 0, time.UTC)
}

func TestComputeStatsEmpty(t *testing.T) {
	assert.Nil(t, ComputeStats(nil))
	assert.Nil(t, ComputeStats([]model.HistoricalSaleRecord{}))
}

func TestComputeStatsSingleRecord(t *testing.T) {
	stats := ComputeStats([]model.HistoricalSaleRecord{
		{Platform: "copart", Price: 8200, SaleDate: day(1)},
	})
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.Count)
	assert.InDelta(t, 8200, stats.Average, 0.001)
	assert.InDelta(t, 8200, stats.Min, 0.001)
	assert.InDelta(t, 8200, stats.Max, 0.001)
	assert.InDelta(t, 8200, stats.MostRecent, 0.001)
}

func TestComputeStatsMultipleRecords(t *testing.T) {
	stats := ComputeStats([]model.HistoricalSaleRecord{
		{Platform: "copart", Price: 7800, SaleDate: day(1)},
		{Platform: "iaai", Price: 8200, SaleDate: day(10)},
		{Platform: "copart", Price: 8600, SaleDate: day(5)},
	})
	require.NotNil(t, stats)
	assert.Equal(t, 3, stats.Count)
	assert.InDelta(t, 8200, stats.Average, 0.001)
	assert.InDelta(t, 7800, stats.Min, 0.001)
	assert.InDelta(t, 8600, stats.Max, 0.001)
	// most recent by sale date, not by position
	assert.InDelta(t, 8200, stats.MostRecent, 0.001)
	assert.Equal(t, day(10), stats.LastSale)
	// population stddev of {7800, 8200, 8600}
	assert.InDelta(t, 326.599, stats.StdDev, 0.01)
}

func TestComputeStatsStdDevSingle(t *testing.T) {
	stats := ComputeStats([]model.HistoricalSaleRecord{{Price: 8200, SaleDate: day(1)}})
	require.NotNil(t, stats)
	assert.InDelta(t, 0, stats.StdDev, 0.0001)
}

func TestComputeStatsMostRecentUnordered(t *testing.T) {
	stats := ComputeStats([]model.HistoricalSaleRecord{
		{Price: 9000, SaleDate: day(20)},
		{Price: 5000, SaleDate: day(2)},
	})
	require.NotNil(t, stats)
	assert.InDelta(t, 9000, stats.MostRecent, 0.001)
}

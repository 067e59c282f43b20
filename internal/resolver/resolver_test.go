package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salvageiq/auctionmind/internal/model"
	"github.com/salvageiq/auctionmind/pkg/inventory"
)

const testVIN = "1HGCM82633A004352"

type stubInventory struct {
	liveLot   *model.LotRecord
	liveErr   error
	byVIN     *model.LotRecord
	byVINErr  error
	liveCalls int
	vinCalls  int
}

func (s *stubInventory) LiveLot(ctx context.Context, site model.Site, lotID int64) (*model.LotRecord, error) {
	s.liveCalls++
	return s.liveLot, s.liveErr
}

func (s *stubInventory) FindByVIN(ctx context.Context, vin string) (*model.LotRecord, error) {
	s.vinCalls++
	return s.byVIN, s.byVINErr
}

func (s *stubInventory) Search(ctx context.Context, q inventory.SearchQuery) ([]model.LotRecord, error) {
	panic("not used")
}

type stubStore struct {
	sales []model.HistoricalSaleRecord
	err   error
	calls int
}

func (s *stubStore) SalesByVIN(ctx context.Context, vin string) ([]model.HistoricalSaleRecord, error) {
	s.calls++
	return s.sales, s.err
}

func (s *stubStore) RecordAnalysis(ctx context.Context, audit model.AnalysisAudit) error {
	return nil
}

func (s *stubStore) Migrate(ctx context.Context) error { return nil }
func (s *stubStore) Close() error                      { return nil }

func TestResolveLotIdentifier(t *testing.T) {
	want := &model.LotRecord{LotID: 57442255, Site: model.SiteCopart, VIN: testVIN, Make: "Honda"}
	inv := &stubInventory{liveLot: want}
	r := New(inv, &stubStore{})

	id, err := model.LotIdentifier(57442255, model.SiteCopart)
	require.NoError(t, err)

	got, err := r.Resolve(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 1, inv.liveCalls)
}

func TestResolveVINWithLiveListing(t *testing.T) {
	want := &model.LotRecord{LotID: 100, Site: model.SiteIAAI, VIN: testVIN}
	inv := &stubInventory{byVIN: want}
	st := &stubStore{}
	r := New(inv, st)

	got, err := r.Resolve(context.Background(), model.VehicleIdentifier{VIN: testVIN})
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Zero(t, st.calls, "history not consulted when a live listing exists")
}

func TestResolveVINSynthesizesFromHistory(t *testing.T) {
	inv := &stubInventory{byVINErr: eris.Wrap(model.ErrNotFound, "inventory")}
	st := &stubStore{sales: []model.HistoricalSaleRecord{
		{Platform: "iaai", LotID: 11, SaleDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Price: 6000},
		{Platform: "copart", LotID: 22, SaleDate: time.Date(2025, 7, 9, 0, 0, 0, 0, time.UTC), Price: 7200, Damage: "rear end"},
	}}
	r := New(inv, st)

	got, err := r.Resolve(context.Background(), model.VehicleIdentifier{VIN: testVIN})
	require.NoError(t, err)
	assert.Equal(t, testVIN, got.VIN)
	assert.Equal(t, int64(22), got.LotID)
	assert.Equal(t, model.SiteCopart, got.Site)
	assert.Equal(t, "rear end", got.DamagePrimary)
}

func TestResolveVINNotFoundAnywhere(t *testing.T) {
	inv := &stubInventory{byVINErr: eris.Wrap(model.ErrNotFound, "inventory")}
	r := New(inv, &stubStore{})

	_, err := r.Resolve(context.Background(), model.VehicleIdentifier{VIN: testVIN})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestResolveMalformedVINFailsBeforeOutboundCall(t *testing.T) {
	inv := &stubInventory{}
	r := New(inv, &stubStore{})

	_, err := r.Resolve(context.Background(), model.VehicleIdentifier{VIN: "SHORT"})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
	assert.Zero(t, inv.vinCalls)
}

func TestResolveInventoryFailurePropagates(t *testing.T) {
	boom := eris.New("inventory: retries exhausted")
	inv := &stubInventory{byVINErr: boom}
	st := &stubStore{}
	r := New(inv, st)

	_, err := r.Resolve(context.Background(), model.VehicleIdentifier{VIN: testVIN})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, st.calls, "hard inventory failure is not masked by the fallback")
}

func TestResolveEmptyIdentifierRejected(t *testing.T) {
	r := New(&stubInventory{}, &stubStore{})

	_, err := r.Resolve(context.Background(), model.VehicleIdentifier{})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

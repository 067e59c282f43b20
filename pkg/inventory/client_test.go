package inventory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salvageiq/auctionmind/internal/model"
)

func TestLiveLot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/sites/1/lots/57442255", r.URL.Path)
		assert.Equal(t, "Bearer inv-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(model.LotRecord{
			LotID:         57442255,
			Site:          model.SiteCopart,
			VIN:           "1HGBH41JXMN109186",
			Year:          2019,
			Make:          "Honda",
			Model:         "Civic",
			Mileage:       42000,
			CurrentBid:    6500,
			DamagePrimary: "front end",
			ImageURLs:     []string{"https://img.example/1.jpg"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "inv-key")
	lot, err := c.LiveLot(context.Background(), model.SiteCopart, 57442255)
	require.NoError(t, err)
	assert.Equal(t, int64(57442255), lot.LotID)
	assert.Equal(t, "1HGBH41JXMN109186", lot.VIN)
	assert.Equal(t, "Honda", lot.Make)
	assert.Len(t, lot.ImageURLs, 1)
}

func TestLiveLotNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, err := c.LiveLot(context.Background(), model.SiteIAAI, 99)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestFindByVIN(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/lots/by-vin/1HGBH41JXMN109186", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(model.LotRecord{LotID: 7, Site: model.SiteCopart, VIN: "1HGBH41JXMN109186"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	lot, err := c.FindByVIN(context.Background(), "1HGBH41JXMN109186")
	require.NoError(t, err)
	assert.Equal(t, int64(7), lot.LotID)
}

func TestSearchBuildsQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/lots/active", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "Honda", q.Get("make"))
		assert.Equal(t, "Civic", q.Get("model"))
		assert.Equal(t, "2017", q.Get("year_from"))
		assert.Equal(t, "2021", q.Get("year_to"))
		assert.Equal(t, "12000", q.Get("mileage_min"))
		assert.Equal(t, "72000", q.Get("mileage_max"))
		assert.Equal(t, "front end", q.Get("damage"))
		assert.Equal(t, "50", q.Get("limit"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"lots":[{"lot_id":1,"site":1,"make":"Honda","model":"Civic","year":2019}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	lots, err := c.Search(context.Background(), SearchQuery{
		Make:       "Honda",
		Model:      "Civic",
		YearFrom:   2017,
		YearTo:     2021,
		MileageMin: 12000,
		MileageMax: 72000,
		DamageType: "front end",
		Limit:      50,
	})
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.Equal(t, "Civic", lots[0].Model)
}

func TestSearchEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"lots":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	lots, err := c.Search(context.Background(), SearchQuery{Make: "Honda", Model: "Civic"})
	require.NoError(t, err)
	assert.Empty(t, lots)
}

func TestRetriesTransientStatus(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(model.LotRecord{LotID: 42, Site: model.SiteCopart})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", WithRateLimit(1000, 1000))
	lot, err := c.LiveLot(context.Background(), model.SiteCopart, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), lot.LotID)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestRetriesExhausted(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", WithRateLimit(1000, 1000), WithMaxAttempts(2))
	_, err := c.LiveLot(context.Background(), model.SiteCopart, 42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retries exhausted")
	assert.Equal(t, int32(2), attempts.Load())
}

func TestNoRetryOnNotFound(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, err := c.FindByVIN(context.Background(), "1HGBH41JXMN109186")
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestContextCancellationStopsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(srv.URL, "")
	_, err := c.LiveLot(ctx, model.SiteCopart, 1)
	require.Error(t, err)
}

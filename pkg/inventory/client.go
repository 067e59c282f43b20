package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/salvageiq/auctionmind/internal/model"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultAttempts = 3
)

// SearchQuery filters the active-lot inventory.
type SearchQuery struct {
	Make       string
	Model      string
	YearFrom   int
	YearTo     int
	MileageMin int64
	MileageMax int64
	DamageType string
	Limit      int
}

// Client queries the live auction inventory service.
type Client interface {
	// LiveLot fetches the current listing for a lot id on a site.
	// Returns model.ErrNotFound when the lot is not listed.
	LiveLot(ctx context.Context, site model.Site, lotID int64) (*model.LotRecord, error)
	// FindByVIN fetches the currently active listing for a VIN, if any.
	FindByVIN(ctx context.Context, vin string) (*model.LotRecord, error)
	// Search returns active lots matching the query.
	Search(ctx context.Context, q SearchQuery) ([]model.LotRecord, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the default request rate to the inventory API.
func WithRateLimit(perSec float64, burst int) Option {
	return func(c *httpClient) {
		if perSec > 0 && burst > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
		}
	}
}

// WithMaxAttempts overrides the retry budget for transient failures.
func WithMaxAttempts(n int) Option {
	return func(c *httpClient) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

type httpClient struct {
	baseURL     string
	apiKey      string
	http        *http.Client
	limiter     *rate.Limiter
	maxAttempts int
}

// NewClient creates an inventory client for the given API base URL.
func NewClient(baseURL, apiKey string, opts ...Option) Client {
	c := &httpClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http: &http.Client{
			Timeout: defaultTimeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter:     rate.NewLimiter(10, 10),
		maxAttempts: defaultAttempts,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) LiveLot(ctx context.Context, site model.Site, lotID int64) (*model.LotRecord, error) {
	path := fmt.Sprintf("/v1/sites/%d/lots/%d", int(site), lotID)
	var lot model.LotRecord
	if err := c.getJSON(ctx, path, nil, &lot); err != nil {
		return nil, err
	}
	return &lot, nil
}

func (c *httpClient) FindByVIN(ctx context.Context, vin string) (*model.LotRecord, error) {
	var lot model.LotRecord
	if err := c.getJSON(ctx, "/v1/lots/by-vin/"+url.PathEscape(vin), nil, &lot); err != nil {
		return nil, err
	}
	return &lot, nil
}

func (c *httpClient) Search(ctx context.Context, q SearchQuery) ([]model.LotRecord, error) {
	params := url.Values{}
	params.Set("make", q.Make)
	params.Set("model", q.Model)
	if q.YearFrom > 0 {
		params.Set("year_from", strconv.Itoa(q.YearFrom))
	}
	if q.YearTo > 0 {
		params.Set("year_to", strconv.Itoa(q.YearTo))
	}
	if q.MileageMin > 0 {
		params.Set("mileage_min", strconv.FormatInt(q.MileageMin, 10))
	}
	if q.MileageMax > 0 {
		params.Set("mileage_max", strconv.FormatInt(q.MileageMax, 10))
	}
	if q.DamageType != "" {
		params.Set("damage", q.DamageType)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	var payload struct {
		Lots []model.LotRecord `json:"lots"`
	}
	if err := c.getJSON(ctx, "/v1/lots/active", params, &payload); err != nil {
		return nil, err
	}
	return payload.Lots, nil
}

func (c *httpClient) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var lastErr error
	for attempt := range c.maxAttempts {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "inventory: rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return eris.Wrap(err, "inventory: create request")
		}
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return eris.Wrap(err, "inventory: send request")
			}
			lastErr = err
			c.backoff(ctx, attempt)
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			c.backoff(ctx, attempt)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return eris.Wrapf(model.ErrNotFound, "inventory: %s", path)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = eris.Errorf("inventory: status %d from %s", resp.StatusCode, path)
			zap.L().Warn("inventory: transient error, retrying",
				zap.String("path", path),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1),
			)
			c.backoff(ctx, attempt)
			continue
		case resp.StatusCode != http.StatusOK:
			return eris.Errorf("inventory: unexpected status %d: %s", resp.StatusCode, string(body))
		}

		if err := json.Unmarshal(body, out); err != nil {
			return eris.Wrap(err, "inventory: unmarshal response")
		}
		return nil
	}

	return eris.Wrap(lastErr, "inventory: retries exhausted")
}

func (c *httpClient) backoff(ctx context.Context, attempt int) {
	base := 200 * time.Millisecond
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if d > 2*time.Second {
		d = 2 * time.Second
	}
	d += time.Duration(rand.Int64N(int64(d) / 2))

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

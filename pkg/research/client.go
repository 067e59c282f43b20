package research

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://api.perplexity.ai"
	defaultModel   = "sonar-pro"
	defaultTimeout = 15 * time.Second
)

// Request carries the vehicle attributes for one market lookup.
type Request struct {
	Year    int
	Make    string
	Model   string
	Series  string
	Mileage int64
	Damage  string
}

// Client answers market research questions about a vehicle. Lookup never
// returns an error: backend failures degrade into an Unavailable sentinel.
type Client interface {
	Lookup(ctx context.Context, req Request) Insight
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		if url != "" {
			c.baseURL = url
		}
	}
}

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *httpClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	model   string
	timeout time.Duration
	http    *http.Client
}

// NewClient creates a market research client against a Perplexity-style
// chat completions API.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		model:   defaultModel,
		timeout: defaultTimeout,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

const researchPrompt = `You research the US salvage and used vehicle market.
Start your answer with one line "TREND: rising" or "TREND: falling" or
"TREND: stable", then give a short paragraph on resale demand, typical
auction prices and anything notable about this vehicle.`

func (c *httpClient) Lookup(ctx context.Context, req Request) Insight {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.chatCompletion(ctx, chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: researchPrompt},
			{Role: "user", Content: describeVehicle(req)},
		},
	})
	if err != nil {
		zap.L().Warn("research: market lookup failed",
			zap.String("make", req.Make),
			zap.String("model", req.Model),
			zap.Error(err),
		)
		return Unavailable("research backend error")
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return Unavailable("empty research reply")
	}

	trend, narrative := splitTrend(resp.Choices[0].Message.Content)
	if narrative == "" {
		// A bare TREND line carries no narrative to reason over.
		return Unavailable("empty research reply")
	}
	return Insight{State: StateAvailable, Narrative: narrative, Trend: trend}
}

func (c *httpClient) chatCompletion(ctx context.Context, req chatRequest) (*chatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "research: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "research: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "research: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "research: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("research: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "research: unmarshal response")
	}
	return &result, nil
}

func describeVehicle(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d %s %s", req.Year, req.Make, req.Model)
	if req.Series != "" {
		fmt.Fprintf(&b, " %s", req.Series)
	}
	if req.Mileage > 0 {
		fmt.Fprintf(&b, " with %d miles", req.Mileage)
	}
	if req.Damage != "" {
		fmt.Fprintf(&b, ", %s damage", req.Damage)
	}
	return b.String()
}

// splitTrend pulls the leading TREND line off the narrative, if present.
func splitTrend(content string) (Trend, string) {
	trimmed := strings.TrimSpace(content)
	line, rest, found := strings.Cut(trimmed, "\n")
	tag, ok := strings.CutPrefix(strings.TrimSpace(line), "TREND:")
	if !ok {
		return TrendUnknown, trimmed
	}

	var trend Trend
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "rising":
		trend = TrendRising
	case "falling":
		trend = TrendFalling
	case "stable":
		trend = TrendStable
	default:
		return TrendUnknown, trimmed
	}

	if !found {
		return trend, ""
	}
	return trend, strings.TrimSpace(rest)
}

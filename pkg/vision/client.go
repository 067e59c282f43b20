package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

const (
	defaultModel     = "claude-haiku-4-5-20251001"
	defaultTimeout   = 20 * time.Second
	defaultMaxImages = 6
	maxReplyTokens   = 1024
)

// Request carries the vehicle attributes and image URLs for one assessment.
type Request struct {
	VIN             string
	Year            int
	Make            string
	Model           string
	Series          string
	Mileage         int64
	DamagePrimary   string
	DamageSecondary string
	ImageURLs       []string
}

// Client produces condition assessments from lot images. Assess never
// returns an error: provider failures degrade into an Unavailable sentinel
// so the caller's pipeline can continue.
type Client interface {
	Assess(ctx context.Context, req Request) Assessment
}

// Option configures the client.
type Option func(*sdkClient)

// WithModel overrides the default vision model.
func WithModel(model string) Option {
	return func(c *sdkClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *sdkClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxImages caps how many image URLs are attached to one call.
func WithMaxImages(n int) Option {
	return func(c *sdkClient) {
		if n > 0 {
			c.maxImages = n
		}
	}
}

// WithRequestOptions passes extra options to the underlying SDK client,
// such as a base URL override for tests.
func WithRequestOptions(opts ...option.RequestOption) Option {
	return func(c *sdkClient) {
		c.sdkOpts = append(c.sdkOpts, opts...)
	}
}

type sdkClient struct {
	client    sdk.Client
	model     string
	timeout   time.Duration
	maxImages int
	sdkOpts   []option.RequestOption
}

// NewClient creates a vision client backed by the Anthropic SDK.
func NewClient(apiKey string, opts ...Option) Client {
	c := &sdkClient{
		model:     defaultModel,
		timeout:   defaultTimeout,
		maxImages: defaultMaxImages,
		sdkOpts:   []option.RequestOption{option.WithAPIKey(apiKey)},
	}
	for _, o := range opts {
		o(c)
	}
	c.client = sdk.NewClient(c.sdkOpts...)
	return c
}

const systemPrompt = `You are a vehicle damage appraiser reviewing auction lot photos.
Reply with a single JSON object and nothing else:
{"summary": "<one paragraph condition summary>",
 "damage_areas": ["<tag>", ...],
 "repair_cost_low": <usd>,
 "repair_cost_high": <usd>,
 "confidence": <0-100>}
Damage area tags must come from: front_end, rear_end, side, undercarriage,
frame, structural, rollover, flood, water, fire, burn, hail, interior,
mechanical, glass, minor_dent_scratch.`

func (c *sdkClient) Assess(ctx context.Context, req Request) Assessment {
	if len(req.ImageURLs) == 0 {
		return NoImages()
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	urls := req.ImageURLs
	if len(urls) > c.maxImages {
		urls = urls[:c.maxImages]
	}

	blocks := make([]sdk.ContentBlockParamUnion, 0, len(urls)+1)
	blocks = append(blocks, sdk.NewTextBlock(c.describeVehicle(req)))
	for _, u := range urls {
		blocks = append(blocks, sdk.NewImageBlock(sdk.URLImageSourceParam{URL: u}))
	}

	msg, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: maxReplyTokens,
		System:    []sdk.TextBlockParam{{Text: systemPrompt}},
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(blocks...)},
	})
	if err != nil {
		zap.L().Warn("vision: assessment call failed",
			zap.String("vin", req.VIN),
			zap.Int("images", len(urls)),
			zap.Error(err),
		)
		return Unavailable("vision provider error")
	}

	var text strings.Builder
	for _, b := range msg.Content {
		if b.Type == "text" {
			text.WriteString(b.Text)
		}
	}

	assessment, err := parseAssessment(text.String(), len(urls))
	if err != nil {
		zap.L().Warn("vision: unparseable assessment reply",
			zap.String("vin", req.VIN),
			zap.Error(err),
		)
		return Unavailable("unparseable vision reply")
	}
	return assessment
}

func (c *sdkClient) describeVehicle(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Assess this vehicle: %d %s %s", req.Year, req.Make, req.Model)
	if req.Series != "" {
		fmt.Fprintf(&b, " %s", req.Series)
	}
	if req.Mileage > 0 {
		fmt.Fprintf(&b, ", %d miles", req.Mileage)
	}
	if req.DamagePrimary != "" {
		fmt.Fprintf(&b, ". Listed primary damage: %s", req.DamagePrimary)
	}
	if req.DamageSecondary != "" {
		fmt.Fprintf(&b, ", secondary: %s", req.DamageSecondary)
	}
	b.WriteString(".")
	return b.String()
}

// assessmentPayload is the JSON shape the model is instructed to reply with.
type assessmentPayload struct {
	Summary        string   `json:"summary"`
	DamageAreas    []string `json:"damage_areas"`
	RepairCostLow  float64  `json:"repair_cost_low"`
	RepairCostHigh float64  `json:"repair_cost_high"`
	Confidence     float64  `json:"confidence"`
}

// parseAssessment extracts the JSON object from the reply text, tolerating
// surrounding prose or markdown fencing.
func parseAssessment(text string, imageCount int) (Assessment, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Assessment{}, fmt.Errorf("no JSON object in reply")
	}

	var payload assessmentPayload
	if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err != nil {
		return Assessment{}, err
	}
	if payload.Summary == "" {
		return Assessment{}, fmt.Errorf("reply missing summary")
	}

	conf := payload.Confidence
	if conf < 0 {
		conf = 0
	}
	if conf > 100 {
		conf = 100
	}

	return Assessment{
		State:          StateAvailable,
		HasImages:      true,
		ImageCount:     imageCount,
		Summary:        payload.Summary,
		DamageAreas:    payload.DamageAreas,
		RepairCostLow:  payload.RepairCostLow,
		RepairCostHigh: payload.RepairCostHigh,
		Confidence:     conf,
	}, nil
}

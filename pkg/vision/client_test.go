package vision

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func messageReply(text string) string {
	body, _ := json.Marshal(map[string]any{
		"id":          "msg_01",
		"type":        "message",
		"role":        "assistant",
		"model":       "claude-haiku-4-5-20251001",
		"stop_reason": "end_turn",
		"content":     []map[string]any{{"type": "text", "text": text}},
		"usage":       map[string]any{"input_tokens": 100, "output_tokens": 50},
	})
	return string(body)
}

func testClient(srvURL string, opts ...Option) Client {
	opts = append(opts, WithRequestOptions(
		option.WithBaseURL(srvURL),
		option.WithMaxRetries(0),
	))
	return NewClient("test-key", opts...)
}

func TestAssessNoImagesSkipsCall(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(messageReply("{}")))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	got := c.Assess(context.Background(), Request{Year: 2019, Make: "Honda", Model: "Civic"})

	assert.Equal(t, StateNoImages, got.State)
	assert.False(t, got.HasImages)
	assert.False(t, got.Usable())
	assert.Equal(t, int32(0), calls.Load(), "no outbound call expected for empty image list")
}

func TestAssessParsesStructuredReply(t *testing.T) {
	reply := `{"summary":"Moderate front end damage, airbags intact.","damage_areas":["front_end","glass"],"repair_cost_low":1800,"repair_cost_high":3200,"confidence":80}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		msgs, ok := req["messages"].([]any)
		require.True(t, ok)
		require.Len(t, msgs, 1)
		content := msgs[0].(map[string]any)["content"].([]any)
		// one text block plus one block per image
		assert.Len(t, content, 3)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(messageReply(reply)))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	got := c.Assess(context.Background(), Request{
		Year:      2019,
		Make:      "Honda",
		Model:     "Civic",
		ImageURLs: []string{"https://img.example/1.jpg", "https://img.example/2.jpg"},
	})

	require.Equal(t, StateAvailable, got.State)
	assert.True(t, got.HasImages)
	assert.Equal(t, 2, got.ImageCount)
	assert.Equal(t, "Moderate front end damage, airbags intact.", got.Summary)
	assert.Equal(t, []string{"front_end", "glass"}, got.DamageAreas)
	assert.InDelta(t, 1800, got.RepairCostLow, 0.01)
	assert.InDelta(t, 3200, got.RepairCostHigh, 0.01)
	assert.InDelta(t, 80, got.Confidence, 0.01)
}

func TestAssessCapsImageCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		content := req["messages"].([]any)[0].(map[string]any)["content"].([]any)
		assert.Len(t, content, 3, "text block plus maxImages image blocks")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(messageReply(`{"summary":"ok","confidence":50}`)))
	}))
	defer srv.Close()

	c := testClient(srv.URL, WithMaxImages(2))
	urls := []string{"a", "b", "c", "d", "e"}
	got := c.Assess(context.Background(), Request{ImageURLs: urls})

	require.Equal(t, StateAvailable, got.State)
	assert.Equal(t, 2, got.ImageCount)
}

func TestAssessProviderErrorDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"boom"}}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	got := c.Assess(context.Background(), Request{ImageURLs: []string{"https://img.example/1.jpg"}})

	assert.Equal(t, StateUnavailable, got.State)
	assert.True(t, got.HasImages)
	assert.Equal(t, "vision provider error", got.Reason)
}

func TestAssessTimeoutDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		_, _ = w.Write([]byte(messageReply("{}")))
	}))
	defer srv.Close()

	c := testClient(srv.URL, WithTimeout(50*time.Millisecond))
	start := time.Now()
	got := c.Assess(context.Background(), Request{ImageURLs: []string{"https://img.example/1.jpg"}})

	assert.Equal(t, StateUnavailable, got.State)
	assert.Less(t, time.Since(start), time.Second)
}

func TestAssessUnparseableReplyDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(messageReply("I cannot assess these images.")))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	got := c.Assess(context.Background(), Request{ImageURLs: []string{"https://img.example/1.jpg"}})

	assert.Equal(t, StateUnavailable, got.State)
	assert.Equal(t, "unparseable vision reply", got.Reason)
}

func TestParseAssessment(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr bool
		check   func(t *testing.T, a Assessment)
	}{
		{
			name: "fenced_json",
			text: "```json\n{\"summary\":\"clean\",\"confidence\":90}\n```",
			check: func(t *testing.T, a Assessment) {
				assert.Equal(t, "clean", a.Summary)
				assert.InDelta(t, 90, a.Confidence, 0.01)
			},
		},
		{
			name: "confidence_clamped_high",
			text: `{"summary":"x","confidence":150}`,
			check: func(t *testing.T, a Assessment) {
				assert.InDelta(t, 100, a.Confidence, 0.01)
			},
		},
		{
			name: "confidence_clamped_low",
			text: `{"summary":"x","confidence":-5}`,
			check: func(t *testing.T, a Assessment) {
				assert.InDelta(t, 0, a.Confidence, 0.01)
			},
		},
		{name: "missing_summary", text: `{"confidence":50}`, wantErr: true},
		{name: "no_json", text: "nothing here", wantErr: true},
		{name: "broken_json", text: `{"summary": unterminated`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAssessment(tt.text, 1)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, StateAvailable, got.State)
			tt.check(t, got)
		})
	}
}

package coach

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeQuestAPI/internal/apperr"
	"tradeQuestAPI/internal/config"
)

func decimals(vals ...float64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(vals))
	for i, v := range vals {
		out[i] = decimal.NewFromFloat(v)
	}
	return out
}

func TestEvaluateBacktest(t *testing.T) {
	r, err := EvaluateBacktest(&BacktestRequest{
		Name:           "breakout",
		InitialCapital: decimal.NewFromInt(1000),
		TradePnLs:      decimals(100, -50, 200, -25),
	})
	require.NoError(t, err)

	assert.Equal(t, 4, r.ClosedTrades)
	assert.Equal(t, 2, r.WinningTrades)
	assert.Equal(t, "1225", r.FinalCapital.String())
	assert.Equal(t, 22.5, r.ROI)
	require.Len(t, r.EquityCurve, 5)
	assert.Equal(t, "1050", r.EquityCurve[2].String())
	assert.Equal(t, "50", r.MaxDrawdown.String())
}

func TestEvaluateBacktestNeedsCapital(t *testing.T) {
	_, err := EvaluateBacktest(&BacktestRequest{TradePnLs: decimals(1)})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestPrompts(t *testing.T) {
	trader := Trader{Name: "ada", Level: 4, WinRate: 55.5}

	p := SetupAnalysisPrompt(trader, &SetupAnalysisRequest{Symbol: "EURUSD", ScreenshotBase64: "AAAA"})
	assert.Equal(t, "data:image/png;base64,AAAA", p.ImageURL)
	assert.Contains(t, p.System, "EURUSD")
	assert.Contains(t, p.System, "Timeframe: not specified")
	assert.Contains(t, p.System, "Win rate: 55.5%")

	c := CoachingPrompt(trader, &CoachingRequest{Message: "How do I stop revenge trading?"})
	assert.Equal(t, "How do I stop revenge trading?", c.User)
	assert.Empty(t, c.ImageURL)
}

func TestCompleteAgainstFakeAPI(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Cut losses early."},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	client := NewClient(config.OpenAIConfig{APIKey: "test", Model: "gpt-4o-mini", BaseURL: srv.URL, Timeout: time.Second})
	out, err := client.Complete(context.Background(), Prompt{System: "coach", User: "help", MaxTokens: 10})
	require.NoError(t, err)
	assert.Equal(t, "Cut losses early.", out)
	assert.Equal(t, "gpt-4o-mini", got["model"])
}

func TestCompleteUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer srv.Close()

	client := NewClient(config.OpenAIConfig{APIKey: "test", Model: "m", BaseURL: srv.URL, Timeout: time.Second})
	_, err := client.Complete(context.Background(), Prompt{System: "s", User: "u"})
	assert.ErrorIs(t, err, apperr.ErrUpstreamUnavailable)
}

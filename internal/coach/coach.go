// Package coach talks to the OpenAI chat API for setup analysis, coaching
// and backtest reviews.
package coach

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"

	"tradeQuestAPI/internal/apperr"
	"tradeQuestAPI/internal/config"
	"tradeQuestAPI/internal/stats"
)

type Kind string

const (
	KindSetupAnalysis Kind = "setup_analysis"
	KindCoaching      Kind = "coaching"
	KindBacktest      Kind = "backtest"
)

type SetupAnalysisRequest struct {
	Symbol           string `json:"symbol" validate:"max=20"`
	Timeframe        string `json:"timeframe" validate:"max=10"`
	Notes            string `json:"notes" validate:"max=2000"`
	ScreenshotBase64 string `json:"screenshot_base64" validate:"required"`
}

type CoachingRequest struct {
	Message string `json:"message" validate:"required,max=4000"`
	Context string `json:"context" validate:"max=100"`
}

type BacktestRequest struct {
	Name           string            `json:"name" validate:"required,max=100"`
	Strategy       string            `json:"strategy" validate:"required,max=4000"`
	Symbol         string            `json:"symbol" validate:"max=20"`
	Timeframe      string            `json:"timeframe" validate:"max=10"`
	InitialCapital decimal.Decimal   `json:"initial_capital"`
	TradePnLs      []decimal.Decimal `json:"trade_pnls" validate:"required,min=1,max=1000"`
}

type BacktestResult struct {
	stats.TradeStats
	InitialCapital decimal.Decimal   `json:"initial_capital"`
	FinalCapital   decimal.Decimal   `json:"final_capital"`
	ROI            float64           `json:"roi"`
	EquityCurve    []decimal.Decimal `json:"equity_curve"`
}

type Response struct {
	Kind      Kind            `json:"kind"`
	Response  string          `json:"response"`
	Backtest  *BacktestResult `json:"backtest,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Prompt is one chat completion. ImageURL, when set, is sent as a vision
// part of the user message.
type Prompt struct {
	System    string
	User      string
	ImageURL  string
	MaxTokens int
}

type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
}

func NewClient(cfg config.OpenAIConfig) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		api:     openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		timeout: timeout,
	}
}

func (c *Client) Complete(ctx context.Context, p Prompt) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	user := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if p.ImageURL != "" {
		user.MultiContent = []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: p.User},
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
				URL:    p.ImageURL,
				Detail: openai.ImageURLDetailAuto,
			}},
		}
	} else {
		user.Content = p.User
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.System},
			user,
		},
		MaxTokens: p.MaxTokens,
	})
	if err != nil {
		return "", apperr.Upstream("openai", err)
	}
	if len(resp.Choices) == 0 {
		return "", apperr.Upstream("openai", fmt.Errorf("empty completion"))
	}
	return resp.Choices[0].Message.Content, nil
}

// Trader is the profile context added to every prompt.
type Trader struct {
	Name          string
	Level         int
	WinRate       float64
	PlanAdherence float64
	ClosedTrades  int
}

func (t Trader) describe() string {
	return fmt.Sprintf("- Name: %s\n- Level: %d\n- Closed trades: %d\n- Win rate: %.1f%%\n- Plan adherence: %.1f%%",
		t.Name, t.Level, t.ClosedTrades, t.WinRate, t.PlanAdherence)
}

func orUnset(s string) string {
	if strings.TrimSpace(s) == "" {
		return "not specified"
	}
	return s
}

func SetupAnalysisPrompt(t Trader, req *SetupAnalysisRequest) Prompt {
	image := req.ScreenshotBase64
	if !strings.HasPrefix(image, "data:") {
		image = "data:image/png;base64," + image
	}

	system := fmt.Sprintf(`You are an expert technical analyst reviewing a trading setup.

Trader:
%s

Symbol: %s
Timeframe: %s
Trader notes: %s

From the screenshot, give:
1. The setup identified (break of structure, fair value gap, support/resistance...)
2. Potential entries
3. Stop loss placement
4. Targets
5. Risk/reward ratio
6. Setup strength from 1 to 10
7. Recommendation: LONG, SHORT or WAIT

Be concise and actionable.`, t.describe(), orUnset(req.Symbol), orUnset(req.Timeframe), orUnset(req.Notes))

	return Prompt{System: system, User: "Analyse this trading setup in detail.", ImageURL: image, MaxTokens: 1500}
}

func CoachingPrompt(t Trader, req *CoachingRequest) Prompt {
	system := fmt.Sprintf(`You are a personal trading coach helping traders improve their performance.

Trader:
%s

Coaching topic: %s

Answer in a personal, practical and motivating way with concrete advice.`, t.describe(), orUnset(req.Context))

	return Prompt{System: system, User: req.Message, MaxTokens: 1000}
}

func BacktestPrompt(t Trader, req *BacktestRequest, r *BacktestResult) Prompt {
	system := fmt.Sprintf(`You are an expert in trading performance analysis. Review these backtest results.

Strategy: %s
Description: %s
Symbol: %s | Timeframe: %s

Results:
- Trades: %d (%d winners / %d losers)
- Win rate: %.2f%%
- Total PnL: %s
- Average win: %s | Average loss: %s
- Profit factor: %.2f
- Max drawdown: %s
- ROI: %.2f%%

Trader:
%s

Give:
1. Overall verdict: is this strategy viable?
2. Strengths
3. Warning signs
4. Recommendations to improve it`,
		req.Name, req.Strategy, orUnset(req.Symbol), orUnset(req.Timeframe),
		r.ClosedTrades, r.WinningTrades, r.LosingTrades,
		r.WinRate,
		r.TotalPnL.StringFixed(2),
		r.AvgWin.StringFixed(2), r.AvgLoss.StringFixed(2),
		r.ProfitFactor,
		r.MaxDrawdown.StringFixed(2),
		r.ROI,
		t.describe())

	return Prompt{System: system, User: "Analyse these backtest results.", MaxTokens: 1000}
}

// EvaluateBacktest replays the trade results against the starting capital.
func EvaluateBacktest(req *BacktestRequest) (*BacktestResult, error) {
	if !req.InitialCapital.IsPositive() {
		return nil, apperr.Invalid("initial_capital", "initial capital must be positive")
	}

	r := &BacktestResult{
		TradeStats:     stats.Compute(0, req.TradePnLs, 0, 0),
		InitialCapital: req.InitialCapital,
		EquityCurve:    make([]decimal.Decimal, 0, len(req.TradePnLs)+1),
	}

	equity := req.InitialCapital
	r.EquityCurve = append(r.EquityCurve, equity.Round(2))
	for _, p := range req.TradePnLs {
		equity = equity.Add(p)
		r.EquityCurve = append(r.EquityCurve, equity.Round(2))
	}
	r.FinalCapital = equity.Round(2)
	r.ROI = equity.Sub(req.InitialCapital).Div(req.InitialCapital).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
	return r, nil
}

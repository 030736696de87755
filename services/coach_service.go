package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"tradeQuestAPI/internal/apperr"
	"tradeQuestAPI/internal/coach"
	"tradeQuestAPI/internal/stats"
	"tradeQuestAPI/internal/types/subscription"
)

type Completer interface {
	Complete(ctx context.Context, p coach.Prompt) (string, error)
}

type TradeStatsSource interface {
	Stats(ctx context.Context, userID uuid.UUID) (*stats.TradeStats, error)
}

type CoachService struct {
	db       *pgxpool.Pool
	llm      Completer
	trades   TradeStatsSource
	observer ActivityObserver
}

func NewCoachService(db *pgxpool.Pool, llm Completer, trades TradeStatsSource, observer ActivityObserver) *CoachService {
	return &CoachService{db: db, llm: llm, trades: trades, observer: observer}
}

func (s *CoachService) trader(ctx context.Context, userID uuid.UUID) (coach.Trader, subscription.Tier, error) {
	u, err := getUserByID(ctx, s.db, userID)
	if err != nil {
		return coach.Trader{}, "", err
	}
	st, err := s.trades.Stats(ctx, userID)
	if err != nil {
		return coach.Trader{}, "", err
	}
	return coach.Trader{
		Name:          u.DisplayName,
		Level:         u.Level,
		WinRate:       st.WinRate,
		PlanAdherence: st.PlanAdherence,
		ClosedTrades:  st.ClosedTrades,
	}, u.SubscriptionTier, nil
}

// AnalyzeSetup reviews a chart screenshot. Vision calls are limited to paid
// tiers.
func (s *CoachService) AnalyzeSetup(ctx context.Context, userID uuid.UUID, req *coach.SetupAnalysisRequest) (*coach.Response, error) {
	t, tier, err := s.trader(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !tier.AtLeast(subscription.TierPro) {
		return nil, fmt.Errorf("setup analysis requires the pro plan: %w", apperr.ErrForbidden)
	}

	prompt := coach.SetupAnalysisPrompt(t, req)
	summary := fmt.Sprintf("setup %s %s: %s", req.Symbol, req.Timeframe, req.Notes)
	return s.run(ctx, userID, coach.KindSetupAnalysis, prompt, summary, nil)
}

func (s *CoachService) Coaching(ctx context.Context, userID uuid.UUID, req *coach.CoachingRequest) (*coach.Response, error) {
	t, _, err := s.trader(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, userID, coach.KindCoaching, coach.CoachingPrompt(t, req), req.Message, nil)
}

func (s *CoachService) Backtest(ctx context.Context, userID uuid.UUID, req *coach.BacktestRequest) (*coach.Response, error) {
	result, err := coach.EvaluateBacktest(req)
	if err != nil {
		return nil, err
	}
	t, _, err := s.trader(ctx, userID)
	if err != nil {
		return nil, err
	}
	prompt := coach.BacktestPrompt(t, req, result)
	return s.run(ctx, userID, coach.KindBacktest, prompt, req.Name+": "+req.Strategy, result)
}

func (s *CoachService) run(ctx context.Context, userID uuid.UUID, kind coach.Kind, prompt coach.Prompt, summary string, backtest *coach.BacktestResult) (*coach.Response, error) {
	answer, err := s.llm.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	resp := &coach.Response{Kind: kind, Response: answer, Backtest: backtest}
	err = s.db.QueryRow(ctx, `
		INSERT INTO ai_interactions (user_id, kind, prompt, response)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, userID, kind, summary, answer).Scan(&resp.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to record ai interaction: %w", err)
	}

	log.Ctx(ctx).Info().Str("user_id", userID.String()).Str("kind", string(kind)).Msg("coach response recorded")
	observe(ctx, s.observer, userID)
	return resp, nil
}

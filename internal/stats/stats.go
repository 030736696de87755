package stats

import "github.com/shopspring/decimal"

// TradeStats summarises a user's closed trades.
type TradeStats struct {
	TotalTrades   int             `json:"total_trades"`
	OpenTrades    int             `json:"open_trades"`
	ClosedTrades  int             `json:"closed_trades"`
	WinningTrades int             `json:"winning_trades"`
	LosingTrades  int             `json:"losing_trades"`
	WinRate       float64         `json:"winrate"`
	TotalPnL      decimal.Decimal `json:"total_pnl"`
	AvgWin        decimal.Decimal `json:"avg_win"`
	AvgLoss       decimal.Decimal `json:"avg_loss"`
	ProfitFactor  float64         `json:"profit_factor"`
	BestTrade     decimal.Decimal `json:"best_trade"`
	WorstTrade    decimal.Decimal `json:"worst_trade"`
	MaxDrawdown   decimal.Decimal `json:"max_drawdown"`
	PlanAdherence float64         `json:"plan_adherence"`
}

// HeatmapDay is one calendar cell of realized PnL.
type HeatmapDay struct {
	Date   string          `json:"date"`
	PnL    decimal.Decimal `json:"pnl"`
	Trades int             `json:"trades"`
}

// Compute builds TradeStats from closed-trade PnLs in chronological order.
// followed counts trades with followed_plan = true, tagged those with a
// non-null flag.
func Compute(open int, pnls []decimal.Decimal, followed, tagged int) TradeStats {
	s := TradeStats{
		OpenTrades:   open,
		ClosedTrades: len(pnls),
		TotalTrades:  open + len(pnls),
		TotalPnL:     decimal.Zero,
		AvgWin:       decimal.Zero,
		AvgLoss:      decimal.Zero,
		BestTrade:    decimal.Zero,
		WorstTrade:   decimal.Zero,
		MaxDrawdown:  decimal.Zero,
	}

	grossWin, grossLoss := decimal.Zero, decimal.Zero
	equity, peak := decimal.Zero, decimal.Zero

	for i, p := range pnls {
		s.TotalPnL = s.TotalPnL.Add(p)
		switch {
		case p.IsPositive():
			s.WinningTrades++
			grossWin = grossWin.Add(p)
		case p.IsNegative():
			s.LosingTrades++
			grossLoss = grossLoss.Add(p.Abs())
		}
		if i == 0 || p.GreaterThan(s.BestTrade) {
			s.BestTrade = p
		}
		if i == 0 || p.LessThan(s.WorstTrade) {
			s.WorstTrade = p
		}

		equity = equity.Add(p)
		if equity.GreaterThan(peak) {
			peak = equity
		}
		if dd := peak.Sub(equity); dd.GreaterThan(s.MaxDrawdown) {
			s.MaxDrawdown = dd
		}
	}

	if s.ClosedTrades > 0 {
		s.WinRate = round2(float64(s.WinningTrades) / float64(s.ClosedTrades) * 100)
	}
	if s.WinningTrades > 0 {
		s.AvgWin = grossWin.Div(decimal.NewFromInt(int64(s.WinningTrades))).Round(2)
	}
	if s.LosingTrades > 0 {
		s.AvgLoss = grossLoss.Div(decimal.NewFromInt(int64(s.LosingTrades))).Neg().Round(2)
	}
	if grossLoss.IsPositive() {
		pf, _ := grossWin.Div(grossLoss).Float64()
		s.ProfitFactor = round2(pf)
	}
	if tagged > 0 {
		s.PlanAdherence = round2(float64(followed) / float64(tagged) * 100)
	}
	return s
}

func round2(f float64) float64 {
	return decimal.NewFromFloat(f).Round(2).InexactFloat64()
}

package trade

import "github.com/shopspring/decimal"

type CreateTradeRequest struct {
	Symbol           string           `json:"symbol" validate:"required,max=20"`
	Direction        Direction        `json:"direction" validate:"required,oneof=LONG SHORT"`
	EntryPrice       decimal.Decimal  `json:"entry_price"`
	ExitPrice        *decimal.Decimal `json:"exit_price,omitempty"`
	Size             decimal.Decimal  `json:"size"`
	StopLoss         *decimal.Decimal `json:"stop_loss,omitempty"`
	TakeProfit       *decimal.Decimal `json:"take_profit,omitempty"`
	Notes            string           `json:"notes" validate:"max=5000"`
	Emotions         string           `json:"emotions" validate:"max=500"`
	FollowedPlan     *bool            `json:"followed_plan,omitempty"`
	ScreenshotBase64 string           `json:"screenshot_base64,omitempty"`
}

type CloseTradeRequest struct {
	ExitPrice    decimal.Decimal `json:"exit_price"`
	Notes        *string         `json:"notes,omitempty" validate:"omitempty,max=5000"`
	Emotions     *string         `json:"emotions,omitempty" validate:"omitempty,max=500"`
	FollowedPlan *bool           `json:"followed_plan,omitempty"`
}

type ListTradesResponse struct {
	Trades []*Trade `json:"trades"`
	Total  int      `json:"total"`
}

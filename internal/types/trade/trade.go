package trade

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

type Trade struct {
	ID            uuid.UUID        `json:"id" db:"id"`
	UserID        uuid.UUID        `json:"user_id" db:"user_id"`
	Symbol        string           `json:"symbol" db:"symbol"`
	Direction     Direction        `json:"direction" db:"direction"`
	EntryPrice    decimal.Decimal  `json:"entry_price" db:"entry_price"`
	ExitPrice     *decimal.Decimal `json:"exit_price" db:"exit_price"`
	Size          decimal.Decimal  `json:"size" db:"size"`
	StopLoss      *decimal.Decimal `json:"stop_loss,omitempty" db:"stop_loss"`
	TakeProfit    *decimal.Decimal `json:"take_profit,omitempty" db:"take_profit"`
	PnL           *decimal.Decimal `json:"pnl" db:"pnl"`
	Status        Status           `json:"status" db:"status"`
	Notes         string           `json:"notes" db:"notes"`
	Emotions      string           `json:"emotions" db:"emotions"`
	FollowedPlan  *bool            `json:"followed_plan" db:"followed_plan"`
	ScreenshotURL *string          `json:"screenshot_url,omitempty" db:"screenshot_url"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
	ClosedAt      *time.Time       `json:"closed_at,omitempty" db:"closed_at"`
}

// ComputePnL returns the realized profit of a position.
// LONG gains when exit > entry, SHORT gains when exit < entry.
func ComputePnL(direction Direction, entry, exit, size decimal.Decimal) decimal.Decimal {
	diff := exit.Sub(entry)
	if direction == DirectionShort {
		diff = entry.Sub(exit)
	}
	return diff.Mul(size)
}

// Journaled reports whether the trader filled in the reflective fields.
func (t *Trade) Journaled() bool {
	return t.Notes != "" && t.Emotions != ""
}

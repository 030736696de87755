package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"tradeQuestAPI/internal/achievement"
	"tradeQuestAPI/internal/apperr"
	"tradeQuestAPI/internal/database"
	"tradeQuestAPI/internal/stats"
	"tradeQuestAPI/internal/storage"
	"tradeQuestAPI/internal/types/trade"
)

// ActivityObserver is told about every committed ledger write.
type ActivityObserver interface {
	OnActivity(ctx context.Context, userID uuid.UUID) []achievement.Achievement
}

// observe reports activity to o. A nil observer is a no-op.
func observe(ctx context.Context, o ActivityObserver, userID uuid.UUID) {
	if o == nil {
		return
	}
	o.OnActivity(ctx, userID)
}

type ImageUploader interface {
	Upload(ctx context.Context, prefix string, data []byte, contentType string) (string, error)
}

const tradeColumns = `id, user_id, symbol, direction, entry_price, exit_price, size, stop_loss, take_profit,
	pnl, status, notes, emotions, followed_plan, screenshot_url, created_at, closed_at`

type TradeService struct {
	db       *pgxpool.Pool
	uploader ImageUploader
	observer ActivityObserver
}

// NewTradeService builds the journal. uploader may be nil when object
// storage is not configured.
func NewTradeService(db *pgxpool.Pool, uploader ImageUploader, observer ActivityObserver) *TradeService {
	return &TradeService{db: db, uploader: uploader, observer: observer}
}

func scanTrade(row pgx.Row) (*trade.Trade, error) {
	t := &trade.Trade{}
	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.Symbol,
		&t.Direction,
		&t.EntryPrice,
		&t.ExitPrice,
		&t.Size,
		&t.StopLoss,
		&t.TakeProfit,
		&t.PnL,
		&t.Status,
		&t.Notes,
		&t.Emotions,
		&t.FollowedPlan,
		&t.ScreenshotURL,
		&t.CreatedAt,
		&t.ClosedAt,
	)
	return t, err
}

func validatePrices(entry, size decimal.Decimal, exit *decimal.Decimal) error {
	if !entry.IsPositive() {
		return apperr.Invalid("entry_price", "entry price must be positive")
	}
	if !size.IsPositive() {
		return apperr.Invalid("size", "size must be positive")
	}
	if exit != nil && !exit.IsPositive() {
		return apperr.Invalid("exit_price", "exit price must be positive")
	}
	return nil
}

// CreateTrade logs a trade. A trade created with an exit price is closed
// immediately.
func (s *TradeService) CreateTrade(ctx context.Context, userID uuid.UUID, req *trade.CreateTradeRequest) (*trade.Trade, error) {
	if err := validatePrices(req.EntryPrice, req.Size, req.ExitPrice); err != nil {
		return nil, err
	}

	var screenshotURL *string
	if req.ScreenshotBase64 != "" {
		url, err := s.uploadScreenshot(ctx, userID, req.ScreenshotBase64)
		if err != nil {
			return nil, err
		}
		screenshotURL = &url
	}

	status := trade.StatusOpen
	var pnl *decimal.Decimal
	var closedAt *time.Time
	if req.ExitPrice != nil {
		p := trade.ComputePnL(req.Direction, req.EntryPrice, *req.ExitPrice, req.Size)
		now := time.Now().UTC()
		status, pnl, closedAt = trade.StatusClosed, &p, &now
	}

	query := `
	INSERT INTO trades (user_id, symbol, direction, entry_price, exit_price, size, stop_loss, take_profit,
		pnl, status, notes, emotions, followed_plan, screenshot_url, closed_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	RETURNING ` + tradeColumns

	t, err := scanTrade(s.db.QueryRow(ctx, query,
		userID,
		req.Symbol,
		req.Direction,
		req.EntryPrice,
		req.ExitPrice,
		req.Size,
		req.StopLoss,
		req.TakeProfit,
		pnl,
		status,
		req.Notes,
		req.Emotions,
		req.FollowedPlan,
		screenshotURL,
		closedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create trade: %w", err)
	}

	log.Ctx(ctx).Info().Str("user_id", userID.String()).Str("trade_id", t.ID.String()).Msg("trade logged")
	observe(ctx, s.observer, userID)
	return t, nil
}

func (s *TradeService) uploadScreenshot(ctx context.Context, userID uuid.UUID, payload string) (string, error) {
	if s.uploader == nil {
		return "", apperr.Invalid("screenshot_base64", "screenshot uploads are not enabled")
	}
	data, contentType, err := storage.DecodeImage(payload)
	if err != nil {
		return "", err
	}
	return s.uploader.Upload(ctx, "screenshots/"+userID.String(), data, contentType)
}

func (s *TradeService) ListTrades(ctx context.Context, userID uuid.UUID, status trade.Status, limit, offset int) (*trade.ListTradesResponse, error) {
	if status != "" && status != trade.StatusOpen && status != trade.StatusClosed {
		return nil, apperr.Invalid("status", "status must be open or closed")
	}

	var total int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM trades WHERE user_id = $1 AND ($2 = '' OR status = $2)
	`, userID, string(status)).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count trades: %w", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+tradeColumns+`
		FROM trades
		WHERE user_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, userID, string(status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	defer rows.Close()

	resp := &trade.ListTradesResponse{Trades: []*trade.Trade{}, Total: total}
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		resp.Trades = append(resp.Trades, t)
	}
	return resp, rows.Err()
}

func (s *TradeService) GetTrade(ctx context.Context, userID, tradeID uuid.UUID) (*trade.Trade, error) {
	t, err := scanTrade(s.db.QueryRow(ctx, `SELECT `+tradeColumns+` FROM trades WHERE id = $1 AND user_id = $2`, tradeID, userID))
	if database.IsNoRows(err) {
		return nil, apperr.NotFound("trade")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trade: %w", err)
	}
	return t, nil
}

func (s *TradeService) DeleteTrade(ctx context.Context, userID, tradeID uuid.UUID) error {
	cmd, err := s.db.Exec(ctx, `DELETE FROM trades WHERE id = $1 AND user_id = $2`, tradeID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete trade: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return apperr.NotFound("trade")
	}
	return nil
}

// CloseTrade records the exit and realizes PnL.
func (s *TradeService) CloseTrade(ctx context.Context, userID, tradeID uuid.UUID, req *trade.CloseTradeRequest) (*trade.Trade, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("failed to begin close: %w", err)
	}
	defer tx.Rollback(ctx)

	t, err := scanTrade(tx.QueryRow(ctx, `SELECT `+tradeColumns+` FROM trades WHERE id = $1 AND user_id = $2 FOR UPDATE`, tradeID, userID))
	if database.IsNoRows(err) {
		return nil, apperr.NotFound("trade")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load trade: %w", err)
	}
	if t.Status == trade.StatusClosed {
		return nil, apperr.Invalid("status", "trade is already closed")
	}
	if err := validatePrices(t.EntryPrice, t.Size, &req.ExitPrice); err != nil {
		return nil, err
	}

	pnl := trade.ComputePnL(t.Direction, t.EntryPrice, req.ExitPrice, t.Size)

	closed, err := scanTrade(tx.QueryRow(ctx, `
		UPDATE trades
		SET exit_price = $3, pnl = $4, status = 'closed', closed_at = NOW(),
			notes = COALESCE($5, notes),
			emotions = COALESCE($6, emotions),
			followed_plan = COALESCE($7, followed_plan)
		WHERE id = $1 AND user_id = $2
		RETURNING `+tradeColumns,
		tradeID, userID, req.ExitPrice, pnl, req.Notes, req.Emotions, req.FollowedPlan,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to close trade: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit close: %w", err)
	}

	log.Ctx(ctx).Info().
		Str("user_id", userID.String()).
		Str("trade_id", tradeID.String()).
		Str("pnl", pnl.StringFixed(2)).
		Msg("trade closed")
	observe(ctx, s.observer, userID)
	return closed, nil
}

// Stats summarises every trade of the user.
func (s *TradeService) Stats(ctx context.Context, userID uuid.UUID) (*stats.TradeStats, error) {
	var open, followed, tagged int
	err := s.db.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'open'),
			COUNT(*) FILTER (WHERE followed_plan),
			COUNT(*) FILTER (WHERE followed_plan IS NOT NULL)
		FROM trades WHERE user_id = $1
	`, userID).Scan(&open, &followed, &tagged)
	if err != nil {
		return nil, fmt.Errorf("failed to count trades: %w", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT pnl FROM trades
		WHERE user_id = $1 AND status = 'closed' AND pnl IS NOT NULL
		ORDER BY closed_at, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pnl: %w", err)
	}
	defer rows.Close()

	var pnls []decimal.Decimal
	for rows.Next() {
		var p decimal.Decimal
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan pnl: %w", err)
		}
		pnls = append(pnls, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	st := stats.Compute(open, pnls, followed, tagged)
	return &st, nil
}

// Heatmap returns realized PnL per UTC day in [from, to).
func (s *TradeService) Heatmap(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]stats.HeatmapDay, error) {
	if !from.Before(to) {
		return nil, apperr.Invalid("from", "from must be before to")
	}

	rows, err := s.db.Query(ctx, `
		SELECT to_char(closed_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, SUM(pnl), COUNT(*)
		FROM trades
		WHERE user_id = $1 AND status = 'closed' AND closed_at >= $2 AND closed_at < $3
		GROUP BY day
		ORDER BY day
	`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to build heatmap: %w", err)
	}
	defer rows.Close()

	days := []stats.HeatmapDay{}
	for rows.Next() {
		var d stats.HeatmapDay
		if err := rows.Scan(&d.Date, &d.PnL, &d.Trades); err != nil {
			return nil, fmt.Errorf("failed to scan heatmap day: %w", err)
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tradeQuestAPI/internal/apperr"
	"tradeQuestAPI/internal/database"
	"tradeQuestAPI/internal/types/ticket"
)

type TicketService struct {
	db *pgxpool.Pool
}

func NewTicketService(db *pgxpool.Pool) *TicketService {
	return &TicketService{db: db}
}

// CreateTicket opens a ticket with its first message.
func (s *TicketService) CreateTicket(ctx context.Context, userID uuid.UUID, req *ticket.CreateTicketRequest) (*ticket.Ticket, error) {
	priority := req.Priority
	if priority == "" {
		priority = "medium"
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin ticket: %w", err)
	}
	defer tx.Rollback(ctx)

	t := &ticket.Ticket{UserID: userID, Subject: req.Subject, Category: req.Category, Priority: priority}
	err = tx.QueryRow(ctx, `
		INSERT INTO tickets (user_id, subject, category, priority)
		VALUES ($1, $2, $3, $4)
		RETURNING id, status, created_at, updated_at
	`, userID, req.Subject, req.Category, priority).Scan(&t.ID, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}

	m, err := insertTicketMessage(ctx, tx, t.ID, userID, req.Message)
	if err != nil {
		return nil, err
	}
	t.Messages = []*ticket.Message{m}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit ticket: %w", err)
	}
	return t, nil
}

func (s *TicketService) ListTickets(ctx context.Context, userID uuid.UUID) ([]*ticket.Ticket, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, subject, category, priority, status, created_at, updated_at
		FROM tickets
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer rows.Close()

	tickets := []*ticket.Ticket{}
	for rows.Next() {
		t := &ticket.Ticket{}
		if err := rows.Scan(&t.ID, &t.UserID, &t.Subject, &t.Category, &t.Priority, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

// GetTicket returns the ticket with its message thread.
func (s *TicketService) GetTicket(ctx context.Context, userID, ticketID uuid.UUID) (*ticket.Ticket, error) {
	t := &ticket.Ticket{}
	err := s.db.QueryRow(ctx, `
		SELECT id, user_id, subject, category, priority, status, created_at, updated_at
		FROM tickets WHERE id = $1 AND user_id = $2
	`, ticketID, userID).Scan(&t.ID, &t.UserID, &t.Subject, &t.Category, &t.Priority, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if database.IsNoRows(err) {
		return nil, apperr.NotFound("ticket")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, ticket_id, user_id, content, is_staff, created_at
		FROM ticket_messages WHERE ticket_id = $1
		ORDER BY created_at
	`, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket messages: %w", err)
	}
	defer rows.Close()

	t.Messages = []*ticket.Message{}
	for rows.Next() {
		m := &ticket.Message{}
		if err := rows.Scan(&m.ID, &m.TicketID, &m.UserID, &m.Content, &m.IsStaff, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ticket message: %w", err)
		}
		t.Messages = append(t.Messages, m)
	}
	return t, rows.Err()
}

func (s *TicketService) Reply(ctx context.Context, userID, ticketID uuid.UUID, req *ticket.ReplyRequest) (*ticket.Message, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin reply: %w", err)
	}
	defer tx.Rollback(ctx)

	var status ticket.Status
	err = tx.QueryRow(ctx, `SELECT status FROM tickets WHERE id = $1 AND user_id = $2 FOR UPDATE`, ticketID, userID).Scan(&status)
	if database.IsNoRows(err) {
		return nil, apperr.NotFound("ticket")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock ticket: %w", err)
	}
	if status == ticket.StatusClosed {
		return nil, apperr.Invalid("status", "ticket is closed")
	}

	m, err := insertTicketMessage(ctx, tx, ticketID, userID, req.Content)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `UPDATE tickets SET updated_at = NOW() WHERE id = $1`, ticketID); err != nil {
		return nil, fmt.Errorf("failed to touch ticket: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit reply: %w", err)
	}
	return m, nil
}

func (s *TicketService) CloseTicket(ctx context.Context, userID, ticketID uuid.UUID) error {
	cmd, err := s.db.Exec(ctx, `
		UPDATE tickets SET status = 'closed', updated_at = NOW()
		WHERE id = $1 AND user_id = $2
	`, ticketID, userID)
	if err != nil {
		return fmt.Errorf("failed to close ticket: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return apperr.NotFound("ticket")
	}
	return nil
}

func insertTicketMessage(ctx context.Context, tx pgx.Tx, ticketID, userID uuid.UUID, content string) (*ticket.Message, error) {
	m := &ticket.Message{TicketID: ticketID, UserID: userID, Content: content}
	err := tx.QueryRow(ctx, `
		INSERT INTO ticket_messages (ticket_id, user_id, content)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, ticketID, userID, content).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to add ticket message: %w", err)
	}
	return m, nil
}

package ticket

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusClosed     Status = "closed"
)

type Ticket struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	UserID    uuid.UUID  `json:"user_id" db:"user_id"`
	Subject   string     `json:"subject" db:"subject"`
	Category  string     `json:"category" db:"category"`
	Priority  string     `json:"priority" db:"priority"`
	Status    Status     `json:"status" db:"status"`
	Messages  []*Message `json:"messages,omitempty"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

type Message struct {
	ID        uuid.UUID `json:"id" db:"id"`
	TicketID  uuid.UUID `json:"ticket_id" db:"ticket_id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Content   string    `json:"content" db:"content"`
	IsStaff   bool      `json:"is_staff" db:"is_staff"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type CreateTicketRequest struct {
	Subject  string `json:"subject" validate:"required,min=3,max=200"`
	Category string `json:"category" validate:"required,oneof=general technical billing feature"`
	Priority string `json:"priority" validate:"omitempty,oneof=low medium high"`
	Message  string `json:"message" validate:"required,max=5000"`
}

type ReplyRequest struct {
	Content string `json:"content" validate:"required,max=5000"`
}

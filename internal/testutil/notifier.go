package testutil

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"tradeQuestAPI/internal/notification"
)

type SentNotification struct {
	UserID  uuid.UUID
	Kind    notification.NotificationType
	Title   string
	Message string
	Data    map[string]any
}

// RecordingNotifier records every notification. When Err is set, Notify
// records and then fails with it.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []SentNotification
	Err  error
}

func (n *RecordingNotifier) Notify(_ context.Context, userID uuid.UUID, kind notification.NotificationType, title, message string, data map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, SentNotification{UserID: userID, Kind: kind, Title: title, Message: message, Data: data})
	return n.Err
}

func (n *RecordingNotifier) Sent() []SentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]SentNotification(nil), n.sent...)
}

// Kinds counts the recorded notifications by type.
func (n *RecordingNotifier) Kinds() map[notification.NotificationType]int {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make(map[notification.NotificationType]int)
	for _, s := range n.sent {
		out[s.Kind]++
	}
	return out
}

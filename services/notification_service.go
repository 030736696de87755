package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"tradeQuestAPI/internal/apperr"
	"tradeQuestAPI/internal/notification"
)

const notificationColumns = `id, user_id, type, title, message, is_read, data, push_status, created_at`

// NotificationService is the notification sink: it stores every event,
// relays it to open websockets and queues a push.
type NotificationService struct {
	db         *pgxpool.Pool
	dispatcher *NotificationDispatcher
	hub        *LiveHub
}

// NewNotificationService starts the push dispatcher. push may be nil.
func NewNotificationService(db *pgxpool.Pool, hub *LiveHub, push PushNotificationProvider) *NotificationService {
	s := &NotificationService{db: db, hub: hub}
	s.dispatcher = NewNotificationDispatcher(s, push)
	return s
}

func (s *NotificationService) Stop() {
	s.dispatcher.Stop()
}

func (s *NotificationService) Hub() *LiveHub {
	return s.hub
}

// Notify implements Notifier.
func (s *NotificationService) Notify(ctx context.Context, userID uuid.UUID, kind notification.NotificationType, title, message string, data map[string]any) error {
	if data == nil {
		data = map[string]any{}
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode notification data: %w", err)
	}

	n := &notification.Notification{
		UserID:     userID,
		Type:       kind,
		Title:      title,
		Message:    message,
		Data:       data,
		PushStatus: notification.PushPending,
	}
	err = s.db.QueryRow(ctx, `
		INSERT INTO notifications (user_id, type, title, message, data)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, userID, kind, title, message, dataJSON).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}

	if s.hub != nil {
		s.hub.Publish(n)
	}

	tokens, err := s.deviceTokens(ctx, userID)
	if err != nil {
		return err
	}
	s.dispatcher.Dispatch(ctx, n, tokens)
	return nil
}

func (s *NotificationService) deviceTokens(ctx context.Context, userID uuid.UUID) ([]notification.DeviceToken, error) {
	rows, err := s.db.Query(ctx, `SELECT token, platform FROM device_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []notification.DeviceToken
	for rows.Next() {
		var t notification.DeviceToken
		if err := rows.Scan(&t.Token, &t.Platform); err != nil {
			return nil, fmt.Errorf("failed to scan device token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// MarkPush implements PushStatusRecorder.
func (s *NotificationService) MarkPush(ctx context.Context, notificationID uuid.UUID, status notification.PushStatus, pushErr error) {
	var reason *string
	if pushErr != nil {
		msg := pushErr.Error()
		reason = &msg
	}
	_, err := s.db.Exec(ctx, `UPDATE notifications SET push_status = $2, push_error = $3 WHERE id = $1`,
		notificationID, status, reason)
	if err != nil {
		log.Error().Err(err).Str("notification_id", notificationID.String()).Msg("failed to record push status")
	}
}

func (s *NotificationService) GetNotifications(ctx context.Context, userID uuid.UUID, page, pageSize int, unreadOnly bool) (*notification.NotificationListResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE user_id = $1 AND ($2 = FALSE OR is_read = FALSE)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, userID, unreadOnly, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch notifications: %w", err)
	}
	defer rows.Close()

	list := make([]*notification.Notification, 0)
	for rows.Next() {
		n := &notification.Notification{}
		var data []byte
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.IsRead, &data, &n.PushStatus, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		if err := json.Unmarshal(data, &n.Data); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("notification_id", n.ID.String()).Msg("bad notification data")
		}
		list = append(list, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read notifications: %w", err)
	}

	resp := &notification.NotificationListResponse{Notifications: list, Page: page, PageSize: pageSize}
	err = s.db.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE is_read = FALSE), COUNT(*)
		FROM notifications WHERE user_id = $1
	`, userID).Scan(&resp.UnreadCount, &resp.TotalCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count notifications: %w", err)
	}
	return resp, nil
}

func (s *NotificationService) GetUnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

func (s *NotificationService) MarkAsRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	cmd, err := s.db.Exec(ctx, `
		UPDATE notifications SET is_read = TRUE, read_at = NOW()
		WHERE id = $1 AND user_id = $2
	`, notificationID, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return apperr.NotFound("notification")
	}
	return nil
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	cmd, err := s.db.Exec(ctx, `
		UPDATE notifications SET is_read = TRUE, read_at = NOW()
		WHERE user_id = $1 AND is_read = FALSE
	`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return cmd.RowsAffected(), nil
}

func (s *NotificationService) DeleteNotification(ctx context.Context, userID, notificationID uuid.UUID) error {
	cmd, err := s.db.Exec(ctx, `DELETE FROM notifications WHERE id = $1 AND user_id = $2`, notificationID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return apperr.NotFound("notification")
	}
	return nil
}

// RegisterDevice binds a push token to userID, moving it off any previous
// owner.
func (s *NotificationService) RegisterDevice(ctx context.Context, userID uuid.UUID, req *notification.RegisterDeviceRequest) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO device_tokens (token, user_id, platform)
		VALUES ($1, $2, $3)
		ON CONFLICT (token) DO UPDATE SET user_id = EXCLUDED.user_id, platform = EXCLUDED.platform
	`, req.Token, userID, req.Platform)
	if err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}
	return nil
}

// Cleanup deletes read notifications older than readTTL and any
// notification older than maxAge.
func (s *NotificationService) Cleanup(ctx context.Context, readTTL, maxAge time.Duration) (int64, error) {
	cmd, err := s.db.Exec(ctx, `
		DELETE FROM notifications
		WHERE (is_read = TRUE AND read_at < NOW() - make_interval(secs => $1))
		   OR created_at < NOW() - make_interval(secs => $2)
	`, readTTL.Seconds(), maxAge.Seconds())
	if err != nil {
		return 0, fmt.Errorf("failed to clean up notifications: %w", err)
	}
	if n := cmd.RowsAffected(); n > 0 {
		log.Info().Int64("deleted", n).Msg("cleaned up old notifications")
	}
	return cmd.RowsAffected(), nil
}

package notification

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"

	"tradeQuestAPI/internal/config"
)

type FCMService struct {
	client *messaging.Client
}

// NewFCMService prefers base64 credentials from config and falls back to a
// service account file on disk.
func NewFCMService(ctx context.Context, cfg config.FCMConfig) (*FCMService, error) {
	var opt option.ClientOption

	if cfg.ServiceAccountJSON != "" {
		decoded, err := base64.StdEncoding.DecodeString(cfg.ServiceAccountJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 firebase credentials: %w", err)
		}
		opt = option.WithCredentialsJSON(decoded)
		log.Info().Msg("FCM: using credentials from environment")
	} else {
		if _, err := os.Stat(cfg.ServiceAccountFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("firebase credentials not configured and %s not found", cfg.ServiceAccountFile)
		}
		opt = option.WithCredentialsFile(cfg.ServiceAccountFile)
		log.Info().Str("file", cfg.ServiceAccountFile).Msg("FCM: using credentials file")
	}

	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}

	return &FCMService{client: client}, nil
}

// SendPush sends one message per token. It fails only when every send failed.
func (s *FCMService) SendPush(ctx context.Context, tokens []DeviceToken, title, body string, data map[string]any) error {
	if len(tokens) == 0 {
		return nil
	}

	stringData := make(map[string]string, len(data))
	for k, v := range data {
		stringData[k] = fmt.Sprintf("%v", v)
	}

	successCount, failureCount := 0, 0
	for _, token := range tokens {
		message := &messaging.Message{
			Token: token.Token,
			Notification: &messaging.Notification{
				Title: title,
				Body:  body,
			},
			Data: stringData,
		}

		switch token.Platform {
		case "android":
			message.Android = &messaging.AndroidConfig{
				Priority:     "high",
				Notification: &messaging.AndroidNotification{Sound: "default"},
			}
		case "ios":
			message.APNS = &messaging.APNSConfig{
				Payload: &messaging.APNSPayload{Aps: &messaging.Aps{Sound: "default"}},
			}
		case "web":
			message.Webpush = &messaging.WebpushConfig{
				Notification: &messaging.WebpushNotification{Title: title, Body: body},
			}
		}

		if _, err := s.client.Send(ctx, message); err != nil {
			log.Warn().Err(err).Str("platform", token.Platform).Msg("FCM: send failed")
			failureCount++
			continue
		}
		successCount++
	}

	log.Debug().Int("sent", successCount).Int("failed", failureCount).Msg("FCM: batch done")

	if successCount == 0 {
		return fmt.Errorf("all %d push notifications failed", failureCount)
	}
	return nil
}

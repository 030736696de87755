package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/hlog"

	"tradeQuestAPI/internal/apperr"
	"tradeQuestAPI/internal/user"
	"tradeQuestAPI/services"
)

const (
	maxWebhookBytes = int64(65536)
	svixTolerance   = 5 * time.Minute
)

type WebhookHandler struct {
	userService    *services.UserService
	paymentService *services.PaymentService
	clerkSecret    string
	now            func() time.Time
}

func NewWebhookHandler(userService *services.UserService, paymentService *services.PaymentService, clerkSecret string) *WebhookHandler {
	return &WebhookHandler{
		userService:    userService,
		paymentService: paymentService,
		clerkSecret:    clerkSecret,
		now:            time.Now,
	}
}

func readWebhookBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, apperr.Invalid("body", "could not read webhook body")
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

// POST /webhooks/clerk
func (h *WebhookHandler) HandleClerkWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := readWebhookBody(w, r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	if err := verifySvixSignature(h.clerkSecret, r.Header, body, h.now()); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("rejected clerk webhook")
		respondWithAppError(w, r, err)
		return
	}

	var event user.ClerkWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		respondWithAppError(w, r, apperr.Invalid("payload", "malformed clerk event"))
		return
	}

	logger := hlog.FromRequest(r)
	logger.Info().Str("event", event.Type).Msg("clerk webhook received")

	ctx := r.Context()
	switch event.Type {
	case "user.created":
		err = h.handleUserCreated(ctx, event.Data)
	case "user.updated":
		err = h.handleUserUpdated(ctx, event.Data)
	case "user.deleted":
		err = h.handleUserDeleted(ctx, event.Data)
	default:
		logger.Debug().Str("event", event.Type).Msg("unhandled clerk event")
	}
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *WebhookHandler) handleUserCreated(ctx context.Context, data json.RawMessage) error {
	var userData user.ClerkUserData
	if err := json.Unmarshal(data, &userData); err != nil {
		return apperr.Invalid("data", "malformed user payload")
	}
	if len(userData.EmailAddresses) == 0 {
		return apperr.Invalid("email_addresses", "user has no email address")
	}

	_, err := h.userService.CreateUser(ctx, &user.CreateUserRequest{
		ClerkID:     userData.ID,
		Email:       userData.EmailAddresses[0].EmailAddress,
		DisplayName: userData.DisplayName(),
		ImageURL:    userData.Image(),
	})
	return err
}

func (h *WebhookHandler) handleUserUpdated(ctx context.Context, data json.RawMessage) error {
	var userData user.ClerkUserData
	if err := json.Unmarshal(data, &userData); err != nil {
		return apperr.Invalid("data", "malformed user payload")
	}

	_, err := h.userService.UpdateProfileByClerkID(ctx, userData.ID, &user.UpdateProfileRequest{
		DisplayName: userData.DisplayName(),
		ImageURL:    userData.Image(),
	})
	return err
}

func (h *WebhookHandler) handleUserDeleted(ctx context.Context, data json.RawMessage) error {
	var userData struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &userData); err != nil {
		return apperr.Invalid("data", "malformed user payload")
	}

	// Deleting an unknown user is a replay.
	err := h.userService.DeleteUserByClerkID(ctx, userData.ID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	return err
}

// verifySvixSignature checks the svix-* headers Clerk signs its deliveries with.
// The secret is "whsec_" followed by base64 key bytes; svix-signature carries
// space separated "v1,<base64>" entries, any of which may match.
func verifySvixSignature(secret string, header http.Header, body []byte, now time.Time) error {
	if secret == "" {
		return apperr.Upstream("clerk", fmt.Errorf("webhook secret not configured"))
	}

	id := header.Get("svix-id")
	timestamp := header.Get("svix-timestamp")
	signatures := header.Get("svix-signature")
	if id == "" || timestamp == "" || signatures == "" {
		return fmt.Errorf("missing svix headers: %w", apperr.ErrUnauthorized)
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("malformed svix timestamp: %w", apperr.ErrUnauthorized)
	}
	sent := time.Unix(ts, 0)
	if now.Sub(sent) > svixTolerance || sent.Sub(now) > svixTolerance {
		return fmt.Errorf("svix timestamp outside tolerance: %w", apperr.ErrUnauthorized)
	}

	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, "whsec_"))
	if err != nil {
		return apperr.Upstream("clerk", fmt.Errorf("malformed webhook secret: %w", err))
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(id + "." + timestamp + "."))
	mac.Write(body)
	expected := mac.Sum(nil)

	for _, entry := range strings.Fields(signatures) {
		version, sig, ok := strings.Cut(entry, ",")
		if !ok || version != "v1" {
			continue
		}
		provided, err := base64.StdEncoding.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(expected, provided) {
			return nil
		}
	}
	return fmt.Errorf("svix signature mismatch: %w", apperr.ErrUnauthorized)
}

// POST /webhooks/stripe
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := readWebhookBody(w, r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	if err := h.paymentService.HandleStripeEvent(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// POST /webhooks/paddle
func (h *WebhookHandler) HandlePaddleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := readWebhookBody(w, r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	if err := h.paymentService.HandlePaddleEvent(r.Context(), r, body); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

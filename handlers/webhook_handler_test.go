package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeQuestAPI/internal/apperr"
	"tradeQuestAPI/internal/config"
	"tradeQuestAPI/internal/progression"
	"tradeQuestAPI/internal/testutil"
	"tradeQuestAPI/services"
)

func TestVerifySvixSignature(t *testing.T) {
	body := []byte(`{"type":"user.created"}`)
	signedAt := time.Unix(1_700_000_000, 0)

	signed := func() http.Header {
		h := http.Header{}
		testutil.SignSvix(h, testutil.TestSvixSecret, "msg_1", body, signedAt)
		return h
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, verifySvixSignature(testutil.TestSvixSecret, signed(), body, signedAt.Add(time.Minute)))
	})

	t.Run("one of several signatures", func(t *testing.T) {
		h := signed()
		h.Set("svix-signature", "v1,bm9wZQ== "+h.Get("svix-signature"))
		assert.NoError(t, verifySvixSignature(testutil.TestSvixSecret, h, body, signedAt))
	})

	t.Run("tampered body", func(t *testing.T) {
		err := verifySvixSignature(testutil.TestSvixSecret, signed(), []byte(`{"type":"user.deleted"}`), signedAt)
		assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	})

	t.Run("stale timestamp", func(t *testing.T) {
		err := verifySvixSignature(testutil.TestSvixSecret, signed(), body, signedAt.Add(10*time.Minute))
		assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	})

	t.Run("missing headers", func(t *testing.T) {
		err := verifySvixSignature(testutil.TestSvixSecret, http.Header{}, body, signedAt)
		assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	})

	t.Run("no secret configured", func(t *testing.T) {
		err := verifySvixSignature("", signed(), body, signedAt)
		assert.ErrorIs(t, err, apperr.ErrUpstreamUnavailable)
	})
}

func TestClerkWebhookRejectsUnsigned(t *testing.T) {
	h := NewWebhookHandler(nil, nil, testutil.TestSvixSecret)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", bytes.NewReader(testutil.ClerkWebhookPayload("user.created", "user_x")))
	rr := httptest.NewRecorder()
	h.HandleClerkWebhook(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	payments, err := services.NewPaymentService(config.Config{Stripe: config.StripeConfig{WebhookSecret: "whsec_test"}}, nil, nil)
	require.NoError(t, err)
	h := NewWebhookHandler(nil, payments, "")

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader([]byte(`{"type":"checkout.session.completed"}`)))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	rr := httptest.NewRecorder()
	h.HandleStripeWebhook(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func postClerk(t *testing.T, h *WebhookHandler, eventType, clerkID string) *httptest.ResponseRecorder {
	t.Helper()
	payload := testutil.ClerkWebhookPayload(eventType, clerkID)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", bytes.NewReader(payload))
	testutil.SignSvix(req.Header, testutil.TestSvixSecret, "msg_"+eventType, payload, time.Now())
	rr := httptest.NewRecorder()
	h.HandleClerkWebhook(rr, req)
	return rr
}

func TestClerkWebhookLifecycle(t *testing.T) {
	pool := testutil.SetupTestDB(t)

	userService := services.NewUserService(pool, config.AuthConfig{}, progression.DefaultLevelTable())
	h := NewWebhookHandler(userService, nil, testutil.TestSvixSecret)
	ctx := context.Background()
	clerkID := "user_test_" + time.Now().Format("20060102150405")

	rr := postClerk(t, h, "user.created", clerkID)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var response map[string]bool
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.True(t, response["success"])

	u, err := userService.GetUserByClerkID(ctx, clerkID)
	require.NoError(t, err)
	assert.Equal(t, "test.user@example.com", u.Email)
	assert.Equal(t, "testuser", u.DisplayName)

	// Clerk redelivers on timeouts.
	rr = postClerk(t, h, "user.created", clerkID)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = postClerk(t, h, "user.updated", clerkID)
	require.Equal(t, http.StatusOK, rr.Code)
	u, err = userService.GetUserByClerkID(ctx, clerkID)
	require.NoError(t, err)
	assert.Equal(t, "updateduser", u.DisplayName)

	rr = postClerk(t, h, "user.deleted", clerkID)
	require.Equal(t, http.StatusOK, rr.Code)
	_, err = userService.GetUserByClerkID(ctx, clerkID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

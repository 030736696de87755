package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v76"
	stripeclient "github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"tradeQuestAPI/internal/apperr"
	"tradeQuestAPI/internal/config"
	"tradeQuestAPI/internal/notification"
	"tradeQuestAPI/internal/types/subscription"
)

const paymentTimeout = 10 * time.Second

// SubscriptionStore is the part of the identity store payments write to.
type SubscriptionStore interface {
	GetUserEmail(ctx context.Context, userID uuid.UUID) (string, error)
	SetSubscription(ctx context.Context, userID uuid.UUID, sub *subscription.Subscription) error
	CancelSubscription(ctx context.Context, provider, externalID string) (uuid.UUID, error)
	GetSubscription(ctx context.Context, userID uuid.UUID) (*subscription.Subscription, error)
}

type PaymentService struct {
	users    SubscriptionStore
	notifier Notifier
	stripe   *stripeclient.API
	paddle   *paddle.SDK
	cfg      config.Config
	plans    []subscription.Plan
}

// NewPaymentService configures whichever providers have credentials.
func NewPaymentService(cfg config.Config, users SubscriptionStore, notifier Notifier) (*PaymentService, error) {
	s := &PaymentService{users: users, notifier: notifier, cfg: cfg, plans: DefaultPlans(cfg)}

	if cfg.Stripe.SecretKey != "" {
		s.stripe = &stripeclient.API{}
		s.stripe.Init(cfg.Stripe.SecretKey, nil)
	}

	if cfg.Paddle.APIKey != "" {
		var opts []paddle.Option
		if cfg.Paddle.Sandbox {
			opts = append(opts, paddle.WithBaseURL(paddle.SandboxBaseURL))
		}
		client, err := paddle.New(cfg.Paddle.APIKey, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create paddle client: %w", err)
		}
		s.paddle = client
	}
	return s, nil
}

func DefaultPlans(cfg config.Config) []subscription.Plan {
	return []subscription.Plan{
		{
			ID:       subscription.TierFree,
			Name:     "Free",
			Price:    0,
			Interval: "month",
			Features: []string{"Basic trade journal", "Basic statistics", "Community access"},
		},
		{
			ID:            subscription.TierPro,
			Name:          "Pro",
			Price:         29,
			Interval:      "month",
			Features:      []string{"Unlimited trades", "AI setup analysis", "AI coaching", "Assisted backtesting", "Advanced statistics", "Pro challenges"},
			StripePriceID: cfg.Stripe.PriceIDPro,
			PaddlePriceID: cfg.Paddle.PriceIDPro,
		},
		{
			ID:            subscription.TierElite,
			Name:          "Elite",
			Price:         79,
			Interval:      "month",
			Features:      []string{"Everything in Pro", "Elite challenges", "Priority support"},
			StripePriceID: cfg.Stripe.PriceIDElite,
			PaddlePriceID: cfg.Paddle.PriceIDElite,
		},
	}
}

func (s *PaymentService) Plans() []subscription.Plan {
	return s.plans
}

func (s *PaymentService) plan(tier subscription.Tier) (subscription.Plan, bool) {
	for _, p := range s.plans {
		if p.ID == tier {
			return p, true
		}
	}
	return subscription.Plan{}, false
}

func (s *PaymentService) Current(ctx context.Context, userID uuid.UUID) (*subscription.Subscription, error) {
	return s.users.GetSubscription(ctx, userID)
}

func (s *PaymentService) Checkout(ctx context.Context, userID uuid.UUID, req *subscription.CheckoutRequest) (*subscription.CheckoutResponse, error) {
	p, ok := s.plan(req.PlanID)
	if !ok || p.Price == 0 {
		return nil, apperr.Invalid("plan_id", "plan %q cannot be purchased", req.PlanID)
	}

	ctx, cancel := context.WithTimeout(ctx, paymentTimeout)
	defer cancel()

	switch req.Provider {
	case subscription.ProviderPaddle:
		return s.paddleCheckout(ctx, userID, p)
	default:
		return s.stripeCheckout(ctx, userID, p)
	}
}

func (s *PaymentService) stripeCheckout(ctx context.Context, userID uuid.UUID, p subscription.Plan) (*subscription.CheckoutResponse, error) {
	if s.stripe == nil || p.StripePriceID == "" {
		return nil, apperr.Upstream("stripe", fmt.Errorf("stripe is not configured for plan %s", p.ID))
	}

	email, err := s.users.GetUserEmail(ctx, userID)
	if err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(p.StripePriceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL:        stripe.String(s.cfg.Stripe.SuccessURL),
		CancelURL:         stripe.String(s.cfg.Stripe.CancelURL),
		ClientReferenceID: stripe.String(userID.String()),
	}
	if email != "" {
		params.CustomerEmail = stripe.String(email)
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID.String())
	params.AddMetadata("tier", string(p.ID))

	sess, err := s.stripe.CheckoutSessions.New(params)
	if err != nil {
		return nil, apperr.Upstream("stripe", err)
	}
	return &subscription.CheckoutResponse{CheckoutURL: sess.URL, SessionID: sess.ID}, nil
}

func (s *PaymentService) paddleCheckout(ctx context.Context, userID uuid.UUID, p subscription.Plan) (*subscription.CheckoutResponse, error) {
	if s.paddle == nil || p.PaddlePriceID == "" {
		return nil, apperr.Upstream("paddle", fmt.Errorf("paddle is not configured for plan %s", p.ID))
	}

	tx, err := s.paddle.CreateTransaction(ctx, &paddle.CreateTransactionRequest{
		Items: []paddle.CreateTransactionItems{
			*paddle.NewCreateTransactionItemsCatalogItem(&paddle.CatalogItem{
				Quantity: 1,
				PriceID:  p.PaddlePriceID,
			}),
		},
		CustomData: paddle.CustomData{
			"user_id": userID.String(),
			"tier":    string(p.ID),
		},
		CollectionMode: paddle.PtrTo(paddle.CollectionModeAutomatic),
	})
	if err != nil {
		return nil, apperr.Upstream("paddle", err)
	}

	env := "checkout"
	if s.cfg.Paddle.Sandbox {
		env = "sandbox-checkout"
	}
	return &subscription.CheckoutResponse{
		CheckoutURL: fmt.Sprintf("https://%s.paddle.com/checkout/custom?_ptxn=%s", env, tx.ID),
		SessionID:   tx.ID,
	}, nil
}

// HandleStripeEvent verifies and applies a Stripe webhook payload.
func (s *PaymentService) HandleStripeEvent(ctx context.Context, payload []byte, signature string) error {
	if s.cfg.Stripe.WebhookSecret == "" {
		return apperr.Upstream("stripe", fmt.Errorf("webhook secret not configured"))
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, s.cfg.Stripe.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return fmt.Errorf("invalid stripe signature: %w", apperr.ErrUnauthorized)
	}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return apperr.Invalid("payload", "malformed checkout session")
		}
		externalID := sess.ID
		if sess.Subscription != nil && sess.Subscription.ID != "" {
			externalID = sess.Subscription.ID
		}
		return s.activate(ctx, subscription.ProviderStripe, sess.Metadata["user_id"], sess.Metadata["tier"], externalID, time.Time{})

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return apperr.Invalid("payload", "malformed subscription")
		}
		return s.cancel(ctx, subscription.ProviderStripe, sub.ID)

	default:
		log.Ctx(ctx).Debug().Str("event", string(event.Type)).Msg("unhandled stripe event")
	}
	return nil
}

// HandlePaddleEvent verifies r's signature and applies the event.
func (s *PaymentService) HandlePaddleEvent(ctx context.Context, r *http.Request, body []byte) error {
	if s.cfg.Paddle.WebhookSecret == "" {
		return apperr.Upstream("paddle", fmt.Errorf("webhook secret not configured"))
	}

	valid, err := paddle.NewWebhookVerifier(s.cfg.Paddle.WebhookSecret).Verify(r)
	if err != nil || !valid {
		return fmt.Errorf("invalid paddle signature: %w", apperr.ErrUnauthorized)
	}

	var envelope struct {
		EventID   string               `json:"event_id"`
		EventType paddle.EventTypeName `json:"event_type"`
		Data      json.RawMessage      `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return apperr.Invalid("payload", "malformed paddle event")
	}

	switch envelope.EventType {
	case paddle.EventTypeNameTransactionPaid:
		var tx paddle.Transaction
		if err := json.Unmarshal(envelope.Data, &tx); err != nil {
			return apperr.Invalid("payload", "malformed transaction")
		}
		userID, _ := tx.CustomData["user_id"].(string)
		tier, _ := tx.CustomData["tier"].(string)

		externalID := tx.ID
		if tx.SubscriptionID != nil && *tx.SubscriptionID != "" {
			externalID = *tx.SubscriptionID
		}
		var periodEnd time.Time
		if tx.BillingPeriod != nil {
			periodEnd, _ = time.Parse(time.RFC3339, tx.BillingPeriod.EndsAt)
		}
		return s.activate(ctx, subscription.ProviderPaddle, userID, tier, externalID, periodEnd)

	case paddle.EventTypeNameSubscriptionCanceled:
		var sub paddle.Subscription
		if err := json.Unmarshal(envelope.Data, &sub); err != nil {
			return apperr.Invalid("payload", "malformed subscription")
		}
		return s.cancel(ctx, subscription.ProviderPaddle, sub.ID)

	default:
		log.Ctx(ctx).Debug().Str("event", string(envelope.EventType)).Str("event_id", envelope.EventID).Msg("unhandled paddle event")
	}
	return nil
}

func (s *PaymentService) activate(ctx context.Context, provider subscription.Provider, rawUserID, rawTier, externalID string, periodEnd time.Time) error {
	userID, err := uuid.Parse(rawUserID)
	if err != nil {
		return apperr.Invalid("user_id", "missing or malformed user_id metadata")
	}
	tier := subscription.Tier(rawTier)

	err = s.users.SetSubscription(ctx, userID, &subscription.Subscription{
		UserID:           userID.String(),
		Tier:             tier,
		Provider:         string(provider),
		ExternalID:       externalID,
		CurrentPeriodEnd: periodEnd,
	})
	if err != nil {
		return err
	}

	log.Ctx(ctx).Info().Str("user_id", userID.String()).Str("tier", rawTier).Str("provider", string(provider)).Msg("subscription activated")
	deliver(ctx, s.notifier, userID, notification.NotificationSubscription,
		"Subscription active",
		fmt.Sprintf("Your %s plan is now active", tier),
		map[string]any{"tier": tier, "provider": provider})
	return nil
}

func (s *PaymentService) cancel(ctx context.Context, provider subscription.Provider, externalID string) error {
	userID, err := s.users.CancelSubscription(ctx, string(provider), externalID)
	if err != nil {
		return err
	}

	log.Ctx(ctx).Info().Str("user_id", userID.String()).Str("provider", string(provider)).Msg("subscription cancelled")
	deliver(ctx, s.notifier, userID, notification.NotificationSubscription,
		"Subscription ended",
		"Your plan has been moved back to Free",
		map[string]any{"tier": subscription.TierFree, "provider": provider})
	return nil
}

package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"tradeQuestAPI/handlers"
	"tradeQuestAPI/middleware"
)

func (a *app) routes(logger zerolog.Logger) http.Handler {
	userHandler := handlers.NewUserHandler(a.users)
	gamificationHandler := handlers.NewGamificationHandler(a.progression)
	tradeHandler := handlers.NewTradeHandler(a.trades)
	communityHandler := handlers.NewCommunityHandler(a.community)
	ticketHandler := handlers.NewTicketHandler(a.tickets)
	coachHandler := handlers.NewCoachHandler(a.coach, a.cfg.OpenAI.Timeout)
	notificationHandler := handlers.NewNotificationHandler(a.notifications)
	paymentHandler := handlers.NewPaymentHandler(a.payments)
	webhookHandler := handlers.NewWebhookHandler(a.users, a.payments, a.cfg.Auth.ClerkWebhookSecret)

	r := mux.NewRouter()
	r.Use(middleware.RequestLogger(logger))
	r.Use(a.limiter.Middleware)
	r.Use(middleware.MonitorMiddleware)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(a.cfg.Metrics)(
		promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry}),
	)).Methods("GET")

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := a.db.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "database connection failed"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "tradequest-api"}`))
	}).Methods("GET")

	r.HandleFunc("/webhooks/clerk", webhookHandler.HandleClerkWebhook).Methods("POST")
	r.HandleFunc("/webhooks/stripe", webhookHandler.HandleStripeWebhook).Methods("POST")
	r.HandleFunc("/webhooks/paddle", webhookHandler.HandlePaddleWebhook).Methods("POST")

	api := r.PathPrefix("/api/v1").Subrouter()

	// -------------------------------------------------------------------------
	// PUBLIC ROUTES (AUTH OPTIONAL)
	// -------------------------------------------------------------------------
	public := api.PathPrefix("").Subrouter()
	public.Use(a.auth.Optional)

	if a.cfg.Auth.Provider == "local" {
		public.HandleFunc("/auth/register", userHandler.Register).Methods("POST")
		public.HandleFunc("/auth/login", userHandler.Login).Methods("POST")
	}
	public.HandleFunc("/gamification/leaderboard", gamificationHandler.GetLeaderboard).Methods("GET")
	public.HandleFunc("/gamification/hall-of-fame", gamificationHandler.GetHallOfFame).Methods("GET")
	public.HandleFunc("/gamification/season", gamificationHandler.GetSeason).Methods("GET")
	public.HandleFunc("/payments/plans", paymentHandler.GetPlans).Methods("GET")

	// -------------------------------------------------------------------------
	// PROTECTED ROUTES (REQUIRE AUTH HEADER)
	// -------------------------------------------------------------------------
	protected := api.PathPrefix("").Subrouter()
	protected.Use(a.auth.Require)

	protected.HandleFunc("/user", userHandler.GetProfile).Methods("GET")
	protected.HandleFunc("/user", userHandler.UpdateProfile).Methods("PUT")

	protected.HandleFunc("/gamification/profile", gamificationHandler.GetProfile).Methods("GET")
	protected.HandleFunc("/gamification/challenges", gamificationHandler.GetChallenges).Methods("GET")
	protected.HandleFunc("/gamification/challenges/{id}/claim", gamificationHandler.ClaimChallenge).Methods("POST")
	protected.HandleFunc("/gamification/checkin", gamificationHandler.CheckIn).Methods("POST")
	protected.HandleFunc("/gamification/streak", gamificationHandler.GetStreak).Methods("GET")
	protected.HandleFunc("/gamification/achievements", gamificationHandler.GetAchievements).Methods("GET")
	protected.HandleFunc("/gamification/rewards", gamificationHandler.GetRewards).Methods("GET")
	protected.HandleFunc("/gamification/rewards/{id}/claim", gamificationHandler.ClaimReward).Methods("POST")
	protected.HandleFunc("/gamification/theme", gamificationHandler.ActivateTheme).Methods("PUT")

	protected.HandleFunc("/trades", tradeHandler.ListTrades).Methods("GET")
	protected.HandleFunc("/trades", tradeHandler.CreateTrade).Methods("POST")
	protected.HandleFunc("/trades/stats", tradeHandler.GetStats).Methods("GET")
	protected.HandleFunc("/trades/heatmap", tradeHandler.GetHeatmap).Methods("GET")
	protected.HandleFunc("/trades/{id}", tradeHandler.GetTrade).Methods("GET")
	protected.HandleFunc("/trades/{id}", tradeHandler.DeleteTrade).Methods("DELETE")
	protected.HandleFunc("/trades/{id}/close", tradeHandler.CloseTrade).Methods("PUT")

	protected.HandleFunc("/community/posts", communityHandler.ListPosts).Methods("GET")
	protected.HandleFunc("/community/posts", communityHandler.CreatePost).Methods("POST")
	protected.HandleFunc("/community/posts/{id}", communityHandler.GetPost).Methods("GET")
	protected.HandleFunc("/community/posts/{id}", communityHandler.DeletePost).Methods("DELETE")
	protected.HandleFunc("/community/posts/{id}/like", communityHandler.ToggleLike).Methods("POST")
	protected.HandleFunc("/community/posts/{id}/comments", communityHandler.ListComments).Methods("GET")
	protected.HandleFunc("/community/posts/{id}/comments", communityHandler.AddComment).Methods("POST")

	protected.HandleFunc("/tickets", ticketHandler.ListTickets).Methods("GET")
	protected.HandleFunc("/tickets", ticketHandler.CreateTicket).Methods("POST")
	protected.HandleFunc("/tickets/{id}", ticketHandler.GetTicket).Methods("GET")
	protected.HandleFunc("/tickets/{id}/messages", ticketHandler.Reply).Methods("POST")
	protected.HandleFunc("/tickets/{id}/close", ticketHandler.CloseTicket).Methods("PUT")

	protected.HandleFunc("/ai/analyze-setup", coachHandler.AnalyzeSetup).Methods("POST")
	protected.HandleFunc("/ai/coaching", coachHandler.Coaching).Methods("POST")
	protected.HandleFunc("/ai/backtest", coachHandler.Backtest).Methods("POST")

	protected.HandleFunc("/notifications", notificationHandler.GetNotifications).Methods("GET")
	protected.HandleFunc("/notifications/unread-count", notificationHandler.GetUnreadCount).Methods("GET")
	protected.HandleFunc("/notifications/read-all", notificationHandler.MarkAllAsRead).Methods("PUT")
	protected.HandleFunc("/notifications/register-device", notificationHandler.RegisterDevice).Methods("POST")
	protected.HandleFunc("/notifications/ws", notificationHandler.Live).Methods("GET")
	protected.HandleFunc("/notifications/{id}/read", notificationHandler.MarkAsRead).Methods("PUT")
	protected.HandleFunc("/notifications/{id}", notificationHandler.DeleteNotification).Methods("DELETE")

	protected.HandleFunc("/payments/subscription", paymentHandler.GetSubscription).Methods("GET")
	protected.HandleFunc("/payments/checkout", paymentHandler.Checkout).Methods("POST")

	corsHandler := gorillaHandlers.CORS(
		gorillaHandlers.AllowedOrigins([]string{"*"}),
		gorillaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorillaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		gorillaHandlers.ExposedHeaders([]string{"Content-Length", "X-Request-Id"}),
	)
	return corsHandler(r)
}

// serve runs the HTTP server and background workers until ctx is cancelled.
func (a *app) serve(ctx context.Context, logger zerolog.Logger) error {
	server := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           a.routes(logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      a.cfg.OpenAI.Timeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go a.limiter.Run(ctx)
	a.scheduler.Start()
	a.scheduling = true

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}
	logger.Info().Msg("server shutdown complete")
	return nil
}

package main

import (
	"context"
	"fmt"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"tradeQuestAPI/internal/coach"
	"tradeQuestAPI/internal/config"
	"tradeQuestAPI/internal/database"
	"tradeQuestAPI/internal/metrics"
	"tradeQuestAPI/internal/notification"
	"tradeQuestAPI/internal/progression"
	"tradeQuestAPI/internal/storage"
	"tradeQuestAPI/middleware"
	"tradeQuestAPI/services"
)

// app holds the process-wide dependencies shared by every command.
type app struct {
	cfg      *config.Config
	db       *pgxpool.Pool
	clock    clockwork.Clock
	registry *prometheus.Registry
	catalog  *progression.Catalog

	users         *services.UserService
	notifications *services.NotificationService
	progression   *services.ProgressionService
	trades        *services.TradeService
	community     *services.CommunityService
	tickets       *services.TicketService
	coach         *services.CoachService
	payments      *services.PaymentService
	scheduler     *services.Scheduler
	scheduling    bool

	limiter *middleware.RateLimiter
	auth    *middleware.Authenticator
}

func loadCatalog(path string) (*progression.Catalog, error) {
	if path == "" {
		return progression.DefaultCatalog(), nil
	}
	catalog, err := progression.LoadCatalog(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog %s: %w", path, err)
	}
	log.Info().Str("file", path).Msg("catalog loaded")
	return catalog, nil
}

func openDatabase(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	log.Info().Msg("database connected and migrated")
	return db, nil
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	catalog, err := loadCatalog(cfg.CatalogFile)
	if err != nil {
		return nil, err
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		db:       db,
		clock:    clockwork.NewRealClock(),
		registry: prometheus.NewRegistry(),
		catalog:  catalog,
	}

	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(a.registry)
	middleware.RegisterMetrics(a.registry)

	var push services.PushNotificationProvider
	if fcm, err := notification.NewFCMService(ctx, cfg.FCM); err != nil {
		log.Warn().Err(err).Msg("FCM disabled; notifications will not be pushed")
	} else {
		push = fcm
		log.Info().Msg("FCM push provider initialized")
	}

	var uploader services.ImageUploader
	if cfg.S3.Enabled() {
		s3, err := storage.NewS3Uploader(ctx, cfg.S3)
		if err != nil {
			db.Close()
			return nil, err
		}
		uploader = s3
		log.Info().Str("bucket", cfg.S3.Bucket).Msg("screenshot uploads enabled")
	}

	a.users = services.NewUserService(db, cfg.Auth, catalog.Levels)
	a.notifications = services.NewNotificationService(db, services.NewLiveHub(), push)
	a.progression = services.NewProgressionService(services.NewPgProgressionStore(db), catalog, a.notifications, a.clock)
	a.trades = services.NewTradeService(db, uploader, a.progression)
	a.community = services.NewCommunityService(db, uploader, a.progression, a.notifications, catalog.Levels)
	a.tickets = services.NewTicketService(db)
	a.coach = services.NewCoachService(db, coach.NewClient(cfg.OpenAI), a.trades, a.progression)

	a.payments, err = services.NewPaymentService(*cfg, a.users, a.notifications)
	if err != nil {
		a.close()
		return nil, err
	}

	a.scheduler, err = services.NewScheduler(a.clock, services.DefaultJobs(a.progression, a.notifications))
	if err != nil {
		a.close()
		return nil, err
	}

	a.limiter = middleware.NewRateLimiter(cfg.RateLimit, a.clock)

	switch cfg.Auth.Provider {
	case "clerk":
		clerk.SetKey(cfg.Auth.ClerkSecretKey)
		a.auth = middleware.NewAuthenticator(middleware.NewClerkVerifier(a.users))
	default:
		secret := cfg.Auth.JWTSecret
		a.auth = middleware.NewAuthenticator(middleware.NewLocalVerifier(func(raw string) (uuid.UUID, error) {
			return services.ParseLocalToken(secret, raw)
		}))
	}
	log.Info().Str("provider", cfg.Auth.Provider).Msg("authentication configured")

	return a, nil
}

func (a *app) close() {
	if a.scheduling {
		if err := a.scheduler.Stop(); err != nil {
			log.Warn().Err(err).Msg("scheduler shutdown")
		}
	}
	if a.notifications != nil {
		a.notifications.Stop()
	}
	log.Info().Msg("closing database connection pool")
	a.db.Close()
}

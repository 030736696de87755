package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"tradeQuestAPI/internal/apperr"
	"tradeQuestAPI/internal/config"
	"tradeQuestAPI/internal/database"
	"tradeQuestAPI/internal/progression"
	"tradeQuestAPI/internal/types/subscription"
	"tradeQuestAPI/internal/user"
)

const userColumns = `id, clerk_id, email, password_hash, display_name, image_url, subscription_tier,
	xp, title, unlocked_themes, active_theme, created_at, updated_at`

type UserService struct {
	db     *pgxpool.Pool
	auth   config.AuthConfig
	levels progression.LevelTable
}

func NewUserService(db *pgxpool.Pool, auth config.AuthConfig, levels progression.LevelTable) *UserService {
	return &UserService{db: db, auth: auth, levels: levels}
}

func scanUser(row pgx.Row, levels progression.LevelTable) (*user.User, error) {
	u := &user.User{}
	err := row.Scan(
		&u.ID,
		&u.ClerkID,
		&u.Email,
		&u.PasswordHash,
		&u.DisplayName,
		&u.ImageURL,
		&u.SubscriptionTier,
		&u.XP,
		&u.Title,
		&u.UnlockedThemes,
		&u.ActiveTheme,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Level = levels.Level(u.XP)
	return u, nil
}

func getUserByID(ctx context.Context, db *pgxpool.Pool, userID uuid.UUID) (*user.User, error) {
	row := db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	u, err := scanUser(row, progression.DefaultLevelTable())
	if database.IsNoRows(err) {
		return nil, apperr.NotFound("user")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// CreateUser provisions a Clerk user. Replayed webhooks update the row.
func (s *UserService) CreateUser(ctx context.Context, req *user.CreateUserRequest) (*user.User, error) {
	query := `
	INSERT INTO users (clerk_id, email, display_name, image_url)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (clerk_id) DO UPDATE
	SET email = EXCLUDED.email, display_name = EXCLUDED.display_name,
		image_url = EXCLUDED.image_url, updated_at = NOW()
	RETURNING ` + userColumns

	u, err := scanUser(s.db.QueryRow(ctx, query, req.ClerkID, strings.ToLower(req.Email), req.DisplayName, req.ImageURL), s.levels)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperr.Invalid("email", "email already registered")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}

func (s *UserService) GetUserByID(ctx context.Context, userID uuid.UUID) (*user.User, error) {
	u, err := getUserByID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	u.Level = s.levels.Level(u.XP)
	return u, nil
}

func (s *UserService) GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE clerk_id = $1`, clerkID), s.levels)
	if database.IsNoRows(err) {
		return nil, apperr.NotFound("user")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// ResolveClerkUser maps a Clerk subject to the internal user id.
func (s *UserService) ResolveClerkUser(ctx context.Context, clerkID string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&id)
	if database.IsNoRows(err) {
		return uuid.Nil, apperr.NotFound("user")
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to resolve user: %w", err)
	}
	return id, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, req *user.UpdateProfileRequest) (*user.User, error) {
	query := `
	UPDATE users
	SET display_name = COALESCE(NULLIF($2, ''), display_name),
		image_url = COALESCE(NULLIF($3, ''), image_url),
		updated_at = NOW()
	WHERE id = $1
	RETURNING ` + userColumns

	u, err := scanUser(s.db.QueryRow(ctx, query, userID, req.DisplayName, req.ImageURL), s.levels)
	if database.IsNoRows(err) {
		return nil, apperr.NotFound("user")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return u, nil
}

func (s *UserService) UpdateProfileByClerkID(ctx context.Context, clerkID string, req *user.UpdateProfileRequest) (*user.User, error) {
	id, err := s.ResolveClerkUser(ctx, clerkID)
	if err != nil {
		return nil, err
	}
	return s.UpdateProfile(ctx, id, req)
}

func (s *UserService) DeleteUserByClerkID(ctx context.Context, clerkID string) error {
	cmd, err := s.db.Exec(ctx, `DELETE FROM users WHERE clerk_id = $1`, clerkID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return apperr.NotFound("user")
	}
	return nil
}

// Register creates a local account and returns a session token.
func (s *UserService) Register(ctx context.Context, req *user.RegisterRequest) (*user.AuthResponse, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	query := `
	INSERT INTO users (email, password_hash, display_name)
	VALUES ($1, $2, $3)
	RETURNING ` + userColumns

	u, err := scanUser(s.db.QueryRow(ctx, query, strings.ToLower(req.Email), string(hash), req.DisplayName), s.levels)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperr.Invalid("email", "email already registered")
		}
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	token, err := s.IssueToken(u.ID)
	if err != nil {
		return nil, err
	}
	log.Ctx(ctx).Info().Str("user_id", u.ID.String()).Msg("user registered")
	return &user.AuthResponse{Token: token, User: u}, nil
}

func (s *UserService) Login(ctx context.Context, req *user.LoginRequest) (*user.AuthResponse, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, strings.ToLower(req.Email)), s.levels)
	if database.IsNoRows(err) {
		return nil, fmt.Errorf("invalid credentials: %w", apperr.ErrUnauthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if u.PasswordHash == nil {
		return nil, fmt.Errorf("invalid credentials: %w", apperr.ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", apperr.ErrUnauthorized)
	}

	token, err := s.IssueToken(u.ID)
	if err != nil {
		return nil, err
	}
	return &user.AuthResponse{Token: token, User: u}, nil
}

// IssueToken signs an HS256 session token for userID.
func (s *UserService) IssueToken(userID uuid.UUID) (string, error) {
	return IssueLocalToken(s.auth.JWTSecret, userID, s.auth.TokenTTL, time.Now())
}

func IssueLocalToken(secret string, userID uuid.UUID, ttl time.Duration, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		Issuer:    "tradequest",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// ParseLocalToken verifies an HS256 session token and returns its subject.
func ParseLocalToken(secret, raw string) (uuid.UUID, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer("tradequest"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", apperr.ErrUnauthorized, err)
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad subject", apperr.ErrUnauthorized)
	}
	return id, nil
}

// SetSubscription records a paid tier for userID.
func (s *UserService) SetSubscription(ctx context.Context, userID uuid.UUID, sub *subscription.Subscription) error {
	if !sub.Tier.Valid() {
		return apperr.Invalid("tier", "unknown tier %q", sub.Tier)
	}

	var periodEnd *time.Time
	if !sub.CurrentPeriodEnd.IsZero() {
		periodEnd = &sub.CurrentPeriodEnd
	}

	cmd, err := s.db.Exec(ctx, `
		UPDATE users
		SET subscription_tier = $2, subscription_provider = $3, subscription_external_id = $4,
			current_period_end = $5, updated_at = NOW()
		WHERE id = $1
	`, userID, sub.Tier, sub.Provider, sub.ExternalID, periodEnd)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return apperr.NotFound("user")
	}
	return nil
}

// CancelSubscription drops whichever user holds externalID back to free.
func (s *UserService) CancelSubscription(ctx context.Context, provider, externalID string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.QueryRow(ctx, `
		UPDATE users
		SET subscription_tier = 'free', current_period_end = NULL, updated_at = NOW()
		WHERE subscription_provider = $1 AND subscription_external_id = $2
		RETURNING id
	`, provider, externalID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, apperr.NotFound("subscription")
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to cancel subscription: %w", err)
	}
	return id, nil
}

func (s *UserService) GetSubscription(ctx context.Context, userID uuid.UUID) (*subscription.Subscription, error) {
	sub := &subscription.Subscription{UserID: userID.String()}
	var periodEnd *time.Time
	err := s.db.QueryRow(ctx, `
		SELECT subscription_tier, subscription_provider, subscription_external_id, current_period_end
		FROM users WHERE id = $1
	`, userID).Scan(&sub.Tier, &sub.Provider, &sub.ExternalID, &periodEnd)
	if database.IsNoRows(err) {
		return nil, apperr.NotFound("user")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	if periodEnd != nil {
		sub.CurrentPeriodEnd = *periodEnd
	}
	return sub, nil
}

func (s *UserService) GetUserEmail(ctx context.Context, userID uuid.UUID) (string, error) {
	var email string
	err := s.db.QueryRow(ctx, `SELECT email FROM users WHERE id = $1`, userID).Scan(&email)
	if database.IsNoRows(err) {
		return "", apperr.NotFound("user")
	}
	if err != nil {
		return "", fmt.Errorf("failed to get user email: %w", err)
	}
	return email, nil
}

package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/clerk/clerk-sdk-go/v2/jwt"
	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"

	"tradeQuestAPI/internal/apperr"
)

type contextKey string

const UserIDKey contextKey = "userID"

// TokenVerifier turns a bearer token into an internal user id.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (uuid.UUID, error)
}

// ClerkUserResolver maps a Clerk subject to the internal user id.
type ClerkUserResolver interface {
	ResolveClerkUser(ctx context.Context, clerkID string) (uuid.UUID, error)
}

type ClerkVerifier struct {
	users ClerkUserResolver
}

func NewClerkVerifier(users ClerkUserResolver) *ClerkVerifier {
	return &ClerkVerifier{users: users}
}

func (v *ClerkVerifier) Verify(ctx context.Context, token string) (uuid.UUID, error) {
	claims, err := jwt.Verify(ctx, &jwt.VerifyParams{Token: token})
	if err != nil {
		return uuid.Nil, errors.Join(apperr.ErrUnauthorized, err)
	}
	return v.users.ResolveClerkUser(ctx, claims.Subject)
}

// LocalVerifier checks HS256 tokens issued by the auth endpoints.
type LocalVerifier struct {
	parse func(raw string) (uuid.UUID, error)
}

func NewLocalVerifier(parse func(raw string) (uuid.UUID, error)) *LocalVerifier {
	return &LocalVerifier{parse: parse}
}

func (v *LocalVerifier) Verify(_ context.Context, token string) (uuid.UUID, error) {
	return v.parse(token)
}

type Authenticator struct {
	verifier TokenVerifier
}

func NewAuthenticator(verifier TokenVerifier) *Authenticator {
	return &Authenticator{verifier: verifier}
}

// bearerToken reads the Authorization header. Websocket clients cannot set
// headers, so a token query parameter is accepted as well.
func bearerToken(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		token := strings.TrimPrefix(h, "Bearer ")
		return token, token != h && token != ""
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, true
	}
	return "", false
}

// Require rejects requests without a valid token.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			respondWithError(w, http.StatusUnauthorized, "Authorization header required")
			return
		}

		userID, err := a.verifier.Verify(r.Context(), token)
		if err != nil {
			hlog.FromRequest(r).Debug().Err(err).Msg("token verification failed")
			respondWithError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

// Optional attaches the user when a valid token is present and never
// rejects.
func (a *Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token, ok := bearerToken(r); ok {
			if userID, err := a.verifier.Verify(r.Context(), token); err == nil {
				r = r.WithContext(WithUserID(r.Context(), userID))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetUserID extracts the internal user id from context.
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return userID, ok
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

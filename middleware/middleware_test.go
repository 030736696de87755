package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"

	"tradeQuestAPI/internal/apperr"
	"tradeQuestAPI/internal/config"
)

type staticVerifier struct {
	token string
	user  uuid.UUID
}

func (v staticVerifier) Verify(_ context.Context, token string) (uuid.UUID, error) {
	if token != v.token {
		return uuid.Nil, apperr.ErrUnauthorized
	}
	return v.user, nil
}

func echoUser(w http.ResponseWriter, r *http.Request) {
	id, ok := GetUserID(r.Context())
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	_, _ = w.Write([]byte(id.String()))
}

func TestRequireAuth(t *testing.T) {
	user := uuid.New()
	auth := NewAuthenticator(staticVerifier{token: "good", user: user})
	h := auth.Require(http.HandlerFunc(echoUser))

	tests := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"not bearer", "Token good", "", http.StatusUnauthorized},
		{"bad token", "Bearer nope", "", http.StatusUnauthorized},
		{"header", "Bearer good", "", http.StatusOK},
		{"query for websockets", "", "?token=good", http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x"+tc.query, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, user.String(), rec.Body.String())
			} else {
				assert.Contains(t, rec.Body.String(), `"error"`)
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	user := uuid.New()
	h := NewAuthenticator(staticVerifier{token: "good", user: user}).Optional(http.HandlerFunc(echoUser))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer bad")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, user.String(), rec.Body.String())
}

func TestLocalVerifier(t *testing.T) {
	id := uuid.New()
	v := NewLocalVerifier(func(raw string) (uuid.UUID, error) {
		if raw == "ok" {
			return id, nil
		}
		return uuid.Nil, errors.New("bad")
	})
	got, err := v.Verify(context.Background(), "ok")
	assert.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestRateLimiter(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	rl := NewRateLimiter(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 2}, clock)
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	do := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-For", ip+", 10.0.0.1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do("1.1.1.1"))
	assert.Equal(t, http.StatusOK, do("1.1.1.1"))
	assert.Equal(t, http.StatusTooManyRequests, do("1.1.1.1"))
	assert.Equal(t, http.StatusOK, do("2.2.2.2"))

	clock.Advance(time.Second)
	assert.Equal(t, http.StatusOK, do("1.1.1.1"))

	assert.Equal(t, 2, rl.Prune())
	clock.Advance(4 * time.Minute)
	assert.Equal(t, 0, rl.Prune())
}

func TestBasicAuthMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	locked := BasicAuthMiddleware(config.MetricsConfig{})(ok)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.SetBasicAuth("", "")
	rec := httptest.NewRecorder()
	locked.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	h := BasicAuthMiddleware(config.MetricsConfig{User: "prom", Password: "secret"})(ok)
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.SetBasicAuth("prom", "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req.SetBasicAuth("prom", "secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouteLabelUsesTemplate(t *testing.T) {
	var label string
	r := mux.NewRouter()
	r.HandleFunc("/trades/{id}", func(w http.ResponseWriter, req *http.Request) {
		label = routeLabel(req)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/trades/123", nil))
	assert.Equal(t, "/trades/{id}", label)
}

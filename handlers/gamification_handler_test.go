package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeQuestAPI/internal/leaderboard"
	"tradeQuestAPI/internal/progression"
	"tradeQuestAPI/internal/testutil"
	"tradeQuestAPI/internal/types/trade"
	"tradeQuestAPI/internal/user"
	"tradeQuestAPI/middleware"
	"tradeQuestAPI/services"
)

var now = time.Date(2025, time.March, 12, 14, 0, 0, 0, time.UTC)

type fixture struct {
	router *mux.Router
	store  *testutil.MemStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := testutil.NewMemStore()
	svc := services.NewProgressionService(store, progression.DefaultCatalog(), &testutil.RecordingNotifier{}, clockwork.NewFakeClockAt(now))
	h := NewGamificationHandler(svc)

	r := mux.NewRouter()
	r.HandleFunc("/gamification/profile", h.GetProfile).Methods("GET")
	r.HandleFunc("/gamification/challenges/{id}/claim", h.ClaimChallenge).Methods("POST")
	r.HandleFunc("/gamification/checkin", h.CheckIn).Methods("POST")
	r.HandleFunc("/gamification/leaderboard", h.GetLeaderboard).Methods("GET")
	r.HandleFunc("/gamification/theme", h.ActivateTheme).Methods("PUT")
	return &fixture{router: r, store: store}
}

func (f *fixture) do(t *testing.T, method, path string, userID *uuid.UUID, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if userID != nil {
		req = req.WithContext(middleware.WithUserID(req.Context(), *userID))
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func TestClaimChallengeHandler(t *testing.T) {
	f := newFixture(t)
	u := f.store.AddUser(user.User{})
	f.store.AddTrade(trade.Trade{
		UserID:     u.ID,
		Symbol:     "EURUSD",
		Direction:  trade.DirectionLong,
		EntryPrice: decimal.NewFromInt(1),
		Size:       decimal.NewFromInt(1),
		Status:     trade.StatusOpen,
		CreatedAt:  now,
	})

	rr := f.do(t, http.MethodPost, "/gamification/challenges/ch_daily_1/claim", &u.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var res map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.EqualValues(t, 50, res["xp_earned"])
	assert.EqualValues(t, 1, res["new_level"])

	rr = f.do(t, http.MethodPost, "/gamification/challenges/ch_daily_1/claim", &u.ID, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = f.do(t, http.MethodPost, "/gamification/challenges/nope/claim", &u.ID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestClaimChallengeRequiresUser(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodPost, "/gamification/challenges/ch_daily_1/claim", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCheckInHandler(t *testing.T) {
	f := newFixture(t)
	u := f.store.AddUser(user.User{})

	rr := f.do(t, http.MethodPost, "/gamification/checkin", &u.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var first map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &first))
	assert.EqualValues(t, 1, first["current_streak"])
	assert.EqualValues(t, 10, first["xp_earned"])

	rr = f.do(t, http.MethodPost, "/gamification/checkin", &u.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var second map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &second))
	assert.Equal(t, true, second["already_checked_in"])
	assert.EqualValues(t, 0, second["xp_earned"])
}

func TestLeaderboardHandler(t *testing.T) {
	f := newFixture(t)

	t.Run("empty window", func(t *testing.T) {
		rr := f.do(t, http.MethodGet, "/gamification/leaderboard?period=daily", nil, nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var board leaderboard.Leaderboard
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &board))
		assert.NotNil(t, board.Entries)
		assert.Empty(t, board.Entries)
		assert.Nil(t, board.UserPosition)
	})

	t.Run("ranked with viewer", func(t *testing.T) {
		a := f.store.AddUser(user.User{DisplayName: "alice"})
		b := f.store.AddUser(user.User{DisplayName: "bob"})
		f.store.AddClosedTrade(a.ID, now.Add(-time.Hour), 50)
		f.store.AddClosedTrade(b.ID, now.Add(-time.Hour), 120)

		rr := f.do(t, http.MethodGet, "/gamification/leaderboard?period=weekly", &a.ID, nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var board leaderboard.Leaderboard
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &board))
		require.Len(t, board.Entries, 2)
		assert.Equal(t, "bob", board.Entries[0].DisplayName)
		assert.Equal(t, 1, board.Entries[0].Rank)
		require.NotNil(t, board.UserPosition)
		assert.Equal(t, 2, board.UserPosition.Rank)
	})

	t.Run("bad input", func(t *testing.T) {
		rr := f.do(t, http.MethodGet, "/gamification/leaderboard?period=yearly", nil, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)

		rr = f.do(t, http.MethodGet, "/gamification/leaderboard?limit=500", nil, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)

		rr = f.do(t, http.MethodGet, "/gamification/leaderboard?limit=ten", nil, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestActivateThemeValidation(t *testing.T) {
	f := newFixture(t)
	u := f.store.AddUser(user.User{})

	rr := f.do(t, http.MethodPut, "/gamification/theme", &u.ID, []byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "theme")

	rr = f.do(t, http.MethodPut, "/gamification/theme", &u.ID, []byte(`not json`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(t, http.MethodPut, "/gamification/theme", &u.ID, []byte(`{"theme":"dark-blue"}`))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestProfileHandler(t *testing.T) {
	f := newFixture(t)
	u := f.store.AddUser(user.User{DisplayName: "carol"})

	rr := f.do(t, http.MethodGet, "/gamification/profile", &u.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var p user.Profile
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
	assert.Equal(t, "carol", p.DisplayName)
	assert.Equal(t, 1, p.Level)
	assert.Equal(t, 0, p.XP)
}

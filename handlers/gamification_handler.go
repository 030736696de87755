package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"tradeQuestAPI/internal/leaderboard"
	"tradeQuestAPI/internal/user"
	"tradeQuestAPI/middleware"
	"tradeQuestAPI/services"
)

type GamificationHandler struct {
	progression *services.ProgressionService
}

func NewGamificationHandler(progression *services.ProgressionService) *GamificationHandler {
	return &GamificationHandler{progression: progression}
}

// GET /api/v1/gamification/profile
func (h *GamificationHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	profile, err := h.progression.Profile(ctx, userID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, profile)
}

// GET /api/v1/gamification/challenges
func (h *GamificationHandler) GetChallenges(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	challenges, err := h.progression.Challenges(ctx, userID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"challenges": challenges})
}

// POST /api/v1/gamification/challenges/{id}/claim
func (h *GamificationHandler) ClaimChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	result, err := h.progression.ClaimChallenge(ctx, userID, mux.Vars(r)["id"])
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// POST /api/v1/gamification/checkin
func (h *GamificationHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	result, err := h.progression.CheckIn(ctx, userID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// GET /api/v1/gamification/streak
func (h *GamificationHandler) GetStreak(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	st, err := h.progression.Streak(ctx, userID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, st)
}

// GET /api/v1/gamification/leaderboard?period=&limit=
// Public; an authenticated caller also gets their own position.
func (h *GamificationHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	period := leaderboard.Period(r.URL.Query().Get("period"))
	if period == "" {
		period = leaderboard.PeriodWeekly
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	board, err := h.progression.Leaderboard(ctx, period, limit, viewerFrom(r))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, board)
}

// GET /api/v1/gamification/hall-of-fame
func (h *GamificationHandler) GetHallOfFame(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	hof, err := h.progression.HallOfFame(ctx)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, hof)
}

// GET /api/v1/gamification/season
func (h *GamificationHandler) GetSeason(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	season, err := h.progression.CurrentSeason(ctx)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, season)
}

// GET /api/v1/gamification/achievements
func (h *GamificationHandler) GetAchievements(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	list, err := h.progression.Achievements(ctx, userID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	unlocked := 0
	for _, a := range list {
		if a.Unlocked {
			unlocked++
		}
	}
	respondWithJSON(w, http.StatusOK, map[string]any{
		"achievements": list,
		"unlocked":     unlocked,
		"total":        len(list),
	})
}

// GET /api/v1/gamification/rewards
func (h *GamificationHandler) GetRewards(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	rewards, err := h.progression.Rewards(ctx, userID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, rewards)
}

// POST /api/v1/gamification/rewards/{id}/claim
func (h *GamificationHandler) ClaimReward(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	claimed, err := h.progression.ClaimReward(ctx, userID, mux.Vars(r)["id"])
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, claimed)
}

// PUT /api/v1/gamification/theme
func (h *GamificationHandler) ActivateTheme(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req user.ActivateThemeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	if err := h.progression.ActivateTheme(ctx, userID, req.Theme); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"active_theme": req.Theme})
}

func viewerFrom(r *http.Request) *uuid.UUID {
	if id, ok := middleware.GetUserID(r.Context()); ok {
		return &id
	}
	return nil
}

package handlers

import (
	"context"
	"net/http"
	"time"

	"tradeQuestAPI/internal/coach"
	"tradeQuestAPI/services"
)

type CoachHandler struct {
	coach   *services.CoachService
	timeout time.Duration
}

// NewCoachHandler bounds each call by timeout, which should cover the LLM
// round trip.
func NewCoachHandler(coach *services.CoachService, timeout time.Duration) *CoachHandler {
	return &CoachHandler{coach: coach, timeout: timeout + requestTimeout}
}

// POST /api/v1/ai/analyze-setup
func (h *CoachHandler) AnalyzeSetup(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req coach.SetupAnalysisRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	resp, err := h.coach.AnalyzeSetup(ctx, userID, &req)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// POST /api/v1/ai/coaching
func (h *CoachHandler) Coaching(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req coach.CoachingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	resp, err := h.coach.Coaching(ctx, userID, &req)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// POST /api/v1/ai/backtest
func (h *CoachHandler) Backtest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req coach.BacktestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	resp, err := h.coach.Backtest(ctx, userID, &req)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

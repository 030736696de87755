package handlers

import (
	"context"
	"net/http"

	"tradeQuestAPI/internal/types/community"
	"tradeQuestAPI/services"
)

type CommunityHandler struct {
	community *services.CommunityService
}

func NewCommunityHandler(community *services.CommunityService) *CommunityHandler {
	return &CommunityHandler{community: community}
}

// GET /api/v1/community/posts?limit=&skip=
func (h *CommunityHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	limit, offset, err := pageParams(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	feed, err := h.community.ListPosts(ctx, userID, limit, offset)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, feed)
}

// POST /api/v1/community/posts
func (h *CommunityHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req community.CreatePostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	post, err := h.community.CreatePost(ctx, userID, &req)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, post)
}

// GET /api/v1/community/posts/{id}
func (h *CommunityHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	postID, err := pathUUID(r, "id")
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	post, err := h.community.GetPost(ctx, userID, postID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, post)
}

// DELETE /api/v1/community/posts/{id}
func (h *CommunityHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	postID, err := pathUUID(r, "id")
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	if err := h.community.DeletePost(ctx, userID, postID); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Post deleted"})
}

// POST /api/v1/community/posts/{id}/like
func (h *CommunityHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	postID, err := pathUUID(r, "id")
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	result, err := h.community.ToggleLike(ctx, userID, postID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// GET /api/v1/community/posts/{id}/comments
func (h *CommunityHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if _, ok := requireUser(w, r); !ok {
		return
	}
	postID, err := pathUUID(r, "id")
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	comments, err := h.community.ListComments(ctx, postID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"comments": comments})
}

// POST /api/v1/community/posts/{id}/comments
func (h *CommunityHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	postID, err := pathUUID(r, "id")
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	var req community.CreateCommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	comment, err := h.community.AddComment(ctx, userID, postID, &req)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, comment)
}

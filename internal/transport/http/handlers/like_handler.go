package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/vedran77/spark/internal/service"
	"github.com/vedran77/spark/internal/transport/http/middleware"
	"go.uber.org/zap"
)

type LikeHandler struct {
	matchService *service.MatchService
	logger       *zap.Logger
}

func NewLikeHandler(matchService *service.MatchService, logger *zap.Logger) *LikeHandler {
	return &LikeHandler{matchService: matchService, logger: logger}
}

type likeInput struct {
	TargetUserID string `json:"targetUserId"`
}

func (h *LikeHandler) Like(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input likeInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	res, err := h.matchService.Like(r.Context(), userID, input.TargetUserID)
	if err != nil {
		writeAppError(w, h.logger, "like", err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (h *LikeHandler) Dislike(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input likeInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if err := h.matchService.Dislike(r.Context(), userID, input.TargetUserID); err != nil {
		writeAppError(w, h.logger, "dislike", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

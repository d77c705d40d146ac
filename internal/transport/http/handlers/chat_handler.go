package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/vedran77/spark/internal/service"
	"github.com/vedran77/spark/internal/transport/http/middleware"
	"go.uber.org/zap"
)

type ChatHandler struct {
	relayService *service.RelayService
	logger       *zap.Logger
}

func NewChatHandler(relayService *service.RelayService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{relayService: relayService, logger: logger}
}

func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	chats, err := h.relayService.ListChats(r.Context(), userID)
	if err != nil {
		writeAppError(w, h.logger, "list chats", err)
		return
	}

	writeJSON(w, http.StatusOK, chats)
}

func (h *ChatHandler) Messages(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	chatID := r.PathValue("id")

	var before *uuid.UUID
	if b := r.URL.Query().Get("before"); b != "" {
		id, err := uuid.Parse(b)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_CURSOR", "Invalid before cursor")
			return
		}
		before = &id
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil {
			limit = parsed
		}
	}

	resp, err := h.relayService.ListMessages(r.Context(), userID, chatID, before, limit)
	if err != nil {
		writeAppError(w, h.logger, "list messages", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *ChatHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	n, err := h.relayService.MarkRead(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeAppError(w, h.logger, "mark read", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"marked": n})
}

package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/vedran77/spark/internal/transport/live"
	"github.com/vedran77/spark/pkg/apperr"
	"go.uber.org/zap"
)

// ConnectionCloser force-closes a connection on the managed gateway.
type ConnectionCloser interface {
	Close(ctx context.Context, connectionID string) error
}

// GatewayHandler receives the $connect, $disconnect and $default routes of
// an API Gateway websocket API through HTTP integrations.
type GatewayHandler struct {
	gateway *live.Gateway
	closer  ConnectionCloser
	logger  *zap.Logger
}

func NewGatewayHandler(gateway *live.Gateway, closer ConnectionCloser, logger *zap.Logger) *GatewayHandler {
	return &GatewayHandler{gateway: gateway, closer: closer, logger: logger}
}

func (h *GatewayHandler) Connect(w http.ResponseWriter, r *http.Request) {
	var input struct {
		ConnectionID string `json:"connectionId"`
		Token        string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	userID, err := h.gateway.Connect(r.Context(), input.ConnectionID, input.Token)
	if err != nil {
		writeAppError(w, h.logger, "gateway connect", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"userId": userID})
}

func (h *GatewayHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	var input struct {
		ConnectionID string `json:"connectionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if err := h.gateway.Disconnect(r.Context(), input.ConnectionID); err != nil {
		writeAppError(w, h.logger, "gateway disconnect", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *GatewayHandler) Message(w http.ResponseWriter, r *http.Request) {
	var input struct {
		ConnectionID string          `json:"connectionId"`
		Body         json.RawMessage `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	// API Gateway may forward the frame as a JSON string.
	body := []byte(input.Body)
	var s string
	if err := json.Unmarshal(input.Body, &s); err == nil {
		body = []byte(s)
	}

	err := h.gateway.Receive(r.Context(), input.ConnectionID, body)
	if apperr.CodeOf(err) == apperr.CodeUnauthenticated && h.closer != nil {
		// no registry entry: the connection was reaped or never registered
		if cerr := h.closer.Close(r.Context(), input.ConnectionID); cerr != nil {
			h.logger.Warn("closing unknown connection failed",
				zap.String("connection_id", input.ConnectionID),
				zap.Error(cerr))
		}
	}
	if err != nil {
		writeAppError(w, h.logger, "gateway message", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vedran77/spark/internal/auth"
	"github.com/vedran77/spark/internal/transport/http/middleware"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Verifier auth.Verifier
	Likes    *LikeHandler
	Chats    *ChatHandler
	// Exactly one live channel is mounted: Gateway for API Gateway
	// integrations, WS for the in-process websocket hub.
	Gateway *GatewayHandler
	// GatewayKey, when set, must arrive in the X-Gateway-Key header of
	// every gateway integration call.
	GatewayKey string
	WS         http.Handler
	Metrics    http.Handler
	Logger     *zap.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	authMW := middleware.Auth(cfg.Verifier)
	mux := http.NewServeMux()

	// Public
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	})
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	mux.Handle("GET /metrics", metrics)

	// Protected - Likes
	mux.Handle("POST /api/v1/likes", authMW(http.HandlerFunc(cfg.Likes.Like)))
	mux.Handle("POST /api/v1/dislikes", authMW(http.HandlerFunc(cfg.Likes.Dislike)))

	// Protected - Chats
	mux.Handle("GET /api/v1/chats", authMW(http.HandlerFunc(cfg.Chats.List)))
	mux.Handle("GET /api/v1/chats/{id}/messages", authMW(http.HandlerFunc(cfg.Chats.Messages)))
	mux.Handle("POST /api/v1/chats/{id}/read", authMW(http.HandlerFunc(cfg.Chats.MarkRead)))

	// Live channel
	if cfg.WS != nil {
		mux.Handle("GET /ws", cfg.WS)
	}
	if cfg.Gateway != nil {
		keyMW := middleware.RequireKey("X-Gateway-Key", cfg.GatewayKey)
		mux.Handle("POST /gateway/connect", keyMW(http.HandlerFunc(cfg.Gateway.Connect)))
		mux.Handle("POST /gateway/disconnect", keyMW(http.HandlerFunc(cfg.Gateway.Disconnect)))
		mux.Handle("POST /gateway/message", keyMW(http.HandlerFunc(cfg.Gateway.Message)))
	}

	return middleware.Logging(cfg.Logger)(middleware.CORS(mux))
}

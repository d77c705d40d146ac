package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/spark/internal/auth"
	"github.com/vedran77/spark/internal/domain"
	"github.com/vedran77/spark/internal/notify"
	"github.com/vedran77/spark/internal/presence"
	"github.com/vedran77/spark/internal/push"
	"github.com/vedran77/spark/internal/repository/memory"
	"github.com/vedran77/spark/internal/retry"
	"github.com/vedran77/spark/internal/service"
	"github.com/vedran77/spark/internal/transport/live"
	"go.uber.org/zap"
)

const secret = "secret"

type recordingSender struct {
	mu   sync.Mutex
	sent map[string][][]byte
}

func (s *recordingSender) Send(ctx context.Context, connectionID string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sent == nil {
		s.sent = make(map[string][][]byte)
	}
	s.sent[connectionID] = append(s.sent[connectionID], data)
	return nil
}

func (s *recordingSender) count(connectionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent[connectionID])
}

type fakeCloser struct {
	closed []string
}

func (c *fakeCloser) Close(ctx context.Context, connectionID string) error {
	c.closed = append(c.closed, connectionID)
	return nil
}

type testEnv struct {
	handler http.Handler
	relay   *service.RelayService
	reg     *presence.StoreRegistry
	sender  *recordingSender
	closer  *fakeCloser
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	store := memory.NewStore()
	store.SeedUser(domain.User{ID: "alice", DisplayName: "Alice"})
	store.SeedUser(domain.User{ID: "bob", DisplayName: "Bob"})

	reg := presence.NewStoreRegistry(store.Repos().Connections)
	sender := &recordingSender{}
	dispatcher := notify.NewDispatcher(reg, sender, logger, nil)
	fallback := notify.NewFallback(store.Repos().Users, push.Noop{}, logger, nil)
	cfg := retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond}

	relay := service.NewRelayService(store, dispatcher, fallback, cfg, logger, nil)
	match := service.NewMatchService(store, dispatcher, fallback, cfg, logger, nil)
	verifier := auth.NewJWTVerifier(secret)
	gateway := live.NewGateway(verifier, reg, relay, dispatcher, logger)
	closer := &fakeCloser{}

	h := NewRouter(RouterConfig{
		Verifier:   verifier,
		Likes:      NewLikeHandler(match, logger),
		Chats:      NewChatHandler(relay, logger),
		Gateway:    NewGatewayHandler(gateway, closer, logger),
		GatewayKey: "gw-key",
		Metrics:    promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{}),
		Logger:     logger,
	})
	return &testEnv{handler: h, relay: relay, reg: reg, sender: sender, closer: closer}
}

func bearer(t *testing.T, sub string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, user string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+bearer(t, user))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLikeRequiresAuth(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/api/v1/likes", "", map[string]string{"targetUserId": "bob"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLikeAndMatch(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/v1/likes", "alice", map[string]string{"targetUserId": "bob"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[service.LikeResult](t, rec).IsMatch)

	rec = e.do(t, http.MethodPost, "/api/v1/likes", "bob", map[string]string{"targetUserId": "alice"})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[service.LikeResult](t, rec)
	assert.True(t, res.IsMatch)
	assert.Equal(t, "alice_bob", res.ChatID)

	rec = e.do(t, http.MethodGet, "/api/v1/chats", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	chats := decode[[]domain.Chat](t, rec)
	require.Len(t, chats, 1)
	assert.True(t, chats[0].IsMatchChat)
}

func TestLikeSelf(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/api/v1/likes", "alice", map[string]string{"targetUserId": "alice"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_ARGUMENT", decode[errorBody](t, rec).Error.Code)
}

func TestDislike(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/api/v1/dislikes", "alice", map[string]string{"targetUserId": "bob"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]bool{"success": true}, decode[map[string]bool](t, rec))
}

func TestChatMessages(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	for _, text := range []string{"one", "two", "three"} {
		_, err := e.relay.Send(ctx, service.SendMessageInput{SenderID: "alice", RecipientID: "bob", Text: text})
		require.NoError(t, err)
	}

	rec := e.do(t, http.MethodGet, "/api/v1/chats/alice_bob/messages?limit=2", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[service.MessageListResponse](t, rec)
	assert.True(t, page.HasMore)
	assert.Len(t, page.Messages, 2)

	rec = e.do(t, http.MethodGet, "/api/v1/chats/alice_bob/messages", "carol", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/v1/chats/nope/messages", "bob", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/v1/chats/alice_bob/messages?before=xyz", "bob", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/v1/chats/alice_bob/read", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]int64{"marked": 3}, decode[map[string]int64](t, rec))
}

func TestGatewayFlow(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	key := []string{"X-Gateway-Key", "gw-key"}

	rec := e.do(t, http.MethodPost, "/gateway/connect", "", map[string]string{"connectionId": "abc=", "token": bearer(t, "alice")})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "integration key required")

	rec = e.do(t, http.MethodPost, "/gateway/connect", "", map[string]string{"connectionId": "abc=", "token": "bad"}, key...)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodPost, "/gateway/connect", "", map[string]string{"connectionId": "abc=", "token": bearer(t, "alice")}, key...)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", decode[map[string]string](t, rec)["userId"])

	rec = e.do(t, http.MethodPost, "/gateway/message", "", map[string]any{
		"connectionId": "abc=",
		"body":         `{"type":"sendMessage","payload":{"recipientId":"bob","text":"hi"}}`,
	}, key...)
	require.Equal(t, http.StatusOK, rec.Code)
	// echo of the new message to the sender's own connection
	assert.Equal(t, 1, e.sender.count("abc="))

	chats, err := e.relay.ListChats(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, chats, 1)

	rec = e.do(t, http.MethodPost, "/gateway/disconnect", "", map[string]string{"connectionId": "abc="}, key...)
	require.Equal(t, http.StatusOK, rec.Code)

	ids, err := e.reg.ConnectionsFor(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestGatewayMessageFromUnknownConnection(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/gateway/message", "", map[string]any{
		"connectionId": "ghost=",
		"body":         map[string]string{"type": "ping"},
	}, "X-Gateway-Key", "gw-key")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, []string{"ghost="}, e.closer.closed)
}

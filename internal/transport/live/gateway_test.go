package live

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/spark/internal/auth"
	"github.com/vedran77/spark/internal/domain"
	"github.com/vedran77/spark/internal/notify"
	"github.com/vedran77/spark/internal/presence"
	"github.com/vedran77/spark/internal/repository/memory"
	"github.com/vedran77/spark/internal/service"
	"github.com/vedran77/spark/pkg/apperr"
	"go.uber.org/zap"
)

type fakeRelay struct {
	sent    []service.SendMessageInput
	read    []string
	sendErr error
}

func (f *fakeRelay) Send(ctx context.Context, in service.SendMessageInput) (*domain.Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, in)
	return &domain.Message{ID: uuid.New(), SenderID: in.SenderID, Text: in.Text}, nil
}

func (f *fakeRelay) MarkRead(ctx context.Context, userID, chatID string) (int64, error) {
	f.read = append(f.read, userID+":"+chatID)
	return 1, nil
}

type replyRecorder struct {
	mu      sync.Mutex
	replies []notify.Payload
}

func (r *replyRecorder) SendTo(ctx context.Context, userID, connectionID string, p notify.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, p)
	return nil
}

func token(t *testing.T, sub string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	return s
}

func newGateway(t *testing.T) (*Gateway, *presence.StoreRegistry, *fakeRelay, *replyRecorder) {
	t.Helper()
	reg := presence.NewStoreRegistry(memory.NewStore().Repos().Connections)
	relay := &fakeRelay{}
	replies := &replyRecorder{}
	return NewGateway(auth.NewJWTVerifier("secret"), reg, relay, replies, zap.NewNop()), reg, relay, replies
}

func TestConnectAndDisconnect(t *testing.T) {
	ctx := context.Background()
	g, reg, _, _ := newGateway(t)

	userID, err := g.Connect(ctx, "c1", token(t, "alice"))
	require.NoError(t, err)
	assert.Equal(t, "alice", userID)

	ids, err := reg.ConnectionsFor(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, ids)

	require.NoError(t, g.Disconnect(ctx, "c1"))
	require.NoError(t, g.Disconnect(ctx, "c1"))

	ids, err = reg.ConnectionsFor(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestConnectRejectsBadToken(t *testing.T) {
	ctx := context.Background()
	g, reg, _, _ := newGateway(t)

	_, err := g.Connect(ctx, "c1", "garbage")
	assert.Equal(t, apperr.CodeUnauthenticated, apperr.CodeOf(err))

	_, err = reg.Lookup(ctx, "c1")
	assert.ErrorIs(t, err, presence.ErrConnectionNotFound)
}

func TestReceiveRoutesEvents(t *testing.T) {
	ctx := context.Background()
	g, _, relay, replies := newGateway(t)
	_, err := g.Connect(ctx, "c1", token(t, "alice"))
	require.NoError(t, err)

	require.NoError(t, g.Receive(ctx, "c1", []byte(`{"type":"sendMessage","payload":{"recipientId":"bob","text":"hi"}}`)))
	require.Len(t, relay.sent, 1)
	assert.Equal(t, service.SendMessageInput{SenderID: "alice", RecipientID: "bob", Text: "hi"}, relay.sent[0])

	require.NoError(t, g.Receive(ctx, "c1", []byte(`{"type":"markRead","payload":{"chatId":"alice_bob"}}`)))
	assert.Equal(t, []string{"alice:alice_bob"}, relay.read)

	require.NoError(t, g.Receive(ctx, "c1", []byte(`{"type":"ping"}`)))
	require.Len(t, replies.replies, 1)
	assert.Equal(t, notify.Pong{}, replies.replies[0])
}

func TestReceiveUnknownConnection(t *testing.T) {
	g, _, _, _ := newGateway(t)

	err := g.Receive(context.Background(), "nope", []byte(`{"type":"ping"}`))
	assert.Equal(t, apperr.CodeUnauthenticated, apperr.CodeOf(err))
}

func TestHandleRepliesWithErrors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		raw  string
		code string
	}{
		{name: "malformed", raw: `{`, code: ErrCodeInvalidPayload},
		{name: "unknown type", raw: `{"type":"dance"}`, code: ErrCodeUnknownEvent},
		{name: "bad send payload", raw: `{"type":"sendMessage","payload":"x"}`, code: ErrCodeInvalidPayload},
		{name: "markRead without chat", raw: `{"type":"markRead","payload":{}}`, code: ErrCodeInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _, _, replies := newGateway(t)
			g.Handle(ctx, "alice", "c1", []byte(tt.raw))

			require.Len(t, replies.replies, 1)
			e, ok := replies.replies[0].(notify.Error)
			require.True(t, ok)
			assert.Equal(t, tt.code, e.Code)
		})
	}
}

func TestHandleRelayError(t *testing.T) {
	g, _, relay, replies := newGateway(t)
	relay.sendErr = apperr.InvalidArg("text: Message text is required")

	g.Handle(context.Background(), "alice", "c1", []byte(`{"type":"sendMessage","payload":{"recipientId":"bob","text":""}}`))

	require.Len(t, replies.replies, 1)
	assert.Equal(t, notify.Error{Code: "INVALID_ARGUMENT", Message: "text: Message text is required"}, replies.replies[0])
}

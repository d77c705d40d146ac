package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/spark/internal/domain"
	"github.com/vedran77/spark/internal/mocks"
	"github.com/vedran77/spark/internal/notify"
	"github.com/vedran77/spark/internal/presence"
	"github.com/vedran77/spark/internal/repository/memory"
	"github.com/vedran77/spark/internal/retry"
	"go.uber.org/zap"
)

type fixture struct {
	store  *memory.Store
	reg    *presence.StoreRegistry
	sender *mocks.MockSender
	push   *mocks.MockPushClient
	relay  *RelayService
	match  *MatchService

	mu   sync.Mutex
	sent map[string][]string // connection id → payload types received
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	logger := zap.NewNop()

	store := memory.NewStore()
	store.SeedUser(domain.User{ID: "alice", DisplayName: "Alice", PushHandle: "U-alice"})
	store.SeedUser(domain.User{ID: "bob", DisplayName: "Bob", PushHandle: "U-bob"})

	reg := presence.NewStoreRegistry(store.Repos().Connections)
	sender := mocks.NewMockSender(ctrl)
	pushClient := mocks.NewMockPushClient(ctrl)

	dispatcher := notify.NewDispatcher(reg, sender, logger, nil)
	fallback := notify.NewFallback(store.Repos().Users, pushClient, logger, nil)
	cfg := retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond}

	f := &fixture{
		store:  store,
		reg:    reg,
		sender: sender,
		push:   pushClient,
		relay:  NewRelayService(store, dispatcher, fallback, cfg, logger, nil),
		match:  NewMatchService(store, dispatcher, fallback, cfg, logger, nil),
		sent:   make(map[string][]string),
	}

	// strictly increasing clock so message order is deterministic
	var (
		clockMu sync.Mutex
		clock   = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	)
	tick := func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}
	f.relay.now = tick
	f.match.now = tick
	return f
}

// online registers connectionID for userID and records every payload sent
// to it.
func (f *fixture) online(t *testing.T, userID, connectionID string) {
	t.Helper()
	require.NoError(t, f.reg.Register(context.Background(), connectionID, userID))
	f.sender.EXPECT().Send(gomock.Any(), connectionID, gomock.Any()).DoAndReturn(
		func(ctx context.Context, id string, data []byte) error {
			var env struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(data, &env); err != nil {
				return err
			}
			f.mu.Lock()
			defer f.mu.Unlock()
			f.sent[id] = append(f.sent[id], env.Type)
			return nil
		}).AnyTimes()
}

func (f *fixture) received(connectionID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent[connectionID]...)
}

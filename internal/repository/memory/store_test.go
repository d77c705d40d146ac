package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/spark/internal/domain"
	"github.com/vedran77/spark/internal/repository"
)

func TestWithTxRollsBackOnError(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(ctx context.Context, r repository.Repos) error {
		_, err := r.Chats.Upsert(ctx, domain.NewChat("a", "b", false, time.Now()))
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	chat, err := store.Repos().Chats.GetByID(ctx, "a_b")
	require.NoError(t, err)
	assert.Nil(t, chat)
}

func TestInjectTxErrors(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	store.InjectTxErrors(repository.ErrSerialization)

	calls := 0
	fn := func(ctx context.Context, r repository.Repos) error {
		calls++
		return nil
	}

	assert.ErrorIs(t, store.WithTx(ctx, fn), repository.ErrSerialization)
	assert.NoError(t, store.WithTx(ctx, fn))
	assert.Equal(t, 1, calls)
}

func TestChatUpsertPromotesToMatch(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	chats := store.Repos().Chats

	created, err := chats.Upsert(ctx, domain.NewChat("a", "b", false, time.Now()))
	require.NoError(t, err)
	assert.True(t, created)

	created, err = chats.Upsert(ctx, domain.NewChat("b", "a", true, time.Now()))
	require.NoError(t, err)
	assert.False(t, created)

	chat, err := chats.GetByID(ctx, "a_b")
	require.NoError(t, err)
	assert.True(t, chat.IsMatchChat)

	// never demoted
	_, err = chats.Upsert(ctx, domain.NewChat("a", "b", false, time.Now()))
	require.NoError(t, err)
	chat, _ = chats.GetByID(ctx, "a_b")
	assert.True(t, chat.IsMatchChat)
}

func TestListByChatPaginates(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	msgs := store.Repos().Messages
	base := time.Now()

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		m := &domain.Message{ID: uuid.New(), ChatID: "a_b", SenderID: "a", Timestamp: base.Add(time.Duration(i) * time.Second)}
		require.NoError(t, msgs.Create(ctx, m))
		ids = append(ids, m.ID)
	}

	page, err := msgs.ListByChat(ctx, "a_b", nil, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[3], page[0].ID)
	assert.Equal(t, ids[4], page[1].ID)

	page, err = msgs.ListByChat(ctx, "a_b", &ids[3], 10)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, ids[0], page[0].ID)
}

func TestListByChatCursorKeepsTimestampTies(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	msgs := store.Repos().Messages
	at := time.Now()

	for i := 0; i < 4; i++ {
		require.NoError(t, msgs.Create(ctx, &domain.Message{ID: uuid.New(), ChatID: "a_b", SenderID: "a", Timestamp: at}))
	}

	var seen []uuid.UUID
	var before *uuid.UUID
	for {
		page, err := msgs.ListByChat(ctx, "a_b", before, 1)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		seen = append(seen, page[0].ID)
		before = &page[0].ID
	}
	assert.Len(t, seen, 4)
}

func TestDeleteOlderThan(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	conns := store.Repos().Connections

	require.NoError(t, conns.Upsert(ctx, &domain.Connection{ID: "old", UserID: "a", CreatedAt: time.Now().Add(-3 * time.Hour)}))
	require.NoError(t, conns.Upsert(ctx, &domain.Connection{ID: "new", UserID: "a", CreatedAt: time.Now()}))

	n, err := conns.DeleteOlderThan(ctx, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	left, err := conns.ListByUser(ctx, "a")
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "new", left[0].ID)
}

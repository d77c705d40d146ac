package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/spark/internal/domain"
)

// ErrSerialization is returned (wrapped) when the store aborted a
// transaction because of a concurrent conflicting transaction. Callers may
// retry the whole transaction.
var ErrSerialization = errors.New("transaction serialization conflict")

type ConnectionRepository interface {
	Upsert(ctx context.Context, conn *domain.Connection) error
	Delete(ctx context.Context, connectionID string) error
	GetByID(ctx context.Context, connectionID string) (*domain.Connection, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Connection, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

type ChatRepository interface {
	// Upsert inserts the chat if its id is new. When the chat exists only
	// is_match_chat may change, and only from false to true. created reports
	// whether a row was inserted.
	Upsert(ctx context.Context, chat *domain.Chat) (created bool, err error)
	GetByID(ctx context.Context, id string) (*domain.Chat, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Chat, error)
	UpdateSummary(ctx context.Context, chatID, lastMessage string, at time.Time, recipientID string) error
	ResetUnread(ctx context.Context, chatID, userID string) error
}

type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	ListByChat(ctx context.Context, chatID string, before *uuid.UUID, limit int) ([]domain.Message, error)
	// MarkRead flags every unread message in the chat not sent by readerID.
	MarkRead(ctx context.Context, chatID, readerID string) (int64, error)
}

type LikeRepository interface {
	Upsert(ctx context.Context, like *domain.Like) error
	Exists(ctx context.Context, fromUserID, toUserID string) (bool, error)
	Delete(ctx context.Context, fromUserID, toUserID string) error
}

// Repos groups the repositories bound to one database handle: either the
// pool or an open transaction.
type Repos struct {
	Connections ConnectionRepository
	Users       UserRepository
	Chats       ChatRepository
	Messages    MessageRepository
	Likes       LikeRepository
}

// Store is the transactional store adapter.
type Store interface {
	// Repos returns repositories that run each statement on its own.
	Repos() Repos
	// WithTx runs fn inside one serializable transaction. The transaction
	// commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
	Close()
}

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/vedran77/spark/internal/domain"
)

type ChatRepo struct {
	db DBTX
}

func NewChatRepo(db DBTX) *ChatRepo {
	return &ChatRepo{db: db}
}

func (r *ChatRepo) Upsert(ctx context.Context, chat *domain.Chat) (bool, error) {
	query := `
		INSERT INTO chats (id, participants, last_message, last_message_time, unread_count, created_at, is_match_chat)
		VALUES ($1, $2, '', NULL, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
			SET is_match_chat = chats.is_match_chat OR EXCLUDED.is_match_chat
		RETURNING (xmax = 0) AS created`
	var created bool
	err := r.db.QueryRow(ctx, query,
		chat.ID, chat.Participants, chat.UnreadCount, chat.CreatedAt, chat.IsMatchChat,
	).Scan(&created)
	return created, err
}

func (r *ChatRepo) GetByID(ctx context.Context, id string) (*domain.Chat, error) {
	query := `
		SELECT id, participants, last_message, last_message_time, unread_count, created_at, is_match_chat
		FROM chats
		WHERE id = $1`
	var chat domain.Chat
	err := r.db.QueryRow(ctx, query, id).Scan(
		&chat.ID, &chat.Participants, &chat.LastMessage, &chat.LastMessageTime,
		&chat.UnreadCount, &chat.CreatedAt, &chat.IsMatchChat,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

func (r *ChatRepo) ListByUser(ctx context.Context, userID string) ([]domain.Chat, error) {
	query := `
		SELECT id, participants, last_message, last_message_time, unread_count, created_at, is_match_chat
		FROM chats
		WHERE $1 = ANY(participants)
		ORDER BY last_message_time DESC NULLS LAST, created_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []domain.Chat
	for rows.Next() {
		var chat domain.Chat
		if err := rows.Scan(
			&chat.ID, &chat.Participants, &chat.LastMessage, &chat.LastMessageTime,
			&chat.UnreadCount, &chat.CreatedAt, &chat.IsMatchChat,
		); err != nil {
			return nil, err
		}
		chats = append(chats, chat)
	}
	return chats, rows.Err()
}

func (r *ChatRepo) UpdateSummary(ctx context.Context, chatID, lastMessage string, at time.Time, recipientID string) error {
	query := `
		UPDATE chats
		SET last_message = $2,
			last_message_time = $3,
			unread_count = jsonb_set(
				unread_count, ARRAY[$4::text],
				to_jsonb(COALESCE((unread_count->>$4::text)::int, 0) + 1))
		WHERE id = $1`
	_, err := r.db.Exec(ctx, query, chatID, lastMessage, at, recipientID)
	return err
}

func (r *ChatRepo) ResetUnread(ctx context.Context, chatID, userID string) error {
	query := `
		UPDATE chats
		SET unread_count = jsonb_set(unread_count, ARRAY[$2::text], '0'::jsonb)
		WHERE id = $1`
	_, err := r.db.Exec(ctx, query, chatID, userID)
	return err
}

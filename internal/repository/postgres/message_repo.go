package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vedran77/spark/internal/domain"
)

type MessageRepo struct {
	db DBTX
}

func NewMessageRepo(db DBTX) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, chat_id, sender_id, text, sent_at, read, type, reply_to_id, is_edited, edited_at`

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	query := `
		INSERT INTO messages (id, chat_id, sender_id, text, sent_at, read, type, reply_to_id, is_edited, edited_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.Exec(ctx, query,
		msg.ID, msg.ChatID, msg.SenderID, msg.Text, msg.Timestamp,
		msg.Read, string(msg.Type), msg.ReplyToID, msg.IsEdited, msg.EditedAt,
	)
	return err
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`
	msg, err := scanMessage(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return msg, err
}

func (r *MessageRepo) ListByChat(ctx context.Context, chatID string, before *uuid.UUID, limit int) ([]domain.Message, error) {
	var query string
	var args []any

	if before != nil {
		query = fmt.Sprintf(`
			SELECT %s
			FROM messages
			WHERE chat_id = $1
				AND (sent_at, id) < (SELECT sent_at, id FROM messages WHERE id = $2)
			ORDER BY sent_at DESC, id DESC
			LIMIT %d`, messageColumns, limit)
		args = []any{chatID, *before}
	} else {
		query = fmt.Sprintf(`
			SELECT %s
			FROM messages
			WHERE chat_id = $1
			ORDER BY sent_at DESC, id DESC
			LIMIT %d`, messageColumns, limit)
		args = []any{chatID}
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}

	// Reverse to chronological order (query returns DESC)
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, rows.Err()
}

func (r *MessageRepo) MarkRead(ctx context.Context, chatID, readerID string) (int64, error) {
	query := `
		UPDATE messages SET read = TRUE
		WHERE chat_id = $1 AND sender_id <> $2 AND read = FALSE`
	tag, err := r.db.Exec(ctx, query, chatID, readerID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var msg domain.Message
	var msgType string
	if err := row.Scan(
		&msg.ID, &msg.ChatID, &msg.SenderID, &msg.Text, &msg.Timestamp,
		&msg.Read, &msgType, &msg.ReplyToID, &msg.IsEdited, &msg.EditedAt,
	); err != nil {
		return nil, err
	}
	msg.Type = domain.MessageType(msgType)
	return &msg, nil
}

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/vedran77/spark/internal/domain"
)

type ConnectionRepo struct {
	db DBTX
}

func NewConnectionRepo(db DBTX) *ConnectionRepo {
	return &ConnectionRepo{db: db}
}

func (r *ConnectionRepo) Upsert(ctx context.Context, conn *domain.Connection) error {
	query := `
		INSERT INTO connections (connection_id, user_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (connection_id) DO UPDATE
			SET user_id = EXCLUDED.user_id, created_at = EXCLUDED.created_at`
	_, err := r.db.Exec(ctx, query, conn.ID, conn.UserID, conn.CreatedAt)
	return err
}

func (r *ConnectionRepo) Delete(ctx context.Context, connectionID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM connections WHERE connection_id = $1`, connectionID)
	return err
}

func (r *ConnectionRepo) GetByID(ctx context.Context, connectionID string) (*domain.Connection, error) {
	query := `
		SELECT connection_id, user_id, created_at
		FROM connections
		WHERE connection_id = $1`
	var conn domain.Connection
	err := r.db.QueryRow(ctx, query, connectionID).Scan(&conn.ID, &conn.UserID, &conn.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

func (r *ConnectionRepo) ListByUser(ctx context.Context, userID string) ([]domain.Connection, error) {
	query := `
		SELECT connection_id, user_id, created_at
		FROM connections
		WHERE user_id = $1
		ORDER BY created_at, connection_id`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conns []domain.Connection
	for rows.Next() {
		var conn domain.Connection
		if err := rows.Scan(&conn.ID, &conn.UserID, &conn.CreatedAt); err != nil {
			return nil, err
		}
		conns = append(conns, conn)
	}
	return conns, rows.Err()
}

func (r *ConnectionRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM connections WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

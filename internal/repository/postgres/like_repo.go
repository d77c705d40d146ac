package postgres

import (
	"context"

	"github.com/vedran77/spark/internal/domain"
)

type LikeRepo struct {
	db DBTX
}

func NewLikeRepo(db DBTX) *LikeRepo {
	return &LikeRepo{db: db}
}

func (r *LikeRepo) Upsert(ctx context.Context, like *domain.Like) error {
	query := `
		INSERT INTO likes (from_user_id, to_user_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (from_user_id, to_user_id) DO UPDATE
			SET created_at = EXCLUDED.created_at`
	_, err := r.db.Exec(ctx, query, like.FromUserID, like.ToUserID, like.CreatedAt)
	return err
}

func (r *LikeRepo) Exists(ctx context.Context, fromUserID, toUserID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM likes WHERE from_user_id = $1 AND to_user_id = $2)`,
		fromUserID, toUserID,
	).Scan(&exists)
	return exists, err
}

func (r *LikeRepo) Delete(ctx context.Context, fromUserID, toUserID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM likes WHERE from_user_id = $1 AND to_user_id = $2`,
		fromUserID, toUserID,
	)
	return err
}

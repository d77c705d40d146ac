package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vedran77/spark/internal/repository"
)

// DBTX is the statement surface shared by the pool and an open transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is satisfied by *pgxpool.Pool.
type DB interface {
	DBTX
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Close()
}

// Postgres SQLSTATEs that mean "retry the transaction".
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

type Store struct {
	db        DB
	txTimeout time.Duration
}

func NewStore(db DB, txTimeout time.Duration) *Store {
	return &Store{db: db, txTimeout: txTimeout}
}

func newRepos(q DBTX) repository.Repos {
	return repository.Repos{
		Connections: NewConnectionRepo(q),
		Users:       NewUserRepo(q),
		Chats:       NewChatRepo(q),
		Messages:    NewMessageRepo(q),
		Likes:       NewLikeRepo(q),
	}
}

func (s *Store) Repos() repository.Repos {
	return newRepos(s.db)
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, r repository.Repos) error) error {
	if s.txTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.txTimeout)
		defer cancel()
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return classify(fmt.Errorf("beginning transaction: %w", err))
	}

	if err := fn(ctx, newRepos(tx)); err != nil {
		_ = tx.Rollback(ctx)
		return classify(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return classify(fmt.Errorf("committing transaction: %w", err))
	}
	return nil
}

func (s *Store) Close() {
	s.db.Close()
}

// classify marks serialization and deadlock aborts with
// repository.ErrSerialization.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateSerializationFailure, sqlStateDeadlockDetected:
			return fmt.Errorf("%w: %w", repository.ErrSerialization, err)
		}
	}
	return err
}

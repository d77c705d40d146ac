// Package presence tracks which live connections belong to which user.
// Presence is advisory: rows may outlive their sockets until a delivery
// fails or the reaper sweeps them.
package presence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vedran77/spark/internal/domain"
	"github.com/vedran77/spark/internal/repository"
)

var ErrConnectionNotFound = errors.New("connection not found")

// Registry maps connection ids to user ids.
type Registry interface {
	Register(ctx context.Context, connectionID, userID string) error
	Unregister(ctx context.Context, connectionID string) error
	ConnectionsFor(ctx context.Context, userID string) ([]string, error)
	Lookup(ctx context.Context, connectionID string) (string, error)
}

// StoreRegistry keeps connections in the transactional store.
type StoreRegistry struct {
	conns repository.ConnectionRepository
	now   func() time.Time
}

func NewStoreRegistry(conns repository.ConnectionRepository) *StoreRegistry {
	return &StoreRegistry{conns: conns, now: time.Now}
}

func (r *StoreRegistry) Register(ctx context.Context, connectionID, userID string) error {
	err := r.conns.Upsert(ctx, &domain.Connection{
		ID:        connectionID,
		UserID:    userID,
		CreatedAt: r.now(),
	})
	if err != nil {
		return fmt.Errorf("registering connection: %w", err)
	}
	return nil
}

func (r *StoreRegistry) Unregister(ctx context.Context, connectionID string) error {
	if err := r.conns.Delete(ctx, connectionID); err != nil {
		return fmt.Errorf("unregistering connection: %w", err)
	}
	return nil
}

func (r *StoreRegistry) ConnectionsFor(ctx context.Context, userID string) ([]string, error) {
	conns, err := r.conns.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing connections: %w", err)
	}
	ids := make([]string, 0, len(conns))
	for _, c := range conns {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

func (r *StoreRegistry) Lookup(ctx context.Context, connectionID string) (string, error) {
	conn, err := r.conns.GetByID(ctx, connectionID)
	if err != nil {
		return "", fmt.Errorf("looking up connection: %w", err)
	}
	if conn == nil {
		return "", ErrConnectionNotFound
	}
	return conn.UserID, nil
}

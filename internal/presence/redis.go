package presence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRegistry keeps connections in Redis. Keys used:
//   - <prefix>:conn:<connectionID> -> userID, expires after maxAge
//   - <prefix>:user:<userID>:conns -> sorted set of connection ids scored
//     by registration time (unix nanos)
//
// A connection whose conn key has expired is dropped from the user's set
// the next time ConnectionsFor reads it.
type RedisRegistry struct {
	client *redis.Client
	prefix string
	maxAge time.Duration
	now    func() time.Time
}

func NewRedisRegistry(client *redis.Client, prefix string, maxAge time.Duration) *RedisRegistry {
	return &RedisRegistry{client: client, prefix: prefix, maxAge: maxAge, now: time.Now}
}

func (r *RedisRegistry) connKey(connectionID string) string {
	return fmt.Sprintf("%s:conn:%s", r.prefix, connectionID)
}

func (r *RedisRegistry) userKey(userID string) string {
	return fmt.Sprintf("%s:user:%s:conns", r.prefix, userID)
}

func (r *RedisRegistry) Register(ctx context.Context, connectionID, userID string) error {
	// An id re-registered for another user must leave the old user's set.
	prev, err := r.client.Get(ctx, r.connKey(connectionID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("registering connection: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if prev != "" && prev != userID {
			pipe.ZRem(ctx, r.userKey(prev), connectionID)
		}
		pipe.Set(ctx, r.connKey(connectionID), userID, r.maxAge)
		pipe.ZAdd(ctx, r.userKey(userID), redis.Z{
			Score:  float64(r.now().UnixNano()),
			Member: connectionID,
		})
		pipe.Expire(ctx, r.userKey(userID), r.maxAge)
		return nil
	})
	if err != nil {
		return fmt.Errorf("registering connection: %w", err)
	}
	return nil
}

func (r *RedisRegistry) Unregister(ctx context.Context, connectionID string) error {
	userID, err := r.client.Get(ctx, r.connKey(connectionID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("unregistering connection: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.connKey(connectionID))
		pipe.ZRem(ctx, r.userKey(userID), connectionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("unregistering connection: %w", err)
	}
	return nil
}

func (r *RedisRegistry) ConnectionsFor(ctx context.Context, userID string) ([]string, error) {
	members, err := r.client.ZRange(ctx, r.userKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing connections: %w", err)
	}
	if len(members) == 0 {
		return []string{}, nil
	}

	keys := make([]string, len(members))
	for i, m := range members {
		keys[i] = r.connKey(m)
	}
	owners, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("listing connections: %w", err)
	}

	live := make([]string, 0, len(members))
	var stale []any
	for i, owner := range owners {
		if s, ok := owner.(string); ok && s == userID {
			live = append(live, members[i])
			continue
		}
		stale = append(stale, members[i])
	}
	if len(stale) > 0 {
		if err := r.client.ZRem(ctx, r.userKey(userID), stale...).Err(); err != nil {
			return nil, fmt.Errorf("dropping expired connections: %w", err)
		}
	}
	return live, nil
}

func (r *RedisRegistry) Lookup(ctx context.Context, connectionID string) (string, error) {
	userID, err := r.client.Get(ctx, r.connKey(connectionID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrConnectionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("looking up connection: %w", err)
	}
	return userID, nil
}

// Package idempotency prevents double processing of messages delivered
// more than once. Processed message ids are recorded in redis with a TTL
// so the guard bounds its own storage.
package idempotency

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/allisson/orders/internal/errors"
)

const keyPrefix = "orders:processed-message:"

// Guard answers whether a message was already processed and records the
// ones that were.
type Guard interface {
	// CheckAndMark atomically claims a message id. It returns true when
	// the caller is the first to process the message.
	CheckAndMark(ctx context.Context, messageID string) (bool, error)
	// IsDuplicate reports whether the message id was already processed.
	IsDuplicate(ctx context.Context, messageID string) (bool, error)
	// MarkProcessed records a message id without claiming semantics.
	MarkProcessed(ctx context.Context, messageID string) error
	// Remove forgets a message id so a failed handler can be retried.
	Remove(ctx context.Context, messageID string) error
}

// MessageKey derives a stable message id from the queue and the broker
// message id, for producers that do not set one end to end.
func MessageKey(queue, messageID string) string {
	return fmt.Sprintf("%s:%s", queue, messageID)
}

// RedisGuard implements Guard on a redis instance shared by all consumer
// replicas.
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisGuard creates a redis-backed guard. Entries expire after ttl.
func NewRedisGuard(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisGuard {
	return &RedisGuard{client: client, ttl: ttl, logger: logger}
}

// CheckAndMark claims the message id with SETNX so exactly one replica
// wins a concurrent delivery of the same message.
func (g *RedisGuard) CheckAndMark(ctx context.Context, messageID string) (bool, error) {
	claimed, err := g.client.SetNX(ctx, keyPrefix+messageID, time.Now().UTC().Format(time.RFC3339Nano), g.ttl).Result()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to claim message id")
	}

	if !claimed && g.logger != nil {
		g.logger.InfoContext(ctx, "duplicate message detected",
			slog.String("message_id", messageID),
		)
	}

	return claimed, nil
}

// IsDuplicate reports whether the message id is already recorded.
func (g *RedisGuard) IsDuplicate(ctx context.Context, messageID string) (bool, error) {
	count, err := g.client.Exists(ctx, keyPrefix+messageID).Result()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to check message id")
	}
	return count > 0, nil
}

// MarkProcessed records the message id unconditionally.
func (g *RedisGuard) MarkProcessed(ctx context.Context, messageID string) error {
	err := g.client.Set(ctx, keyPrefix+messageID, time.Now().UTC().Format(time.RFC3339Nano), g.ttl).Err()
	if err != nil {
		return apperrors.Wrap(err, "failed to mark message processed")
	}
	return nil
}

// Remove forgets the message id. Consumers call this when the handler
// fails after the claim so a redelivery gets processed.
func (g *RedisGuard) Remove(ctx context.Context, messageID string) error {
	if err := g.client.Del(ctx, keyPrefix+messageID).Err(); err != nil {
		return apperrors.Wrap(err, "failed to remove message id")
	}
	return nil
}

package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
)

const redisPollTimeout = 5 * time.Second

// RedisQueue stores events in a Redis list. Producers LPUSH, consumers BRPOP, so events
// are delivered oldest first.
type RedisQueue struct {
	client *redis.Client
	key    string
	logger *zap.Logger
}

// NewRedisQueue creates a queue on the given list key.
func NewRedisQueue(client *redis.Client, key string, logger *zap.Logger) *RedisQueue {
	return &RedisQueue{client: client, key: key, logger: logger}
}

func (q *RedisQueue) EnqueueTicketEventNotifications(ctx context.Context, comment domain.TicketComment, isCreateOrGiveUp bool, recipients []string) error {
	body, err := encode(NewEvent(comment, isCreateOrGiveUp, recipients))
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, q.key, body).Err(); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

// Consume pops events until ctx is cancelled. Handler failures are logged and the event
// is dropped.
func (q *RedisQueue) Consume(ctx context.Context, handle Handler) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		result, err := q.client.BRPop(ctx, redisPollTimeout, q.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			q.logger.Warn("notification queue read failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		// BRPOP replies with [key, value].
		event, err := decode([]byte(result[1]))
		if err != nil {
			q.logger.Error("discarding malformed notification", zap.Error(err))
			continue
		}
		if err := handle(ctx, event); err != nil {
			q.logger.Warn("notification delivery failed",
				zap.String("event_id", event.ID),
				zap.Int64("ticket_id", event.TicketID),
				zap.Error(err))
		}
	}
}

// Len reports the number of queued events.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Butcher-11/SuperAI/pkg/models"
)

const defaultSlotTTL = time.Hour

// RedisLimiter tracks in-flight executions in Redis so the limit holds
// across API instances. Slots carry a TTL derived from the workflow's
// execution timeout: a crashed instance cannot leak slots forever.
type RedisLimiter struct {
	client *redis.Client
}

func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client}
}

func (l *RedisLimiter) Acquire(ctx context.Context, workflow *models.Workflow) error {
	if workflow.MaxConcurrentExecutions <= 0 {
		return nil
	}

	key := slotKey(workflow.ID)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("acquire execution slot for workflow %s: %w", workflow.ID, err)
	}

	if count > int64(workflow.MaxConcurrentExecutions) {
		if err := l.client.Decr(ctx, key).Err(); err != nil {
			return fmt.Errorf("release rejected execution slot for workflow %s: %w", workflow.ID, err)
		}

		return fmt.Errorf("workflow %s: %w", workflow.ID, ErrLimitReached)
	}

	if err := l.client.Expire(ctx, key, slotTTL(workflow)).Err(); err != nil {
		return fmt.Errorf("set execution slot expiry for workflow %s: %w", workflow.ID, err)
	}

	return nil
}

func (l *RedisLimiter) Release(ctx context.Context, workflow *models.Workflow) error {
	if workflow.MaxConcurrentExecutions <= 0 {
		return nil
	}

	key := slotKey(workflow.ID)

	count, err := l.client.Decr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("release execution slot for workflow %s: %w", workflow.ID, err)
	}

	if count <= 0 {
		if err := l.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("delete execution slot counter for workflow %s: %w", workflow.ID, err)
		}
	}

	return nil
}

func slotKey(workflowID string) string {
	return "superai:executions:active:" + workflowID
}

func slotTTL(workflow *models.Workflow) time.Duration {
	if workflow.ExecutionTimeoutMinutes > 0 {
		return time.Duration(workflow.ExecutionTimeoutMinutes) * time.Minute
	}

	return defaultSlotTTL
}

package cmd

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Butcher-11/SuperAI/pkg/limiter"
)

// NewLimiter builds a concurrency limiter. A redis:// URL gives slots shared
// across processes; an empty URL falls back to in-memory counting.
func NewLimiter(redisURL string) (limiter.Limiter, error) {
	if redisURL == "" {
		return limiter.NewMemoryLimiter(), nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	return limiter.NewRedisLimiter(redis.NewClient(opts)), nil
}

// Package limiter enforces per-workflow concurrent execution limits.
package limiter

import (
	"context"
	"errors"

	"github.com/Butcher-11/SuperAI/pkg/models"
)

// ErrLimitReached indicates a workflow already has its maximum number of
// concurrent executions in flight.
var ErrLimitReached = errors.New("concurrent execution limit reached")

func IsLimitReached(err error) bool {
	return errors.Is(err, ErrLimitReached)
}

// Limiter gates execution dispatch. Acquire reserves a slot before dispatch;
// Release frees it once the execution reaches a terminal state. A workflow
// with MaxConcurrentExecutions <= 0 is never limited.
type Limiter interface {
	Acquire(ctx context.Context, workflow *models.Workflow) error
	Release(ctx context.Context, workflow *models.Workflow) error
}

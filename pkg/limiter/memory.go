package limiter

import (
	"context"
	"fmt"
	"sync"

	"github.com/Butcher-11/SuperAI/pkg/models"
)

// MemoryLimiter tracks in-flight executions in process memory. Suitable for
// single-instance deployments and tests.
type MemoryLimiter struct {
	mu       sync.Mutex
	inFlight map[string]int
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		inFlight: make(map[string]int),
	}
}

func (l *MemoryLimiter) Acquire(_ context.Context, workflow *models.Workflow) error {
	if workflow.MaxConcurrentExecutions <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.inFlight[workflow.ID] >= workflow.MaxConcurrentExecutions {
		return fmt.Errorf("workflow %s: %w", workflow.ID, ErrLimitReached)
	}

	l.inFlight[workflow.ID]++

	return nil
}

func (l *MemoryLimiter) Release(_ context.Context, workflow *models.Workflow) error {
	if workflow.MaxConcurrentExecutions <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.inFlight[workflow.ID] > 0 {
		l.inFlight[workflow.ID]--
	}

	if l.inFlight[workflow.ID] == 0 {
		delete(l.inFlight, workflow.ID)
	}

	return nil
}

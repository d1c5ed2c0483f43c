// Package persistence provides the data storage abstraction for workflows and executions.
package persistence

import (
	"context"
	"time"

	"github.com/Butcher-11/SuperAI/pkg/models"
)

// Persistence is the storage boundary. Implementations own their connection
// lifecycle: opened at construction, released by Close.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ExecutionRepository() ExecutionRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores workflow aggregates keyed by id.
type WorkflowRepository interface {
	GetAll(ctx context.Context) ([]*models.Workflow, error)
	GetByOwner(ctx context.Context, ownerID string) ([]*models.Workflow, error)
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error
	Delete(ctx context.Context, id string) error

	// FindActiveWebhookTargets returns active webhook-triggered workflows whose
	// trigger config names the given integration type. Used by webhook ingestion.
	FindActiveWebhookTargets(ctx context.Context, integrationType string) ([]*models.Workflow, error)
}

// ExecutionRepository stores execution lifecycle records.
type ExecutionRepository interface {
	Save(ctx context.Context, execution *models.WorkflowExecution) error
	GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error)

	// ListByWorkflow returns executions ordered by started_at descending,
	// bounded by limit.
	ListByWorkflow(ctx context.Context, workflowID, ownerID string, limit int) ([]*models.WorkflowExecution, error)

	// ListRunning returns all executions currently in the running state.
	ListRunning(ctx context.Context) ([]*models.WorkflowExecution, error)

	// MarkTerminal persists the terminal snapshot only if the stored record is
	// still non-terminal. Returns false when the record was already terminal,
	// which makes concurrent reconciliation attempts converge on a single write.
	MarkTerminal(ctx context.Context, execution *models.WorkflowExecution) (bool, error)

	DeleteByWorkflow(ctx context.Context, workflowID string) error

	// DeleteOlderThan removes executions started before the cutoff and reports
	// how many were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Butcher-11/SuperAI/pkg/models"
	"github.com/Butcher-11/SuperAI/pkg/persistence"
)

const workflowColumns = `
	id
  , owner_id
  , name
  , description
  , trigger_type
  , trigger_config
  , steps
  , engine_workflow_id
  , engine_webhook_id
  , status
  , tags
  , max_concurrent_executions
  , execution_timeout_minutes
  , created_at
  , updated_at
`

// WorkflowRepository handles workflow-related database operations. Steps and
// trigger config are stored as JSONB alongside the aggregate row.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

// GetAll returns all workflows ordered by creation time descending.
func (r *WorkflowRepository) GetAll(ctx context.Context) ([]*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows ORDER BY created_at DESC`

	return r.queryWorkflows(ctx, query)
}

// GetByOwner returns all workflows owned by the given identity.
func (r *WorkflowRepository) GetByOwner(ctx context.Context, ownerID string) ([]*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE owner_id = $1 ORDER BY created_at DESC`

	return r.queryWorkflows(ctx, query, ownerID)
}

// GetByID returns a workflow by its ID, or (nil, nil) when absent.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE id = $1`

	row := r.db.QueryRowContext(ctx, query, id)

	workflow, err := scanWorkflow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	return workflow, nil
}

// Save upserts a workflow.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	triggerConfigJSON, err := json.Marshal(orEmptyMap(workflow.TriggerConfig))
	if err != nil {
		return fmt.Errorf("failed to marshal trigger config: %w", err)
	}

	stepsJSON, err := json.Marshal(orEmptySteps(workflow.Steps))
	if err != nil {
		return fmt.Errorf("failed to marshal steps: %w", err)
	}

	tagsJSON, err := json.Marshal(orEmptyTags(workflow.Tags))
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	query := `
		INSERT INTO workflows (id, owner_id, name, description, trigger_type, trigger_config,
			steps, engine_workflow_id, engine_webhook_id, status, tags,
			max_concurrent_executions, execution_timeout_minutes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			owner_id = EXCLUDED.owner_id,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			trigger_type = EXCLUDED.trigger_type,
			trigger_config = EXCLUDED.trigger_config,
			steps = EXCLUDED.steps,
			engine_workflow_id = EXCLUDED.engine_workflow_id,
			engine_webhook_id = EXCLUDED.engine_webhook_id,
			status = EXCLUDED.status,
			tags = EXCLUDED.tags,
			max_concurrent_executions = EXCLUDED.max_concurrent_executions,
			execution_timeout_minutes = EXCLUDED.execution_timeout_minutes,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		workflow.ID,
		workflow.OwnerID,
		workflow.Name,
		workflow.Description,
		workflow.TriggerType,
		triggerConfigJSON,
		stepsJSON,
		workflow.EngineWorkflowID,
		workflow.EngineWebhookID,
		workflow.Status,
		tagsJSON,
		workflow.MaxConcurrentExecutions,
		workflow.ExecutionTimeoutMinutes,
		workflow.CreatedAt,
		workflow.UpdatedAt,
	)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	return nil
}

// Delete removes a workflow. Executions cascade at the schema level.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM workflows WHERE id = $1", id)
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	return nil
}

// FindActiveWebhookTargets returns active webhook-triggered workflows whose
// trigger config names the given integration type.
func (r *WorkflowRepository) FindActiveWebhookTargets(ctx context.Context, integrationType string) ([]*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + `
		FROM workflows
		WHERE status = $1
		  AND trigger_type = $2
		  AND trigger_config->>'integration_type' = $3
		ORDER BY created_at DESC`

	return r.queryWorkflows(ctx, query,
		models.WorkflowStatusActive, models.TriggerTypeWebhook, integrationType)
}

func (r *WorkflowRepository) queryWorkflows(ctx context.Context, query string, args ...any) ([]*models.Workflow, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*models.Workflow, error) {
	var (
		workflow          models.Workflow
		triggerConfigJSON []byte
		stepsJSON         []byte
		tagsJSON          []byte
	)

	err := row.Scan(
		&workflow.ID,
		&workflow.OwnerID,
		&workflow.Name,
		&workflow.Description,
		&workflow.TriggerType,
		&triggerConfigJSON,
		&stepsJSON,
		&workflow.EngineWorkflowID,
		&workflow.EngineWebhookID,
		&workflow.Status,
		&tagsJSON,
		&workflow.MaxConcurrentExecutions,
		&workflow.ExecutionTimeoutMinutes,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(triggerConfigJSON, &workflow.TriggerConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal trigger config: %w", err)
	}

	err = json.Unmarshal(stepsJSON, &workflow.Steps)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal steps: %w", err)
	}

	err = json.Unmarshal(tagsJSON, &workflow.Tags)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
	}

	return &workflow, nil
}

func orEmptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}

	return m
}

func orEmptySteps(steps []*models.WorkflowStep) []*models.WorkflowStep {
	if steps == nil {
		return []*models.WorkflowStep{}
	}

	return steps
}

func orEmptyTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}

	return tags
}

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

const executionColumns = `
	id
  , workflow_id
  , owner_id
  , status
  , trigger_data
  , step_results
  , output_data
  , error_message
  , started_at
  , completed_at
  , duration_seconds
  , engine_execution_id
`

// ExecutionRepository handles execution-related database operations.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

// Save upserts an execution record.
func (r *ExecutionRepository) Save(ctx context.Context, execution *models.WorkflowExecution) error {
	triggerDataJSON, err := json.Marshal(orEmptyMap(execution.TriggerData))
	if err != nil {
		return fmt.Errorf("failed to marshal trigger data: %w", err)
	}

	stepResultsJSON, err := json.Marshal(orEmptyMap(execution.StepResults))
	if err != nil {
		return fmt.Errorf("failed to marshal step results: %w", err)
	}

	outputDataJSON, err := json.Marshal(orEmptyMap(execution.OutputData))
	if err != nil {
		return fmt.Errorf("failed to marshal output data: %w", err)
	}

	query := `
		INSERT INTO workflow_executions (id, workflow_id, owner_id, status, trigger_data,
			step_results, output_data, error_message, started_at, completed_at,
			duration_seconds, engine_execution_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			step_results = EXCLUDED.step_results,
			output_data = EXCLUDED.output_data,
			error_message = EXCLUDED.error_message,
			completed_at = EXCLUDED.completed_at,
			duration_seconds = EXCLUDED.duration_seconds,
			engine_execution_id = EXCLUDED.engine_execution_id
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.ID,
		execution.WorkflowID,
		execution.OwnerID,
		execution.Status,
		triggerDataJSON,
		stepResultsJSON,
		outputDataJSON,
		execution.ErrorMessage,
		execution.StartedAt,
		execution.CompletedAt,
		execution.DurationSeconds,
		execution.EngineExecutionID,
	)
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	return nil
}

// GetByID returns an execution by its ID, or (nil, nil) when absent.
func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	query := `SELECT ` + executionColumns + ` FROM workflow_executions WHERE id = $1`

	row := r.db.QueryRowContext(ctx, query, id)

	execution, err := scanExecution(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	return execution, nil
}

// ListByWorkflow returns executions ordered by started_at descending, bounded by limit.
func (r *ExecutionRepository) ListByWorkflow(ctx context.Context, workflowID, ownerID string, limit int) ([]*models.WorkflowExecution, error) {
	query := `SELECT ` + executionColumns + `
		FROM workflow_executions
		WHERE workflow_id = $1 AND ($2 = '' OR owner_id = $2)
		ORDER BY started_at DESC
		LIMIT $3`

	return r.queryExecutions(ctx, query, workflowID, ownerID, limit)
}

// ListRunning returns all executions currently in the running state.
func (r *ExecutionRepository) ListRunning(ctx context.Context) ([]*models.WorkflowExecution, error) {
	query := `SELECT ` + executionColumns + `
		FROM workflow_executions
		WHERE status = $1
		ORDER BY started_at ASC`

	return r.queryExecutions(ctx, query, models.ExecutionStatusRunning)
}

// MarkTerminal persists the terminal snapshot with a conditional update keyed
// on the stored status still being non-terminal. Returns false when another
// reconciliation already won the race.
func (r *ExecutionRepository) MarkTerminal(ctx context.Context, execution *models.WorkflowExecution) (bool, error) {
	stepResultsJSON, err := json.Marshal(orEmptyMap(execution.StepResults))
	if err != nil {
		return false, fmt.Errorf("failed to marshal step results: %w", err)
	}

	outputDataJSON, err := json.Marshal(orEmptyMap(execution.OutputData))
	if err != nil {
		return false, fmt.Errorf("failed to marshal output data: %w", err)
	}

	query := `
		UPDATE workflow_executions SET
			status = $2,
			step_results = $3,
			output_data = $4,
			error_message = $5,
			completed_at = $6,
			duration_seconds = $7
		WHERE id = $1 AND status IN ($8, $9)
	`

	result, err := r.db.ExecContext(ctx, query,
		execution.ID,
		execution.Status,
		stepResultsJSON,
		outputDataJSON,
		execution.ErrorMessage,
		execution.CompletedAt,
		execution.DurationSeconds,
		models.ExecutionStatusPending,
		models.ExecutionStatusRunning,
	)
	if err != nil {
		return false, persistence.NewExecutionError("MarkTerminal", execution.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected > 0, nil
}

// DeleteByWorkflow removes all executions belonging to a workflow.
func (r *ExecutionRepository) DeleteByWorkflow(ctx context.Context, workflowID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM workflow_executions WHERE workflow_id = $1", workflowID)
	if err != nil {
		return fmt.Errorf("failed to delete executions: %w", err)
	}

	return nil
}

// DeleteOlderThan removes executions started before the cutoff.
func (r *ExecutionRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM workflow_executions WHERE started_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old executions: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return int(affected), nil
}

func (r *ExecutionRepository) queryExecutions(ctx context.Context, query string, args ...any) ([]*models.WorkflowExecution, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	executions := make([]*models.WorkflowExecution, 0)

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

func scanExecution(row rowScanner) (*models.WorkflowExecution, error) {
	var (
		execution       models.WorkflowExecution
		triggerDataJSON []byte
		stepResultsJSON []byte
		outputDataJSON  []byte
	)

	err := row.Scan(
		&execution.ID,
		&execution.WorkflowID,
		&execution.OwnerID,
		&execution.Status,
		&triggerDataJSON,
		&stepResultsJSON,
		&outputDataJSON,
		&execution.ErrorMessage,
		&execution.StartedAt,
		&execution.CompletedAt,
		&execution.DurationSeconds,
		&execution.EngineExecutionID,
	)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(triggerDataJSON, &execution.TriggerData)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal trigger data: %w", err)
	}

	err = json.Unmarshal(stepResultsJSON, &execution.StepResults)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal step results: %w", err)
	}

	err = json.Unmarshal(outputDataJSON, &execution.OutputData)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal output data: %w", err)
	}

	return &execution, nil
}

// Package tracker owns the local record of workflow executions: creating it
// at dispatch time and reconciling it against the engine's view until the
// execution reaches a terminal state.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Butcher-11/SuperAI/pkg/engine"
	"github.com/Butcher-11/SuperAI/pkg/log"
	"github.com/Butcher-11/SuperAI/pkg/models"
	"github.com/Butcher-11/SuperAI/pkg/persistence"
)

// StatusFetcher reads execution state from the workflow engine.
type StatusFetcher interface {
	FetchExecutionStatus(ctx context.Context, engineExecutionID string) (*engine.ExecutionSnapshot, error)
}

// Tracker records and reconciles workflow executions.
type Tracker struct {
	executions persistence.ExecutionRepository
	fetcher    StatusFetcher
	logger     *slog.Logger
	now        func() time.Time
}

func NewTracker(executions persistence.ExecutionRepository, fetcher StatusFetcher) *Tracker {
	return &Tracker{
		executions: executions,
		fetcher:    fetcher,
		logger:     log.WithModule("tracker"),
		now:        time.Now,
	}
}

// RecordDispatch persists a new running execution for a dispatch that was
// accepted by the engine.
func (t *Tracker) RecordDispatch(ctx context.Context, workflow *models.Workflow, engineExecutionID string, triggerData map[string]any) (*models.WorkflowExecution, error) {
	if triggerData == nil {
		triggerData = map[string]any{}
	}

	execution := &models.WorkflowExecution{
		ID:                uuid.New().String(),
		WorkflowID:        workflow.ID,
		OwnerID:           workflow.OwnerID,
		Status:            models.ExecutionStatusRunning,
		TriggerData:       triggerData,
		StepResults:       map[string]any{},
		StartedAt:         t.now().UTC(),
		EngineExecutionID: engineExecutionID,
	}

	if err := t.executions.Save(ctx, execution); err != nil {
		return nil, fmt.Errorf("record dispatch for workflow %s: %w", workflow.ID, err)
	}

	t.logger.InfoContext(ctx, "Recorded execution dispatch",
		"execution_id", execution.ID,
		"workflow_id", workflow.ID,
		"engine_execution_id", engineExecutionID)

	return execution, nil
}

// Get returns one execution by id.
func (t *Tracker) Get(ctx context.Context, executionID string) (*models.WorkflowExecution, error) {
	execution, err := t.executions.GetByID(ctx, executionID)
	if err != nil {
		return nil, err
	}

	if execution == nil {
		return nil, persistence.ErrExecutionNotFound
	}

	return execution, nil
}

// List returns the most recent executions of a workflow, newest first.
func (t *Tracker) List(ctx context.Context, workflowID, ownerID string, limit int) ([]*models.WorkflowExecution, error) {
	return t.executions.ListByWorkflow(ctx, workflowID, ownerID, limit)
}

// Reconcile refreshes one execution from the engine and returns the stored
// state afterwards. Terminal executions are returned unchanged: the first
// terminal transition wins and later reconciles observe it rather than
// rewrite it, so CompletedAt and DurationSeconds are computed exactly once.
func (t *Tracker) Reconcile(ctx context.Context, executionID string) (*models.WorkflowExecution, error) {
	execution, err := t.Get(ctx, executionID)
	if err != nil {
		return nil, err
	}

	if execution.Status.IsTerminal() {
		return execution, nil
	}

	if execution.EngineExecutionID == "" {
		return t.finish(ctx, execution, models.ExecutionStatusFailed, nil,
			"execution has no engine execution id", nil)
	}

	snapshot, err := t.fetcher.FetchExecutionStatus(ctx, execution.EngineExecutionID)
	if err != nil {
		if engine.IsExecutionNotFound(err) {
			return t.finish(ctx, execution, models.ExecutionStatusFailed, nil,
				"execution no longer exists in engine", nil)
		}

		return nil, fmt.Errorf("reconcile execution %s: %w", executionID, err)
	}

	if snapshot.Status.IsTerminal() {
		return t.finish(ctx, execution, snapshot.Status, snapshot.StepData, snapshot.ErrorMessage, snapshot.FinishedAt)
	}

	execution.Status = snapshot.Status
	execution.StepResults = snapshot.StepData
	execution.ErrorMessage = snapshot.ErrorMessage

	if err := t.executions.Save(ctx, execution); err != nil {
		return nil, fmt.Errorf("reconcile execution %s: %w", executionID, err)
	}

	return execution, nil
}

// Fail forces a non-terminal execution into the failed state with the given
// reason. Used for executions the engine will never finish, such as runs
// exceeding the maximum execution age.
func (t *Tracker) Fail(ctx context.Context, executionID, reason string) (*models.WorkflowExecution, error) {
	execution, err := t.Get(ctx, executionID)
	if err != nil {
		return nil, err
	}

	if execution.Status.IsTerminal() {
		return execution, nil
	}

	return t.finish(ctx, execution, models.ExecutionStatusFailed, execution.StepResults, reason, nil)
}

// PurgeOlderThan deletes executions that started before now minus the given
// age, returning how many were removed.
func (t *Tracker) PurgeOlderThan(ctx context.Context, age time.Duration) (int, error) {
	cutoff := t.now().UTC().Add(-age)

	purged, err := t.executions.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge executions older than %s: %w", cutoff.Format(time.RFC3339), err)
	}

	if purged > 0 {
		t.logger.InfoContext(ctx, "Purged old executions", "count", purged, "cutoff", cutoff)
	}

	return purged, nil
}

func (t *Tracker) finish(ctx context.Context, execution *models.WorkflowExecution, status models.ExecutionStatus, stepResults map[string]any, errorMessage string, finishedAt *time.Time) (*models.WorkflowExecution, error) {
	completedAt := t.now().UTC()
	if finishedAt != nil {
		completedAt = finishedAt.UTC()
	}

	duration := completedAt.Sub(execution.StartedAt).Seconds()

	execution.Status = status
	execution.ErrorMessage = errorMessage
	execution.CompletedAt = &completedAt
	execution.DurationSeconds = &duration

	if stepResults != nil {
		execution.StepResults = stepResults
	}

	updated, err := t.executions.MarkTerminal(ctx, execution)
	if err != nil {
		return nil, fmt.Errorf("finish execution %s: %w", execution.ID, err)
	}

	if !updated {
		// Lost the race against another reconciler; its snapshot stands.
		return t.Get(ctx, execution.ID)
	}

	t.logger.InfoContext(ctx, "Execution reached terminal state",
		"execution_id", execution.ID,
		"workflow_id", execution.WorkflowID,
		"status", status,
		"duration_seconds", duration)

	return execution, nil
}

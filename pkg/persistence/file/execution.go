package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/Butcher-11/SuperAI/pkg/models"
	"github.com/Butcher-11/SuperAI/pkg/persistence"
)

// ExecutionRepository handles execution-related file operations. Each
// execution is one JSON document under <root>/executions. A repository-wide
// mutex serializes the terminal transition, matching the conditional-update
// semantics of the SQL implementation.
type ExecutionRepository struct {
	root string
	mu   sync.Mutex
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{root: root}
}

// Save persists an execution record.
func (er *ExecutionRepository) Save(_ context.Context, execution *models.WorkflowExecution) error {
	err := os.MkdirAll(path.Join(er.root, "executions"), 0750)
	if err != nil {
		return fmt.Errorf("failed to create executions directory: %w", err)
	}

	data, err := json.MarshalIndent(execution, "", "  ")
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	filePath := path.Join(er.root, "executions", execution.ID+".json")

	return os.WriteFile(filePath, data, 0600)
}

// GetByID retrieves an execution by its ID. A missing execution is reported
// as (nil, nil).
func (er *ExecutionRepository) GetByID(_ context.Context, id string) (*models.WorkflowExecution, error) {
	filePath := filepath.Clean(path.Join(er.root, "executions", id+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	var execution models.WorkflowExecution

	err = json.Unmarshal(body, &execution)
	if err != nil {
		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	return &execution, nil
}

// ListByWorkflow returns executions for a workflow ordered by started_at
// descending, bounded by limit.
func (er *ExecutionRepository) ListByWorkflow(ctx context.Context, workflowID, ownerID string, limit int) ([]*models.WorkflowExecution, error) {
	all, err := er.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	matches := make([]*models.WorkflowExecution, 0)

	for _, execution := range all {
		if execution.WorkflowID != workflowID {
			continue
		}

		if ownerID != "" && execution.OwnerID != ownerID {
			continue
		}

		matches = append(matches, execution)
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].StartedAt.After(matches[j].StartedAt)
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	return matches, nil
}

// ListRunning returns all executions currently in the running state.
func (er *ExecutionRepository) ListRunning(ctx context.Context) ([]*models.WorkflowExecution, error) {
	all, err := er.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	running := make([]*models.WorkflowExecution, 0)

	for _, execution := range all {
		if execution.Status == models.ExecutionStatusRunning {
			running = append(running, execution)
		}
	}

	return running, nil
}

// MarkTerminal persists the terminal snapshot only if the stored record is
// still non-terminal.
func (er *ExecutionRepository) MarkTerminal(ctx context.Context, execution *models.WorkflowExecution) (bool, error) {
	er.mu.Lock()
	defer er.mu.Unlock()

	stored, err := er.GetByID(ctx, execution.ID)
	if err != nil {
		return false, err
	}

	if stored == nil {
		return false, persistence.NewExecutionError("MarkTerminal", execution.ID, persistence.ErrExecutionNotFound)
	}

	if stored.Status.IsTerminal() {
		return false, nil
	}

	return true, er.Save(ctx, execution)
}

// DeleteByWorkflow removes all executions belonging to a workflow.
func (er *ExecutionRepository) DeleteByWorkflow(ctx context.Context, workflowID string) error {
	all, err := er.loadAll(ctx)
	if err != nil {
		return err
	}

	for _, execution := range all {
		if execution.WorkflowID != workflowID {
			continue
		}

		err := os.Remove(path.Join(er.root, "executions", execution.ID+".json"))
		if err != nil && !os.IsNotExist(err) {
			return persistence.NewExecutionError("DeleteByWorkflow", execution.ID, err)
		}
	}

	return nil
}

// DeleteOlderThan removes executions started before the cutoff.
func (er *ExecutionRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	all, err := er.loadAll(ctx)
	if err != nil {
		return 0, err
	}

	deleted := 0

	for _, execution := range all {
		if !execution.StartedAt.Before(cutoff) {
			continue
		}

		err := os.Remove(path.Join(er.root, "executions", execution.ID+".json"))
		if err != nil && !os.IsNotExist(err) {
			return deleted, persistence.NewExecutionError("DeleteOlderThan", execution.ID, err)
		}

		deleted++
	}

	return deleted, nil
}

func (er *ExecutionRepository) loadAll(ctx context.Context) ([]*models.WorkflowExecution, error) {
	dir := path.Join(er.root, "executions")
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return make([]*models.WorkflowExecution, 0), nil
	}

	jsonFiles, err := fs.Glob(os.DirFS(dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list execution files: %w", err)
	}

	executions := make([]*models.WorkflowExecution, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		executionID := file[:len(file)-5]

		execution, err := er.GetByID(ctx, executionID)
		if err != nil {
			return nil, err
		}

		if execution != nil {
			executions = append(executions, execution)
		}
	}

	return executions, nil
}

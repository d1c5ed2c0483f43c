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
	"time"

	"github.com/Butcher-11/SuperAI/pkg/models"
	"github.com/Butcher-11/SuperAI/pkg/persistence"
)

// WorkflowRepository handles workflow-related file operations. Each workflow
// is one JSON document under <root>/workflows.
type WorkflowRepository struct {
	root string
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{root: root}
}

// GetAll returns all workflows ordered by creation time descending.
func (wr *WorkflowRepository) GetAll(ctx context.Context) ([]*models.Workflow, error) {
	workflows, err := wr.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.After(workflows[j].CreatedAt)
	})

	return workflows, nil
}

// GetByOwner returns all workflows owned by the given identity.
func (wr *WorkflowRepository) GetByOwner(ctx context.Context, ownerID string) ([]*models.Workflow, error) {
	all, err := wr.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	owned := make([]*models.Workflow, 0)

	for _, workflow := range all {
		if workflow.OwnerID == ownerID {
			owned = append(owned, workflow)
		}
	}

	return owned, nil
}

// GetByID retrieves a workflow by its ID from the file system. A missing
// workflow is reported as (nil, nil).
func (wr *WorkflowRepository) GetByID(_ context.Context, workflowID string) (*models.Workflow, error) {
	filePath := filepath.Clean(path.Join(wr.root, "workflows", workflowID+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, persistence.NewWorkflowError("GetByID", workflowID, err)
	}

	var workflow models.Workflow

	err = json.Unmarshal(body, &workflow)
	if err != nil {
		return nil, persistence.NewWorkflowError("GetByID", workflowID, err)
	}

	return &workflow, nil
}

// Save saves a workflow to the file system.
func (wr *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	err := os.MkdirAll(path.Join(wr.root, "workflows"), 0750)
	if err != nil {
		return fmt.Errorf("failed to create workflows directory: %w", err)
	}

	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	data, err := json.MarshalIndent(workflow, "", "  ")
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	filePath := path.Join(wr.root, "workflows", workflow.ID+".json")

	return os.WriteFile(filePath, data, 0600)
}

// Delete removes a workflow by its ID. Deleting a missing workflow is a no-op.
func (wr *WorkflowRepository) Delete(_ context.Context, id string) error {
	filePath := path.Join(wr.root, "workflows", id+".json")

	err := os.Remove(filePath)

	if err != nil && os.IsNotExist(err) {
		return nil
	}

	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	return nil
}

// FindActiveWebhookTargets returns active webhook-triggered workflows whose
// trigger config names the given integration type.
func (wr *WorkflowRepository) FindActiveWebhookTargets(ctx context.Context, integrationType string) ([]*models.Workflow, error) {
	all, err := wr.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	matches := make([]*models.Workflow, 0)

	for _, workflow := range all {
		if workflow.Status != models.WorkflowStatusActive || workflow.TriggerType != models.TriggerTypeWebhook {
			continue
		}

		configured, _ := workflow.TriggerConfig["integration_type"].(string)
		if configured == integrationType {
			matches = append(matches, workflow)
		}
	}

	return matches, nil
}

func (wr *WorkflowRepository) loadAll(ctx context.Context) ([]*models.Workflow, error) {
	dir := path.Join(wr.root, "workflows")
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return make([]*models.Workflow, 0), nil
	}

	jsonFiles, err := fs.Glob(os.DirFS(dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow files: %w", err)
	}

	workflows := make([]*models.Workflow, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		workflowID := file[:len(file)-5] // Remove .json extension

		workflow, err := wr.GetByID(ctx, workflowID)
		if err != nil {
			return nil, err
		}

		if workflow != nil {
			workflows = append(workflows, workflow)
		}
	}

	return workflows, nil
}

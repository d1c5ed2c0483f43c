package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Butcher-11/SuperAI/pkg/engine"
	"github.com/Butcher-11/SuperAI/pkg/graph"
	"github.com/Butcher-11/SuperAI/pkg/limiter"
	"github.com/Butcher-11/SuperAI/pkg/models"
	"github.com/Butcher-11/SuperAI/pkg/persistence"
	"github.com/Butcher-11/SuperAI/pkg/persistence/file"
	"github.com/Butcher-11/SuperAI/pkg/tracker"
	"github.com/Butcher-11/SuperAI/pkg/web"
	"github.com/Butcher-11/SuperAI/pkg/webhook"
	"github.com/Butcher-11/SuperAI/pkg/workflow"
)

type fixture struct {
	app     *fiber.App
	store   persistence.Persistence
	gateway *stubGateway
	fetcher *stubFetcher
}

type stubGateway struct {
	createErr  error
	triggerErr error
	triggered  int
}

func (g *stubGateway) CreateGraph(_ context.Context, _ *graph.Graph) (string, error) {
	if g.createErr != nil {
		return "", g.createErr
	}

	return "engine-wf-1", nil
}

func (g *stubGateway) DeleteGraph(_ context.Context, _ string) error {
	return nil
}

func (g *stubGateway) TriggerExecution(_ context.Context, _ string, _ map[string]any) (string, error) {
	if g.triggerErr != nil {
		return "", g.triggerErr
	}

	g.triggered++

	return "engine-exec-1", nil
}

func (g *stubGateway) WebhookURL(path string) string {
	return "http://engine.local/webhook/" + path
}

// stubFetcher reports executions as still running until a snapshot is set.
type stubFetcher struct {
	snapshot *engine.ExecutionSnapshot
}

func (f *stubFetcher) FetchExecutionStatus(_ context.Context, _ string) (*engine.ExecutionSnapshot, error) {
	if f.snapshot != nil {
		return f.snapshot, nil
	}

	return &engine.ExecutionSnapshot{
		EngineStatus: engine.EngineStatusRunning,
		Status:       models.ExecutionStatusRunning,
	}, nil
}

func setupTestApp(t *testing.T) *fixture {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	gateway := &stubGateway{}
	fetcher := &stubFetcher{}

	executionTracker := tracker.NewTracker(store.ExecutionRepository(), fetcher)
	orchestrator := workflow.NewOrchestrator(store, gateway, executionTracker, limiter.NewMemoryLimiter(), nil)

	dispatcher := webhook.NewDispatcher(store.WorkflowRepository(), orchestrator, nil)
	dispatcher.MaxAttempts = 2
	dispatcher.MinBackoff = time.Millisecond
	dispatcher.MaxBackoff = 5 * time.Millisecond

	validate := validator.New(validator.WithRequiredStructEnabled())
	handlers := web.NewAPIHandlers(orchestrator, executionTracker, dispatcher, validate)

	app := fiber.New()
	web.RegisterRoutes(app, handlers)

	return &fixture{app: app, store: store, gateway: gateway, fetcher: fetcher}
}

func (f *fixture) request(t *testing.T, method, target string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer

	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-1")

	resp, err := f.app.Test(req)
	require.NoError(t, err)

	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out T
	require.NoError(t, json.Unmarshal(raw, &out))

	return out
}

func (f *fixture) createWorkflow(t *testing.T, req web.CreateWorkflowRequest) *models.Workflow {
	t.Helper()

	resp := f.request(t, http.MethodPost, "/workflows/", req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	created := decodeBody[*models.Workflow](t, resp)

	return created
}

func (f *fixture) addStep(t *testing.T, workflowID string, step web.StepRequest) {
	t.Helper()

	resp := f.request(t, http.MethodPost, "/workflows/"+workflowID+"/steps", step)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()
}

func (f *fixture) deploy(t *testing.T, workflowID string) {
	t.Helper()

	resp := f.request(t, http.MethodPost, "/workflows/"+workflowID+"/deploy", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()
}

func webhookCreateRequest(name string) web.CreateWorkflowRequest {
	return web.CreateWorkflowRequest{
		Name:        name,
		Description: "test workflow",
		TriggerType: "webhook",
		TriggerConfig: map[string]any{
			"path":             "hooks/" + name,
			"integration_type": "github",
		},
	}
}

func apiCallStep() web.StepRequest {
	return web.StepRequest{
		Name:       "Fetch data",
		ActionType: "api_call",
		Config: map[string]any{
			"url":    "https://api.example.com/items",
			"method": "GET",
		},
	}
}

func TestCreateWorkflow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		requestBody    any
		expectedStatus int
	}{
		{
			name:           "successful creation",
			requestBody:    webhookCreateRequest("daily-digest"),
			expectedStatus: http.StatusCreated,
		},
		{
			name: "name too short",
			requestBody: web.CreateWorkflowRequest{
				Name:        "ab",
				TriggerType: "manual",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "unknown trigger type",
			requestBody: web.CreateWorkflowRequest{
				Name:        "bad trigger",
				TriggerType: "telepathy",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid JSON",
			requestBody:    "{not-json",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := setupTestApp(t)

			resp := f.request(t, http.MethodPost, "/workflows/", tt.requestBody)
			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusCreated {
				created := decodeBody[*models.Workflow](t, resp)
				assert.NotEmpty(t, created.ID)
				assert.Equal(t, "user-1", created.OwnerID)
				assert.Equal(t, models.WorkflowStatusDraft, created.Status)
			}
		})
	}
}

func TestMissingOwnerHeaderIsRejected(t *testing.T) {
	t.Parallel()

	f := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/workflows/", nil)

	resp, err := f.app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGetWorkflowHidesOtherOwners(t *testing.T) {
	t.Parallel()

	f := setupTestApp(t)
	created := f.createWorkflow(t, webhookCreateRequest("private"))

	req := httptest.NewRequest(http.MethodGet, "/workflows/"+created.ID, nil)
	req.Header.Set("X-User-ID", "someone-else")

	resp, err := f.app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateWorkflowPartial(t *testing.T) {
	t.Parallel()

	f := setupTestApp(t)
	created := f.createWorkflow(t, webhookCreateRequest("renameable"))

	newName := "Renamed Workflow"

	resp := f.request(t, http.MethodPatch, "/workflows/"+created.ID, web.UpdateWorkflowRequest{Name: &newName})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	updated := decodeBody[*models.Workflow](t, resp)
	assert.Equal(t, newName, updated.Name)
	assert.Equal(t, created.TriggerType, updated.TriggerType)
	assert.Equal(t, created.ID, updated.ID)
}

func TestStepLifecycle(t *testing.T) {
	t.Parallel()

	f := setupTestApp(t)
	created := f.createWorkflow(t, webhookCreateRequest("steps"))

	resp := f.request(t, http.MethodPost, "/workflows/"+created.ID+"/steps", apiCallStep())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	withStep := decodeBody[*models.Workflow](t, resp)
	require.Len(t, withStep.Steps, 1)

	stepID := withStep.Steps[0].ID
	assert.Equal(t, 30, withStep.Steps[0].TimeoutSeconds)
	assert.Equal(t, models.ErrorPolicyStop, withStep.Steps[0].OnError)

	replacement := apiCallStep()
	replacement.Name = "Fetch more data"

	resp = f.request(t, http.MethodPatch, "/workflows/"+created.ID+"/steps/"+stepID, replacement)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	updated := decodeBody[*models.Workflow](t, resp)
	require.Len(t, updated.Steps, 1)
	assert.Equal(t, "Fetch more data", updated.Steps[0].Name)
	assert.Equal(t, stepID, updated.Steps[0].ID)

	resp = f.request(t, http.MethodDelete, "/workflows/"+created.ID+"/steps/"+stepID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	emptied := decodeBody[*models.Workflow](t, resp)
	assert.Empty(t, emptied.Steps)
}

func TestDeployAndExecute(t *testing.T) {
	t.Parallel()

	f := setupTestApp(t)
	created := f.createWorkflow(t, webhookCreateRequest("deployable"))
	f.addStep(t, created.ID, apiCallStep())

	resp := f.request(t, http.MethodPost, "/workflows/"+created.ID+"/deploy", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	result := decodeBody[map[string]any](t, resp)
	assert.NotEmpty(t, result["webhook_url"])

	resp = f.request(t, http.MethodPost, "/workflows/"+created.ID+"/execute", web.ExecuteRequest{
		TriggerData: map[string]any{"source": "test"},
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	execution := decodeBody[*models.WorkflowExecution](t, resp)
	assert.Equal(t, models.ExecutionStatusRunning, execution.Status)
	assert.Equal(t, 1, f.gateway.triggered)
}

func TestExecuteDraftWorkflowConflicts(t *testing.T) {
	t.Parallel()

	f := setupTestApp(t)
	created := f.createWorkflow(t, webhookCreateRequest("draft-only"))

	resp := f.request(t, http.MethodPost, "/workflows/"+created.ID+"/execute", nil)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestDeployFailureReturnsBadGateway(t *testing.T) {
	t.Parallel()

	f := setupTestApp(t)
	f.gateway.createErr = engine.ErrEngineUnavailable

	created := f.createWorkflow(t, webhookCreateRequest("unlucky"))
	f.addStep(t, created.ID, apiCallStep())

	resp := f.request(t, http.MethodPost, "/workflows/"+created.ID+"/deploy", nil)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestPauseAndResume(t *testing.T) {
	t.Parallel()

	f := setupTestApp(t)
	created := f.createWorkflow(t, webhookCreateRequest("pausable"))
	f.addStep(t, created.ID, apiCallStep())
	f.deploy(t, created.ID)

	resp := f.request(t, http.MethodPost, "/workflows/"+created.ID+"/pause", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	paused := decodeBody[*models.Workflow](t, resp)
	assert.Equal(t, models.WorkflowStatusPaused, paused.Status)

	resp = f.request(t, http.MethodPost, "/workflows/"+created.ID+"/resume", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resumed := decodeBody[*models.Workflow](t, resp)
	assert.Equal(t, models.WorkflowStatusActive, resumed.Status)
}

func TestGetExecutionStatusReconciles(t *testing.T) {
	t.Parallel()

	f := setupTestApp(t)
	created := f.createWorkflow(t, webhookCreateRequest("watched"))
	f.addStep(t, created.ID, apiCallStep())
	f.deploy(t, created.ID)

	resp := f.request(t, http.MethodPost, "/workflows/"+created.ID+"/execute", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	execution := decodeBody[*models.WorkflowExecution](t, resp)

	finishedAt := time.Now().UTC()
	f.fetcher.snapshot = &engine.ExecutionSnapshot{
		EngineStatus: engine.EngineStatusSuccess,
		Status:       models.ExecutionStatusSuccess,
		StepData:     map[string]any{"Fetch data": map[string]any{"count": float64(3)}},
		FinishedAt:   &finishedAt,
	}

	resp = f.request(t, http.MethodGet, "/executions/"+execution.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	reconciled := decodeBody[*models.WorkflowExecution](t, resp)
	assert.Equal(t, models.ExecutionStatusSuccess, reconciled.Status)
	assert.NotNil(t, reconciled.CompletedAt)
}

func TestGetExecutionStatusHidesOtherOwners(t *testing.T) {
	t.Parallel()

	f := setupTestApp(t)
	created := f.createWorkflow(t, webhookCreateRequest("secret"))
	f.addStep(t, created.ID, apiCallStep())
	f.deploy(t, created.ID)

	resp := f.request(t, http.MethodPost, "/workflows/"+created.ID+"/execute", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	execution := decodeBody[*models.WorkflowExecution](t, resp)

	req := httptest.NewRequest(http.MethodGet, "/executions/"+execution.ID, nil)
	req.Header.Set("X-User-ID", "someone-else")

	other, err := f.app.Test(req)
	require.NoError(t, err)

	defer func() { _ = other.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, other.StatusCode)
}

func TestListExecutions(t *testing.T) {
	t.Parallel()

	f := setupTestApp(t)
	created := f.createWorkflow(t, webhookCreateRequest("busy"))
	f.addStep(t, created.ID, apiCallStep())
	f.deploy(t, created.ID)

	for range 3 {
		resp := f.request(t, http.MethodPost, "/workflows/"+created.ID+"/execute", nil)
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
		_ = resp.Body.Close()
	}

	resp := f.request(t, http.MethodGet, "/workflows/"+created.ID+"/executions?limit=2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	listing := decodeBody[struct {
		Executions []*models.WorkflowExecution `json:"executions"`
		Count      int                         `json:"count"`
	}](t, resp)

	assert.Equal(t, 2, listing.Count)
	assert.Len(t, listing.Executions, 2)
}

func TestIngestWebhookDispatches(t *testing.T) {
	t.Parallel()

	f := setupTestApp(t)
	created := f.createWorkflow(t, webhookCreateRequest("gh-listener"))
	f.addStep(t, created.ID, apiCallStep())
	f.deploy(t, created.ID)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/github",
		bytes.NewBufferString(`{"action":"opened","repository":"example/repo"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	result := decodeBody[map[string]any](t, resp)
	assert.Equal(t, float64(1), result["dispatched"])
	assert.Equal(t, 1, f.gateway.triggered)
}

func TestIngestWebhookWithoutTargets(t *testing.T) {
	t.Parallel()

	f := setupTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	result := decodeBody[map[string]any](t, resp)
	assert.Equal(t, float64(0), result["dispatched"])
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	f := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	resp, err := f.app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDeleteWorkflow(t *testing.T) {
	t.Parallel()

	f := setupTestApp(t)
	created := f.createWorkflow(t, webhookCreateRequest("ephemeral"))

	resp := f.request(t, http.MethodDelete, "/workflows/"+created.ID, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	_ = resp.Body.Close()

	resp = f.request(t, http.MethodGet, "/workflows/"+created.ID, nil)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

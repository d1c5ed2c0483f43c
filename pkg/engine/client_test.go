package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Butcher-11/SuperAI/pkg/graph"
	"github.com/Butcher-11/SuperAI/pkg/models"
)

func testGraph() *graph.Graph {
	return &graph.Graph{
		Name:   "Test Workflow",
		Active: true,
		Nodes: []*graph.Node{
			{ID: "trigger-manual", Name: "Manual Trigger", Type: "n8n-nodes-base.manualTrigger", TypeVersion: 1},
		},
		Connections: map[string]graph.ConnectionSet{},
		Settings:    map[string]any{"executionOrder": "v1"},
	}
}

func TestCreateGraphDeploysAndActivates(t *testing.T) {
	var activated bool

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/workflows":
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

			var g graph.Graph
			require.NoError(t, json.NewDecoder(r.Body).Decode(&g))
			assert.Equal(t, "Test Workflow", g.Name)

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"data":{"id":"engine-wf-1"}}`))
		case r.Method == http.MethodPatch && r.URL.Path == "/api/v1/workflows/engine-wf-1/activate":
			activated = true

			_, _ = w.Write([]byte(`{"data":{"active":true}}`))
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "secret"}, nil)
	defer client.Close()

	id, err := client.CreateGraph(context.Background(), testGraph())
	require.NoError(t, err)
	assert.Equal(t, "engine-wf-1", id)
	assert.True(t, activated)
}

func TestCreateGraphSurfacesActivationFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_, _ = w.Write([]byte(`{"data":{"id":"engine-wf-1"}}`))

			return
		}

		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"cannot activate"}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, nil)
	defer client.Close()

	_, err := client.CreateGraph(context.Background(), testGraph())
	require.Error(t, err)
	assert.True(t, IsEngineRejected(err))
}

func TestCreateGraphNumericID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_, _ = w.Write([]byte(`{"data":{"id":42}}`))

			return
		}

		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, nil)
	defer client.Close()

	id, err := client.CreateGraph(context.Background(), testGraph())
	require.NoError(t, err)
	assert.Equal(t, "42", id)
}

func TestTriggerExecution(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/workflows/engine-wf-1/execute", r.URL.Path)

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Contains(t, payload, "triggerData")

		_, _ = w.Write([]byte(`{"data":{"id":"exec-9"}}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, nil)
	defer client.Close()

	id, err := client.TriggerExecution(context.Background(), "engine-wf-1", map[string]any{"source": "manual"})
	require.NoError(t, err)
	assert.Equal(t, "exec-9", id)
}

func TestTriggerExecutionRequiresDeployment(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://localhost:0"}, nil)
	defer client.Close()

	_, err := client.TriggerExecution(context.Background(), "", nil)
	require.Error(t, err)
	assert.True(t, IsWorkflowNotDeployed(err))
}

func TestFetchExecutionStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/executions/exec-9", r.URL.Path)

		_, _ = w.Write([]byte(`{"data":{"status":"success","data":{"node":"out"},"finishedAt":"2026-08-28T10:01:30Z"}}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, nil)
	defer client.Close()

	snapshot, err := client.FetchExecutionStatus(context.Background(), "exec-9")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusSuccess, snapshot.Status)
	assert.Equal(t, "success", snapshot.EngineStatus)
	assert.Equal(t, map[string]any{"node": "out"}, snapshot.StepData)
	require.NotNil(t, snapshot.FinishedAt)
	assert.Equal(t, time.Date(2026, 8, 28, 10, 1, 30, 0, time.UTC), snapshot.FinishedAt.UTC())
}

func TestFetchExecutionStatusNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, nil)
	defer client.Close()

	_, err := client.FetchExecutionStatus(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsExecutionNotFound(err))
}

func TestFetchExecutionStatusServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, nil)
	defer client.Close()

	_, err := client.FetchExecutionStatus(context.Background(), "exec-9")
	require.Error(t, err)
	assert.True(t, IsEngineUnavailable(err))
	assert.False(t, IsEngineRejected(err))
}

func TestFetchExecutionStatusEngineDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(Config{BaseURL: server.URL, Timeout: time.Second}, nil)
	defer client.Close()

	_, err := client.FetchExecutionStatus(context.Background(), "exec-9")
	require.Error(t, err)
	assert.True(t, IsEngineUnavailable(err))
}

func TestMapStatus(t *testing.T) {
	tests := []struct {
		engineStatus string
		want         models.ExecutionStatus
	}{
		{"running", models.ExecutionStatusRunning},
		{"success", models.ExecutionStatusSuccess},
		{"failed", models.ExecutionStatusFailed},
		{"canceled", models.ExecutionStatusCancelled},
		{"waiting", models.ExecutionStatusPending},
		{"crashed", models.ExecutionStatusFailed},
		{"", models.ExecutionStatusFailed},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MapStatus(tt.engineStatus), "engine status %q", tt.engineStatus)
	}
}

func TestDeleteGraph(t *testing.T) {
	var deleted bool

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/api/v1/workflows/engine-wf-1", r.URL.Path)

		deleted = true
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, nil)
	defer client.Close()

	require.NoError(t, client.DeleteGraph(context.Background(), "engine-wf-1"))
	assert.True(t, deleted)
}

func TestWebhookURL(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://engine:5678", WebhookBaseURL: "https://hooks.example.com/"}, nil)
	defer client.Close()

	assert.Equal(t, "https://hooks.example.com/webhook/daily-digest", client.WebhookURL("daily-digest"))
	assert.Equal(t, "https://hooks.example.com/webhook/daily-digest", client.WebhookURL("/daily-digest"))
}

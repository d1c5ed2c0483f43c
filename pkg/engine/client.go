// Package engine talks to the external workflow engine over its REST API:
// deploying translated graphs, triggering executions and fetching execution
// state.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/Butcher-11/SuperAI/pkg/graph"
	"github.com/Butcher-11/SuperAI/pkg/log"
	"github.com/Butcher-11/SuperAI/pkg/otelhelper"
)

const defaultTimeout = 30 * time.Second

// Config holds the connection settings for the workflow engine.
type Config struct {
	// BaseURL is the engine's REST API root, e.g. http://localhost:5678.
	BaseURL string
	// APIKey is sent as a bearer token when non-empty.
	APIKey string
	// WebhookBaseURL is the public base under which the engine exposes
	// webhook endpoints. Falls back to BaseURL when empty.
	WebhookBaseURL string
	// Timeout bounds each request. Zero means the default of 30s.
	Timeout time.Duration
}

// Client is a workflow engine API client. It is safe for concurrent use.
type Client struct {
	baseURL        string
	apiKey         string
	webhookBaseURL string
	httpClient     *http.Client
	logger         *slog.Logger
	tracer         trace.Tracer
}

// NewClient creates an engine client. The tracer may be nil to disable
// span creation.
func NewClient(config Config, tracer trace.Tracer) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	webhookBaseURL := config.WebhookBaseURL
	if webhookBaseURL == "" {
		webhookBaseURL = config.BaseURL
	}

	return &Client{
		baseURL:        strings.TrimRight(config.BaseURL, "/"),
		apiKey:         config.APIKey,
		webhookBaseURL: strings.TrimRight(webhookBaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: log.WithModule("engine"),
		tracer: tracer,
	}
}

// Close releases idle connections held by the client.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// CreateGraph deploys a graph to the engine and activates it, returning the
// engine-side workflow identifier. Activation failures are surfaced: a
// workflow that exists in the engine but never activates would silently drop
// every trigger.
func (c *Client) CreateGraph(ctx context.Context, g *graph.Graph) (string, error) {
	ctx, span := c.startSpan(ctx, "engine.create_graph",
		attribute.String(otelhelper.WorkflowNameKey, g.Name),
	)
	defer span.End()

	body, err := c.doRequest(ctx, "create workflow", http.MethodPost, "/api/v1/workflows", g)
	if err != nil {
		c.setSpanError(span, err)

		return "", err
	}

	engineWorkflowID, err := decodeDataID(body)
	if err != nil {
		c.setSpanError(span, err)

		return "", fmt.Errorf("create workflow: %w", err)
	}

	if err := c.activate(ctx, engineWorkflowID); err != nil {
		c.setSpanError(span, err)

		return "", err
	}

	c.logger.InfoContext(ctx, "Deployed workflow graph to engine",
		"engine_workflow_id", engineWorkflowID,
		"nodes", len(g.Nodes))

	return engineWorkflowID, nil
}

func (c *Client) activate(ctx context.Context, engineWorkflowID string) error {
	path := fmt.Sprintf("/api/v1/workflows/%s/activate", engineWorkflowID)

	_, err := c.doRequest(ctx, "activate workflow", http.MethodPatch, path, map[string]any{
		"active": true,
	})

	return err
}

// DeleteGraph removes a workflow from the engine.
func (c *Client) DeleteGraph(ctx context.Context, engineWorkflowID string) error {
	path := fmt.Sprintf("/api/v1/workflows/%s", engineWorkflowID)

	_, err := c.doRequest(ctx, "delete workflow", http.MethodDelete, path, nil)
	if err != nil {
		return err
	}

	c.logger.InfoContext(ctx, "Deleted workflow graph from engine",
		"engine_workflow_id", engineWorkflowID)

	return nil
}

// TriggerExecution starts an execution of a deployed workflow and returns
// the engine-side execution identifier.
func (c *Client) TriggerExecution(ctx context.Context, engineWorkflowID string, triggerData map[string]any) (string, error) {
	if engineWorkflowID == "" {
		return "", ErrWorkflowNotDeployed
	}

	ctx, span := c.startSpan(ctx, "engine.trigger_execution",
		attribute.String(otelhelper.EngineWorkflowIDKey, engineWorkflowID),
	)
	defer span.End()

	if triggerData == nil {
		triggerData = map[string]any{}
	}

	path := fmt.Sprintf("/api/v1/workflows/%s/execute", engineWorkflowID)

	body, err := c.doRequest(ctx, "execute workflow", http.MethodPost, path, map[string]any{
		"triggerData": triggerData,
	})
	if err != nil {
		c.setSpanError(span, err)

		return "", err
	}

	engineExecutionID, err := decodeDataID(body)
	if err != nil {
		c.setSpanError(span, err)

		return "", fmt.Errorf("execute workflow: %w", err)
	}

	return engineExecutionID, nil
}

// FetchExecutionStatus reads the current state of an engine execution.
func (c *Client) FetchExecutionStatus(ctx context.Context, engineExecutionID string) (*ExecutionSnapshot, error) {
	ctx, span := c.startSpan(ctx, "engine.fetch_execution_status",
		attribute.String(otelhelper.EngineExecutionIDKey, engineExecutionID),
	)
	defer span.End()

	path := fmt.Sprintf("/api/v1/executions/%s", engineExecutionID)

	body, err := c.doRequest(ctx, "fetch execution", http.MethodGet, path, nil)
	if err != nil {
		c.setSpanError(span, err)

		return nil, err
	}

	var envelope struct {
		Data struct {
			Status     string         `json:"status"`
			Data       map[string]any `json:"data"`
			Error      string         `json:"error"`
			FinishedAt string         `json:"finishedAt"`
		} `json:"data"`
	}

	if err := json.Unmarshal(body, &envelope); err != nil {
		c.setSpanError(span, err)

		return nil, fmt.Errorf("fetch execution: decode response: %w", err)
	}

	snapshot := &ExecutionSnapshot{
		EngineStatus: envelope.Data.Status,
		Status:       MapStatus(envelope.Data.Status),
		StepData:     envelope.Data.Data,
		ErrorMessage: envelope.Data.Error,
	}

	if envelope.Data.FinishedAt != "" {
		finishedAt, err := time.Parse(time.RFC3339Nano, envelope.Data.FinishedAt)
		if err != nil {
			c.logger.WarnContext(ctx, "Engine returned unparseable finishedAt",
				"engine_execution_id", engineExecutionID,
				"finished_at", envelope.Data.FinishedAt)
		} else {
			snapshot.FinishedAt = &finishedAt
		}
	}

	return snapshot, nil
}

// WebhookURL returns the public URL the engine listens on for a webhook
// trigger registered under the given path.
func (c *Client) WebhookURL(path string) string {
	return fmt.Sprintf("%s/webhook/%s", c.webhookBaseURL, strings.TrimLeft(path, "/"))
}

func (c *Client) doRequest(ctx context.Context, op, method, path string, payload any) ([]byte, error) {
	var reqBody io.Reader

	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("engine %s: encode request: %w", op, err)
		}

		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("engine %s: create request: %w", op, err)
	}

	req.Header.Set("Accept", "application/json")

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("engine %s: %w: %w", op, ErrEngineUnavailable, err)
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.WarnContext(ctx, "Failed to close engine response body", "error", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("engine %s: read response: %w", op, err)
	}

	if resp.StatusCode >= 400 {
		sentinel := ErrEngineRejected

		switch {
		case resp.StatusCode >= 500:
			sentinel = ErrEngineUnavailable
		case resp.StatusCode == http.StatusNotFound && strings.HasPrefix(path, "/api/v1/executions/"):
			sentinel = ErrExecutionNotFound
		}

		return nil, &RequestError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       truncate(string(body), 512),
			Err:        sentinel,
		}
	}

	return body, nil
}

// decodeDataID extracts data.id from an engine response, tolerating both
// string and numeric identifiers.
func decodeDataID(body []byte) (string, error) {
	var envelope struct {
		Data struct {
			ID any `json:"id"`
		} `json:"data"`
	}

	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	switch id := envelope.Data.ID.(type) {
	case string:
		if id == "" {
			return "", fmt.Errorf("decode response: empty id")
		}

		return id, nil
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("decode response: missing id")
	}
}

func (c *Client) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if c.tracer == nil {
		return noop.NewTracerProvider().Tracer("").Start(ctx, name)
	}

	return otelhelper.StartSpan(ctx, c.tracer, name, attrs...)
}

func (c *Client) setSpanError(span trace.Span, err error) {
	otelhelper.SetError(span, err)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	return s[:limit]
}

package graph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/robfig/cron/v3"

	"github.com/Butcher-11/SuperAI/pkg/models"
)

// Node type tags understood by the engine.
const (
	nodeTypeWebhookTrigger = "n8n-nodes-base.webhook"
	nodeTypeCronTrigger    = "n8n-nodes-base.cron"
	nodeTypeManualTrigger  = "n8n-nodes-base.manualTrigger"
	nodeTypeHTTPRequest    = "n8n-nodes-base.httpRequest"
	nodeTypeSlack          = "n8n-nodes-base.slack"
	nodeTypeGithub         = "n8n-nodes-base.github"
	nodeTypeCompletion     = "n8n-nodes-base.openAi"
	nodeTypeFunction       = "n8n-nodes-base.function"
)

// DefaultCronExpression is applied to schedule triggers with no expression of
// their own: every day at 09:00.
const DefaultCronExpression = "0 9 * * *"

// ErrInvalidCronExpression is returned when a schedule trigger carries an
// expression the engine's scheduler cannot parse.
var ErrInvalidCronExpression = errors.New("invalid cron expression")

// Layout constants for the generated canvas positions.
const (
	triggerPositionX = 250
	stepPositionX    = 450
	basePositionY    = 300
	stepSpacingY     = 180
)

// Translate converts a workflow into the engine's graph representation: one
// trigger node plus one node per step, chained linearly in ascending step
// order. It is a pure function; translating the same workflow state twice
// yields structurally identical graphs.
//
// The dependency edges declared in depends_on are not honored here. The chain
// follows Order alone; acyclicity of depends_on is asserted by step
// validation so the flattening never hides a contradictory graph.
func Translate(workflow *models.Workflow) (*Graph, error) {
	trigger, err := triggerNode(workflow.TriggerType, workflow.TriggerConfig)
	if err != nil {
		return nil, err
	}

	nodes := []*Node{trigger}
	connections := make(map[string]ConnectionSet)

	steps := make([]*models.WorkflowStep, len(workflow.Steps))
	copy(steps, workflow.Steps)
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].Order < steps[j].Order
	})

	previous := trigger.Name

	for i, step := range steps {
		node := stepNode(step, i)
		nodes = append(nodes, node)

		set := connections[previous]
		if set.Main == nil {
			set.Main = [][]Connection{{}}
		}

		set.Main[0] = append(set.Main[0], Connection{
			Node:  node.Name,
			Type:  "main",
			Index: 0,
		})
		connections[previous] = set

		previous = node.Name
	}

	return &Graph{
		Name:        workflow.Name,
		Active:      true,
		Nodes:       nodes,
		Connections: connections,
		Settings: map[string]any{
			"executionOrder": "v1",
		},
		Tags: workflow.Tags,
	}, nil
}

func triggerNode(triggerType models.TriggerType, config map[string]any) (*Node, error) {
	switch triggerType {
	case models.TriggerTypeWebhook:
		return &Node{
			Parameters: map[string]any{
				"httpMethod":   stringValue(config, "method", "POST"),
				"path":         stringValue(config, "path", "webhook"),
				"responseMode": "responseNode",
				"options":      map[string]any{},
			},
			ID:          "trigger-webhook",
			Name:        "Webhook Trigger",
			Type:        nodeTypeWebhookTrigger,
			TypeVersion: 1,
			Position:    [2]int{triggerPositionX, basePositionY},
		}, nil
	case models.TriggerTypeSchedule:
		expr := stringValue(config, "cron", DefaultCronExpression)

		if _, err := cron.ParseStandard(expr); err != nil {
			return nil, fmt.Errorf("schedule trigger %q: %w", expr, ErrInvalidCronExpression)
		}

		return &Node{
			Parameters: map[string]any{
				"rule": map[string]any{
					"interval": []any{
						map[string]any{
							"field":      "cronExpression",
							"expression": expr,
						},
					},
				},
			},
			ID:          "trigger-schedule",
			Name:        "Schedule Trigger",
			Type:        nodeTypeCronTrigger,
			TypeVersion: 1,
			Position:    [2]int{triggerPositionX, basePositionY},
		}, nil
	default:
		// manual, event and anything unrecognized dispatch by hand
		return &Node{
			Parameters:  map[string]any{},
			ID:          "trigger-manual",
			Name:        "Manual Trigger",
			Type:        nodeTypeManualTrigger,
			TypeVersion: 1,
			Position:    [2]int{triggerPositionX, basePositionY},
		}, nil
	}
}

func stepNode(step *models.WorkflowStep, index int) *Node {
	nodeID := fmt.Sprintf("step-%d-%s", index, step.ID)
	positionY := basePositionY + (index+1)*stepSpacingY

	switch step.ActionType {
	case models.ActionTypeAPICall:
		method := stringValue(step.Config, "method", "GET")

		return &Node{
			Parameters: map[string]any{
				"url":           stringValue(step.Config, "url", ""),
				"requestMethod": method,
				"sendHeaders":   true,
				"headerParameters": map[string]any{
					"parameters": listValue(step.Config, "headers"),
				},
				"sendBody": methodHasBody(method),
				"bodyParameters": map[string]any{
					"parameters": listValue(step.Config, "body"),
				},
			},
			ID:          nodeID,
			Name:        step.Name,
			Type:        nodeTypeHTTPRequest,
			TypeVersion: 4.1,
			Position:    [2]int{stepPositionX, positionY},
		}
	case models.ActionTypeIntegrationAction:
		return integrationNode(step, nodeID, positionY)
	case models.ActionTypeAIProcess:
		return &Node{
			Parameters: map[string]any{
				"model": stringValue(step.Config, "model", "gpt-4"),
				"messages": map[string]any{
					"values": []any{
						map[string]any{
							"role":    "user",
							"content": stringValue(step.Config, "prompt", ""),
						},
					},
				},
			},
			ID:          nodeID,
			Name:        step.Name,
			Type:        nodeTypeCompletion,
			TypeVersion: 1.3,
			Position:    [2]int{stepPositionX, positionY},
		}
	default:
		// data transforms, notifications and unknown kinds run as a
		// scriptable passthrough
		return &Node{
			Parameters: map[string]any{
				"functionCode": stringValue(step.Config, "code", "return items;"),
			},
			ID:          nodeID,
			Name:        step.Name,
			Type:        nodeTypeFunction,
			TypeVersion: 1,
			Position:    [2]int{stepPositionX, positionY},
		}
	}
}

func integrationNode(step *models.WorkflowStep, nodeID string, positionY int) *Node {
	switch stringValue(step.Config, "integration_type", "") {
	case "slack":
		return &Node{
			Parameters: map[string]any{
				"authentication": "oAuth2",
				"resource":       "message",
				"operation":      stringValue(step.Config, "operation", "post"),
				"channel":        stringValue(step.Config, "channel", ""),
				"text":           stringValue(step.Config, "text", ""),
			},
			ID:          nodeID,
			Name:        step.Name,
			Type:        nodeTypeSlack,
			TypeVersion: 2.1,
			Position:    [2]int{stepPositionX, positionY},
		}
	case "github":
		return &Node{
			Parameters: map[string]any{
				"authentication": "oAuth2",
				"resource":       "issue",
				"operation":      stringValue(step.Config, "operation", "create"),
				"owner":          stringValue(step.Config, "owner", ""),
				"repository":     stringValue(step.Config, "repository", ""),
				"title":          stringValue(step.Config, "title", ""),
				"body":           stringValue(step.Config, "body", ""),
			},
			ID:          nodeID,
			Name:        step.Name,
			Type:        nodeTypeGithub,
			TypeVersion: 1.2,
			Position:    [2]int{stepPositionX, positionY},
		}
	default:
		// integrations without a dedicated node run as a plain HTTP call
		return &Node{
			Parameters: map[string]any{
				"url":           stringValue(step.Config, "url", ""),
				"requestMethod": stringValue(step.Config, "method", "POST"),
			},
			ID:          nodeID,
			Name:        step.Name,
			Type:        nodeTypeHTTPRequest,
			TypeVersion: 4.1,
			Position:    [2]int{stepPositionX, positionY},
		}
	}
}

func methodHasBody(method string) bool {
	switch method {
	case "POST", "PUT", "PATCH":
		return true
	default:
		return false
	}
}

func stringValue(config map[string]any, key, fallback string) string {
	if value, ok := config[key].(string); ok && value != "" {
		return value
	}

	return fallback
}

func listValue(config map[string]any, key string) []any {
	if value, ok := config[key].([]any); ok {
		return value
	}

	return []any{}
}

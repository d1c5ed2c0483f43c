package models

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Per-action-type JSON Schemas for step config. These guard the fields the
// graph translator reads so that malformed configs fail at validation time
// instead of producing a graph the engine rejects.
var stepConfigSchemas = map[ActionType]map[string]any{
	ActionTypeAPICall: {
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{"type": "string", "minLength": 1},
			"method": map[string]any{
				"type": "string",
				"enum": []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
			},
			"headers": map[string]any{"type": "array"},
			"body":    map[string]any{"type": "array"},
		},
		"required": []string{"url"},
	},
	ActionTypeAIProcess: {
		"type": "object",
		"properties": map[string]any{
			"model":  map[string]any{"type": "string"},
			"prompt": map[string]any{"type": "string"},
		},
	},
	ActionTypeIntegrationAction: {
		"type": "object",
		"properties": map[string]any{
			"integration_type": map[string]any{"type": "string"},
			"operation":        map[string]any{"type": "string"},
		},
	},
	ActionTypeDataTransform: {
		"type": "object",
		"properties": map[string]any{
			"code": map[string]any{"type": "string"},
		},
	},
	ActionTypeNotification: {
		"type": "object",
		"properties": map[string]any{
			"code": map[string]any{"type": "string"},
		},
	},
}

func validateStepConfig(step *WorkflowStep) error {
	schema, ok := stepConfigSchemas[step.ActionType]
	if !ok {
		return nil
	}

	config := step.Config
	if config == nil {
		config = map[string]any{}
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(config)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("step %s: config schema validation: %w", step.ID, err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return newStepFault(step.ID, "config does not match %s schema: %s",
			step.ActionType, strings.Join(details, "; "))
	}

	return nil
}

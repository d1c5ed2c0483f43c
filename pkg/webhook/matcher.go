// Package webhook routes incoming integration webhooks to the workflows
// subscribed to them.
package webhook

import (
	"github.com/Butcher-11/SuperAI/pkg/models"
)

// payloadTypeKeys are the fields, in precedence order, that integrations use
// to name the event a payload carries.
var payloadTypeKeys = []string{"type", "action", "event_type"}

// Matches reports whether a webhook payload should trigger the workflow. A
// workflow that names an expected event type in its trigger config only
// matches payloads carrying that type; a workflow with no expectation
// matches every payload of its integration.
func Matches(workflow *models.Workflow, payload map[string]any) bool {
	expected, ok := workflow.TriggerConfig["event_type"].(string)
	if !ok || expected == "" {
		return true
	}

	return payloadEventType(payload) == expected
}

func payloadEventType(payload map[string]any) string {
	for _, key := range payloadTypeKeys {
		if value, ok := payload[key].(string); ok && value != "" {
			return value
		}
	}

	return ""
}

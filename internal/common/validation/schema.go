// internal/common/validation/schema.go

// Package validation checks inbound payloads against JSON schemas before any
// handler sees them. Invalid payloads are dropped by the caller, never
// propagated.
package validation

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// envelopeSchema validates the real-time event envelope.
var envelopeSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"event", "payload"},
	"properties": map[string]interface{}{
		"event": map[string]interface{}{
			"type": "string",
			"enum": []interface{}{"notification:new", "notification:read", "notification:count"},
		},
		"payload": map[string]interface{}{
			"type": "object",
		},
	},
}

// notificationPayloadSchema validates the payload of notification:new.
var notificationPayloadSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"id", "type"},
	"properties": map[string]interface{}{
		"id":       map[string]interface{}{"type": "string", "minLength": 1},
		"type":     map[string]interface{}{"type": "string", "minLength": 1},
		"title":    map[string]interface{}{"type": "string"},
		"message":  map[string]interface{}{"type": "string"},
		"priority": map[string]interface{}{
			"type": "string",
			"enum": []interface{}{"urgent", "high", "medium", "low"},
		},
		"channel": map[string]interface{}{"type": "string"},
		"status":  map[string]interface{}{"type": "string"},
	},
}

// templateSchema validates template create/update requests.
var templateSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"name", "type", "message"},
	"properties": map[string]interface{}{
		"name":     map[string]interface{}{"type": "string", "minLength": 1},
		"category": map[string]interface{}{"type": "string"},
		"type":     map[string]interface{}{"type": "string", "minLength": 1},
		"subject":  map[string]interface{}{"type": "string"},
		"title":    map[string]interface{}{"type": "string"},
		"message":  map[string]interface{}{"type": "string", "minLength": 1},
		"channels": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
		"variables": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"name", "type"},
				"properties": map[string]interface{}{
					"name": map[string]interface{}{"type": "string", "minLength": 1},
					"type": map[string]interface{}{
						"type": "string",
						"enum": []interface{}{"string", "number", "date", "boolean", "currency"},
					},
					"required": map[string]interface{}{"type": "boolean"},
				},
			},
		},
	},
}

func validate(schemaMap map[string]interface{}, data map[string]interface{}) error {
	schemaLoader := gojsonschema.NewGoLoader(schemaMap)
	documentLoader := gojsonschema.NewGoLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("data validation failed: %v", errs)
	}

	return nil
}

// ValidateEnvelope checks a decoded event envelope.
func ValidateEnvelope(data map[string]interface{}) error {
	return validate(envelopeSchema, data)
}

// ValidateNotificationPayload checks the payload of a notification:new event.
func ValidateNotificationPayload(data map[string]interface{}) error {
	return validate(notificationPayloadSchema, data)
}

// ValidateTemplate checks a template create/update request body.
func ValidateTemplate(data map[string]interface{}) error {
	return validate(templateSchema, data)
}

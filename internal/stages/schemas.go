package stages

import "encoding/json"

// Response schemas handed to the text-generation capability. The schema
// title names the artifact and is what the deterministic simulator keys on.

var requirementsSchema = json.RawMessage(`{
	"title": "requirements",
	"type": "object",
	"required": ["sensitivity", "frameworks", "stack_needs"],
	"properties": {
		"sensitivity": {"type": "string", "enum": ["none", "PII", "PHI", "PCI"]},
		"frameworks": {"type": "array", "items": {"type": "string"}},
		"stack_needs": {"type": "array", "items": {"type": "string"}},
		"scale_hint": {"type": "string"},
		"summary": {"type": "string"}
	}
}`)

var manifestSchema = json.RawMessage(`{
	"title": "architecture_manifest",
	"type": "object",
	"required": ["project_name", "services"],
	"properties": {
		"project_name": {"type": "string"},
		"description": {"type": "string"},
		"services": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name", "role"],
				"properties": {
					"name": {"type": "string"},
					"service_id": {"type": "string"},
					"role": {"type": "string"},
					"region": {"type": "string"},
					"plan": {"type": "string"}
				}
			}
		},
		"networking": {"type": "object", "additionalProperties": {"type": "boolean"}},
		"security": {"type": "object", "additionalProperties": {"type": "boolean"}}
	}
}`)

var kitSchema = json.RawMessage(`{
	"title": "deployment_kit",
	"type": "object",
	"required": ["files"],
	"properties": {
		"files": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name", "content", "category"],
				"properties": {
					"name": {"type": "string"},
					"content": {"type": "string"},
					"category": {"type": "string", "enum": ["infrastructure", "application", "documentation"]}
				}
			}
		}
	}
}`)

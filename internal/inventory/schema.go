package inventory

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

// payloadSchema describes the collector output contract. Top level must be
// an object; every known key is optional but type-checked when present.
// Unknown keys are allowed so newer probes can talk to older servers.
func payloadSchema() *jsonschema.Schema {
	stringArray := &jsonschema.Schema{
		Type:  "array",
		Items: &jsonschema.Schema{Type: "string"},
	}
	symbolMap := &jsonschema.Schema{
		Type: "object",
		AdditionalProperties: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"docs":   {Type: "string"},
				"source": {Type: "string"},
			},
		},
	}
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"apps": {
				Type: "array",
				Items: &jsonschema.Schema{
					Type: "object",
					Properties: map[string]*jsonschema.Schema{
						"label":         {Type: "string"},
						"path":          {Type: "string"},
						"template_dirs": stringArray.CloneSchemas(),
						"static_dirs":   stringArray.CloneSchemas(),
						"models":        stringArray.CloneSchemas(),
					},
					Required: []string{"label"},
				},
			},
			"tags_filters": {
				Type: "object",
				AdditionalProperties: &jsonschema.Schema{
					Type: "object",
					Properties: map[string]*jsonschema.Schema{
						"tags":    symbolMap.CloneSchemas(),
						"filters": symbolMap.CloneSchemas(),
					},
				},
			},
			"templates": {
				Type: "array",
				Items: &jsonschema.Schema{
					Type: "object",
					Properties: map[string]*jsonschema.Schema{
						"key":     {Type: "string"},
						"app":     {Type: "string"},
						"path":    {Type: "string"},
						"extends": {Type: "string"},
						"blocks":  stringArray.CloneSchemas(),
						"context": {
							Type:                 "object",
							AdditionalProperties: &jsonschema.Schema{Type: "string"},
						},
					},
					Required: []string{"key"},
				},
			},
			"urls": {
				Type: "array",
				Items: &jsonschema.Schema{
					Type: "object",
					Properties: map[string]*jsonschema.Schema{
						"name":    {Type: "string"},
						"app":     {Type: "string"},
						"pattern": {Type: "string"},
						"params":  stringArray.CloneSchemas(),
						"source":  {Type: "string"},
					},
					Required: []string{"name"},
				},
			},
			"static_files":       stringArray.CloneSchemas(),
			"file_watcher_globs": stringArray.CloneSchemas(),
			"global_template_context": {
				Type:                 "object",
				AdditionalProperties: &jsonschema.Schema{Type: "string"},
			},
			"object_types": {
				Type: "object",
				AdditionalProperties: &jsonschema.Schema{
					Type: "object",
					Properties: map[string]*jsonschema.Schema{
						"fields": stringArray.CloneSchemas(),
					},
				},
			},
		},
	}
}

var resolveSchema = sync.OnceValues(func() (*jsonschema.Resolved, error) {
	return payloadSchema().Resolve(nil)
})

// validateSchema checks a raw collector payload against the contract.
func validateSchema(raw []byte) error {
	resolved, err := resolveSchema()
	if err != nil {
		return fmt.Errorf("resolve payload schema: %w", err)
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return fmt.Errorf("payload is not valid JSON: %w", err)
	}
	if _, ok := value.(map[string]any); !ok {
		return fmt.Errorf("payload must be a JSON object")
	}
	if err := resolved.Validate(value); err != nil {
		return fmt.Errorf("payload violates collector contract: %w", err)
	}
	return nil
}

// Package tools is the dispatch layer between the conversational driver
// and the persistence operations. Each operation is a named, typed tool
// the driver may invoke once it has gathered every required field
// through dialogue; the executor validates that contract defensively
// before anything touches disk.
package tools

import (
	"encoding/json"
	"fmt"

	"github.com/BaSui01/intake/record"
	"github.com/BaSui01/intake/types"
)

// Schema defines a tool's interface for LLM function calling.
type Schema struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

type parameterSpec struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

type parametersDoc struct {
	Type                 string                   `json:"type"`
	Properties           map[string]parameterSpec `json:"properties"`
	Required             []string                 `json:"required"`
	AdditionalProperties bool                     `json:"additionalProperties"`
}

// BuildParameters generates the JSON Schema parameter document for a
// record schema. Every field is required; there are no optional
// arguments (the conversational policy must gather all of them before
// the call).
func BuildParameters(rs *record.Schema) (json.RawMessage, error) {
	doc := parametersDoc{
		Type:       "object",
		Properties: make(map[string]parameterSpec, len(rs.Fields())),
	}
	for _, f := range rs.Fields() {
		jsonType := "string"
		if f.Type == types.FieldInt {
			jsonType = "integer"
		}
		doc.Properties[f.Name] = parameterSpec{
			Type:        jsonType,
			Description: f.Description,
		}
		doc.Required = append(doc.Required, f.Name)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal parameters for %s: %w", rs.Kind, err)
	}
	return data, nil
}

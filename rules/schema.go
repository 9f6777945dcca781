package rules

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// SchemaID identifies the registry schema.
const SchemaID = "https://github.com/lerlerchan/ExamOps-Orchestrator/schemas/registry.json"

// Schema returns the JSON schema of a template registry file. Editors use it
// to validate registry YAML; the field names are the YAML keys.
func Schema() ([]byte, error) {
	r := &jsonschema.Reflector{
		FieldNameTag:   "yaml",
		ExpandedStruct: true,
	}
	schema := r.Reflect(&registryFile{})
	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "ExamOps template registry"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}

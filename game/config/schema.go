package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/wricardo/parcel-run/game/engine"
)

const levelSchemaURL = "parcel-run://level.schema.json"

// levelSchema describes the raw level document before grid semantics are checked
const levelSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "Parcel Run level",
  "type": "object",
  "required": ["initial_fuel", "hint_battery", "map_grid"],
  "properties": {
    "level_name": {"type": "string"},
    "initial_fuel": {"type": "integer", "minimum": 0},
    "hint_battery": {"type": "integer", "minimum": 0},
    "map_grid": {
      "type": "array",
      "minItems": 1,
      "maxItems": 64,
      "items": {"type": "string", "minLength": 1, "maxLength": 64}
    }
  }
}`

func compileLevelSchema() (*jsonschema.Schema, error) {
	schema, err := jsonschema.CompileString(levelSchemaURL, levelSchema)
	if err != nil {
		return nil, fmt.Errorf("compile level schema: %w", err)
	}
	return schema, nil
}

// validateDocument checks a decoded JSON value against the schema and turns
// the most specific failure into a level validation error
func validateDocument(schema *jsonschema.Schema, doc any) error {
	err := schema.Validate(doc)
	if err == nil {
		return nil
	}
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return fmt.Errorf("%w: %v", engine.ErrInvalidLevel, err)
	}
	leaf := leafCause(verr)
	field := strings.TrimPrefix(leaf.InstanceLocation, "/")
	if field == "" {
		field = "level"
	}
	return &engine.ValidationError{Field: field, Reason: leaf.Message}
}

// leafCause follows the first cause chain down to the innermost failure
func leafCause(err *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(err.Causes) > 0 {
		err = err.Causes[0]
	}
	return err
}

// decodeJSON decodes JSON keeping numbers exact, as the schema validator expects
func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

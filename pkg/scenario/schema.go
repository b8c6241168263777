package scenario

import (
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// scenarioSchema is the JSON Schema every scenario file must satisfy.
// Missing required keys are fatal at load time, not runtime judge outcomes.
const scenarioSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["scenario_id", "meta", "locations", "objects", "characters"],
  "properties": {
    "scenario_id": {"type": "string", "minLength": 1},
    "meta": {
      "type": "object",
      "required": ["time", "weather"],
      "properties": {
        "time": {"type": "string"},
        "weather": {"type": "string"}
      }
    },
    "locations": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "name", "description", "exits"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "name": {"type": "string"},
          "description": {"type": "string"},
          "exits": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["target"],
              "properties": {
                "target": {"type": "string", "minLength": 1},
                "description": {"type": "string"}
              }
            }
          }
        }
      }
    },
    "objects": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "name", "aliases", "location", "owner", "properties"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "name": {"type": "string"},
          "aliases": {"type": "array", "items": {"type": "string"}},
          "location": {"type": "string", "minLength": 1},
          "owner": {"type": "string", "minLength": 1},
          "properties": {"type": "array", "items": {"type": "string"}}
        }
      }
    },
    "characters": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "name", "location_id"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "name": {"type": "string"},
          "location_id": {"type": "string", "minLength": 1}
        }
      }
    }
  }
}`

var compiledSchema = jsonschema.MustCompileString("scenario.schema.json", scenarioSchema)

// ValidateDocument checks a raw scenario document against the schema.
func ValidateDocument(raw []byte) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return newError(CodeSchemaInvalid, nil, "scenario file is not valid JSON: %v", err)
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return newError(CodeSchemaInvalid, nil, "scenario schema violation: %v", err)
	}
	return nil
}

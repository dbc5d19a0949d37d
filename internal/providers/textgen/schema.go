package textgen

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const structuredContentSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["title", "structure"],
  "properties": {
    "title": {"type": "string", "minLength": 1},
    "summary": {"type": "string"},
    "structure": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["type"],
        "properties": {
          "type": {
            "type": "string",
            "enum": ["heading", "subheading", "paragraph", "bullet_list", "key_term", "visual_placeholder"]
          },
          "content": {"type": "string"},
          "items": {"type": "array", "items": {"type": "string"}},
          "placeholderId": {"type": "string"}
        },
        "allOf": [
          {
            "if": {"properties": {"type": {"const": "bullet_list"}}},
            "then": {"required": ["items"]}
          },
          {
            "if": {"properties": {"type": {"const": "visual_placeholder"}}},
            "then": {"required": ["placeholderId"]}
          },
          {
            "if": {"properties": {"type": {"enum": ["heading", "subheading", "paragraph", "key_term"]}}},
            "then": {"required": ["content"], "properties": {"content": {"minLength": 1}}}
          }
        ]
      }
    },
    "visualOpportunities": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["placeholderId", "description", "searchQuery"],
        "properties": {
          "placeholderId": {"type": "string", "minLength": 1},
          "description": {"type": "string", "minLength": 1},
          "searchQuery": {"type": "string", "minLength": 1}
        }
      }
    }
  }
}`

var compiledSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("structured_content.json", strings.NewReader(structuredContentSchema)); err != nil {
		panic(fmt.Sprintf("textgen: add schema resource: %v", err))
	}
	schema, err := compiler.Compile("structured_content.json")
	if err != nil {
		panic(fmt.Sprintf("textgen: compile schema: %v", err))
	}
	return schema
}

// ValidateStructuredJSON checks a raw model payload against the
// structured-content schema. A validation failure means the response
// is unusable and the caller should treat the provider attempt as
// failed.
func ValidateStructuredJSON(raw string) error {
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return fmt.Errorf("structured content is not valid JSON: %w", err)
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return fmt.Errorf("structured content failed schema validation: %w", err)
	}
	return nil
}

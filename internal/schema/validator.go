package schema

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/lk-keep-fighting/jsonpage/model"
)

// pageSchema is the structural contract a page file must satisfy before
// normalization. Cross-field rules (form refs, column presence after the
// models merge) are checked by Normalize instead.
const pageSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id", "type"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "type": {"type": "string", "enum": ["table"]},
    "title": {"type": "string"},
    "description": {"type": "string"},
    "dataSource": {"$ref": "#/definitions/dataSource"},
    "filters": {"type": "array", "items": {"$ref": "#/definitions/filter"}},
    "headerActions": {"type": "array", "items": {"$ref": "#/definitions/action"}},
    "table": {"$ref": "#/definitions/table"},
    "models": {"type": "object"}
  },
  "definitions": {
    "dataSource": {
      "type": "object",
      "required": ["type"],
      "properties": {
        "type": {"type": "string", "enum": ["static", "remote"]},
        "data": {"type": "array", "items": {"type": "object"}},
        "endpoint": {"type": "string"},
        "method": {"type": "string", "enum": ["GET", "POST", "PUT", "PATCH", "DELETE"]}
      }
    },
    "filter": {
      "type": "object",
      "required": ["id", "field", "type"],
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "field": {"type": "string", "minLength": 1},
        "type": {"type": "string", "enum": ["text", "number", "select", "boolean", "date-range"]}
      }
    },
    "action": {
      "type": "object",
      "required": ["id", "behavior"],
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "scope": {"type": "string", "enum": ["global", "row", "bulk"]},
        "behavior": {
          "type": "object",
          "required": ["type"],
          "properties": {
            "type": {"type": "string", "enum": ["api", "link"]}
          }
        },
        "form": {"$ref": "#/definitions/form"}
      }
    },
    "form": {
      "type": "object",
      "required": ["fields"],
      "properties": {
        "fields": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["id", "type"],
            "properties": {
              "id": {"type": "string", "minLength": 1},
              "type": {
                "type": "string",
                "enum": ["text", "textarea", "password", "number", "select",
                         "radio", "multi-select", "checkbox", "date", "time", "datetime"]
              }
            }
          }
        }
      }
    },
    "table": {
      "type": "object",
      "properties": {
        "columns": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["id", "dataIndex"],
            "properties": {
              "id": {"type": "string", "minLength": 1},
              "dataIndex": {"type": "string", "minLength": 1}
            }
          }
        },
        "rowActions": {"type": "array", "items": {"$ref": "#/definitions/action"}},
        "bulkActions": {"type": "array", "items": {"$ref": "#/definitions/action"}}
      }
    }
  }
}`

// Validator checks page files against the structural JSON schema.
type Validator struct {
	schema *gojsonschema.Schema
}

// NewValidator compiles the page schema.
func NewValidator() (*Validator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(pageSchema))
	if err != nil {
		return nil, fmt.Errorf("compiling page schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Validate reports every schema violation found in the page.
func (v *Validator) Validate(page *model.PageConfig) error {
	result, err := v.schema.Validate(gojsonschema.NewGoLoader(page))
	if err != nil {
		return fmt.Errorf("validating page: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		msgs = append(msgs, re.String())
	}
	return fmt.Errorf("page %q is invalid: %s", page.ID, strings.Join(msgs, "; "))
}

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-yaml"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/localtaskrepo/lotar/pkg/vocabulary"
)

// configSchemaJSON constrains the canonical nested config form. Unknown
// top-level sections and section keys are rejected with positions so
// config validate can point at typos.
const configSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "server": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "port": {"type": "integer", "minimum": 1, "maximum": 65535}
      }
    },
    "default": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "project": {"type": "string"},
        "prefix": {"type": "string", "pattern": "^[A-Z0-9_-]{1,20}$"},
        "assignee": {"type": "string"},
        "reporter": {"type": "string"},
        "priority": {"type": "string"},
        "status": {"type": "string"}
      }
    },
    "issue": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "states": {"type": "array", "items": {"type": "string"}, "minItems": 1},
        "types": {"type": "array", "items": {"type": "string"}, "minItems": 1},
        "priorities": {"type": "array", "items": {"type": "string"}, "minItems": 1}
      }
    },
    "custom": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "tags": {"type": "array", "items": {"type": "string"}},
        "fields": {"type": "array", "items": {"type": "string"}}
      }
    },
    "scan": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "enable": {"type": "boolean"},
        "signal_words": {"type": "boolean"},
        "ticket_words": {"type": "boolean"},
        "strip_attributes": {"type": "boolean"}
      }
    },
    "auto": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "set_reporter": {"type": "boolean"},
        "assign_on_status": {"type": "boolean"}
      }
    },
    "branch": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "status_aliases": {"type": "object", "additionalProperties": {"type": "string"}},
        "type_aliases": {"type": "object", "additionalProperties": {"type": "string"}},
        "priority_aliases": {"type": "object", "additionalProperties": {"type": "string"}}
      }
    },
    "sprint": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "defaults": {
          "type": "object",
          "additionalProperties": false,
          "properties": {
            "length": {"type": "string"},
            "capacity_points": {"type": "number", "minimum": 0},
            "capacity_hours": {"type": "number", "minimum": 0},
            "overdue_after": {"type": "string"}
          }
        },
        "notifications": {
          "type": "object",
          "additionalProperties": false,
          "properties": {
            "enabled": {"type": "boolean"}
          }
        }
      }
    },
    "project": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "name": {"type": "string"}
      }
    }
  }
}`

// ValidateFile checks a config file against the canonical schema. A missing
// file validates trivially. Returned messages include the instance location
// and, for unknown keys, the nearest accepted section key.
func ValidateFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &IoError{Path: path, Op: "read", Err: err}
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	if raw == nil {
		return nil, nil
	}
	doc := normalizeForSchema(expandDottedKeys(raw))

	schema, err := compiledConfigSchema()
	if err != nil {
		return nil, err
	}

	err = schema.Validate(doc)
	if err == nil {
		return nil, nil
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return []string{err.Error()}, nil
	}

	var problems []string
	for _, cause := range flattenCauses(verr) {
		problems = append(problems, formatCause(cause))
	}
	return problems, nil
}

// unknownKeyPattern pulls the quoted property names out of an
// additionalProperties validation message.
var unknownKeyPattern = regexp.MustCompile("['\"]([^'\"]+)['\"]")

// suggestForCause enriches an unknown-key cause with the nearest accepted
// key at that schema location, in the "Did you mean" phrasing the rest of
// the CLI uses.
func suggestForCause(cause *jsonschema.ValidationError) string {
	// Message wording varies between validator versions; compare with
	// spacing stripped so both renderings match.
	message := strings.ReplaceAll(strings.ToLower(cause.Error()), " ", "")
	if !strings.Contains(message, "additionalpropert") || !strings.Contains(message, "notallowed") {
		return ""
	}

	// The error may anchor at the object or at the offending key itself.
	accepted := acceptedKeysAt(cause.InstanceLocation)
	if len(accepted) == 0 && len(cause.InstanceLocation) > 0 {
		accepted = acceptedKeysAt(cause.InstanceLocation[:len(cause.InstanceLocation)-1])
	}
	if len(accepted) == 0 {
		return ""
	}

	var suggestions []string
	for _, match := range unknownKeyPattern.FindAllStringSubmatch(cause.Error(), -1) {
		invalid := match[1]
		if closest, distance := vocabulary.ClosestMatch(invalid, accepted); distance < len(invalid)/2+1 {
			suggestions = append(suggestions, closest)
		}
	}

	switch len(suggestions) {
	case 0:
		return fmt.Sprintf("Valid keys are: %s.", strings.Join(accepted, ", "))
	case 1:
		return fmt.Sprintf("Did you mean %q?", suggestions[0])
	default:
		return fmt.Sprintf("Did you mean: %s?", strings.Join(suggestions, ", "))
	}
}

// acceptedKeysAt walks the embedded schema document to the properties
// accepted at the given instance location.
func acceptedKeysAt(location []string) []string {
	var doc any
	if err := json.Unmarshal([]byte(configSchemaJSON), &doc); err != nil {
		return nil
	}

	node, ok := doc.(map[string]any)
	if !ok {
		return nil
	}
	for _, step := range location {
		properties, ok := node["properties"].(map[string]any)
		if !ok {
			return nil
		}
		node, ok = properties[step].(map[string]any)
		if !ok {
			return nil
		}
	}

	properties, ok := node["properties"].(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(properties))
	for key := range properties {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

var (
	configSchemaOnce     sync.Once
	configSchemaCompiled *jsonschema.Schema
	configSchemaErr      error
)

// compiledConfigSchema compiles the embedded schema once and caches it.
func compiledConfigSchema() (*jsonschema.Schema, error) {
	configSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()

		var schemaDoc any
		if err := json.Unmarshal([]byte(configSchemaJSON), &schemaDoc); err != nil {
			configSchemaErr = fmt.Errorf("parse config schema: %w", err)
			return
		}
		if err := compiler.AddResource("http://localtaskrepo.dev/config-schema.json", schemaDoc); err != nil {
			configSchemaErr = fmt.Errorf("add config schema resource: %w", err)
			return
		}
		configSchemaCompiled, configSchemaErr = compiler.Compile("http://localtaskrepo.dev/config-schema.json")
	})
	return configSchemaCompiled, configSchemaErr
}

// flattenCauses walks the validation error tree to its leaves.
func flattenCauses(err *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(err.Causes) == 0 {
		return []*jsonschema.ValidationError{err}
	}
	var leaves []*jsonschema.ValidationError
	for _, cause := range err.Causes {
		leaves = append(leaves, flattenCauses(cause)...)
	}
	return leaves
}

func formatCause(cause *jsonschema.ValidationError) string {
	location := "/" + strings.Join(cause.InstanceLocation, "/")
	message := fmt.Sprintf("%s: %s", location, cause.Error())
	if suggestion := suggestForCause(cause); suggestion != "" {
		message += " " + suggestion
	}
	return message
}

// normalizeForSchema converts YAML's map[any]any shapes into the
// map[string]any form the schema validator expects.
func normalizeForSchema(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeForSchema(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalizeForSchema(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeForSchema(item)
		}
		return out
	case int:
		return int64(val)
	case uint64:
		return int64(val)
	default:
		return val
	}
}

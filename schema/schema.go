// Package schema validates decoded JSON documents against a JSON Schema
// subset. It guards the persisted todo layout so that stored records are
// checked strictly instead of being coerced.
package schema

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Validate checks a decoded JSON value (as produced by encoding/json into
// `any`) against schema. A nil schema accepts everything.
//
// Supported keywords:
//   - type (string, number, integer, boolean, object, array, null)
//   - properties, required, additionalProperties (bool)
//   - items
//   - minLength, maxLength, pattern
//   - format (date-time, uuid)
func Validate(schema map[string]any, value any) error {
	if schema == nil {
		return nil
	}
	return validateValue(schema, value, "$")
}

// Error locates a schema violation inside the document.
type Error struct {
	Path   string
	Reason string
}

func (e *Error) Error() string {
	return e.Path + ": " + e.Reason
}

func fail(path, format string, args ...any) error {
	return &Error{Path: path, Reason: fmt.Sprintf(format, args...)}
}

func validateValue(schema map[string]any, value any, path string) error {
	if t, ok := schema["type"].(string); ok {
		if err := checkType(t, value, path); err != nil {
			return err
		}
	}

	switch v := value.(type) {
	case map[string]any:
		return validateObject(schema, v, path)
	case []any:
		return validateArray(schema, v, path)
	case string:
		return validateString(schema, v, path)
	}
	return nil
}

func checkType(expected string, value any, path string) error {
	actual := jsonType(value)
	switch {
	case actual == expected:
		return nil
	case expected == "number" && actual == "integer":
		return nil
	case expected == "integer" && actual == "number":
		if f, ok := value.(float64); ok && f == float64(int64(f)) {
			return nil
		}
	}
	return fail(path, "expected type %q, got %q", expected, actual)
}

func jsonType(v any) string {
	switch n := v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case json.Number:
		if _, err := n.Int64(); err == nil {
			return "integer"
		}
		return "number"
	case int, int64:
		return "integer"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func validateObject(schema map[string]any, obj map[string]any, path string) error {
	if req, ok := schema["required"].([]any); ok {
		for _, r := range req {
			field, ok := r.(string)
			if !ok {
				continue
			}
			if _, exists := obj[field]; !exists {
				return fail(path, "missing required field %q", field)
			}
		}
	}

	props, _ := schema["properties"].(map[string]any)
	for field, propSchema := range props {
		val, exists := obj[field]
		if !exists {
			continue
		}
		ps, ok := propSchema.(map[string]any)
		if !ok {
			continue
		}
		if err := validateValue(ps, val, path+"."+field); err != nil {
			return err
		}
	}

	if ap, ok := schema["additionalProperties"].(bool); ok && !ap {
		var extra []string
		for field := range obj {
			if _, defined := props[field]; !defined {
				extra = append(extra, field)
			}
		}
		if len(extra) > 0 {
			return fail(path, "additional properties not allowed: %s", strings.Join(extra, ", "))
		}
	}
	return nil
}

func validateArray(schema map[string]any, arr []any, path string) error {
	itemSchema, ok := schema["items"].(map[string]any)
	if !ok {
		return nil
	}
	for i, elem := range arr {
		if err := validateValue(itemSchema, elem, fmt.Sprintf("%s[%d]", path, i)); err != nil {
			return err
		}
	}
	return nil
}

func validateString(schema map[string]any, s string, path string) error {
	if v, ok := toInt(schema["minLength"]); ok && len(s) < v {
		return fail(path, "string length %d is less than minLength %d", len(s), v)
	}
	if v, ok := toInt(schema["maxLength"]); ok && len(s) > v {
		return fail(path, "string length %d is greater than maxLength %d", len(s), v)
	}
	if p, ok := schema["pattern"].(string); ok {
		re, err := regexp.Compile(p)
		if err != nil {
			return fail(path, "invalid pattern %q: %v", p, err)
		}
		if !re.MatchString(s) {
			return fail(path, "%q does not match pattern %q", s, p)
		}
	}
	if f, ok := schema["format"].(string); ok {
		return checkFormat(f, s, path)
	}
	return nil
}

func checkFormat(format, s, path string) error {
	switch format {
	case "date-time":
		if _, err := time.Parse(time.RFC3339Nano, s); err != nil {
			return fail(path, "%q is not an RFC 3339 date-time", s)
		}
	case "uuid":
		if _, err := uuid.Parse(s); err != nil {
			return fail(path, "%q is not a uuid", s)
		}
	}
	return nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

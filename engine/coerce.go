package engine

import (
	"strconv"

	"github.com/mcpframe/mcp-frame-go/mcp"
)

// maxArgumentKeys bounds the size of a tools/call arguments object.
const maxArgumentKeys = 100

// coerceArguments validates and coerces an argument map against the tool's
// cached input schema. Missing required parameters are reported with their
// schema fragment; type mismatches name the offending parameter.
func coerceArguments(schema mcp.ToolInputSchema, args map[string]any) (map[string]any, error) {
	for _, req := range schema.Required {
		if _, ok := args[req]; !ok {
			var fragment any
			if prop, ok := schema.Properties[req]; ok {
				fragment = prop
			}
			return nil, missingParamError(req, fragment)
		}
	}

	out := make(map[string]any, len(args))
	for name, v := range args {
		prop, ok := schema.Properties[name]
		if !ok {
			// Unknown keys pass through; typed decode enforces the per-tool
			// unknown-field policy.
			out[name] = v
			continue
		}
		cv, err := coerceValue(name, prop, v)
		if err != nil {
			return nil, err
		}
		out[name] = cv
	}
	return out, nil
}

func coerceValue(name string, prop mcp.SchemaProperty, v any) (any, error) {
	coerced, err := coerceType(name, prop, v)
	if err != nil {
		return nil, err
	}
	if len(prop.Enum) > 0 && !enumContains(prop.Enum, coerced) {
		return nil, paramValidationError(name, "one of enum", v)
	}
	return coerced, nil
}

func coerceType(name string, prop mcp.SchemaProperty, v any) (any, error) {
	switch prop.Type {
	case "", "object":
		if prop.Type == "object" {
			m, ok := v.(map[string]any)
			if !ok {
				return nil, paramValidationError(name, "object", v)
			}
			if len(prop.Properties) == 0 {
				return m, nil
			}
			sub := mcp.ToolInputSchema{Type: "object", Properties: prop.Properties, Required: prop.Required}
			return coerceArguments(sub, m)
		}
		return v, nil

	case "string":
		s, ok := v.(string)
		if !ok {
			return nil, paramValidationError(name, "string", v)
		}
		return s, nil

	case "integer":
		switch n := v.(type) {
		case float64:
			if n != float64(int64(n)) {
				return nil, paramValidationError(name, "integer", v)
			}
			return int64(n), nil
		case int, int64:
			return n, nil
		case string:
			if i, err := strconv.ParseInt(n, 10, 64); err == nil {
				return i, nil
			}
			return nil, paramValidationError(name, "integer", v)
		default:
			return nil, paramValidationError(name, "integer", v)
		}

	case "number":
		switch n := v.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case string:
			if f, err := strconv.ParseFloat(n, 64); err == nil {
				return f, nil
			}
			return nil, paramValidationError(name, "number", v)
		default:
			return nil, paramValidationError(name, "number", v)
		}

	case "boolean":
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			if p, err := strconv.ParseBool(b); err == nil {
				return p, nil
			}
			return nil, paramValidationError(name, "boolean", v)
		default:
			return nil, paramValidationError(name, "boolean", v)
		}

	case "array":
		arr, ok := v.([]any)
		if !ok {
			return nil, paramValidationError(name, "array", v)
		}
		if prop.Items == nil {
			return arr, nil
		}
		out := make([]any, len(arr))
		for i, item := range arr {
			cv, err := coerceValue(name, *prop.Items, item)
			if err != nil {
				return nil, err
			}
			out[i] = cv
		}
		return out, nil

	default:
		return v, nil
	}
}

func enumContains(enum []any, v any) bool {
	for _, e := range enum {
		if equalScalar(e, v) {
			return true
		}
	}
	return false
}

// equalScalar compares enum members loosely across the numeric types that
// coercion produces.
func equalScalar(a, b any) bool {
	if a == b {
		return true
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	return aok && bok && af == bf
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

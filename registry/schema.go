package registry

import (
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/mcpframe/mcp-frame-go/mcp"
)

// reflectInputSchema derives the MCP input schema for a typed argument struct.
// Reflection happens once, at tool construction.
func reflectInputSchema[A any]() (schema mcp.ToolInputSchema, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrUnsupportedParameterType, r)
		}
	}()

	r := &jsonschema.Reflector{
		DoNotReference: true, // inline defs
		ExpandedStruct: true, // put struct at root
	}
	s := r.Reflect(new(A))

	// Only object schemas map cleanly to a tool input schema. A non-struct A
	// yields an empty, closed object.
	if s == nil || s.Type != "object" {
		return mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]mcp.SchemaProperty{},
		}, nil
	}

	props := make(map[string]mcp.SchemaProperty)
	if s.Properties != nil {
		for el := s.Properties.Oldest(); el != nil; el = el.Next() {
			props[el.Key] = toSchemaProperty(el.Value)
		}
	}
	var required []string
	if len(s.Required) > 0 {
		required = append(required, s.Required...)
	}

	var defs map[string]mcp.SchemaProperty
	if len(s.Definitions) > 0 {
		defs = make(map[string]mcp.SchemaProperty, len(s.Definitions))
		for name, d := range s.Definitions {
			defs[name] = toSchemaProperty(d)
		}
	}

	return mcp.ToolInputSchema{
		Type:       "object",
		Properties: props,
		Required:   required,
		Defs:       defs,
	}, nil
}

// reflectOutputSchema derives the structuredContent schema for a typed output.
func reflectOutputSchema[O any]() (schema mcp.ToolOutputSchema, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrUnsupportedParameterType, r)
		}
	}()

	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	s := r.Reflect(new(O))
	if s == nil || s.Type != "object" {
		return mcp.ToolOutputSchema{Type: "object", Properties: map[string]mcp.SchemaProperty{}}, nil
	}
	props := make(map[string]mcp.SchemaProperty)
	if s.Properties != nil {
		for el := s.Properties.Oldest(); el != nil; el = el.Next() {
			props[el.Key] = toSchemaProperty(el.Value)
		}
	}
	var required []string
	if len(s.Required) > 0 {
		required = append(required, s.Required...)
	}
	return mcp.ToolOutputSchema{Type: "object", Properties: props, Required: required}, nil
}

// toSchemaProperty recursively maps a jsonschema node to the simplified MCP
// schema shape.
func toSchemaProperty(s *jsonschema.Schema) mcp.SchemaProperty {
	if s == nil {
		return mcp.SchemaProperty{}
	}
	p := mcp.SchemaProperty{
		Type:        s.Type,
		Description: s.Description,
		Ref:         s.Ref,
	}
	if len(s.Enum) > 0 {
		p.Enum = s.Enum
	}
	if s.Type == "array" && s.Items != nil {
		item := toSchemaProperty(s.Items)
		p.Items = &item
	}
	if s.Type == "object" && s.Properties != nil {
		m := make(map[string]mcp.SchemaProperty, s.Properties.Len())
		for el := s.Properties.Oldest(); el != nil; el = el.Next() {
			m[el.Key] = toSchemaProperty(el.Value)
		}
		p.Properties = m
		if len(s.Required) > 0 {
			p.Required = append(p.Required, s.Required...)
		}
	}
	return p
}

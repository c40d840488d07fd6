package schema

import (
	"github.com/elee1766/dextra/src/aisdk"
	jsonschema "github.com/swaggest/jsonschema-go"
)

func simple(t string) *jsonschema.Type {
	st := jsonschema.SimpleType(t)
	return &jsonschema.Type{SimpleTypes: &st}
}

// CreateStringSchema creates a JSON schema for a string field
func CreateStringSchema(description string) *jsonschema.Schema {
	s := &jsonschema.Schema{Type: simple("string")}
	if description != "" {
		s.Description = &description
	}
	return s
}

// CreateBoolSchema creates a JSON schema for a boolean field with default value
func CreateBoolSchema(description string, defaultValue bool) *jsonschema.Schema {
	defVal := interface{}(defaultValue)
	return &jsonschema.Schema{
		Type:        simple("boolean"),
		Description: &description,
		Default:     &defVal,
	}
}

// CreateObjectSchema creates a JSON schema for an object with properties and required fields
func CreateObjectSchema(properties map[string]*jsonschema.Schema, required []string) *jsonschema.Schema {
	props := make(map[string]jsonschema.SchemaOrBool, len(properties))
	for name, prop := range properties {
		props[name] = jsonschema.SchemaOrBool{TypeObject: prop}
	}
	return &jsonschema.Schema{
		Type:       simple("object"),
		Properties: props,
		Required:   required,
	}
}

// CreateArraySchema creates a JSON schema for an array whose items match items
func CreateArraySchema(description string, items *jsonschema.Schema) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        simple("array"),
		Description: &description,
		Items:       &jsonschema.Items{SchemaOrBool: &jsonschema.SchemaOrBool{TypeObject: items}},
	}
}

// Closed disallows properties not listed in s, as strict structured output
// requires.
func Closed(s *jsonschema.Schema) *jsonschema.Schema {
	s.AdditionalProperties = &jsonschema.SchemaOrBool{TypeBoolean: new(bool)}
	return s
}

// ResponseFormat wraps s as a strict json_schema response format.
func ResponseFormat(name string, s *jsonschema.Schema) *aisdk.ResponseFormat {
	return &aisdk.ResponseFormat{
		Type: "json_schema",
		JSONSchema: &aisdk.ResponseSchema{
			Name:   name,
			Strict: true,
			Schema: s,
		},
	}
}

// StringList is the object schema {"<field>": string[]} with the field required.
func StringList(field, description string) *jsonschema.Schema {
	return Closed(CreateObjectSchema(map[string]*jsonschema.Schema{
		field: CreateArraySchema(description, CreateStringSchema("")),
	}, []string{field}))
}

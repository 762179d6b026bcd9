package mcp

import (
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// convertJSONSchemaToGenai converts JSON Schema to Gemini genai.Schema
func convertJSONSchemaToGenai(schema *jsonschema.Schema) (*genai.Schema, error) {
	if schema == nil {
		return nil, nil
	}

	genaiSchema := &genai.Schema{
		Description: schema.Description,
	}
	if len(schema.Default) > 0 {
		var def any
		if err := json.Unmarshal(schema.Default, &def); err != nil {
			return nil, goerr.Wrap(err, "failed to decode default value")
		}
		genaiSchema.Default = def
	}

	typ := schema.Type
	if typ == "" && len(schema.Types) > 0 {
		// ["string", "null"] style nullable types
		for _, t := range schema.Types {
			if t == "null" {
				genaiSchema.Nullable = genai.Ptr(true)
				continue
			}
			typ = t
		}
	}

	switch typ {
	case "object":
		genaiSchema.Type = genai.TypeObject
	case "string":
		genaiSchema.Type = genai.TypeString
	case "number":
		genaiSchema.Type = genai.TypeNumber
	case "integer":
		genaiSchema.Type = genai.TypeInteger
	case "boolean":
		genaiSchema.Type = genai.TypeBoolean
	case "array":
		genaiSchema.Type = genai.TypeArray
	case "":
	default:
		return nil, goerr.New("unsupported schema type", goerr.V("type", typ))
	}

	if len(schema.Enum) > 0 {
		genaiSchema.Enum = make([]string, 0, len(schema.Enum))
		for _, v := range schema.Enum {
			if s, ok := v.(string); ok {
				genaiSchema.Enum = append(genaiSchema.Enum, s)
			}
		}
	}

	if len(schema.Properties) > 0 {
		genaiSchema.Properties = make(map[string]*genai.Schema, len(schema.Properties))
		for name, propSchema := range schema.Properties {
			converted, err := convertJSONSchemaToGenai(propSchema)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to convert property schema",
					goerr.V("property", name))
			}
			genaiSchema.Properties[name] = converted
		}
	}

	if len(schema.Required) > 0 {
		genaiSchema.Required = schema.Required
	}

	if schema.Items != nil {
		converted, err := convertJSONSchemaToGenai(schema.Items)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to convert items schema")
		}
		genaiSchema.Items = converted
	}

	return genaiSchema, nil
}

// convertGenaiToJSONSchema converts a Gemini parameter schema to JSON Schema.
// A nil schema becomes an empty object schema because MCP requires tool input
// to be an object.
func convertGenaiToJSONSchema(schema *genai.Schema) (*jsonschema.Schema, error) {
	if schema == nil {
		return &jsonschema.Schema{Type: "object"}, nil
	}

	js := &jsonschema.Schema{
		Description: schema.Description,
	}
	if schema.Default != nil {
		raw, err := json.Marshal(schema.Default)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to encode default value")
		}
		js.Default = raw
	}

	switch schema.Type {
	case genai.TypeObject:
		js.Type = "object"
	case genai.TypeString:
		js.Type = "string"
	case genai.TypeNumber:
		js.Type = "number"
	case genai.TypeInteger:
		js.Type = "integer"
	case genai.TypeBoolean:
		js.Type = "boolean"
	case genai.TypeArray:
		js.Type = "array"
	case genai.TypeUnspecified, "":
	default:
		return nil, goerr.New("unsupported schema type", goerr.V("type", schema.Type))
	}

	if schema.Nullable != nil && *schema.Nullable && js.Type != "" {
		js.Types = []string{js.Type, "null"}
		js.Type = ""
	}

	for _, v := range schema.Enum {
		js.Enum = append(js.Enum, v)
	}

	if len(schema.Properties) > 0 {
		js.Properties = make(map[string]*jsonschema.Schema, len(schema.Properties))
		for name, prop := range schema.Properties {
			converted, err := convertGenaiToJSONSchema(prop)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to convert property schema",
					goerr.V("property", name))
			}
			js.Properties[name] = converted
		}
	}

	if len(schema.Required) > 0 {
		js.Required = schema.Required
	}

	if schema.Items != nil {
		converted, err := convertGenaiToJSONSchema(schema.Items)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to convert items schema")
		}
		js.Items = converted
	}

	return js, nil
}

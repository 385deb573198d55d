package llm

import (
	"encoding/json"

	"github.com/sashabaranov/go-openai/jsonschema"
	"google.golang.org/genai"

	"github.com/ahrav/go-veriai/internal/ports"
)

// toGenaiSchema converts a provider-neutral schema into Gemini's response schema.
func toGenaiSchema(s *ports.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:             genaiType(s.Type),
		Description:      s.Description,
		Enum:             s.Enum,
		Required:         s.Required,
		PropertyOrdering: s.PropertyOrdering,
		Items:            toGenaiSchema(s.Items),
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toGenaiSchema(prop)
		}
	}
	return out
}

func genaiType(t ports.SchemaType) genai.Type {
	switch t {
	case ports.SchemaObject:
		return genai.TypeObject
	case ports.SchemaArray:
		return genai.TypeArray
	case ports.SchemaString:
		return genai.TypeString
	case ports.SchemaNumber:
		return genai.TypeNumber
	case ports.SchemaInteger:
		return genai.TypeInteger
	case ports.SchemaBoolean:
		return genai.TypeBoolean
	default:
		return genai.TypeUnspecified
	}
}

// toJSONSchema converts a provider-neutral schema into the JSON Schema
// definition used by OpenAI structured outputs.
func toJSONSchema(s *ports.Schema) jsonschema.Definition {
	if s == nil {
		return jsonschema.Definition{}
	}
	out := jsonschema.Definition{
		Type:        jsonschema.DataType(s.Type),
		Description: s.Description,
		Enum:        s.Enum,
		Required:    s.Required,
	}
	if s.Items != nil {
		items := toJSONSchema(s.Items)
		out.Items = &items
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]jsonschema.Definition, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toJSONSchema(prop)
		}
	}
	return out
}

// schemaInstruction renders a schema as a prompt suffix for providers that
// have no native structured-output mode.
func schemaInstruction(s *ports.Schema) (string, error) {
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", err
	}
	return "\n\nRespond with a single JSON object and no other text. " +
		"The object must match this JSON Schema:\n" + string(raw), nil
}

package llm

import (
	"fmt"
	"strings"
)

// OutputSchema describes the JSON object a structured prompt asks for.
type OutputSchema struct {
	Name        string
	Description string // task preamble placed before the structure
	Fields      []SchemaField
}

// SchemaField is one field of an OutputSchema.
type SchemaField struct {
	Name        string
	Type        string // type hint shown to the model, e.g. `["string"]`
	Description string
	Required    bool
}

// BuildStructuredPrompt renders the schema's preamble, the expected JSON
// structure, and the input text into a single prompt.
func BuildStructuredPrompt(schema OutputSchema, input string) string {
	var sb strings.Builder

	sb.WriteString(schema.Description)
	sb.WriteString("\n\nReturn ONLY valid JSON matching this exact structure:\n{\n")
	for i, f := range schema.Fields {
		typeHint := f.Type
		if typeHint == "" {
			typeHint = `"string"`
		}
		sb.WriteString(fmt.Sprintf("  %q: %s", f.Name, typeHint))
		if f.Required {
			sb.WriteString(" (required)")
		}
		if f.Description != "" {
			sb.WriteString(" // " + f.Description)
		}
		if i < len(schema.Fields)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}\n\nReturn ONLY the JSON object, no markdown, no explanation.\n\n")

	sb.WriteString("Input:\n\"\"\"\n")
	sb.WriteString(input)
	sb.WriteString("\n\"\"\"\n")
	return sb.String()
}

// QueryListSchema asks for a list of search questions under "queries".
func QueryListSchema(description string) OutputSchema {
	return OutputSchema{
		Name:        "QueryList",
		Description: description,
		Fields: []SchemaField{
			{
				Name:        "queries",
				Type:        `["string"]`,
				Description: "one natural question per entry, no numbering",
				Required:    true,
			},
		},
	}
}

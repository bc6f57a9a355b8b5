// Package llm - extractor.go builds structured-output prompts.
package llm

import (
	"fmt"
	"strings"

	"github.com/Vartmor/CADLift-sub001/internal/prompts"
)

// promptFile holds the instruction text of the CAD prompts.
const promptFile = "cad.json"

// ExtractionSchema describes the JSON document a prompt asks the model for.
type ExtractionSchema struct {
	Name        string        // Schema name, used in logs
	Description string        // Task preamble
	Fields      []SchemaField // Expected output fields
	Rules       []string      // Extra constraints listed after the structure
}

// SchemaField defines a single field in the extraction output.
type SchemaField struct {
	Name        string // JSON field name
	Type        string // Type hint rendered verbatim
	Description string
	Required    bool
}

// BuildExtractionPrompt constructs the prompt from schema and input text.
// Empty input omits the input section, as for image-only requests.
func BuildExtractionPrompt(schema ExtractionSchema, inputText string) string {
	var sb strings.Builder

	sb.WriteString(schema.Description)
	sb.WriteString("\n\n")

	sb.WriteString("Return ONLY valid JSON matching this exact structure:\n{\n")
	for i, field := range schema.Fields {
		typeHint := field.Type
		if typeHint == "" {
			typeHint = "string"
		}
		requiredHint := ""
		if field.Required {
			requiredHint = " (required)"
		}
		sb.WriteString(fmt.Sprintf("  \"%s\": %s%s", field.Name, typeHint, requiredHint))
		if field.Description != "" {
			sb.WriteString(fmt.Sprintf(" // %s", field.Description))
		}
		if i < len(schema.Fields)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}\n\n")

	sb.WriteString("IMPORTANT:\n")
	for _, rule := range schema.Rules {
		sb.WriteString("- ")
		sb.WriteString(rule)
		sb.WriteString("\n")
	}
	sb.WriteString("- Return ONLY the JSON object, no markdown, no explanation, no code blocks.\n")

	if inputText != "" {
		sb.WriteString("\nInput text:\n\"\"\"\n")
		sb.WriteString(inputText)
		sb.WriteString("\n\"\"\"\n")
	}
	return sb.String()
}

// withFeedback appends the validation failure of a previous answer so the
// model can correct it.
func withFeedback(prompt, previous string, err error) string {
	return prompt + prompts.Format(prompts.MustGet(promptFile, "rejected-answer"), map[string]string{
		"Previous": previous,
		"Reason":   err.Error(),
	})
}

// --- Predefined Schemas ---

// ContourSchema asks for the closed outlines of the shapes in an image.
func ContourSchema() ExtractionSchema {
	return ExtractionSchema{
		Name:        "Contours",
		Description: prompts.MustGet(promptFile, "contour-description"),
		Fields: []SchemaField{
			{Name: "width", Type: "number", Description: "image width in pixels"},
			{Name: "height", Type: "number", Description: "image height in pixels"},
			{
				Name:        "polygons",
				Type:        "[[[x, y], ...], ...]",
				Description: "one list of vertices per shape, in order, without repeating the first vertex",
				Required:    true,
			},
		},
		Rules: []string{
			"Each polygon must have at least three vertices.",
			"Ignore background, text, and shading.",
			"Do not describe holes as separate polygons.",
		},
	}
}

// ProgramSchema asks for a parametric instruction program describing a prompt.
func ProgramSchema() ExtractionSchema {
	return ExtractionSchema{
		Name:        "Program",
		Description: prompts.MustGet(promptFile, "program-description"),
		Fields: []SchemaField{
			{
				Name:        "instructions",
				Type:        "[instruction, ...]",
				Description: "the program, in execution order",
				Required:    true,
			},
		},
		Rules: []string{
			"Every id must be unique and defined before it is referenced.",
			"An id consumed by union or difference cannot be referenced again.",
			"All sizes, radii, and heights must be positive.",
		},
	}
}

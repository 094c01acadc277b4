package domain

import "context"

// Generator is a structured-output text generation provider.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (Generation, error)
}

// Image is an inline image attached to a generation request.
type Image struct {
	Data     []byte
	MimeType string
}

// GenerateRequest is one model call. Schema, when set, constrains the output to JSON of that shape.
type GenerateRequest struct {
	// Operation labels the call in logs and metrics ("extract", "rerank", "repair").
	Operation   string
	System      string
	Prompt      string
	Images      []Image
	Temperature float32
	MaxTokens   int
	SchemaName  string
	Schema      *Schema
}

// Generation is the raw model output with token usage when the provider reports it.
type Generation struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// SchemaType is a JSON schema type.
type SchemaType string

// JSON schema types understood by every provider adapter.
const (
	SchemaObject  SchemaType = "object"
	SchemaArray   SchemaType = "array"
	SchemaString  SchemaType = "string"
	SchemaNumber  SchemaType = "number"
	SchemaBoolean SchemaType = "boolean"
)

// Schema is the provider-neutral subset of JSON schema used for structured output. Provider
// adapters translate it into their native schema types.
type Schema struct {
	Type        SchemaType         `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Minimum     *float64           `json:"minimum,omitempty"`
	Maximum     *float64           `json:"maximum,omitempty"`
}

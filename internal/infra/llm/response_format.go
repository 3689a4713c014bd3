package llm

// FormatJSONSchema is the structured-output response format type.
const FormatJSONSchema = "json_schema"

// ResponseFormat is the provider's structured-output directive.
type ResponseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *JSONSchema `json:"json_schema,omitempty"`
}

// JSONSchema names a schema the model output must follow.
type JSONSchema struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
	Strict *bool          `json:"strict,omitempty"`
}

// OutputSchema is the shorthand form: a named schema without the wrapper.
type OutputSchema struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
	Strict *bool          `json:"strict,omitempty"`
}

// ResolveResponseFormat reconciles an explicit format and the shorthand into one directive.
// The explicit format always wins; nil, nil means no directive is sent.
func ResolveResponseFormat(explicit *ResponseFormat, shorthand *OutputSchema) (*ResponseFormat, error) {
	if explicit != nil {
		if explicit.Type == FormatJSONSchema && (explicit.JSONSchema == nil || len(explicit.JSONSchema.Schema) == 0) {
			return nil, ErrResponseFormatSchemaMissing
		}
		return explicit, nil
	}
	if shorthand == nil {
		return nil, nil
	}
	if shorthand.Name == "" || len(shorthand.Schema) == 0 {
		return nil, ErrOutputSchemaIncomplete
	}
	return &ResponseFormat{
		Type: FormatJSONSchema,
		JSONSchema: &JSONSchema{
			Name:   shorthand.Name,
			Schema: shorthand.Schema,
			Strict: shorthand.Strict,
		},
	}, nil
}

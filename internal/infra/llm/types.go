// Package llm normalizes chat-completion requests and invokes the completion provider.
// Callers build an InvokeParams from loosely shaped input; everything sent on the wire
// goes through the normalizers in this package first.
package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Message roles understood by the provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
	RoleFunction  = "function"
)

// Content part types accepted by the provider.
const (
	PartText     = "text"
	PartImageURL = "image_url"
	PartFileURL  = "file_url"
)

// ImageURL is the payload of an image_url content part.
type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// FileURL is the payload of a file_url content part.
type FileURL struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type,omitempty"`
}

// ContentPart is one typed piece of message content.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
	FileURL  *FileURL  `json:"file_url,omitempty"`
}

// InputPart is one item of caller-supplied content: either a bare string or a part object.
// Raw keeps a decoded object exactly as received, unknown fields included.
type InputPart struct {
	Bare string
	Part *ContentPart
	Raw  json.RawMessage
}

// IsBare reports whether the part was supplied as a plain string.
func (p InputPart) IsBare() bool { return p.Part == nil }

// Content is the caller-side message content. It decodes from a JSON string,
// a single part object, or an array mixing strings and part objects.
type Content []InputPart

// Text builds content from a single string.
func Text(s string) Content { return Content{{Bare: s}} }

// Parts builds content from part objects.
func Parts(parts ...ContentPart) Content {
	out := make(Content, len(parts))
	for i := range parts {
		p := parts[i]
		out[i] = InputPart{Part: &p}
	}
	return out
}

// UnmarshalJSON accepts a string, an object or an array of either.
func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = nil
		return nil
	}
	if data[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		out := make(Content, 0, len(raw))
		for _, item := range raw {
			part, err := decodeInputPart(item)
			if err != nil {
				return err
			}
			out = append(out, part)
		}
		*c = out
		return nil
	}
	part, err := decodeInputPart(data)
	if err != nil {
		return err
	}
	*c = Content{part}
	return nil
}

func decodeInputPart(data []byte) (InputPart, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return InputPart{}, err
		}
		return InputPart{Bare: s}, nil
	}
	if len(data) == 0 || data[0] != '{' {
		return InputPart{}, fmt.Errorf("message content must be a string or an object")
	}
	var p ContentPart
	if err := json.Unmarshal(data, &p); err != nil {
		return InputPart{}, err
	}
	var raw bytes.Buffer
	if err := json.Compact(&raw, data); err != nil {
		return InputPart{}, err
	}
	return InputPart{Part: &p, Raw: raw.Bytes()}, nil
}

// Message is a caller-side conversation turn prior to normalization.
type Message struct {
	Role       string  `json:"role"`
	Content    Content `json:"content"`
	Name       string  `json:"name,omitempty"`
	ToolCallID string  `json:"tool_call_id,omitempty"`
}

// WireMessage is the canonical message shape sent to the provider.
// Content holds either a string or a []ContentPart.
type WireMessage struct {
	Role       string `json:"role"`
	Name       string `json:"name,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
	Content    any    `json:"content"`
}

// FunctionDef describes a callable function exposed to the model.
type FunctionDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// Tool is a tool declaration forwarded verbatim to the provider.
type Tool struct {
	Type     string      `json:"type"`
	Function FunctionDef `json:"function"`
}

// FunctionChoice is the provider's explicit "call this function" directive.
type FunctionChoice struct {
	Type     string       `json:"type"`
	Function FunctionName `json:"function"`
}

// FunctionName names a function inside a FunctionChoice.
type FunctionName struct {
	Name string `json:"name"`
}

// Thinking carries the extended-reasoning budget hint.
type Thinking struct {
	BudgetTokens int `json:"budget_tokens"`
}

// CompletionRequest is the normalized body POSTed to the completion endpoint.
type CompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []WireMessage   `json:"messages"`
	Tools          []Tool          `json:"tools,omitempty"`
	ToolChoice     any             `json:"tool_choice,omitempty"`
	MaxTokens      int             `json:"max_tokens"`
	Thinking       Thinking        `json:"thinking"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// InvokeParams is everything a caller may supply for one completion.
// ResponseFormat wins over OutputSchema when both are set.
type InvokeParams struct {
	Messages       []Message       `json:"messages"`
	Tools          []Tool          `json:"tools,omitempty"`
	ToolChoice     *ToolChoice     `json:"tool_choice,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
	OutputSchema   *OutputSchema   `json:"output_schema,omitempty"`
}

// ModelMeta describes the model / provider identity.
type ModelMeta struct {
	ID        string
	Provider  string
	MaxTokens int
}

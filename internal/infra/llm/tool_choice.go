package llm

import (
	"bytes"
	"encoding/json"
)

// Tool-choice modes.
const (
	ToolChoiceAuto     = "auto"
	ToolChoiceNone     = "none"
	ToolChoiceRequired = "required"
)

// ToolChoice is the caller's tool-choice intent: a mode string, a named tool,
// or any other JSON shape kept in Raw. Named marks a named tool even when Name
// is empty.
type ToolChoice struct {
	Mode  string
	Name  string
	Named bool
	Raw   json.RawMessage
}

// ChooseMode returns a mode-based tool choice.
func ChooseMode(mode string) *ToolChoice { return &ToolChoice{Mode: mode} }

// ChooseTool returns a tool choice naming one tool.
func ChooseTool(name string) *ToolChoice { return &ToolChoice{Name: name, Named: true} }

// UnmarshalJSON accepts "auto"/"none"/"required", {"name": "..."} or anything else.
func (tc *ToolChoice) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &tc.Mode)
	}
	var named struct {
		Name *string `json:"name"`
	}
	if len(data) > 0 && data[0] == '{' {
		if err := json.Unmarshal(data, &named); err == nil && named.Name != nil {
			tc.Name = *named.Name
			tc.Named = true
			return nil
		}
	}
	tc.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// ResolveToolChoice maps the caller's intent onto the provider representation.
// The result is nil, a mode string, a FunctionChoice, or the raw JSON passed through.
func ResolveToolChoice(tc *ToolChoice, tools []Tool) (any, error) {
	if tc == nil {
		return nil, nil
	}
	switch {
	case tc.Named:
		return functionChoice(tc.Name), nil
	case tc.Mode == ToolChoiceRequired:
		if len(tools) == 0 {
			return nil, ErrToolChoiceNoTools
		}
		if len(tools) > 1 {
			return nil, ErrToolChoiceAmbiguous
		}
		return functionChoice(tools[0].Function.Name), nil
	case tc.Mode != "":
		return tc.Mode, nil
	case len(tc.Raw) > 0:
		return tc.Raw, nil
	default:
		return nil, nil
	}
}

func functionChoice(name string) FunctionChoice {
	return FunctionChoice{Type: "function", Function: FunctionName{Name: name}}
}

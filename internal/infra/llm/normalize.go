package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// NormalizeMessages converts every caller message into its wire shape.
// It fails on the first unsupported part and returns no partial result.
func NormalizeMessages(msgs []Message) ([]WireMessage, error) {
	out := make([]WireMessage, 0, len(msgs))
	for i, m := range msgs {
		wm, err := NormalizeMessage(m)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		out = append(out, wm)
	}
	return out, nil
}

// NormalizeMessage converts one caller message into its wire shape.
//
// Tool and function messages are flattened to a newline-joined string. For the
// other roles a single text part collapses to a plain string.
func NormalizeMessage(m Message) (WireMessage, error) {
	if m.Role == RoleTool || m.Role == RoleFunction {
		text, err := flattenContent(m.Content)
		if err != nil {
			return WireMessage{}, err
		}
		return WireMessage{Role: m.Role, Name: m.Name, ToolCallID: m.ToolCallID, Content: text}, nil
	}

	parts := make([]ContentPart, 0, len(m.Content))
	for _, in := range m.Content {
		p, err := normalizePart(in)
		if err != nil {
			return WireMessage{}, err
		}
		parts = append(parts, p)
	}

	if len(parts) == 1 && parts[0].Type == PartText {
		return WireMessage{Role: m.Role, Name: m.Name, Content: parts[0].Text}, nil
	}
	return WireMessage{Role: m.Role, Name: m.Name, Content: parts}, nil
}

func normalizePart(in InputPart) (ContentPart, error) {
	if in.IsBare() {
		return ContentPart{Type: PartText, Text: in.Bare}, nil
	}
	switch in.Part.Type {
	case PartText, PartImageURL, PartFileURL:
		return *in.Part, nil
	default:
		return ContentPart{}, fmt.Errorf("%w: %q", ErrUnsupportedContentPart, in.Part.Type)
	}
}

// flattenContent joins tool or function content into one string. Decoded
// parts are written as received so fields ContentPart does not model survive.
func flattenContent(c Content) (string, error) {
	lines := make([]string, 0, len(c))
	for _, in := range c {
		if in.IsBare() {
			lines = append(lines, in.Bare)
			continue
		}
		if len(in.Raw) > 0 {
			lines = append(lines, string(in.Raw))
			continue
		}
		b, err := json.Marshal(in.Part)
		if err != nil {
			return "", fmt.Errorf("encode tool content part: %w", err)
		}
		lines = append(lines, string(b))
	}
	return strings.Join(lines, "\n"), nil
}

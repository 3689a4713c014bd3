package llm

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

const (
	defaultEncoding = "cl100k_base"
	// per-message framing overhead (role, separators) and reply priming
	tokensPerMessage = 4
	tokensPerReply   = 3
)

// TokenCounter estimates prompt sizes. It uses a BPE encoding when one can be
// loaded and falls back to a four-characters-per-token heuristic otherwise.
type TokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTokenCounter loads the cl100k_base encoding. A load failure is not fatal;
// the returned counter uses the heuristic and the error is reported for logging.
func NewTokenCounter() (*TokenCounter, error) {
	enc, err := tiktoken.GetEncoding(defaultEncoding)
	if err != nil {
		return &TokenCounter{}, err
	}
	return &TokenCounter{enc: enc}, nil
}

// CountText returns the token estimate for one string.
func (t *TokenCounter) CountText(text string) int {
	if t == nil || t.enc == nil {
		return heuristicTokens(text)
	}
	return len(t.enc.Encode(text, nil, nil))
}

// CountMessages estimates the prompt size of a normalized conversation.
func (t *TokenCounter) CountMessages(msgs []WireMessage) int {
	total := tokensPerReply
	for _, m := range msgs {
		total += tokensPerMessage + t.CountText(m.Role)
		switch c := m.Content.(type) {
		case string:
			total += t.CountText(c)
		case []ContentPart:
			for _, p := range c {
				total += t.CountText(p.Text)
			}
		}
	}
	return total
}

func heuristicTokens(text string) int {
	n := len(strings.TrimSpace(text))
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}

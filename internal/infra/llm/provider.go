// Provider abstraction so the chat domain is never coupled to one completion vendor.
package llm

import (
	"context"
	"encoding/json"
)

// Provider performs chat completions.
type Provider interface {
	// Complete sends one completion request and returns the raw JSON response body.
	Complete(ctx context.Context, p InvokeParams) (json.RawMessage, error)

	// ModelInfo returns static metadata about the provider/model.
	ModelInfo() ModelMeta
}

var _ Provider = (*Client)(nil)

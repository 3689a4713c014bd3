package llm

import (
	"errors"
	"fmt"
)

// ErrMissingAPIKey is returned when no provider API key is configured.
var ErrMissingAPIKey = errors.New("llm: provider API key is not configured")

// Input-shape errors. All of them satisfy IsInputError.
var (
	ErrUnsupportedContentPart      = errors.New("unsupported message content part")
	ErrToolChoiceNoTools           = errors.New("tool_choice 'required' was provided but no tools were configured")
	ErrToolChoiceAmbiguous         = errors.New("tool_choice 'required' needs a single tool or specify the tool name explicitly")
	ErrResponseFormatSchemaMissing = errors.New("response_format json_schema requires a defined schema object")
	ErrOutputSchemaIncomplete      = errors.New("output_schema requires both name and schema")
)

var inputErrors = []error{
	ErrUnsupportedContentPart,
	ErrToolChoiceNoTools,
	ErrToolChoiceAmbiguous,
	ErrResponseFormatSchemaMissing,
	ErrOutputSchemaIncomplete,
}

// IsInputError reports whether err was caused by a malformed caller request.
func IsInputError(err error) bool {
	for _, target := range inputErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// HTTPError is returned when the provider answers with a non-2xx status.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("llm invoke failed: %s", e.Status)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

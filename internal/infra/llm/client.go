// Completion client for OpenAI-compatible /v1/chat/completions endpoints.
// The client normalizes the request, performs exactly one POST and hands the
// decoded body back untouched; extracting the assistant text is the caller's job.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	// DefaultEndpoint is used when no base URL is configured.
	DefaultEndpoint       = "https://forge.manus.im/v1/chat/completions"
	completionPath        = "/v1/chat/completions"
	DefaultModel          = "gemini-2.5-flash"
	DefaultMaxTokens      = 32768
	DefaultThinkingBudget = 128

	mimeJSON          = "application/json"
	headerContentType = "Content-Type"
	maxErrorBodyBytes = 64 << 10
)

// ErrInvalidResponse is returned when a 2xx body is not valid JSON.
var ErrInvalidResponse = errors.New("llm: provider returned a non-JSON body")

// ClientConfig configures a Client. Zero values fall back to the package defaults.
type ClientConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	MaxTokens      int
	ThinkingBudget int
	// HTTPClient defaults to a client without a timeout; the request context bounds the call.
	HTTPClient *http.Client
}

// Client implements Provider against the configured completion endpoint.
type Client struct {
	endpoint       string
	apiKey         string
	model          string
	maxTokens      int
	thinkingBudget int
	httpClient     *http.Client
}

// NewClient creates a Client from cfg.
func NewClient(cfg ClientConfig) *Client {
	c := &Client{
		endpoint:       resolveEndpoint(cfg.BaseURL),
		apiKey:         cfg.APIKey,
		model:          cfg.Model,
		maxTokens:      cfg.MaxTokens,
		thinkingBudget: cfg.ThinkingBudget,
		httpClient:     cfg.HTTPClient,
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.maxTokens <= 0 {
		c.maxTokens = DefaultMaxTokens
	}
	if c.thinkingBudget <= 0 {
		c.thinkingBudget = DefaultThinkingBudget
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	return c
}

// resolveEndpoint appends the completion path to baseURL, or returns DefaultEndpoint when blank.
func resolveEndpoint(baseURL string) string {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return DefaultEndpoint
	}
	return strings.TrimRight(baseURL, "/") + completionPath
}

// Endpoint returns the URL requests are sent to.
func (c *Client) Endpoint() string { return c.endpoint }

// ModelInfo returns static metadata for the configured model.
func (c *Client) ModelInfo() ModelMeta {
	return ModelMeta{ID: c.model, Provider: "openai-compatible", MaxTokens: c.maxTokens}
}

// BuildRequest normalizes p into the wire payload without sending it.
func (c *Client) BuildRequest(p InvokeParams) (*CompletionRequest, error) {
	msgs, err := NormalizeMessages(p.Messages)
	if err != nil {
		return nil, err
	}
	toolChoice, err := ResolveToolChoice(p.ToolChoice, p.Tools)
	if err != nil {
		return nil, err
	}
	format, err := ResolveResponseFormat(p.ResponseFormat, p.OutputSchema)
	if err != nil {
		return nil, err
	}

	req := &CompletionRequest{
		Model:          c.model,
		Messages:       msgs,
		ToolChoice:     toolChoice,
		MaxTokens:      c.maxTokens,
		Thinking:       Thinking{BudgetTokens: c.thinkingBudget},
		ResponseFormat: format,
	}
	if len(p.Tools) > 0 {
		req.Tools = p.Tools
	}
	return req, nil
}

// Complete sends one completion request and returns the provider's JSON body unaltered.
func (c *Client) Complete(ctx context.Context, p InvokeParams) (json.RawMessage, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	payload, err := c.BuildRequest(p)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("llm: encode request: %w", err)
	}

	return c.doPost(ctx, body)
}

// doPost performs the single outbound call; no retries.
func (c *Client) doPost(ctx context.Context, body []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("llm: build request: %w", err)
	}
	req.Header.Set(headerContentType, mimeJSON)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm: post %s: %w", c.endpoint, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       readErrorBody(resp.Body),
		}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("llm: read response: %w", err)
	}
	if !json.Valid(raw) {
		return nil, ErrInvalidResponse
	}
	return json.RawMessage(raw), nil
}

// readErrorBody is best-effort: a failed read yields an empty string.
func readErrorBody(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, maxErrorBodyBytes))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

// FirstChoiceText extracts choices[0].message.content when it is a JSON string.
// ok is false for a missing choice, missing content, or non-string content.
func FirstChoiceText(raw json.RawMessage) (text string, ok bool) {
	var body struct {
		Choices []struct {
			Message struct {
				Content json.RawMessage `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Choices) == 0 {
		return "", false
	}
	content := bytes.TrimSpace(body.Choices[0].Message.Content)
	if len(content) == 0 || content[0] != '"' {
		return "", false
	}
	if err := json.Unmarshal(content, &text); err != nil {
		return "", false
	}
	return text, true
}

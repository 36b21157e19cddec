// Package adapter provides implementations for external AI provider integrations.
package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/ctxbridge/ctxbridge/internal/domain"
)

// DefaultOpenAIBaseURL is the default OpenAI API endpoint.
const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// modelsWithoutSystemRole lists model identifiers that reject system-role
// messages. For these, system instructions are folded into the prompt and
// any system entries already in history are excluded from the payload.
var modelsWithoutSystemRole = map[string]bool{
	"o1-mini":    true,
	"o1-preview": true,
}

// OpenAIClient implements Client against the OpenAI chat completions API.
type OpenAIClient struct {
	conversation

	apiKey     domain.Credential
	model      string
	baseURL    string
	maxTokens  int
	httpClient *http.Client
}

// NewOpenAIClient creates an OpenAI adapter with its own empty history.
func NewOpenAIClient(apiKey domain.Credential, model string, opts ...Option) *OpenAIClient {
	s := newSettings(DefaultOpenAIBaseURL, opts...)
	return &OpenAIClient{
		conversation: newConversation(),
		apiKey:       apiKey,
		model:        model,
		baseURL:      s.baseURL,
		maxTokens:    s.maxTokens,
		httpClient:   s.httpClient,
	}
}

// Provider returns the provider identifier.
func (c *OpenAIClient) Provider() domain.ProviderType {
	return domain.ProviderOpenAI
}

// Model returns the model identifier requests are sent to.
func (c *OpenAIClient) Model() string {
	return c.model
}

// SupportsSystemRole reports whether the configured model accepts
// system-role messages.
func (c *OpenAIClient) SupportsSystemRole() bool {
	return !modelsWithoutSystemRole[c.model]
}

// GenerateResponse runs one conversation turn against the OpenAI API.
func (c *OpenAIClient) GenerateResponse(ctx context.Context, prompt, system string) (string, error) {
	supportsSystem := c.SupportsSystemRole()
	c.beginTurn(prompt, system, supportsSystem)

	req := OpenAIRequest{
		Model:    c.model,
		Messages: c.outboundMessages(supportsSystem),
	}
	if c.maxTokens > 0 {
		req.MaxTokens = &c.maxTokens
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", vendorErr(domain.ProviderOpenAI, "marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", vendorErr(domain.ProviderOpenAI, "create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey.Reveal())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", vendorErr(domain.ProviderOpenAI, "execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", vendorErr(domain.ProviderOpenAI, "read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var envelope OpenAIErrorEnvelope
		if err := json.Unmarshal(respBody, &envelope); err == nil && envelope.Error.Message != "" {
			return "", vendorErr(domain.ProviderOpenAI, "API error [%d]: %s", resp.StatusCode, envelope.Error.Message)
		}
		return "", vendorErr(domain.ProviderOpenAI, "API error [%d]: %s", resp.StatusCode, string(respBody))
	}

	var completion OpenAIResponse
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return "", vendorErr(domain.ProviderOpenAI, "unmarshal response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", vendorErr(domain.ProviderOpenAI, "response contained no choices")
	}

	reply := completion.Choices[0].Message.Content
	c.completeTurn(reply)
	return reply, nil
}

// outboundMessages renders the history in the OpenAI wire shape. When the
// model lacks system-role support, system entries are excluded regardless
// of how they got into history (e.g. via SetContext).
func (c *OpenAIClient) outboundMessages(includeSystem bool) []OpenAIMessage {
	snapshot := c.history.Snapshot()
	out := make([]OpenAIMessage, 0, len(snapshot))
	for _, m := range snapshot {
		if m.Role == domain.RoleSystem && !includeSystem {
			continue
		}
		out = append(out, OpenAIMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return out
}

// ============================================================================
// OpenAI API Types
// ============================================================================

// OpenAIRequest represents an OpenAI chat completion request.
type OpenAIRequest struct {
	// Model specifies which model to use (e.g. "gpt-4o", "o1-mini").
	Model string `json:"model"`

	// Messages contains the conversation history in chronological order.
	Messages []OpenAIMessage `json:"messages"`

	// MaxTokens limits the response length. Optional.
	MaxTokens *int `json:"max_tokens,omitempty"`
}

// OpenAIMessage represents a single message in the conversation.
type OpenAIMessage struct {
	// Role is one of: "system", "user", "assistant".
	Role string `json:"role"`

	// Content is the message text content.
	Content string `json:"content"`
}

// OpenAIResponse represents an OpenAI chat completion response.
type OpenAIResponse struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []OpenAIChoice `json:"choices"`
	Usage   OpenAIUsage    `json:"usage"`
}

// OpenAIChoice represents a single completion choice.
type OpenAIChoice struct {
	Index        int           `json:"index"`
	Message      OpenAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

// OpenAIUsage contains token usage statistics.
type OpenAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// OpenAIErrorEnvelope represents an error response from the OpenAI API.
type OpenAIErrorEnvelope struct {
	Error OpenAIErrorDetail `json:"error"`
}

// OpenAIErrorDetail contains the error details.
type OpenAIErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

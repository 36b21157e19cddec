// Package adapter provides implementations for external AI provider integrations.
package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/ctxbridge/ctxbridge/internal/domain"
)

const (
	// DefaultAnthropicBaseURL is the default Anthropic API endpoint.
	DefaultAnthropicBaseURL = "https://api.anthropic.com"

	// anthropicVersion is the API version header required by the vendor.
	anthropicVersion = "2023-06-01"

	// DefaultAnthropicMaxTokens is sent when no cap is configured; the
	// Anthropic messages API makes max_tokens mandatory.
	DefaultAnthropicMaxTokens = 1024

	// anthropicPlaceholderContent substitutes for an empty outbound message
	// list; the vendor rejects requests with no messages.
	anthropicPlaceholderContent = "Hello"
)

// AnthropicClient implements Client against the Anthropic messages API.
//
// The protocol level used here carries no system role: system entries in
// history are dropped from the payload, and a system argument passed to
// GenerateResponse is reported via a log notice rather than transmitted.
type AnthropicClient struct {
	conversation

	apiKey     domain.Credential
	model      string
	baseURL    string
	maxTokens  int
	logger     *slog.Logger
	httpClient *http.Client
}

// NewAnthropicClient creates an Anthropic adapter with its own empty history.
func NewAnthropicClient(apiKey domain.Credential, model string, opts ...Option) *AnthropicClient {
	s := newSettings(DefaultAnthropicBaseURL, opts...)
	if s.maxTokens <= 0 {
		s.maxTokens = DefaultAnthropicMaxTokens
	}
	return &AnthropicClient{
		conversation: newConversation(),
		apiKey:       apiKey,
		model:        model,
		baseURL:      s.baseURL,
		maxTokens:    s.maxTokens,
		logger:       s.logger,
		httpClient:   s.httpClient,
	}
}

// Provider returns the provider identifier.
func (c *AnthropicClient) Provider() domain.ProviderType {
	return domain.ProviderAnthropic
}

// Model returns the model identifier requests are sent to.
func (c *AnthropicClient) Model() string {
	return c.model
}

// GenerateResponse runs one conversation turn against the Anthropic API.
func (c *AnthropicClient) GenerateResponse(ctx context.Context, prompt, system string) (string, error) {
	if system != "" {
		// Out-of-band notice: the instruction is neither transmitted nor
		// recorded in history.
		c.logger.Warn("system instructions are not forwarded to this provider",
			slog.String("provider", string(domain.ProviderAnthropic)),
			slog.String("model", c.model),
		)
	}
	c.beginTurn(prompt, "", true)

	req := AnthropicRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages:  c.outboundMessages(),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", vendorErr(domain.ProviderAnthropic, "marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", vendorErr(domain.ProviderAnthropic, "create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey.Reveal())
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", vendorErr(domain.ProviderAnthropic, "execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", vendorErr(domain.ProviderAnthropic, "read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var envelope AnthropicErrorEnvelope
		if err := json.Unmarshal(respBody, &envelope); err == nil && envelope.Error.Message != "" {
			return "", vendorErr(domain.ProviderAnthropic, "API error [%d]: %s", resp.StatusCode, envelope.Error.Message)
		}
		return "", vendorErr(domain.ProviderAnthropic, "API error [%d]: %s", resp.StatusCode, string(respBody))
	}

	var completion AnthropicResponse
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return "", vendorErr(domain.ProviderAnthropic, "unmarshal response: %w", err)
	}

	reply := completion.Text()
	if reply == "" && len(completion.Content) == 0 {
		return "", vendorErr(domain.ProviderAnthropic, "response contained no content")
	}

	c.completeTurn(reply)
	return reply, nil
}

// outboundMessages renders the history in the Anthropic wire shape:
// system entries are dropped, "user" passes through, and every other role
// is coerced to "assistant" (a looser mapping than history validation, so
// transcripts injected via SetContext still produce a well-formed payload).
// An empty result is replaced by a single placeholder user message.
func (c *AnthropicClient) outboundMessages() []AnthropicMessage {
	snapshot := c.history.Snapshot()
	out := make([]AnthropicMessage, 0, len(snapshot))
	for _, m := range snapshot {
		if m.Role == domain.RoleSystem {
			continue
		}
		role := "assistant"
		if m.Role == domain.RoleUser {
			role = "user"
		}
		out = append(out, AnthropicMessage{Role: role, Content: m.Content})
	}

	if len(out) == 0 {
		out = append(out, AnthropicMessage{
			Role:    "user",
			Content: anthropicPlaceholderContent,
		})
	}
	return out
}

// ============================================================================
// Anthropic API Types
// ============================================================================

// AnthropicRequest represents an Anthropic messages API request.
type AnthropicRequest struct {
	// Model specifies which model to use (e.g. "claude-3-5-sonnet-latest").
	Model string `json:"model"`

	// MaxTokens caps the response length. Mandatory for this API.
	MaxTokens int `json:"max_tokens"`

	// Messages contains the conversation in chronological order. Only the
	// "user" and "assistant" roles are valid on the wire.
	Messages []AnthropicMessage `json:"messages"`
}

// AnthropicMessage represents a single message in the conversation.
type AnthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AnthropicResponse represents an Anthropic messages API response.
type AnthropicResponse struct {
	ID         string                  `json:"id"`
	Type       string                  `json:"type"`
	Role       string                  `json:"role"`
	Model      string                  `json:"model"`
	Content    []AnthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
	Usage      AnthropicUsage          `json:"usage"`
}

// Text concatenates the text content blocks of the response.
func (r AnthropicResponse) Text() string {
	var buf bytes.Buffer
	for _, block := range r.Content {
		if block.Type == "text" {
			buf.WriteString(block.Text)
		}
	}
	return buf.String()
}

// AnthropicContentBlock is one block of response content.
type AnthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// AnthropicUsage contains token usage statistics.
type AnthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// AnthropicErrorEnvelope represents an error response from the Anthropic API.
type AnthropicErrorEnvelope struct {
	Type  string               `json:"type"`
	Error AnthropicErrorDetail `json:"error"`
}

// AnthropicErrorDetail contains the error details.
type AnthropicErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

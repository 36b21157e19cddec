// Package adapter provides implementations for external AI provider integrations.
// It uses the Adapter pattern to abstract provider-specific APIs behind a common interface.
package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ctxbridge/ctxbridge/internal/domain"
)

// Client is the interface every provider adapter must satisfy. It couples
// one conversation history with one vendor, so application code can generate
// responses without knowing which vendor is behind it.
type Client interface {
	// AddMessage appends a role-tagged message to the conversation history.
	// The role is validated case-insensitively against {system, user, assistant}.
	AddMessage(role, content string) error

	// Context returns an independent snapshot of the conversation history.
	Context() []domain.Message

	// SetContext replaces the conversation history with an independent copy
	// of the given transcript. This is the transfer operation: moving a
	// snapshot between two clients never aliases the underlying storage.
	SetContext(messages []domain.Message)

	// ClearContext empties the conversation history.
	ClearContext()

	// GenerateResponse runs one conversation turn: applies the optional
	// system instruction and prompt to history, calls the vendor with the
	// accumulated transcript, records the assistant reply, and returns it.
	// A vendor failure is returned as a *VendorError; history keeps the
	// input messages but records no assistant turn for the failed call.
	GenerateResponse(ctx context.Context, prompt, system string) (string, error)

	// Provider returns the vendor behind this client.
	Provider() domain.ProviderType

	// Model returns the model identifier requests are sent to.
	Model() string
}

// Enforce interface compliance.
var (
	_ Client = (*OpenAIClient)(nil)
	_ Client = (*AnthropicClient)(nil)
)

// DefaultTimeout is the default HTTP client timeout for vendor calls.
const DefaultTimeout = 30 * time.Second

// settings holds the construction knobs shared by all adapters.
type settings struct {
	baseURL    string
	httpClient *http.Client
	maxTokens  int
	logger     *slog.Logger
}

// Option is a functional option for configuring an adapter.
type Option func(*settings)

// WithBaseURL sets a custom base URL for the vendor API.
func WithBaseURL(url string) Option {
	return func(s *settings) {
		s.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *settings) {
		s.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(s *settings) {
		s.httpClient.Timeout = timeout
	}
}

// WithMaxTokens caps the response length requested from the vendor.
func WithMaxTokens(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxTokens = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// newSettings applies options over the adapter defaults.
func newSettings(defaultBaseURL string, opts ...Option) settings {
	s := settings{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// New constructs the adapter matching the provider's type. The provider's
// BaseURL, when set, overrides the adapter default.
func New(p domain.Provider, opts ...Option) (Client, error) {
	if p.BaseURL != "" {
		opts = append([]Option{WithBaseURL(p.BaseURL)}, opts...)
	}

	switch p.Type {
	case domain.ProviderOpenAI:
		return NewOpenAIClient(p.APIKey, p.Model, opts...), nil
	case domain.ProviderAnthropic:
		return NewAnthropicClient(p.APIKey, p.Model, opts...), nil
	default:
		return nil, fmt.Errorf("unsupported provider type %q", p.Type)
	}
}

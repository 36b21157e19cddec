// Package domain contains the core business entities and value objects.
// These structs are framework-agnostic and represent the heart of the application.
package domain

import "strings"

// ProviderType identifies a text-generation vendor (e.g. OpenAI, Anthropic).
type ProviderType string

const (
	ProviderOpenAI    ProviderType = "openai"
	ProviderAnthropic ProviderType = "anthropic"
)

// ParseProviderType normalizes a provider name to a ProviderType.
// Returns false for unknown providers.
func ParseProviderType(s string) (ProviderType, bool) {
	switch ProviderType(strings.ToLower(strings.TrimSpace(s))) {
	case ProviderOpenAI:
		return ProviderOpenAI, true
	case ProviderAnthropic:
		return ProviderAnthropic, true
	default:
		return "", false
	}
}

// Provider represents a configured text-generation vendor.
type Provider struct {
	// Name is the human-readable name of the provider.
	Name string `json:"name" mapstructure:"name"`

	// Type identifies the provider type for adapter selection.
	Type ProviderType `json:"type" mapstructure:"type"`

	// BaseURL is the base endpoint for the provider's API.
	// Empty means the adapter's default endpoint.
	BaseURL string `json:"base_url" mapstructure:"base_url"`

	// Model is the default model identifier for this provider.
	Model string `json:"model" mapstructure:"model"`

	// APIKey is the credential forwarded to the vendor. Opaque secret;
	// never logged, never echoed.
	APIKey Credential `json:"-" mapstructure:"api_key"`

	// Enabled indicates whether this provider is active.
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

// IsValid checks if the provider has all required fields.
func (p *Provider) IsValid() bool {
	return p.Name != "" && p.Type != "" && p.Model != ""
}

// Credential is an opaque vendor secret. Its string formatting is always
// masked so a credential can never leak through logs or console output.
type Credential string

// String implements fmt.Stringer with masking.
func (c Credential) String() string {
	return c.Masked()
}

// Masked returns a short masked form of the credential (first 4 and last
// 4 characters). Credentials of 8 characters or fewer are fully masked.
func (c Credential) Masked() string {
	if c == "" {
		return ""
	}
	if len(c) <= 8 {
		return "***"
	}
	s := string(c)
	return s[:4] + "..." + s[len(s)-4:]
}

// Reveal returns the raw secret for use in an outbound vendor request.
func (c Credential) Reveal() string {
	return string(c)
}

// IsSet reports whether a non-empty credential was provided.
func (c Credential) IsSet() bool {
	return strings.TrimSpace(string(c)) != ""
}

// Package config provides configuration management using the Singleton pattern.
// It loads configuration from environment variables and config.yaml using Viper.
package config

import (
	"fmt"
	"sync"

	"github.com/ctxbridge/ctxbridge/internal/domain"
)

// Configuration holds all application configuration values.
type Configuration struct {
	// Server configuration (gateway only; the core library never reads it)
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Chat defaults applied to every new client
	Chat ChatConfig `json:"chat" mapstructure:"chat"`

	// Providers configuration
	Providers []domain.Provider `json:"providers" mapstructure:"providers"`

	// Logging configuration
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// ServerConfig holds gateway server configuration.
type ServerConfig struct {
	// Host is the server bind address.
	Host string `json:"host" mapstructure:"host"`

	// Port is the server port number.
	Port int `json:"port" mapstructure:"port"`

	// ReadTimeoutSeconds is the maximum duration for reading the entire request.
	ReadTimeoutSeconds int `json:"read_timeout_seconds" mapstructure:"read_timeout_seconds"`

	// WriteTimeoutSeconds is the maximum duration before timing out writes of the response.
	WriteTimeoutSeconds int `json:"write_timeout_seconds" mapstructure:"write_timeout_seconds"`

	// ShutdownTimeoutSeconds is the maximum duration to wait for active connections to finish.
	ShutdownTimeoutSeconds int `json:"shutdown_timeout_seconds" mapstructure:"shutdown_timeout_seconds"`
}

// ChatConfig holds conversation defaults.
type ChatConfig struct {
	// DefaultProvider is the provider used when a request names none.
	DefaultProvider string `json:"default_provider" mapstructure:"default_provider"`

	// MaxTokens caps the reply length requested from the vendor (0 = vendor default).
	MaxTokens int `json:"max_tokens" mapstructure:"max_tokens"`

	// SessionTTLSeconds is how long an idle gateway session is kept before eviction.
	SessionTTLSeconds int `json:"session_ttl_seconds" mapstructure:"session_ttl_seconds"`

	// TimeoutSeconds is the per-call timeout for vendor requests.
	TimeoutSeconds int `json:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `json:"level" mapstructure:"level"`

	// Format is the log format (json, text).
	Format string `json:"format" mapstructure:"format"`
}

// configInstance holds the singleton configuration instance.
var (
	configInstance *Configuration
	configOnce     sync.Once
	configErr      error
)

// GetConfig returns the singleton Configuration instance.
// It initializes the configuration on first call using the default config path.
// Returns an error if configuration loading fails.
func GetConfig() (*Configuration, error) {
	configOnce.Do(func() {
		configInstance, configErr = loadConfig("")
	})
	return configInstance, configErr
}

// GetConfigWithPath returns the singleton Configuration instance with a custom config path.
// This should be used when you need to specify a non-default configuration file path.
// Returns an error if configuration loading fails.
func GetConfigWithPath(configPath string) (*Configuration, error) {
	configOnce.Do(func() {
		configInstance, configErr = loadConfig(configPath)
	})
	return configInstance, configErr
}

// MustGetConfig returns the singleton Configuration instance.
// It panics if the configuration cannot be loaded.
func MustGetConfig() *Configuration {
	cfg, err := GetConfig()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// ResetConfig resets the singleton instance.
// This is primarily used for testing purposes.
func ResetConfig() {
	configOnce = sync.Once{}
	configInstance = nil
	configErr = nil
}

// Validate validates the configuration and returns an error if required fields are missing.
func (c *Configuration) Validate() error {
	var validationErrors []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		validationErrors = append(validationErrors, "server.port must be between 1 and 65535")
	}

	if c.Chat.DefaultProvider == "" {
		validationErrors = append(validationErrors, "chat.default_provider is required")
	} else if _, ok := domain.ParseProviderType(c.Chat.DefaultProvider); !ok {
		validationErrors = append(validationErrors, fmt.Sprintf(
			"chat.default_provider '%s' is invalid, must be one of: openai, anthropic",
			c.Chat.DefaultProvider,
		))
	}

	if len(c.Providers) == 0 {
		validationErrors = append(validationErrors, "providers cannot be empty, at least one provider is required")
	}

	for i, provider := range c.Providers {
		if provider.Name == "" {
			validationErrors = append(validationErrors, fmt.Sprintf("providers[%d].name is required", i))
		}
		if _, ok := domain.ParseProviderType(string(provider.Type)); !ok {
			validationErrors = append(validationErrors, fmt.Sprintf(
				"providers[%d].type '%s' is invalid, must be one of: openai, anthropic", i, provider.Type))
		}
		if provider.Model == "" {
			validationErrors = append(validationErrors, fmt.Sprintf("providers[%d].model is required", i))
		}
	}

	if c.Logging.Level != "" && !isValidLogLevel(c.Logging.Level) {
		validationErrors = append(validationErrors, fmt.Sprintf(
			"logging.level '%s' is invalid, must be one of: debug, info, warn, error",
			c.Logging.Level,
		))
	}

	if len(validationErrors) > 0 {
		return &ValidationError{Errors: validationErrors}
	}

	return nil
}

// isValidLogLevel checks if the log level is valid.
func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

// EnabledProviders returns all enabled providers.
func (c *Configuration) EnabledProviders() []domain.Provider {
	enabled := make([]domain.Provider, 0)
	for _, p := range c.Providers {
		if p.Enabled {
			enabled = append(enabled, p)
		}
	}
	return enabled
}

// Provider returns the enabled provider of the given type.
func (c *Configuration) Provider(providerType domain.ProviderType) (domain.Provider, bool) {
	for _, p := range c.Providers {
		if p.Type == providerType && p.Enabled {
			return p, true
		}
	}
	return domain.Provider{}, false
}

// DefaultProvider resolves chat.default_provider to its configured entry.
func (c *Configuration) DefaultProvider() (domain.Provider, error) {
	pt, ok := domain.ParseProviderType(c.Chat.DefaultProvider)
	if !ok {
		return domain.Provider{}, fmt.Errorf("unknown default provider %q", c.Chat.DefaultProvider)
	}
	p, ok := c.Provider(pt)
	if !ok {
		return domain.Provider{}, fmt.Errorf("default provider %q is not configured or not enabled", c.Chat.DefaultProvider)
	}
	return p, nil
}

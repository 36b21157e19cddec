// Package config provides configuration management using the Singleton pattern.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/ctxbridge/ctxbridge/internal/domain"
	"github.com/spf13/viper"
)

const (
	defaultConfigName = "config"
	defaultConfigType = "yaml"
	envPrefix         = "CTXBRIDGE"
)

// credentialEnvVars maps each provider type to the environment variables
// consulted for its API key, in priority order. Environment variables take
// priority over any file-configured key: credentials in config.yaml are a
// local-development fallback only.
var credentialEnvVars = map[domain.ProviderType][]string{
	domain.ProviderOpenAI:    {"CTXBRIDGE_OPENAI_API_KEY", "OPENAI_API_KEY"},
	domain.ProviderAnthropic: {"CTXBRIDGE_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"},
}

// loadConfig loads the configuration from environment variables and files.
// Priority order (highest to lowest):
//  1. Credential env vars (CTXBRIDGE_<PROVIDER>_API_KEY, then the vendor's
//     conventional variable)
//  2. Environment variables prefixed with CTXBRIDGE_
//  3. config.yaml, as a fallback for local development only
//  4. Default values
func loadConfig(configPath string) (*Configuration, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName(defaultConfigName)
	v.SetConfigType(defaultConfigType)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/ctxbridge")
		v.AddConfigPath("$HOME/.ctxbridge")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, &ConfigError{
				Op:  "read",
				Err: fmt.Errorf("failed to read config file: %w", err),
			}
		}
		// Config file not found is fine: defaults plus env vars suffice.
	}

	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigError{
			Op:  "unmarshal",
			Err: fmt.Errorf("failed to unmarshal config: %w", err),
		}
	}

	applyCredentialEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout_seconds", 30)
	v.SetDefault("server.write_timeout_seconds", 60)
	v.SetDefault("server.shutdown_timeout_seconds", 15)

	// Chat defaults
	v.SetDefault("chat.default_provider", "openai")
	v.SetDefault("chat.max_tokens", 0)
	v.SetDefault("chat.session_ttl_seconds", 1800)
	v.SetDefault("chat.timeout_seconds", 30)

	// Provider defaults: both vendors configured, keys expected from env.
	v.SetDefault("providers", []map[string]any{
		{
			"name":    "openai",
			"type":    "openai",
			"model":   "gpt-4o",
			"enabled": true,
		},
		{
			"name":    "anthropic",
			"type":    "anthropic",
			"model":   "claude-3-5-sonnet-latest",
			"enabled": true,
		},
	})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// applyCredentialEnvOverrides fills or replaces each provider's API key from
// the environment. A key found in the environment always wins over a
// file-configured key.
func applyCredentialEnvOverrides(cfg *Configuration) {
	for i := range cfg.Providers {
		envNames, ok := credentialEnvVars[cfg.Providers[i].Type]
		if !ok {
			continue
		}
		for _, name := range envNames {
			if value := strings.TrimSpace(os.Getenv(name)); value != "" {
				cfg.Providers[i].APIKey = domain.Credential(value)
				break
			}
		}
	}
}

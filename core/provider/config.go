package provider

import "time"

// Config holds configuration for the external channel-manager API.
type Config struct {
	// Name identifies the provider in mappings, connections and sync state.
	Name string `mapstructure:"name" default:"channel"`
	// BaseURL is the root of the provider's REST API.
	BaseURL string `mapstructure:"base_url" default:"https://api.channel-manager.example/v2"`
	// TokenURL is the OAuth2 token endpoint used for refresh_token grants.
	TokenURL string `mapstructure:"token_url" default:"https://api.channel-manager.example/oauth/token"`
	// TimeoutSeconds bounds every outbound request.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"20"`
}

// DefaultTimeout applies when TimeoutSeconds is not set.
const DefaultTimeout = 20 * time.Second

// Timeout returns the network timeout of every provider call, token refreshes included.
func (c Config) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return DefaultTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

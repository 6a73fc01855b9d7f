package server

import "errors"

// Config holds configuration for the HTTP server.
type Config struct {
	// Port is the port where the server will listen.
	Port string `mapstructure:"port" default:"8080"`
	// ApiKey is the admin key required for elevated endpoints (bootstrap, diagnostics).
	ApiKey string `mapstructure:"api_key" default:""`
	// AutomationSecret is the shared secret accepted by recurring sync endpoints.
	AutomationSecret string `mapstructure:"automation_secret" default:""`
	// ReadTimeoutSeconds bounds how long the server waits for a request body.
	ReadTimeoutSeconds int `mapstructure:"read_timeout_seconds" default:"30"`
}

var (
	// ErrMissingApiKey is returned when the server is started without an admin key.
	ErrMissingApiKey = errors.New("server.api_key must be set")
	// ErrSharedSecret is returned when the automation secret equals the admin key.
	ErrSharedSecret = errors.New("server.automation_secret must differ from server.api_key")
)

// Validate checks that the server can enforce its authorization rules.
func (c Config) Validate() error {
	if c.ApiKey == "" {
		return ErrMissingApiKey
	}
	if c.AutomationSecret != "" && c.AutomationSecret == c.ApiKey {
		return ErrSharedSecret
	}
	return nil
}

// AutomationEnabled reports whether scheduled triggers may authenticate with the shared secret.
func (c Config) AutomationEnabled() bool {
	return c.AutomationSecret != ""
}

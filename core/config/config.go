package config

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"channel-manager/core/database"
	"channel-manager/core/logger"
	"channel-manager/core/provider"
	"channel-manager/core/secret"
	"channel-manager/core/server"
	"channel-manager/core/storage"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// Config holds all configuration for the application.
// It is divided into partial configurations for better modularity.
type Config struct {
	// Server holds configuration for the HTTP server.
	Server server.Config `mapstructure:"server"`
	// Storage holds configuration for the payload archive (S3, Minio).
	Storage storage.Config `mapstructure:"storage"`
	// Log holds configuration for the logger.
	Log logger.Config `mapstructure:"log"`
	// Database holds configuration for the database connection.
	Database database.Config `mapstructure:"database"`
	// Provider holds the channel-manager API endpoints.
	Provider provider.Config `mapstructure:"provider"`
	// Secret holds the key sealing stored credentials and tokens.
	Secret secret.Config `mapstructure:"secret"`
	// Sync tunes tokens, bootstrap and the sync workers.
	Sync SyncConfig `mapstructure:"sync"`
}

// SyncConfig tunes the synchronization engine.
type SyncConfig struct {
	// RefreshBufferSeconds is how long before expiry a token is refreshed.
	RefreshBufferSeconds int `mapstructure:"refresh_buffer_seconds" default:"300"`
	// DefaultPullDays is the trailing arrival window of a pull without cursor.
	DefaultPullDays int `mapstructure:"default_pull_days" default:"30"`
	// CalendarDays is how many days of calendar bootstrap imports.
	CalendarDays int `mapstructure:"calendar_days" default:"90"`
	// AllowOverbookingOnPull imports provider bookings even without capacity.
	AllowOverbookingOnPull bool `mapstructure:"allow_overbooking_on_pull" default:"true"`
}

// RefreshBuffer returns the refresh buffer as a duration.
func (c SyncConfig) RefreshBuffer() time.Duration {
	return time.Duration(c.RefreshBufferSeconds) * time.Second
}

// ErrMissingSecretKey is returned when no sealing key is configured.
var ErrMissingSecretKey = errors.New("secret.key must be set")

// LoadConfig loads configuration from environment variables and .env file.
func LoadConfig(path string) (*Config, error) {
	envPath := path + "/.env"
	if path == "." {
		envPath = ".env"
	}

	// Ignore error if file doesn't exist (e.g. production)
	_ = godotenv.Overload(envPath)

	v := viper.New()

	bindValues(v, Config{}, "")

	// Map environment variables to nested keys (e.g. SERVER_PORT -> server.port)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate reports every setting the server cannot run without.
func (c *Config) Validate() error {
	err := c.Server.Validate()
	if c.Secret.Key == "" {
		err = multierr.Append(err, ErrMissingSecretKey)
	}
	return err
}

// bindValues uses reflection to iterate over the struct and set default values in Viper
// based on the 'default' and 'mapstructure' tags.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)

	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		// Always set default (even if empty) to register the key for AutomaticEnv
		v.SetDefault(key, field.Tag.Get("default"))
	}
}

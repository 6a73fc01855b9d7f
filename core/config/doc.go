// Package config provides configuration management for the channel manager.
//
// It uses Viper for loading configuration from environment variables and an
// optional .env file. Defaults come from the `default` struct tags of each
// section.
//
// # Configuration Structure
//
// The Config struct is divided into subsections:
//   - Server: HTTP port, admin key and automation secret
//   - Database: MySQL (or SQLite) connection details
//   - Storage: S3/MinIO archive of raw provider payloads
//   - Log: Logging level and format
//   - Provider: channel-manager API and token endpoints
//   - Secret: key sealing stored credentials
//   - Sync: refresh buffer, pull window, calendar horizon, overbooking policy
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Server.Port)
package config

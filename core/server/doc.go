// Package server holds the HTTP server configuration.
//
// While the cmd package handles the server startup, this package defines the
// configuration structure and the rules that must hold before the API is
// exposed: an admin key is mandatory, and the optional automation secret used
// by scheduled sync triggers must not reuse it.
//
// # Configuration
//
// The Config struct defines the HTTP port, the admin API key and the shared
// automation secret.
//
// # Usage
//
// This package is embedded by core/config and consumed by the auth middleware
// when the server is started.
package server

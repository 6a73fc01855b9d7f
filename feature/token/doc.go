// Package token implements the token lifecycle manager.
//
// Every connection has at most one current token per type (read, write).
// GetValidToken hands out the stored token only while it is outside the
// refresh buffer (five minutes before expiry by default); otherwise it
// refreshes first, so a caller never starts a provider request with a token
// that may expire mid-flight.
//
// # Lifecycle
//
//	Unset -> Valid -> NearExpiry -> Expired -> Refreshing -> Valid
//
// NearExpiry and Expired both force a refresh. A rejected refresh surfaces as
// *RefreshError, leaves the previous row untouched and is not retried inline.
//
// # Refresh ordering
//
// Refreshes go through an OAuth2 refresh_token grant (golang.org/x/oauth2).
// Inside one process concurrent refreshes of the same token share a single
// provider call (singleflight). Across processes the store is a
// compare-and-swap on the issue time: a refreshed token only replaces the
// stored one when it was issued later, so the newest token always wins.
//
// # HTTP Endpoints
//
//   - GET  /tokens/:connectionID/diagnostics
//   - POST /tokens/:connectionID/:type/refresh
package token

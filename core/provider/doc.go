// Package provider is the HTTP client for the external OTA/channel-manager API.
//
// The client is deliberately thin: it builds requests, attaches the bearer
// token handed to it by the token manager, decodes the provider's
// {success, data} envelope and reports API credit usage from response headers.
// It never refreshes tokens or retries on its own.
//
// # Errors
//
// A non-2xx response becomes *Error with the status code and (truncated) body.
// A request that hits the network timeout wraps ErrTimeout. IsRetryable tells
// callers which of the two they may retry later; no retry loop is built in.
//
// # Loose payloads
//
// Provider payloads send numbers as strings and flags as 0/1. The ID, Number
// and Flag types normalize these at decode time.
//
// # Status vocabulary
//
// BookingStatus is a closed enum of the provider's booking statuses with an
// explicit StatusUnknown variant.
package provider

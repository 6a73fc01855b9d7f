// Package middleware contains HTTP middleware for the Fiber application.
//
// It provides cross-cutting concerns that sit between the request and the handler.
//
// # Components
//
//   - Auth: resolves the caller's role from the admin API key or the shared
//     automation secret. Bootstrap and diagnostics require the admin role;
//     recurring sync endpoints accept either.
//   - RayID: assigns a unique Request ID (RayID) to every request, injecting it
//     into the context and response headers for tracing.
//
// RayID is registered first so every later log line can carry it.
package middleware

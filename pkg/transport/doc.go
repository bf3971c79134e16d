// Package transport defines the HTTP middleware chain and response
// helpers for the waiverd API surface.
//
// The transport layer bridges external clients and the waiver service.
// It deserializes incoming requests into the types defined in pkg/api,
// dispatches them to the service, and serializes results back as JSON
// (or JSONP for callers that request a callback wrapper).
//
// # Middleware
//
// Middleware wraps http.Handler with cross-cutting concerns. Built-in
// middleware provides panic recovery with JSON error bodies, request ID
// assignment (X-Request-ID), and structured logging via log/slog.
// Authentication middleware lives in pkg/auth and is applied only to
// the routes that create waivers.
package transport

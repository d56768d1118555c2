// Package server provides the HTTP API for building and managing stacks.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns ("GET /api/stacks/{id}").
//
// # Endpoints
//
// [StackHandler] serves:
//   - POST /api/stacks : build a stack from a [tasks.BuildRequest]; 201 when committed, 200 for dry runs
//   - GET /api/stacks : stack history, newest first
//   - GET /api/stacks/{id} : one stack
//   - DELETE /api/stacks/{id} : delete with reference reclamation, {"removed": bool}
//   - GET /api/exposure : exposure counts
//   - DELETE /api/exposure : clear all exposure state
//   - GET /health
//
// Errors use {"error", "code"} bodies: invalid_seeds (400), no_new_content (409), not_found (404).
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server

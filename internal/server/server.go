// package server contains middleware & handlers for the stack builder HTTP API
package server

import (
	"net/http"
	"time"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
// Common middleware includes logging, request ids and panic recovery.
type Middleware func(http.Handler) http.Handler

// Handler defines the interface for HTTP request handlers in the stack builder service.
// Implementations handle a group of endpoints, such as the stack and exposure routes.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the "METHOD /path" patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
// Implementations register handlers, apply middleware, and configure the HTTP server.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
	Patterns() []string                               // Patterns lists every registered "METHOD /path"
}

// New returns an [http.Server] for handler with conservative timeouts.
//
// WriteTimeout is left generous because a build waits on every source.
func New(addr string, handler http.Handler, buildTimeout time.Duration) *http.Server {
	if buildTimeout <= 0 {
		buildTimeout = 2 * time.Minute
	}
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      buildTimeout + 10*time.Second,
		IdleTimeout:       time.Minute,
	}
}

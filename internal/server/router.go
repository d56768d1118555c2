package server

import (
	"net/http"
	"slices"

	"github.com/charmbracelet/log"
)

// BasicRouter implements [Router] over [http.ServeMux] method patterns.
//
// A path registered only for other methods answers 405 from the mux.
type BasicRouter struct {
	mux      *http.ServeMux
	chain    []Middleware
	patterns []string
}

func NewBasicRouter() *BasicRouter {
	return &BasicRouter{mux: http.NewServeMux()}
}

// Use appends middleware; the first one added is the outermost.
func (r *BasicRouter) Use(middleware ...Middleware) {
	r.chain = append(r.chain, middleware...)
}

// Handle registers handler for "METHOD path" behind the current chain.
func (r *BasicRouter) Handle(method, path string, handler http.Handler) {
	r.register(method+" "+path, r.Apply(handler))
}

// Handler registers every pattern from [Handler.Routes] against one wrapped handler.
func (r *BasicRouter) Handler(handler Handler) {
	wrapped := r.Apply(handler)
	for _, pattern := range handler.Routes() {
		r.register(pattern, wrapped)
	}
}

// Patterns returns the registered mux patterns in registration order.
func (r *BasicRouter) Patterns() []string {
	return slices.Clone(r.patterns)
}

func (r *BasicRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Apply wraps handler so that middleware runs in the order it was added.
func (r *BasicRouter) Apply(handler http.Handler) http.Handler {
	for _, mw := range slices.Backward(r.chain) {
		handler = mw(handler)
	}
	return handler
}

func (r *BasicRouter) register(pattern string, handler http.Handler) {
	r.mux.Handle(pattern, handler)
	r.patterns = append(r.patterns, pattern)
}

func health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// NewAPIRouter wires the stack API behind request-id, logging and recovery middleware.
func NewAPIRouter(h *StackHandler, logger *log.Logger) *BasicRouter {
	r := NewBasicRouter()
	r.Use(WithRequestID(), WithLogging(logger), WithRecovery(logger))
	r.Handler(h)
	r.Handle(http.MethodGet, "/health", http.HandlerFunc(health))
	return r
}

// Package router maps the generic model endpoints onto the dispatcher
package router

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zcapi-go/zcapi/internal/web/middleware"
	"github.com/zcapi-go/zcapi/internal/web/response"
)

// Router manages HTTP routing using chi framework
type Router struct {
	mux    chi.Router
	prefix string

	// Middleware chain
	chain *middleware.Chain

	// For introspection and debugging
	registeredRoutes []*RouteInfo
}

// RouteInfo provides metadata about a route for introspection
type RouteInfo struct {
	Pattern    string
	Methods    []string
	Parameters []RouteParameter
}

// RouteParameter describes a path parameter of a route
type RouteParameter struct {
	Name     string
	Required bool
}

// NewRouter creates a router serving under prefix. Unknown paths get an
// empty 404 response.
func NewRouter(prefix string) *Router {
	mux := chi.NewRouter()
	mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.RenderEmpty(w, http.StatusNotFound)
	})
	mux.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.RenderEmpty(w, http.StatusNotFound)
	})

	return &Router{
		mux:              mux,
		prefix:           normalizePrefix(prefix),
		chain:            middleware.NewChain(),
		registeredRoutes: make([]*RouteInfo, 0),
	}
}

// ServeHTTP implements http.Handler interface
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Use adds middleware to the router's middleware chain. It must be called
// before any route is registered.
func (r *Router) Use(middlewares ...middleware.Middleware) {
	for _, m := range middlewares {
		r.chain.Use(m)
		r.mux.Use(m)
	}
}

// Prefix returns the path prefix every model route lives under
func (r *Router) Prefix() string {
	return r.prefix
}

// MiddlewareCount returns the number of middleware registered
func (r *Router) MiddlewareCount() int {
	return r.chain.Len()
}

// Routes returns the registered routes
func (r *Router) Routes() []*RouteInfo {
	result := make([]*RouteInfo, len(r.registeredRoutes))
	copy(result, r.registeredRoutes)
	return result
}

// handle registers handler for every method on pattern under the prefix
func (r *Router) handle(pattern string, methods []string, handler http.Handler) {
	full := r.prefix + pattern
	r.mux.Handle(full, handler)
	r.registeredRoutes = append(r.registeredRoutes, &RouteInfo{
		Pattern:    full,
		Methods:    methods,
		Parameters: extractParameters(full),
	})
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return "/" + prefix
}

// extractParameters lists the {name} segments of a chi pattern
func extractParameters(pattern string) []RouteParameter {
	var params []RouteParameter
	for _, part := range strings.Split(pattern, "/") {
		if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") {
			name := strings.TrimSuffix(strings.TrimPrefix(part, "{"), "}")
			if i := strings.Index(name, ":"); i >= 0 {
				name = name[:i]
			}
			params = append(params, RouteParameter{Name: name, Required: true})
		}
	}
	return params
}

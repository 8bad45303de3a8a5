package router

import (
	"net/http"
)

const (
	collectionPattern = "/{app}/{model}"
	memberPattern     = "/{app}/{model}/{id}"
)

var (
	collectionMethods = []string{http.MethodGet, http.MethodPost, http.MethodDelete}
	memberMethods     = []string{http.MethodGet, http.MethodPost, http.MethodDelete}
)

// RegisterModelRoutes mounts handler on the collection and member routes of
// every registered model, with and without a trailing slash. The handler
// receives every method; it decides which ones are supported.
func (r *Router) RegisterModelRoutes(handler http.Handler) {
	r.handle(collectionPattern, collectionMethods, handler)
	r.handle(collectionPattern+"/", collectionMethods, handler)
	r.handle(memberPattern, memberMethods, handler)
	r.handle(memberPattern+"/", memberMethods, handler)
}

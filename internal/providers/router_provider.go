package providers

import (
	"clarity/internal/structures"
	"maps"
	"net/http"
	"slices"
	"strings"
)

type RouterProviderInterface interface {
	Get(url string, handler http.Handler)
	Post(url string, handler http.Handler)
	Handle(url string, methods map[string]http.Handler)
	GetRoutes() []structures.Route
}

type RouterProvider struct {
	routes []structures.Route
}

func (rp *RouterProvider) Get(url string, handler http.Handler) {
	rp.Handle(url, map[string]http.Handler{http.MethodGet: handler})
}

func (rp *RouterProvider) Post(url string, handler http.Handler) {
	rp.Handle(url, map[string]http.Handler{http.MethodPost: handler})
}

// Handle registers url with one handler per method, e.g. a REST collection.
// Other methods get 405 with an Allow header.
func (rp *RouterProvider) Handle(url string, methods map[string]http.Handler) {
	allowed := slices.Sorted(maps.Keys(methods))
	rp.routes = append(rp.routes, structures.Route{
		Url:     url,
		Methods: allowed,
		Handler: methodHandler(methods, strings.Join(allowed, ", ")),
	})
}

func (rp *RouterProvider) GetRoutes() []structures.Route {
	return rp.routes
}

func NewRouterProvider() RouterProviderInterface {
	return &RouterProvider{}
}

func methodHandler(methods map[string]http.Handler, allow string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler, ok := methods[r.Method]
		if !ok {
			w.Header().Set("Allow", allow)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusMethodNotAllowed)
			_, _ = w.Write([]byte(`{"error":"method not allowed"}`))
			return
		}
		handler.ServeHTTP(w, r)
	})
}

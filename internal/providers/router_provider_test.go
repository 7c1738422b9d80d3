package providers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})
}

func serveRoute(t *testing.T, rp RouterProviderInterface, method, url string) *httptest.ResponseRecorder {
	t.Helper()
	for _, route := range rp.GetRoutes() {
		if route.Url == url {
			rr := httptest.NewRecorder()
			route.Handler.ServeHTTP(rr, httptest.NewRequest(method, url, nil))
			return rr
		}
	}
	t.Fatalf("route %s not registered", url)
	return nil
}

func TestRouterProvider_RegistersInOrder(t *testing.T) {
	rp := NewRouterProvider()
	rp.Get("/institution", okHandler(http.StatusOK))
	rp.Post("/cache/clear", okHandler(http.StatusNoContent))
	rp.Get("/coupons", okHandler(http.StatusOK))

	routes := rp.GetRoutes()
	require.Len(t, routes, 3)
	assert.Equal(t, "/institution", routes[0].Url)
	assert.Equal(t, []string{http.MethodGet}, routes[0].Methods)
	assert.Equal(t, "/cache/clear", routes[1].Url)
	assert.Equal(t, []string{http.MethodPost}, routes[1].Methods)
}

func TestRouterProvider_GetRejectsPost(t *testing.T) {
	rp := NewRouterProvider()
	rp.Get("/institution", okHandler(http.StatusOK))

	assert.Equal(t, http.StatusOK, serveRoute(t, rp, http.MethodGet, "/institution").Code)

	rr := serveRoute(t, rp, http.MethodPost, "/institution")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, "GET", rr.Header().Get("Allow"))
	assert.JSONEq(t, `{"error":"method not allowed"}`, rr.Body.String())
}

func TestRouterProvider_PostRejectsGet(t *testing.T) {
	rp := NewRouterProvider()
	rp.Post("/cache/clear", okHandler(http.StatusNoContent))

	assert.Equal(t, http.StatusNoContent, serveRoute(t, rp, http.MethodPost, "/cache/clear").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, serveRoute(t, rp, http.MethodGet, "/cache/clear").Code)
}

func TestRouterProvider_HandleDispatchesByMethod(t *testing.T) {
	rp := NewRouterProvider()
	rp.Handle("/programs", map[string]http.Handler{
		http.MethodGet:    okHandler(http.StatusOK),
		http.MethodPost:   okHandler(http.StatusCreated),
		http.MethodDelete: okHandler(http.StatusNoContent),
	})

	route := rp.GetRoutes()[0]
	assert.Equal(t, []string{"DELETE", "GET", "POST"}, route.Methods)

	assert.Equal(t, http.StatusOK, serveRoute(t, rp, http.MethodGet, "/programs").Code)
	assert.Equal(t, http.StatusCreated, serveRoute(t, rp, http.MethodPost, "/programs").Code)
	assert.Equal(t, http.StatusNoContent, serveRoute(t, rp, http.MethodDelete, "/programs").Code)

	rr := serveRoute(t, rp, http.MethodPut, "/programs")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, "DELETE, GET, POST", rr.Header().Get("Allow"))
}

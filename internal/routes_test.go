package internal

import (
	"clarity/internal/controllers"
	"clarity/internal/services"
	"clarity/internal/testutil"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type routeTestMockService struct {
	services.DashboardServiceInterface
}

func routeMux(t *testing.T) *http.ServeMux {
	t.Helper()
	ac := controllers.NewApiController(&testutil.MockLogger{}, &routeTestMockService{})
	mux := http.NewServeMux()
	for _, r := range InitRoutes(ac).GetRoutes() {
		mux.Handle(r.Url, r.Handler)
	}
	return mux
}

func TestInitRoutes_RegistersDashboardRoutes(t *testing.T) {
	ac := controllers.NewApiController(&testutil.MockLogger{}, &routeTestMockService{})
	routes := InitRoutes(ac).GetRoutes()

	require.Len(t, routes, 12)

	urls := make([]string, len(routes))
	for i, r := range routes {
		urls[i] = r.Url
	}

	for _, url := range []string{
		"/institution", "/dashboard/stats", "/dashboard/charts", "/leads/recent", "/leads",
		"/leads/reset", "/programs", "/notifications/read", "/coupons", "/payments/verify",
		"/cache/clear", "/subscribe",
	} {
		assert.Contains(t, urls, url)
	}
}

func TestInitRoutes_MethodEnforcement(t *testing.T) {
	mux := routeMux(t)

	tests := []struct {
		method string
		url    string
	}{
		{http.MethodPost, "/institution"},
		{http.MethodGet, "/cache/clear"},
		{http.MethodGet, "/payments/verify"},
		{http.MethodPatch, "/programs"},
		{http.MethodDelete, "/leads"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.url, nil)
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code, "%s %s", tt.method, tt.url)
	}
}

func TestInitRoutes_ValidationBeforeService(t *testing.T) {
	mux := routeMux(t)

	req := httptest.NewRequest(http.MethodDelete, "/programs", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/coupons", nil)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

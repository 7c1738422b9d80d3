package providers

import (
	"net/http"
	"strings"
	"time"
)

// unmatchedEndpoint labels requests no route claimed, so scans of random
// paths do not create new series.
const unmatchedEndpoint = "unmatched"

type statusWriter struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wrote {
		w.status = code
		w.wrote = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wrote = true
	return w.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer (Flush, deadlines).
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// MetricsMiddleware counts every request by the route pattern the mux matched.
// Event streams are counted but kept out of the duration histogram.
func MetricsMiddleware(metrics MetricsProviderInterface, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		endpoint := routeLabel(r)
		metrics.IncRequestsTotal(endpoint, sw.status)
		if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/event-stream") {
			metrics.ObserveRequestDuration(endpoint, time.Since(start))
		}
	})
}

func routeLabel(r *http.Request) string {
	if r.Pattern == "" {
		return unmatchedEndpoint
	}
	// Patterns may carry a method or host prefix ("GET /leads").
	if i := strings.LastIndexByte(r.Pattern, ' '); i >= 0 {
		return r.Pattern[i+1:]
	}
	return r.Pattern
}

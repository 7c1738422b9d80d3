package controllers

import (
	"clarity/internal/localdb"
	"clarity/internal/providers"
	"clarity/internal/query"
	"clarity/internal/realtime"
	"clarity/internal/storage"
	"clarity/internal/structures"
	"clarity/internal/testutil"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHealthController(t *testing.T, available bool) *HealthController {
	t.Helper()
	var kvs *storage.KVS
	if available {
		b, err := storage.OpenBolt(filepath.Join(t.TempDir(), "health.db"), "", storage.DefaultIndexes)
		require.NoError(t, err)
		kvs = storage.NewKVS(b)
		t.Cleanup(func() { _ = kvs.Close() })
	} else {
		kvs = storage.NewKVS(&storage.Unavailable{Reason: "test"})
	}
	db := localdb.NewLocalDB(kvs, testutil.NewMockCache(), &testutil.MockLogger{})
	queries := query.NewClient(query.Options{}, &testutil.MockLogger{}, providers.NewNoopMetrics())
	t.Cleanup(queries.Close)
	query.SetQueryData(queries, query.NewKey("institution"), "i1")
	listener := realtime.NewListener(&structures.Config{}, nil, &testutil.MockLogger{})
	return NewHealthController(db, queries, listener)
}

func TestHealth_ReturnsOK(t *testing.T) {
	hc := newHealthController(t, true)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	hc.Health(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Contains(t, resp, "uptime")
	assert.Contains(t, resp, "uptime_seconds")
	assert.Equal(t, true, resp["storage"])
	assert.Equal(t, float64(1), resp["queries"])
	assert.Equal(t, "disabled", resp["realtime"])
}

func TestHealth_DegradedWithoutStorage(t *testing.T) {
	hc := newHealthController(t, false)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	hc.Health(rr, req)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "degraded", resp["status"])
	assert.Equal(t, false, resp["storage"])
}

func TestHealth_MethodNotAllowed(t *testing.T) {
	hc := newHealthController(t, false)

	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	rr := httptest.NewRecorder()
	hc.Health(rr, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{"zero", 0, "0h0m0s"},
		{"one minute", 60 * time.Second, "0h1m0s"},
		{"one hour", time.Hour, "1h0m0s"},
		{"mixed", time.Hour + time.Minute + time.Second, "1h1m1s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatDuration(tt.duration))
		})
	}
}

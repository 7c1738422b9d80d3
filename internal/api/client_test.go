package api

import (
	"clarity/internal/models"
	"clarity/internal/providers"
	"clarity/internal/structures"
	"clarity/internal/testutil"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	conf := &structures.Config{}
	conf.Api.BaseURL = srv.URL
	conf.Api.SessionCookie = "session=abc123"
	conf.Api.Timeout = 5 * time.Second

	c, err := NewClient(conf, &testutil.MockLogger{}, providers.NewNoopMetrics())
	require.NoError(t, err)
	return c
}

func TestClient_SendsSessionCookieAndRequestID(t *testing.T) {
	var cookie, requestID string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ck, err := r.Cookie("session"); err == nil {
			cookie = ck.Value
		}
		requestID = r.Header.Get("X-Request-ID")
		assert.Equal(t, "/v1/institutions/me", r.URL.Path)
		_, _ = io.WriteString(w, `{"success":true,"data":{"_id":"i1","name":"Acme"}}`)
	}))

	r := c.GetInstitution(context.Background())
	require.True(t, r.Success, r.Message)
	assert.Equal(t, "i1", r.Data.ID)
	assert.Equal(t, "Acme", r.Data.Name)
	assert.Equal(t, "abc123", cookie)
	assert.Len(t, requestID, 36)
}

func TestClient_FailureBecomesResult(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"message":"session expired"}`)
	}))

	r := c.GetInstitution(context.Background())
	assert.False(t, r.Success)
	assert.Equal(t, http.StatusUnauthorized, r.Status)
	assert.Equal(t, "session expired", r.Message)
}

func TestClient_MalformedPayload(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":{"name":"no id"}}`)
	}))

	r := c.GetInstitution(context.Background())
	assert.False(t, r.Success)
	assert.Equal(t, "malformed response", r.Message)
}

func TestClient_NetworkError(t *testing.T) {
	conf := &structures.Config{}
	conf.Api.BaseURL = "http://127.0.0.1:1"
	conf.Api.Timeout = time.Second
	c, err := NewClient(conf, &testutil.MockLogger{}, providers.NewNoopMetrics())
	require.NoError(t, err)

	r := c.ListPrograms(context.Background())
	assert.False(t, r.Success)
	assert.Equal(t, 0, r.Status)
	assert.Equal(t, "network error", r.Message)
}

func TestClient_BreakerIgnoresClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))

	for i := 0; i < 15; i++ {
		r := c.LookupCoupon(context.Background(), "nope")
		assert.Equal(t, http.StatusNotFound, r.Status)
	}
	assert.Equal(t, int32(15), calls.Load())
}

func TestClient_BreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	for i := 0; i < 12; i++ {
		c.ListPrograms(context.Background())
	}
	assert.Equal(t, int32(10), calls.Load())

	r := c.ListPrograms(context.Background())
	assert.Equal(t, http.StatusServiceUnavailable, r.Status)
}

func TestClient_GetDashboardStats(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "weekly", r.URL.Query().Get("range"))
		switch r.URL.Query().Get("metric") {
		case "views":
			_, _ = io.WriteString(w, `{"data":{"total":100,"trend":{"value":12,"isPositive":true}}}`)
		case "comparisons":
			_, _ = io.WriteString(w, `{"data":{"total":20}}`)
		case "leads":
			_, _ = io.WriteString(w, `{"data":{"total":5,"trend":{"value":-3,"isPositive":false}}}`)
		}
	}))

	r := c.GetDashboardStats(context.Background(), models.RangeWeekly, "i1")
	require.True(t, r.Success, r.Message)
	assert.Equal(t, 100, r.Data.Views)
	assert.Equal(t, 20, r.Data.Comparisons)
	assert.Equal(t, 5, r.Data.Leads)
	assert.Equal(t, models.Trend{Value: 12, IsPositive: true}, r.Data.ViewsTrend)
	assert.Equal(t, models.NeutralTrend, r.Data.ComparisonsTrend)
	assert.Equal(t, models.Trend{Value: -3, IsPositive: false}, r.Data.LeadsTrend)
	assert.Equal(t, "i1", r.Data.InstitutionID)
}

func TestClient_GetDashboardStatsPartialFailure(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("metric") == "leads" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `{"message":"forbidden"}`)
			return
		}
		_, _ = io.WriteString(w, `{"data":{"total":1}}`)
	}))

	r := c.GetDashboardStats(context.Background(), models.RangeMonthly, "i1")
	assert.False(t, r.Success)
	assert.Equal(t, http.StatusForbidden, r.Status)
	assert.Equal(t, "forbidden", r.Message)
}

func TestClient_ProgramMutations(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/programs":
			body, _ := io.ReadAll(r.Body)
			assert.JSONEq(t, `{"programName":"MBA","fee":1000}`, string(body))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			_, _ = io.WriteString(w, `{"success":true,"data":{"program":{"_id":"p1","programName":"MBA","fee":1000}}}`)
		case r.Method == http.MethodPut && r.URL.Path == "/v1/programs/p1":
			_, _ = io.WriteString(w, `{"success":true,"data":{"_id":"p1","programName":"MBA 2"}}`)
		case r.Method == http.MethodDelete && r.URL.Path == "/v1/programs/p1":
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodPut && r.URL.Path == "/v1/notifications/n1/read":
			_, _ = io.WriteString(w, `{"status":"ok"}`)
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	}))
	ctx := context.Background()

	created := c.CreateProgram(ctx, models.ProgramInput{Name: "MBA", Fee: 1000})
	require.True(t, created.Success, created.Message)
	assert.Equal(t, "p1", created.Data.ID)
	assert.Equal(t, float64(1000), created.Data.Fee)

	updated := c.UpdateProgram(ctx, "p1", models.ProgramInput{Name: "MBA 2"})
	require.True(t, updated.Success)
	assert.Equal(t, "MBA 2", updated.Data.Name)

	deleted := c.DeleteProgram(ctx, "p1")
	assert.True(t, deleted.Success)
	assert.True(t, deleted.Data)

	read := c.MarkNotificationRead(ctx, "n1")
	assert.True(t, read.Success)
}

func TestClient_ListProgramsAndCoupon(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/programs":
			_, _ = io.WriteString(w, `{"data":{"programs":[{"_id":"p1","programName":"BSc","branch":{"branchName":"North"},"priceOfCourse":"250"}]}}`)
		case "/v1/coupons/SAVE10":
			_, _ = io.WriteString(w, `{"data":{"discount":10,"isValid":true}}`)
		}
	}))
	ctx := context.Background()

	programs := c.ListPrograms(ctx)
	require.True(t, programs.Success)
	require.Len(t, programs.Data, 1)
	assert.Equal(t, "North", programs.Data[0].InstitutionName)
	assert.Equal(t, float64(250), programs.Data[0].Fee)

	coupon := c.LookupCoupon(ctx, " save10 ")
	require.True(t, coupon.Success)
	assert.Equal(t, "SAVE10", coupon.Data.Code)
	assert.Equal(t, float64(10), coupon.Data.DiscountPercent)
	assert.True(t, coupon.Data.Valid)
}

func TestClient_GetEnquiriesAndSeries(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/enquiries":
			assert.Equal(t, "20", r.URL.Query().Get("offset"))
			assert.Equal(t, "10", r.URL.Query().Get("limit"))
			_, _ = io.WriteString(w, `{"success":true,"data":[{"_id":"e1","name":"A","createdAt":1740823200000}]}`)
		case "/v1/institutions/metrics/series":
			assert.Equal(t, "2025", r.URL.Query().Get("year"))
			_, _ = io.WriteString(w, `{"data":[{"month":2,"count":5},{"month":7,"count":3}]}`)
		}
	}))
	ctx := context.Background()

	page := c.GetEnquiries(ctx, 20, 10)
	require.True(t, page.Success)
	require.Len(t, page.Data.Items, 1)
	assert.Equal(t, int64(1740823200000), page.Data.Items[0].TimestampMs)

	series := c.GetSeries(ctx, models.MetricLeads, 2025)
	require.True(t, series.Success)
	assert.Equal(t, [12]int{0, 0, 5, 0, 0, 0, 0, 3, 0, 0, 0, 0}, series.Data)
}

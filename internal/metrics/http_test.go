package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRouteLabel(t *testing.T) {
	mux := http.NewServeMux()
	var routed string
	mux.HandleFunc("GET /api/topics/{id}", func(w http.ResponseWriter, r *http.Request) {
		routed = routeLabel(r)
	})
	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/topics/3f2c1d9e-8a7b-4c6d-9e0f-112233445566", nil))
	assert.Equal(t, "GET /api/topics/{id}", routed)

	unmatched := httptest.NewRequest(http.MethodGet, "/nowhere/3F2C1D9E-8A7B-4C6D-9E0F-112233445566/x", nil)
	assert.Equal(t, "/nowhere/{id}/x", routeLabel(unmatched))
}

func TestMiddleware_CountsByStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/redeem", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"code_not_found"}`))
	})
	mux.HandleFunc("GET /api/plan", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	h := Middleware(mux)

	redeem := HTTPRequestsTotal.WithLabelValues(http.MethodPost, "POST /api/redeem", "400")
	plan := HTTPRequestsTotal.WithLabelValues(http.MethodGet, "GET /api/plan", "200")
	beforeRedeem, beforePlan := testutil.ToFloat64(redeem), testutil.ToFloat64(plan)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/redeem", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/plan", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/plan", nil))

	assert.Equal(t, beforeRedeem+1, testutil.ToFloat64(redeem))
	assert.Equal(t, beforePlan+2, testutil.ToFloat64(plan))
	assert.Zero(t, testutil.ToFloat64(HTTPRequestsInFlight))
}

func TestMiddleware_SkipsMetricsScrape(t *testing.T) {
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	scrape := HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/metrics", "200")
	before := testutil.ToFloat64(scrape)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, before, testutil.ToFloat64(scrape))
}

package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-modular/framework/metrics"
)

func TestObserveDispatch_CountsByOutcome(t *testing.T) {
	m := metrics.New()

	m.ObserveDispatch("UserController.Show", metrics.OutcomeResult)
	m.ObserveDispatch("UserController.Show", metrics.OutcomeResult)
	m.ObserveDispatch("UserController.Show", metrics.OutcomeError)

	count, err := testutil.GatherAndCount(m.Registry, "modular_dispatch_outcomes_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count) // two label sets
}

func TestInstrument_LabelsWithRoutePattern(t *testing.T) {
	m := metrics.New()
	r := chi.NewRouter()
	r.Use(m.Instrument)
	r.Get("/users/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, id := range []string{"1", "2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/users/"+id, nil))
	}

	count, err := testutil.GatherAndCount(m.Registry, "modular_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestHandler_ServesExposition(t *testing.T) {
	m := metrics.New()
	m.SetRoutes(3)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "modular_routing_bound_routes 3")
}

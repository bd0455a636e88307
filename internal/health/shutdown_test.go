package health_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lapak-id/backend-lapak/internal/health"
)

// Draining must fail readiness so the load balancer stops routing, while
// liveness stays green so the orchestrator does not kill the process
// mid-shutdown.
func TestDrainFailsReadinessButNotLiveness(t *testing.T) {
	t.Cleanup(func() { health.SetReady(true) })

	handler := health.Handler{Checker: stubChecker{}}
	status := func(fn http.HandlerFunc) int {
		rr := httptest.NewRecorder()
		fn(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		return rr.Code
	}

	health.SetReady(true)
	require.Equal(t, http.StatusOK, status(handler.Ready))

	health.SetReady(false)
	require.Equal(t, http.StatusServiceUnavailable, status(handler.Ready))
	require.Equal(t, http.StatusOK, status(handler.Live))

	// Healthy dependencies do not override the drain signal.
	require.Equal(t, http.StatusServiceUnavailable, status(handler.Ready))
}

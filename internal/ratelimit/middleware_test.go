package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/lapak-id/backend-lapak/internal/common"
)

func TestMiddlewareAllowsWithinLimit(t *testing.T) {
	l, err := New(memory.NewStore(), "5-M")
	require.NoError(t, err)

	handler := Middleware(l, ByClientIP, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestMiddlewareBlocksOverLimit(t *testing.T) {
	l, err := New(memory.NewStore(), "2-M")
	require.NoError(t, err)

	handler := Middleware(l, ByClientIP, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/coupons/preview", nil)
		req.RemoteAddr = "10.0.0.2:1234"
		handler.ServeHTTP(last, req)
	}
	require.Equal(t, http.StatusTooManyRequests, last.Code)
	require.NotEmpty(t, last.Header().Get("X-RateLimit-Limit"))
}

func TestByUserOrIPPrefersUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.3:1234"
	require.Equal(t, "ip:10.0.0.3", ByUserOrIP(req))

	req = req.WithContext(common.WithUserID(req.Context(), "user-1"))
	require.Equal(t, "u:user-1", ByUserOrIP(req))
}

func TestInvalidRateFormat(t *testing.T) {
	_, err := New(memory.NewStore(), "not-a-rate")
	require.Error(t, err)
}

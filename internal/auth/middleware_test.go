package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"

	"github.com/lapak-id/backend-lapak/internal/common"
)

func signedToken(t *testing.T, secret []byte, subject, role string, now time.Time) string {
	t.Helper()
	builder := jwt.NewBuilder().
		Issuer("lapak-test").
		Subject(subject).
		IssuedAt(now).
		Expiration(now.Add(time.Hour))
	if role != "" {
		builder = builder.Claim("role", role)
	}
	token, err := builder.Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, secret))
	require.NoError(t, err)
	return string(signed)
}

func newTestMiddleware(now time.Time) (Middleware, []byte) {
	secret := []byte("test-secret")
	svc := NewService(secret, "lapak-test")
	svc.Now = func() time.Time { return now }
	return Middleware{Service: svc, CartCookie: "cart_token"}, secret
}

func TestAuthenticateAttachesUserID(t *testing.T) {
	now := time.Now()
	mw, secret := newTestMiddleware(now)

	var gotUserID string
	var gotAdmin bool
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = common.UserID(r.Context())
		gotAdmin = common.IsAdmin(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, secret, "user-123", "", now))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "user-123", gotUserID)
	require.False(t, gotAdmin)
}

func TestAuthenticateLetsGuestsThrough(t *testing.T) {
	mw, _ := newTestMiddleware(time.Now())

	var authed bool
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authed = common.IsAuthenticated(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cart", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, authed)
}

func TestRequireAuthRejectsMissingToken(t *testing.T) {
	mw, _ := newTestMiddleware(time.Now())
	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/checkout", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAdminRejectsNonAdmin(t *testing.T) {
	now := time.Now()
	mw, secret := newTestMiddleware(now)
	handler := mw.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/admin/coupons", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, secret, "user-123", "", now))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req.Header.Set("Authorization", "Bearer "+signedToken(t, secret, "user-456", common.RoleAdmin, now))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCartSessionAttachesAnonID(t *testing.T) {
	mw, _ := newTestMiddleware(time.Now())

	var gotAnon string
	handler := mw.CartSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAnon, _ = common.AnonID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set(CartTokenHeader, "guest-abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, "guest-abc", gotAnon)
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	now := time.Now()
	mw, secret := newTestMiddleware(now)
	expired := signedToken(t, secret, "user-123", "", now.Add(-2*time.Hour))
	_, err := mw.Service.ParseAccessToken(expired)
	require.Error(t, err)
}
